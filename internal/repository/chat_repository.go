package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"prepai/internal/model"
)

type ChatRepository struct {
	db *gorm.DB
}

// ChatSummary is the shape returned by history listings.
type ChatSummary struct {
	ID             uint      `json:"id"`
	CreatedAt      time.Time `json:"created_at"`
	ResumeFilename string    `json:"resume_filename"`
	JDFilename     string    `json:"jd_filename"`
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

// CreateWithOpening persists a new chat and its opening model message together.
func (r *ChatRepository) CreateWithOpening(chat *model.Chat, opening *model.Message) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(chat).Error; err != nil {
			return err
		}
		opening.ChatID = chat.ID
		return tx.Create(opening).Error
	})
	if err != nil {
		return fmt.Errorf("create chat failed: %w", err)
	}
	return nil
}

func (r *ChatRepository) GetByID(id uint) (*model.Chat, error) {
	var chat model.Chat
	if err := r.db.First(&chat, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get chat failed: %w", err)
	}
	return &chat, nil
}

func (r *ChatRepository) ListSummariesByUserID(userID uint) ([]ChatSummary, error) {
	var chats []model.Chat
	if err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&chats).Error; err != nil {
		return nil, fmt.Errorf("list chats failed: %w", err)
	}
	summaries := make([]ChatSummary, len(chats))
	for i, c := range chats {
		summaries[i] = ChatSummary{
			ID:             c.ID,
			CreatedAt:      c.CreatedAt,
			ResumeFilename: c.ResumeFilename,
			JDFilename:     c.JDFilename,
		}
	}
	return summaries, nil
}
