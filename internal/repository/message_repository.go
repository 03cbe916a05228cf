package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"prepai/internal/model"
)

type MessageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) ListByChatID(chatID uint) ([]model.Message, error) {
	var messages []model.Message
	if err := r.db.Where("chat_id = ?", chatID).Order("seq ASC").Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("list messages failed: %w", err)
	}
	return messages, nil
}

// LastModelMessage returns the most recent model-authored message of a chat.
func (r *MessageRepository) LastModelMessage(chatID uint) (*model.Message, error) {
	var msg model.Message
	err := r.db.Where("chat_id = ? AND role = ?", chatID, model.RoleModel).
		Order("seq DESC").First(&msg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last model message failed: %w", err)
	}
	return &msg, nil
}

func (r *MessageRepository) CountByChatID(chatID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&model.Message{}).Where("chat_id = ?", chatID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count messages failed: %w", err)
	}
	return count, nil
}

// AppendPair writes a user message and the model's reply in one transaction
// so a turn never lands half-persisted.
func (r *MessageRepository) AppendPair(userMsg, modelMsg *model.Message) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(userMsg).Error; err != nil {
			return err
		}
		return tx.Create(modelMsg).Error
	})
	if err != nil {
		return fmt.Errorf("append message pair failed: %w", err)
	}
	return nil
}
