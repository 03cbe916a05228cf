package repository

import (
	"fmt"

	"gorm.io/gorm"

	"prepai/internal/model"
)

type ChunkRepository struct {
	db *gorm.DB
}

func NewChunkRepository(db *gorm.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

// CreateBatch persists all chunks in a single bulk insert.
func (r *ChunkRepository) CreateBatch(chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := r.db.Create(&chunks).Error; err != nil {
		return fmt.Errorf("create chunks batch failed: %w", err)
	}
	return nil
}

// ListByDocumentIDs returns all chunks for the given document IDs.
// Caller is responsible for filtering document IDs by ownership.
func (r *ChunkRepository) ListByDocumentIDs(documentIDs []uint) ([]model.Chunk, error) {
	if len(documentIDs) == 0 {
		return nil, nil
	}
	var chunks []model.Chunk
	if err := r.db.Where("document_id IN ?", documentIDs).Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("list chunks by document ids failed: %w", err)
	}
	return chunks, nil
}

func (r *ChunkRepository) CountByDocumentID(documentID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&model.Chunk{}).Where("document_id = ?", documentID).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count chunks failed: %w", err)
	}
	return count, nil
}
