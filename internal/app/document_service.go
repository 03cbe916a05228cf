package app

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"prepai/internal/config"
	"prepai/internal/model"
	"prepai/internal/platform/logger"
	"prepai/internal/repository"
)

// DocumentService owns the ingestion pipeline: store the raw file, create
// the document record, extract text, chunk, embed, and bulk-insert chunks.
type DocumentService struct {
	docRepo     *repository.DocumentRepository
	chunkRepo   *repository.ChunkRepository
	store       ObjectStore
	embedder    Embedder
	extractText TextExtractor
	cfg         config.RAGConfig
	keyPrefix   string
	log         *logger.Logger
}

type IngestInput struct {
	UserID   uint
	Type     string
	Filename string
	Data     []byte
}

func NewDocumentService(
	docRepo *repository.DocumentRepository,
	chunkRepo *repository.ChunkRepository,
	store ObjectStore,
	embedder Embedder,
	extractText TextExtractor,
	cfg config.RAGConfig,
	keyPrefix string,
	log *logger.Logger,
) *DocumentService {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = cfg.ChunkSize / 5
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 2 << 20
	}
	if keyPrefix == "" {
		keyPrefix = "uploads"
	}
	return &DocumentService{
		docRepo:     docRepo,
		chunkRepo:   chunkRepo,
		store:       store,
		embedder:    embedder,
		extractText: extractText,
		cfg:         cfg,
		keyPrefix:   keyPrefix,
		log:         log.With("component", "document_service"),
	}
}

// Ingest runs the upload pipeline and returns the created document.
//
// Stage order matters: the raw file is stored and the document row created
// before text extraction, so an extraction or embedding failure leaves a
// document without chunks rather than rolling everything back. Chunk
// persistence itself is all-or-nothing.
func (s *DocumentService) Ingest(ctx context.Context, input IngestInput) (*model.Document, error) {
	if input.UserID == 0 || !model.ValidDocumentType(input.Type) {
		return nil, ErrInvalidInput
	}
	if len(input.Data) == 0 {
		return nil, ErrInvalidInput
	}
	if int64(len(input.Data)) > s.cfg.MaxUploadBytes {
		return nil, ErrPayloadTooLarge
	}
	filename := strings.TrimSpace(input.Filename)
	if filename == "" {
		filename = "untitled.pdf"
	}

	key := s.objectKey(filename)
	fileURL, err := s.store.Upload(ctx, key, "application/pdf", input.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}

	doc := &model.Document{
		UserID:   input.UserID,
		Type:     input.Type,
		Filename: filename,
		FileURL:  fileURL,
	}
	if err := s.docRepo.Create(doc); err != nil {
		return nil, err
	}

	text, err := s.extractText(bytes.NewReader(input.Data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: no extractable text", ErrParse)
	}

	chunks := chunkText(text, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: nothing to chunk", ErrParse)
	}

	embeddings, err := s.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}
	if len(embeddings) != len(chunks) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d chunks", ErrEmbedding, len(embeddings), len(chunks))
	}
	for i, vec := range embeddings {
		if len(vec) == 0 {
			return nil, fmt.Errorf("%w: empty embedding for chunk %d", ErrEmbedding, i)
		}
		if s.cfg.EmbeddingDim > 0 && len(vec) != s.cfg.EmbeddingDim {
			return nil, fmt.Errorf("%w: chunk %d has dimension %d, want %d", ErrEmbedding, i, len(vec), s.cfg.EmbeddingDim)
		}
	}

	rows := make([]model.Chunk, len(chunks))
	for i := range chunks {
		rows[i] = model.Chunk{
			UserID:     input.UserID,
			DocumentID: doc.ID,
			Type:       input.Type,
			Text:       chunks[i],
		}
		rows[i].SetEmbedding(embeddings[i])
	}
	if err := s.chunkRepo.CreateBatch(rows); err != nil {
		return nil, err
	}

	s.log.Infow("document ingested",
		"user_id", input.UserID, "document_id", doc.ID, "type", doc.Type, "chunks", len(rows))
	return doc, nil
}

func (s *DocumentService) List(userID uint) ([]model.Document, error) {
	if userID == 0 {
		return nil, ErrInvalidInput
	}
	return s.docRepo.ListByUserID(userID)
}

// Delete removes a document and all of its chunks. Missing documents report
// ErrNotFound; documents owned by someone else report ErrNotOwner without
// revealing their content.
func (s *DocumentService) Delete(userID, documentID uint) error {
	if userID == 0 || documentID == 0 {
		return ErrInvalidInput
	}
	doc, err := s.docRepo.GetByID(documentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrNotFound
	}
	if doc.UserID != userID {
		return ErrNotOwner
	}
	return s.docRepo.DeleteWithChunks(doc.ID)
}

func (s *DocumentService) objectKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return s.keyPrefix + "/" + uuid.NewString() + ext
}

// chunkText splits text into overlapping windows by rune count. Splitting is
// deterministic and preserves source order.
func chunkText(text string, size, overlap int) []string {
	if size <= 0 {
		return nil
	}
	if overlap >= size {
		overlap = size / 2
	}
	var chunks []string
	runes := []rune(text)
	for i := 0; i < len(runes); i += size - overlap {
		end := i + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[i:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
