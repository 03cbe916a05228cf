package app

import (
	"context"
	"fmt"
	"math"
	"sort"

	"prepai/internal/model"
	"prepai/internal/platform/logger"
	"prepai/internal/repository"
)

// RetrievalService embeds a query and ranks the chunks of the given
// documents by cosine similarity.
type RetrievalService struct {
	chunkRepo *repository.ChunkRepository
	embedder  Embedder
	log       *logger.Logger
}

func NewRetrievalService(chunkRepo *repository.ChunkRepository, embedder Embedder, log *logger.Logger) *RetrievalService {
	return &RetrievalService{
		chunkRepo: chunkRepo,
		embedder:  embedder,
		log:       log.With("component", "retrieval_service"),
	}
}

// Retrieve returns up to topK chunk texts in descending similarity order,
// scoped to documentIDs. An empty match is an empty slice, not an error.
func (s *RetrievalService) Retrieve(ctx context.Context, query string, documentIDs []uint, topK int) ([]string, error) {
	if topK <= 0 {
		topK = 2
	}
	if len(documentIDs) == 0 {
		return nil, nil
	}

	queryVec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	chunks, err := s.chunkRepo.ListByDocumentIDs(documentIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRetrieval, err)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	type scoredChunk struct {
		chunk model.Chunk
		score float32
	}
	scored := make([]scoredChunk, 0, len(chunks))
	for i := range chunks {
		scored = append(scored, scoredChunk{
			chunk: chunks[i],
			score: cosineSimilarity(queryVec, chunks[i].EmbeddingVector()),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})
	if topK > len(scored) {
		topK = len(scored)
	}

	texts := make([]string, topK)
	for i := 0; i < topK; i++ {
		texts[i] = scored[i].chunk.Text
	}
	return texts, nil
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
