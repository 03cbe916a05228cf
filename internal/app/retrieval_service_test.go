package app

import (
	"context"
	"errors"
	"math"
	"testing"

	"prepai/internal/model"
	"prepai/internal/platform/logger"
	"prepai/internal/repository"
)

func TestRetrieveRanksByCosineSimilarity(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "u@example.com")
	resume := seedDocument(t, db, user.ID, model.DocumentTypeResume, "resume.pdf")
	jd := seedDocument(t, db, user.ID, model.DocumentTypeJD, "jd.pdf")

	// Query points along the x axis; the resume chunk matches best, the JD
	// chunk is close, the noise chunk is orthogonal.
	seedChunk(t, db, resume, "built Go services", []float32{1, 0, 0})
	seedChunk(t, db, jd, "looking for Go engineer", []float32{0.9, 0.4, 0})
	seedChunk(t, db, resume, "enjoys gardening", []float32{0, 0, 1})

	embedder := &fakeEmbedder{byText: map[string][]float32{
		"what did you build?": {1, 0, 0},
	}}
	svc := NewRetrievalService(repository.NewChunkRepository(db), embedder, logger.NewNop())

	texts, err := svc.Retrieve(context.Background(), "what did you build?", []uint{resume.ID, jd.ID}, 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(texts) != 2 {
		t.Fatalf("want 2 results, got %d", len(texts))
	}
	if texts[0] != "built Go services" || texts[1] != "looking for Go engineer" {
		t.Fatalf("wrong ranking: %q", texts)
	}
}

func TestRetrieveClampsTopKAndHandlesEmptyScope(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "u@example.com")
	resume := seedDocument(t, db, user.ID, model.DocumentTypeResume, "resume.pdf")
	seedChunk(t, db, resume, "only chunk", []float32{1, 0, 0})

	embedder := &fakeEmbedder{defaultVec: []float32{1, 0, 0}}
	svc := NewRetrievalService(repository.NewChunkRepository(db), embedder, logger.NewNop())
	ctx := context.Background()

	texts, err := svc.Retrieve(ctx, "q", []uint{resume.ID}, 10)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(texts) != 1 {
		t.Fatalf("topK clamp: want 1 got %d", len(texts))
	}

	texts, err = svc.Retrieve(ctx, "q", nil, 2)
	if err != nil || texts != nil {
		t.Fatalf("empty scope: want nil/nil, got %v/%v", texts, err)
	}

	texts, err = svc.Retrieve(ctx, "q", []uint{resume.ID + 99}, 2)
	if err != nil || texts != nil {
		t.Fatalf("no chunks: want nil/nil, got %v/%v", texts, err)
	}
}

func TestRetrieveWrapsEmbedderFailure(t *testing.T) {
	db := newTestDB(t)
	user := seedUser(t, db, "u@example.com")
	resume := seedDocument(t, db, user.ID, model.DocumentTypeResume, "resume.pdf")

	embedder := &fakeEmbedder{embedErr: errors.New("quota exceeded")}
	svc := NewRetrievalService(repository.NewChunkRepository(db), embedder, logger.NewNop())

	_, err := svc.Retrieve(context.Background(), "q", []uint{resume.ID}, 2)
	if !errors.Is(err, ErrEmbedding) {
		t.Fatalf("want ErrEmbedding, got %v", err)
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float32
	}{
		{name: "identical", a: []float32{1, 2, 3}, b: []float32{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float32{1, 0}, b: []float32{0, 1}, want: 0},
		{name: "opposite", a: []float32{1, 0}, b: []float32{-1, 0}, want: -1},
		{name: "length mismatch", a: []float32{1, 0}, b: []float32{1, 0, 0}, want: 0},
		{name: "zero vector", a: []float32{0, 0}, b: []float32{1, 1}, want: 0},
		{name: "empty", a: nil, b: nil, want: 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := cosineSimilarity(tc.a, tc.b)
			if math.Abs(float64(got-tc.want)) > 1e-6 {
				t.Fatalf("want=%v got=%v", tc.want, got)
			}
		})
	}
}
