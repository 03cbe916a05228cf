package app

import (
	"context"
	"io"

	"prepai/internal/ai"
	"prepai/internal/model"
)

// External collaborators the services depend on. Every call carries the
// request context explicitly; none of these hold per-request state.

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Generator interface {
	Complete(ctx context.Context, messages []ai.ChatMessage) (string, error)
}

type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, data []byte) (string, error)
	Delete(ctx context.Context, key string) error
}

// TextExtractor turns raw document bytes into plain text.
type TextExtractor func(r io.Reader) (string, error)

type TurnEventPublisher interface {
	Publish(ctx context.Context, event model.TurnEvent) error
}

type TranscriptCache interface {
	GetTranscript(ctx context.Context, chatID uint) ([]model.Message, bool, error)
	SetTranscript(ctx context.Context, chatID uint, messages []model.Message) error
	Invalidate(ctx context.Context, chatID uint) error
	MarkDirty(ctx context.Context, chatID uint) error
	IsDirty(ctx context.Context, chatID uint) (bool, error)
}
