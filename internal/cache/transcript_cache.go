package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"

	"prepai/internal/model"
)

// TranscriptCache keeps full chat transcripts in redis for a short TTL.
// A dirty marker set on every append suppresses caching until the marker
// expires, so a stale transcript is never re-cached mid-turn.
type TranscriptCache struct {
	client         *redisv9.Client
	transcriptTTL  time.Duration
	dirtyMarkerTTL time.Duration
}

func NewTranscriptCache(client *redisv9.Client, transcriptTTL, dirtyMarkerTTL time.Duration) *TranscriptCache {
	if transcriptTTL <= 0 {
		transcriptTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &TranscriptCache{
		client:         client,
		transcriptTTL:  transcriptTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
	}
}

func (c *TranscriptCache) GetTranscript(ctx context.Context, chatID uint) ([]model.Message, bool, error) {
	raw, err := c.client.Get(ctx, c.transcriptKey(chatID)).Result()
	if err == redisv9.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get transcript failed: %w", err)
	}

	var messages []model.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached transcript failed: %w", err)
	}
	return messages, true, nil
}

func (c *TranscriptCache) SetTranscript(ctx context.Context, chatID uint, messages []model.Message) error {
	payload, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("marshal transcript cache failed: %w", err)
	}
	if err := c.client.Set(ctx, c.transcriptKey(chatID), payload, c.transcriptTTL).Err(); err != nil {
		return fmt.Errorf("redis set transcript failed: %w", err)
	}
	return nil
}

func (c *TranscriptCache) Invalidate(ctx context.Context, chatID uint) error {
	if err := c.client.Del(ctx, c.transcriptKey(chatID)).Err(); err != nil {
		return fmt.Errorf("redis delete transcript failed: %w", err)
	}
	return nil
}

func (c *TranscriptCache) MarkDirty(ctx context.Context, chatID uint) error {
	if err := c.client.Set(ctx, c.dirtyKey(chatID), "1", c.dirtyMarkerTTL).Err(); err != nil {
		return fmt.Errorf("redis set dirty marker failed: %w", err)
	}
	return nil
}

func (c *TranscriptCache) IsDirty(ctx context.Context, chatID uint) (bool, error) {
	exists, err := c.client.Exists(ctx, c.dirtyKey(chatID)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func (c *TranscriptCache) transcriptKey(chatID uint) string {
	return fmt.Sprintf("interview:transcript:%d", chatID)
}

func (c *TranscriptCache) dirtyKey(chatID uint) string {
	return fmt.Sprintf("interview:transcript:dirty:%d", chatID)
}
