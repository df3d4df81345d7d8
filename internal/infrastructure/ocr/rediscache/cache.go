package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

const (
	keyPrefix  = "finaid:ocr:"
	DefaultTTL = 24 * time.Hour
)

// Cache stores completed OCR results as JSON under finaid:ocr:<document id>.
type Cache struct {
	rdb *goredis.Client
	ttl time.Duration
}

func New(rdb *goredis.Client, ttl time.Duration) (*Cache, error) {
	if rdb == nil {
		return nil, errors.New("rediscache: client is required")
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{rdb: rdb, ttl: ttl}, nil
}

func (c *Cache) Get(ctx context.Context, documentID string) (*domain.OCRResult, bool, error) {
	raw, err := c.rdb.Get(ctx, key(documentID)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get ocr result: %w", err)
	}
	result, err := decode(raw)
	if err != nil {
		return nil, false, err
	}
	return result, true, nil
}

// Put caches completed results only; failed runs must be retried.
func (c *Cache) Put(ctx context.Context, result *domain.OCRResult) error {
	if result == nil || result.Status != domain.OCRCompleted {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal ocr result: %w", err)
	}
	if err := c.rdb.Set(ctx, key(result.DocumentID), raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set ocr result: %w", err)
	}
	return nil
}

func (c *Cache) Invalidate(ctx context.Context, documentID string) error {
	if err := c.rdb.Del(ctx, key(documentID)).Err(); err != nil {
		return fmt.Errorf("redis del ocr result: %w", err)
	}
	return nil
}

func key(documentID string) string {
	return keyPrefix + documentID
}

func decode(raw []byte) (*domain.OCRResult, error) {
	var result domain.OCRResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("decode cached ocr result: %w", err)
	}
	return &result, nil
}
