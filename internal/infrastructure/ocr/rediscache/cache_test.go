package rediscache

import (
	"context"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := decode([]byte("{not json")); err == nil {
		t.Fatalf("expected decode error")
	}
	result, err := decode([]byte(`{"document_id":"doc-1","status":"completed","fields":[{"name":"SSN","value":"123-45-6789","data_type":"ssn","confidence":0.9}]}`))
	if err != nil {
		t.Fatalf("decode() error = %v", err)
	}
	if result.DocumentID != "doc-1" || len(result.Fields) != 1 || result.Fields[0].DataType != domain.FieldSSN {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestNewDefaults(t *testing.T) {
	if _, err := New(nil, time.Minute); err == nil {
		t.Fatalf("expected error without client")
	}
	c, err := New(goredis.NewClient(&goredis.Options{Addr: "127.0.0.1:0"}), 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if c.ttl != DefaultTTL || key("doc-1") != "finaid:ocr:doc-1" {
		t.Fatalf("unexpected cache config ttl=%v key=%s", c.ttl, key("doc-1"))
	}
}

// TestCacheAgainstRedis runs only when REDIS_ADDR points at a live server.
func TestCacheAgainstRedis(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	defer rdb.Close()
	c, _ := New(rdb, time.Minute)
	ctx := context.Background()
	id := "test-" + time.Now().Format("150405.000000000")

	if err := c.Put(ctx, &domain.OCRResult{DocumentID: id, Status: domain.OCRFailed}); err != nil {
		t.Fatalf("Put(failed) error = %v", err)
	}
	if _, ok, _ := c.Get(ctx, id); ok {
		t.Fatalf("failed results must not be cached")
	}

	if err := c.Put(ctx, &domain.OCRResult{DocumentID: id, Status: domain.OCRCompleted, RawText: "w-2"}); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, ok, err := c.Get(ctx, id)
	if err != nil || !ok || got.RawText != "w-2" {
		t.Fatalf("Get() = %+v, %v, %v", got, ok, err)
	}
	if err := c.Invalidate(ctx, id); err != nil {
		t.Fatalf("Invalidate() error = %v", err)
	}
	if _, ok, _ := c.Get(ctx, id); ok {
		t.Fatalf("expected cache miss after invalidate")
	}
}
