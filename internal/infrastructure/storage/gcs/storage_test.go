package gcs

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/storage"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

func TestContentTypeForKey(t *testing.T) {
	cases := map[string]string{
		"u/doc_return.PDF": "application/pdf",
		"u/doc_scan.tif":   "image/tiff",
		"u/doc_card.jpeg":  "image/jpeg",
		"u/doc_noext":      "application/octet-stream",
	}
	for key, want := range cases {
		if got := contentTypeForKey(key); got != want {
			t.Fatalf("contentTypeForKey(%q) = %q, want %q", key, got, want)
		}
	}
}

func TestMapErrorNotFound(t *testing.T) {
	if err := mapError("open object", storage.ErrObjectNotExist); !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected not found kind, got %v", err)
	}
	other := errors.New("boom")
	if err := mapError("open object", other); domain.IsKind(err, domain.ErrNotFound) || !errors.Is(err, other) {
		t.Fatalf("unexpected mapping %v", err)
	}
}

func TestNewRequiresBucket(t *testing.T) {
	if _, err := New(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty bucket")
	}
}
