package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"UPLOAD_CONCURRENCY", "AI_PROVIDER", "STORAGE_BACKEND", "AI_TIMEOUT", "PUBLIC_URL", "MAX_UPLOAD_BYTES"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.UploadConcurrency != 3 {
		t.Fatalf("expected default upload concurrency 3, got %d", cfg.UploadConcurrency)
	}
	if cfg.AIProvider != "openai" {
		t.Fatalf("expected default provider openai, got %q", cfg.AIProvider)
	}
	if cfg.StorageBackend != "local" {
		t.Fatalf("expected default storage backend local, got %q", cfg.StorageBackend)
	}
	if cfg.AITimeout != 60*time.Second {
		t.Fatalf("expected default ai timeout 60s, got %v", cfg.AITimeout)
	}
	if cfg.MaxUploadBytes != 50<<20 {
		t.Fatalf("expected default max upload 50MB, got %d", cfg.MaxUploadBytes)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("UPLOAD_CONCURRENCY", "5")
	t.Setenv("AI_PROVIDER", "Vertex")
	t.Setenv("AI_TIMEOUT", "90")
	t.Setenv("RETRY_BASE_DELAY", "250ms")
	t.Setenv("AI_TEMPERATURE", "0.7")
	t.Setenv("PUBLIC_URL", "https://aid.example.edu/")

	cfg := Load()
	if cfg.UploadConcurrency != 5 {
		t.Fatalf("expected upload concurrency 5, got %d", cfg.UploadConcurrency)
	}
	if cfg.AIProvider != "vertex" {
		t.Fatalf("expected provider vertex, got %q", cfg.AIProvider)
	}
	if cfg.AITimeout != 90*time.Second {
		t.Fatalf("expected ai timeout 90s, got %v", cfg.AITimeout)
	}
	if cfg.RetryBaseDelay != 250*time.Millisecond {
		t.Fatalf("expected retry base delay 250ms, got %v", cfg.RetryBaseDelay)
	}
	if cfg.AITemperature != 0.7 {
		t.Fatalf("expected temperature 0.7, got %v", cfg.AITemperature)
	}
	if cfg.PublicURL != "https://aid.example.edu" {
		t.Fatalf("expected trimmed public url, got %q", cfg.PublicURL)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY", "many")
	t.Setenv("OCR_CACHE_TTL", "soon")

	cfg := Load()
	if cfg.WorkerConcurrency != 4 {
		t.Fatalf("expected fallback worker concurrency 4, got %d", cfg.WorkerConcurrency)
	}
	if cfg.OCRCacheTTL != 24*time.Hour {
		t.Fatalf("expected fallback cache ttl 24h, got %v", cfg.OCRCacheTTL)
	}
}
