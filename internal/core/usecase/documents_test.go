package usecase

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

func newDocumentFilesFixture() (*DocumentFilesUseCase, *docRepoFake, *storageFake) {
	doc := &domain.DocumentMetadata{ID: "doc-1", UserID: "user-1", FileName: "w2.pdf", StoragePath: "user-1/doc-1_w2.pdf"}
	repo := newDocRepoFake(doc)
	storage := newStorageFake()
	storage.objects[doc.StoragePath] = []byte("%PDF-1.4 body")
	return NewDocumentFilesUseCase(repo, storage, nil, &auditFake{}, nil), repo, storage
}

func TestDocumentDownload(t *testing.T) {
	uc, _, _ := newDocumentFilesFixture()
	doc, rc, err := uc.Download(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("Download() error = %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if doc.FileName != "w2.pdf" || string(body) != "%PDF-1.4 body" {
		t.Fatalf("unexpected download: %s %q", doc.FileName, body)
	}
}

func TestDocumentDelete(t *testing.T) {
	uc, repo, storage := newDocumentFilesFixture()

	ok, err := uc.Delete(context.Background(), "doc-1")
	if err != nil || !ok {
		t.Fatalf("Delete() = %v, %v", ok, err)
	}
	if len(storage.objects) != 0 {
		t.Fatalf("expected blob removed")
	}
	if _, err := repo.GetByID(context.Background(), "doc-1"); err == nil {
		t.Fatalf("expected metadata soft-deleted")
	}

	ok, err = uc.Delete(context.Background(), "doc-1")
	if err != nil || ok {
		t.Fatalf("expected second delete to report false, got %v, %v", ok, err)
	}
}

func TestDocumentTemporaryURL(t *testing.T) {
	uc, _, _ := newDocumentFilesFixture()

	u, err := uc.TemporaryURL(context.Background(), "doc-1", 0)
	if err != nil {
		t.Fatalf("TemporaryURL() error = %v", err)
	}
	if !strings.Contains(u.URL, "doc-1_w2.pdf") || !strings.Contains(u.URL, "ttl=15m0s") {
		t.Fatalf("unexpected url %q", u.URL)
	}
	if time.Until(u.ExpiresAt) <= 14*time.Minute {
		t.Fatalf("unexpected expiry %v", u.ExpiresAt)
	}

	if _, err := uc.TemporaryURL(context.Background(), "doc-1", 8*24*time.Hour); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ttl validation error, got %v", err)
	}
}
