package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
	"github.com/kirillkom/finaid-assistant/internal/core/filecheck"
)

var pdfBody = "%PDF-1.7\nForm 1040 adjusted gross income"

func newIngestForTest(repo *docRepoFake, storage *storageFake, queue *queueFake, events *eventsFake) *IngestDocumentUseCase {
	return NewIngestDocumentUseCase(repo, storage, queue, events, &auditFake{}, filecheck.DefaultPolicy(), 3, nil)
}

func uploadRequest(name string, size int) domain.UploadRequest {
	return domain.UploadRequest{
		UserID:       "user-1",
		FileName:     name,
		ContentType:  "application/pdf",
		SizeBytes:    int64(size),
		DeclaredType: domain.DocTypeTaxReturn,
	}
}

func TestIngestUploadSuccess(t *testing.T) {
	repo := newDocRepoFake()
	storage := newStorageFake()
	queue := &queueFake{}
	events := &eventsFake{}
	uc := newIngestForTest(repo, storage, queue, events)

	res, err := uc.Upload(context.Background(), uploadRequest("tax return 2023.pdf", len(pdfBody)), bytes.NewBufferString(pdfBody))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if res.Document.ID == "" || res.JobID == "" {
		t.Fatalf("expected document and job ids, got %+v", res)
	}
	if res.Document.Status != domain.StatusUploaded {
		t.Fatalf("expected status uploaded, got %s", res.Document.Status)
	}
	if res.Size != int64(len(pdfBody)) || len(res.Hash) != 64 {
		t.Fatalf("unexpected blob metadata: size=%d hash=%q", res.Size, res.Hash)
	}
	if !strings.HasSuffix(res.BlobPath, "_tax_return_2023.pdf") || !strings.HasPrefix(res.BlobPath, "user-1/") {
		t.Fatalf("expected sanitized key, got %s", res.BlobPath)
	}
	if string(storage.objects[res.BlobPath]) != pdfBody {
		t.Fatalf("expected full body stored, got %q", storage.objects[res.BlobPath])
	}
	if !repo.users["user-1"] {
		t.Fatalf("expected user to be ensured")
	}
	if len(queue.jobs) != 1 || queue.jobs[0].DocumentID != res.Document.ID || queue.jobs[0].DeclaredType != domain.DocTypeTaxReturn {
		t.Fatalf("unexpected queued jobs: %+v", queue.jobs)
	}
	if got := events.statuses(); len(got) != 1 || got[0] != domain.JobQueued {
		t.Fatalf("expected queued event, got %v", got)
	}
}

func TestIngestUploadRejectsInvalidFile(t *testing.T) {
	repo := newDocRepoFake()
	storage := newStorageFake()
	uc := newIngestForTest(repo, storage, &queueFake{}, &eventsFake{})

	_, err := uc.Upload(context.Background(), uploadRequest("setup.exe", len(pdfBody)), bytes.NewBufferString(pdfBody))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if len(storage.objects) != 0 {
		t.Fatalf("expected nothing stored")
	}
}

func TestIngestUploadRejectsStreamLargerThanDeclared(t *testing.T) {
	repo := newDocRepoFake()
	storage := newStorageFake()
	policy := filecheck.Policy{AllowedExtensions: []string{"pdf"}, MaxSizeBytes: 16}
	uc := NewIngestDocumentUseCase(repo, storage, &queueFake{}, &eventsFake{}, nil, policy, 3, nil)

	_, err := uc.Upload(context.Background(), uploadRequest("return.pdf", 10), bytes.NewBufferString(pdfBody))
	if !errors.Is(err, filecheck.ErrTooLarge) {
		t.Fatalf("expected too large error, got %v", err)
	}
	if len(storage.objects) != 0 || len(storage.deleted) != 1 {
		t.Fatalf("expected stored blob to be discarded, objects=%d deleted=%v", len(storage.objects), storage.deleted)
	}
}

func TestIngestUploadQueueError(t *testing.T) {
	repo := newDocRepoFake()
	uc := newIngestForTest(repo, newStorageFake(), &queueFake{err: errors.New("queue down")}, &eventsFake{})

	_, err := uc.Upload(context.Background(), uploadRequest("return.pdf", len(pdfBody)), bytes.NewBufferString(pdfBody))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "publish upload job") {
		t.Fatalf("expected publish error, got %v", err)
	}
	if repo.lastStatus() != domain.StatusFailed {
		t.Fatalf("expected document marked failed, got %s", repo.lastStatus())
	}
}

func TestIngestUploadRequiresUser(t *testing.T) {
	uc := newIngestForTest(newDocRepoFake(), newStorageFake(), &queueFake{}, &eventsFake{})
	req := uploadRequest("return.pdf", len(pdfBody))
	req.UserID = " "
	if _, err := uc.Upload(context.Background(), req, bytes.NewBufferString(pdfBody)); !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestIngestUploadLimitsConcurrentWrites(t *testing.T) {
	storage := newStorageFake()
	storage.hold = make(chan struct{})
	uc := newIngestForTest(newDocRepoFake(), storage, &queueFake{}, &eventsFake{})

	const uploads = 6
	var wg sync.WaitGroup
	errs := make(chan error, uploads)
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := uc.Upload(context.Background(), uploadRequest("return.pdf", len(pdfBody)), bytes.NewBufferString(pdfBody))
			errs <- err
		}()
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		storage.mu.Lock()
		active := storage.active
		storage.mu.Unlock()
		if active == 3 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	close(storage.hold)
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("unexpected upload error: %v", err)
		}
	}
	if storage.peak != 3 {
		t.Fatalf("expected at most 3 concurrent writes, peak=%d", storage.peak)
	}
}

func TestIngestUploadWaitHonoursContext(t *testing.T) {
	storage := newStorageFake()
	storage.hold = make(chan struct{})
	defer close(storage.hold)
	uc := NewIngestDocumentUseCase(newDocRepoFake(), storage, &queueFake{}, &eventsFake{}, nil, filecheck.DefaultPolicy(), 1, nil)

	go func() {
		_, _ = uc.Upload(context.Background(), uploadRequest("return.pdf", len(pdfBody)), bytes.NewBufferString(pdfBody))
	}()
	for {
		storage.mu.Lock()
		active := storage.active
		storage.mu.Unlock()
		if active == 1 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := uc.Upload(ctx, uploadRequest("return.pdf", len(pdfBody)), bytes.NewBufferString(pdfBody))
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error while waiting for slot, got %v", err)
	}
}
