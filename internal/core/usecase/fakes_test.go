package usecase

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"iter"
	"sync"
	"time"

	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

type statusCall struct {
	id     string
	status domain.DocumentStatus
	errMsg string
}

type docRepoFake struct {
	mu          sync.Mutex
	docs        map[string]*domain.DocumentMetadata
	users       map[string]bool
	statusCalls []statusCall
	classified  map[string]domain.DocumentType
	createErr   error
	getErr      error
	statusErr   error
}

func newDocRepoFake(docs ...*domain.DocumentMetadata) *docRepoFake {
	f := &docRepoFake{
		docs:       make(map[string]*domain.DocumentMetadata),
		users:      make(map[string]bool),
		classified: make(map[string]domain.DocumentType),
	}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (f *docRepoFake) EnsureUser(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.users[userID] = true
	return nil
}

func (f *docRepoFake) Create(_ context.Context, doc *domain.DocumentMetadata) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copyDoc := *doc
	f.docs[doc.ID] = &copyDoc
	return nil
}

func (f *docRepoFake) GetByID(_ context.Context, id string) (*domain.DocumentMetadata, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", errors.New(id))
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *docRepoFake) ListByUser(_ context.Context, userID string, statuses ...domain.DocumentStatus) ([]domain.DocumentMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.DocumentMetadata
	for _, d := range f.docs {
		if d.UserID != userID {
			continue
		}
		if len(statuses) > 0 {
			match := false
			for _, s := range statuses {
				if d.Status == s {
					match = true
				}
			}
			if !match {
				continue
			}
		}
		out = append(out, *d)
	}
	// deterministic order: upload time
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].UploadedAt.Before(out[j-1].UploadedAt); j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out, nil
}

func (f *docRepoFake) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls = append(f.statusCalls, statusCall{id: id, status: status, errMsg: errMessage})
	if f.statusErr != nil {
		return f.statusErr
	}
	if d, ok := f.docs[id]; ok {
		d.Status = status
		d.Error = errMessage
	}
	return nil
}

func (f *docRepoFake) SetClassifiedType(_ context.Context, id string, docType domain.DocumentType) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.classified[id] = docType
	if d, ok := f.docs[id]; ok {
		d.ClassifiedType = docType
	}
	return nil
}

func (f *docRepoFake) SoftDelete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.docs[id]; !ok {
		return domain.ErrDocumentNotFound
	}
	delete(f.docs, id)
	return nil
}

func (f *docRepoFake) lastStatus() domain.DocumentStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.statusCalls) == 0 {
		return ""
	}
	return f.statusCalls[len(f.statusCalls)-1].status
}

type storageFake struct {
	mu      sync.Mutex
	objects map[string][]byte
	deleted []string
	saveErr error
	active  int
	peak    int
	hold    chan struct{}
}

func newStorageFake() *storageFake {
	return &storageFake{objects: make(map[string][]byte)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) (domain.BlobObject, error) {
	f.mu.Lock()
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	hold := f.hold
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if hold != nil {
		<-hold
	}
	if f.saveErr != nil {
		return domain.BlobObject{}, f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return domain.BlobObject{}, err
	}
	sum := sha256.Sum256(raw)
	f.mu.Lock()
	f.objects[key] = raw
	f.mu.Unlock()
	return domain.BlobObject{Key: key, Size: int64(len(raw)), SHA256: hex.EncodeToString(sum[:])}, nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	raw, ok := f.objects[key]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "open", errors.New(key))
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *storageFake) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.deleted = append(f.deleted, key)
	return nil
}

func (f *storageFake) TemporaryURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	return "https://blobs.example/" + key + "?ttl=" + ttl.String(), nil
}

type queueFake struct {
	mu        sync.Mutex
	jobs      []domain.JobMessage
	cancelled []string
	err       error
}

func (f *queueFake) PublishJob(_ context.Context, job domain.JobMessage) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *queueFake) PublishCancel(_ context.Context, jobID string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, jobID)
	return nil
}

type eventsFake struct {
	mu     sync.Mutex
	events []domain.JobEvent
}

func (f *eventsFake) PublishJobEvent(_ context.Context, event domain.JobEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

func (f *eventsFake) statuses() []domain.JobStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.JobStatus, 0, len(f.events))
	for _, e := range f.events {
		out = append(out, e.Status)
	}
	return out
}

type auditFake struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (f *auditFake) Record(_ context.Context, event domain.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type notifierFake struct {
	mu   sync.Mutex
	sent []domain.Notification
}

func (f *notifierFake) Notify(_ context.Context, n domain.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return nil
}

type ocrRepoFake struct {
	mu      sync.Mutex
	results map[string]*domain.OCRResult
	saves   int
}

func newOCRRepoFake() *ocrRepoFake {
	return &ocrRepoFake{results: make(map[string]*domain.OCRResult)}
}

func (f *ocrRepoFake) SaveOCRResult(_ context.Context, result *domain.OCRResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copyResult := *result
	f.results[result.DocumentID] = &copyResult
	f.saves++
	return nil
}

func (f *ocrRepoFake) GetOCRResult(_ context.Context, documentID string) (*domain.OCRResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.results[documentID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "get ocr result", errors.New(documentID))
	}
	copyResult := *r
	return &copyResult, nil
}

type engineFake struct {
	extraction *domain.OCRExtraction
	err        error
	calls      int
}

func (f *engineFake) Name() string { return "fake" }

func (f *engineFake) Extract(context.Context, *domain.DocumentMetadata, []byte) (*domain.OCRExtraction, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.extraction, nil
}

// ocrReaderFake serves canned OCR results keyed by document id.
type ocrReaderFake struct {
	mu      sync.Mutex
	results map[string]*domain.OCRResult
	err     error
	calls   int
}

func (f *ocrReaderFake) Get(_ context.Context, documentID string) (*domain.OCRResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	r, ok := f.results[documentID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "ocr", errors.New(documentID))
	}
	return r, nil
}

func (f *ocrReaderFake) Process(ctx context.Context, documentID string, _ domain.DocumentType) (*domain.OCRResult, error) {
	return f.Get(ctx, documentID)
}

type verificationRepoFake struct {
	mu       sync.Mutex
	byDoc    map[string]*domain.VerificationResult
	replaced int
	err      error
}

func newVerificationRepoFake() *verificationRepoFake {
	return &verificationRepoFake{byDoc: make(map[string]*domain.VerificationResult)}
}

func (f *verificationRepoFake) ReplaceVerification(_ context.Context, result *domain.VerificationResult) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	copyResult := *result
	f.byDoc[result.DocumentID] = &copyResult
	f.replaced++
	return nil
}

func (f *verificationRepoFake) UpdateVerification(_ context.Context, result *domain.VerificationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	copyResult := *result
	f.byDoc[result.DocumentID] = &copyResult
	return nil
}

func (f *verificationRepoFake) LatestVerification(_ context.Context, documentID string) (*domain.VerificationResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byDoc[documentID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "latest verification", errors.New(documentID))
	}
	copyResult := *r
	return &copyResult, nil
}

type prepopRepoFake struct {
	saved map[domain.FormType]*domain.PrePopulationResult
}

func (f *prepopRepoFake) SavePrePopulation(_ context.Context, result *domain.PrePopulationResult) error {
	if f.saved == nil {
		f.saved = make(map[domain.FormType]*domain.PrePopulationResult)
	}
	f.saved[result.FormType] = result
	return nil
}

func (f *prepopRepoFake) GetPrePopulation(_ context.Context, _ string, formType domain.FormType) (*domain.PrePopulationResult, error) {
	r, ok := f.saved[formType]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return r, nil
}

type chatProviderFake struct {
	reply    string
	err      error
	received [][]domain.ChatMessage
}

func (f *chatProviderFake) Name() string { return "fake" }

func (f *chatProviderFake) Complete(_ context.Context, messages []domain.ChatMessage) (*domain.ChatCompletion, error) {
	f.received = append(f.received, messages)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ChatCompletion{
		Content: f.reply,
		Model:   "fake-model",
		Usage:   domain.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

func (f *chatProviderFake) Health(context.Context) error { return f.err }

type streamingProviderFake struct {
	chatProviderFake
	chunks []string
}

func (f *streamingProviderFake) Stream(_ context.Context, messages []domain.ChatMessage) iter.Seq2[string, error] {
	f.received = append(f.received, messages)
	return func(yield func(string, error) bool) {
		for _, c := range f.chunks {
			if !yield(c, nil) {
				return
			}
		}
	}
}
