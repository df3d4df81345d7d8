package httpadapter

import (
	"context"
	"io"
	"iter"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/finaid-assistant/internal/config"
	"github.com/kirillkom/finaid-assistant/internal/core/domain"
)

type ingestFake struct {
	err     error
	lastReq domain.UploadRequest
	body    string
}

func (f *ingestFake) Upload(_ context.Context, req domain.UploadRequest, body io.Reader) (*domain.UploadResult, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}
	f.lastReq = req
	f.body = string(raw)
	if f.err != nil {
		return nil, f.err
	}
	return &domain.UploadResult{
		Document: &domain.DocumentMetadata{ID: "doc-1", UserID: req.UserID, FileName: req.FileName, Status: domain.StatusUploaded},
		JobID:    "job-1",
		Size:     int64(len(raw)),
	}, nil
}

type filesFake struct {
	err     error
	deleted bool
	ttl     time.Duration
}

func (f *filesFake) Get(_ context.Context, id string) (*domain.DocumentMetadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.DocumentMetadata{ID: id, FileName: "w2.pdf", ContentType: "application/pdf", Status: domain.StatusProcessed}, nil
}

func (f *filesFake) Download(ctx context.Context, id string) (*domain.DocumentMetadata, io.ReadCloser, error) {
	doc, err := f.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	doc.SizeBytes = int64(len("%PDF-1.7"))
	return doc, io.NopCloser(strings.NewReader("%PDF-1.7")), nil
}

func (f *filesFake) Delete(context.Context, string) (bool, error) {
	return f.deleted, f.err
}

func (f *filesFake) TemporaryURL(_ context.Context, _ string, ttl time.Duration) (*domain.TemporaryURL, error) {
	f.ttl = ttl
	if f.err != nil {
		return nil, f.err
	}
	return &domain.TemporaryURL{URL: "http://localhost/v1/blobs/k?expires=1&sig=x", ExpiresAt: time.Now().Add(ttl)}, nil
}

type ocrFake struct {
	err      error
	declared domain.DocumentType
}

func (f *ocrFake) Get(_ context.Context, id string) (*domain.OCRResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.OCRResult{DocumentID: id, Status: domain.OCRCompleted}, nil
}

func (f *ocrFake) Process(ctx context.Context, id string, declared domain.DocumentType) (*domain.OCRResult, error) {
	f.declared = declared
	return f.Get(ctx, id)
}

type classifierFake struct{}

func (classifierFake) Classify(_ context.Context, id string) domain.ClassificationResult {
	return domain.ClassificationResult{DocumentID: id, DocumentType: domain.DocTypeW2, Confidence: 0.8}
}

func (c classifierFake) ClassifyBatch(ctx context.Context, ids []string) []domain.ClassificationResult {
	out := make([]domain.ClassificationResult, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.Classify(ctx, id))
	}
	return out
}

type verifierFake struct {
	err          error
	lastReviewer string
	lastNotes    string
	lastType     domain.VerificationType
}

func (f *verifierFake) Verify(_ context.Context, id string, vt domain.VerificationType) *domain.VerificationResult {
	f.lastType = vt
	return &domain.VerificationResult{DocumentID: id, Status: domain.VerificationAutoApproved}
}

func (f *verifierFake) Approve(_ context.Context, id, reviewer, notes string) (*domain.VerificationResult, error) {
	f.lastReviewer, f.lastNotes = reviewer, notes
	if f.err != nil {
		return nil, f.err
	}
	return &domain.VerificationResult{DocumentID: id, Status: domain.VerificationApproved, ReviewedBy: reviewer}, nil
}

func (f *verifierFake) Reject(_ context.Context, id, reviewer, reason string) (*domain.VerificationResult, error) {
	f.lastReviewer, f.lastNotes = reviewer, reason
	if f.err != nil {
		return nil, f.err
	}
	return &domain.VerificationResult{DocumentID: id, Status: domain.VerificationRejected, ReviewedBy: reviewer}, nil
}

func (f *verifierFake) Latest(_ context.Context, id string) (*domain.VerificationResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.VerificationResult{DocumentID: id}, nil
}

type formsFake struct {
	err error
}

func (f *formsFake) Generate(_ context.Context, userID string, formType domain.FormType) (*domain.PrePopulationResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.PrePopulationResult{UserID: userID, FormType: formType, Fields: map[string]any{"student_agi": 52000.0}}, nil
}

func (f *formsFake) Get(ctx context.Context, userID string, formType domain.FormType) (*domain.PrePopulationResult, error) {
	return f.Generate(ctx, userID, formType)
}

func (f *formsFake) Export(_ context.Context, _ string, _ domain.FormType, w io.Writer) error {
	if f.err != nil {
		return f.err
	}
	_, err := io.WriteString(w, "PK-workbook")
	return err
}

type assistantFake struct {
	err       error
	chunks    []string
	streamErr error
	healthErr error
}

func (f *assistantFake) Chat(_ context.Context, req domain.ChatRequest) (*domain.ChatReply, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.ChatReply{Content: "Report your AGI from line 11.", Usage: domain.TokenUsage{PromptTokens: 10, CompletionTokens: 7}}, nil
}

func (f *assistantFake) Stream(context.Context, domain.ChatRequest) (iter.Seq2[string, error], error) {
	if f.err != nil {
		return nil, f.err
	}
	return func(yield func(string, error) bool) {
		for _, chunk := range f.chunks {
			if !yield(chunk, nil) {
				return
			}
		}
		if f.streamErr != nil {
			yield("", f.streamErr)
		}
	}, nil
}

func (f *assistantFake) Health(context.Context) error { return f.healthErr }

type progressFake struct{}

func (progressFake) Summary(_ context.Context, userID string) (*domain.ProgressSummary, error) {
	return &domain.ProgressSummary{UserID: userID, StepsCompleted: 2, StepsTotal: 5, CompletionPercent: 40}, nil
}

type jobsFake struct {
	events    []domain.JobEvent
	cancelled string
	err       error
}

func (f *jobsFake) Events(context.Context, string) (<-chan domain.JobEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	ch := make(chan domain.JobEvent, len(f.events))
	for _, e := range f.events {
		ch <- e
	}
	close(ch)
	return ch, nil
}

func (f *jobsFake) Cancel(_ context.Context, jobID string) error {
	f.cancelled = jobID
	return f.err
}

type blobsFake struct {
	verifyErr error
	lastKey   string
}

func (f *blobsFake) Verify(key, _, _ string) error {
	f.lastKey = key
	return f.verifyErr
}

func (f *blobsFake) Open(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("%PDF-1.7")), nil
}

type testServices struct {
	ingest    *ingestFake
	files     *filesFake
	ocr       *ocrFake
	verifier  *verifierFake
	forms     *formsFake
	assistant *assistantFake
	jobs      *jobsFake
	blobs     *blobsFake
}

func newTestServices() *testServices {
	return &testServices{
		ingest:    &ingestFake{},
		files:     &filesFake{deleted: true},
		ocr:       &ocrFake{},
		verifier:  &verifierFake{},
		forms:     &formsFake{},
		assistant: &assistantFake{chunks: []string{"Hello", " there"}},
		jobs:      &jobsFake{},
		blobs:     &blobsFake{},
	}
}

func (s *testServices) handler(cfg config.Config) http.Handler {
	return NewRouter(cfg, Services{
		Ingest:     s.ingest,
		Files:      s.files,
		OCR:        s.ocr,
		Classifier: classifierFake{},
		Verifier:   s.verifier,
		Forms:      s.forms,
		Assistant:  s.assistant,
		Progress:   progressFake{},
		Jobs:       s.jobs,
		Blobs:      s.blobs,
	}, nil).Handler()
}

func newTestHandler(cfg config.Config) http.Handler {
	return newTestServices().handler(cfg)
}
