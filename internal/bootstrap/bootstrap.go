package bootstrap

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/finaid-assistant/internal/config"
	"github.com/kirillkom/finaid-assistant/internal/core/domain"
	"github.com/kirillkom/finaid-assistant/internal/core/filecheck"
	"github.com/kirillkom/finaid-assistant/internal/core/ports"
	"github.com/kirillkom/finaid-assistant/internal/core/rules"
	"github.com/kirillkom/finaid-assistant/internal/core/usecase"
	rediseventbus "github.com/kirillkom/finaid-assistant/internal/infrastructure/events/redis"
	"github.com/kirillkom/finaid-assistant/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/finaid-assistant/internal/infrastructure/llm/openai"
	"github.com/kirillkom/finaid-assistant/internal/infrastructure/llm/vertex"
	"github.com/kirillkom/finaid-assistant/internal/infrastructure/ocr/documentai"
	"github.com/kirillkom/finaid-assistant/internal/infrastructure/ocr/pdftext"
	"github.com/kirillkom/finaid-assistant/internal/infrastructure/ocr/rediscache"
	"github.com/kirillkom/finaid-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/finaid-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/finaid-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/finaid-assistant/internal/infrastructure/storage/gcs"
	"github.com/kirillkom/finaid-assistant/internal/infrastructure/storage/localfs"
)

// BlobServer serves signed temporary URLs for the local storage backend.
type BlobServer interface {
	Verify(key, expires, sig string) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

type Options struct {
	Logger *slog.Logger
	// Observer receives retry and breaker transitions from every
	// resilience-wrapped dependency.
	Observer resilience.Observer
	// WithAssistant builds the chat provider. The worker never talks to it.
	WithAssistant bool
	// OnVerification, when set, sees the status of every verification run.
	OnVerification func(domain.VerificationStatus)
}

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue    *nats.Queue
	Registry *usecase.JobRegistry
	Blobs    BlobServer

	IngestUC    ports.DocumentIngestor
	FilesUC     ports.DocumentFiles
	OCRUC       ports.OCRReader
	ClassifyUC  ports.DocumentClassifier
	VerifyUC    ports.DocumentVerifier
	FormsUC     ports.FormPrePopulator
	AssistantUC ports.FormAssistant
	ProgressUC  ports.ProgressReader
	JobsUC      ports.JobControl
	ProcessUC   ports.JobProcessor

	closers []func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (_ *App, err error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	app := &App{Config: cfg, Logger: logger, Registry: usecase.NewJobRegistry()}
	defer func() {
		if err != nil {
			app.Close()
		}
	}()

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	app.onClose(func() { _ = db.Close() })
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	catalog, err := loadCatalog(cfg.RulesPath)
	if err != nil {
		return nil, err
	}

	executor := resilience.NewExecutor(resiliencePolicy(cfg),
		resilience.WithLogger(logger),
		resilience.WithObserver(opts.Observer),
	)

	storage, err := app.openStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	rdb, err := openRedis(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.onClose(func() { _ = rdb.Close() })
	ocrCache, err := rediscache.New(rdb, cfg.OCRCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("init ocr cache: %w", err)
	}
	jobEvents, err := rediseventbus.NewJobEventBus(rdb, logger)
	if err != nil {
		return nil, fmt.Errorf("init job events: %w", err)
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, nats.Options{
		JobsSubject:        cfg.NATSJobsSubject,
		CancelSubject:      cfg.NATSCancelSubject,
		NotifySubject:      cfg.NATSNotifySubject,
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	app.onClose(queue.Close)
	app.Queue = queue

	engine, err := app.openOCREngine(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init ocr engine: %w", err)
	}

	docs := postgres.NewDocumentRepository(db)
	audit := postgres.NewAuditRepository(db)

	policy := filecheck.DefaultPolicy()
	if cfg.MaxUploadBytes > 0 {
		policy.MaxSizeBytes = cfg.MaxUploadBytes
	}

	ocrUC := usecase.NewOCRUseCase(docs, storage, engine, postgres.NewOCRRepository(db), ocrCache, logger)
	classifyUC := usecase.NewClassifyDocumentUseCase(docs, ocrUC, catalog, logger)
	var verifyUC ports.DocumentVerifier = usecase.NewVerifyDocumentUseCase(docs, ocrUC, postgres.NewVerificationRepository(db), audit, queue, catalog, logger)
	if opts.OnVerification != nil {
		verifyUC = observedVerifier{DocumentVerifier: verifyUC, observe: opts.OnVerification}
	}

	app.IngestUC = usecase.NewIngestDocumentUseCase(docs, storage, queue, jobEvents, audit, policy, cfg.UploadConcurrency, logger)
	app.FilesUC = usecase.NewDocumentFilesUseCase(docs, storage, ocrCache, audit, logger)
	app.OCRUC = ocrUC
	app.ClassifyUC = classifyUC
	app.VerifyUC = verifyUC
	app.FormsUC = usecase.NewPrePopulateFormUseCase(docs, ocrUC, postgres.NewPrePopulationRepository(db), xlsx.New(), audit, catalog, logger)
	app.ProgressUC = usecase.NewProgressUseCase(postgres.NewProgressRepository(db))
	app.JobsUC = usecase.NewJobControlUseCase(queue, jobEvents)
	app.ProcessUC = usecase.NewProcessDocumentUseCase(docs, ocrUC, classifyUC, verifyUC, jobEvents, logger)

	if opts.WithAssistant {
		provider, err := app.openChatProvider(ctx, cfg, executor)
		if err != nil {
			return nil, fmt.Errorf("init ai provider: %w", err)
		}
		app.AssistantUC = usecase.NewAssistantUseCase(provider, cfg.AssistantMaxHistory, logger)
	}

	logger.Info("bootstrap complete",
		"storage_backend", cfg.StorageBackend,
		"ocr_engine", engine.Name(),
		"ai_provider", cfg.AIProvider,
		"classification_profiles", len(catalog.Profiles()),
	)
	return app, nil
}

type observedVerifier struct {
	ports.DocumentVerifier
	observe func(domain.VerificationStatus)
}

func (v observedVerifier) Verify(ctx context.Context, documentID string, verificationType domain.VerificationType) *domain.VerificationResult {
	result := v.DocumentVerifier.Verify(ctx, documentID, verificationType)
	if result != nil {
		v.observe(result.Status)
	}
	return result
}

func (a *App) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) openStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, error) {
	switch cfg.StorageBackend {
	case "", "local":
		storage, err := localfs.New(cfg.StoragePath, cfg.PublicURL, cfg.StorageSigningKey)
		if err != nil {
			return nil, err
		}
		a.Blobs = storage
		return storage, nil
	case "gcs":
		storage, err := gcs.New(ctx, cfg.GCSBucket)
		if err != nil {
			return nil, err
		}
		a.onClose(func() { _ = storage.Close() })
		return storage, nil
	default:
		return nil, fmt.Errorf("unsupported STORAGE_BACKEND %q", cfg.StorageBackend)
	}
}

func (a *App) openOCREngine(ctx context.Context, cfg config.Config) (ports.OCREngine, error) {
	switch cfg.OCREngine {
	case "", "pdftext":
		return pdftext.New(), nil
	case "documentai":
		engine, err := documentai.New(ctx, documentai.Config{
			ProjectID:        cfg.GCPProjectID,
			Location:         cfg.GCPLocation,
			ProcessorID:      cfg.DocumentAIProcessorID,
			ProcessorVersion: cfg.DocumentAIVersion,
		})
		if err != nil {
			return nil, err
		}
		a.onClose(func() { _ = engine.Close() })
		return engine, nil
	default:
		return nil, fmt.Errorf("unsupported OCR_ENGINE %q", cfg.OCREngine)
	}
}

func (a *App) openChatProvider(ctx context.Context, cfg config.Config, executor *resilience.Executor) (ports.ChatProvider, error) {
	switch cfg.AIProvider {
	case "openai":
		return openai.New(openai.Config{
			BaseURL:     cfg.OpenAIBaseURL,
			APIKey:      cfg.OpenAIAPIKey,
			Model:       cfg.OpenAIModel,
			Temperature: cfg.AITemperature,
			MaxTokens:   cfg.AIMaxTokens,
			Timeout:     cfg.AITimeout,
		}, executor, a.Logger)
	case "vertex":
		client, err := vertex.New(ctx, vertex.Config{
			ProjectID:   cfg.GCPProjectID,
			Location:    cfg.VertexLocation,
			Model:       cfg.VertexModel,
			Temperature: cfg.AITemperature,
			MaxTokens:   cfg.AIMaxTokens,
		}, executor, a.Logger)
		if err != nil {
			return nil, err
		}
		a.onClose(func() { _ = client.Close() })
		return client, nil
	default:
		return nil, fmt.Errorf("unsupported AI_PROVIDER %q", cfg.AIProvider)
	}
}

func openRedis(ctx context.Context, cfg config.Config) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return rdb, nil
}

func loadCatalog(path string) (*rules.Catalog, error) {
	if path == "" {
		return rules.Default(), nil
	}
	catalog, err := rules.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load rules %s: %w", path, err)
	}
	return catalog, nil
}

func resiliencePolicy(cfg config.Config) resilience.Policy {
	policy := resilience.DefaultPolicy()
	policy.MaxAttempts = cfg.RetryMaxAttempts
	policy.BaseDelay = cfg.RetryBaseDelay
	policy.MaxDelay = cfg.RetryMaxDelay
	if cfg.BreakerMinRequests > 0 {
		policy.BreakerMinRequests = uint32(cfg.BreakerMinRequests)
	}
	policy.BreakerOpenTimeout = cfg.BreakerOpenTimeout
	return policy
}
