package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"BlogDigest/internal/config"
	"BlogDigest/internal/domain"
	"BlogDigest/internal/infrastructure/artifact"
	"BlogDigest/internal/infrastructure/discovery"
	"BlogDigest/internal/infrastructure/email"
	"BlogDigest/internal/infrastructure/llm"
	"BlogDigest/internal/infrastructure/metrics"
	"BlogDigest/internal/infrastructure/ml"
	"BlogDigest/internal/infrastructure/parser"
	"BlogDigest/internal/infrastructure/ratelimit"
	"BlogDigest/internal/infrastructure/render"
	"BlogDigest/internal/infrastructure/storage"
	"BlogDigest/internal/infrastructure/telegram"
	"BlogDigest/internal/infrastructure/web"
	"BlogDigest/internal/logging"
	"BlogDigest/internal/ports"
	"BlogDigest/internal/usecase"
)

// RunOptions are per-invocation switches from the command line.
type RunOptions struct {
	Since  *time.Time
	DryRun bool
}

// Application wires configs to use cases.
type Application struct {
	cfg   config.Config
	deps  usecase.PipelineDeps
	store ports.StateStore
	pool  *pgxpool.Pool
	now   func() time.Time
}

// New builds the application and opens the state store.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	client := newWebClient(cfg)
	resolver := NewResolver(cfg, client, baseLogger)
	fetcher := parser.NewFetcher(client, nil, cfg.Fetch.Timeout, cfg.Fetch.MaxPostsPerSource, logging.Component(baseLogger, "fetcher"))
	source := parser.NewStrategySource(resolver, fetcher, cfg.Collect.Concurrency, logging.Component(baseLogger, "source"))

	summarizer, err := newSummarizer(cfg)
	if err != nil {
		return nil, err
	}

	renderer, err := render.NewRenderer(render.Options{
		Title:         cfg.Artifact.Title,
		ExcerptLength: cfg.Summarizer.ExcerptLength,
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: %w", err)
	}

	a := &Application{
		cfg: cfg,
		now: time.Now,
	}

	if cfg.Database.DSN != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.DSN)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		repo := storage.NewPostgresRepository(pool)
		if err := repo.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		a.pool = pool
		a.store = repo
	} else {
		baseLogger.Info("no database configured, run state is kept in memory")
		a.store = storage.NewMemoryRepository()
	}

	var alerter ports.Alerter
	if tg := cfg.Notifications.Telegram; tg.Enabled() {
		alerter = telegram.NewNotifier(tg.APIBase, tg.BotToken, tg.ChatID)
	}

	a.deps = usecase.PipelineDeps{
		Source:     source,
		Summarizer: summarizer,
		Mailer: email.NewSendGridMailer(email.Options{
			APIKey:      cfg.Delivery.APIKey,
			FromEmail:   cfg.Delivery.FromEmail,
			FromName:    cfg.Delivery.FromName,
			EUResidency: cfg.Delivery.EUResidency,
			MaxRetries:  cfg.Delivery.MaxRetries,
		}, logging.Component(baseLogger, "mailer")),
		Renderer:  renderer,
		Artifacts: artifact.NewFileWriter(cfg.Artifact.Path, cfg.Artifact.ReadmePath),
		Store:     a.store,
		Alerter:   alerter,
		Metrics:   metrics.NewRecorder(cfg.Metrics.PushURL, cfg.Metrics.Job),
		Logger:    logging.Component(baseLogger, "pipeline"),
	}

	return a, nil
}

func newSummarizer(cfg config.Config) (ports.Summarizer, error) {
	switch cfg.Summarizer.Provider {
	case config.ProviderChatGPT:
		if cfg.ChatGPT.APIKey == "" {
			return nil, fmt.Errorf("summarizer %q requires chatgpt.apiKey or CHATGPT_API_KEY", cfg.Summarizer.Provider)
		}
		return llm.NewChatGPTSummarizer(cfg.ChatGPT), nil
	case config.ProviderService:
		if cfg.ML.InferenceURL == "" {
			return nil, fmt.Errorf("summarizer %q requires ml.inferenceUrl", cfg.Summarizer.Provider)
		}
		return ml.NewClient(cfg.ML.InferenceURL, cfg.ML.APIKey, cfg.ML.Timeout), nil
	case config.ProviderExcerpt:
		return llm.NewExcerptSummarizer(cfg.Summarizer.ExcerptLength), nil
	default:
		return nil, fmt.Errorf("unknown summarizer provider %q", cfg.Summarizer.Provider)
	}
}

func newWebClient(cfg config.Config) *web.Client {
	return web.NewClient(nil, web.Options{
		UserAgent:    cfg.Discovery.UserAgent,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		Limiter:      ratelimit.NewHostLimiter(cfg.Discovery.HostInterval, 1),
	})
}

// NewResolver builds the feed resolver alone; a nil client gets a fresh rate-limited one.
func NewResolver(cfg config.Config, client *web.Client, baseLogger *slog.Logger) *discovery.Resolver {
	if client == nil {
		client = newWebClient(cfg)
	}
	return discovery.NewResolver(client, discovery.Options{
		ProbeTimeout:  cfg.Discovery.ProbeTimeout,
		Paths:         cfg.Discovery.Paths,
		RespectRobots: cfg.Discovery.RespectRobots,
		UserAgent:     cfg.Discovery.UserAgent,
	}, logging.Component(baseLogger, "discovery"))
}

// Run performs a single pipeline execution.
func (a *Application) Run(ctx context.Context, opts RunOptions) (domain.RunReport, error) {
	window, err := usecase.ResolveWindow(ctx, a.store, usecase.WindowPolicy{
		Lookback:     a.cfg.Window.Lookback,
		SinceLastRun: a.cfg.Window.Mode == config.WindowSinceLastRun,
	}, opts.Since, a.now())
	if err != nil {
		return domain.RunReport{}, err
	}

	pipeline := usecase.NewPipeline(a.deps, usecase.PipelineConfig{
		CollectTimeout: a.cfg.Collect.Timeout,
		Fallback: usecase.FallbackPolicy{
			Count:  a.cfg.Fallback.Count,
			MaxAge: a.cfg.Fallback.MaxAge,
		},
		Topics:     a.cfg.Analysis.Topics,
		Subject:    a.cfg.Delivery.Subject,
		Recipients: a.cfg.Recipients,
		DryRun:     opts.DryRun,
	})

	return pipeline.Run(ctx, a.cfg.Sources, window), nil
}

// Close releases the database pool.
func (a *Application) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}
