package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"ThreatScanner/internal/collector"
	"ThreatScanner/internal/config"
	"ThreatScanner/internal/domain"
	"ThreatScanner/internal/httpapi"
	"ThreatScanner/internal/infrastructure/forwarder"
	"ThreatScanner/internal/infrastructure/parser"
	"ThreatScanner/internal/infrastructure/scheduler"
	"ThreatScanner/internal/infrastructure/storage"
	"ThreatScanner/internal/infrastructure/telegram"
	"ThreatScanner/internal/logging"
	"ThreatScanner/internal/metrics"
	"ThreatScanner/internal/ports"
	"ThreatScanner/internal/tracing"
	"ThreatScanner/internal/usecase"
)

const (
	defaultSQLiteDSN = "file:threats.db"
	shutdownTimeout  = 30 * time.Second
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     ports.SlotStore
	closers   []io.Closer
	scheduler *usecase.Scheduler
	ops       *http.Server
	tracing   *tracing.Provider
}

// New builds a runnable application instance from configuration.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	rec := metrics.New()

	tp, err := tracing.Setup(ctx, cfg.Tracing, logging.Component(baseLogger, "tracing"))
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	sources, err := cfg.ToSources()
	if err != nil {
		// invalid entries are skipped; the valid ones still run
		baseLogger.Warn("invalid sources skipped", "error", err)
	}

	fetch := parser.Options{
		UserAgent: cfg.Collection.UserAgent,
		Timeout:   time.Duration(cfg.Collection.TimeoutSeconds) * time.Second,
		Delay:     time.Duration(cfg.Collection.DelayMillis) * time.Millisecond,
		Limit:     cfg.Collection.Limit,
		OnError: func(kind domain.SourceKind, source string, _ error) {
			rec.SourceFailed(kind, source)
		},
		TracerProvider: tp.TracerProvider(),
	}
	registry := collector.NewRegistry()
	registry.Register(parser.NewFeedCollector(withLogger(fetch, baseLogger, "collector.feed")))
	registry.Register(parser.NewAPICollector(withLogger(fetch, baseLogger, "collector.api")))
	registry.Register(parser.NewHTMLCollector(
		withLogger(fetch, baseLogger, "collector.html"),
		parser.NewChromeRenderer(time.Duration(cfg.Collection.RenderSettleMillis)*time.Millisecond),
	))
	registry.Register(parser.NewSocialCollector(withLogger(fetch, baseLogger, "collector.social")))

	source := parser.NewStrategySource(registry, sources, logging.Component(baseLogger, "source"))

	store, closer, err := openStore(ctx, cfg)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	var closers []io.Closer
	if closer != nil {
		closers = append(closers, closer)
	}

	var relay ports.Forwarder
	if cfg.Forwarding.BaseURL != "" {
		relay = forwarder.NewClient(forwarder.Options{
			BaseURL:       cfg.Forwarding.BaseURL,
			APIKey:        cfg.Forwarding.APIKey,
			MaxAttempts:   cfg.Forwarding.MaxAttempts,
			RatePerSecond: cfg.Forwarding.RatePerSecond,
			Logger:        logging.Component(baseLogger, "forwarder"),
		})
	}

	var notifier ports.Notifier
	if tg := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID); tg.Configured() {
		notifier = tg
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Publisher:  usecase.NewSlotPublisher(store, cfg.Capacity, nil),
		Forwarder:  relay,
		Notifier:   notifier,
		Metrics:    rec,
		Logger:     logging.Component(baseLogger, "pipeline"),
		DigestSize: cfg.Notifications.Telegram.DigestSize,

		TracerProvider: tp.TracerProvider(),
	})

	sched := usecase.NewScheduler(usecase.SchedulerDeps{
		Runner:  pipeline,
		Driver:  scheduler.NewIntervalScheduler(cfg.Scheduler.Interval(), cfg.Scheduler.StartImmediately()),
		Health:  scheduler.NewIntervalScheduler(cfg.Scheduler.HealthInterval(), false),
		Metrics: rec,
		Logger:  logging.Component(baseLogger, "scheduler"),
	})

	application := &Application{
		cfg:       cfg,
		logger:    baseLogger,
		store:     store,
		closers:   closers,
		scheduler: sched,
		tracing:   tp,
	}

	if cfg.Server.Addr != "" {
		ops := httpapi.New(httpapi.Deps{
			Cycles:  sched,
			Store:   store,
			Metrics: rec.Handler(),
			Logger:  logging.Component(baseLogger, "ops"),
		})
		application.ops = &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           ops.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}

	baseLogger.Info("application configured",
		"sources", len(sources),
		"store", cfg.Store.Driver,
		"capacity", cfg.Capacity,
		"interval", cfg.Scheduler.Interval(),
		"forwarding", relay != nil,
		"telegram", notifier != nil,
		"tracing", cfg.Tracing.Enabled,
	)
	return application, nil
}

func withLogger(opts parser.Options, base *slog.Logger, component string) parser.Options {
	opts.Logger = logging.Component(base, component)
	return opts
}

func openStore(ctx context.Context, cfg config.Config) (ports.SlotStore, io.Closer, error) {
	switch cfg.Store.Driver {
	case config.DriverMemory:
		return storage.NewMemoryStore(), nil, nil
	case config.DriverSQLite:
		dsn := cfg.Store.DSN
		if dsn == "" {
			dsn = defaultSQLiteDSN
		}
		store, err := storage.OpenSQLStore(ctx, storage.DialectSQLite, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return store, store, nil
	case config.DriverPostgres:
		if cfg.Store.DSN == "" {
			return nil, nil, errors.New("postgres store requires a dsn")
		}
		store, err := storage.OpenSQLStore(ctx, storage.DialectPostgres, cfg.Store.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres store: %w", err)
		}
		return store, store, nil
	case config.DriverRedis:
		store := storage.NewRedisStore(cfg.Store.Redis.Addr, cfg.Store.Redis.Password, cfg.Store.Redis.DB, cfg.Capacity)
		return store, store, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// Slots returns the currently published slots.
func (a *Application) Slots(ctx context.Context) ([]domain.Slot, error) {
	return a.store.LoadSlots(ctx)
}

// RunOnce executes a single cycle and returns its report.
func (a *Application) RunOnce(ctx context.Context) (domain.CycleReport, error) {
	defer a.close()
	return a.scheduler.Trigger(ctx)
}

// Run starts the scheduler and ops server and blocks until ctx is cancelled.
func (a *Application) Run(ctx context.Context) error {
	defer a.close()

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	serverErr := make(chan error, 1)
	if a.ops != nil {
		go func() {
			a.logger.Info("ops server listening", "addr", a.ops.Addr)
			if err := a.ops.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		runErr = fmt.Errorf("ops server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.ops != nil {
		if err := a.ops.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("ops server shutdown", "error", err)
		}
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler stop", "error", err)
	}
	a.logger.Info("application stopped", "status", a.scheduler.Status().State)
	return runErr
}

func (a *Application) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Warn("close resource", "error", err)
		}
	}
	a.closers = nil

	if a.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.tracing.Shutdown(ctx); err != nil {
			a.logger.Warn("tracing shutdown", "error", err)
		}
		a.tracing = nil
	}
}
