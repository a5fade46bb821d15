package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	httpadapter "leadscout/internal/adapters/http"
	pg "leadscout/internal/adapters/postgres"
	"leadscout/internal/config"
	"leadscout/internal/fetch"
	"leadscout/internal/indicators"
	"leadscout/internal/leads"
	"leadscout/internal/legacy"
	"leadscout/internal/logging"
	"leadscout/internal/metrics"
	"leadscout/internal/ports"
	"leadscout/internal/probe"
	"leadscout/internal/scan"
	"leadscout/internal/services/discovery"
	"leadscout/internal/services/verification"
	"leadscout/internal/workers/discoveryrunner"
)

func main() {
	cfg, cfgErr := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if cfgErr != nil {
		logger.Warn("config.warning", "error", cfgErr)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error("server.exit", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New()

	registry, err := indicators.NewRegistry(cfg.IndicatorsFile, logger)
	if err != nil {
		return fmt.Errorf("load indicators %s: %w", cfg.IndicatorsFile, err)
	}
	registry.OnLoad(func(s *indicators.Snapshot) { m.SetIndicatorsRejected(len(s.Rejected())) })
	if cfg.WatchIndicators {
		go func() {
			if err := registry.Watch(ctx, 250*time.Millisecond); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("indicators.watch_failed", "error", err)
			}
		}()
	}

	verifier := probe.NewVerifier(
		probe.NewHTTPProber(cfg.ProbeTimeout, cfg.UserAgent),
		probe.WithDelay(cfg.ProbeDelay),
		probe.WithTimeout(cfg.ProbeTimeout),
		probe.WithLogger(logger),
		probe.WithMetrics(m),
	)
	verifySvc := verification.New(
		verifier,
		fetch.NewHTTPFetcher(cfg.FetchConfig()),
		scan.New(cfg.CheckLinks, cfg.CheckKeywords),
		logger, m,
	)
	assembler := leads.New(leads.WithLogger(logger), leads.WithMetrics(m))

	// Postgres is optional: without it leads live in memory and observations
	// are merged inline.
	var (
		sink  ports.LeadSink
		queue ports.ObservationQueue
		db    *pg.DB
	)
	if cfg.DatabaseURL != "" {
		db, err = pg.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(ctx); err != nil {
			return err
		}
		sink, queue = db, db
	}

	disc := discovery.New(registry, verifySvc, assembler, sink, logger)
	if db != nil {
		n, err := disc.Restore(ctx, db)
		if err != nil {
			logger.Warn("leads.restore_failed", "error", err)
		} else {
			logger.Info("leads.restored", "count", n)
		}
	}

	if cfg.DiscoveryWorkers > 0 {
		discoveryrunner.Run(ctx, queue, disc, cfg.DiscoveryWorkers, 500*time.Millisecond, logger)
		logger.Info("workers.started", "count", cfg.DiscoveryWorkers)
	}

	srv := httpadapter.New(httpadapter.Deps{
		Indicators: registry,
		Verifier:   verifySvc,
		Discovery:  disc,
		Ingester:   disc,
		Leads:      assembler,
		Queue:      queue,
		Legacy:     legacy.New(registry, verifySvc),
		Metrics:    m,
		Logger:     logger,
	})
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	httpSrv := &http.Server{Addr: cfg.ListenAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- httpSrv.ListenAndServe() }()
	logger.Info("server.listening", "addr", cfg.ListenAddr, "env", cfg.Env)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("server.shutdown", "signal", sig.String())
		cancel()
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	}
	return nil
}
