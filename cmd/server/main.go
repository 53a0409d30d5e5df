package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httpadapter "sitegauge/internal/adapters/http"
	pg "sitegauge/internal/adapters/postgres"
	"sitegauge/internal/config"
	"sitegauge/internal/observability"
	"sitegauge/internal/ports"
	"sitegauge/internal/probe"
	checksvc "sitegauge/internal/services/checker"
	"sitegauge/internal/workers/checkrunner"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	log := observability.NewLogger(cfg.Log)
	defer log.Sync() //nolint:errcheck
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}

	if err := run(ctx, cfg, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("app error", zap.Error(err))
	}
	log.Info("servers stopped gracefully")
}

func run(ctx context.Context, cfg config.Config, log *zap.Logger) error {
	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	// Wire repositories to services (ports).
	var _ ports.DomainRepository = db
	var _ ports.CheckRepository = db
	var _ ports.KeyRepository = db
	var _ ports.JobRepository = db

	prober := probe.New(probe.Config{
		Timeout:      cfg.Probe.Timeout,
		MaxRedirects: &cfg.Probe.MaxRedirects,
		MaxBodyBytes: cfg.Probe.MaxBodyBytes,
		UserAgent:    cfg.Probe.UserAgent,
	}, log.Named("probe"))

	checker := checksvc.New(db, db, cfg.CacheTTL, log.Named("checker"))
	processor := checkrunner.ProbeProcessor{Checks: db, Prober: prober, Log: log.Named("processor")}

	srv := httpadapter.New(checker, db, db, processor, httpadapter.Config{
		AdminToken: cfg.AdminToken,
		RateLimit:  cfg.RateLimit,
		RateBurst:  cfg.RateBurst,
	}, log.Named("http"))

	r := chi.NewRouter()
	r.Mount("/", srv.Routes())
	httpSrv := httpadapter.NewHTTPServer(cfg.ListenAddr, r)

	g, ctx := errgroup.WithContext(ctx)

	if cfg.CheckWorkers > 0 {
		g.Go(func() error {
			log.Info("check workers started", zap.Int("count", cfg.CheckWorkers))
			checkrunner.Run(ctx, db, processor, cfg.CheckWorkers, 500*time.Millisecond, log.Named("worker"))
			return ctx.Err()
		})
	}

	g.Go(func() error {
		log.Info("listening", zap.String("addr", cfg.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
