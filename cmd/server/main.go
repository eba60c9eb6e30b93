package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/TimurManjosov/rulesmith/internal/api"
	"github.com/TimurManjosov/rulesmith/internal/audit"
	"github.com/TimurManjosov/rulesmith/internal/combiner"
	"github.com/TimurManjosov/rulesmith/internal/config"
	"github.com/TimurManjosov/rulesmith/internal/loader"
	"github.com/TimurManjosov/rulesmith/internal/service"
	"github.com/TimurManjosov/rulesmith/internal/store"
	"github.com/TimurManjosov/rulesmith/internal/telemetry"
	"github.com/TimurManjosov/rulesmith/internal/webhook"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "rulesmith: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := telemetry.NewLogger(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	logger = logger.With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	policy, err := store.ParsePolicy(cfg.OverwritePolicy)
	if err != nil {
		return err
	}
	strategy, err := combiner.ParseStrategy(cfg.CombineStrategy)
	if err != nil {
		return err
	}

	st, err := store.NewStore(ctx, store.Options{
		Type:       cfg.StoreType,
		DSN:        cfg.DatabaseDSN,
		SQLitePath: cfg.SQLitePath,
		Policy:     policy,
	})
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer st.Close()
	logger.Info().Str("store", cfg.StoreType).Str("policy", string(policy)).Msg("store ready")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := telemetry.NewMetrics(reg)

	var sink audit.Sink = audit.NewLogSink(logger)
	if len(cfg.WebhookURLs) > 0 {
		endpoints := make([]webhook.Endpoint, len(cfg.WebhookURLs))
		for i, u := range cfg.WebhookURLs {
			endpoints[i] = webhook.Endpoint{
				URL:        u,
				Secret:     cfg.WebhookSecret,
				Events:     cfg.WebhookEvents,
				MaxRetries: cfg.WebhookMaxRetries,
				Timeout:    cfg.WebhookTimeout,
			}
		}
		dispatcher := webhook.NewDispatcher(webhook.Options{Endpoints: endpoints, Metrics: metrics, Logger: logger})
		defer dispatcher.Close()
		sink = audit.MultiSink{sink, dispatcher}
		logger.Info().Int("endpoints", len(endpoints)).Msg("webhooks enabled")
	}

	auditor := audit.NewService(sink, logger, 256)
	defer func() {
		if err := auditor.Close(); err != nil {
			logger.Warn().Err(err).Msg("audit shutdown")
		}
	}()

	svc := service.New(st, service.Options{
		Strategy:      strategy,
		MaxRuleLength: cfg.MaxRuleLength,
		BatchWorkers:  cfg.BatchWorkers,
		Metrics:       metrics,
		Audit:         auditor,
		Logger:        logger,
	})

	if cfg.RulesFile != "" {
		ld := loader.New(cfg.RulesFile, svc, logger)
		if _, err := ld.Load(audit.WithSource(ctx, audit.Source{UserAgent: "rules-file"})); err != nil {
			logger.Warn().Err(err).Msg("rules file loaded with errors")
		}
		if cfg.RulesWatch {
			w, err := loader.NewWatcher(cfg.RulesFile, loader.DefaultDebounce, logger)
			if err != nil {
				return fmt.Errorf("watch rules file: %w", err)
			}
			go func() {
				err := w.Watch(ctx, func(ctx context.Context) error {
					_, err := ld.Load(audit.WithSource(ctx, audit.Source{UserAgent: "rules-file"}))
					return err
				})
				if err != nil && !errors.Is(err, context.Canceled) {
					logger.Error().Err(err).Msg("rules file watcher stopped")
				}
			}()
		}
	}
	svc.RefreshMetrics(ctx)

	srvAPI := api.NewServer(svc, api.Options{
		Logger:         logger,
		Metrics:        metrics,
		RateLimitPerIP: cfg.RateLimitPerIP,
		CORSOrigins:    cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srvAPI.Router(),
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	metricsSrv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           metricsMux,
		ReadHeaderTimeout: 3 * time.Second,
	}

	errCh := make(chan error, 2)
	serve := func(name string, s *http.Server) {
		logger.Info().Str("addr", s.Addr).Msgf("%s listening", name)
		if err := s.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("%s: %w", name, err)
		}
	}
	go serve("api", srv)
	go serve("metrics", metricsSrv)

	select {
	case <-ctx.Done():
	case err := <-errCh:
		stop()
		shutdown(srv, metricsSrv, logger)
		return err
	}

	shutdown(srv, metricsSrv, logger)
	logger.Info().Msg("stopped")
	return nil
}

// shutdown drains in-flight requests for up to five seconds.
func shutdown(apiSrv, metricsSrv *http.Server, logger zerolog.Logger) {
	ctxShut, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, s := range []*http.Server{apiSrv, metricsSrv} {
		if err := s.Shutdown(ctxShut); err != nil {
			logger.Warn().Err(err).Str("addr", s.Addr).Msg("shutdown")
		}
	}
}
