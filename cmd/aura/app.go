package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/danielpatrickdp/aura-plan/internal/config"
	"github.com/danielpatrickdp/aura-plan/internal/generator"
	"github.com/danielpatrickdp/aura-plan/internal/logging"
	"github.com/danielpatrickdp/aura-plan/internal/metrics"
	"github.com/danielpatrickdp/aura-plan/internal/refresh"
	"github.com/danielpatrickdp/aura-plan/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
)

// #region app-struct

// app holds everything a command needs. Build it with newApp and always Close it.
type app struct {
	cfg      config.Config
	log      *logrus.Logger
	store    store.Backend
	journal  *logging.Journal
	gen      generator.Generator
	registry *prometheus.Registry
	metrics  *metrics.Metrics
	ctrl     *refresh.Controller

	closers []func() error
}

// #endregion app-struct

// #region wiring

func newApp() (*app, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, log: log}

	backend, err := store.Open(store.Options{
		Backend:  cfg.Store.Backend,
		Path:     cfg.Store.Path,
		RedisURL: cfg.Store.RedisURL,
	})
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = backend
	a.closers = append(a.closers, backend.Close)

	// The journal shares the SQLite cache database when there is one.
	if s, ok := backend.(*store.SQLiteStore); ok {
		a.journal, err = logging.NewJournal(s.DB())
	} else {
		a.journal, err = logging.OpenJournal(cfg.Store.Path)
		if err == nil {
			a.closers = append(a.closers, a.journal.Close)
		}
	}
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open journal: %w", err)
	}

	a.gen, err = newGenerator(cfg.Generator)
	if err != nil {
		a.Close()
		return nil, err
	}
	if c, ok := a.gen.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = metrics.New(a.registry)

	a.ctrl = refresh.NewController(a.store, a.gen, refresh.Options{
		Timeout: cfg.Generator.Timeout,
		Retry: refresh.RetryPolicy{
			Attempts: cfg.Refresh.RetryAttempts,
			Backoff:  cfg.Refresh.RetryBackoff,
		},
		Logger:   log,
		Metrics:  a.metrics,
		Recorder: a.journal,
	})

	log.WithFields(logrus.Fields{
		"store":     cfg.Store.Backend,
		"generator": cfg.Generator.Kind,
	}).Debug("aura ready")
	return a, nil
}

func newGenerator(cfg config.GeneratorConfig) (generator.Generator, error) {
	switch strings.ToLower(cfg.Kind) {
	case "grpc":
		g, err := generator.NewGRPC(cfg.Addr)
		if err != nil {
			return nil, fmt.Errorf("connect generator: %w", err)
		}
		return g, nil
	case "gemini":
		return generator.NewGemini(generator.GeminiConfig{
			APIKey:        cfg.APIKey,
			Model:         cfg.Model,
			Endpoint:      cfg.Endpoint,
			Timeout:       cfg.Timeout,
			RatePerSecond: cfg.RatePerSecond,
		}), nil
	default:
		return nil, fmt.Errorf("unknown generator %q", cfg.Kind)
	}
}

// Close waits for background refreshes, then releases resources in reverse order.
func (a *app) Close() error {
	if a.ctrl != nil {
		a.ctrl.Wait()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// #endregion wiring
