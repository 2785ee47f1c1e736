package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"taxid/internal/platform/config"
	"taxid/internal/platform/httpserver"
	"taxid/internal/platform/logger"
	"taxid/internal/platform/metrics"
	"taxid/internal/registry"
	"taxid/internal/registry/gsis"
	"taxid/internal/registry/handler"
	httptransport "taxid/internal/transport/http"
	"taxid/pkg/platform/circuit"
)

const shutdownTimeout = 10 * time.Second

// main wires dependencies and keeps the server lifecycle small. Domain logic
// lives in pkg/afm and internal/registry.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Env, cfg.LogLevel)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Server, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewWithRegisterer(reg)

	var (
		client  registry.Client
		breaker *circuit.Breaker
	)
	if cfg.GSIS.HasCredentials() {
		gsisClient, err := gsis.New(gsis.Config{
			Endpoint: cfg.GSIS.Endpoint,
			Username: cfg.GSIS.Username,
			Password: cfg.GSIS.Password,
		})
		if err != nil {
			return err
		}
		client = gsisClient
		breaker = circuit.New(gsis.ProviderID,
			circuit.WithFailureThreshold(cfg.GSIS.BreakerFailures),
			circuit.WithSuccessThreshold(cfg.GSIS.BreakerSuccesses),
			circuit.WithCooldown(cfg.GSIS.BreakerCooldown),
		)
	} else {
		log.Warn("GSIS credentials not set, registry lookups disabled")
	}

	opts := []registry.Option{
		registry.WithMetrics(m),
		registry.WithLogger(log),
		registry.WithTimeout(cfg.GSIS.Timeout),
		registry.WithRegulatedMode(cfg.RegulatedMode),
	}
	if breaker != nil {
		opts = append(opts, registry.WithBreaker(breaker))
	}
	service := registry.NewService(client, opts...)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:   log,
		Metrics:  m,
		Gatherer: reg,
		Breaker:  breaker,
		Routes:   []httptransport.Registrar{handler.New(service, log)},
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting taxid", "addr", cfg.Addr, "env", cfg.Env, "regulated_mode", cfg.RegulatedMode)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
