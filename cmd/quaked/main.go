package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/couchcryptid/quake-alert-service/internal/adapter/api"
	"github.com/couchcryptid/quake-alert-service/internal/adapter/bmkg"
	httpadapter "github.com/couchcryptid/quake-alert-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/quake-alert-service/internal/adapter/kafka"
	s3adapter "github.com/couchcryptid/quake-alert-service/internal/adapter/s3"
	"github.com/couchcryptid/quake-alert-service/internal/config"
	"github.com/couchcryptid/quake-alert-service/internal/domain"
	"github.com/couchcryptid/quake-alert-service/internal/observability"
	"github.com/couchcryptid/quake-alert-service/internal/pipeline"
	"github.com/couchcryptid/quake-alert-service/internal/query"
	"github.com/couchcryptid/quake-alert-service/internal/snapshot"
	"github.com/couchcryptid/quake-alert-service/internal/store"
	"github.com/couchcryptid/quake-alert-service/internal/store/memory"
	"github.com/couchcryptid/quake-alert-service/internal/store/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}

	opts := []pipeline.Option{pipeline.WithInterval(cfg.FetchInterval)}
	var writer *kafkaadapter.Writer
	if cfg.KafkaEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		opts = append(opts, pipeline.WithPublisher(writer))
		logger.Info("kafka publication enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	}

	p := pipeline.New(
		buildSources(cfg, logger),
		domain.NewNormalizer(cfg.BMKGBaseURL),
		st, logger, metrics, opts...,
	)

	gin.SetMode(gin.ReleaseMode)
	queries := query.NewService(st, nil, cfg.StatsLocation)
	router := api.NewRouter(api.NewHandler(queries, logger))
	ready := httpadapter.AllReady(p, httpadapter.ReadinessFunc(st.Ping))
	srv := httpadapter.NewServer(cfg.HTTPAddr, ready, router, logger)

	var wg sync.WaitGroup

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	// Start ingestion pipeline.
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	if cfg.Snapshot.Enabled() {
		dest, err := s3adapter.NewDestination(ctx, cfg.Snapshot.Bucket, cfg.Snapshot.Key, cfg.Snapshot.Region, cfg.Snapshot.Endpoint)
		if err != nil {
			logger.Error("snapshot export disabled", "error", err)
		} else {
			exporter := snapshot.NewExporter(st, dest, cfg.Snapshot.Interval, nil, logger, metrics)
			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := exporter.Run(ctx); err != nil {
					logger.Error("snapshot exporter error", "error", err)
				}
			}()
		}
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	wg.Wait()
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := st.Close(); err != nil {
		logger.Error("store close error", "error", err)
	}

	logger.Info("shutdown complete")
}

// openStore selects Postgres when DATABASE_URL is set and the in-memory
// store otherwise.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.DatabaseURL == "" {
		logger.Info("using in-memory store")
		return memory.New(nil), nil
	}
	st, err := postgres.New(ctx, cfg.DatabaseURL, nil)
	if err != nil {
		return nil, err
	}
	logger.Info("using postgres store")
	return st, nil
}

func buildSources(cfg *config.Config, logger *slog.Logger) []pipeline.Source {
	endpoints := bmkg.DefaultEndpoints(cfg.FetchTimeout)
	if len(cfg.Sources) > 0 {
		endpoints = make([]bmkg.Endpoint, len(cfg.Sources))
		for i, sc := range cfg.Sources {
			endpoints[i] = bmkg.Endpoint{Name: sc.Name, Shape: sc.Shape, Path: sc.Path, Timeout: sc.Timeout}
		}
	}

	sources := make([]pipeline.Source, 0, len(endpoints))
	for _, s := range bmkg.NewSources(cfg.BMKGBaseURL, endpoints, logger) {
		sources = append(sources, s)
		logger.Info("source configured", "source", s.Name())
	}
	return sources
}
