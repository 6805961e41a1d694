// Package main provides the outbox relay that publishes pending sync records to Redis Streams or RabbitMQ.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/jnst/storefront-sync/internal/broker"
	"github.com/jnst/storefront-sync/internal/config"
	"github.com/jnst/storefront-sync/internal/logger"
	"github.com/jnst/storefront-sync/internal/relay"
	"github.com/jnst/storefront-sync/internal/service"
	"github.com/jnst/storefront-sync/internal/storage"
)

const (
	readHeaderTimeout = 5 * time.Second
	exitCode          = 1
)

type closingPublisher interface {
	service.Publisher
	io.Closer
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}

	slog.SetDefault(logger.Setup(cfg.LogLevel, cfg.LogFormat))

	if err := run(cfg); err != nil {
		slog.Error("publisher failed", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repos, err := storage.Open(ctx, cfg)
	if err != nil {
		return err
	}
	defer repos.Close()

	publisher, err := setupPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	outbox := service.NewOutboxServiceImpl(publisher, repos.OrderQueue, repos.UserQueue)
	runner := relay.NewRunner(outbox, cfg.RelayPollInterval, cfg.RelayBatchSize)

	slog.Info("starting outbox publisher",
		slog.String("service", "publisher"),
		slog.String("sink", cfg.RelaySink),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gctx)
	})

	if cfg.MetricsAddr != "" {
		serveMetrics(gctx, g, cfg)
	}

	return g.Wait()
}

func setupPublisher(cfg *config.Config) (closingPublisher, error) {
	switch cfg.RelaySink {
	case config.SinkRedis:
		client, err := broker.NewRedisClient(cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		return broker.NewRedisStreamPublisher(client), nil
	case config.SinkAMQP:
		return broker.NewReconnectingRabbitMQPublisher(cfg.RabbitMQURL), nil
	default:
		return nil, fmt.Errorf("%w: RELAY_SINK=%q", config.ErrInvalidConfig, cfg.RelaySink)
	}
}

func serveMetrics(ctx context.Context, g *errgroup.Group, cfg *config.Config) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())

	server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	g.Go(func() error {
		slog.Info("serving metrics", slog.String("addr", cfg.MetricsAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})
}
