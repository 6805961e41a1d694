// Package main provides a reference downstream consumer of the sync Redis streams.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	"github.com/jnst/storefront-sync/internal/broker"
	"github.com/jnst/storefront-sync/internal/client"
	"github.com/jnst/storefront-sync/internal/config"
	"github.com/jnst/storefront-sync/internal/consumer"
	"github.com/jnst/storefront-sync/internal/logger"
	"github.com/jnst/storefront-sync/internal/model"
)

const exitCode = 1

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}

	slog.SetDefault(logger.Setup(cfg.LogLevel, cfg.LogFormat))

	redisClient, err := broker.NewRedisClient(cfg.RedisAddr)
	if err != nil {
		slog.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(exitCode)
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orders := client.NewOrderClient(cfg.SyncAPIURL, cfg.OrderSyncAPIKey)
	users := client.NewUserClient(cfg.SyncAPIURL, cfg.UserSyncAPIKey)

	handler := consumer.NewHandler(consumer.LogSink{}, map[model.Subject]consumer.DetailFetcher{
		model.SubjectOrder: consumer.FetcherFunc(func(ctx context.Context, id uuid.UUID) (any, error) {
			return orders.Detail(ctx, id)
		}),
		model.SubjectUser: consumer.FetcherFunc(func(ctx context.Context, id uuid.UUID) (any, error) {
			return users.Detail(ctx, id)
		}),
	})

	reader := broker.NewStreamConsumer(redisClient, cfg.ConsumerGroup, cfg.ConsumerName, model.Subjects...)
	reader.EnsureGroups(ctx)

	slog.Info("starting message consumer",
		slog.String("service", "consumer"),
		slog.String("group", cfg.ConsumerGroup),
		slog.String("consumer", cfg.ConsumerName),
		slog.String("api", cfg.SyncAPIURL),
	)

	consumer.Run(ctx, reader, handler)
}
