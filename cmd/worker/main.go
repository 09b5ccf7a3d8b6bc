// Package main runs a standalone ingest worker. It shares the Redis ingest
// stream with devserver instances, so it requires REDIS_ADDR.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oremus-labs/docai-console/config"
	"github.com/oremus-labs/docai-console/internal/events"
	"github.com/oremus-labs/docai-console/internal/logutil"
	"github.com/oremus-labs/docai-console/internal/queue"
	"github.com/oremus-labs/docai-console/internal/redisx"
	"github.com/oremus-labs/docai-console/internal/store"
	"github.com/oremus-labs/docai-console/internal/worker"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg := config.Load()
	logger := logutil.New(logutil.Options{Level: cfg.LogLevel, Format: cfg.LogFormat}).
		With().Str("component", "ingest-worker").Logger()
	logger.Info().
		Str("version", cfg.Version).
		Str("redis", cfg.RedisAddr).
		Str("stream", cfg.IngestStream).
		Str("group", cfg.IngestGroup).
		Msg("worker bootstrap")

	redisOpts := redisx.OptionsFromConfig(cfg)
	if !redisOpts.Enabled() {
		logger.Fatal().Msg("REDIS_ADDR is required for a standalone worker")
	}
	redisClient, err := redisx.Connect(ctx, redisOpts)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	stateStore, err := store.Open(cfg.DataStoreDSN, cfg.DataStoreDriver)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open datastore")
	}
	defer stateStore.Close()

	bus := events.NewBus(events.Options{
		Client:  redisClient,
		Logger:  logger,
		Channel: cfg.EventsChannel,
	})
	defer bus.Close()

	host, _ := os.Hostname()
	ingest := queue.NewStream(redisClient, queue.RedisOptions{
		Stream:   cfg.IngestStream,
		Group:    cfg.IngestGroup,
		Consumer: fmt.Sprintf("%s-%d", host, time.Now().UnixNano()),
	})
	if err := ingest.EnsureGroup(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to create consumer group")
	}

	runner := worker.New(worker.Options{
		Store:  stateStore,
		Queue:  ingest,
		Bus:    bus,
		Logger: logger,
	})
	if err := runner.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("worker stopped")
		os.Exit(1)
	}
	logger.Info().Msg("worker exited cleanly")
}
