// Package main runs the local document/chat service the console talks to.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oremus-labs/docai-console/config"
	"github.com/oremus-labs/docai-console/internal/devserver"
	"github.com/oremus-labs/docai-console/internal/events"
	"github.com/oremus-labs/docai-console/internal/logutil"
	"github.com/oremus-labs/docai-console/internal/queue"
	"github.com/oremus-labs/docai-console/internal/redisx"
	"github.com/oremus-labs/docai-console/internal/store"
	"github.com/oremus-labs/docai-console/internal/worker"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const sessionPurgeInterval = 10 * time.Minute

func main() {
	cfg := config.Load()
	logger := logutil.New(logutil.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	logger.Info().Str("version", cfg.Version).Str("driver", cfg.DataStoreDriver).Msg("starting docai devserver")

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("devserver exited")
	}
	logger.Info().Msg("devserver stopped")
}

func run(cfg *config.Config, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.DataStoreDSN, cfg.DataStoreDriver)
	if err != nil {
		return err
	}
	defer st.Close()

	redisClient, err := redisx.Connect(ctx, redisx.OptionsFromConfig(cfg))
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		logger.Info().Str("addr", cfg.RedisAddr).Str("channel", cfg.EventsChannel).Msg("relaying events through redis")
	}

	bus := events.NewBus(events.Options{
		Client:  redisClient,
		Logger:  logger,
		Channel: cfg.EventsChannel,
	})
	defer bus.Close()

	var ingest queue.Queue = queue.NewMemory(cfg.IngestBuffer)
	if redisClient != nil {
		stream := queue.NewStream(redisClient, queue.RedisOptions{Stream: cfg.IngestStream, Group: cfg.IngestGroup})
		if err := stream.EnsureGroup(ctx); err != nil {
			return err
		}
		ingest = stream
	}

	srv := devserver.NewServer(devserver.Options{
		Store:          st,
		Bus:            bus,
		Ingest:         ingest,
		Logger:         logger,
		Version:        cfg.Version,
		AdminUsername:  cfg.AdminUsername,
		AdminPassword:  cfg.AdminPassword,
		SessionTTL:     cfg.SessionTTL,
		StreamDelay:    cfg.StreamDelay,
		MaxUploadBytes: cfg.MaxUploadBytes,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx, ":"+cfg.ServerPort)
	})
	if cfg.IngestInline || redisClient == nil {
		g.Go(func() error {
			return worker.New(worker.Options{Store: st, Queue: ingest, Bus: bus, Logger: logger}).Run(gctx)
		})
	}
	g.Go(func() error {
		purgeSessions(gctx, st, logger)
		return nil
	})
	return g.Wait()
}

func purgeSessions(ctx context.Context, st *store.Store, logger zerolog.Logger) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := st.PurgeExpiredSessions(ctx, now.UTC())
			if err != nil {
				logger.Warn().Err(err).Msg("session purge failed")
				continue
			}
			if n > 0 {
				logger.Debug().Int64("purged", n).Msg("expired sessions removed")
			}
		}
	}
}
