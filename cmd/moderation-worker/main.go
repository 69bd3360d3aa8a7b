package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/splits-network/messaging-service/internal/cache"
	"github.com/splits-network/messaging-service/internal/config"
	"github.com/splits-network/messaging-service/internal/domain"
	"github.com/splits-network/messaging-service/internal/events"
	"github.com/splits-network/messaging-service/internal/logger"
	"github.com/splits-network/messaging-service/internal/mq"
	"github.com/splits-network/messaging-service/internal/repository"
	"github.com/splits-network/messaging-service/internal/worker"
)

func main() {
	cfg, err := config.Load(configPath())
	if err != nil {
		log.Fatalf("config load: %v", err)
	}
	zl, err := logger.New(cfg.App.Env != "production")
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer zl.Sync()

	mc, err := repository.NewMongoClient(cfg)
	if err != nil {
		zl.Fatalw("mongo init", "err", err)
	}
	defer func() { _ = mc.Disconnect(context.Background()) }()

	rdb, err := cache.NewRedis(cfg)
	if err != nil {
		zl.Fatalw("redis init", "err", err)
	}
	defer rdb.Close()

	conn, err := mq.Dial(cfg.AMQP.URL)
	if err != nil {
		zl.Fatalw("amqp dial", "err", err)
	}
	defer conn.Close()

	msgRepo := repository.NewMessageRepo(mc.Database(cfg.Mongo.Database))
	w := worker.NewModerationWorker(
		msgRepo,
		cache.NewWindowCounter(rdb),
		events.NewRedisNotifier(rdb, zl),
		cfg.ModerationWindow,
		cfg.Moderation.BurstThreshold,
		zl,
	)

	consumer := mq.NewConsumer(conn, cfg.AMQP.Exchange, "moderation.burst",
		[]string{domain.EventMessageCreated}, zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := consumer.Run(ctx, w.Handle); err != nil && !errors.Is(err, context.Canceled) {
		zl.Fatalw("moderation worker", "err", err)
	}
	zl.Infow("moderation worker stopped")
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}
