package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/splits-network/messaging-service/internal/config"
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

	conn, err := mq.Dial(cfg.AMQP.URL)
	if err != nil {
		zl.Fatalw("amqp dial", "err", err)
	}
	defer conn.Close()

	pub, err := mq.NewPublisher(conn, cfg.AMQP.Exchange)
	if err != nil {
		zl.Fatalw("publisher init", "err", err)
	}
	defer pub.Close()

	outboxRepo := repository.NewOutboxRepo(mc.Database(cfg.Mongo.Database))
	w := worker.NewOutboxWorker(outboxRepo, pub, cfg.OutboxInterval, int64(cfg.Outbox.BatchSize), zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		zl.Fatalw("outbox worker", "err", err)
	}
	zl.Infow("outbox worker stopped")
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}
