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
	"github.com/splits-network/messaging-service/internal/service"
	"github.com/splits-network/messaging-service/internal/storage"
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
	db := mc.Database(cfg.Mongo.Database)

	rdb, err := cache.NewRedis(cfg)
	if err != nil {
		zl.Fatalw("redis init", "err", err)
	}
	defer rdb.Close()

	blobs, err := storage.NewS3Store(context.Background(), cfg.S3.Region, cfg.S3.Bucket)
	if err != nil {
		zl.Fatalw("s3 init", "err", err)
	}

	conn, err := mq.Dial(cfg.AMQP.URL)
	if err != nil {
		zl.Fatalw("amqp dial", "err", err)
	}
	defer conn.Close()

	attSvc := service.NewAttachmentService(
		repository.NewAttachmentRepo(db),
		repository.NewConversationRepo(mc, db),
		blobs,
		events.NewRedisNotifier(rdb, zl),
		events.NewStoredOutbox(repository.NewOutboxRepo(db), zl),
		cfg.PresignTTL,
		zl,
	)
	w := worker.NewScanWorker(attSvc, worker.PassthroughScanner{}, zl)

	consumer := mq.NewConsumer(conn, cfg.AMQP.Exchange, "attachment.scan",
		[]string{domain.EventAttachmentScanRequested}, zl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := consumer.Run(ctx, w.Handle); err != nil && !errors.Is(err, context.Canceled) {
		zl.Fatalw("scan worker", "err", err)
	}
	zl.Infow("scan worker stopped")
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}
