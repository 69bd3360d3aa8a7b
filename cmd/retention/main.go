package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/splits-network/messaging-service/internal/cache"
	"github.com/splits-network/messaging-service/internal/config"
	"github.com/splits-network/messaging-service/internal/events"
	"github.com/splits-network/messaging-service/internal/logger"
	"github.com/splits-network/messaging-service/internal/repository"
	"github.com/splits-network/messaging-service/internal/service"
	"github.com/splits-network/messaging-service/internal/storage"
)

// Run-to-completion job. The scheduler (cron, k8s CronJob) guarantees
// non-overlapping runs.
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

	svc := service.NewRetentionService(
		repository.NewRetentionRepo(db),
		repository.NewMessageRepo(db),
		repository.NewAttachmentRepo(db),
		repository.NewModerationRepo(db),
		blobs,
		events.NewRedisNotifier(rdb, zl),
		int64(cfg.Retention.BatchSize),
		zl,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	run, err := svc.Run(ctx)
	if err != nil {
		zl.Fatalw("retention run", "err", err)
	}
	zl.Infow("retention run finished",
		"run", run.ID,
		"status", run.Status,
		"messages_redacted", run.MessagesRedacted,
		"attachments_deleted", run.AttachmentsDeleted,
		"audit_purged", run.AuditRowsPurged,
	)
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}
