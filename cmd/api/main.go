package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/splits-network/messaging-service/internal/access"
	"github.com/splits-network/messaging-service/internal/api"
	"github.com/splits-network/messaging-service/internal/cache"
	"github.com/splits-network/messaging-service/internal/config"
	"github.com/splits-network/messaging-service/internal/events"
	"github.com/splits-network/messaging-service/internal/logger"
	"github.com/splits-network/messaging-service/internal/repository"
	"github.com/splits-network/messaging-service/internal/service"
	"github.com/splits-network/messaging-service/internal/storage"
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

	idxCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repository.EnsureIndexes(idxCtx, db); err != nil {
		cancel()
		zl.Fatalw("ensure indexes", "err", err)
	}
	cancel()

	rdb, err := cache.NewRedis(cfg)
	if err != nil {
		zl.Fatalw("redis init", "err", err)
	}
	defer rdb.Close()

	blobs, err := storage.NewS3Store(context.Background(), cfg.S3.Region, cfg.S3.Bucket)
	if err != nil {
		zl.Fatalw("s3 init", "err", err)
	}

	convRepo := repository.NewConversationRepo(mc, db)
	msgRepo := repository.NewMessageRepo(db)
	attRepo := repository.NewAttachmentRepo(db)
	modRepo := repository.NewModerationRepo(db)
	retRepo := repository.NewRetentionRepo(db)
	outboxRepo := repository.NewOutboxRepo(db)

	notifier := events.NewRedisNotifier(rdb, zl)
	outbox := events.NewStoredOutbox(outboxRepo, zl)
	resolver := access.NewResolver(access.NewHTTPDirectory(cfg.App.DirectoryURL, cfg.App.ServiceToken), zl)

	convSvc := service.NewConversationService(convRepo, msgRepo, resolver, notifier, outbox, zl)
	msgSvc := service.NewMessageService(convRepo, msgRepo, modRepo, notifier, outbox, zl)
	attSvc := service.NewAttachmentService(attRepo, convRepo, blobs, notifier, outbox, cfg.PresignTTL, zl)
	modSvc := service.NewModerationService(modRepo, convRepo, msgRepo, attRepo, retRepo, zl)

	app := api.NewServer(cfg, convSvc, msgSvc, attSvc, modSvc, zl)

	go func() {
		if err := app.Listen(fmt.Sprintf(":%d", cfg.App.Port)); err != nil {
			zl.Fatalw("server listen", "err", err)
		}
	}()
	zl.Infow("api started", "port", cfg.App.Port)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = app.ShutdownWithContext(ctx)
	zl.Infow("api stopped")
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config.yaml"
}
