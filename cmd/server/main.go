package main

import (
	"context"
	stdlog "log"
	"os"
	"os/signal"
	"syscall"
	"time"

	svix "github.com/svix/svix-webhooks/go"
	"go.uber.org/zap"

	"github.com/blogware/user-sync-service/internal/clerk"
	"github.com/blogware/user-sync-service/internal/config"
	"github.com/blogware/user-sync-service/internal/helper"
	api "github.com/blogware/user-sync-service/internal/http"
	"github.com/blogware/user-sync-service/internal/log"
	"github.com/blogware/user-sync-service/internal/metrics"
	"github.com/blogware/user-sync-service/internal/queue"
	"github.com/blogware/user-sync-service/internal/repo"
	"github.com/blogware/user-sync-service/internal/usersync"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		stdlog.Fatalf("config: %v", err)
	}

	if _, err := log.Init(os.Getenv("APP_ENV") == "production"); err != nil {
		stdlog.Fatalf("log init: %v", err)
	}
	defer log.Sync()

	metrics.MustRegister()

	store := repo.NewStore(cfg.MongoURI, cfg.MongoDB)
	defer store.Close(context.Background())

	// warm-up; lazy connect covers us if mongo is not up yet
	warmCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := store.EnsureConnected(warmCtx); err != nil {
		log.L.Warn("initial mongo connect failed, will retry on first webhook", zap.Error(err))
	}
	cancel()

	var dedup api.DeliveryLog
	if cfg.RedisAddr != "" {
		rds := repo.NewRedis(cfg.RedisAddr)
		defer rds.Close()
		dedup = rds
	} else {
		log.L.Info("REDIS_ADDR not set, webhook dedupe disabled")
	}

	pub := queue.NewNoop()
	if cfg.RabbitURL != "" {
		p, err := queue.NewRabbit(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			stdlog.Fatalf("rabbit connect: %v", err)
		}
		pub = p
	} else {
		log.L.Info("RABBIT_URL not set, event publishing disabled")
	}
	defer pub.Close()

	wh, err := svix.NewWebhook(cfg.SigningSecret)
	if err != nil {
		stdlog.Fatalf("signing secret: %v", err)
	}
	log.L.Info("signing secret loaded", zap.String("fingerprint", helper.Hash8(cfg.SigningSecret)))

	var patcher api.MetadataPatcher
	if cfg.ClerkSecretKey != "" {
		patcher = clerk.NewClient(cfg.ClerkAPIURL, cfg.ClerkSecretKey)
	} else {
		log.L.Warn("CLERK_SECRET_KEY not set, metadata write-back disabled")
	}

	svc := usersync.NewService(store, pub, cfg.RabbitExchange)
	h := api.NewHandler(svc, wh, patcher, dedup, store, time.Duration(cfg.WebhookDedupTTLMin)*time.Minute)
	r := api.NewRouter(h)

	srvErr := make(chan error, 1)
	go func() { srvErr <- r.Run(":" + cfg.Port) }()

	log.L.Info("user-sync-service listening", zap.String("port", cfg.Port))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.L.Info("shutting down", zap.String("signal", s.String()))
	case err := <-srvErr:
		log.L.Error("server error", zap.Error(err))
	}
}
