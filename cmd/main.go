package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"skillsetu/backend/internal/api/handler"
	"skillsetu/backend/internal/broker"
	"skillsetu/backend/internal/chathub"
	"skillsetu/backend/internal/config"
	"skillsetu/backend/internal/events"
	"skillsetu/backend/internal/lifecycle"
	"skillsetu/backend/internal/localization"
	"skillsetu/backend/internal/logger"
	"skillsetu/backend/internal/notify"
	"skillsetu/backend/internal/report"
	"skillsetu/backend/internal/storage"
	"skillsetu/backend/internal/telegram"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const shutdownTimeout = 10 * time.Second

func setupDependencies(ctx context.Context, cfg *config.Config, log *zap.Logger) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatal("Failed to connect PostgreSQL", zap.Error(err))
	}

	if cfg.RunMigrations {
		sqlDB, err := db.DB()
		if err != nil {
			log.Fatal("Failed to get sql.DB", zap.Error(err))
		}
		if err := storage.Migrate(ctx, sqlDB); err != nil {
			log.Fatal("Failed to run migrations", zap.Error(err))
		}
	}

	if cfg.RedisAddr == "" {
		log.Warn("REDIS_ADDR not set: running single-instance, Telegram link codes disabled")
		return db, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		log.Fatal("Failed to connect Redis", zap.Error(err))
	}

	log.Info("Database and Redis connections established")
	return db, rdb
}

func setupEvents(cfg *config.Config, log *zap.Logger) (events.Publisher, func()) {
	if cfg.AMQPURL == "" {
		log.Info("AMQP_URL not set: domain events are not exported")
		return events.Nop{}, func() {}
	}

	pub, err := events.NewAMQPPublisher(cfg.AMQPURL)
	if err != nil {
		log.Fatal("Failed to connect AMQP", zap.Error(err))
	}
	return pub, pub.Close
}

func main() {
	cfg, loadedEnv, err := config.Load()
	if err != nil {
		// The logger depends on the config; fall back to a production logger.
		zap.Must(zap.NewProduction()).Fatal("Failed to load config", zap.Error(err))
	}

	log := logger.New(cfg.Environment)
	defer log.Sync()
	if !loadedEnv {
		log.Debug("No .env file found, using process environment")
	}
	log.Info("Starting SkillSetu backend", zap.String("instance_id", cfg.InstanceID))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, rdb := setupDependencies(ctx, cfg, log)
	store := storage.NewStorageService(db, rdb)

	evts, closeEvents := setupEvents(cfg, log)
	defer closeEvents()

	// Cross-instance fan-out runs only when Redis is available.
	var pub broker.Publisher
	var b *broker.Broker
	if rdb != nil {
		b = broker.New(rdb, cfg.InstanceID, log)
		pub = b
	}

	hub := notify.NewHub(pub, log)
	chat := chathub.NewManager(store, pub, log, cfg.StoreTimeout)
	sessions := lifecycle.NewService(store, hub, evts, log, cfg.StoreTimeout)
	reports := report.NewService(store, evts, log, cfg.StoreTimeout)

	if b != nil {
		b.Handle(broker.KindChat, chat.DeliverRemote)
		b.Handle(broker.KindNotify, hub.DeliverRemote)
		go func() {
			if err := b.Run(ctx); err != nil {
				log.Error("Broker stopped", zap.Error(err))
			}
		}()
	}

	if cfg.TelegramBotToken != "" {
		l, err := localization.New()
		if err != nil {
			log.Fatal("Failed to load locales", zap.Error(err))
		}
		bot, err := telegram.NewBotService(cfg.TelegramBotToken, store, hub, l, log)
		if err != nil {
			log.Fatal("Failed to start Telegram bot", zap.Error(err))
		}
		go bot.Run(ctx)
	} else {
		log.Info("TELEGRAM_BOT_TOKEN not set: Telegram notifications disabled")
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	h := handler.NewHandler(handler.Deps{
		Sessions:  sessions,
		Chat:      chat,
		Notify:    hub,
		Reports:   reports,
		Links:     store,
		Ratings:   store,
		JWTSecret: []byte(cfg.JWTSecret),
		Logger:    log,
	})
	h.RegisterRoutes(r)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", cfg.HTTPAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", zap.Error(err))
	}
}
