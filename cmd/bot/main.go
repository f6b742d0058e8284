package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/Tih000/max/internal/bot"
	"github.com/Tih000/max/internal/cache"
	"github.com/Tih000/max/internal/config"
	"github.com/Tih000/max/internal/database"
	"github.com/Tih000/max/internal/digest"
	"github.com/Tih000/max/internal/logger"
	"github.com/Tih000/max/internal/maxapi"
	"github.com/Tih000/max/internal/queue"
	"github.com/Tih000/max/internal/scheduler"
	"github.com/Tih000/max/internal/server"
	"github.com/Tih000/max/internal/services/ai"
	"github.com/Tih000/max/internal/telemetry"
	"github.com/Tih000/max/internal/workers"
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	debugMode := cfg.DebugMode || *debugFlag

	zapLogger, err := logger.New(debugMode)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() {
		_ = zapLogger.Sync()
	}()

	zapLogger.Info("starting_bot",
		zap.Bool("debug_mode", debugMode),
		zap.String("admin_port", cfg.AdminPort),
		zap.String("ai_model", cfg.AIModel),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	if cfg.OTELEnabled && cfg.OTELEndpoint != "" {
		tp, err := telemetry.InitTracer(context.Background(), "max-assistant", cfg.OTELEndpoint)
		if err != nil {
			zapLogger.Warn("otel_init_failed", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := telemetry.Shutdown(shutdownCtx, tp); err != nil {
					zapLogger.Error("otel_shutdown_failed", zap.Error(err))
				}
			}()
		}
	}

	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		zapLogger.Fatal("database_connect_failed", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			zapLogger.Warn("database_close_failed", zap.Error(err))
		}
	}()

	if err := db.Migrate(); err != nil {
		zapLogger.Fatal("migration_failed", zap.Error(err))
	}
	zapLogger.Info("connected_to_database")

	taskRepo := database.NewTaskRepository(db)
	reminderRepo := database.NewReminderRepository(db)
	msgRepo := database.NewMessageRepository(db)
	chatRepo := database.NewChatRepository(db)
	prefRepo := database.NewDigestPreferenceRepository(db)

	redisCache, err := cache.New(cfg.RedisURL)
	if err != nil {
		zapLogger.Fatal("redis_connect_failed", zap.Error(err))
	}
	defer func() {
		if err := redisCache.Close(); err != nil {
			zapLogger.Warn("redis_close_failed", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_redis")

	jobQueue, err := connectQueue(cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("rabbitmq_connect_failed", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("rabbitmq_close_failed", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq", zap.Int("prefetch", cfg.RabbitMQPrefetch))

	var aiProvider ai.Provider
	if cfg.OpenAIKey != "" {
		aiProvider = ai.NewOpenAIProvider(cfg.OpenAIKey, cfg.AIBaseURL, cfg.AIModel, zapLogger, debugMode)
		zapLogger.Info("ai_provider_ready", zap.String("model", cfg.AIModel))
	} else {
		zapLogger.Warn("ai_provider_disabled_no_api_key")
	}

	client := maxapi.New(cfg.MaxBaseURL, cfg.MaxToken)
	sender := bot.NewSender(client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Reminder scheduler with crash recovery sweep
	reminders := scheduler.NewReminderScheduler(reminderRepo, taskRepo, nil, zapLogger)
	if err := reminders.Init(ctx, sender); err != nil {
		zapLogger.Fatal("reminder_recovery_failed", zap.Error(err))
	}
	defer reminders.Stop()

	// Digest scheduler reconciling persisted preferences
	digests := scheduler.NewDigestScheduler(
		prefRepo,
		digest.NewGenerator(taskRepo, msgRepo, chatRepo, aiProvider, zapLogger),
		sender,
		zapLogger,
	)
	if err := digests.Init(ctx); err != nil {
		zapLogger.Fatal("digest_scheduler_failed", zap.Error(err))
	}
	defer digests.Stop()

	// Background workers over the job queue
	extractor := workers.NewTaskExtractor(aiProvider, msgRepo, taskRepo, chatRepo, reminders, cfg.DefaultRemindLead, zapLogger)
	answerer := workers.NewQuestionAnswerer(aiProvider, msgRepo, sender, zapLogger)
	worker := workers.NewWorker(extractor, answerer, zapLogger)
	go func() {
		if err := worker.Run(ctx, jobQueue, cfg.RabbitMQPrefetch); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("worker_exited", zap.Error(err))
			cancel()
		}
	}()

	// Dead letter queue retention
	gc := queue.NewGarbageCollector(jobQueue, time.Hour, 7*24*time.Hour, zapLogger)
	go func() {
		if err := gc.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("dlq_gc_exited", zap.Error(err))
		}
	}()

	// Admin HTTP API
	adminServer, err := server.New(server.Options{
		DB:          db,
		TaskRepo:    taskRepo,
		ChatRepo:    chatRepo,
		PrefRepo:    prefRepo,
		Reminders:   reminders,
		Digests:     digests,
		RedisClient: redisCache.Client(),
		Port:        cfg.AdminPort,
		AdminToken:  cfg.AdminToken,
		Ratelimit:   cfg.AdminRatelimit,
		Tracing:     cfg.OTELEnabled,
		Logger:      zapLogger,
	})
	if err != nil {
		zapLogger.Fatal("admin_server_setup_failed", zap.Error(err))
	}
	go func() {
		if err := adminServer.Start(); err != nil {
			zapLogger.Error("admin_server_exited", zap.Error(err))
			cancel()
		}
	}()

	// Update loop and membership sync
	b := bot.New(
		client,
		sender,
		redisCache,
		msgRepo,
		taskRepo,
		chatRepo,
		prefRepo,
		jobQueue,
		reminders,
		digests,
		bot.Config{
			PollTimeout:   cfg.LongPollTimeout,
			SyncInterval:  cfg.MembershipSync,
			ExportBaseURL: cfg.AdminPublicURL,
		},
		zapLogger,
	)
	go func() {
		if err := b.RunMembershipSync(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("membership_sync_exited", zap.Error(err))
		}
	}()
	go func() {
		if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			zapLogger.Error("bot_loop_exited", zap.Error(err))
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigChan:
		zapLogger.Info("shutdown_signal", zap.String("signal", sig.String()))
	case <-ctx.Done():
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Warn("admin_server_shutdown_failed", zap.Error(err))
	}

	zapLogger.Info("bot_stopped")
}

// connectQueue retries the RabbitMQ connection with backoff to ride out
// broker startup delays in container deployments
func connectQueue(amqpURL string, zapLogger *zap.Logger) (*queue.RabbitMQQueue, error) {
	const maxRetries = 10
	delay := 2 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		q, err := queue.NewRabbitMQQueue(amqpURL)
		if err == nil {
			return q, nil
		}
		lastErr = err
		zapLogger.Warn("rabbitmq_connect_retry",
			zap.Int("attempt", attempt),
			zap.Duration("next_delay", delay),
			zap.Error(err),
		)
		time.Sleep(delay)
		if delay < 30*time.Second {
			delay *= 2
		}
	}
	return nil, lastErr
}
