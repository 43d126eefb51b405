package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"medichat-server/internal/config"
	"medichat-server/internal/events"
	"medichat-server/internal/llm"
	"medichat-server/internal/logging"
	"medichat-server/internal/middleware"
	"medichat-server/internal/models"
	"medichat-server/internal/routes"
	"medichat-server/internal/services"
	"medichat-server/internal/storage"
)

func main() {
	// Load environment variables; a missing .env is fine outside development
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("Error loading .env file: %v", err)
	}

	// Initialize configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Error loading config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("Error creating logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	// Initialize database connection
	db, err := models.InitDB(models.DatabaseConfig{
		Driver: cfg.Database.Driver,
		DSN:    cfg.Database.DSN,
	})
	if err != nil {
		logger.Fatal("database connection error", zap.Error(err))
	}

	evaluator, err := llm.NewEvaluator(cfg.LLM, logger)
	if err != nil {
		logger.Fatal("safety evaluator setup error", zap.Error(err))
	}
	generator := llm.NewClient(cfg.LLM, logger)

	var publisher events.Publisher = events.NopPublisher{}
	if len(cfg.Events.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Events.Brokers, cfg.Events.Topic)
		logger.Info("publishing turn events", zap.Strings("brokers", cfg.Events.Brokers), zap.String("topic", cfg.Events.Topic))
	}
	defer publisher.Close()

	var attachments storage.AttachmentStore
	if cfg.Storage.Endpoint != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		store, err := storage.NewMinIOStore(ctx, cfg.Storage)
		cancel()
		if err != nil {
			logger.Fatal("minio connection error", zap.Error(err))
		}
		attachments = store
		logger.Info("archiving chat attachments", zap.String("bucket", cfg.Storage.Bucket))
	}

	sessions := services.NewSessionService(db)
	messages := services.NewMessageService(db)
	chat := services.NewChatService(db, messages, generator, evaluator, publisher, logger, services.ChatOptions{
		MemoryMaxTurns: cfg.LLM.MemoryMaxTurns,
		Timeout:        cfg.LLM.Timeout,
	})

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	// Configure CORS
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{cfg.Origin}
	corsConfig.AllowCredentials = cfg.Origin != "*"
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	routes.SetupRoutes(router, routes.Dependencies{
		DB:          db,
		Config:      cfg,
		Logger:      logger,
		Sessions:    sessions,
		Messages:    messages,
		Chat:        chat,
		Attachments: attachments,
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Port),
		Handler: router,
	}
	go func() {
		logger.Info("server running", zap.String("port", cfg.Port), zap.Bool("debug", cfg.Debug))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server listen error", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return
	}
	logger.Info("server shutdown complete")
}
