package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"

	database "github.com/mjRam27/Explorix/app/db"
	appLogger "github.com/mjRam27/Explorix/app/logger"
	appMiddleware "github.com/mjRam27/Explorix/app/middleware"
	mongodb "github.com/mjRam27/Explorix/app/mongo"
	"github.com/mjRam27/Explorix/app/observability/metrics"
	"github.com/mjRam27/Explorix/app/tracer"
	"github.com/mjRam27/Explorix/config"
	"github.com/mjRam27/Explorix/internal/api/chat"
	generativeAI "github.com/mjRam27/Explorix/internal/api/generative_ai"
	"github.com/mjRam27/Explorix/internal/api/itinerary"
	"github.com/mjRam27/Explorix/internal/api/poi"
	"github.com/mjRam27/Explorix/internal/api/translate"
	"github.com/mjRam27/Explorix/internal/router"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not loaded: %v", err)
	}

	logger := setupLogger()
	slog.SetDefault(logger)

	cfg, err := config.InitConfig()
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	tracer.InitTracingAndMetrics()
	metrics.InitAppMetrics()

	// --- Postgres ---
	dbConfig, err := database.NewDatabaseConfig(&cfg, logger)
	if err != nil {
		logger.Error("Failed to build database config", slog.Any("error", err))
		os.Exit(1)
	}
	if err := database.RunMigrations(dbConfig.ConnectionURL, logger); err != nil {
		logger.Error("Failed to run database migrations", slog.Any("error", err))
		os.Exit(1)
	}
	pool, err := database.Init(dbConfig.ConnectionURL, logger)
	if err != nil {
		logger.Error("Failed to initialize database pool", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()
	if !database.WaitForDB(ctx, pool, logger) {
		logger.Error("Database not ready after waiting, exiting.")
		os.Exit(1)
	}

	// --- Mongo (conversation store) ---
	mongoClient, err := mongodb.Init(ctx, &cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize MongoDB client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			logger.Error("Failed to disconnect MongoDB client", slog.Any("error", err))
		}
	}()
	mongoDB := mongodb.Database(mongoClient, &cfg)

	// --- Gateway ---
	aiClient, err := generativeAI.NewAIClient(ctx, cfg.Gateway.Model, cfg.Gateway.Temperature)
	if err != nil {
		logger.Error("Failed to initialize AI client", slog.Any("error", err))
		os.Exit(1)
	}

	// --- Dependency Injection ---
	poiRepo := poi.NewRepository(pool, logger)
	poiHandler := poi.NewHandler(poiRepo, logger)

	itineraryRepo := itinerary.NewRepository(pool, logger)
	itineraryService := itinerary.NewService(itineraryRepo, poiRepo, cfg.Chat.CandidateLimit, logger)
	itineraryHandler := itinerary.NewHandler(itineraryService, logger)

	chatRepo := chat.NewRepository(mongoDB, logger)
	chatService := chat.NewService(chatRepo, poiRepo, aiClient, translate.Disabled{}, chat.Options{
		MaxHistory:     cfg.Chat.MaxHistory,
		GroundingLimit: cfg.Chat.GroundingLimit,
		CandidateLimit: cfg.Chat.CandidateLimit,
		GatewayTimeout: cfg.Gateway.Timeout,
	}, logger)
	chatHandler := chat.NewHandler(chatService, logger)

	// --- Router Setup ---
	routerConfig := &router.Config{
		ChatHandler:            chatHandler,
		ItineraryHandler:       itineraryHandler,
		POIHandler:             poiHandler,
		AuthenticateMiddleware: appMiddleware.Authenticate,
	}
	mainRouter := router.SetupRouter(routerConfig)

	r := chi.NewMux()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appLogger.StructuredLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.StripSlashes)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5, "application/json"))
	r.Mount("/", mainRouter)

	// --- HTTP Server Setup ---
	serverAddress := fmt.Sprintf(":%s", cfg.Server.HTTPPort)
	srv := &http.Server{
		Addr:         serverAddress,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		logger.Info("Starting HTTP server", slog.String("address", serverAddress))
		err := srv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server ListenAndServe error", slog.Any("error", err))
			cancel()
		}
	}()

	<-ctx.Done()

	logger.Info("Shutdown signal received, starting graceful shutdown...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server graceful shutdown failed", slog.Any("error", err))
	} else {
		logger.Info("HTTP server gracefully stopped")
	}

	logger.Info("Application shut down complete.")
}

// setupLogger configures and returns the application logger.
func setupLogger() *slog.Logger {
	var logger *slog.Logger
	env := os.Getenv("APP_ENV")

	if env == "development" || env == "" {
		// Colored logs for development
		tintOpts := &tint.Options{
			Level:      slog.LevelDebug,
			TimeFormat: time.Kitchen,
			AddSource:  true,
		}
		logger = slog.New(tint.NewHandler(os.Stdout, tintOpts))
		log.Println("Initialized development logger (tint)")
	} else {
		// JSON logs for production
		jsonOpts := &slog.HandlerOptions{
			Level:     slog.LevelInfo,
			AddSource: false,
		}
		logger = slog.New(slog.NewJSONHandler(os.Stdout, jsonOpts))
		log.Println("Initialized production logger (JSON)")
	}
	return logger
}
