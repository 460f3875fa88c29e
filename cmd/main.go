package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"

	"github.com/avoronkov/fieldside/config"
	"github.com/avoronkov/fieldside/db"
	"github.com/avoronkov/fieldside/handlers"
	"github.com/avoronkov/fieldside/live"
	"github.com/avoronkov/fieldside/repositories"
	api "github.com/avoronkov/fieldside/routes"
	"github.com/avoronkov/fieldside/services"
	"github.com/avoronkov/fieldside/storage"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("configuration loaded", slog.Int("port", cfg.ServerPort))

	dbConn, err := db.Connect(cfg.DatabaseURL, 5*time.Second)
	if err != nil {
		logger.Error("failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Error("failed to close database connection", slog.Any("error", err))
		} else {
			logger.Info("database connection closed")
		}
	}()
	logger.Info("database connection established")

	uploader, err := storage.NewCloudflareR2Uploader(storage.CloudflareR2UploaderConfig{
		AccountID:       cfg.R2AccountID,
		AccessKeyID:     cfg.R2AccessKeyID,
		SecretAccessKey: cfg.R2SecretAccessKey,
		BucketName:      cfg.R2BucketName,
		PublicBaseURL:   cfg.R2PublicBaseURL,
	})
	if err != nil {
		logger.Error("failed to initialize Cloudflare R2 uploader", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Cloudflare R2 uploader initialized")

	wsHub := live.NewHub(logger)
	go wsHub.Run()
	logger.Info("websocket hub started")

	userRepo := repositories.NewPostgresUserRepository(dbConn)
	teamRepo := repositories.NewPostgresTeamRepository(dbConn)
	playerRepo := repositories.NewPostgresPlayerRepository(dbConn)
	postRepo := repositories.NewPostgresPostRepository(dbConn)
	matchRepo := repositories.NewPostgresMatchRepository(dbConn)
	statRepo := repositories.NewPostgresMatchStatRepository(dbConn)
	logger.Info("repositories initialized")

	authService := services.NewAuthService(userRepo)
	teamService := services.NewTeamService(teamRepo, playerRepo, uploader)
	playerService := services.NewPlayerService(playerRepo, uploader)
	postService := services.NewPostService(postRepo, uploader)
	matchService := services.NewMatchService(matchRepo, statRepo, teamRepo)
	logger.Info("services initialized")

	liveController := live.NewLiveMatchController(live.ControllerConfig{
		Store:       live.NewMatchStatsStore(),
		Broadcaster: wsHub,
		Matches:     matchRepo,
		Rosters:     playerRepo,
		Stats:       statRepo,
		Logger:      logger,
	})
	logger.Info("live match controller initialized")

	authHandler := handlers.NewAuthHandler(authService, cfg.JWTSecretKey)
	teamHandler := handlers.NewTeamHandler(teamService)
	playerHandler := handlers.NewPlayerHandler(playerService)
	postHandler := handlers.NewPostHandler(postService)
	matchHandler := handlers.NewMatchHandler(matchService)
	liveHandler := handlers.NewLiveHandler(liveController)
	webSocketHandler := handlers.NewWebSocketHandler(wsHub, liveController, logger)
	logger.Info("HTTP handlers initialized")

	router := chi.NewRouter()
	api.SetupRoutes(
		router,
		cfg.JWTSecretKey,
		cfg.CORSAllowedOrigins,
		authHandler,
		teamHandler,
		playerHandler,
		postHandler,
		matchHandler,
		liveHandler,
		webSocketHandler,
	)
	logger.Info("routes configured")

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.String("address", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("server stopped gracefully")
	case sig := <-quit:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", slog.Any("error", err))
			if closeErr := server.Close(); closeErr != nil {
				logger.Error("failed to force close server", slog.Any("error", closeErr))
			}
		}

		// Flush every pending live write before the process exits so no
		// debounced stat update is lost.
		if err := liveController.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to drain live match writes", slog.Any("error", err))
		} else {
			logger.Info("live match writes drained")
		}
	}
	logger.Info("application exited")
}
