package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/blasperez/Private-Chat/internal/api"
	"github.com/blasperez/Private-Chat/internal/archive"
	"github.com/blasperez/Private-Chat/internal/auth"
	"github.com/blasperez/Private-Chat/internal/blob"
	"github.com/blasperez/Private-Chat/internal/config"
	"github.com/blasperez/Private-Chat/internal/registry"
	"github.com/blasperez/Private-Chat/internal/store"
)

func main() {
	cfg := config.Load()

	var logger zerolog.Logger
	if cfg.IsDevelopment() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().
			Timestamp().
			Logger()
	} else {
		logger = zerolog.New(os.Stdout).
			With().
			Timestamp().
			Logger()
	}

	ctx := context.Background()

	// Relational backend: Postgres when DATABASE_URL is set, SQLite
	// otherwise. Both implement the same DataStore surface.
	var (
		dataStore store.DataStore
		err       error
	)
	if cfg.DatabaseURL != "" {
		dataStore, err = store.NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connection failed")
		}
		logger.Info().Msg("connected to PostgreSQL")
	} else {
		dataStore, err = store.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			logger.Fatal().Err(err).Msg("sqlite open failed")
		}
		logger.Info().Str("path", cfg.SQLitePath).Msg("opened SQLite database")
	}
	defer dataStore.Close()

	// Blob backend for media and encrypted archives.
	var blobs blob.Store
	switch cfg.BlobBackend {
	case "gridfs":
		blobs, err = blob.NewGridFSStore(ctx, cfg.MongoURL, cfg.GridFSBucket, "privatechat")
		if err != nil {
			logger.Fatal().Err(err).Msg("gridfs connection failed")
		}
		logger.Info().Str("bucket", cfg.GridFSBucket).Msg("connected to GridFS")
	default:
		blobs, err = blob.NewLocalStore(cfg.DataDir)
		if err != nil {
			logger.Fatal().Err(err).Msg("local blob store init failed")
		}
		logger.Info().Str("dir", cfg.DataDir).Msg("using local blob store")
	}

	var redisStore *store.RedisStore
	if cfg.RedisURL != "" {
		redisStore, err = store.NewRedisStore(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis connection failed")
		}
		defer redisStore.Close()
		logger.Info().Msg("connected to Redis")
	}

	if cfg.EncryptionKey == nil {
		logger.Warn().Msg("ENCRYPTION_KEY not set, archives will be written in cleartext")
	}

	secret := cfg.SessionSecret
	if secret == "" {
		secret = "dev-session-secret"
	}
	tokens := auth.NewTokenManager(secret, cfg.SessionTTL)

	archiver := archive.NewArchiver(dataStore, blobs, cfg.EncryptionKey, logger)
	reg := registry.New(dataStore, archiver, cfg.GracePeriod, cfg.DefaultCapacity, logger)
	access := auth.NewService(dataStore, reg, tokens, logger)

	router := api.NewRouter(api.Deps{
		Config:   cfg,
		Store:    dataStore,
		Blobs:    blobs,
		Redis:    redisStore,
		Registry: reg,
		Access:   access,
		Tokens:   tokens,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().
			Str("port", cfg.Port).
			Str("env", cfg.Env).
			Msg("starting private-chat server")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server forced to shutdown")
	}

	logger.Info().Msg("server stopped")
}
