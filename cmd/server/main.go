package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gridrow/tictactoe-backend/internal/codes"
	"github.com/gridrow/tictactoe-backend/internal/httpapi"
	"github.com/gridrow/tictactoe-backend/internal/hub"
	"github.com/gridrow/tictactoe-backend/internal/identity"
	"github.com/gridrow/tictactoe-backend/internal/session"
	"github.com/gridrow/tictactoe-backend/internal/store"
)

func main() {
	_ = godotenv.Load()
	logger := newLogger(getEnv("LOG_LEVEL", "info"))
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := openStore(logger)
	registry := codes.NewRegistry(st)
	h := hub.NewHub(ctx, logger)
	sessions := session.New(st, registry, h, logger)
	players := identity.New(st, logger)

	api := httpapi.NewServer(sessions, players, logger)
	handler := httpapi.SetupRoutes(api, h, logger)

	addr := ":" + getEnv("PORT", "8080")
	srv := &http.Server{Addr: addr, Handler: handler}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server exited", zap.Error(err))
	}
}

// openStore prefers Postgres when DATABASE_URL is set and falls back to
// the in-memory store, so the server always comes up.
func openStore(logger *zap.Logger) store.Store {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Info("no DATABASE_URL, using in-memory store")
		return store.NewMemory()
	}
	st, err := store.OpenPostgres(dsn, logger)
	if err != nil {
		logger.Warn("postgres unavailable, using in-memory store", zap.Error(err))
		return store.NewMemory()
	}
	logger.Info("connected to postgres")
	return st
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return logger
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
