package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/smallcodebases/shopping/internal/httpapi"
	"github.com/smallcodebases/shopping/internal/shopping"
)

func main() {
	logger := buildLoggerFromEnv()

	addr := os.Getenv("SHOPPING_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	dsn, err := storageDSNFromEnv()
	if err != nil {
		logger.Error("storage configuration", "error", err)
		os.Exit(1)
	}

	store, err := shopping.Open(dsn)
	if err != nil {
		logger.Error("opening store", "dsn", dsn, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	server, err := httpapi.NewServer(store, logger)
	if err != nil {
		logger.Error("initializing server", "error", err)
		os.Exit(1)
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	logger.Info("listening", "addr", addr, "dsn", dsn)
	if err := httpServer.ListenAndServe(); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

// storageDSNFromEnv resolves where the data lives. SHOPPING_DSN wins when
// set; otherwise SHOPPING_BACKEND_PROFILE picks a sensible default.
func storageDSNFromEnv() (string, error) {
	if dsn := strings.TrimSpace(os.Getenv("SHOPPING_DSN")); dsn != "" {
		return dsn, nil
	}

	profile := strings.ToLower(strings.TrimSpace(os.Getenv("SHOPPING_BACKEND_PROFILE")))
	dataDir := strings.TrimSpace(os.Getenv("SHOPPING_DATA_DIR"))
	if dataDir == "" {
		dataDir = ".shopping"
	}
	switch profile {
	case "memory", "inmemory":
		return "memory://", nil
	case "production", "prod":
		dsn := strings.TrimSpace(os.Getenv("SHOPPING_POSTGRES_DSN"))
		if dsn == "" {
			return "", fmt.Errorf("SHOPPING_POSTGRES_DSN is required when SHOPPING_BACKEND_PROFILE=%s", profile)
		}
		return dsn, nil
	case "", "durable-local", "local-durable":
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return "", err
		}
		return "file://" + filepath.Join(dataDir, "shopping.db"), nil
	default:
		return "", fmt.Errorf("unsupported SHOPPING_BACKEND_PROFILE: %s", profile)
	}
}

func buildLoggerFromEnv() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(strings.TrimSpace(os.Getenv("SHOPPING_LOG_LEVEL"))) {
	case "debug":
		level = slog.LevelDebug
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
