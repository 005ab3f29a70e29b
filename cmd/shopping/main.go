package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/smallcodebases/shopping/internal/tui"
)

func main() {
	baseURL := flag.String("server", envOr("SHOPPING_SERVER", "http://localhost:8080"), "base URL of the shopping server")
	cachePath := flag.String("cache", envOr("SHOPPING_CACHE", defaultCachePath()), "path of the local snapshot cache")
	logPath := flag.String("log", envOr("SHOPPING_CLIENT_LOG", ""), "write logs to this file instead of discarding them")
	flag.Parse()

	logger := buildLogger(*logPath)

	if err := tui.Run(context.Background(), strings.TrimRight(*baseURL, "/"), *cachePath, logger); err != nil {
		logger.Error("client failed", "error", err)
		os.Exit(1)
	}
}

func envOr(name, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(name)); value != "" {
		return value
	}
	return fallback
}

func defaultCachePath() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "shopping", "snapshot.json")
}

// buildLogger keeps log output away from the terminal the TUI owns. Without
// a log file everything is dropped.
func buildLogger(path string) *slog.Logger {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return slog.New(slog.NewTextHandler(file, nil))
}
