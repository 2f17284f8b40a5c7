package handlers

import (
	"io"
	"log/slog"

	"commercepay/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{Environment: "local"}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
