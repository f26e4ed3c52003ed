package main

import (
	"log/slog"
	"os"

	"github.com/kstaniek/go-ovms-va/internal/logging"
)

func setupLogger(format, level string) *slog.Logger {
	l := logging.New(format, logging.ParseLevel(level), os.Stderr).With("app", "ovms-va")
	logging.Set(l)
	return l
}
