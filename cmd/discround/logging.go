package main

import (
	"os"

	"github.com/charmbracelet/log"
)

// setupLogger configures console logging for a CLI run.
func setupLogger(debug bool) *log.Logger {
	logger := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
	})
	if debug {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

// parseLevel maps a config log level string onto the logger.
func parseLevel(logger *log.Logger, level string) {
	if lvl, err := log.ParseLevel(level); err == nil {
		logger.SetLevel(lvl)
	}
}
