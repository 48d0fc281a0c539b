// Package logging configures the process wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"hue-toys/internal/config"
)

// Setup applies the level and format from cfg to the standard logger.
func Setup(cfg config.LogConfig) error {
	return setup(log.StandardLogger(), os.Stderr, cfg)
}

func setup(logger *log.Logger, out io.Writer, cfg config.LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	switch cfg.Format {
	case "", "text":
		logger.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		logger.SetFormatter(&log.JSONFormatter{})
	default:
		return fmt.Errorf("logging: unknown format %q", cfg.Format)
	}

	logger.SetLevel(level)
	logger.SetOutput(out)
	return nil
}
