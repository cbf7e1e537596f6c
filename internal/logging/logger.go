package logging

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/edvin/nodewatch/internal/config"
)

// New creates the root structured logger. Components derive their own
// sub-loggers with With().Str("component", ...).
func New(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "nodewatch").
		Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}
