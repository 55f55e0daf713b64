// Package logging builds the application logger and finds it in a context.
package logging

import (
	"context"
	"fmt"
	"io"

	logger "github.com/go-core-fx/cli-logger"
	"github.com/samber/lo"
)

//nolint:gochecknoglobals // fallback for contexts without a logger
var nop = lo.Must(logger.New(logger.Config{
	Level:  logger.LogLevelFatal,
	Format: logger.FormatHuman,
	Output: io.Discard,
}))

// New starts from the LOG_* environment defaults. debug lowers the level to
// DEBUG, a non-nil output replaces the configured one.
func New(debug bool, output io.Writer) (logger.Logger, error) {
	cfg := logger.DefaultConfig()
	if debug {
		cfg.Level = logger.LogLevelDebug
	}
	if output != nil {
		cfg.Output = output
	}

	log, err := logger.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("can't create logger: %w", err)
	}

	return log, nil
}

// FromContext returns the logger attached with logger.WithLogger, or one that
// discards everything.
func FromContext(ctx context.Context) logger.Logger {
	if log := logger.GetLogger(ctx); log != nil {
		return log
	}
	return nop
}
