// Package observability builds the server's zap loggers.
package observability

import (
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cory-johannsen/vowmud/internal/config"
)

// Service is attached to every entry so logs from several processes can be
// told apart.
const Service = "vowmud"

// formats maps a logging.format value to the zap preset it starts from.
var formats = map[string]func() zap.Config{
	"json":    zap.NewProductionConfig,
	"console": zap.NewDevelopmentConfig,
}

// NewLogger builds a logger at cfg.Level writing cfg.Format to stderr.
func NewLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	preset, ok := formats[cfg.Format]
	if !ok {
		names := make([]string, 0, len(formats))
		for name := range formats {
			names = append(names, name)
		}
		slices.Sort(names)
		return nil, fmt.Errorf("log format %q is not one of %s", cfg.Format, strings.Join(names, ", "))
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	zc := preset()
	zc.Level = level
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.InitialFields = map[string]any{"service": Service}
	return zc.Build()
}

// SessionLogger tags logger with one connection's session id and address.
func SessionLogger(logger *zap.Logger, sessionID, remoteAddr string) *zap.Logger {
	return logger.With(zap.String("session_id", sessionID), zap.String("remote_addr", remoteAddr))
}
