package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewComponentLogger creates a structured logger tagged with the component
// name and version. Production JSON output by default; DEBUG=true switches
// to development encoding at debug level.
func NewComponentLogger(component, version string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if os.Getenv("DEBUG") == "true" {
		cfg = zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}

	logger, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	return logger.With(
		zap.String("component", component),
		zap.String("version", version),
	), nil
}
