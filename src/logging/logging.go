package logging

import (
	"os"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// GetZapLogger builds the process-wide logger: a plain console logger for
// local runs, sampled JSON for deployments. LOG_LEVEL overrides the default
// level in both modes.
func GetZapLogger() (*zap.Logger, error) {
	_ = godotenv.Load()
	if os.Getenv("LOCAL") == "true" {
		cfg := zap.Config{
			Level:            zap.NewAtomicLevelAt(zap.DebugLevel),
			Development:      true,
			Encoding:         "console",
			EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
			OutputPaths:      []string{"stderr"},
			ErrorOutputPaths: []string{"stderr"},
		}
		applyLevelOverride(&cfg)
		return cfg.Build()
	}

	cfg := zap.Config{
		Level:       zap.NewAtomicLevelAt(zap.InfoLevel),
		Development: false,
		Sampling: &zap.SamplingConfig{
			Initial:    100,
			Thereafter: 100,
		},
		Encoding:         "json",
		EncoderConfig:    zap.NewProductionEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}
	applyLevelOverride(&cfg)
	return cfg.Build()
}

func applyLevelOverride(cfg *zap.Config) {
	raw := os.Getenv("LOG_LEVEL")
	if raw == "" {
		return
	}
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return // keep the default on a bad value
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
}
