package logx

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New bikin logger production JSON. LOG_LEVEL=debug buat verbose.
func New(service string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if os.Getenv("LOG_LEVEL") == "debug" {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	lg, err := cfg.Build()
	if err != nil {
		panic(err)
	}
	return lg.With(zap.String("service", service))
}
