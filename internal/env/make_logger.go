package env

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// MakeLogger builds the zap logger the CLI and Conn share. level accepts
// any zapcore.Level name ("debug", "info", "warn", "error"); an empty or
// unrecognized level falls back to info.
func MakeLogger(level string) (*zap.Logger, error) {
	logConfig := zap.NewProductionConfig()

	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zap.InfoLevel
	}
	logConfig.Level = zap.NewAtomicLevelAt(lvl)
	logConfig.Encoding = "json"

	return logConfig.Build()
}
