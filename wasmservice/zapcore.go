package wasmservice

import (
	"log/slog"

	"go.uber.org/zap/zapcore"
)

// zapLevelFromSlogLevel maps a guest slog level onto the nearest zap level.
func zapLevelFromSlogLevel(level int32) zapcore.Level {
	switch l := slog.Level(level); {
	case l >= slog.LevelError:
		return zapcore.ErrorLevel
	case l >= slog.LevelWarn:
		return zapcore.WarnLevel
	case l >= slog.LevelInfo:
		return zapcore.InfoLevel
	default:
		return zapcore.DebugLevel
	}
}
