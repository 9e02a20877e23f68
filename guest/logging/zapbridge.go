package logging

import (
	"fmt"
	"log/slog"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewHostBridgeLogger creates a zap.Logger that forwards every entry to the
// host logger, which does the level filtering.
func NewHostBridgeLogger() *zap.Logger {
	return zap.New(&hostBridgeCore{})
}

// hostBridgeCore implements zapcore.Core on top of log_message.
type hostBridgeCore struct {
	fields []zapcore.Field
}

func (c *hostBridgeCore) Enabled(zapcore.Level) bool {
	return true
}

func (c *hostBridgeCore) With(fields []zapcore.Field) zapcore.Core {
	return &hostBridgeCore{fields: append(append([]zapcore.Field{}, c.fields...), fields...)}
}

func (c *hostBridgeCore) Check(entry zapcore.Entry, checkedEntry *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	return checkedEntry.AddCore(entry, c)
}

func (c *hostBridgeCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	enc := zapcore.NewMapObjectEncoder()
	for _, f := range c.fields {
		f.AddTo(enc)
	}
	for _, f := range fields {
		f.AddTo(enc)
	}

	fieldMap := make(map[string]string, len(enc.Fields)+1)
	for k, v := range enc.Fields {
		fieldMap[k] = fmt.Sprint(v)
	}
	if entry.LoggerName != "" {
		fieldMap["logger"] = entry.LoggerName
	}

	sendLogMessage(slogLevel(entry.Level), entry.Message, fieldMap)
	return nil
}

func (c *hostBridgeCore) Sync() error {
	return nil
}

func slogLevel(level zapcore.Level) slog.Level {
	switch level {
	case zapcore.DebugLevel:
		return slog.LevelDebug
	case zapcore.InfoLevel:
		return slog.LevelInfo
	case zapcore.WarnLevel:
		return slog.LevelWarn
	case zapcore.ErrorLevel:
		return slog.LevelError
	case zapcore.DPanicLevel:
		return LevelDPanic
	case zapcore.PanicLevel:
		return LevelPanic
	case zapcore.FatalLevel:
		return LevelFatal
	default:
		return slog.LevelInfo
	}
}
