// Package logging sends guest log records to the host logger through the
// log_message host function.
package logging

import (
	"encoding/json"
	"log/slog"

	"github.com/purelang/launcher/guest/internal/imports"
)

// Extended log levels beyond slog to support Zap's additional levels
const (
	LevelDPanic slog.Level = slog.LevelError + 1 // 9
	LevelPanic  slog.Level = slog.LevelError + 2 // 10
	LevelFatal  slog.Level = slog.LevelError + 3 // 11
)

// LogMessage represents a structured log message to be sent to the host
type LogMessage struct {
	Level   int32             `json:"level"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// send delivers an encoded record. Replaced in tests.
var send = imports.LogMessage

// sendLogMessage sends a log message to the host
func sendLogMessage(level slog.Level, message string, fields map[string]string) {
	logBytes, err := json.Marshal(LogMessage{
		Level:   int32(level),
		Message: message,
		Fields:  fields,
	})
	if err != nil {
		// If marshaling fails, we can't log it, so we return silently
		return
	}
	send(logBytes)
}

func firstFields(fields []map[string]string) map[string]string {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

// Debug logs a debug-level message
func Debug(message string, fields ...map[string]string) {
	sendLogMessage(slog.LevelDebug, message, firstFields(fields))
}

// Info logs an info-level message
func Info(message string, fields ...map[string]string) {
	sendLogMessage(slog.LevelInfo, message, firstFields(fields))
}

// Warn logs a warning-level message
func Warn(message string, fields ...map[string]string) {
	sendLogMessage(slog.LevelWarn, message, firstFields(fields))
}

// Error logs an error-level message
func Error(message string, fields ...map[string]string) {
	sendLogMessage(slog.LevelError, message, firstFields(fields))
}

// Logger logs slog attributes to the host.
type Logger struct{}

// NewLogger creates a new logger instance
func NewLogger() *Logger {
	return &Logger{}
}

// LogAttrs logs a message with structured attributes
func (l *Logger) LogAttrs(level slog.Level, msg string, attrs ...slog.Attr) {
	fields := make(map[string]string, len(attrs))
	for _, attr := range attrs {
		fields[attr.Key] = attr.Value.String()
	}
	sendLogMessage(level, msg, fields)
}
