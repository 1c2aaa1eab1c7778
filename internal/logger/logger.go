// Package logger wraps charmbracelet/log behind a small structured
// logging facade shared by every pipeline component.
package logger

import (
	"os"

	charmlog "github.com/charmbracelet/log"
)

var defaultLogger = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
	ReportTimestamp: true,
	TimeFormat:      "15:04:05",
	Level:           charmlog.InfoLevel,
})

// Setup configures the process-wide logger. Called once from the CLI
// before any component logs.
func Setup(level string, json bool) {
	switch level {
	case "debug":
		defaultLogger.SetLevel(charmlog.DebugLevel)
	case "warn":
		defaultLogger.SetLevel(charmlog.WarnLevel)
	case "error":
		defaultLogger.SetLevel(charmlog.ErrorLevel)
	default:
		defaultLogger.SetLevel(charmlog.InfoLevel)
	}
	if json {
		defaultLogger.SetFormatter(charmlog.JSONFormatter)
	}
}

func Debug(msg string, keyvals ...any) {
	defaultLogger.Debug(msg, keyvals...)
}

func Info(msg string, keyvals ...any) {
	defaultLogger.Info(msg, keyvals...)
}

func Warn(msg string, keyvals ...any) {
	defaultLogger.Warn(msg, keyvals...)
}

func Error(msg string, keyvals ...any) {
	defaultLogger.Error(msg, keyvals...)
}

// With returns a sub-logger carrying the given key-value context.
func With(keyvals ...any) *charmlog.Logger {
	return defaultLogger.With(keyvals...)
}
