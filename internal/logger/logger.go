// Package logger provides process-wide structured logging for termalive's
// long-lived processes (the session host daemon and any client program that
// links this package). Unlike a short-lived CLI invocation, a host process
// runs for days with many concurrent sessions and a config file that can be
// hot-reloaded, so the level is runtime-adjustable rather than fixed at
// startup.
package logger

import (
	"io"
	"log/slog"
	"os"
)

var (
	Log      *slog.Logger
	levelVar slog.LevelVar
)

// Init initializes the global logger. service identifies the process in
// every log line (e.g. "termalive-hostd") — useful once a client program and
// a host daemon are both writing to the same aggregated log stream.
func Init(level string, logFile string, service string) error {
	levelVar.Set(parseLevel(level))

	var writers []io.Writer
	writers = append(writers, os.Stdout)

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return err
		}
		writers = append(writers, f)
	}

	multiWriter := io.MultiWriter(writers...)

	handler := slog.NewTextHandler(multiWriter, &slog.HandlerOptions{
		Level: &levelVar,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Shorten time format
			if a.Key == slog.TimeKey {
				return slog.String("time", a.Value.Time().Format("15:04:05"))
			}
			return a
		},
	})

	Log = slog.New(handler)
	if service != "" {
		Log = Log.With("service", service)
	}
	slog.SetDefault(Log)

	return nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

// SetLevel changes the active log level without rebuilding the handler, so a
// host can pick up a new level from a reloaded termalive.yaml (see
// internal/config.Watcher) without dropping its open log file.
func SetLevel(level string) {
	levelVar.Set(parseLevel(level))
}

// Debug logs at debug level
func Debug(msg string, args ...any) {
	Log.Debug(msg, args...)
}

// Info logs at info level
func Info(msg string, args ...any) {
	Log.Info(msg, args...)
}

// Warn logs at warn level
func Warn(msg string, args ...any) {
	Log.Warn(msg, args...)
}

// Error logs at error level
func Error(msg string, args ...any) {
	Log.Error(msg, args...)
}

// For returns a logger tagged with a "component" attribute, so log lines
// from the host, a client worker, or the config watcher can be filtered
// without grepping message text.
func For(component string) *slog.Logger {
	if Log == nil {
		return slog.Default().With("component", component)
	}
	return Log.With("component", component)
}
