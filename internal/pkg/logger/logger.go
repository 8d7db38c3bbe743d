package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/go-chi/httplog/v3"
	"github.com/sitepass/subscription-whitelist/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

const appName = "subscription-whitelist"

// New builds the process-wide JSON logger. Records use the ECS field schema
// so request logs and application logs share one shape. When cfg.LogFile is
// set, output is duplicated into a size-rotated file.
func New(cfg config.AppConfig) *slog.Logger {
	var w io.Writer = os.Stdout
	if cfg.LogFile != "" {
		w = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
			Compress:   true,
		})
	}

	logFormat := httplog.SchemaECS.Concise(cfg.Env == "development")
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       ParseLevel(cfg.LogLevel),
		ReplaceAttr: logFormat.ReplaceAttr,
	})

	return slog.New(handler).With(
		slog.String("app", appName),
		slog.String("version", cfg.Version),
		slog.String("env", cfg.Env),
	)
}

// ParseLevel maps a config string to a slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
