// Package observability provides structured logging, metrics and health
// reporting shared by the perks API server, worker and CLI.
package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LogConfig configures NewLogger.
type LogConfig struct {
	Level  LogLevel
	Format LogFormat
	// Output defaults to os.Stderr.
	Output    io.Writer
	AddSource bool
	// ServiceName and ServiceVersion are attached to every record.
	ServiceName    string
	ServiceVersion string
	// RedactPII masks invitee email addresses and drops token values.
	RedactPII bool
}

// DefaultLogConfig is the development setup: text at info level.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:          LogLevelInfo,
		Format:         LogFormatText,
		Output:         os.Stderr,
		ServiceName:    "perks",
		ServiceVersion: "dev",
	}
}

// NewLogger builds a logger whose records carry the service attributes and
// the request scope of the context they are logged with.
func NewLogger(cfg LogConfig) *slog.Logger {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level:     parseSlogLevel(cfg.Level),
		AddSource: cfg.AddSource,
	}
	if cfg.RedactPII {
		opts.ReplaceAttr = redact
	}

	var handler slog.Handler
	if cfg.Format == LogFormatJSON {
		handler = slog.NewJSONHandler(cfg.Output, opts)
	} else {
		handler = slog.NewTextHandler(cfg.Output, opts)
	}

	var attrs []slog.Attr
	if cfg.ServiceName != "" {
		attrs = append(attrs, slog.String("service", cfg.ServiceName))
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, slog.String("version", cfg.ServiceVersion))
	}
	return slog.New(scopeHandler{handler.WithAttrs(attrs)})
}

// LoggerFor builds the logger for a binary from its configuration strings.
// Production switches to JSON on stdout with source locations and PII
// redaction; empty level, format or version keep the defaults.
func LoggerFor(env, level, format, version string) *slog.Logger {
	cfg := DefaultLogConfig()
	if env == "production" {
		cfg.Format = LogFormatJSON
		cfg.Output = os.Stdout
		cfg.AddSource = true
		cfg.RedactPII = true
		cfg.ServiceVersion = "unknown"
	}
	if level != "" {
		cfg.Level = LogLevel(strings.ToLower(level))
	}
	if format != "" {
		cfg.Format = LogFormat(strings.ToLower(format))
	}
	if version != "" {
		cfg.ServiceVersion = version
	}
	return NewLogger(cfg)
}

func parseSlogLevel(level LogLevel) slog.Level {
	switch level {
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn, "warning":
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// redact masks the local part of "email" attributes and blanks "token".
func redact(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case "email":
		local, domain, ok := strings.Cut(a.Value.String(), "@")
		if !ok || local == "" {
			return slog.String(a.Key, "***")
		}
		return slog.String(a.Key, string([]rune(local)[:1])+"***@"+domain)
	case "token":
		return slog.String(a.Key, "[redacted]")
	}
	return a
}

// scopeHandler adds the request scope of the logging context to each record.
type scopeHandler struct {
	slog.Handler
}

func (h scopeHandler) Handle(ctx context.Context, r slog.Record) error {
	r.AddAttrs(scopeAttrs(ctx)...)
	return h.Handler.Handle(ctx, r)
}

func (h scopeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return scopeHandler{h.Handler.WithAttrs(attrs)}
}

func (h scopeHandler) WithGroup(name string) slog.Handler {
	return scopeHandler{h.Handler.WithGroup(name)}
}
