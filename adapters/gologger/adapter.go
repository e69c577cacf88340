// Package gologger backs the glog logging contracts with log/slog handlers.
package gologger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	glog "github.com/goliatone/go-logger/glog"
)

const (
	LevelTrace = slog.Level(-8)
	LevelFatal = slog.Level(12)
)

type Options struct {
	Level     string
	Format    string
	AddSource bool
}

// Logger implements glog.Logger and glog.FieldsLogger over a *slog.Logger.
// Fatal logs above error and leaves process exit to the caller.
type Logger struct {
	base *slog.Logger
	ctx  context.Context
}

func New(base *slog.Logger) *Logger {
	if base == nil {
		base = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Logger{base: base, ctx: context.Background()}
}

// NewFromOptions builds a text or JSON handler writing to w.
func NewFromOptions(w io.Writer, opts Options) (*Logger, error) {
	level, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	handlerOpts := &slog.HandlerOptions{Level: level, AddSource: opts.AddSource}
	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "", "json":
		handler = slog.NewJSONHandler(w, handlerOpts)
	case "text":
		handler = slog.NewTextHandler(w, handlerOpts)
	default:
		return nil, fmt.Errorf("gologger: unknown log format %q", opts.Format)
	}
	return New(slog.New(handler)), nil
}

func ParseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "info":
		return slog.LevelInfo, nil
	case "trace":
		return LevelTrace, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("gologger: unknown log level %q", raw)
	}
}

func (l *Logger) Trace(msg string, args ...any) { l.log(LevelTrace, msg, args) }
func (l *Logger) Debug(msg string, args ...any) { l.log(slog.LevelDebug, msg, args) }
func (l *Logger) Info(msg string, args ...any)  { l.log(slog.LevelInfo, msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.log(slog.LevelWarn, msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.log(slog.LevelError, msg, args) }
func (l *Logger) Fatal(msg string, args ...any) { l.log(LevelFatal, msg, args) }

func (l *Logger) WithContext(ctx context.Context) glog.Logger {
	if l == nil {
		return glog.Nop()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return &Logger{base: l.base, ctx: ctx}
}

// WithFields attaches fields as attributes in key order.
func (l *Logger) WithFields(fields map[string]any) glog.Logger {
	if l == nil {
		return glog.Nop()
	}
	if len(fields) == 0 {
		return l
	}
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	args := make([]any, 0, len(keys)*2)
	for _, key := range keys {
		args = append(args, key, fields[key])
	}
	return &Logger{base: l.base.With(args...), ctx: l.ctx}
}

// Named returns a child logger tagged with a logger attribute.
func (l *Logger) Named(name string) *Logger {
	if l == nil {
		return New(nil)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return l
	}
	return &Logger{base: l.base.With("logger", name), ctx: l.ctx}
}

func (l *Logger) log(level slog.Level, msg string, args []any) {
	if l == nil || l.base == nil {
		return
	}
	ctx := l.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	l.base.Log(ctx, level, msg, args...)
}

// Provider hands out named children of one root logger.
type Provider struct {
	Root *Logger
}

func NewProvider(root *Logger) Provider {
	return Provider{Root: root}
}

func (p Provider) GetLogger(name string) glog.Logger {
	if p.Root == nil {
		return glog.Nop()
	}
	return p.Root.Named(name)
}

var (
	_ glog.Logger         = (*Logger)(nil)
	_ glog.FieldsLogger   = (*Logger)(nil)
	_ glog.LoggerProvider = Provider{}
)
