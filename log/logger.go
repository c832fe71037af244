package log

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"strings"
	"time"
)

const (
	levelMaxVerbosity slog.Level = math.MinInt
	LevelTrace        slog.Level = -8
	LevelDebug                   = slog.LevelDebug
	LevelInfo                    = slog.LevelInfo
	LevelWarn                    = slog.LevelWarn
	LevelError                   = slog.LevelError
	LevelCrit         slog.Level = 12
)

// levels lists each level with its canonical name and accepted aliases.
var levels = []struct {
	level   slog.Level
	name    string
	aliases []string
}{
	{levelMaxVerbosity, "max", []string{"maxverbosity"}},
	{LevelTrace, "trace", nil},
	{LevelDebug, "debug", nil},
	{LevelInfo, "info", nil},
	{LevelWarn, "warn", []string{"warning"}},
	{LevelError, "error", nil},
	{LevelCrit, "crit", []string{"critical"}},
}

// LevelString is the lower-case name used in JSON records.
func LevelString(l slog.Level) string {
	for _, e := range levels {
		if e.level == l {
			return e.name
		}
	}
	return "unknown"
}

func ParseLevel(lvl string) (slog.Level, error) {
	lvl = strings.ToLower(strings.TrimSpace(lvl))
	for _, e := range levels {
		if e.name == lvl {
			return e.level, nil
		}
		for _, a := range e.aliases {
			if a == lvl {
				return e.level, nil
			}
		}
	}
	return 0, fmt.Errorf("invalid level: %s", lvl)
}

// Logger emits records tagged with the subsystem that produced them.
type Logger interface {
	// Write logs msg at level with the module as the first attribute.
	Write(level slog.Level, module string, msg string, attrs ...any)
	With(attrs ...any) Logger
	Enabled(ctx context.Context, level slog.Level) bool
	Handler() slog.Handler
}

type logger struct {
	inner *slog.Logger
}

func NewLogger(h slog.Handler) Logger {
	return &logger{inner: slog.New(h)}
}

func (l *logger) Handler() slog.Handler { return l.inner.Handler() }

func (l *logger) With(attrs ...any) Logger {
	return &logger{inner: l.inner.With(attrs...)}
}

func (l *logger) Enabled(ctx context.Context, level slog.Level) bool {
	return l.inner.Enabled(ctx, level)
}

func (l *logger) Write(level slog.Level, module string, msg string, attrs ...any) {
	ctx := context.Background()
	if !l.inner.Enabled(ctx, level) {
		return
	}
	// skip runtime.Callers, Write and the package-level wrapper
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])
	r := slog.NewRecord(time.Now(), level, msg, pcs[0])
	if module != "" {
		r.Add("module", module)
	}
	r.Add(attrs...)
	_ = l.inner.Handler().Handle(ctx, r)
}
