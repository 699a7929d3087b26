// Package logging wraps zap with the key/value helpers used across the engine.
package logging

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLevel keeps one-shot CLI output free of routine info lines.
const DefaultLevel = zapcore.WarnLevel

// Logger is a sugared zap logger. The zero value is not usable; build one
// with New, FromZap or Nop.
type Logger struct {
	s *zap.SugaredLogger
}

// New writes to stderr. mode "production" (or "prod") selects the JSON
// encoder, anything else the console encoder. An empty level means
// DefaultLevel.
func New(mode, level string) (*Logger, error) {
	lvl := DefaultLevel
	if level != "" {
		var err error
		if lvl, err = zapcore.ParseLevel(level); err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
	}
	return FromZap(zap.New(zapcore.NewCore(encoder(mode), zapcore.Lock(os.Stderr), lvl))), nil
}

func encoder(mode string) zapcore.Encoder {
	switch strings.ToLower(mode) {
	case "prod", "production":
		return zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	}
	ec := zap.NewDevelopmentEncoderConfig()
	ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
	return zapcore.NewConsoleEncoder(ec)
}

// FromZap adapts an existing zap logger, e.g. one backed by zaptest/observer.
func FromZap(z *zap.Logger) *Logger {
	return &Logger{s: z.Sugar()}
}

// Nop returns a logger that discards everything.
func Nop() *Logger { return FromZap(zap.NewNop()) }

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l *Logger) *Logger {
	if l == nil {
		return Nop()
	}
	return l
}

// Sync flushes buffered entries. Errors from syncing a terminal are ignored.
func (l *Logger) Sync() { _ = l.s.Sync() }

func (l *Logger) Debug(msg string, kv ...any) { l.s.Debugw(msg, kv...) }
func (l *Logger) Info(msg string, kv ...any)  { l.s.Infow(msg, kv...) }
func (l *Logger) Warn(msg string, kv ...any)  { l.s.Warnw(msg, kv...) }
func (l *Logger) Error(msg string, kv ...any) { l.s.Errorw(msg, kv...) }

// With returns a child logger that adds kv to every entry.
func (l *Logger) With(kv ...any) *Logger { return &Logger{s: l.s.With(kv...)} }

// Enabled reports whether entries at lvl are written.
func (l *Logger) Enabled(lvl zapcore.Level) bool {
	return l.s.Desugar().Core().Enabled(lvl)
}
