// Package lg wraps zap behind a small Logger interface so the rest of the
// code never imports zap directly and tests can swap in Discard.
package lg

import (
	"context"
	"log"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Field is a structured log field, aliasing zapcore.Field.
type Field = zapcore.Field

func Any(key string, value any) Field                { return zap.Any(key, value) }
func String(key, value string) Field                 { return zap.String(key, value) }
func Int(key string, value int) Field                { return zap.Int(key, value) }
func Bool(key string, value bool) Field              { return zap.Bool(key, value) }
func Float64(key string, value float64) Field        { return zap.Float64(key, value) }
func Duration(key string, value time.Duration) Field { return zap.Duration(key, value) }
func Err(err error) Field                            { return zap.Error(err) }

// Logger is the minimal structured logging surface used across the tool.
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	With(fields ...Field) Logger
	Sync() error
}

// Config holds logging options resolved from CLI flags.
type Config struct {
	ServiceName string
	Debug       bool
	Format      string // "json" or "console"
}

// New builds a zap-backed Logger. A broken zap configuration falls back to
// the standard log package rather than aborting the run.
func New(cfg Config) Logger {
	var base zap.Config
	if cfg.Debug {
		base = zap.NewDevelopmentConfig()
		base.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		base = zap.NewProductionConfig()
	}

	if cfg.Format != "" {
		base.Encoding = cfg.Format
	}
	base.EncoderConfig.TimeKey = "timestamp"
	base.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	if cfg.ServiceName != "" {
		base.InitialFields = map[string]any{"service": cfg.ServiceName}
	}

	// Diagnostics go to stderr; stdout is reserved for the report itself.
	base.OutputPaths = []string{"stderr"}

	logger, err := base.Build(zap.AddStacktrace(zapcore.ErrorLevel))
	if err != nil {
		log.Printf("cannot initialize zap logger, falling back to stdlib: %v", err)
		return stdLogger{}
	}
	return &zapLogger{l: logger}
}

type zapLogger struct{ l *zap.Logger }

func (z *zapLogger) Debug(msg string, fields ...Field) { z.l.Debug(msg, fields...) }
func (z *zapLogger) Info(msg string, fields ...Field)  { z.l.Info(msg, fields...) }
func (z *zapLogger) Warn(msg string, fields ...Field)  { z.l.Warn(msg, fields...) }
func (z *zapLogger) Error(msg string, fields ...Field) { z.l.Error(msg, fields...) }
func (z *zapLogger) With(fields ...Field) Logger       { return &zapLogger{z.l.With(fields...)} }
func (z *zapLogger) Sync() error                       { return z.l.Sync() }

// stdLogger is the fallback when zap cannot be built.
type stdLogger struct{}

func (stdLogger) Debug(msg string, _ ...Field) { log.Println("DEBUG:", msg) }
func (stdLogger) Info(msg string, _ ...Field)  { log.Println("INFO:", msg) }
func (stdLogger) Warn(msg string, _ ...Field)  { log.Println("WARN:", msg) }
func (stdLogger) Error(msg string, _ ...Field) { log.Println("ERROR:", msg) }
func (s stdLogger) With(_ ...Field) Logger     { return s }
func (stdLogger) Sync() error                  { return nil }

// ctxKey is unexported to avoid collisions.
type ctxKey struct{}

// Attach returns a new context carrying the provided Logger.
func Attach(ctx context.Context, lg Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, lg)
}

// FromContext retrieves the Logger from ctx, or Discard when absent.
func FromContext(ctx context.Context) Logger {
	if lg, ok := ctx.Value(ctxKey{}).(Logger); ok && lg != nil {
		return lg
	}
	return Discard
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...Field) {}
func (noopLogger) Info(string, ...Field)  {}
func (noopLogger) Warn(string, ...Field)  {}
func (noopLogger) Error(string, ...Field) {}
func (noopLogger) With(...Field) Logger   { return noopLogger{} }
func (noopLogger) Sync() error            { return nil }

// Discard drops everything. For tests.
var Discard Logger = noopLogger{}
