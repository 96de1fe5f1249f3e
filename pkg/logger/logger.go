package logger

import (
	"context"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/trace"
)

// Setup configures the global zerolog logger. level is a zerolog level name;
// an unknown value keeps the mode default.
func Setup(isLocalDev bool, level string) {
	// Use Unix timestamps for performance and consistency
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	defaultLevel := zerolog.InfoLevel
	if isLocalDev {
		// Pretty printing for local development
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
		defaultLevel = zerolog.DebugLevel
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = defaultLevel
	}
	zerolog.SetGlobalLevel(lvl)

	// log.Ctx falls back to the global logger for contexts that were never enriched.
	zerolog.DefaultContextLogger = &log.Logger
}

// EnrichContextWithLogger adds a zerolog logger to the context with trace information.
func EnrichContextWithLogger(ctx context.Context) context.Context {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return ctx
	}

	sCtx := span.SpanContext()
	if !sCtx.HasTraceID() {
		return ctx
	}

	l := log.Ctx(ctx).With().
		Str("trace_id", sCtx.TraceID().String()).
		Str("span_id", sCtx.SpanID().String()).
		Logger()

	return l.WithContext(ctx)
}

// WithRequestID attaches the request id to the context logger.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	l := log.Ctx(ctx).With().Str("request_id", requestID).Logger()
	return l.WithContext(ctx)
}
