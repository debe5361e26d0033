package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for the kirbyam tracer.
const tracerName = "github.com/MrWong99/kirbyam"

// Tracer returns the kirbyam [trace.Tracer] from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

type playerKey struct{}

type player struct {
	slot int
	name string
}

// WithPlayer tags ctx with the multiworld slot and name being built. Spans
// started from the returned context and loggers taken from it carry both,
// so concurrent world builds stay apart in traces and logs.
func WithPlayer(ctx context.Context, slot int, name string) context.Context {
	return context.WithValue(ctx, playerKey{}, player{slot: slot, name: name})
}

// PlayerFrom returns the player set by [WithPlayer].
func PlayerFrom(ctx context.Context) (slot int, name string, ok bool) {
	p, ok := ctx.Value(playerKey{}).(player)
	return p.slot, p.name, ok
}

// StartSpan starts a new span and returns the updated context and span. The
// caller must call span.End() when done.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	if p, ok := ctx.Value(playerKey{}).(player); ok {
		opts = append(opts[:len(opts):len(opts)], trace.WithAttributes(
			attribute.Int("kirbyam.player", p.slot),
			attribute.String("kirbyam.player_name", p.name),
		))
	}
	return Tracer().Start(ctx, name, opts...)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// CorrelationID extracts the trace ID from the span context in ctx. Returns
// the empty string when no span with a valid trace ID is active.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default [slog.Logger] enriched with trace_id and
// span_id when ctx carries an active span, and with player and
// player_name after [WithPlayer].
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if p, ok := ctx.Value(playerKey{}).(player); ok {
		l = l.With(slog.Int("player", p.slot), slog.String("player_name", p.name))
	}
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
