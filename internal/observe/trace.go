package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/MrWong99/cueline"

// Span attributes set on alignment and transcription spans.
const (
	AttrScorer     = attribute.Key("cueline.match.scorer")
	AttrSearched   = attribute.Key("cueline.match.searched_lines")
	AttrAllLines   = attribute.Key("cueline.match.all_lines")
	AttrBestIdx    = attribute.Key("cueline.match.best_idx")
	AttrScorePct   = attribute.Key("cueline.match.score_pct")
	AttrProvider   = attribute.Key("cueline.stt.provider")
	AttrSource     = attribute.Key("cueline.stt.source")
	AttrAudioBytes = attribute.Key("cueline.stt.audio_bytes")
	AttrOutcome    = attribute.Key("cueline.stt.outcome")
	AttrTextChars  = attribute.Key("cueline.stt.text_chars")
)

// Tracer returns the cueline tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

// StartSpan starts a span. The caller must End it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, opts...)
}

// StartMatchSpan starts the span around one alignment query. searched is the
// number of lines that will be scored; allLines is true when the caller gave
// no candidate list.
func StartMatchSpan(ctx context.Context, scorer string, searched int, allLines bool) (context.Context, trace.Span) {
	return StartSpan(ctx, "align.match",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			AttrScorer.String(scorer),
			AttrSearched.Int(searched),
			AttrAllLines.Bool(allLines),
		),
	)
}

// EndMatchSpan records the winning line, if any, and ends span.
func EndMatchSpan(span trace.Span, scorePct float64, bestIdx *int) {
	span.SetAttributes(AttrScorePct.Float64(scorePct))
	if bestIdx != nil {
		span.SetAttributes(AttrBestIdx.Int(*bestIdx))
	}
	span.End()
}

// StartSTTSpan starts a client span around one call to a speech recogniser.
func StartSTTSpan(ctx context.Context, provider, source string, audioBytes int) (context.Context, trace.Span) {
	return StartSpan(ctx, "stt.transcribe",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			AttrProvider.String(provider),
			AttrSource.String(source),
			AttrAudioBytes.Int(audioBytes),
		),
	)
}

// EndSTTSpan tags span with outcome ("ok", "timeout", "error", "cancelled")
// and ends it. A non-nil err marks the span as failed.
func EndSTTSpan(span trace.Span, outcome string, textChars int, err error) {
	span.SetAttributes(AttrOutcome.String(outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	} else {
		span.SetAttributes(AttrTextChars.Int(textChars))
	}
	span.End()
}

// CorrelationID is the trace ID of the active span in ctx, or "" when there
// is none. It is echoed to clients as X-Correlation-ID.
func CorrelationID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}

// Logger returns the default logger with trace_id and span_id attached when
// ctx carries a span.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	sc := trace.SpanContextFromContext(ctx)
	if sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
