package translator

import (
	"context"
	"errors"

	"live-relay-be/internal/errs"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type tracedTranslator struct {
	next   Translator
	tracer trace.Tracer
}

// WithTracing records one span per outbound translation. Cancelled calls
// are not marked as errors.
func WithTracing(next Translator) Translator {
	return &tracedTranslator{
		next:   next,
		tracer: otel.Tracer("live-relay-be/translator"),
	}
}

func (t *tracedTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	ctx, span := t.tracer.Start(ctx, "translator.Translate", trace.WithAttributes(
		attribute.String("translation.source_lang", sourceLang),
		attribute.String("translation.target_lang", targetLang),
		attribute.Int("translation.input_runes", len([]rune(text))),
	))
	defer span.End()

	out, err := t.next.Translate(ctx, text, sourceLang, targetLang)
	switch {
	case err == nil:
	case errors.Is(err, errs.ErrCancelled):
		span.SetAttributes(attribute.Bool("translation.cancelled", true))
	default:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return out, err
}
