package log

import (
	"context"
	"log/slog"

	"github.com/dfalcao/precario/internal/requestid"
)

type surveyIDKey struct{}

// WithSurveyID returns a copy of ctx carrying the survey ID, so every log
// record emitted while processing that survey (including from the extractor
// and provider layers) is attributable to it.
func WithSurveyID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, surveyIDKey{}, id)
}

// ContextHandler wraps an slog.Handler and enriches each record with values
// carried in the context: request_id for API traffic, survey_id for worker
// processing.
type ContextHandler struct {
	inner slog.Handler
}

func NewContextHandler(inner slog.Handler) *ContextHandler {
	return &ContextHandler{inner: inner}
}

func (h *ContextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *ContextHandler) Handle(ctx context.Context, r slog.Record) error {
	if id := requestid.FromContext(ctx); id != "" {
		r.AddAttrs(slog.String("request_id", id))
	}
	if id, ok := ctx.Value(surveyIDKey{}).(string); ok && id != "" {
		r.AddAttrs(slog.String("survey_id", id))
	}
	return h.inner.Handle(ctx, r)
}

func (h *ContextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &ContextHandler{inner: h.inner.WithAttrs(attrs)}
}

func (h *ContextHandler) WithGroup(name string) slog.Handler {
	return &ContextHandler{inner: h.inner.WithGroup(name)}
}
