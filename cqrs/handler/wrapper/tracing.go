package wrapper

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rise-and-shine/svcore/cqrs/handler"
	"github.com/rise-and-shine/svcore/reqctx"
)

type tracingWrapper struct {
	tracer   trace.Tracer
	spanName string
	next     handler.Handler
}

// NewTracing runs the handler inside its own span named after the verb.
func NewTracing(verb string) WrapFunc {
	return func(next handler.Handler) handler.Handler {
		return &tracingWrapper{
			tracer:   otel.Tracer("cqrs/handler"),
			spanName: "handle " + verb,
			next:     next,
		}
	}
}

func (w *tracingWrapper) Handle(ctx context.Context, rc *reqctx.Context, params any) (any, error) {
	ctx, span := w.tracer.Start(ctx, w.spanName)
	defer span.End()

	result, err := w.next.Handle(ctx, rc, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	return result, err
}
