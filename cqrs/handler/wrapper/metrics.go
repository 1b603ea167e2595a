package wrapper

import (
	"context"
	"time"

	"github.com/rise-and-shine/svcore/cqrs/handler"
	"github.com/rise-and-shine/svcore/observability/metrics"
	"github.com/rise-and-shine/svcore/reqctx"
)

type metricsWrapper struct {
	collector *metrics.Collector
	verb      string
	kind      handler.Kind
	next      handler.Handler
}

// NewMetrics records the count and latency of executions. A nil collector disables it.
func NewMetrics(collector *metrics.Collector, verb string, kind handler.Kind) WrapFunc {
	return func(next handler.Handler) handler.Handler {
		if collector == nil {
			return next
		}
		return &metricsWrapper{collector: collector, verb: verb, kind: kind, next: next}
	}
}

func (w *metricsWrapper) Handle(ctx context.Context, rc *reqctx.Context, params any) (any, error) {
	start := time.Now()
	result, err := w.next.Handle(ctx, rc, params)
	w.collector.RecordHandler(w.verb, string(w.kind), time.Since(start), err)
	return result, err
}
