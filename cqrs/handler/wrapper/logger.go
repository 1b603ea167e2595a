package wrapper

import (
	"context"
	"time"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/svcore/cqrs/handler"
	"github.com/rise-and-shine/svcore/observability/logger"
	"github.com/rise-and-shine/svcore/reqctx"
)

type loggerWrapper struct {
	logger logger.Logger
	verb   string
	next   handler.Handler
}

// NewLogger logs every execution with its duration, and the error when it fails.
func NewLogger(l logger.Logger, verb string) WrapFunc {
	return func(next handler.Handler) handler.Handler {
		return &loggerWrapper{
			logger: l.Named("cqrs.handler.logger").With("verb", verb),
			verb:   verb,
			next:   next,
		}
	}
}

func (w *loggerWrapper) Handle(ctx context.Context, rc *reqctx.Context, params any) (any, error) {
	start := time.Now()

	result, err := w.next.Handle(ctx, rc, params)

	log := w.logger.
		WithContext(ctx).
		With("execution_time", time.Since(start).String())

	if err != nil {
		e := errx.AsErrorX(err)
		log.With("error", map[string]any{
			"code":    e.Code(),
			"message": e.Error(),
			"type":    e.Type().String(),
			"trace":   e.Trace(),
			"fields":  e.Fields(),
			"details": e.Details(),
		}).Error("handler failed")
	} else {
		log.Debug("handler completed")
	}

	return result, err
}
