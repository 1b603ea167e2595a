package wrapper

import (
	"context"
	"time"

	"github.com/rise-and-shine/svcore/cqrs/handler"
	"github.com/rise-and-shine/svcore/reqctx"
)

type timeoutWrapper struct {
	timeout time.Duration
	next    handler.Handler
}

// NewTimeout bounds the context given to the handler. Handlers are expected to honor it.
func NewTimeout(timeout time.Duration) WrapFunc {
	return func(next handler.Handler) handler.Handler {
		if timeout <= 0 {
			return next
		}
		return &timeoutWrapper{timeout: timeout, next: next}
	}
}

func (w *timeoutWrapper) Handle(ctx context.Context, rc *reqctx.Context, params any) (any, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	return w.next.Handle(ctx, rc, params)
}
