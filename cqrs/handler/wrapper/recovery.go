package wrapper

import (
	"context"
	"fmt"
	"runtime"

	"github.com/code19m/errx"

	"github.com/rise-and-shine/svcore/cqrs"
	"github.com/rise-and-shine/svcore/cqrs/handler"
	"github.com/rise-and-shine/svcore/reqctx"
)

const stackTraceSize = 4096

type recoveryWrapper struct {
	verb string
	next handler.Handler
}

// NewRecovery turns panics raised by the handler into a *cqrs.CommandRuntimeError.
func NewRecovery(verb string) WrapFunc {
	return func(next handler.Handler) handler.Handler {
		return &recoveryWrapper{verb: verb, next: next}
	}
}

func (w *recoveryWrapper) Handle(ctx context.Context, rc *reqctx.Context, params any) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			stackTrace := make([]byte, stackTraceSize)
			stackTrace = stackTrace[:runtime.Stack(stackTrace, false)]

			err = &cqrs.CommandRuntimeError{
				Command: w.verb,
				Err: errx.New("panic recovered in handler", errx.WithCode(cqrs.CodeCommandRuntimeError), errx.WithDetails(errx.D{
					"stack_trace":  string(stackTrace),
					"panic_values": fmt.Sprintf("%v", r),
				})),
			}
			result = nil
		}
	}()

	return w.next.Handle(ctx, rc, params)
}
