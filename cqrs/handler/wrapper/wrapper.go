// Package wrapper provides middleware wrappers for handlers.
//
// Wrappers add cross-cutting concerns such as panic recovery, logging,
// tracing, timeouts and metrics around a handler without changing it.
package wrapper

import "github.com/rise-and-shine/svcore/cqrs/handler"

// WrapFunc decorates a handler.
type WrapFunc func(next handler.Handler) handler.Handler

// Chain applies wrappers so that the first one is the outermost.
func Chain(h handler.Handler, wrappers ...WrapFunc) handler.Handler {
	for i := len(wrappers) - 1; i >= 0; i-- {
		h = wrappers[i](h)
	}
	return h
}
