// Package di resolves handler dependencies by name.
//
// A Container holds process wide singletons and factories for scoped values.
// Every request context owns one Scope; scoped values are built lazily on the
// first Resolve and closed when the scope is disposed.
package di

import (
	"errors"
	"io"
	"sync"

	"github.com/code19m/errx"
)

const (
	CodeNotRegistered = "DI_NOT_REGISTERED"
	CodeScopeDisposed = "DI_SCOPE_DISPOSED"
	CodeTypeMismatch  = "DI_TYPE_MISMATCH"
)

// Factory builds a scoped value. It may resolve other values from the scope.
type Factory func(s *Scope) (any, error)

// Container is safe for concurrent use.
type Container struct {
	mu         sync.RWMutex
	singletons map[string]any
	factories  map[string]Factory
}

func NewContainer() *Container {
	return &Container{
		singletons: make(map[string]any),
		factories:  make(map[string]Factory),
	}
}

// RegisterSingleton stores a value shared by every scope.
func (c *Container) RegisterSingleton(name string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.singletons[name] = value
}

// RegisterScoped stores a factory invoked once per scope.
func (c *Container) RegisterScoped(name string, factory Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories[name] = factory
}

// NewScope opens a scope. A nil container gives a scope that resolves nothing.
func (c *Container) NewScope() *Scope {
	return &Scope{container: c, values: make(map[string]any)}
}

// Scope caches the scoped values of one request context.
type Scope struct {
	container *Container

	mu       sync.Mutex
	values   map[string]any
	order    []string
	disposed bool
}

// Resolve returns the singleton or scoped value registered under name.
func (s *Scope) Resolve(name string) (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return nil, errx.New("[di]: scope is disposed",
			errx.WithCode(CodeScopeDisposed),
			errx.WithDetails(errx.D{"name": name}),
		)
	}

	if v, ok := s.values[name]; ok {
		return v, nil
	}

	if s.container == nil {
		return nil, notRegistered(name)
	}

	s.container.mu.RLock()
	singleton, isSingleton := s.container.singletons[name]
	factory, isScoped := s.container.factories[name]
	s.container.mu.RUnlock()

	switch {
	case isSingleton:
		return singleton, nil
	case isScoped:
		// factories may resolve siblings, so the lock is released while building
		s.mu.Unlock()
		v, err := factory(s)
		s.mu.Lock()
		if err != nil {
			return nil, errx.Wrap(err, errx.WithDetails(errx.D{"name": name}))
		}
		if existing, ok := s.values[name]; ok {
			return existing, nil
		}
		s.values[name] = v
		s.order = append(s.order, name)
		return v, nil
	default:
		return nil, notRegistered(name)
	}
}

// Dispose closes scoped values implementing io.Closer in reverse creation order.
// Only the first call has an effect; close errors are joined.
func (s *Scope) Dispose() error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil
	}
	s.disposed = true
	values, order := s.values, s.order
	s.values, s.order = nil, nil
	s.mu.Unlock()

	var errs []error
	for i := len(order) - 1; i >= 0; i-- {
		if closer, ok := values[order[i]].(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	if len(errs) > 0 {
		return errx.Wrap(errors.Join(errs...))
	}
	return nil
}

// Resolve is a typed Scope.Resolve.
func Resolve[T any](s *Scope, name string) (T, error) {
	var zero T
	v, err := s.Resolve(name)
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok {
		return zero, errx.New("[di]: registered value has an unexpected type",
			errx.WithCode(CodeTypeMismatch),
			errx.WithDetails(errx.D{"name": name}),
		)
	}
	return typed, nil
}

func notRegistered(name string) error {
	return errx.New("[di]: nothing registered under name",
		errx.WithCode(CodeNotRegistered),
		errx.WithType(errx.T_NotFound),
		errx.WithDetails(errx.D{"name": name}),
	)
}
