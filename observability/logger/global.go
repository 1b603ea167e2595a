package logger

import (
	"context"
	"sync/atomic"

	"github.com/code19m/errx"
)

//nolint:gochecknoglobals // process wide logger used by packages without an injected one
var global atomic.Pointer[Logger]

// SetGlobal builds a logger from cfg and installs it as the process wide logger.
// Call it during startup, before the runtime components are constructed.
func SetGlobal(cfg Config) error {
	l, err := newLogger(cfg)
	if err != nil {
		return errx.Wrap(err)
	}
	ReplaceGlobal(l)
	return nil
}

// ReplaceGlobal installs l as the process wide logger.
func ReplaceGlobal(l Logger) {
	global.Store(&l)
}

// Global returns the process wide logger, creating a debug console logger on first use.
func Global() Logger {
	if l := global.Load(); l != nil {
		return *l
	}

	l, err := newLogger(Config{Level: levelDebug, Encoding: encConsole})
	if err != nil {
		panic("[logger]: failed to initialize default logger: " + err.Error())
	}
	global.CompareAndSwap(nil, &l)
	return *global.Load()
}

// Info logs a message at info level using the global logger.
func Info(msg any) { Global().Info(msg) }

// Warn logs a message at warn level using the global logger.
func Warn(msg any) { Global().Warn(msg) }

// Error logs a message at error level using the global logger.
func Error(msg any) { Global().Error(msg) }

// Errorx logs err with its errx attributes using the global logger.
func Errorx(err error) { Global().Errorx(err) }

// Fatalx logs err with its errx attributes using the global logger and exits.
func Fatalx(err error) { Global().Fatalx(err) }

// With returns a child of the global logger carrying the key-value pairs.
func With(keysAndValues ...any) Logger { return Global().With(keysAndValues...) }

// WithContext returns a child of the global logger enriched with meta values from ctx.
func WithContext(ctx context.Context) Logger { return Global().WithContext(ctx) }

// Named returns a named child of the global logger.
func Named(name string) Logger { return Global().Named(name) }

// Sync flushes the global logger.
func Sync() error { return Global().Sync() }
