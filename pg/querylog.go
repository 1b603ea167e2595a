package pg

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/uptrace/bun"

	"github.com/rise-and-shine/svcore/observability/logger"
)

var _ bun.QueryHook = (*QueryLogHook)(nil)

// QueryLogHook logs bun queries. Failed and slow queries are always logged,
// every other query only when the hook is enabled.
type QueryLogHook struct {
	log                logger.Logger
	enabled            bool
	slowQueryThreshold time.Duration
}

// QueryLogOption configures a QueryLogHook.
type QueryLogOption func(*QueryLogHook)

// WithEnabled turns on debug logging of every query.
func WithEnabled(enabled bool) QueryLogOption {
	return func(h *QueryLogHook) {
		h.enabled = enabled
	}
}

// WithSlowQueryThreshold sets the duration above which queries are logged at warn level.
// Zero disables slow query detection.
func WithSlowQueryThreshold(threshold time.Duration) QueryLogOption {
	return func(h *QueryLogHook) {
		h.slowQueryThreshold = threshold
	}
}

// NewQueryLogHook creates a hook writing to log.
func NewQueryLogHook(log logger.Logger, opts ...QueryLogOption) *QueryLogHook {
	hook := &QueryLogHook{log: log}
	for _, opt := range opts {
		opt(hook)
	}
	return hook
}

func (h *QueryLogHook) BeforeQuery(ctx context.Context, _ *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryLogHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	duration := time.Since(event.StartTime)

	isNoRows := errors.Is(event.Err, sql.ErrNoRows)
	hasError := event.Err != nil && !isNoRows && !errors.Is(event.Err, sql.ErrTxDone)
	isSlow := h.slowQueryThreshold > 0 && duration >= h.slowQueryThreshold

	if !h.enabled && !hasError && !isSlow {
		return
	}

	log := h.log.WithContext(ctx).
		With("query", strings.ReplaceAll(event.Query, `"`, "")).
		With("duration", duration.Round(time.Microsecond))

	msg := "[pg]: " + event.Operation()
	switch {
	case hasError:
		log.With("error", event.Err.Error()).Error(msg)
	case isSlow:
		log.Warn(msg)
	default:
		log.Debug(msg)
	}
}
