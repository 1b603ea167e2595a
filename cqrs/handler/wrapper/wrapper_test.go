package wrapper_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/svcore/cqrs"
	"github.com/rise-and-shine/svcore/cqrs/handler"
	"github.com/rise-and-shine/svcore/cqrs/handler/wrapper"
	"github.com/rise-and-shine/svcore/observability/logger"
	"github.com/rise-and-shine/svcore/observability/metrics"
	"github.com/rise-and-shine/svcore/reqctx"
)

func TestChainOrder(t *testing.T) {
	// Arrange
	var calls []string
	mark := func(name string) wrapper.WrapFunc {
		return func(next handler.Handler) handler.Handler {
			return handler.HandlerFunc(func(ctx context.Context, rc *reqctx.Context, params any) (any, error) {
				calls = append(calls, name)
				return next.Handle(ctx, rc, params)
			})
		}
	}
	h := handler.HandlerFunc(func(context.Context, *reqctx.Context, any) (any, error) {
		calls = append(calls, "handler")
		return nil, nil
	})

	// Act
	_, err := wrapper.Chain(h, mark("outer"), mark("inner")).Handle(t.Context(), nil, nil)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"outer", "inner", "handler"}, calls)
}

func TestRecovery(t *testing.T) {
	// Arrange
	h := handler.HandlerFunc(func(context.Context, *reqctx.Context, any) (any, error) {
		panic("boom")
	})

	// Act
	result, err := wrapper.NewRecovery("Order.create")(h).Handle(t.Context(), nil, nil)

	// Assert
	assert.Nil(t, result)
	var rte *cqrs.CommandRuntimeError
	require.ErrorAs(t, err, &rte)
	assert.Equal(t, "Order.create", rte.Command)
}

func TestTimeout(t *testing.T) {
	// Arrange
	h := handler.HandlerFunc(func(ctx context.Context, _ *reqctx.Context, _ any) (any, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	// Act
	_, err := wrapper.NewTimeout(10*time.Millisecond)(h).Handle(t.Context(), nil, nil)

	// Assert
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestTimeoutDisabled(t *testing.T) {
	h := handler.HandlerFunc(func(context.Context, *reqctx.Context, any) (any, error) { return "ok", nil })

	wrapped := wrapper.NewTimeout(0)(h)

	out, err := wrapped.Handle(t.Context(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestLoggerTracingMetrics(t *testing.T) {
	// Arrange
	collector := metrics.NewCollector("test", "orders", "1.0.0")
	failing := handler.HandlerFunc(func(context.Context, *reqctx.Context, any) (any, error) {
		return nil, errors.New("failed")
	})
	h := wrapper.Chain(failing,
		wrapper.NewLogger(logger.Nop(), "Order.create"),
		wrapper.NewTracing("Order.create"),
		wrapper.NewMetrics(collector, "Order.create", handler.KindAction),
	)

	// Act
	_, err := h.Handle(t.Context(), nil, nil)

	// Assert
	require.Error(t, err)
	count, gatherErr := testutil.GatherAndCount(collector.Registry(), "test_handler_executions_total")
	require.NoError(t, gatherErr)
	assert.Equal(t, 1, count)
}
