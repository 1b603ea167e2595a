package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/svcore/observability/metrics"
)

func TestCollector_Records(t *testing.T) {
	// Arrange
	c := metrics.NewCollector("test", "orders", "1.0.0")

	// Act
	c.RecordHandler("order.create", "action", 5*time.Millisecond, nil)
	c.RecordHandler("order.create", "action", 7*time.Millisecond, errors.New("boom"))
	c.RecordEventPublished("sales", "Success", nil)
	c.RecordSubscriberFailure("sales", "notify")
	c.RecordTaskTransition("report.generate", "Running")

	// Assert
	count, err := testutil.GatherAndCount(c.Registry(), "test_handler_executions_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(c.Registry(), "test_bus_events_published_total")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *metrics.Collector

	assert.NotPanics(t, func() {
		c.RecordHandler("verb", "action", time.Millisecond, nil)
		c.RecordEventPublished("domain", "Success", nil)
		c.RecordSubscriberFailure("domain", "handler")
		c.RecordTaskTransition("verb", "Success")
	})
}

func TestCollector_HTTPHandler(t *testing.T) {
	// Arrange
	c := metrics.NewCollector("", "orders", "1.0.0")
	c.RecordTaskTransition("report.generate", "Success")
	rec := httptest.NewRecorder()

	// Act
	c.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	// Assert
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "svcore_task_transitions_total"))
}
