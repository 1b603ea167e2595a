package cqrs_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/code19m/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/svcore/cqrs"
)

func TestVerb(t *testing.T) {
	assert.Equal(t, "Order.create", cqrs.Verb("Order", "create"))
	assert.Equal(t, "ping", cqrs.Verb("", "ping"))
	assert.Equal(t, "Order", cqrs.Verb("Order", ""))

	data := &cqrs.RequestData{Schema: "Report", Action: "generate"}
	assert.Equal(t, "Report.generate", data.ComputeVerb())
	assert.Equal(t, "Report.generate", data.Verb)
}

func TestEventFilters(t *testing.T) {
	tests := []struct {
		name   string
		event  cqrs.Event
		schema string
		action string
		want   bool
	}{
		{name: "exact", event: cqrs.Event{Schema: "Order", Action: "create"}, schema: "Order", action: "create", want: true},
		{name: "action case", event: cqrs.Event{Schema: "Order", Action: "Create"}, schema: "Order", action: "create", want: true},
		{name: "wildcards", event: cqrs.Event{Schema: "Order", Action: "create"}, schema: "*", action: "*", want: true},
		{name: "empty action passes", event: cqrs.Event{Schema: "Order"}, schema: "Order", action: "create", want: true},
		{name: "schema mismatch", event: cqrs.Event{Schema: "Invoice", Action: "create"}, schema: "Order", action: "*"},
		{name: "action mismatch", event: cqrs.Event{Schema: "Order", Action: "delete"}, schema: "Order", action: "create"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.event.MatchesSchema(tc.schema) && tc.event.MatchesAction(tc.action)

			assert.Equal(t, tc.want, got)
		})
	}
}

func TestAsyncTaskClone(t *testing.T) {
	// Arrange
	started := time.Now()
	task := &cqrs.AsyncTaskData{TaskID: "t1", StartedAt: &started, UserContext: &cqrs.UserContext{ID: "u1"}}

	// Act
	clone := task.Clone()
	*clone.StartedAt = started.Add(time.Hour)
	clone.UserContext.ID = "u2"

	// Assert
	assert.Equal(t, started, *task.StartedAt)
	assert.Equal(t, "u1", task.UserContext.ID)
	assert.Nil(t, (*cqrs.AsyncTaskData)(nil).Clone())
}

func TestStatusTerminal(t *testing.T) {
	assert.False(t, cqrs.StatusPending.Terminal())
	assert.False(t, cqrs.StatusRunning.Terminal())
	assert.True(t, cqrs.StatusSuccess.Terminal())
	assert.True(t, cqrs.StatusError.Terminal())
}

func TestNewBadRequest(t *testing.T) {
	// Arrange
	errs := []cqrs.ValidationError{{Message: "bad"}, {Field: "id", Message: "This field is required"}}

	// Act
	err := cqrs.NewBadRequest(errs)

	// Assert
	e := errx.AsErrorX(err)
	assert.Equal(t, cqrs.CodeBadRequest, e.Code())
	assert.Equal(t, errx.T_Validation, e.Type())
	assert.Equal(t, "This field is required", e.Fields()["id"])
	assert.Equal(t, errs, cqrs.ValidationErrorsOf(err))
	assert.Nil(t, cqrs.ValidationErrorsOf(errors.New("other")))
}

func TestUnwrapRuntimeError(t *testing.T) {
	cause := errors.New("db down")

	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "wrapped", err: &cqrs.CommandRuntimeError{Command: "Order.create", Err: cause}, want: cause},
		{name: "nested", err: fmt.Errorf("outer: %w", &cqrs.CommandRuntimeError{Err: cause}), want: cause},
		{name: "plain", err: cause, want: cause},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.ErrorIs(t, cqrs.UnwrapRuntimeError(tc.err), tc.want)
			assert.Equal(t, tc.want, cqrs.UnwrapRuntimeError(tc.err))
		})
	}
}
