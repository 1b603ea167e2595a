package handler_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/svcore/cqrs"
	"github.com/rise-and-shine/svcore/cqrs/handler"
	"github.com/rise-and-shine/svcore/di"
	"github.com/rise-and-shine/svcore/reqctx"
)

func TestDescriptorVerb(t *testing.T) {
	tests := []struct {
		name   string
		desc   handler.Descriptor
		verb   string
		action string
	}{
		{
			name:   "method name lower cased",
			desc:   handler.Descriptor{MethodName: "Create", Definition: handler.Definition{Schema: "Order"}},
			verb:   "Order.create",
			action: "create",
		},
		{
			name:   "definition name wins",
			desc:   handler.Descriptor{MethodName: "Run", Definition: handler.Definition{Name: "generate", Schema: "Report"}},
			verb:   "Report.generate",
			action: "generate",
		},
		{
			name:   "bare action",
			desc:   handler.Descriptor{MethodName: "ping"},
			verb:   "ping",
			action: "ping",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.verb, tc.desc.Verb())
			assert.Equal(t, tc.action, tc.desc.Action())
		})
	}
}

func TestSkipValidation(t *testing.T) {
	no := false
	yes := true

	assert.True(t, (&handler.Descriptor{MethodName: "delete"}).SkipValidation())
	assert.False(t, (&handler.Descriptor{MethodName: "delete", Definition: handler.Definition{SkipDataValidation: &no}}).SkipValidation())
	assert.False(t, (&handler.Descriptor{MethodName: "create"}).SkipValidation())
	assert.True(t, (&handler.Descriptor{MethodName: "create", Definition: handler.Definition{SkipDataValidation: &yes}}).SkipValidation())
}

func TestEventModeDefaults(t *testing.T) {
	desc := &handler.Descriptor{MethodName: "create"}

	assert.Equal(t, cqrs.EventModeSuccessOnly, desc.EventMode(false))
	assert.Equal(t, cqrs.EventModeAlways, desc.EventMode(true))

	desc.Definition.EventMode = cqrs.EventModeNever
	assert.Equal(t, cqrs.EventModeNever, desc.EventMode(true))
}

func TestStaticFactory(t *testing.T) {
	// Arrange
	h := handler.HandlerFunc(func(context.Context, *reqctx.Context, any) (any, error) { return "ok", nil })

	// Act
	got, err := handler.Static(h)(di.NewContainer().NewScope())

	// Assert
	require.NoError(t, err)
	out, err := got.Handle(t.Context(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}
