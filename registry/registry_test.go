package registry_test

import (
	"context"
	"testing"

	"github.com/code19m/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/svcore/cqrs"
	"github.com/rise-and-shine/svcore/cqrs/handler"
	"github.com/rise-and-shine/svcore/registry"
	"github.com/rise-and-shine/svcore/reqctx"
)

//nolint:gochecknoglobals // shared test handler
var noop = handler.Static(handler.HandlerFunc(func(context.Context, *reqctx.Context, any) (any, error) {
	return nil, nil
}))

func action(schema, method string, async bool) handler.Descriptor {
	return handler.Descriptor{
		Kind:       handler.KindAction,
		MethodName: method,
		Definition: handler.Definition{Schema: schema, Async: async},
		New:        noop,
	}
}

func subscriber(method string, def handler.Definition) handler.Descriptor {
	return handler.Descriptor{Kind: handler.KindEvent, MethodName: method, Definition: def, New: noop}
}

func TestLookup(t *testing.T) {
	// Arrange
	r := registry.New("sales")
	r.MustRegister(
		action("Order", "create", false),
		handler.Descriptor{Kind: handler.KindQuery, MethodName: "all", Definition: handler.Definition{Schema: "Order"}, New: noop},
	)
	r.Build()

	tests := []struct {
		name   string
		schema string
		action string
		found  bool
		kind   handler.Kind
	}{
		{name: "action", schema: "Order", action: "create", found: true, kind: handler.KindAction},
		{name: "case insensitive", schema: "order", action: "CREATE", found: true, kind: handler.KindAction},
		{name: "query", schema: "Order", action: "all", found: true, kind: handler.KindQuery},
		{name: "missing", schema: "Order", action: "delete"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Act
			d, ok := r.Lookup(tc.schema, tc.action)

			// Assert
			assert.Equal(t, tc.found, ok)
			if tc.found {
				assert.Equal(t, tc.kind, d.Kind)
				assert.Equal(t, "sales", d.Domain)
			}
		})
	}
}

func TestRegisterErrors(t *testing.T) {
	// Arrange
	r := registry.New("sales")
	require.NoError(t, r.Register(action("Order", "create", false)))

	// Act
	dupErr := r.Register(action("Order", "Create", false))
	noFactoryErr := r.Register(handler.Descriptor{Kind: handler.KindAction, MethodName: "x"})
	badKindErr := r.Register(handler.Descriptor{Kind: "job", MethodName: "x", New: noop})
	r.Build()
	frozenErr := r.Register(action("Order", "update", false))

	// Assert
	assert.True(t, errx.IsCodeIn(dupErr, registry.CodeDuplicateVerb))
	assert.True(t, errx.IsCodeIn(noFactoryErr, registry.CodeInvalidDescriptor))
	assert.True(t, errx.IsCodeIn(badKindErr, registry.CodeInvalidDescriptor))
	assert.True(t, errx.IsCodeIn(frozenErr, registry.CodeRegistryFrozen))
	assert.Panics(t, func() { r.MustRegister(action("Order", "delete", false)) })
}

func TestSubscriptions(t *testing.T) {
	// Arrange
	r := registry.New("sales")
	r.MustRegister(
		subscriber("audit", handler.Definition{}),
		subscriber("notify", handler.Definition{SubscribeToSchema: "Order", SubscribeToAction: "Create"}),
		subscriber("billing", handler.Definition{
			SubscribeToSchema: "Order", SubscribeToAction: "create", SubscribeToDomain: "billing",
			DistributionMode: handler.DistributionOnce,
		}),
		subscriber("mirror", handler.Definition{SubscribeToSchema: "Order", SubscribeToAction: "create"}),
	)

	// Act
	r.Build()
	subs := r.Subscriptions()

	// Assert
	require.Len(t, subs, 3)
	assert.Equal(t, registry.Key{Domain: "sales", Schema: "*", Action: "*"}, subs[0].Key)
	assert.Equal(t, registry.Key{Domain: "sales", Schema: "Order", Action: "create"}, subs[1].Key)
	assert.Equal(t, registry.Key{Domain: "billing", Schema: "Order", Action: "create", DistributionKey: "billing"}, subs[2].Key)
	require.Len(t, subs[1].Descriptors, 2)
	assert.Equal(t, "notify", subs[1].Descriptors[0].MethodName)
	assert.Equal(t, "mirror", subs[1].Descriptors[1].MethodName)
}

func TestHandlersApplyFilter(t *testing.T) {
	// Arrange
	r := registry.New("sales")
	r.MustRegister(
		subscriber("big", handler.Definition{Filter: func(e *cqrs.Event) bool {
			v, _ := e.Value.(map[string]any)
			return v["total"] == 100.0
		}}),
		subscriber("all", handler.Definition{}),
	)
	r.Build()
	key := r.Subscriptions()[0].Key

	// Act
	small := r.Handlers(key, &cqrs.Event{Value: map[string]any{"total": 5.0}})
	big := r.Handlers(key, &cqrs.Event{Value: map[string]any{"total": 100.0}})
	unknown := r.Handlers(registry.Key{Domain: "x"}, &cqrs.Event{})

	// Assert
	require.Len(t, small, 1)
	assert.Equal(t, "all", small[0].MethodName)
	require.Len(t, big, 2)
	assert.Equal(t, "big", big[0].MethodName)
	assert.Nil(t, unknown)
}

func TestHasAsyncHandlers(t *testing.T) {
	syncOnly := registry.New("sales").MustRegister(action("Order", "create", false))
	withAsync := registry.New("sales").MustRegister(action("Report", "generate", true))

	assert.False(t, syncOnly.HasAsyncHandlers())
	assert.True(t, withAsync.HasAsyncHandlers())
	assert.Len(t, withAsync.All(), 1)
}
