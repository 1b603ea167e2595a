// Package meta provides functionality for managing request metadata through context.
package meta

import (
	"context"

	"github.com/code19m/errx"
)

// ContextKey is a type for keys used in context values for metadata.
type ContextKey string

const (
	// TraceID is the OpenTelemetry trace id of the active span, when one is recorded.
	TraceID ContextKey = "trace_id"

	// CorrelationID is shared by a request and every task or event it causally triggers.
	CorrelationID ContextKey = "correlation_id"

	// SpanID identifies the current tracker hop.
	SpanID ContextKey = "span_id"

	// ParentID identifies the tracker hop that caused the current one.
	ParentID ContextKey = "parent_id"

	// Tenant is the tenant the operation runs for.
	Tenant ContextKey = "tenant"

	// Verb is the schema.action (or bare action) being executed.
	Verb ContextKey = "verb"

	// TaskID identifies an asynchronous task.
	TaskID ContextKey = "task_id"

	// RequestUserID identifies the user making the request.
	RequestUserID ContextKey = "request_user_id"

	// IPAddress contains the client's IP address.
	IPAddress ContextKey = "ip_address"

	// UserAgent contains the user agent string from the request.
	UserAgent ContextKey = "user_agent"

	// ServiceNameKey identifies the name of current running service.
	ServiceNameKey ContextKey = "service_name"

	// ServiceVersionKey indicates the version of the service.
	ServiceVersionKey ContextKey = "service_version"
)

const (
	codeKeyNotFound  = "META_KEY_NOT_FOUND"
	codeTypeMismatch = "META_TYPE_MISMATCH"
)

//nolint:gochecknoglobals // fixed list of keys extracted for logging
var allKeys = []ContextKey{
	TraceID,
	CorrelationID,
	SpanID,
	ParentID,
	Tenant,
	Verb,
	TaskID,
	RequestUserID,
	IPAddress,
	UserAgent,
	ServiceNameKey,
	ServiceVersionKey,
}

// InjectMetaToContext adds metadata from the provided map to the context.
// It only adds values that are not empty strings and returns a new context
// with the added values.
func InjectMetaToContext(ctx context.Context, data map[ContextKey]string) context.Context {
	for k, v := range data {
		if v != "" {
			ctx = context.WithValue(ctx, k, v) //nolint:fatcontext // allow due to finite number of keys
		}
	}
	return ctx
}

// ExtractMetaFromContext extracts all known metadata from the provided context.
// Only non-empty string values are included in the returned map.
func ExtractMetaFromContext(ctx context.Context) map[ContextKey]string {
	data := make(map[ContextKey]string)
	for _, k := range allKeys {
		if v, ok := ctx.Value(k).(string); ok && v != "" {
			data[k] = v
		}
	}
	return data
}

// Find returns the value stored under key or an empty string.
func Find(ctx context.Context, key ContextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// ShouldGetMeta returns the value stored under key.
// It fails when the key is missing or holds a non-string value.
func ShouldGetMeta(ctx context.Context, key ContextKey) (string, error) {
	raw := ctx.Value(key)
	if raw == nil {
		return "", errx.New("[meta]: key not found",
			errx.WithCode(codeKeyNotFound),
			errx.WithDetails(errx.D{"key": string(key)}),
		)
	}

	v, ok := raw.(string)
	if !ok {
		return "", errx.New("[meta]: type mismatch",
			errx.WithCode(codeTypeMismatch),
			errx.WithDetails(errx.D{"key": string(key)}),
		)
	}

	return v, nil
}
