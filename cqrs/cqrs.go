// Package cqrs holds the data shared by the dispatch engine, the request
// context, the bus and the task store: request payloads, outcome events,
// async task snapshots, responses and the error kinds surfaced to callers.
//
// Handler contracts live in cqrs/handler and the dispatch engine in cqrs/manager.
package cqrs

import (
	"strings"
	"time"
)

// Status is the lifecycle state of an async task or the outcome carried by an event.
type Status string

const (
	StatusPending Status = "Pending"
	StatusRunning Status = "Running"
	StatusSuccess Status = "Success"
	StatusError   Status = "Error"
)

// Terminal reports whether s is a final task state.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusError
}

// EventMode controls which outcomes of a handler are published as events.
type EventMode string

const (
	EventModeAlways      EventMode = "always"
	EventModeSuccessOnly EventMode = "successOnly"
	EventModeNever       EventMode = "never"
)

// UserContext is the security identity a request runs with.
// It travels with async tasks and outbound events.
type UserContext struct {
	ID     string   `json:"id,omitempty"`
	Name   string   `json:"name,omitempty"`
	Tenant string   `json:"tenant,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
	Bearer string   `json:"bearer,omitempty" mask:"true"`
}

// RequestData is the normalized payload of one operation.
type RequestData struct {
	Verb          string `json:"verb"`
	CorrelationID string `json:"correlationId"`
	Domain        string `json:"domain,omitempty"`
	Schema        string `json:"schema,omitempty"`
	Action        string `json:"action"`
	Params        any    `json:"params,omitempty"`
	InputSchema   string `json:"inputSchema,omitempty"`
	Page          int    `json:"page"`
	PageSize      int    `json:"pageSize"`
	Body          any    `json:"body,omitempty"`
}

// Verb joins schema and action, or returns whichever of them is not empty.
func Verb(schema, action string) string {
	if schema == "" {
		return action
	}
	if action == "" {
		return schema
	}
	return schema + "." + action
}

// ComputeVerb refreshes d.Verb from its schema and action.
func (d *RequestData) ComputeVerb() string {
	d.Verb = Verb(d.Schema, d.Action)
	return d.Verb
}

// Clone returns a shallow copy of d. Params and Body are shared.
func (d *RequestData) Clone() *RequestData {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

// Event describes the outcome of a handler invocation or an application raised fact.
type Event struct {
	Verb          string       `json:"verb"`
	CorrelationID string       `json:"correlationId"`
	Action        string       `json:"action"`
	Schema        string       `json:"schema,omitempty"`
	Domain        string       `json:"domain"`
	Source        string       `json:"source"`
	StartedAt     time.Time    `json:"startedAt"`
	CompletedAt   *time.Time   `json:"completedAt,omitempty"`
	Value         any          `json:"value,omitempty"`
	Error         string       `json:"error,omitempty"`
	UserContext   *UserContext `json:"userContext,omitempty"`
	Status        Status       `json:"status"`
}

// MatchesAction reports whether the event passes an action filter.
// "*" matches everything and events without an action pass every filter.
func (e *Event) MatchesAction(action string) bool {
	return action == "*" || e.Action == "" || strings.EqualFold(e.Action, action)
}

// MatchesSchema reports whether the event passes a schema filter ("*" matches everything).
func (e *Event) MatchesSchema(schema string) bool {
	return schema == "*" || e.Schema == schema
}

// AsyncTaskData is a durable snapshot of deferred work.
type AsyncTaskData struct {
	RequestData

	TaskID      string       `json:"taskId"`
	Status      Status       `json:"status"`
	SubmitAt    time.Time    `json:"submitAt"`
	StartedAt   *time.Time   `json:"startedAt,omitempty"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
	UserContext *UserContext `json:"userContext,omitempty"`
}

// Clone returns a copy of t that does not share time pointers.
func (t *AsyncTaskData) Clone() *AsyncTaskData {
	if t == nil {
		return nil
	}
	c := *t
	if t.StartedAt != nil {
		v := *t.StartedAt
		c.StartedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	if t.UserContext != nil {
		u := *t.UserContext
		c.UserContext = &u
	}
	return &c
}

// CustomEvent is an application raised event buffered on a request context.
type CustomEvent struct {
	Action string
	Schema string
	Params any
}
