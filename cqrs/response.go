package cqrs

import "net/http"

// Response is a transport level result. Handlers return it when they need a
// status code or headers other than the defaults.
type Response struct {
	StatusCode  int               `json:"-"`
	Headers     map[string]string `json:"-"`
	ContentType string            `json:"-"`
	Content     any               `json:"content"`
}

// NewResponse returns a 200 response around content.
func NewResponse(content any) *Response {
	return &Response{StatusCode: http.StatusOK, Content: content}
}

// Envelope wraps a plain handler result.
type Envelope struct {
	Value any `json:"value"`
}

// AsyncAck is returned to the caller of an async action.
type AsyncAck struct {
	Meta AsyncAckMeta `json:"meta"`
}

type AsyncAckMeta struct {
	TaskID string `json:"taskId"`
	Status Status `json:"status"`
}
