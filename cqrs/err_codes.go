package cqrs

const (
	// CodeBadRequest marks validation failures detected before a handler runs.
	CodeBadRequest = "BAD_REQUEST"

	// CodeHandlerNotFound is returned when no handler is registered for a verb.
	CodeHandlerNotFound = "HANDLER_NOT_FOUND"

	// CodeCommandRuntimeError marks failures raised inside a handler body.
	CodeCommandRuntimeError = "COMMAND_RUNTIME_ERROR"

	// CodeAsyncCustomResponse is recorded when an async handler returns a transport response.
	CodeAsyncCustomResponse = "ASYNC_CUSTOM_RESPONSE"

	// CodeCustomEventActionRequired is returned when a custom event is raised without an action.
	CodeCustomEventActionRequired = "CUSTOM_EVENT_ACTION_REQUIRED"
)
