package manager

const (
	CodeInvalidDeps          = "MANAGER_INVALID_DEPS"
	CodeHandlerInstantiation = "HANDLER_INSTANTIATION_FAILED"
)
