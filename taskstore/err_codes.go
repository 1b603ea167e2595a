package taskstore

const (
	CodeTaskNotFound = "TASK_NOT_FOUND"
	CodeInvalidTask  = "TASK_INVALID"
)
