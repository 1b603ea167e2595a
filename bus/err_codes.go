package bus

const (
	CodeBusClosed     = "BUS_CLOSED"
	CodeInvalidEvent  = "BUS_INVALID_EVENT"
	CodePublishFailed = "BUS_PUBLISH_FAILED"
)
