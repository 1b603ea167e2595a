package reqctx

const (
	CodeInvalidRawData = "REQCTX_INVALID_RAW_DATA"
	CodeDisposed       = "REQCTX_DISPOSED"
)
