package forward

const (
	codeInvalidContentType = "INVALID_CONTENT_TYPE"
	codeInvalidJSONBody    = "INVALID_JSON_BODY"
	codeInvalidURL         = "INVALID_URL"
	codeUnauthorized       = "UNAUTHORIZED"
)
