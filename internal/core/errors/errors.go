package errors

const (
	HttpInternalError         = "internal_error"
	HttpMalformedInputError   = "malformed_input"
	HttpUnknownEventTypeError = "unknown_event_type"
	HttpSchemaViolationError  = "schema_violation"
	HttpSchemaNotFoundError   = "schema_not_found"
	HttpPayloadTooLargeError  = "payload_too_large"
	HttpUnauthorizedError     = "unauthorized"
	HttpForbiddenError        = "forbidden"
	HttpUnavailableError      = "unavailable"
)

// ErrorResponse is the error response body shared by every endpoint.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
