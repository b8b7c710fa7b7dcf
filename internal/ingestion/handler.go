package ingestion

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	v1 "github.com/aevon-lab/indexer-metrics-collector/internal/api/v1"
	"github.com/aevon-lab/indexer-metrics-collector/internal/auth"
	httperr "github.com/aevon-lab/indexer-metrics-collector/internal/core/errors"
	"github.com/aevon-lab/indexer-metrics-collector/internal/schema"
	"github.com/gin-gonic/gin"
)

const (
	msgReadBodyFailed   = "Failed to read request body"
	msgInvalidJSON      = "Invalid JSON body"
	msgUnknownEventType = "Request body is not a known event type"
	msgSchemaViolation  = "Request body is not a valid event"
	msgPersistFailed    = "Failed to persist event"
)

// ingestionError carries the structured HTTP error shape from a helper back to the orchestrator.
// Helpers return this instead of writing to gin.Context directly, keeping them decoupled from HTTP.
type ingestionError struct {
	statusCode int
	errorType  string
	message    string
	details    interface{}
}

func (e *ingestionError) Error() string {
	return e.message
}

// IngestHandler handles POST /events. The caller has already been authorized for submitEvent.
func (s *Service) IngestHandler(c *gin.Context) {
	requestID := c.GetString(contextKeyRequestID)
	log := slog.With("request_id", requestID)
	log.Debug("[Ingestion] Authorized", "client", c.GetString(auth.ContextKeyClient))

	body, err := s.readBody(c)
	if err != nil {
		writeError(c, err)
		return
	}

	evt, err := s.parseEvent(body)
	if err != nil {
		log.Warn("[Ingestion] Rejected event", "error_type", err.errorType, "error", err.message, "payload_size", len(body))
		writeError(c, err)
		return
	}
	log.Debug("[Ingestion] Validated", "event_type", evt.EventType(), "payload_size", len(body))

	if err := s.collector.Submit(c.Request.Context(), evt); err != nil {
		log.Error("[Ingestion] Failed to apply event", "event_type", evt.EventType(), "error", err)
		writeError(c, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgPersistFailed,
		})
		return
	}
	log.Debug("[Ingestion] Applied and Persisted", "event_type", evt.EventType())

	c.JSON(http.StatusAccepted, gin.H{"status": "accepted", "event_id": requestID})
	log.Debug("[Ingestion] Responded", "status", http.StatusAccepted)
}

// readBody reads the request body, rejecting anything larger than the configured maximum.
func (s *Service) readBody(c *gin.Context) ([]byte, *ingestionError) {
	// Enforce maximum body size to prevent OOM attacks
	maxBytes := int64(s.maxBodySizeBytes)
	limitedBody := io.LimitReader(c.Request.Body, maxBytes+1) // +1 to detect oversized requests

	bodyBytes, err := io.ReadAll(limitedBody)
	if err != nil {
		slog.Error("[Ingestion] Failed to read request body", "error", err)
		return nil, &ingestionError{
			statusCode: http.StatusInternalServerError,
			errorType:  httperr.HttpInternalError,
			message:    msgReadBodyFailed,
		}
	}

	if int64(len(bodyBytes)) > maxBytes {
		slog.Warn("[Ingestion] Request body exceeds maximum size", "size", len(bodyBytes), "max", maxBytes)
		return nil, &ingestionError{
			statusCode: http.StatusRequestEntityTooLarge,
			errorType:  httperr.HttpPayloadTooLargeError,
			message:    "Request body exceeds maximum allowed size",
			details: map[string]interface{}{
				"max_size_mb": maxBytes / (1024 * 1024),
			},
		}
	}
	return bodyBytes, nil
}

// parseEvent maps parser failures onto the HTTP error taxonomy.
func (s *Service) parseEvent(body []byte) (v1.Event, *ingestionError) {
	evt, err := s.parser.Parse(body)
	if err == nil {
		return evt, nil
	}

	switch {
	case errors.Is(err, v1.ErrMalformedInput):
		return nil, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpMalformedInputError,
			message:    msgInvalidJSON,
		}
	case errors.Is(err, v1.ErrUnknownEventType):
		return nil, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpUnknownEventTypeError,
			message:    msgUnknownEventType,
		}
	case errors.Is(err, v1.ErrSchemaViolation):
		var details map[string]interface{}
		if d, ok := err.(schema.ValidationDetailer); ok {
			details = d.Details()
		}
		return nil, &ingestionError{
			statusCode: http.StatusBadRequest,
			errorType:  httperr.HttpSchemaViolationError,
			message:    msgSchemaViolation,
			details:    details,
		}
	}

	slog.Error("[Ingestion] Unexpected parse failure", "error", err)
	return nil, &ingestionError{
		statusCode: http.StatusInternalServerError,
		errorType:  httperr.HttpInternalError,
		message:    err.Error(),
	}
}

// writeError serializes an ingestionError as the JSON HTTP response.
func writeError(c *gin.Context, err *ingestionError) {
	c.JSON(err.statusCode, httperr.ErrorResponse{
		ErrorType: err.errorType,
		Message:   err.message,
		Details:   err.details,
	})
}
