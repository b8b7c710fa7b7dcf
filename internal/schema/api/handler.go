package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	httperr "github.com/aevon-lab/indexer-metrics-collector/internal/core/errors"
	"github.com/aevon-lab/indexer-metrics-collector/internal/schema"
	"github.com/gin-gonic/gin"
	"gopkg.in/yaml.v3"
)

// Handler handles schema discovery HTTP requests.
type Handler struct {
	registry *schema.Registry
}

// NewHandler creates a new schema API handler.
func NewHandler(reg *schema.Registry) *Handler {
	return &Handler{
		registry: reg,
	}
}

// SchemaResponse is the summary returned by the list endpoint.
type SchemaResponse struct {
	Name        string `json:"name"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Fingerprint string `json:"fingerprint"`
}

// DefinitionResponse carries one schema document.
// Definition contains the parsed YAML as JSON-compatible data.
type DefinitionResponse struct {
	SchemaResponse
	Definition interface{} `json:"definition"`
}

// HandleList handles GET /v1/schemas.
func (h *Handler) HandleList(c *gin.Context) {
	names, err := h.registry.Names()
	if err != nil {
		slog.Error("[SchemaAPI] Schema list error", "error", err)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{ErrorType: httperr.HttpInternalError, Message: "Failed to list schemas"})
		return
	}

	responses := make([]*SchemaResponse, 0, len(names))
	for _, name := range names {
		def, err := h.registry.Definition(name)
		if err != nil {
			slog.Error("[SchemaAPI] Schema read error", "error", err, "schema", name)
			c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{ErrorType: httperr.HttpInternalError, Message: "Failed to read schema"})
			return
		}
		responses = append(responses, h.toResponse(name, def))
	}

	c.JSON(http.StatusOK, responses)
}

// HandleGet handles GET /v1/schemas/{name}.
func (h *Handler) HandleGet(c *gin.Context) {
	name := c.Param("name")

	def, err := h.registry.Definition(name)
	if err != nil {
		h.writeLookupError(c, name, err)
		return
	}

	var parsed map[string]interface{}
	if err := yaml.Unmarshal(def.Source, &parsed); err != nil {
		slog.Error("[SchemaAPI] Schema conversion error", "error", err, "schema", name)
		c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{ErrorType: httperr.HttpInternalError, Message: "Failed to convert schema definition"})
		return
	}

	c.JSON(http.StatusOK, DefinitionResponse{
		SchemaResponse: *h.toResponse(name, def),
		Definition:     parsed,
	})
}

// HandleValidate handles POST /v1/schemas/{name}/validate (dry-run).
func (h *Handler) HandleValidate(c *gin.Context) {
	name := c.Param("name")

	s, err := h.registry.Get(name)
	if err != nil {
		h.writeLookupError(c, name, err)
		return
	}

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{ErrorType: httperr.HttpMalformedInputError, Message: "Failed to read request body"})
		return
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var instance interface{}
	if err := dec.Decode(&instance); err != nil {
		c.JSON(http.StatusBadRequest, httperr.ErrorResponse{ErrorType: httperr.HttpMalformedInputError, Message: "Invalid JSON body"})
		return
	}

	if err := schema.Validate(s, instance); err != nil {
		details := map[string]interface{}{"schema": name}
		var d schema.ValidationDetailer
		if errors.As(err, &d) {
			for k, v := range d.Details() {
				details[k] = v
			}
		}
		c.JSON(http.StatusUnprocessableEntity, httperr.ErrorResponse{
			ErrorType: httperr.HttpSchemaViolationError,
			Message:   err.Error(),
			Details:   details,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid":  true,
		"schema": name,
	})
}

func (h *Handler) writeLookupError(c *gin.Context, name string, err error) {
	if errors.Is(err, schema.ErrNotFound) {
		c.JSON(http.StatusNotFound, httperr.ErrorResponse{ErrorType: httperr.HttpSchemaNotFoundError, Message: err.Error()})
		return
	}
	slog.Error("[SchemaAPI] Schema lookup error", "error", err, "schema", name)
	c.JSON(http.StatusInternalServerError, httperr.ErrorResponse{ErrorType: httperr.HttpInternalError, Message: "Failed to load schema"})
}

func (h *Handler) toResponse(name string, def *schema.Definition) *SchemaResponse {
	resp := &SchemaResponse{
		Name:        name,
		Fingerprint: def.Fingerprint,
	}
	if s, err := h.registry.Get(name); err == nil {
		resp.Title = s.Title
		resp.Description = s.Description
	}
	return resp
}
