package web

import (
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/JonMunkholm/tplimport/internal/core"
	"github.com/JonMunkholm/tplimport/internal/logging"
	"github.com/JonMunkholm/tplimport/internal/payload"
	"github.com/go-chi/chi/v5"
)

// OperatorHeader names the user an import is performed as.
const OperatorHeader = "X-Operator"

// TemplateListResponse is the body of GET /api/templates.
type TemplateListResponse struct {
	Templates []core.Template `json:"templates"`
	Limit     int             `json:"limit"`
	Offset    int             `json:"offset"`
}

// handleImport runs one import batch. The body is a JSON or YAML batch
// document; the result envelope is returned with 200 even when individual
// items failed.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	operator := strings.TrimSpace(r.Header.Get(OperatorHeader))
	if operator == "" {
		s.respondError(w, r, fmt.Errorf("%w: missing %s header", payload.ErrInvalidPayload, OperatorHeader), http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodySize)
	batch, err := payload.Decode(r.Body, formatFromContentType(r.Header.Get("Content-Type")))
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	ctx := WithRequestMetadata(r.Context(), r)
	result, err := s.service.ImportTemplates(ctx, core.ImportRequest{
		Operator:  operator,
		BizID:     batch.BizID,
		Templates: batch.Templates,
	})
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	logging.FromContext(ctx).Debug("import response",
		"operator", operator,
		"items", len(result.Data),
		"failed", result.Failed(),
	)
	writeJSON(w, http.StatusOK, result)
}

// handleListTemplates returns persisted templates, newest first.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 50)
	if limit > 500 {
		limit = 500
	}
	offset := parseIntParam(r, "offset", 0)

	templates, err := s.service.ListTemplates(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}
	if templates == nil {
		templates = []core.Template{}
	}

	writeJSON(w, http.StatusOK, TemplateListResponse{
		Templates: templates,
		Limit:     limit,
		Offset:    offset,
	})
}

// handleGetTemplate returns a single template by its persisted id.
func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	tpl, err := s.service.GetTemplate(r.Context(), id)
	if err != nil {
		s.respondError(w, r, err, statusFor(err))
		return
	}

	writeJSON(w, http.StatusOK, tpl)
}

// handleHealth reports liveness and import concurrency.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"imports": s.service.LimiterStatus(),
	})
}

// formatFromContentType picks the batch encoding. Anything that is not a
// YAML media type is treated as JSON.
func formatFromContentType(contentType string) payload.Format {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return payload.FormatJSON
	}
	switch mediaType {
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return payload.FormatYAML
	default:
		return payload.FormatJSON
	}
}
