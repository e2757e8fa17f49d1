package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/relaydesk/relaydesk/internal/embedding"
	"github.com/relaydesk/relaydesk/internal/knowledge"
	"github.com/relaydesk/relaydesk/internal/log"
	"github.com/relaydesk/relaydesk/internal/tenant"
)

const maxDocumentBodyBytes = 4 << 20

// DocumentIngestor ingests one document into a tenant's knowledge base.
type DocumentIngestor interface {
	IngestFor(ctx context.Context, t *tenant.Tenant, title, content string) (*knowledge.Document, error)
}

/// documentsHandler serves the dashboard-facing knowledge base API:
// POST /api/tenants/{slug}/documents.
type documentsHandler struct {
	tenants  TenantFinder
	ingestor DocumentIngestor
	logger   log.Logger
}

type createDocumentRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type createDocumentResponse struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

func (h *documentsHandler) create(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	t, err := h.tenants.BySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			writeError(w, http.StatusNotFound, "tenant not found", h.logger)
			return
		}
		h.logger.Error("tenant lookup failed", "slug", slug, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error", h.logger)
		return
	}

	var req createDocumentRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxDocumentBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}
	req.Title = strings.TrimSpace(req.Title)
	if req.Title == "" || len(req.Title) > 255 {
		writeError(w, http.StatusBadRequest, "title must be 1-255 characters", h.logger)
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		writeError(w, http.StatusBadRequest, "content is required", h.logger)
		return
	}

	doc, err := h.ingestor.IngestFor(r.Context(), t, req.Title, req.Content)
	if err != nil {
		if errors.Is(err, embedding.ErrMissingAPIKey) {
			writeError(w, http.StatusUnprocessableEntity, "no embedding credential configured", h.logger)
			return
		}
		h.logger.Error("document ingestion failed", "tenant_slug", slug, "title", req.Title, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to ingest document", h.logger)
		return
	}

	writeJSON(w, http.StatusCreated, createDocumentResponse{ID: doc.ID, Title: doc.Title}, h.logger)
}
