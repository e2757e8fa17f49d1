package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/relaydesk/relaydesk/internal/engine"
	"github.com/relaydesk/relaydesk/internal/log"
	"github.com/relaydesk/relaydesk/internal/tenant"
)

// maxChatBodyBytes caps the request body; widget conversations are short.
const maxChatBodyBytes = 1 << 20

// ChatEngine is the engine surface the widget handler needs.
type ChatEngine interface {
	StreamTurn(ctx context.Context, req engine.Request, onChunk engine.StreamChunk) (*engine.Turn, error)
}

// TenantFinder looks tenants up by their public widget slug.
type TenantFinder interface {
	BySlug(ctx context.Context, slug string) (*tenant.Tenant, error)
}

// TurnRecorder persists completed exchanges for later review.
type TurnRecorder interface {
	RecordTurn(ctx context.Context, tenantID, sessionID, userText, assistantText string) error
}

// chatHandler serves the embedded widget: POST /api/widget/{slug}/chat
// streams a chat turn over SSE, GET /api/widget/{slug}/config bootstraps
// the widget UI.
type chatHandler struct {
	tenants  TenantFinder
	engine   ChatEngine
	recorder TurnRecorder // nil disables transcripts
	logger   log.Logger
}

// SSE event types for widget streaming.
const (
	eventChunk = "chunk" // partial response text
	eventDone  = "done"  // stream completed
	eventError = "error" // stream aborted
)

type chatRequest struct {
	SessionID string        `json:"sessionId"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chunkPayload struct {
	Text string `json:"text"`
}

type donePayload struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
}

type streamErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// widgetConfig is the public subset of a tenant shown to the widget. No
// credentials or model detail cross this boundary.
type widgetConfig struct {
	Name           string `json:"name"`
	WelcomeMessage string `json:"welcomeMessage"`
}

func (h *chatHandler) config(w http.ResponseWriter, r *http.Request) {
	t, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, widgetConfig{
		Name:           t.Name,
		WelcomeMessage: t.WelcomeMessage,
	}, h.logger)
}

func (h *chatHandler) chat(w http.ResponseWriter, r *http.Request) {
	t, ok := h.resolveTenant(w, r)
	if !ok {
		return
	}

	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", h.logger)
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "messages are required", h.logger)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	turn, err := h.engine.StreamTurn(ctx, engine.Request{
		Tenant:    t,
		SessionID: req.SessionID,
		Messages:  toMessages(req.Messages),
	}, func(text string) error {
		if text == "" {
			return nil
		}
		return writeEvent(w, flusher, eventChunk, chunkPayload{Text: text})
	})
	if err != nil {
		if ctx.Err() != nil {
			h.logger.Info("client disconnected", "tenant_slug", t.Slug, "session_id", req.SessionID)
			return
		}
		h.handleStreamError(w, flusher, t.Slug, err)
		return
	}

	_ = writeEvent(w, flusher, eventDone, donePayload{
		Response:  turn.Text,
		SessionID: turn.SessionID,
	})

	h.recordTurn(ctx, t, turn)
}

// recordTurn persists the exchange best-effort; a transcript failure never
// surfaces to the widget.
func (h *chatHandler) recordTurn(ctx context.Context, t *tenant.Tenant, turn *engine.Turn) {
	if h.recorder == nil {
		return
	}
	err := h.recorder.RecordTurn(context.WithoutCancel(ctx),
		t.ID, turn.SessionID, turn.UserText, turn.Text)
	if err != nil {
		h.logger.Warn("recording transcript failed",
			"tenant_slug", t.Slug, "session_id", turn.SessionID, "error", err)
	}
}

// resolveTenant maps slug lookup outcomes to widget-facing statuses:
// unknown slug 404, disabled widget 403, storage failure 500.
func (h *chatHandler) resolveTenant(w http.ResponseWriter, r *http.Request) (*tenant.Tenant, bool) {
	slug := r.PathValue("slug")
	t, err := h.tenants.BySlug(r.Context(), slug)
	if err != nil {
		if errors.Is(err, tenant.ErrNotFound) {
			writeError(w, http.StatusNotFound, "tenant not found", h.logger)
			return nil, false
		}
		h.logger.Error("tenant lookup failed", "slug", slug, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to process chat", h.logger)
		return nil, false
	}
	if !t.WidgetEnabled {
		writeError(w, http.StatusForbidden, "widget is disabled", h.logger)
		return nil, false
	}
	return t, true
}

// handleStreamError reports failures after the SSE stream has started. The
// message stays generic; the specific cause only reaches the logs.
func (h *chatHandler) handleStreamError(w io.Writer, f http.Flusher, slug string, err error) {
	h.logger.Error("chat turn failed", "tenant_slug", slug, "error", err)

	code := "STREAM_ERROR"
	message := "failed to process chat"
	if errors.Is(err, engine.ErrConfiguration) {
		code = "TENANT_MISCONFIGURED"
		message = "assistant is not configured"
	}

	_ = writeEvent(w, f, eventError, streamErrorPayload{Code: code, Message: message})
}

// writeEvent writes one SSE event: "event: <type>\ndata: <json>\n\n".
func writeEvent[T any](w io.Writer, flusher http.Flusher, event string, data T) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	flusher.Flush()
	return nil
}

func toMessages(in []chatMessage) []tenant.Message {
	out := make([]tenant.Message, len(in))
	for i, m := range in {
		out[i] = tenant.Message{Role: tenant.Role(m.Role), Content: m.Content}
	}
	return out
}
