package api

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"tradehook/internal/domain"
	"tradehook/internal/engine"
)

// maxBodySize bounds inbound webhook payloads; alert payloads are tiny.
const maxBodySize = 1 << 20

// WebhookHandler receives signal webhooks and hands them to the dispatch
// engine. The HTTP status reflects only whether the event was structurally
// valid and dispatched, not whether every handler succeeded.
type WebhookHandler struct {
	engine *engine.Engine
	logger *slog.Logger
}

func NewWebhookHandler(e *engine.Engine, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{engine: e, logger: logger}
}

type dispatchResponse struct {
	Status   string `json:"status"`
	Handlers int    `json:"handlers"`
}

func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	evt := domain.NewEvent(body)
	if err := h.engine.Dispatch(r.Context(), evt); err != nil {
		if errors.Is(err, engine.ErrEmptyEvent) {
			respondError(w, http.StatusBadRequest, "request body must be a non-empty JSON object")
			return
		}
		h.logger.Error("dispatch failed", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to dispatch event")
		return
	}

	h.logger.Info("webhook dispatched", "payload_bytes", len(body))
	respondJSON(w, http.StatusOK, dispatchResponse{
		Status:   "dispatched",
		Handlers: h.engine.HandlerCount(),
	})
}
