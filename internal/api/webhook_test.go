package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradehook/internal/domain"
	"tradehook/internal/engine"
	"tradehook/internal/plugin"
)

type countingHandler struct {
	name string

	mu    sync.Mutex
	count int
}

func (h *countingHandler) Name() string { return h.name }

func (h *countingHandler) Run(_ context.Context, _ domain.Event) error {
	h.mu.Lock()
	h.count++
	h.mu.Unlock()
	return nil
}

func testRouter(t *testing.T, hs ...*countingHandler) http.Handler {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	factories := make(map[string]plugin.Factory[plugin.Handler])
	names := make([]string, 0, len(hs))
	for _, h := range hs {
		h := h
		factories[h.name] = func(_ plugin.Deps) (plugin.Handler, error) { return h, nil }
		names = append(names, h.name)
	}
	registry := plugin.NewRegistry("handler", factories, logger)
	registry.RegisterAll(plugin.Deps{}, names)

	e := engine.New(registry, nil, nil, logger)
	return NewRouter(NewWebhookHandler(e, logger), e.HandlerCount, func() string { return "authenticated" })
}

func TestWebhook_DispatchesValidEvent(t *testing.T) {
	h := &countingHandler{name: "print"}
	router := testRouter(t, h)

	req := httptest.NewRequest(http.MethodPost, "/webhook",
		strings.NewReader(`{"action":"market_order","sym":"MNQ","side":"Buy","amount":1}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, h.count)
	assert.Contains(t, rec.Body.String(), `"dispatched"`)
}

func TestWebhook_RejectsEmptyBody(t *testing.T) {
	h := &countingHandler{name: "print"}
	router := testRouter(t, h)

	for _, body := range []string{"", "{}", "[1]", "not json"} {
		req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
	assert.Zero(t, h.count, "no handler may run for rejected bodies")
}

func TestWebhook_SucceedsWhenHandlerFails(t *testing.T) {
	// Handler outcomes do not leak into the HTTP status.
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	factories := map[string]plugin.Factory[plugin.Handler]{
		"panicky": func(_ plugin.Deps) (plugin.Handler, error) { return panicky{}, nil },
	}
	registry := plugin.NewRegistry("handler", factories, logger)
	registry.RegisterAll(plugin.Deps{}, []string{"panicky"})
	e := engine.New(registry, nil, nil, logger)
	router := NewRouter(NewWebhookHandler(e, logger), e.HandlerCount, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook", strings.NewReader(`{"sym":"MNQ"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

type panicky struct{}

func (panicky) Name() string                                 { return "panicky" }
func (panicky) Run(_ context.Context, _ domain.Event) error { panic("boom") }

func TestHealthz(t *testing.T) {
	router := testRouter(t, &countingHandler{name: "print"})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)
	assert.Contains(t, rec.Body.String(), `"authenticated"`)
}
