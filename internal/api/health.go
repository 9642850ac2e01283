package api

import (
	"net/http"
)

// HealthResponse reports process liveness and the upstream session state.
type HealthResponse struct {
	Status   string `json:"status"`
	Session  string `json:"session,omitempty"`
	Handlers int    `json:"handlers"`
}

// HealthHandler returns the health check handler. sessionState is called
// per request and may be nil when no authenticated upstream is configured.
func HealthHandler(handlerCount func() int, sessionState func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := HealthResponse{
			Status:   "healthy",
			Handlers: handlerCount(),
		}
		if sessionState != nil {
			resp.Session = sessionState()
		}
		respondJSON(w, http.StatusOK, resp)
	}
}
