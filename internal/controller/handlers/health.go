package handlers

import (
	"net/http"

	"meetscribe/pkg/api"
)

// Health is a liveness probe.
// It returns 200 OK if the server is running.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJson(w, http.StatusOK, api.HealthResponse{Status: "OK"})
}
