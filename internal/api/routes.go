package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Executions
	mux.Handle("POST /api/v1/executions", chain(http.HandlerFunc(h.Execute)))
	mux.Handle("GET /api/v1/executions", chain(http.HandlerFunc(h.ListExecutions)))
	mux.Handle("GET /api/v1/executions/{id}", chain(http.HandlerFunc(h.GetExecution)))

	// Control
	mux.Handle("GET /api/v1/status", chain(http.HandlerFunc(h.Status)))
	mux.Handle("POST /api/v1/pause", chain(http.HandlerFunc(h.Pause)))
	mux.Handle("POST /api/v1/resume", chain(http.HandlerFunc(h.Resume)))
	mux.Handle("POST /api/v1/stop", chain(http.HandlerFunc(h.Stop)))
	mux.Handle("GET /api/v1/stats", chain(http.HandlerFunc(h.Stats)))
	mux.Handle("DELETE /api/v1/cache", chain(http.HandlerFunc(h.ClearCache)))

	// Workflows
	mux.Handle("POST /api/v1/workflows/validate", chain(http.HandlerFunc(h.ValidateWorkflow)))
	mux.Handle("GET /api/v1/node-types", chain(http.HandlerFunc(h.NodeTypes)))

	// Events
	if h.hub != nil {
		mux.Handle("GET /api/v1/events", chain(http.HandlerFunc(h.hub.ServeWS)))
	}
}
