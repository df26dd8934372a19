package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/engine"
)

// Status возвращает состояние контроллера.
// GET /api/v1/status
func (h *Handler) Status(w http.ResponseWriter, _ *http.Request) {
	Success(w, h.controller.Status())
}

// Pause приостанавливает выполнение на следующей границе уровней.
// POST /api/v1/pause
func (h *Handler) Pause(w http.ResponseWriter, _ *http.Request) {
	if HandleError(w, h.logger, h.controller.Pause(), "") {
		return
	}
	Success(w, ControlResponse{Status: "pausing"})
}

// Resume снимает паузу.
// POST /api/v1/resume
func (h *Handler) Resume(w http.ResponseWriter, _ *http.Request) {
	if HandleError(w, h.logger, h.controller.Resume(), "") {
		return
	}
	Success(w, ControlResponse{Status: "resumed"})
}

// Stop останавливает выполнение на следующей границе уровней.
// POST /api/v1/stop
func (h *Handler) Stop(w http.ResponseWriter, _ *http.Request) {
	if HandleError(w, h.logger, h.controller.Stop(), "") {
		return
	}
	Success(w, ControlResponse{Status: "stopping"})
}

// Stats возвращает статистику по истории выполнений.
// GET /api/v1/stats
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	Success(w, h.controller.Stats())
}

// ClearCache очищает кэш результатов узлов.
// DELETE /api/v1/cache
func (h *Handler) ClearCache(w http.ResponseWriter, r *http.Request) {
	if HandleError(w, h.logger, h.controller.ClearCache(r.Context()), "") {
		return
	}
	NoContent(w)
}

// NodeTypes возвращает зарегистрированные типы узлов.
// GET /api/v1/node-types
func (h *Handler) NodeTypes(w http.ResponseWriter, _ *http.Request) {
	registry := h.controller.Registry()
	Success(w, NodeTypesResponse{
		Types:  registry.Types(),
		Remote: registry.Remote() != nil,
	})
}

// ValidateWorkflow проверяет workflow без выполнения.
// POST /api/v1/workflows/validate
//
// Принимает JSON или HCL (Content-Type: application/hcl или ?format=hcl).
// Некорректный workflow — 200 с valid=false.
func (h *Handler) ValidateWorkflow(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		BadRequest(w, "failed to read request body")
		return
	}

	var spec *domain.WorkflowSpec
	if isHCL(r) {
		spec, err = engine.ParseHCL(body, "request.hcl")
	} else {
		spec, err = engine.ParseJSON(body)
	}
	if err != nil {
		Success(w, ValidateResponse{Error: err.Error()})
		return
	}

	g, err := engine.Build(spec, engine.BuildOptions{Registry: h.controller.Registry()})
	if err != nil {
		Success(w, ValidateResponse{Name: spec.Name, Nodes: len(spec.Nodes), Error: err.Error()})
		return
	}

	Success(w, ValidateResponse{
		Valid:  true,
		Name:   spec.Name,
		Nodes:  g.Size(),
		Levels: g.Levels(),
		Roots:  g.Roots,
		Leaves: g.Leaves,
	})
}

func isHCL(r *http.Request) bool {
	if r.URL.Query().Get("format") == "hcl" {
		return true
	}
	return strings.Contains(r.Header.Get("Content-Type"), "hcl")
}
