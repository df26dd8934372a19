package api

import (
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/executor"
	"github.com/shaiso/Nodeflow/internal/repo"
)

const (
	maxBodySize  = 10 << 20
	defaultLimit = 50
)

// Execute запускает workflow синхронно и возвращает Execution.
// POST /api/v1/executions
//
// Run, упавший на узле или остановленный, возвращается со статусом 200:
// подробности в Execution. Workflow, отклонённый валидацией, — 400.
func (h *Handler) Execute(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	if req.Workflow == nil {
		BadRequest(w, "workflow is required")
		return
	}

	exec, err := h.controller.Execute(r.Context(), req.Workflow, executor.ExecuteOptions{
		StartNodeID: req.StartNodeID,
		Inputs:      req.Inputs,
	})
	if exec == nil || IsValidationError(err) {
		HandleError(w, h.logger, err, "")
		return
	}

	Success(w, exec)
}

// ListExecutions возвращает последние выполнения.
// GET /api/v1/executions?limit=...&offset=...&status=...&workflow=...&source=archive
func (h *Handler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := queryInt(q.Get("limit"), defaultLimit)
	if err != nil {
		BadRequest(w, "invalid limit")
		return
	}
	offset, err := queryInt(q.Get("offset"), 0)
	if err != nil {
		BadRequest(w, "invalid offset")
		return
	}
	status := domain.ExecutionStatus(q.Get("status"))
	workflow := q.Get("workflow")

	var execs []*domain.Execution
	if q.Get("source") == "archive" {
		if h.archive == nil {
			InvalidState(w, "execution archive is not configured")
			return
		}
		execs, err = h.archive.ListRecent(r.Context(), repo.ExecutionFilter{
			WorkflowName: workflow,
			Status:       status,
			Limit:        limit,
			Offset:       offset,
		})
		if HandleError(w, h.logger, err, "") {
			return
		}
	} else {
		execs = filterHistory(h.controller.History(0), status, workflow, limit, offset)
	}

	result := make([]ExecutionSummary, len(execs))
	for i, e := range execs {
		result[i] = SummaryFromDomain(e)
	}
	List(w, result, len(result))
}

// GetExecution возвращает выполнение по ID: из истории, затем из архива.
// GET /api/v1/executions/{id}
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid execution id")
		return
	}

	for _, e := range h.controller.History(0) {
		if e.ID == id {
			Success(w, e)
			return
		}
	}

	if h.archive == nil {
		NotFound(w, "execution not found")
		return
	}

	exec, err := h.archive.GetByID(r.Context(), id)
	if HandleError(w, h.logger, err, "execution not found") {
		return
	}
	Success(w, exec)
}

func filterHistory(execs []*domain.Execution, status domain.ExecutionStatus, workflow string, limit, offset int) []*domain.Execution {
	out := make([]*domain.Execution, 0, len(execs))
	skipped := 0
	for _, e := range execs {
		if status != "" && e.CurrentStatus() != status {
			continue
		}
		if workflow != "" && e.WorkflowName != workflow {
			continue
		}
		if skipped < offset {
			skipped++
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, e)
	}
	return out
}

// queryInt парсит неотрицательное число из query параметра.
func queryInt(s string, defaultVal int) (int, error) {
	if s == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	return n, nil
}
