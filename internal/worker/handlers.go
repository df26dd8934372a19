package worker

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/engine"
	"github.com/shaiso/Nodeflow/internal/events"
	"github.com/shaiso/Nodeflow/internal/nodes"
	"github.com/shaiso/Nodeflow/internal/scheduler"
	"github.com/shaiso/Nodeflow/internal/telemetry"
)

// RegisterRoutes регистрирует маршруты worker'а.
func (w *Worker) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /execute", w.handleExecute)
	mux.HandleFunc("GET /types", w.handleTypes)
}

// handleExecute выполняет один узел.
//
// Ошибка обработчика узла возвращается как 200 {"error": ...}; коды
// 4xx/5xx означают, что узел не выполнялся.
func (w *Worker) handleExecute(rw http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		writeResponse(rw, http.StatusBadRequest, nodes.RemoteResponse{Error: err.Error()})
		return
	}

	logger := telemetry.WithNodeID(w.logger, req.NodeID, req.NodeType)
	if req.ExecutionID != "" {
		logger = telemetry.WithExecutionID(logger, req.ExecutionID)
	}

	handler, ok := w.registry.Lookup(req.NodeType)
	if !ok {
		logger.Warn("unknown node type")
		writeResponse(rw, http.StatusUnprocessableEntity, nodes.RemoteResponse{
			Error: fmt.Sprintf("%v: %s", ErrUnknownNodeType, req.NodeType),
		})
		return
	}

	acquireCtx, cancel := context.WithTimeout(r.Context(), w.queueTimeout)
	err = w.limiter.Acquire(acquireCtx, 1)
	cancel()
	if err != nil {
		logger.Warn("no free execution slot", "error", err)
		writeResponse(rw, http.StatusServiceUnavailable, nodes.RemoteResponse{Error: ErrOverloaded.Error()})
		return
	}
	defer w.limiter.Release(1)

	node := &engine.GraphNode{
		ID: req.NodeID,
		Spec: &domain.NodeSpec{
			ID:   req.NodeID,
			Type: req.NodeType,
			Data: req.NodeData,
		},
		Binding: nodes.Binding{Kind: nodes.BindingLocal, Type: req.NodeType, Handler: handler},
	}

	start := time.Now()
	w.emit(req, events.NodeStarted, 0, nil)

	out, err := w.invoker.Invoke(r.Context(), node, req.Inputs, req.ExecutionID)
	if err != nil {
		logger.Warn("node failed", "error", err)
		w.emit(req, events.NodeFailed, time.Since(start), err)
		writeResponse(rw, http.StatusOK, nodes.RemoteResponse{Error: scheduler.ErrorMessage(err)})
		return
	}

	logger.Debug("node executed", "duration", time.Since(start))
	w.emit(req, events.NodeCompleted, time.Since(start), nil)
	writeResponse(rw, http.StatusOK, nodes.RemoteResponse{Output: out})
}

// handleTypes возвращает типы узлов, которые умеет выполнять worker.
func (w *Worker) handleTypes(rw http.ResponseWriter, _ *http.Request) {
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(map[string]any{"types": w.registry.Types()})
}

func (w *Worker) emit(req *nodes.RemoteRequest, t events.Type, d time.Duration, err error) {
	e := events.Event{
		Type:        t,
		ExecutionID: req.ExecutionID,
		NodeID:      req.NodeID,
		NodeType:    req.NodeType,
		Duration:    d,
		Timestamp:   time.Now(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	w.observer.OnEvent(e)
}

func decodeRequest(r *http.Request) (*nodes.RemoteRequest, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrInvalidRequest, err)
	}

	var req nodes.RemoteRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if req.NodeType == "" {
		return nil, fmt.Errorf("%w: nodeType is required", ErrInvalidRequest)
	}
	if req.Inputs == nil {
		req.Inputs = make(map[string]any)
	}
	return &req, nil
}

func writeResponse(rw http.ResponseWriter, status int, resp nodes.RemoteResponse) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	_ = json.NewEncoder(rw).Encode(resp)
}
