package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/executor"
	"github.com/shaiso/Nodeflow/internal/repo"
)

// ExecutionArchive — чтение архива выполнений.
type ExecutionArchive interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error)
	ListRecent(ctx context.Context, filter repo.ExecutionFilter) ([]*domain.Execution, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	controller *executor.Controller
	archive    ExecutionArchive
	hub        *Hub
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Controller *executor.Controller

	// Archive — необязательный архив; без него доступна только
	// история в памяти.
	Archive ExecutionArchive

	// Hub — необязательный hub событий для /api/v1/events.
	Hub *Hub

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		controller: cfg.Controller,
		archive:    cfg.Archive,
		hub:        cfg.Hub,
		logger:     logger,
	}
}
