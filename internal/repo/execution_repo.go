package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// DBTX — подмножество *pgxpool.Pool, используемое репозиторием.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// ExecutionRepo — архив финализированных выполнений.
type ExecutionRepo struct {
	db DBTX
}

// NewExecutionRepo создаёт новый ExecutionRepo.
func NewExecutionRepo(db DBTX) *ExecutionRepo {
	return &ExecutionRepo{db: db}
}

const executionColumns = `
	id, workflow_name, status, start_node_id, workflow, inputs, output,
	results, errors, node_order, total_nodes, completed_nodes, failed_nodes,
	error, started_at, finished_at, duration_ms`

// Save сохраняет выполнение. Повторное сохранение того же ID игнорируется.
func (r *ExecutionRepo) Save(ctx context.Context, exec *domain.Execution) error {
	if !exec.IsFinished() {
		return ErrNotFinished
	}

	args, err := executionArgs(exec)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO executions (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert execution: %w", err)
	}
	return nil
}

// GetByID возвращает выполнение по ID.
func (r *ExecutionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`
	return scanExecution(r.db.QueryRow(ctx, query, id))
}

// ExecutionFilter — параметры выборки.
type ExecutionFilter struct {
	WorkflowName string
	Status       domain.ExecutionStatus
	Limit        int
	Offset       int
}

// ListRecent возвращает выполнения, новые первыми.
func (r *ExecutionRepo) ListRecent(ctx context.Context, filter ExecutionFilter) ([]*domain.Execution, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE ($1::text IS NULL OR workflow_name = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY started_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.db.Query(ctx, query,
		nullString(filter.WorkflowName),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list executions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Execution
	for rows.Next() {
		exec, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, exec)
	}
	return out, rows.Err()
}

// --- Helpers ---

func executionArgs(exec *domain.Execution) ([]any, error) {
	jsonCols := []struct {
		name  string
		value any
	}{
		{"workflow", exec.Workflow},
		{"inputs", exec.Inputs},
		{"output", exec.Output},
		{"results", exec.Results},
		{"errors", exec.Errors},
		{"node_order", exec.NodeOrder},
	}

	encoded := make([][]byte, len(jsonCols))
	for i, c := range jsonCols {
		b, err := json.Marshal(c.value)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", c.name, err)
		}
		encoded[i] = b
	}

	return []any{
		exec.ID,
		exec.WorkflowName,
		string(exec.Status),
		nullString(exec.StartNodeID),
		encoded[0],
		encoded[1],
		encoded[2],
		encoded[3],
		encoded[4],
		encoded[5],
		exec.Metadata.TotalNodes,
		exec.Metadata.CompletedNodes,
		exec.Metadata.FailedNodes,
		nullString(exec.Error),
		exec.StartTime,
		exec.EndTime,
		exec.DurationMs,
	}, nil
}

// scanExecution сканирует строку в Execution. Работает и с pgx.Row, и с pgx.Rows.
func scanExecution(row pgx.Row) (*domain.Execution, error) {
	var (
		exec        domain.Execution
		status      string
		startNodeID *string
		execError   *string
		finishedAt  *time.Time

		workflowJSON, inputsJSON, outputJSON   []byte
		resultsJSON, errorsJSON, nodeOrderJSON []byte
	)

	err := row.Scan(
		&exec.ID,
		&exec.WorkflowName,
		&status,
		&startNodeID,
		&workflowJSON,
		&inputsJSON,
		&outputJSON,
		&resultsJSON,
		&errorsJSON,
		&nodeOrderJSON,
		&exec.Metadata.TotalNodes,
		&exec.Metadata.CompletedNodes,
		&exec.Metadata.FailedNodes,
		&execError,
		&exec.StartTime,
		&finishedAt,
		&exec.DurationMs,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan execution: %w", err)
	}

	exec.Status = domain.ExecutionStatus(status)
	exec.EndTime = finishedAt
	if startNodeID != nil {
		exec.StartNodeID = *startNodeID
	}
	if execError != nil {
		exec.Error = *execError
	}

	targets := []struct {
		name string
		data []byte
		dst  any
	}{
		{"workflow", workflowJSON, &exec.Workflow},
		{"inputs", inputsJSON, &exec.Inputs},
		{"output", outputJSON, &exec.Output},
		{"results", resultsJSON, &exec.Results},
		{"errors", errorsJSON, &exec.Errors},
		{"node_order", nodeOrderJSON, &exec.NodeOrder},
	}
	for _, t := range targets {
		if len(t.data) == 0 {
			continue
		}
		if err := json.Unmarshal(t.data, t.dst); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", t.name, err)
		}
	}

	return &exec, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
