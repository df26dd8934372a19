package domain

// ExecutionStatus — статус выполнения workflow.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED
//	                  ↘ STOPPED
//	          RUNNING ⇄ PAUSED (пауза проверяется только между уровнями)
type ExecutionStatus string

const (
	// ExecutionStatusPending — execution создан, граф ещё строится.
	ExecutionStatusPending ExecutionStatus = "pending"

	// ExecutionStatusRunning — уровни графа выполняются.
	ExecutionStatusRunning ExecutionStatus = "running"

	// ExecutionStatusPaused — scheduler ждёт Resume на границе уровней.
	ExecutionStatusPaused ExecutionStatus = "paused"

	// ExecutionStatusCompleted — все уровни выполнены.
	ExecutionStatusCompleted ExecutionStatus = "completed"

	// ExecutionStatusFailed — run прерван фатальной ошибкой.
	ExecutionStatusFailed ExecutionStatus = "failed"

	// ExecutionStatusStopped — run остановлен через Stop().
	ExecutionStatusStopped ExecutionStatus = "stopped"
)

// IsTerminal возвращает true, если статус финальный.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusCompleted, ExecutionStatusFailed, ExecutionStatusStopped:
		return true
	default:
		return false
	}
}

// NodeStatus — статус выполнения отдельного узла.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → COMPLETED
//	                  ↘ FAILED
type NodeStatus string

const (
	// NodeStatusPending — узел ещё не запускался.
	NodeStatusPending NodeStatus = "pending"

	// NodeStatusRunning — узел выполняется.
	NodeStatusRunning NodeStatus = "running"

	// NodeStatusCompleted — узел успешно выполнен (или взят из кэша).
	NodeStatusCompleted NodeStatus = "completed"

	// NodeStatusFailed — узел завершился с ошибкой.
	NodeStatusFailed NodeStatus = "failed"
)

// IsTerminal возвращает true, если статус финальный.
func (s NodeStatus) IsTerminal() bool {
	return s == NodeStatusCompleted || s == NodeStatusFailed
}
