package executor

import (
	"sync"
	"time"

	"github.com/shaiso/Nodeflow/internal/domain"
)

// DefaultHistorySize — ёмкость истории выполнений.
const DefaultHistorySize = 100

// Stats — агрегированная статистика по истории выполнений.
type Stats struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Stopped   int `json:"stopped"`

	// SuccessRate — доля успешных выполнений (0..1).
	SuccessRate float64 `json:"successRate"`

	AverageDuration    time.Duration `json:"averageDurationNs"`
	AverageNodesPerRun float64       `json:"averageNodesPerRun"`
}

// history — кольцевой буфер финализированных выполнений.
type history struct {
	mu    sync.RWMutex
	items []*domain.Execution
	next  int
	full  bool
}

func newHistory(size int) *history {
	if size <= 0 {
		size = DefaultHistorySize
	}
	return &history{items: make([]*domain.Execution, size)}
}

func (h *history) add(exec *domain.Execution) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.items[h.next] = exec
	h.next = (h.next + 1) % len(h.items)
	if h.next == 0 {
		h.full = true
	}
}

func (h *history) len() int {
	if h.full {
		return len(h.items)
	}
	return h.next
}

// list возвращает до limit последних выполнений, новые первыми.
// limit <= 0 — вся история.
func (h *history) list(limit int) []*domain.Execution {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := h.len()
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]*domain.Execution, 0, limit)
	for i := 1; i <= limit; i++ {
		idx := (h.next - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

func (h *history) stats() Stats {
	execs := h.list(0)

	var st Stats
	var totalDuration time.Duration
	var totalNodes int
	for _, e := range execs {
		st.Total++
		switch e.CurrentStatus() {
		case domain.ExecutionStatusCompleted:
			st.Completed++
		case domain.ExecutionStatusFailed:
			st.Failed++
		case domain.ExecutionStatusStopped:
			st.Stopped++
		}
		totalDuration += e.Duration()
		totalNodes += e.Metadata.TotalNodes
	}

	if st.Total > 0 {
		st.SuccessRate = float64(st.Completed) / float64(st.Total)
		st.AverageDuration = totalDuration / time.Duration(st.Total)
		st.AverageNodesPerRun = float64(totalNodes) / float64(st.Total)
	}
	return st
}
