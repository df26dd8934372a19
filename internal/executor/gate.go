package executor

import (
	"context"
	"sort"
	"sync"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/engine"
)

// gate — флаги паузы и остановки, проверяемые на границе уровней.
//
// resume создаётся при паузе и закрывается при возобновлении или
// остановке, поэтому ожидающие run'ы просыпаются без опроса.
type gate struct {
	mu      sync.Mutex
	paused  bool
	stopped bool
	resume  chan struct{}

	onPause  func(*domain.Execution)
	onResume func(*domain.Execution)
}

// Wait реализует scheduler.Gate.
func (g *gate) Wait(ctx context.Context, exec *domain.Execution) error {
	waited := false
	for {
		g.mu.Lock()
		if g.stopped {
			g.mu.Unlock()
			return engine.ErrExecutionStopped
		}
		if !g.paused {
			g.mu.Unlock()
			if waited && g.onResume != nil {
				g.onResume(exec)
			}
			return nil
		}
		ch := g.resume
		g.mu.Unlock()

		if !waited {
			waited = true
			if g.onPause != nil {
				g.onPause(exec)
			}
		}

		select {
		case <-ch:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// pause возвращает false, если пауза уже выставлена.
func (g *gate) pause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.paused || g.stopped {
		return false
	}
	g.paused = true
	g.resume = make(chan struct{})
	return true
}

// unpause возвращает false, если паузы не было.
func (g *gate) unpause() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.paused {
		return false
	}
	g.paused = false
	close(g.resume)
	g.resume = nil
	return true
}

func (g *gate) stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopped = true
	if g.paused {
		g.paused = false
		close(g.resume)
		g.resume = nil
	}
}

// reset сбрасывает флаги, когда активных run'ов не осталось.
func (g *gate) reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.paused {
		close(g.resume)
		g.resume = nil
	}
	g.paused = false
	g.stopped = false
}

func (g *gate) isPaused() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.paused
}

// runningSet — множество выполняющихся узлов. Реализует scheduler.Tracker.
//
// Узлы с одинаковым ID из параллельных run'ов учитываются счётчиком.
type runningSet struct {
	mu    sync.Mutex
	nodes map[string]int
}

func newRunningSet() *runningSet {
	return &runningSet{nodes: make(map[string]int)}
}

func (s *runningSet) NodeStarted(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[nodeID]++
}

func (s *runningSet) NodeFinished(nodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nodes[nodeID] <= 1 {
		delete(s.nodes, nodeID)
		return
	}
	s.nodes[nodeID]--
}

func (s *runningSet) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
