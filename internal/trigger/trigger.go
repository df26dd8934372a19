package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/Nodeflow/internal/domain"
	"github.com/shaiso/Nodeflow/internal/engine"
	"github.com/shaiso/Nodeflow/internal/executor"
)

// Executor запускает workflow. Реализуется executor.Controller.
type Executor interface {
	Execute(ctx context.Context, spec *domain.WorkflowSpec, opts executor.ExecuteOptions) (*domain.Execution, error)
}

// Schedule — расписание запуска одного workflow.
type Schedule struct {
	Name     string
	Expr     string
	Timezone string

	Workflow    *domain.WorkflowSpec
	StartNodeID string
	Inputs      map[string]any
}

// Entry — зарегистрированное расписание.
type Entry struct {
	ID      cron.EntryID
	Name    string
	Expr    string
	Next    time.Time
	Prev    time.Time
	Runs    int
	Skipped int
}

// Config — зависимости Trigger.
type Config struct {
	// Executor — обязательный.
	Executor Executor

	// OnRun вызывается после каждого запуска (опционально).
	OnRun func(name string, exec *domain.Execution, err error)

	Logger *slog.Logger
}

// Trigger запускает workflow по расписаниям.
type Trigger struct {
	cron     *cron.Cron
	executor Executor
	onRun    func(string, *domain.Execution, error)
	logger   *slog.Logger

	// ctx отменяется в Stop и прерывает выполняющиеся run'ы.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	schedules map[cron.EntryID]*scheduleState
}

type scheduleState struct {
	schedule Schedule
	runs     int
	skipped  int
}

// New создаёт Trigger. Расписания добавляются через Add.
func New(cfg Config) *Trigger {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	cl := cronLogger{logger: logger}
	ctx, cancel := context.WithCancel(context.Background())

	return &Trigger{
		cron: cron.New(
			cron.WithParser(cronParser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		executor:  cfg.Executor,
		onRun:     cfg.OnRun,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		schedules: make(map[cron.EntryID]*scheduleState),
	}
}

// Add регистрирует расписание. Workflow проверяется сразу,
// чтобы некорректное расписание не срабатывало вхолостую.
func (t *Trigger) Add(s Schedule) (cron.EntryID, error) {
	if s.Workflow == nil {
		return 0, fmt.Errorf("schedule %q: workflow is required", s.Name)
	}
	if err := engine.Validate(s.Workflow); err != nil {
		return 0, fmt.Errorf("schedule %q: %w", s.Name, err)
	}

	sched, err := ParseExpr(s.Expr, s.Timezone)
	if err != nil {
		return 0, fmt.Errorf("schedule %q: %w", s.Name, err)
	}
	if s.Name == "" {
		s.Name = s.Workflow.Name
	}

	state := &scheduleState{schedule: s}

	t.mu.Lock()
	defer t.mu.Unlock()

	id := t.cron.Schedule(sched, cron.FuncJob(func() { t.fire(state) }))
	t.schedules[id] = state

	t.logger.Info("schedule added", "schedule", s.Name, "expr", s.Expr, "entry_id", id)
	return id, nil
}

// Remove удаляет расписание.
func (t *Trigger) Remove(id cron.EntryID) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.cron.Remove(id)
	delete(t.schedules, id)
}

// Entries возвращает расписания, отсортированные по ID.
func (t *Trigger) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Entry, 0, len(t.schedules))
	for id, state := range t.schedules {
		e := t.cron.Entry(id)
		out = append(out, Entry{
			ID:      id,
			Name:    state.schedule.Name,
			Expr:    state.schedule.Expr,
			Next:    e.Next,
			Prev:    e.Prev,
			Runs:    state.runs,
			Skipped: state.skipped,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Start запускает планировщик в отдельной горутине.
func (t *Trigger) Start() {
	t.cron.Start()
}

// Stop останавливает планировщик и ждёт завершения выполняющихся
// run'ов. Если ctx истекает раньше, run'ы отменяются.
func (t *Trigger) Stop(ctx context.Context) error {
	done := t.cron.Stop()

	select {
	case <-done.Done():
		t.cancel()
		return nil
	case <-ctx.Done():
		t.cancel()
		<-done.Done()
		return ctx.Err()
	}
}

// fire выполняет один запуск расписания.
func (t *Trigger) fire(state *scheduleState) {
	s := state.schedule
	logger := t.logger.With("schedule", s.Name)

	exec, err := t.executor.Execute(t.ctx, s.Workflow, executor.ExecuteOptions{
		StartNodeID: s.StartNodeID,
		Inputs:      s.Inputs,
	})

	t.mu.Lock()
	if errors.Is(err, engine.ErrAlreadyRunning) {
		state.skipped++
	} else {
		state.runs++
	}
	t.mu.Unlock()

	switch {
	case errors.Is(err, engine.ErrAlreadyRunning):
		logger.Info("previous execution still running, skipping")
	case err != nil:
		logger.Warn("scheduled execution failed", "error", err)
	default:
		logger.Info("scheduled execution finished",
			"execution_id", exec.ID.String(),
			"status", exec.CurrentStatus(),
		)
	}

	if t.onRun != nil {
		t.onRun(s.Name, exec, err)
	}
}
