// Package pool is the parallel task-execution substrate the job coordinator
// drives. It offers submit, bounded wait and blocking get primitives over a
// FIFO queue drained by at most concurrency worker goroutines.
package pool

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"openbq/internal/logging"
	"openbq/internal/services"
	"openbq/internal/workunit"
)

// ScoreFunc executes one work unit. Implementations must be safe for
// concurrent use.
type ScoreFunc func(ctx context.Context, unit workunit.WorkUnit) workunit.Outcome

// Task is the handle for one submitted unit.
type Task struct {
	ID      int
	Unit    workunit.WorkUnit
	done    chan struct{}
	outcome workunit.Outcome
	elapsed time.Duration
}

// Done is closed once the task's outcome is available.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Ready reports whether the task has finished without blocking.
func (t *Task) Ready() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Outcome returns the task result. It must only be called after Done is closed.
func (t *Task) Outcome() workunit.Outcome {
	return t.outcome
}

// Pool runs submitted units with bounded parallelism. Workers are started on
// demand, one per free slot, and exit once the queue is empty.
type Pool struct {
	ctx    context.Context
	slots  *semaphore.Weighted
	score  ScoreFunc
	logger *slog.Logger
	wg     sync.WaitGroup

	mu      sync.Mutex
	nextID  int
	queue   []*Task
	changed chan struct{}
}

// New creates a pool running at most concurrency units at once. A
// non-positive concurrency uses one slot per CPU.
func New(ctx context.Context, concurrency int, score ScoreFunc, logger *slog.Logger) *Pool {
	if concurrency <= 0 {
		concurrency = runtime.NumCPU()
	}
	return &Pool{
		ctx:     ctx,
		slots:   semaphore.NewWeighted(int64(concurrency)),
		score:   score,
		logger:  logging.NewComponentLogger(logger, "pool"),
		changed: make(chan struct{}),
	}
}

// Submit queues unit and returns immediately. Queued units cost no goroutine;
// a worker is started only while a slot is free.
func (p *Pool) Submit(unit workunit.WorkUnit) *Task {
	p.mu.Lock()
	defer p.mu.Unlock()
	task := &Task{ID: p.nextID, Unit: unit, done: make(chan struct{})}
	p.nextID++
	p.queue = append(p.queue, task)
	if p.slots.TryAcquire(1) {
		p.wg.Add(1)
		go p.work()
	}
	return task
}

// next pops the oldest queued task. The slot is released under the same lock
// Submit holds, so a task is never queued without a worker to take it.
func (p *Pool) next() (*Task, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.queue) == 0 {
		p.slots.Release(1)
		return nil, false
	}
	task := p.queue[0]
	p.queue[0] = nil
	p.queue = p.queue[1:]
	return task, true
}

func (p *Pool) work() {
	defer p.wg.Done()
	for {
		task, ok := p.next()
		if !ok {
			return
		}
		p.run(task)
	}
}

func (p *Pool) run(task *Task) {
	defer p.complete(task)

	if err := p.ctx.Err(); err != nil {
		task.outcome = workunit.Failure(task.Unit, services.Wrap(services.ErrTask, "pool", "start", "cancelled before start", err))
		return
	}

	start := time.Now()
	task.outcome = p.invoke(task.Unit)
	task.elapsed = time.Since(start)
	p.logger.Debug("task finished",
		logging.Int("task_id", task.ID),
		logging.String(logging.FieldUnit, task.Unit.Target()),
		logging.Duration("elapsed", task.elapsed),
		logging.Bool("failed", task.outcome.Failed()),
	)
}

func (p *Pool) invoke(unit workunit.WorkUnit) (outcome workunit.Outcome) {
	ctx := services.WithUnit(p.ctx, unit.Target())
	defer func() {
		if r := recover(); r != nil {
			logging.WithContext(ctx, p.logger).Debug("scorer panic", logging.String("stack", string(debug.Stack())))
			outcome = workunit.Failure(unit, services.Wrap(services.ErrTask, "pool", "score", fmt.Sprintf("panic: %v", r), nil))
		}
	}()
	return p.score(ctx, unit)
}

func (p *Pool) complete(task *Task) {
	close(task.done)
	p.mu.Lock()
	close(p.changed)
	p.changed = make(chan struct{})
	p.mu.Unlock()
}

func (p *Pool) signal() <-chan struct{} {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.changed
}

// Wait blocks until at least num of tasks have finished, timeout elapses, or
// ctx is cancelled. ready holds at most num finished tasks in the order given;
// notReady holds the rest. A non-positive timeout waits without bound.
func (p *Pool) Wait(ctx context.Context, tasks []*Task, num int, timeout time.Duration) (ready, notReady []*Task) {
	if num > len(tasks) {
		num = len(tasks)
	}
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}
	for {
		changed := p.signal()
		if countReady(tasks) >= num {
			return split(tasks, num)
		}
		select {
		case <-changed:
		case <-deadline:
			return split(tasks, num)
		case <-ctx.Done():
			return split(tasks, num)
		}
	}
}

// Get blocks until every task has finished and returns their outcomes in the
// order given. Tasks still pending when ctx is cancelled resolve to task errors.
func (p *Pool) Get(ctx context.Context, tasks []*Task) []workunit.Outcome {
	outcomes := make([]workunit.Outcome, len(tasks))
	for i, task := range tasks {
		select {
		case <-task.done:
			outcomes[i] = task.outcome
		case <-ctx.Done():
			outcomes[i] = workunit.Failure(task.Unit, services.Wrap(services.ErrTask, "pool", "get", "cancelled before completion", ctx.Err()))
		}
	}
	return outcomes
}

// Close waits for every submitted task to finish and its worker to exit.
func (p *Pool) Close() {
	p.wg.Wait()
}

func countReady(tasks []*Task) int {
	n := 0
	for _, t := range tasks {
		if t.Ready() {
			n++
		}
	}
	return n
}

func split(tasks []*Task, num int) (ready, notReady []*Task) {
	ready = make([]*Task, 0, num)
	notReady = make([]*Task, 0, len(tasks))
	for _, t := range tasks {
		if len(ready) < num && t.Ready() {
			ready = append(ready, t)
			continue
		}
		notReady = append(notReady, t)
	}
	return ready, notReady
}
