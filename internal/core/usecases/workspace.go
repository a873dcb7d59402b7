package usecases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/sarmap/internal/core/domain"
	"github.com/samirrijal/sarmap/internal/pkg/metrics"
)

const taskQueueSize = 64

var errImportAborted = errors.New("trace import aborted")

type task struct {
	ctx  context.Context
	fn   func(ctx context.Context, e *Engine) error
	done chan error
}

// Workspace runs one incident's Engine on a dedicated goroutine. Every
// operation is a task executed there in submission order; work scheduled
// with Later runs after the current task returns and before the next one.
type Workspace struct {
	IncidentID string

	engine     *Engine
	tasks      chan task
	microtasks []func()
	stopped    chan struct{}
	logger     *slog.Logger
}

// NewWorkspace creates a Workspace. Call Run to start processing.
func NewWorkspace(incidentID string, engine *Engine, logger *slog.Logger) *Workspace {
	if logger == nil {
		logger = slog.Default()
	}
	return &Workspace{
		IncidentID: incidentID,
		engine:     engine,
		tasks:      make(chan task, taskQueueSize),
		stopped:    make(chan struct{}),
		logger:     logger.With("incident_id", incidentID),
	}
}

// Run processes tasks until ctx is cancelled.
func (w *Workspace) Run(ctx context.Context) {
	defer close(w.stopped)
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-w.tasks:
			start := time.Now()
			t.done <- w.runTask(t)
			w.drainMicrotasks()
			metrics.WorkspaceTaskDuration.Observe(time.Since(start).Seconds())
		}
	}
}

func (w *Workspace) runTask(t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("workspace task panicked", "panic", r)
			err = fmt.Errorf("workspace task panicked: %v", r)
		}
	}()
	// The caller may have given up while the task sat in the queue.
	if err := t.ctx.Err(); err != nil {
		return err
	}
	return t.fn(t.ctx, w.engine)
}

func (w *Workspace) drainMicrotasks() {
	for len(w.microtasks) > 0 {
		next := w.microtasks[0]
		w.microtasks = w.microtasks[1:]
		func() {
			defer func() {
				if r := recover(); r != nil {
					w.logger.Error("workspace microtask panicked", "panic", r)
				}
			}()
			next()
		}()
	}
}

// Do runs fn on the workspace goroutine and waits for it.
func (w *Workspace) Do(ctx context.Context, fn func(ctx context.Context, e *Engine) error) error {
	done, err := w.submit(ctx, fn)
	if err != nil {
		return err
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-w.stopped:
		return domain.ErrWorkspaceClosed
	}
}

func (w *Workspace) submit(ctx context.Context, fn func(ctx context.Context, e *Engine) error) (chan error, error) {
	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case w.tasks <- t:
		return t.done, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-w.stopped:
		return nil, domain.ErrWorkspaceClosed
	}
}

// Later defers fn until the running task returns. Only call it from inside
// a task.
func (w *Workspace) Later(fn func()) {
	w.microtasks = append(w.microtasks, fn)
}

// ImportResult is delivered once an asynchronous import finishes.
type ImportResult struct {
	Trace *domain.ImportedTrace
	Err   error
}

// ImportTraceAsync queues a trace import. The file is parsed as a microtask
// after the enqueuing task has returned; the result arrives on the channel.
func (w *Workspace) ImportTraceAsync(ctx context.Context, req TraceImportRequest) <-chan ImportResult {
	out := make(chan ImportResult, 1)
	err := w.Do(ctx, func(ctx context.Context, e *Engine) error {
		w.Later(func() {
			res := ImportResult{Err: errImportAborted}
			defer func() { out <- res }()
			res.Trace, res.Err = e.Traces.Import(ctx, req)
		})
		return nil
	})
	if err != nil {
		out <- ImportResult{Err: err}
	}
	return out
}

// Snapshot returns the registry contents.
func (w *Workspace) Snapshot(ctx context.Context) (OverlaySnapshot, error) {
	var snap OverlaySnapshot
	err := w.Do(ctx, func(_ context.Context, e *Engine) error {
		snap = e.Registry.Snapshot()
		return nil
	})
	return snap, err
}
