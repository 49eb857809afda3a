package session

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"seekbot/pkg/logx"
)

// Work is one admitted request's body. It observes ctx at its suspension
// points (the upstream call, outbound sends) and returns when done; a
// context error means the task was cancelled. The returned error is logged,
// user-facing messaging is the work's own responsibility.
type Work func(ctx context.Context) error

// Task is a handle to one in-flight unit of work.
type Task struct {
	ID     string
	UserID UserID

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	startedAt time.Time
}

// Done is closed once the task has fully unwound and its session slot has
// been released.
func (t *Task) Done() <-chan struct{} { return t.done }

type taskIDKey struct{}

// TaskIDFromContext returns the task ID carried by a task context, or "".
func TaskIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(taskIDKey{}).(string)
	return id
}

type CancelResult int

const (
	CancelAccepted CancelResult = iota
	NoActiveTask
)

// Hub is the task supervisor. It admits at most one task per user at a
// time, runs it on its own goroutine, and guarantees the user's busy slot
// is released exactly once on every exit path (success, failure, panic,
// cancellation).
type Hub struct {
	store *Store
	gate  Gate
	log   logx.Logger

	// now is the clock; replaceable in tests.
	now func() time.Time

	mu      sync.Mutex
	baseCtx context.Context

	wg sync.WaitGroup
}

func NewHub(store *Store, gate Gate, log logx.Logger) *Hub {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Hub{
		store:   store,
		gate:    gate,
		log:     log,
		now:     time.Now,
		baseCtx: context.Background(),
	}
}

// SetGate swaps the admission policy (config reload).
func (h *Hub) SetGate(gate Gate) {
	h.mu.Lock()
	h.gate = gate
	h.mu.Unlock()
}

// SetBaseContext sets the parent context for task contexts. Cancelling it
// cancels every task spawned afterwards.
func (h *Hub) SetBaseContext(ctx context.Context) {
	h.mu.Lock()
	h.baseCtx = ctx
	h.mu.Unlock()
}

// Begin runs the admission check and, when admitted, spawns work as the
// user's active task. The busy flag, cooldown stamp, and task handle are
// updated in a single critical section on the user's session, so two
// concurrent Begin calls for one user can never both be admitted.
//
// Begin does not block on the spawned work.
func (h *Hub) Begin(id UserID, work Work) (Admission, *Task) {
	h.mu.Lock()
	gate := h.gate
	base := h.baseCtx
	h.mu.Unlock()

	sess := h.store.get(id)

	sess.mu.Lock()
	adm := gate.Evaluate(id, sess.busy, sess.lastRequest, h.now())
	if adm.Decision != Admitted {
		sess.mu.Unlock()
		return adm, nil
	}

	taskID := uuid.NewString()
	ctx, cancel := context.WithCancel(base)
	ctx = context.WithValue(ctx, taskIDKey{}, taskID)
	t := &Task{
		ID:        taskID,
		UserID:    id,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
		startedAt: h.now(),
	}
	sess.busy = true
	sess.lastRequest = t.startedAt
	sess.task = t
	sess.mu.Unlock()

	h.wg.Add(1)
	go h.run(sess, t, work)
	return adm, t
}

func (h *Hub) run(sess *Session, t *Task, work Work) {
	defer h.wg.Done()
	// Release the slot on every exit path, including panics. finish is
	// reached exactly once per task.
	defer func() {
		if r := recover(); r != nil {
			h.log.Error("task panicked",
				logx.String("task", t.ID),
				logx.Int64("user", int64(t.UserID)),
				logx.Any("panic", r),
				logx.Stack(string(debug.Stack())))
		}
		h.finish(sess, t)
	}()

	err := work(t.ctx)
	took := h.now().Sub(t.startedAt)
	switch {
	case t.ctx.Err() != nil:
		h.log.Info("task cancelled",
			logx.String("task", t.ID),
			logx.Int64("user", int64(t.UserID)),
			logx.Duration("took", took))
	case err != nil:
		h.log.Warn("task failed",
			logx.String("task", t.ID),
			logx.Int64("user", int64(t.UserID)),
			logx.Duration("took", took),
			logx.Err(err))
	default:
		h.log.Debug("task completed",
			logx.String("task", t.ID),
			logx.Int64("user", int64(t.UserID)),
			logx.Duration("took", took))
	}
}

func (h *Hub) finish(sess *Session, t *Task) {
	sess.mu.Lock()
	if sess.task == t {
		sess.busy = false
		sess.task = nil
	}
	sess.mu.Unlock()
	t.cancel()
	close(t.done)
}

// Cancel signals the user's active task and blocks until it has fully
// unwound, so a follow-up admission for the same user is guaranteed to see
// a free slot. Returns NoActiveTask when there is nothing to cancel.
func (h *Hub) Cancel(id UserID) CancelResult {
	sess := h.store.get(id)

	sess.mu.Lock()
	t := sess.task
	sess.mu.Unlock()

	if t == nil {
		return NoActiveTask
	}
	t.cancel()
	<-t.done
	return CancelAccepted
}

// Active returns the user's in-flight task handle, if any.
func (h *Hub) Active(id UserID) *Task {
	sess := h.store.get(id)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.task
}

// Shutdown cancels every in-flight task and waits for them to unwind or for
// ctx to expire.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.store.mu.RLock()
	for _, sess := range h.store.m {
		sess.mu.Lock()
		if sess.task != nil {
			sess.task.cancel()
		}
		sess.mu.Unlock()
	}
	h.store.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return fmt.Errorf("session hub shutdown: %w", ctx.Err())
	case <-done:
		return nil
	}
}
