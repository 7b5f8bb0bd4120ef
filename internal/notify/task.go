package notify

import (
	"context"
	"sync"
	"sync/atomic"
)

// Report summarises a finished dispatch.
type Report struct {
	Recipients int
	Attempted  int
	Delivered  int
	Failed     int
}

// Task tracks one Dispatch call.
type Task struct {
	done   chan struct{}
	once   sync.Once
	cancel context.CancelFunc

	report    Report
	attempted int64
	delivered int64
	failed    int64
}

func newTask(cancel context.CancelFunc) *Task {
	return &Task{done: make(chan struct{}), cancel: cancel}
}

// CompletedTask returns a task that is already done. Callers use it when
// there is nothing to send.
func CompletedTask() *Task {
	t := newTask(func() {})
	t.finish()
	return t
}

func (t *Task) finish() {
	t.once.Do(func() {
		t.report.Attempted = int(atomic.LoadInt64(&t.attempted))
		t.report.Delivered = int(atomic.LoadInt64(&t.delivered))
		t.report.Failed = int(atomic.LoadInt64(&t.failed))
		t.cancel()
		close(t.done)
	})
}

func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Cancel aborts deliveries that have not completed yet.
func (t *Task) Cancel() {
	t.cancel()
}

// Wait blocks until the task finishes or ctx ends.
func (t *Task) Wait(ctx context.Context) (Report, error) {
	select {
	case <-t.done:
		return t.report, nil
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
}
