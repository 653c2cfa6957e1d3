package assets

import (
	"context"
	"math"
	"sync/atomic"
)

// Task is one in-flight asset load.
type Task struct {
	url      string
	cancel   context.CancelFunc
	done     chan struct{}
	progress atomic.Uint64
	result   Result
}

// URL returns the requested resource.
func (t *Task) URL() string { return t.url }

// Done is closed when the task has a result.
func (t *Task) Done() <-chan struct{} { return t.done }

// Cancel aborts the load. The result error becomes ErrCancelled unless the
// task already finished.
func (t *Task) Cancel() { t.cancel() }

// Progress returns the fraction loaded in [0,1]. It stays at 0 while the
// length is unknown and jumps to 1 on success.
func (t *Task) Progress() float64 {
	return math.Float64frombits(t.progress.Load())
}

func (t *Task) setProgress(p float64) {
	t.progress.Store(math.Float64bits(p))
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) (Result, error) {
	select {
	case <-t.done:
		return t.result, t.result.Err
	case <-ctx.Done():
		return Result{URL: t.url}, ctx.Err()
	}
}

// Result returns the outcome and true once the task is done.
func (t *Task) Result() (Result, bool) {
	select {
	case <-t.done:
		return t.result, true
	default:
		return Result{}, false
	}
}

func (t *Task) finish(r Result) {
	t.result = r
	close(t.done)
}
