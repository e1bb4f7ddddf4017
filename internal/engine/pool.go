// Package engine runs the registered scorers for a query and document on a
// bounded worker pool and assembles their results into a feature vector.
package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// DefaultWorkers is the pool size used when none is configured.
const DefaultWorkers = 10

// Result is the outcome of one pool task.
type Result struct {
	Value float64
	Err   error
}

// Task is a unit of scoring work.
type Task func(ctx context.Context) (float64, error)

// Pool bounds how many tasks run at once. Excess tasks queue on the pool
// until a slot frees up or their context is done; they are never rejected.
type Pool struct {
	sem  *semaphore.Weighted
	size int
}

// NewPool creates a pool with size slots. A size below one falls back to
// DefaultWorkers.
func NewPool(size int) *Pool {
	if size < 1 {
		size = DefaultWorkers
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: size}
}

// Size returns the number of slots.
func (p *Pool) Size() int {
	return p.size
}

// Submit schedules task and returns a channel that receives exactly one
// Result. The caller may stop waiting at any time; a task that ignores its
// context keeps its slot until it returns. Tasks are not guaranteed to
// acquire a slot in submission order.
func (p *Pool) Submit(ctx context.Context, task Task) <-chan Result {
	ch := make(chan Result, 1)
	go func() {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			ch <- Result{Err: err}
			return
		}
		defer p.sem.Release(1)
		ch <- run(ctx, task)
	}()
	return ch
}

func run(ctx context.Context, task Task) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = Result{Err: fmt.Errorf("panic: %v", r)}
		}
	}()
	v, err := task(ctx)
	return Result{Value: v, Err: err}
}
