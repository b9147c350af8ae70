package pipeline

import (
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// Pool runs tasks on a bounded number of goroutines without ever
// blocking the caller.
type Pool struct {
	g       errgroup.Group
	waiting atomic.Int64
}

// NewPool creates a pool running at most workers tasks at once.
func NewPool(workers int) *Pool {
	p := &Pool{}
	p.g.SetLimit(max(workers, 1))
	return p
}

// TryGo starts fn if a worker is free and reports whether it did.
func (p *Pool) TryGo(fn func()) bool {
	p.waiting.Add(1)
	ok := p.g.TryGo(func() error {
		defer p.waiting.Add(-1)
		fn()
		return nil
	})
	if !ok {
		p.waiting.Add(-1)
	}
	return ok
}

// Waiting returns the number of dispatched tasks that have not finished.
func (p *Pool) Waiting() int { return int(p.waiting.Load()) }

// Wait blocks until every started task returns.
func (p *Pool) Wait() {
	_ = p.g.Wait()
}
