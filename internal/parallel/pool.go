// Package parallel runs independent CPU work, such as per-face mip
// downsampling, on a bounded number of goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Pool bounds the goroutines started by ExecuteAll and Map.
//
// Thread safety: Pool is safe for concurrent use. Concurrent calls share
// the bound.
type Pool struct {
	workers int
	slots   chan struct{}
}

// NewPool creates a pool running at most workers items at once. If workers
// is 0 or negative, GOMAXPROCS is used.
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Pool{workers: workers, slots: make(chan struct{}, workers)}
}

// Workers returns the concurrency bound.
func (p *Pool) Workers() int { return p.workers }

// ExecuteAll runs every work item and waits for all of them. A single item
// runs on the calling goroutine.
func (p *Pool) ExecuteAll(work []func()) {
	switch len(work) {
	case 0:
		return
	case 1:
		work[0]()
		return
	}
	var wg sync.WaitGroup
	wg.Add(len(work))
	for _, fn := range work {
		p.slots <- struct{}{}
		go func() {
			defer func() {
				<-p.slots
				wg.Done()
			}()
			fn()
		}()
	}
	wg.Wait()
}

// Map calls fn for every index in [0, n) on p and returns the results in
// index order.
func Map[T any](p *Pool, n int, fn func(i int) T) []T {
	out := make([]T, n)
	work := make([]func(), n)
	for i := range n {
		work[i] = func() { out[i] = fn(i) }
	}
	p.ExecuteAll(work)
	return out
}
