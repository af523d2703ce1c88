package worker

import (
	"context"
	"sync"
	"sync/atomic"
)

// Pool runs jobs with at most size of them in flight.
type Pool struct {
	sem chan struct{}
}

func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: make(chan struct{}, size)}
}

func (p *Pool) Size() int { return cap(p.sem) }

// Run calls job for every index in [0, n) and waits for all started jobs.
// Jobs not yet started when ctx is done are skipped. It returns how many
// jobs reported success.
func (p *Pool) Run(ctx context.Context, n int, job func(ctx context.Context, i int) bool) int {
	var (
		wg sync.WaitGroup
		ok atomic.Int64
	)
	for i := 0; i < n && ctx.Err() == nil; i++ {
		select {
		case <-ctx.Done():
			wg.Wait()
			return int(ok.Load())
		case p.sem <- struct{}{}:
		}
		wg.Add(1)
		go func(i int) {
			defer func() { <-p.sem; wg.Done() }()
			if job(ctx, i) {
				ok.Add(1)
			}
		}(i)
	}
	wg.Wait()
	return int(ok.Load())
}
