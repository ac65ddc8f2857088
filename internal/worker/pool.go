package worker

import (
	"fmt"
	"log/slog"

	"github.com/panjf2000/ants/v2"
)

// Pool is a bounded pool of goroutines used to move CPU heavy work, such as compressing large
// packets, off the goroutine serving a connection.
type Pool struct {
	pool   *ants.Pool
	logger *slog.Logger
}

// NewPool creates a Pool running at most size tasks at once.
func NewPool(size int, logger *slog.Logger) (*Pool, error) {
	p := &Pool{logger: logger}
	pool, err := ants.NewPool(size, ants.WithPanicHandler(func(a any) {
		p.logger.Error("worker panicked", "panic", a)
	}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	p.pool = pool
	return p, nil
}

// Do runs fn on the pool and waits for it to return. If fn panics, Do returns an error instead.
func (p *Pool) Do(fn func() error) error {
	done := make(chan error, 1)
	err := p.pool.Submit(func() {
		completed := false
		defer func() {
			if !completed {
				done <- fmt.Errorf("worker task panicked")
			}
		}()
		err := fn()
		completed = true
		done <- err
	})
	if err != nil {
		return fmt.Errorf("submit worker task: %w", err)
	}
	return <-done
}

// Running returns the amount of tasks currently running.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Release stops the pool. Tasks submitted afterwards fail.
func (p *Pool) Release() {
	p.pool.Release()
}
