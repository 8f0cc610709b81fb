package worker

import (
	"context"
	"sync"

	"github.com/laonet/laocoord/lib/errors"
)

type Pool struct {
	finish chan struct{}
	work   chan<- func()
	wg     sync.WaitGroup
	once   sync.Once
}

var ErrFinished = errors.PoolFinished

func NewPool(n int) *Pool {
	if n < 1 {
		n = 1
	}

	work := make(chan func())
	finish := make(chan struct{})
	p := &Pool{
		work:   work,
		finish: finish,
	}

	for ; n > 0; n-- {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			for {
				select {
				case f := <-work:
					f()
				case <-p.finish:
					return
				}
			}
		}()
	}
	return p
}

// Add blocks until a worker takes f, the pool is finished or ctx is done.
func (p *Pool) Add(ctx context.Context, f func()) error {
	select {
	case <-p.finish:
		return ErrFinished
	default:
	}

	select {
	case <-p.finish:
		return ErrFinished
	case p.work <- f:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) TryAdd(f func()) bool {
	select {
	case <-p.finish:
		return false
	default:
	}

	select {
	case p.work <- f:
		return true
	default:
		return false
	}
}

// Finish stops the workers after their current task.
func (p *Pool) Finish() {
	p.once.Do(func() {
		close(p.finish)
	})
	p.wg.Wait()
}
