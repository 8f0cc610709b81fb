package worker

import (
	"context"
	"sync"
)

// SerialQueue runs the tasks of the same key one at a time, in the order
// they were added, on a shared Pool. Tasks of different keys run in
// parallel.
type SerialQueue struct {
	sync.Mutex

	pool    *Pool
	queues  map[string][]func()
	running map[string]bool
	pending int
	idle    *sync.Cond
}

func NewSerialQueue(pool *Pool) *SerialQueue {
	q := &SerialQueue{
		pool:    pool,
		queues:  map[string][]func(){},
		running: map[string]bool{},
	}
	q.idle = sync.NewCond(&q.Mutex)

	return q
}

// Add queues f after the tasks of key. When Add returns an error, f will
// not run; the tasks other callers queued meanwhile still do.
func (q *SerialQueue) Add(ctx context.Context, key string, f func()) error {
	q.Lock()
	q.pending++
	q.queues[key] = append(q.queues[key], f)
	if q.running[key] {
		q.Unlock()
		return nil
	}
	q.running[key] = true
	q.Unlock()

	if err := q.pool.Add(ctx, func() { q.drain(key) }); err != nil {
		// nothing was running, so f is the first task of key
		q.Lock()
		q.queues[key] = q.queues[key][1:]
		q.done(1)
		rest := len(q.queues[key])
		if rest < 1 {
			delete(q.queues, key)
			delete(q.running, key)
		}
		q.Unlock()

		if rest > 0 {
			go q.schedule(key)
		}
		return err
	}

	return nil
}

// schedule drains key on the pool; if the pool is finished, the tasks of key
// are dropped.
func (q *SerialQueue) schedule(key string) {
	if err := q.pool.Add(context.Background(), func() { q.drain(key) }); err == nil {
		return
	}

	q.Lock()
	defer q.Unlock()

	q.done(len(q.queues[key]))
	delete(q.queues, key)
	delete(q.running, key)
}

// done must be called with the lock held.
func (q *SerialQueue) done(n int) {
	q.pending -= n
	if q.pending < 1 {
		q.pending = 0
		q.idle.Broadcast()
	}
}

func (q *SerialQueue) drain(key string) {
	for {
		q.Lock()
		tasks := q.queues[key]
		if len(tasks) < 1 {
			delete(q.queues, key)
			delete(q.running, key)
			q.Unlock()
			return
		}
		f := tasks[0]
		q.queues[key] = tasks[1:]
		q.Unlock()

		f()

		q.Lock()
		q.done(1)
		q.Unlock()
	}
}

// Wait blocks until every added task ran.
func (q *SerialQueue) Wait() {
	q.Lock()
	defer q.Unlock()

	for q.pending > 0 {
		q.idle.Wait()
	}
}
