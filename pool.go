package quarry

import (
	"sync"
	"sync/atomic"
)

// poolTask pairs a unit of work with the barrier of the Do call that
// submitted it.
type poolTask struct {
	fn   func()
	done *sync.WaitGroup
}

// Pool is a fixed set of persistent workers fed from one task channel.
// Submission and shutdown belong to a single owning goroutine; workers only
// execute.
type Pool struct {
	size   int
	tasks  chan poolTask
	wg     sync.WaitGroup
	closed atomic.Bool
	log    *Logger
}

func newPool(size int, log *Logger) (*Pool, error) {
	if size < 1 {
		return nil, PoolSizeError{Size: size}
	}
	p := &Pool{
		size:  size,
		tasks: make(chan poolTask, size*2),
		log:   log,
	}
	p.wg.Add(size)
	for i := 0; i < size; i++ {
		go p.worker()
	}
	log.Info("worker pool started with %d workers", size)
	return p, nil
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for t := range p.tasks {
		t.fn()
		t.done.Done()
	}
}

// Do runs every task on the pool and returns once all of them have
// finished. It must not be called from inside a task: a worker waiting on
// its own barrier deadlocks. After Close the tasks run inline on the caller.
func (p *Pool) Do(tasks ...func()) {
	if len(tasks) == 0 {
		return
	}
	if p.closed.Load() {
		for _, fn := range tasks {
			fn()
		}
		return
	}
	var done sync.WaitGroup
	done.Add(len(tasks))
	for _, fn := range tasks {
		p.tasks <- poolTask{fn: fn, done: &done}
	}
	done.Wait()
}

// Size reports the worker count.
func (p *Pool) Size() int { return p.size }

// Close stops the workers once the queue drains and waits for them to exit.
// Closing twice is a no-op; Do calls after Close run inline.
func (p *Pool) Close() {
	if !p.closed.CompareAndSwap(false, true) {
		return
	}
	close(p.tasks)
	p.wg.Wait()
}
