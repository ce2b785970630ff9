// shared/sched/scheduler.go
package sched

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"
)

// Scheduler separates the single primary context that owns gameplay state
// from the worker pool that performs blocking I/O.
type Scheduler interface {
	// RunOnPrimary queues fn on the primary context.
	RunOnPrimary(fn func())
	// RunOnWorker queues fn on the worker pool.
	RunOnWorker(fn func())
	// RunOnWorkerThenPrimary runs work on a worker, then queues then on the primary context.
	RunOnWorkerThenPrimary(work func(), then func())
	// RunPeriodically queues fn on the primary context every interval until the returned stop func is called.
	RunPeriodically(interval time.Duration, fn func()) (stop func())
}

// ErrStopped is returned by Await when the loop stops before the task ran.
var ErrStopped = errors.New("scheduler stopped")

// Loop is the production Scheduler: one primary goroutine draining a task
// queue plus a fixed pool of worker goroutines.
type Loop struct {
	primary chan func()
	work    chan func()
	workers int

	stopCh   chan struct{}
	doneCh   chan struct{}
	workerWG sync.WaitGroup
	tickWG   sync.WaitGroup
	once     sync.Once
}

// NewLoop creates a Loop with the given worker count and queue depth.
func NewLoop(workers, queueSize int) *Loop {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Loop{
		primary: make(chan func(), queueSize),
		work:    make(chan func(), queueSize),
		workers: workers,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// Start launches the primary goroutine and the worker pool.
func (l *Loop) Start() {
	log.Printf("INFO: Scheduler starting with %d workers.", l.workers)
	for i := 0; i < l.workers; i++ {
		l.workerWG.Add(1)
		go l.runWorker()
	}
	go l.runPrimary()
}

// Done is closed once the primary goroutine has drained and exited.
func (l *Loop) Done() <-chan struct{} { return l.doneCh }

// Stop halts periodic tasks, lets workers finish what they hold and waits for
// the primary goroutine to drain its queue.
func (l *Loop) Stop() {
	l.once.Do(func() {
		close(l.stopCh)
		l.tickWG.Wait()
		l.workerWG.Wait()
		<-l.doneCh
		log.Println("INFO: Scheduler stopped.")
	})
}

func (l *Loop) runPrimary() {
	defer close(l.doneCh)
	for {
		select {
		case fn := <-l.primary:
			l.safeRun(fn)
		case <-l.stopCh:
			// Wait for workers so continuations they enqueue are not lost.
			l.workerWG.Wait()
			for {
				select {
				case fn := <-l.primary:
					l.safeRun(fn)
				default:
					return
				}
			}
		}
	}
}

func (l *Loop) runWorker() {
	defer l.workerWG.Done()
	for {
		select {
		case fn := <-l.work:
			l.safeRun(fn)
		case <-l.stopCh:
			for {
				select {
				case fn := <-l.work:
					l.safeRun(fn)
				default:
					return
				}
			}
		}
	}
}

func (l *Loop) safeRun(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: Scheduler: task panicked: %v", r)
		}
	}()
	fn()
}

// RunOnPrimary implements Scheduler.
func (l *Loop) RunOnPrimary(fn func()) {
	select {
	case l.primary <- fn:
	case <-l.doneCh:
		log.Println("WARNING: Scheduler: primary task dropped after shutdown.")
	}
}

// RunOnWorker implements Scheduler.
func (l *Loop) RunOnWorker(fn func()) {
	select {
	case <-l.stopCh:
		log.Println("WARNING: Scheduler: worker task dropped after shutdown.")
		return
	default:
	}
	select {
	case l.work <- fn:
	case <-l.stopCh:
		log.Println("WARNING: Scheduler: worker task dropped after shutdown.")
	}
}

// RunOnWorkerThenPrimary implements Scheduler.
func (l *Loop) RunOnWorkerThenPrimary(work func(), then func()) {
	l.RunOnWorker(func() {
		work()
		l.RunOnPrimary(then)
	})
}

// RunPeriodically implements Scheduler. Ticks are skipped, not queued, when
// the previous invocation has not yet run on the primary context.
func (l *Loop) RunPeriodically(interval time.Duration, fn func()) func() {
	stop := make(chan struct{})
	var stopOnce sync.Once
	l.tickWG.Add(1)
	go func() {
		defer l.tickWG.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		busy := make(chan struct{}, 1)
		for {
			select {
			case <-ticker.C:
				select {
				case busy <- struct{}{}:
					l.RunOnPrimary(func() {
						defer func() { <-busy }()
						fn()
					})
				default:
				}
			case <-stop:
				return
			case <-l.stopCh:
				return
			}
		}
	}()
	return func() { stopOnce.Do(func() { close(stop) }) }
}

// Await runs fn on the primary context of s and blocks until it has run or
// ctx is done. It is how request goroutines touch primary-owned state.
func Await(ctx context.Context, s Scheduler, fn func()) error {
	done := make(chan struct{})
	s.RunOnPrimary(func() {
		defer close(done)
		fn()
	})
	var stopped <-chan struct{}
	if d, ok := s.(interface{ Done() <-chan struct{} }); ok {
		stopped = d.Done()
	}
	select {
	case <-done:
		return nil
	case <-stopped:
		select {
		case <-done:
			return nil
		default:
			return ErrStopped
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}
