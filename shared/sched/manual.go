package sched

import "time"

// Manual is a deterministic Scheduler that only runs tasks when told to.
// Worker tasks and primary tasks run on the caller's goroutine, which makes
// interleavings reproducible in tests.
type Manual struct {
	primary  []func()
	work     []func()
	periodic []*periodicTask
}

type periodicTask struct {
	interval time.Duration
	fn       func()
	stopped  bool
}

// NewManual returns an empty Manual scheduler.
func NewManual() *Manual {
	return &Manual{}
}

func (m *Manual) RunOnPrimary(fn func()) { m.primary = append(m.primary, fn) }

func (m *Manual) RunOnWorker(fn func()) { m.work = append(m.work, fn) }

func (m *Manual) RunOnWorkerThenPrimary(work func(), then func()) {
	m.RunOnWorker(func() {
		work()
		m.RunOnPrimary(then)
	})
}

func (m *Manual) RunPeriodically(interval time.Duration, fn func()) func() {
	t := &periodicTask{interval: interval, fn: fn}
	m.periodic = append(m.periodic, t)
	return func() { t.stopped = true }
}

// Pending reports how many worker and primary tasks are queued.
func (m *Manual) Pending() (workers, primary int) {
	return len(m.work), len(m.primary)
}

// RunWorkers runs every queued worker task, including ones queued meanwhile.
func (m *Manual) RunWorkers() int {
	n := 0
	for len(m.work) > 0 {
		fn := m.work[0]
		m.work = m.work[1:]
		fn()
		n++
	}
	return n
}

// RunPrimary runs every queued primary task, including ones queued meanwhile.
func (m *Manual) RunPrimary() int {
	n := 0
	for len(m.primary) > 0 {
		fn := m.primary[0]
		m.primary = m.primary[1:]
		fn()
		n++
	}
	return n
}

// Drain alternates workers and primary until both queues are empty.
func (m *Manual) Drain() {
	for len(m.work) > 0 || len(m.primary) > 0 {
		m.RunWorkers()
		m.RunPrimary()
	}
}

// Tick runs once every periodic task registered with the given interval.
func (m *Manual) Tick(interval time.Duration) int {
	n := 0
	for _, t := range m.periodic {
		if t.stopped || t.interval != interval {
			continue
		}
		t.fn()
		n++
	}
	return n
}
