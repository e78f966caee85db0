package framework

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/golang/glog"
)

// DefaultMaxLagPeriods is the catch-up bound in periods used when
// Loop.MaxLag is not set.
const DefaultMaxLagPeriods = 4

// Loop runs controllers periodically on absolute deadlines.
// Within one iteration, controllers run by priority level, lowest level
// first. Iterations never overlap.
type Loop struct {
	Name   string
	Period time.Duration
	// MaxLag bounds catch-up after a stall, see Schedule.MaxLag.
	// Zero means DefaultMaxLagPeriods periods; negative means unbounded.
	MaxLag time.Duration
	Clock  Clock
	// Priority is the real-time priority requested for the OS thread
	// running the loop, 0 leaves the thread untouched.
	Priority int

	controllers [PriorityLevels][]Controller
	runners     []Runnable

	iterations  uint64
	overruns    uint64
	skipped     uint64
	maxLateness int64
}

// LoopAdder provides specific logic to add components to loop.
type LoopAdder interface {
	AddToLoop(*Loop)
}

// LoopStats reports the timing behavior of a loop.
type LoopStats struct {
	Iterations uint64
	// Overruns counts iterations which finished after the next deadline.
	Overruns uint64
	// Skipped counts deadlines dropped by bounded catch-up.
	Skipped uint64
	// MaxLateness is the largest delay between a deadline and the actual wake.
	MaxLateness time.Duration
}

type loopIteration struct {
	ctx           context.Context
	now           time.Duration
	deadline      time.Duration
	seq           uint64
	priorityLevel int
}

// NewLoop creates a Loop.
func NewLoop(name string, period time.Duration) *Loop {
	return &Loop{Name: name, Period: period}
}

// Add adds LoopAdders.
func (l *Loop) Add(adders ...LoopAdder) *Loop {
	for _, adder := range adders {
		adder.AddToLoop(l)
	}
	return l
}

// AddController registers controllers to the loop.
// Controllers implementing Runnable are also started with the loop.
// It must not be called once the loop is running.
func (l *Loop) AddController(priorityLevel int, ctls ...Controller) *Loop {
	l.controllers[priorityLevel] = append(l.controllers[priorityLevel], ctls...)
	for _, ctl := range ctls {
		if runner, ok := ctl.(Runnable); ok {
			l.runners = append(l.runners, runner)
		}
	}
	return l
}

// AddRunnable adds Runnable implementions started along with the loop.
func (l *Loop) AddRunnable(runnables ...Runnable) *Loop {
	l.runners = append(l.runners, runnables...)
	return l
}

// Stats returns a snapshot of the timing counters.
func (l *Loop) Stats() LoopStats {
	return LoopStats{
		Iterations:  atomic.LoadUint64(&l.iterations),
		Overruns:    atomic.LoadUint64(&l.overruns),
		Skipped:     atomic.LoadUint64(&l.skipped),
		MaxLateness: time.Duration(atomic.LoadInt64(&l.maxLateness)),
	}
}

// Run implements Runnable.
func (l *Loop) Run(ctx context.Context) error {
	runner := NewRunnerWith(ctx)
	runner.Go(l.runners...)
	defer runner.Wait()

	if l.Priority > 0 {
		// never unlocked: the thread exits with the goroutine instead of
		// returning to the pool with a raised priority.
		runtime.LockOSThread()
		if err := SetThreadPriority(l.Priority); err != nil {
			glog.Warningf("loop %s: priority %d not applied: %v", l.Name, l.Priority, err)
		}
	}

	clock := l.Clock
	if clock == nil {
		clock = NewSystemClock()
	}
	period := l.Period
	if period <= 0 {
		period = 100 * time.Millisecond
	}
	maxLag := l.MaxLag
	if maxLag == 0 {
		maxLag = DefaultMaxLagPeriods * period
	} else if maxLag < 0 {
		maxLag = 0
	}

	glog.V(1).Infof("loop %s: period %v, max lag %v", l.Name, period, maxLag)
	sched := NewSchedule(clock.Now(), period, maxLag)
	iter := &loopIteration{ctx: ctx}
	for {
		deadline := sched.Deadline()
		if err := clock.SleepUntil(ctx, deadline); err != nil {
			return err
		}
		iter.now, iter.deadline = clock.Now(), deadline
		l.runIteration(iter)
		iter.seq++

		finished := clock.Now()
		_, skipped := sched.Advance(finished)
		l.record(iter, finished, period, skipped)
	}
}

// RunOrFail is intended to be used in main to simply run the loop.
func (l *Loop) RunOrFail(ctx context.Context) {
	if err := l.Run(ctx); err != nil && err != context.Canceled {
		glog.Fatalf("loop %s: %v", l.Name, err)
	}
}

func (l *Loop) runIteration(iter *loopIteration) {
	for i := 0; i < PriorityLevels; i++ {
		iter.priorityLevel = i
		for _, ctl := range l.controllers[i] {
			if err := ctl.Control(iter); err != nil {
				glog.Errorf("loop %s: controller error: %v", l.Name, err)
			}
		}
	}
}

func (l *Loop) record(iter *loopIteration, finished, period time.Duration, skipped uint64) {
	atomic.AddUint64(&l.iterations, 1)
	if finished > iter.deadline+period {
		atomic.AddUint64(&l.overruns, 1)
	}
	if skipped > 0 {
		atomic.AddUint64(&l.skipped, skipped)
		glog.V(2).Infof("loop %s: dropped %d deadlines", l.Name, skipped)
	}
	lateness := int64(iter.now - iter.deadline)
	for {
		max := atomic.LoadInt64(&l.maxLateness)
		if lateness <= max || atomic.CompareAndSwapInt64(&l.maxLateness, max, lateness) {
			break
		}
	}
}

func (t *loopIteration) Context() context.Context {
	return t.ctx
}

func (t *loopIteration) Now() time.Duration {
	return t.now
}

func (t *loopIteration) Deadline() time.Duration {
	return t.deadline
}

func (t *loopIteration) Iteration() uint64 {
	return t.seq
}

func (t *loopIteration) PriorityLevel() int {
	return t.priorityLevel
}
