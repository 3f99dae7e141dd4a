package vcursor

import (
	"context"
	"sync"
	"time"
)

// Executor runs posted work on the goroutine that owns the cursor state.
type Executor interface {
	Post(f func())
}

// Scheduler provides the clock and the settle/debounce timers. Timers are
// not cancelable; callbacks must tolerate having been superseded.
type Scheduler interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func())
}

// Loop is a cooperative single-goroutine event loop. Everything posted to it
// runs sequentially on the goroutine calling Run, which is what lets the
// cursor state go without locks.
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
}

func NewLoop() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post queues f. It never blocks, so it may be called from the loop itself.
// Work posted after the loop stopped is dropped.
func (l *Loop) Post(f func()) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.queue = append(l.queue, f)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Do posts f and waits for it to finish. It must not be called from the
// loop goroutine.
func (l *Loop) Do(ctx context.Context, f func()) error {
	done := make(chan struct{})
	l.Post(func() {
		defer close(done)
		f()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run processes posted work until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		for {
			l.mu.Lock()
			if len(l.queue) == 0 {
				l.mu.Unlock()
				break
			}
			f := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()
			f()
		}
		select {
		case <-l.wake:
		case <-ctx.Done():
			l.mu.Lock()
			l.closed = true
			l.queue = nil
			l.mu.Unlock()
			return ctx.Err()
		}
	}
}

// LoopScheduler fires timers on the wall clock and runs their callbacks on
// a Loop.
type LoopScheduler struct {
	Loop *Loop
}

func (s LoopScheduler) Now() time.Time {
	return time.Now()
}

func (s LoopScheduler) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, func() { s.Loop.Post(f) })
}

// inlineExecutor runs work immediately on the caller's goroutine.
type inlineExecutor struct{}

func (inlineExecutor) Post(f func()) { f() }
