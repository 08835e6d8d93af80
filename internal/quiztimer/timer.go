// Package quiztimer runs the per-block countdown of timed quizzes. At most
// one lease is live per Timer; arming a new one ends the previous lease.
package quiztimer

import (
	"sync"
	"time"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
)

// DefaultTick is the countdown resolution.
const DefaultTick = time.Second

// TickFunc receives the seconds remaining after each tick.
type TickFunc func(lease *Lease, remaining int)

// ExpireFunc is called once when a lease reaches zero.
type ExpireFunc func(lease *Lease)

// Timer owns the single live countdown of one session.
type Timer struct {
	tick time.Duration

	mu      sync.Mutex
	current *Lease
}

func New(tick time.Duration) *Timer {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &Timer{tick: tick}
}

// Lease is one armed countdown. Cancel stops it; a callback that was
// already under way may still finish, so owners compare the lease they get
// back against their current one.
type Lease struct {
	BlockID content.ID
	Limit   int

	mu        sync.Mutex
	remaining int
	done      bool
	stop      chan struct{}
	ticker    *time.Ticker
}

// ShouldArm reports whether block carries a countdown: a quiz with a
// positive time limit.
func ShouldArm(block *content.Block) (int, bool) {
	if block == nil || block.Type != content.BlockQuiz {
		return 0, false
	}
	q, err := block.Quiz()
	if err != nil || q == nil || q.TimeLimit <= 0 {
		return 0, false
	}
	return q.TimeLimit, true
}

// Arm cancels any live lease and starts counting limit seconds down for
// blockID. onTick and onExpire may be nil.
func (t *Timer) Arm(blockID content.ID, limit int, onTick TickFunc, onExpire ExpireFunc) *Lease {
	l := &Lease{
		BlockID:   blockID,
		Limit:     limit,
		remaining: limit,
		stop:      make(chan struct{}),
		ticker:    time.NewTicker(t.tick),
	}

	t.mu.Lock()
	prev := t.current
	t.current = l
	t.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}

	go l.run(onTick, onExpire)
	return l
}

// Cancel ends the live lease, if any.
func (t *Timer) Cancel() {
	t.mu.Lock()
	prev := t.current
	t.current = nil
	t.mu.Unlock()
	if prev != nil {
		prev.Cancel()
	}
}

// Current returns the live lease, or nil.
func (t *Timer) Current() *Lease {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current != nil && t.current.Done() {
		return nil
	}
	return t.current
}

// Remaining returns the seconds left on the lease.
func (l *Lease) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.remaining
}

// Done reports whether the lease was cancelled or expired.
func (l *Lease) Done() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}

// Cancel is idempotent.
func (l *Lease) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done {
		return
	}
	l.done = true
	l.ticker.Stop()
	close(l.stop)
}

func (l *Lease) run(onTick TickFunc, onExpire ExpireFunc) {
	for {
		select {
		case <-l.stop:
			return
		case <-l.ticker.C:
		}

		l.mu.Lock()
		if l.done {
			l.mu.Unlock()
			return
		}
		l.remaining--
		remaining := l.remaining
		expired := remaining <= 0
		if expired {
			l.done = true
			l.ticker.Stop()
			close(l.stop)
		}
		l.mu.Unlock()

		if onTick != nil {
			onTick(l, remaining)
		}
		if expired {
			if onExpire != nil {
				onExpire(l)
			}
			return
		}
	}
}
