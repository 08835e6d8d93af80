package player

import (
	"context"
	"sync"

	tea "charm.land/bubbletea/v2"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/navigator"
)

// eventMsg delivers a controller event to the screen.
type eventMsg struct {
	Event navigator.Event
}

// creditedMsg is sent once the completion has been credited.
type creditedMsg struct{}

// Feed carries controller callbacks into the Bubble Tea loop. The
// controller calls Listen from timer goroutines; the program drains the
// feed one message at a time, in the order they were posted.
type Feed struct {
	mu     sync.Mutex
	queue  []tea.Msg
	closed bool
	ready  chan struct{} // signalled when queue becomes non-empty
	done   chan struct{}
}

func NewFeed() *Feed {
	return &Feed{
		ready: make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// Listen is a navigator.Listener and never blocks. A tick replaces a tick
// still waiting at the back of the queue, since it carries the same state.
func (f *Feed) Listen(ev navigator.Event) {
	msg := eventMsg{Event: ev}
	f.mu.Lock()
	if ev.Kind == navigator.EventTick && len(f.queue) > 0 {
		if last, ok := f.queue[len(f.queue)-1].(eventMsg); ok && last.Event.Kind == navigator.EventTick {
			f.queue[len(f.queue)-1] = msg
			f.mu.Unlock()
			return
		}
	}
	f.mu.Unlock()
	f.post(msg)
}

func (f *Feed) post(msg tea.Msg) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.queue = append(f.queue, msg)
	select {
	case f.ready <- struct{}{}:
	default:
	}
}

// next pops the oldest message without blocking.
func (f *Feed) next() (tea.Msg, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil, false
	}
	msg := f.queue[0]
	f.queue[0] = nil
	f.queue = f.queue[1:]
	return msg, true
}

// wait returns a command that blocks for the next message. It returns nil
// once the feed is closed.
func (f *Feed) wait() tea.Cmd {
	return func() tea.Msg {
		for {
			if msg, ok := f.next(); ok {
				return msg
			}
			select {
			case <-f.ready:
			case <-f.done:
				return nil
			}
		}
	}
}

// Close drops queued messages and releases a pending wait.
func (f *Feed) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.queue = nil
	close(f.done)
}

// Completer wraps next so the screen learns when crediting has finished.
// A nil next yields a Completer that only signals.
func (f *Feed) Completer(next navigator.Completer) navigator.Completer {
	return feedCompleter{next: next, feed: f}
}

type feedCompleter struct {
	next navigator.Completer
	feed *Feed
}

func (c feedCompleter) CompleteCourse(ctx context.Context, userID, courseID string, score int) error {
	var err error
	if c.next != nil {
		err = c.next.CompleteCourse(ctx, userID, courseID, score)
	}
	c.feed.post(creditedMsg{})
	return err
}
