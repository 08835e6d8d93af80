package player

import (
	"testing"
	"time"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/navigator"
)

func positionEvent(block int) navigator.Event {
	return navigator.Event{Kind: navigator.EventPosition, Position: content.Position{Block: block}}
}

func TestFeedKeepsOrderWhenBacklogged(t *testing.T) {
	f := NewFeed()
	for i := 0; i < 500; i++ {
		f.Listen(positionEvent(i))
	}
	f.post(creditedMsg{})

	for i := 0; i < 500; i++ {
		msg, ok := f.next()
		if !ok {
			t.Fatalf("feed ran dry at %d", i)
		}
		ev := msg.(eventMsg).Event
		if ev.Position.Block != i {
			t.Fatalf("message %d is block %d", i, ev.Position.Block)
		}
	}
	if msg, _ := f.next(); msg != (creditedMsg{}) {
		t.Fatalf("last message = %#v, want creditedMsg", msg)
	}
}

func TestFeedCoalescesWaitingTicks(t *testing.T) {
	f := NewFeed()
	f.Listen(positionEvent(0))
	for r := 10; r > 0; r-- {
		f.Listen(navigator.Event{Kind: navigator.EventTick, Remaining: r})
	}

	f.next()
	msg, ok := f.next()
	if !ok {
		t.Fatal("expected a tick")
	}
	if got := msg.(eventMsg).Event.Remaining; got != 1 {
		t.Errorf("remaining = %d, want the latest tick", got)
	}
	if _, ok := f.next(); ok {
		t.Error("older ticks should have been replaced")
	}
}

func TestFeedWaitDeliversLaterMessage(t *testing.T) {
	f := NewFeed()
	got := make(chan any, 1)
	go func() { got <- f.wait()() }()

	time.Sleep(10 * time.Millisecond)
	f.Listen(positionEvent(3))

	select {
	case msg := <-got:
		if msg.(eventMsg).Event.Position.Block != 3 {
			t.Errorf("got %#v", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("wait did not return")
	}
}

func TestFeedCloseReleasesWait(t *testing.T) {
	f := NewFeed()
	got := make(chan any, 1)
	go func() { got <- f.wait()() }()

	time.Sleep(10 * time.Millisecond)
	f.Close()

	select {
	case msg := <-got:
		if msg != nil {
			t.Errorf("wait after close = %#v, want nil", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("wait still blocked after Close")
	}

	f.post(creditedMsg{})
	if _, ok := f.next(); ok {
		t.Error("closed feed accepted a message")
	}
}
