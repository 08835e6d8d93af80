package quiztimer

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
)

func TestCountdownExpiresOnce(t *testing.T) {
	timer := New(5 * time.Millisecond)

	var mu sync.Mutex
	var ticks []int
	expired := make(chan *Lease, 2)

	lease := timer.Arm("q1", 5,
		func(_ *Lease, remaining int) {
			mu.Lock()
			ticks = append(ticks, remaining)
			mu.Unlock()
		},
		func(l *Lease) { expired <- l })

	select {
	case got := <-expired:
		if got != lease {
			t.Fatal("expiry reported a different lease")
		}
	case <-time.After(time.Second):
		t.Fatal("lease never expired")
	}

	time.Sleep(30 * time.Millisecond)
	if len(expired) != 0 {
		t.Fatal("expiry fired more than once")
	}

	mu.Lock()
	defer mu.Unlock()
	want := []int{4, 3, 2, 1, 0}
	if len(ticks) != len(want) {
		t.Fatalf("ticks = %v, want %v", ticks, want)
	}
	for i := range want {
		if ticks[i] != want[i] {
			t.Fatalf("ticks = %v, want %v", ticks, want)
		}
	}
	if !lease.Done() || lease.Remaining() != 0 {
		t.Errorf("lease state after expiry: done=%v remaining=%d", lease.Done(), lease.Remaining())
	}
	if timer.Current() != nil {
		t.Error("expired lease is still current")
	}
}

func TestCancelStopsCallbacks(t *testing.T) {
	timer := New(5 * time.Millisecond)
	var expiries atomic.Int32

	lease := timer.Arm("q1", 3, nil, func(*Lease) { expiries.Add(1) })
	lease.Cancel()
	lease.Cancel()

	time.Sleep(40 * time.Millisecond)
	if n := expiries.Load(); n != 0 {
		t.Fatalf("expiries after cancel = %d, want 0", n)
	}
	if lease.Remaining() != 3 {
		t.Errorf("remaining = %d, want 3", lease.Remaining())
	}
}

func TestArmReplacesLiveLease(t *testing.T) {
	timer := New(5 * time.Millisecond)
	var first, second atomic.Int32

	old := timer.Arm("q1", 4, nil, func(*Lease) { first.Add(1) })
	cur := timer.Arm("q2", 2, nil, func(*Lease) { second.Add(1) })

	if !old.Done() {
		t.Fatal("arming a new lease must end the old one")
	}
	if timer.Current() != cur {
		t.Fatal("current lease is not the newest")
	}

	time.Sleep(60 * time.Millisecond)
	if first.Load() != 0 || second.Load() != 1 {
		t.Errorf("expiries: first=%d second=%d, want 0 and 1", first.Load(), second.Load())
	}

	timer.Cancel()
	if timer.Current() != nil {
		t.Error("Cancel left a live lease")
	}
}

func TestShouldArm(t *testing.T) {
	quiz := func(limit int) *content.Block {
		raw, _ := json.Marshal(content.Quiz{QuestionType: content.QuestionSingle, TimeLimit: limit})
		return &content.Block{ID: "q", Type: content.BlockQuiz, Content: raw}
	}
	tests := []struct {
		name  string
		block *content.Block
		limit int
		want  bool
	}{
		{"timed quiz", quiz(30), 30, true},
		{"untimed quiz", quiz(0), 0, false},
		{"text block", &content.Block{Type: content.BlockText}, 0, false},
		{"nil", nil, 0, false},
	}
	for _, tt := range tests {
		limit, ok := ShouldArm(tt.block)
		if ok != tt.want || limit != tt.limit {
			t.Errorf("%s: ShouldArm = (%d, %v), want (%d, %v)", tt.name, limit, ok, tt.limit, tt.want)
		}
	}
}
