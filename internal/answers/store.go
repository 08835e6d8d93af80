package answers

import (
	"sync"
	"time"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
)

// DefaultTextDebounce is how long a free-text answer must stay unchanged
// before it is mirrored.
const DefaultTextDebounce = time.Second

// MirrorFunc receives a snapshot of every answer recorded so far. It is
// called outside the store's lock and must not block.
type MirrorFunc func(snapshot map[content.ID]Answer)

// Store maps block ids to the learner's current answers. Reads see a
// recorded answer immediately; persistence sees it through the mirror.
type Store struct {
	mu       sync.Mutex
	values   map[content.ID]Answer
	mirror   MirrorFunc
	debounce time.Duration
	pending  *time.Timer
	dirty    bool
}

// NewStore creates an answer store. mirror may be nil.
func NewStore(mirror MirrorFunc, textDebounce time.Duration) *Store {
	if textDebounce <= 0 {
		textDebounce = DefaultTextDebounce
	}
	return &Store{
		values:   make(map[content.ID]Answer),
		mirror:   mirror,
		debounce: textDebounce,
	}
}

// Record overwrites the answer for blockID. Text answers are mirrored once
// typing pauses; every other kind is mirrored right away, which also
// covers any text still waiting.
func (s *Store) Record(blockID content.ID, a Answer) {
	s.mu.Lock()
	s.values[blockID] = a
	if a.Kind == KindText {
		s.dirty = true
		if s.pending != nil {
			s.pending.Stop()
		}
		s.pending = time.AfterFunc(s.debounce, s.flushPending)
		s.mu.Unlock()
		return
	}
	s.stopPendingLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(snap)
}

// Get returns the answer recorded for blockID.
func (s *Store) Get(blockID content.ID) (Answer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.values[blockID]
	return a, ok
}

// Snapshot returns a copy of all answers.
func (s *Store) Snapshot() map[content.ID]Answer {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Load replaces the store's contents without mirroring, for resuming a
// session from stored progress.
func (s *Store) Load(values map[content.ID]Answer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopPendingLocked()
	s.values = make(map[content.ID]Answer, len(values))
	for k, v := range values {
		s.values[k] = v
	}
}

// Flush mirrors a pending text answer now, if there is one.
func (s *Store) Flush() {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	s.stopPendingLocked()
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(snap)
}

func (s *Store) flushPending() {
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return
	}
	s.dirty = false
	s.pending = nil
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.emit(snap)
}

func (s *Store) stopPendingLocked() {
	if s.pending != nil {
		s.pending.Stop()
		s.pending = nil
	}
	s.dirty = false
}

func (s *Store) snapshotLocked() map[content.ID]Answer {
	out := make(map[content.ID]Answer, len(s.values))
	for k, v := range s.values {
		out[k] = v
	}
	return out
}

func (s *Store) emit(snap map[content.ID]Answer) {
	if s.mirror != nil {
		s.mirror(snap)
	}
}
