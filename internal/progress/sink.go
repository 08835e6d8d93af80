package progress

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/answers"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/logging"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/metrics"
)

// DefaultDebounce is how long a position must stay put before it is saved.
const DefaultDebounce = time.Second

// Writer persists one progress record.
type Writer interface {
	Save(ctx context.Context, rec Record) error
}

// Update is a snapshot of session state to persist.
type Update struct {
	Position   content.Position
	LessonID   content.ID
	BlockID    content.ID
	Percentage int
	Score      int
	TimeSpent  int
	Completed  bool
	Answers    map[content.ID]answers.Answer
}

// Sink schedules progress writes for one learner in one course. It never
// reports failures to its caller; they are logged and counted.
//
// Updates are full snapshots, so only the newest one matters: a single
// worker drains one ready slot, and an update that lands in the slot
// while a write is running replaces whatever was waiting there.
type Sink struct {
	userID   string
	courseID string
	writer   Writer
	debounce time.Duration
	logger   *zap.Logger
	metrics  *metrics.Metrics

	mu       sync.Mutex
	timer    *time.Timer
	pending  *Update // debounced, waiting for the timer
	ready    *Update // due, waiting for the worker
	last     content.Position
	haveLast bool
	inFlight bool
	closed   bool
	wg       sync.WaitGroup
}

type SinkOption func(*Sink)

func WithDebounce(d time.Duration) SinkOption {
	return func(s *Sink) {
		if d > 0 {
			s.debounce = d
		}
	}
}

func WithLogger(l *zap.Logger) SinkOption {
	return func(s *Sink) { s.logger = logging.OrNop(l) }
}

func WithMetrics(m *metrics.Metrics) SinkOption {
	return func(s *Sink) { s.metrics = m }
}

func NewSink(userID, courseID string, w Writer, opts ...SinkOption) *Sink {
	s := &Sink{
		userID:   userID,
		courseID: courseID,
		writer:   w,
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule saves u once the position has been stable for the debounce
// window. An update for the position most recently scheduled is dropped;
// a newer update replaces one that is still waiting.
func (s *Sink) Schedule(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.haveLast && s.last == u.Position {
		s.metrics.ProgressSkipped()
		return
	}
	s.last, s.haveLast = u.Position, true
	s.pending = &u
	s.armLocked()
}

// Commit writes u as soon as the writer is free, bypassing the debounce
// and the duplicate guard. Older updates that have not been written yet
// are superseded.
func (s *Sink) Commit(u Update) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.stopTimerLocked()
	s.pending = nil
	s.ready = &u
	s.kickLocked()
}

// Close flushes a waiting update and blocks until every write finished.
func (s *Sink) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		s.stopTimerLocked()
		if s.pending != nil {
			s.ready, s.pending = s.pending, nil
		}
		s.kickLocked()
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *Sink) armLocked() {
	s.stopTimerLocked()
	s.timer = time.AfterFunc(s.debounce, s.fire)
}

func (s *Sink) stopTimerLocked() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Sink) fire() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil || s.closed {
		return
	}
	s.timer = nil
	s.ready, s.pending = s.pending, nil
	s.kickLocked()
}

// kickLocked starts the worker unless one is already running.
func (s *Sink) kickLocked() {
	if s.inFlight || s.ready == nil {
		return
	}
	s.inFlight = true
	s.wg.Add(1)
	go s.drain()
}

func (s *Sink) drain() {
	defer s.wg.Done()
	for {
		s.mu.Lock()
		u := s.ready
		if u == nil {
			s.inFlight = false
			s.mu.Unlock()
			return
		}
		s.ready = nil
		s.mu.Unlock()

		if !s.write(*u) {
			s.mu.Lock()
			// Let the same position be scheduled again.
			if s.haveLast && s.last == u.Position {
				s.haveLast = false
			}
			s.mu.Unlock()
		}
	}
}

func (s *Sink) write(u Update) bool {
	rec := Record{
		UserID:               s.userID,
		CourseID:             s.courseID,
		LessonID:             string(u.LessonID),
		BlockID:              string(u.BlockID),
		CompletionPercentage: u.Percentage,
		Score:                u.Score,
		TimeSpent:            u.TimeSpent,
		Completed:            u.Completed,
	}
	if u.Answers != nil {
		raw, err := json.Marshal(u.Answers)
		if err != nil {
			s.logger.Error("encode answers", zap.String("course", s.courseID), zap.Error(err))
		} else {
			rec.Answers = raw
		}
	}

	err := s.writer.Save(context.Background(), rec)

	s.metrics.ProgressWrite(err == nil)
	if err != nil {
		s.logger.Warn("progress write failed",
			zap.String("user", s.userID),
			zap.String("course", s.courseID),
			zap.String("block", rec.BlockID),
			zap.Error(err))
		return false
	}
	return true
}
