// Package navigator is the traversal state machine of one learner session:
// it owns the current position, resolves advance, retreat, jumps and quiz
// branching, arms the quiz countdown and feeds progress persistence,
// gamification and completion notifications.
package navigator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/answers"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/apperr"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/logging"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/metrics"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/notify"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/progress"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/quiztimer"
)

// DefaultSettle is how long the re-entrancy lock stays set after an
// advance or branch resolution.
const DefaultSettle = 200 * time.Millisecond

// Sink receives progress updates. progress.Sink satisfies it.
type Sink interface {
	Schedule(progress.Update)
	Commit(progress.Update)
	Close()
}

// Completer records a finished course. gamification.Engine satisfies it.
type Completer interface {
	CompleteCourse(ctx context.Context, userID, courseID string, score int) error
}

// Dispatcher fans a completion out to notification channels.
type Dispatcher interface {
	Dispatch(notify.Completion)
}

// Config carries the session identity and timing knobs.
type Config struct {
	UserID    string
	UserEmail string

	Settle         time.Duration
	TimerTick      time.Duration
	AnswerDebounce time.Duration

	// Now is the clock used for time spent. Defaults to time.Now.
	Now func() time.Time
}

// Deps are the controller's collaborators. Only Course is required.
type Deps struct {
	Course     *content.Course
	Sink       Sink
	Completer  Completer
	Dispatcher Dispatcher
	Listener   Listener
	Logger     *zap.Logger
	Metrics    *metrics.Metrics
}

// Resume is stored session state to continue from.
type Resume struct {
	Position  content.Position
	Answers   map[content.ID]answers.Answer
	TimeSpent int
	Score     int
	// Percentage is the stored completion. The furthest position it
	// stands for is restored even when Position is behind it.
	Percentage int
	// Completed marks a course finished in an earlier session: every lesson
	// is unlocked and finishing again does not repeat the completion side
	// effects.
	Completed bool
}

// Controller is the single owner of a session's mutable state. Every
// command and every timer callback goes through its lock.
type Controller struct {
	cfg    Config
	course *content.Course
	deps   Deps
	logger *zap.Logger

	answers *answers.Store
	timer   *quiztimer.Timer

	mu             sync.Mutex
	pos            content.Position
	furthest       content.Position
	finished       []bool // lessons left forward from their last block
	lease          *quiztimer.Lease
	busy           bool
	settle         *time.Timer
	completed      bool
	completedPrior bool
	score          int
	scored         map[content.ID]bool
	baseTimeSpent  int
	startedAt      time.Time
	started        bool
	closed         bool

	wg sync.WaitGroup
}

// New builds a controller for deps.Course. A course that fails validation
// is reported as not found: navigation cannot start on it.
func New(cfg Config, deps Deps) (*Controller, error) {
	if deps.Course == nil {
		return nil, apperr.NotFound("course")
	}
	if err := deps.Course.Validate(); err != nil {
		return nil, &apperr.Error{
			Kind:    apperr.KindNotFound,
			Message: "course has no navigable content",
			Details: string(deps.Course.ID),
			Err:     err,
		}
	}
	if cfg.Settle < 0 {
		cfg.Settle = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	c := &Controller{
		cfg:    cfg,
		course: deps.Course,
		deps:   deps,
		logger: logging.OrNop(deps.Logger).With(
			zap.String("user", cfg.UserID),
			zap.String("course", string(deps.Course.ID))),
		timer:    quiztimer.New(cfg.TimerTick),
		scored:   make(map[content.ID]bool),
		finished: make([]bool, deps.Course.LessonCount()),
	}
	c.answers = answers.NewStore(c.mirrorAnswers, cfg.AnswerDebounce)
	return c, nil
}

// Course returns the course being traversed.
func (c *Controller) Course() *content.Course { return c.course }

// Resume loads stored state. It must be called before Start.
func (c *Controller) Resume(r Resume) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started {
		return apperr.Conflict("session already started", "")
	}
	if r.Completed {
		c.completedPrior = true
		c.furthest = c.course.Last()
		r.Position = c.course.First()
	} else {
		if !c.course.Valid(r.Position) {
			return apperr.NotFound("block " + r.Position.String())
		}
		c.furthest = r.Position
		if f := furthestFor(c.course, r.Percentage); c.furthest.Less(f) {
			c.furthest = f
		}
		for i := 0; i < c.furthest.Lesson; i++ {
			c.finished[i] = true
		}
	}
	c.pos = r.Position
	c.baseTimeSpent = r.TimeSpent
	c.score = r.Score
	c.answers.Load(r.Answers)
	return nil
}

// Start arms the first block and announces the position.
func (c *Controller) Start() {
	c.mu.Lock()
	if c.started || c.closed {
		c.mu.Unlock()
		return
	}
	c.started = true
	c.startedAt = c.cfg.Now()
	events := c.enterLocked("start")
	c.mu.Unlock()

	c.emit(events)
}

// Snapshot returns the current session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		Position:   c.pos,
		Percentage: c.percentageLocked(),
		Score:      c.score,
		TimeSpent:  c.timeSpentLocked(),
		Completed:  c.completed,
		Remaining:  -1,
		Unlocked:   c.unlockedLocked(),
		Answers:    c.answers.Snapshot(),
	}
	s.LessonID, s.BlockID = c.idsLocked(c.pos)
	if c.lease != nil && !c.lease.Done() {
		s.Remaining = c.lease.Remaining()
	}
	return s
}

// Answer returns the recorded answer for blockID.
func (c *Controller) Answer(blockID content.ID) (answers.Answer, bool) {
	return c.answers.Get(blockID)
}

// Close stops the countdown, flushes pending answers and progress, and
// waits for background completion work.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancelLeaseLocked()
	if c.settle != nil {
		c.settle.Stop()
	}
	c.mu.Unlock()

	c.answers.Flush()
	if c.deps.Sink != nil {
		c.deps.Sink.Close()
	}
	c.wg.Wait()
}

func (c *Controller) emit(events []Event) {
	if c.deps.Listener == nil {
		return
	}
	for _, e := range events {
		c.deps.Listener(e)
	}
}

func (c *Controller) idsLocked(pos content.Position) (content.ID, content.ID) {
	var lessonID, blockID content.ID
	if l := c.course.LessonAt(pos.Lesson); l != nil {
		lessonID = l.ID
	}
	if b := c.course.BlockAt(pos); b != nil {
		blockID = b.ID
	}
	return lessonID, blockID
}

// percentageLocked reports completion at the furthest position reached,
// so moving back never lowers it.
func (c *Controller) percentageLocked() int {
	if c.completed {
		return 100
	}
	f := c.furthest
	return progress.Percentage(c.course.LessonCount(), f.Lesson, f.Block, c.course.BlockCount(f.Lesson))
}

func (c *Controller) timeSpentLocked() int {
	if !c.started {
		return c.baseTimeSpent
	}
	return c.baseTimeSpent + int(c.cfg.Now().Sub(c.startedAt).Seconds())
}

// unlockedLocked returns the highest lesson index open to learner jumps:
// the first lesson not yet finished, with every lesson before it finished.
func (c *Controller) unlockedLocked() int {
	last := c.course.LessonCount() - 1
	if c.completed || c.completedPrior {
		return last
	}
	for i, done := range c.finished {
		if !done {
			return i
		}
	}
	return last
}

func (c *Controller) updateLocked() progress.Update {
	lessonID, blockID := c.idsLocked(c.pos)
	return progress.Update{
		Position:   c.pos,
		LessonID:   lessonID,
		BlockID:    blockID,
		Percentage: c.percentageLocked(),
		Score:      c.score,
		TimeSpent:  c.timeSpentLocked(),
		Completed:  c.completed,
		Answers:    c.answers.Snapshot(),
	}
}

func (c *Controller) eventLocked(kind EventKind) Event {
	lessonID, blockID := c.idsLocked(c.pos)
	return Event{
		Kind:       kind,
		Position:   c.pos,
		LessonID:   lessonID,
		BlockID:    blockID,
		Percentage: c.percentageLocked(),
		Score:      c.score,
	}
}

// mirrorAnswers is the answer store's persistence hook.
func (c *Controller) mirrorAnswers(map[content.ID]answers.Answer) {
	c.mu.Lock()
	if !c.started || c.deps.Sink == nil {
		c.mu.Unlock()
		return
	}
	u := c.updateLocked()
	c.mu.Unlock()

	c.deps.Sink.Commit(u)
}
