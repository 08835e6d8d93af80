package navigator

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/answers"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/apperr"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/notify"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/quiztimer"
)

// Advance moves to the next block, crossing into the next lesson when the
// current one is exhausted, and completes the course from the final block.
// It returns false when the call was dropped: the session is not running,
// the course is already complete, the current block still needs a valid
// answer, or a previous transition is settling.
func (c *Controller) Advance() bool {
	c.mu.Lock()
	if !c.runningLocked() || c.completed {
		c.mu.Unlock()
		return false
	}
	if err := c.gateLocked(); err != nil {
		c.mu.Unlock()
		return false
	}
	if !c.acquireLocked() {
		c.mu.Unlock()
		return false
	}
	events := c.stepLocked("advance")
	c.releaseLocked()
	c.mu.Unlock()

	c.emit(events)
	return true
}

// Retreat moves to the previous block, or to the last block of the
// previous lesson. It is a no-op at the first block.
func (c *Controller) Retreat() bool {
	c.mu.Lock()
	if !c.runningLocked() {
		c.mu.Unlock()
		return false
	}
	prev, ok := c.prevLocked()
	if !ok {
		c.mu.Unlock()
		return false
	}
	events := c.moveLocked(prev, "retreat")
	c.mu.Unlock()

	c.emit(events)
	return true
}

// JumpTo repositions the learner. The target lesson must be unlocked or
// be the current one.
func (c *Controller) JumpTo(lesson, block int) error {
	c.mu.Lock()
	if !c.runningLocked() {
		c.mu.Unlock()
		return apperr.Conflict("session is not running", "")
	}
	target := content.Position{Lesson: lesson, Block: block}
	if !c.course.Valid(target) {
		c.mu.Unlock()
		return apperr.NotFound("block " + target.String())
	}
	if lesson != c.pos.Lesson && lesson > c.unlockedLocked() {
		c.mu.Unlock()
		return apperr.Conflict("lesson is locked", target.String())
	}
	events := c.moveLocked(target, "jump")
	c.mu.Unlock()

	c.emit(events)
	return nil
}

// RecordAnswer stores an answer for blockID. It is visible to Submit and
// Snapshot immediately and mirrored to persistence.
func (c *Controller) RecordAnswer(blockID content.ID, a answers.Answer) error {
	if _, _, ok := c.course.BlockByID(blockID); !ok {
		return apperr.NotFound("block " + string(blockID))
	}
	c.answers.Record(blockID, a)
	return nil
}

// Submit grades the answer recorded for the current block, credits its
// points the first time it is answered correctly, and resolves the block's
// branching rule. Blocks without an answer to grade simply advance.
func (c *Controller) Submit() (SubmitResult, error) {
	c.mu.Lock()
	if !c.runningLocked() || c.completed {
		c.mu.Unlock()
		return SubmitResult{Dropped: true}, nil
	}
	block := c.course.BlockAt(c.pos)
	if !block.Type.Interactive() {
		if !c.acquireLocked() {
			c.mu.Unlock()
			return SubmitResult{Dropped: true}, nil
		}
		events := c.stepLocked("advance")
		c.releaseLocked()
		c.mu.Unlock()
		c.emit(events)
		return SubmitResult{Correct: true, Path: content.Next()}, nil
	}

	a, _ := c.answers.Get(block.ID)
	if err := answers.Validate(block, a); err != nil {
		c.mu.Unlock()
		return SubmitResult{}, err
	}
	if c.busy {
		c.mu.Unlock()
		c.deps.Metrics.Transition("dropped")
		return SubmitResult{Dropped: true}, nil
	}
	correct, err := answers.Correct(block, a)
	if err != nil {
		c.mu.Unlock()
		return SubmitResult{}, apperr.Validation("grade answer", err.Error())
	}

	res := SubmitResult{Correct: correct, Path: content.Next()}
	q, _ := block.Quiz()
	if q != nil && q.Branching != nil {
		if p := q.Branching.Choose(correct); !p.IsZero() {
			res.Path = p
		}
	}
	if correct && !c.scored[block.ID] && q != nil && q.Points > 0 {
		c.scored[block.ID] = true
		c.score += q.Points
		res.Points = q.Points
	}

	events, _ := c.resolveLocked(block, correct)
	c.mu.Unlock()

	c.emit(events)
	return res, nil
}

// ResolveBranch applies the branching rule of blockID, which must be the
// current block, for the given correctness. It returns false when the
// call was dropped.
func (c *Controller) ResolveBranch(blockID content.ID, correct bool) bool {
	c.mu.Lock()
	if !c.runningLocked() || c.completed {
		c.mu.Unlock()
		return false
	}
	block := c.course.BlockAt(c.pos)
	if block.ID != blockID {
		c.mu.Unlock()
		return false
	}
	events, ok := c.resolveLocked(block, correct)
	c.mu.Unlock()

	c.emit(events)
	return ok
}

// Gate reports why the learner may not move forward yet, or nil.
func (c *Controller) Gate() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gateLocked()
}

func (c *Controller) gateLocked() error {
	block := c.course.BlockAt(c.pos)
	if !block.Type.Interactive() {
		return nil
	}
	a, _ := c.answers.Get(block.ID)
	return answers.Validate(block, a)
}

func (c *Controller) runningLocked() bool {
	return c.started && !c.closed
}

// acquireLocked sets the re-entrancy lock, or reports that it is held.
func (c *Controller) acquireLocked() bool {
	if c.busy {
		c.deps.Metrics.Transition("dropped")
		c.logger.Debug("transition dropped while settling", zap.String("at", c.pos.String()))
		return false
	}
	c.busy = true
	return true
}

// releaseLocked clears the re-entrancy lock once the settle window has
// passed.
func (c *Controller) releaseLocked() {
	if c.cfg.Settle <= 0 {
		c.busy = false
		return
	}
	if c.settle != nil {
		c.settle.Stop()
	}
	c.settle = time.AfterFunc(c.cfg.Settle, func() {
		c.mu.Lock()
		c.busy = false
		c.mu.Unlock()
	})
}

// resolveLocked dispatches a branching rule. The caller holds c.mu.
func (c *Controller) resolveLocked(block *content.Block, correct bool) ([]Event, bool) {
	if !c.acquireLocked() {
		return nil, false
	}
	defer c.releaseLocked()

	q, err := block.Quiz()
	if err != nil || q == nil || q.Branching == nil {
		return c.stepLocked("advance"), true
	}

	path := q.Branching.Choose(correct)
	c.deps.Metrics.Transition("branch_" + string(path.Kind))
	switch path.Kind {
	case content.PathSkip:
		events := c.stepLocked("skip")
		if c.completed {
			return events, true
		}
		return append(events, c.stepLocked("skip")...), true
	case content.PathRepeat:
		c.armLocked()
		return []Event{c.eventLocked(EventRepeat)}, true
	case content.PathHint:
		return []Event{c.eventLocked(EventHint)}, true
	case content.PathSpecific:
		if target, ok := c.course.FindBlock(path.Target); ok {
			events := c.moveLocked(target, "specific")
			return append(events, c.arrivedLocked()...), true
		}
		c.logger.Debug("branch target not found, advancing", zap.String("target", path.Target))
		return c.stepLocked("advance"), true
	default:
		return c.stepLocked("advance"), true
	}
}

// stepLocked performs one default forward step.
func (c *Controller) stepLocked(kind string) []Event {
	if c.completed {
		return nil
	}
	next, ok := c.nextLocked()
	if !ok {
		return c.completeLocked()
	}
	if next.Lesson > c.pos.Lesson {
		c.finished[c.pos.Lesson] = true
	}
	events := c.moveLocked(next, kind)
	return append(events, c.arrivedLocked()...)
}

// arrivedLocked completes the course on reaching a final block that has
// nothing to answer. A final quiz or sequence completes when the learner
// advances from it.
func (c *Controller) arrivedLocked() []Event {
	if c.completed || !c.course.IsLast(c.pos) {
		return nil
	}
	if c.course.BlockAt(c.pos).Type.Interactive() {
		return nil
	}
	return c.completeLocked()
}

func (c *Controller) nextLocked() (content.Position, bool) {
	p := c.pos
	if p.Block+1 < c.course.BlockCount(p.Lesson) {
		return content.Position{Lesson: p.Lesson, Block: p.Block + 1}, true
	}
	if p.Lesson+1 < c.course.LessonCount() {
		return content.Position{Lesson: p.Lesson + 1}, true
	}
	return p, false
}

func (c *Controller) prevLocked() (content.Position, bool) {
	p := c.pos
	if p.Block > 0 {
		return content.Position{Lesson: p.Lesson, Block: p.Block - 1}, true
	}
	if p.Lesson > 0 {
		return content.Position{Lesson: p.Lesson - 1, Block: c.course.BlockCount(p.Lesson-1) - 1}, true
	}
	return p, false
}

// moveLocked is the single position-change path: end the countdown, move,
// re-arm, schedule the save, announce.
func (c *Controller) moveLocked(to content.Position, kind string) []Event {
	c.cancelLeaseLocked()
	c.pos = to
	if c.furthest.Less(to) {
		c.furthest = to
	}
	c.deps.Metrics.Transition(kind)
	return c.enterLocked(kind)
}

// enterLocked arms the current block and persists and announces it.
func (c *Controller) enterLocked(kind string) []Event {
	c.armLocked()
	if c.deps.Sink != nil {
		c.deps.Sink.Schedule(c.updateLocked())
	}
	e := c.eventLocked(EventPosition)
	e.Transition = kind
	return []Event{e}
}

func (c *Controller) armLocked() {
	c.cancelLeaseLocked()
	if c.completed {
		return
	}
	block := c.course.BlockAt(c.pos)
	limit, ok := quiztimer.ShouldArm(block)
	if !ok {
		return
	}
	c.lease = c.timer.Arm(block.ID, limit, c.onTick, c.onExpire)
}

func (c *Controller) cancelLeaseLocked() {
	if c.lease != nil {
		c.lease.Cancel()
		c.lease = nil
	}
}

func (c *Controller) onTick(lease *quiztimer.Lease, remaining int) {
	c.mu.Lock()
	if lease != c.lease || c.closed {
		c.mu.Unlock()
		return
	}
	e := c.eventLocked(EventTick)
	e.Remaining = remaining
	c.mu.Unlock()

	c.emit([]Event{e})
}

// onExpire advances once when the countdown of the current block runs
// out. The advance is subject to the re-entrancy lock like any other.
func (c *Controller) onExpire(lease *quiztimer.Lease) {
	c.mu.Lock()
	if lease != c.lease || c.closed || c.completed {
		c.mu.Unlock()
		return
	}
	c.lease = nil
	events := []Event{c.eventLocked(EventExpired)}
	if c.acquireLocked() {
		events = append(events, c.stepLocked("expired")...)
		c.releaseLocked()
	}
	c.mu.Unlock()

	c.emit(events)
}

// completeLocked is the terminal transition. It runs once per session.
func (c *Controller) completeLocked() []Event {
	if c.completed {
		return nil
	}
	c.completed = true
	c.cancelLeaseLocked()
	c.deps.Metrics.Transition("complete")

	u := c.updateLocked()
	if c.deps.Sink != nil {
		c.deps.Sink.Commit(u)
	}
	c.logger.Info("course completed", zap.Int("score", c.score), zap.Int("time_spent", u.TimeSpent))

	if !c.completedPrior {
		completion := notify.Completion{
			UserID:      c.cfg.UserID,
			Email:       c.cfg.UserEmail,
			CourseID:    string(c.course.ID),
			CourseTitle: c.course.Title,
			Score:       c.score,
			CompletedAt: c.cfg.Now(),
		}
		c.wg.Add(1)
		go c.finish(completion)
	}

	return []Event{c.eventLocked(EventCompleted)}
}

// finish runs the completion side effects off the caller's path. Neither
// can fail the completion itself.
func (c *Controller) finish(completion notify.Completion) {
	defer c.wg.Done()
	if c.deps.Completer != nil {
		if err := c.deps.Completer.CompleteCourse(context.Background(), completion.UserID, completion.CourseID, completion.Score); err != nil {
			c.logger.Error("gamification on completion failed", zap.Error(err))
		}
	}
	if c.deps.Dispatcher != nil {
		c.deps.Dispatcher.Dispatch(completion)
	}
}
