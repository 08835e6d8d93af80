// Package player is the terminal screen that walks a learner through a
// course.
package player

import (
	"context"
	"strconv"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/answers"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/gamification"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/hints"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/navigator"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/router"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/screen"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/screens/outline"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/screens/summary"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/ui/components"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/ui/layout"
)

const hintTimeout = 20 * time.Second

// Standing reads a learner's XP and achievements. gamification.Engine
// satisfies it.
type Standing interface {
	Summary(ctx context.Context, userID string) (gamification.Summary, error)
}

// hintMsg is sent when a hint has been resolved.
type hintMsg struct {
	Hint hints.Hint
}

// Deps are the player's collaborators. The controller must have been
// built with Feed.Listen as its listener. Hints and Standing are optional.
type Deps struct {
	Controller *navigator.Controller
	Feed       *Feed
	Hints      *hints.Service
	Standing   Standing
	UserID     string
}

// PlayerScreen renders the current block and turns keys into controller
// commands.
type PlayerScreen struct {
	ctl      *navigator.Controller
	course   *content.Course
	feed     *Feed
	hints    *hints.Service
	standing Standing
	userID   string

	snap    navigator.Snapshot
	blockID content.ID
	block   *content.Block
	quiz    *content.Quiz
	seq     *content.Sequence

	input  components.TextInput
	typing bool

	result *navigator.SubmitResult
	hint   *hints.Hint
	notice string
	errMsg string
	stats  layout.Stats
	done   bool
}

var _ screen.Screen = (*PlayerScreen)(nil)
var _ screen.KeyHintProvider = (*PlayerScreen)(nil)
var _ screen.StatsProvider = (*PlayerScreen)(nil)
var _ screen.Closer = (*PlayerScreen)(nil)

func New(d Deps) *PlayerScreen {
	if d.Hints == nil {
		d.Hints = hints.NewService(nil, hints.DefaultConfig(), nil)
	}
	return &PlayerScreen{
		ctl:      d.Controller,
		course:   d.Controller.Course(),
		feed:     d.Feed,
		hints:    d.Hints,
		standing: d.Standing,
		userID:   d.UserID,
		input:    components.NewTextInput("Type your answer...", 2000),
	}
}

// Init starts the session. Stored state must already have been loaded
// with Controller.Resume.
func (p *PlayerScreen) Init() tea.Cmd {
	p.ctl.Start()
	p.refresh()
	return tea.Batch(p.feed.wait(), p.loadStanding(), p.input.Init())
}

func (p *PlayerScreen) Title() string {
	return p.course.Title
}

func (p *PlayerScreen) Stats() layout.Stats {
	return p.stats
}

// Close stops the countdown and flushes progress.
func (p *PlayerScreen) Close() {
	p.ctl.Close()
	p.feed.Close()
}

func (p *PlayerScreen) KeyHints() []layout.KeyHint {
	switch {
	case p.typing:
		return []layout.KeyHint{
			{Key: "Enter", Description: "Submit"},
			{Key: "←→", Description: "Back/Next"},
			{Key: "Tab", Description: "Outline"},
		}
	case p.block != nil && p.block.Type.Interactive():
		return []layout.KeyHint{
			{Key: "1-9", Description: "Choose"},
			{Key: "Enter", Description: "Submit"},
			{Key: "←→", Description: "Back/Next"},
			{Key: "[ ]", Description: "Lesson"},
			{Key: "L", Description: "Outline"},
		}
	default:
		return []layout.KeyHint{
			{Key: "→/N", Description: "Next"},
			{Key: "←/P", Description: "Back"},
			{Key: "[ ]", Description: "Lesson"},
			{Key: "L", Description: "Outline"},
			{Key: "Ctrl+C", Description: "Quit"},
		}
	}
}

func (p *PlayerScreen) Update(msg tea.Msg) (screen.Screen, tea.Cmd) {
	switch msg := msg.(type) {
	case eventMsg:
		cmd := p.handleEvent(msg.Event)
		return p, tea.Batch(cmd, p.feed.wait())

	case creditedMsg:
		return p, tea.Batch(p.loadStanding(), p.feed.wait())

	case summary.StandingMsg:
		if msg.Err == nil {
			p.stats = layout.Stats{TotalXP: msg.Summary.XP.TotalXP, Level: msg.Summary.XP.Level}
		}
		return p, nil

	case hintMsg:
		if msg.Hint.Text != "" {
			h := msg.Hint
			p.hint = &h
		}
		return p, nil

	case tea.KeyMsg:
		return p.handleKey(msg)
	}

	if p.typing {
		return p.updateInput(msg)
	}
	return p, nil
}

func (p *PlayerScreen) handleEvent(ev navigator.Event) tea.Cmd {
	p.refresh()
	switch ev.Kind {
	case navigator.EventExpired:
		p.notice = "Time's up."
	case navigator.EventRepeat:
		p.notice = "Not quite. Try again."
		p.resetInput()
	case navigator.EventHint:
		block := p.course.BlockAt(ev.Position)
		return p.fetchHint(block)
	case navigator.EventCompleted:
		if p.done {
			return nil
		}
		p.done = true
		res := summary.Result{
			CourseTitle: p.course.Title,
			Score:       p.snap.Score,
			TimeSpent:   p.snap.TimeSpent,
		}
		return tea.Batch(
			func() tea.Msg { return router.PushScreenMsg{Screen: summary.New(res)} },
			p.loadStanding(),
		)
	}
	return nil
}

func (p *PlayerScreen) handleKey(msg tea.KeyMsg) (screen.Screen, tea.Cmd) {
	key := msg.String()
	switch key {
	case "right":
		p.advance()
		return p, nil
	case "left":
		p.clearFeedback()
		p.ctl.Retreat()
		return p, nil
	case "tab":
		return p, p.openOutline()
	case "enter":
		p.submit()
		return p, nil
	}

	if p.typing {
		return p.updateInput(msg)
	}

	switch key {
	case "n", "space":
		p.advance()
	case "p":
		p.clearFeedback()
		p.ctl.Retreat()
	case "[":
		p.jumpLesson(p.snap.Position.Lesson - 1)
	case "]":
		p.jumpLesson(p.snap.Position.Lesson + 1)
	case "l":
		return p, p.openOutline()
	case "backspace":
		p.popSequence()
	default:
		if n, err := strconv.Atoi(key); err == nil && n >= 1 && n <= 9 {
			p.choose(n - 1)
		}
	}
	return p, nil
}

func (p *PlayerScreen) advance() {
	p.clearFeedback()
	if p.ctl.Advance() {
		return
	}
	if err := p.ctl.Gate(); err != nil {
		p.notice = "Answer this block before moving on."
	}
}

func (p *PlayerScreen) submit() {
	if p.typing {
		p.recordInput()
	}
	res, err := p.ctl.Submit()
	if err != nil {
		p.errMsg = err.Error()
		return
	}
	p.errMsg = ""
	if res.Dropped {
		return
	}
	if p.block != nil && p.block.Type.Interactive() {
		p.result = &res
	}
}

func (p *PlayerScreen) jumpLesson(lesson int) {
	if lesson < 0 || lesson >= p.course.LessonCount() {
		return
	}
	p.clearFeedback()
	if err := p.ctl.JumpTo(lesson, 0); err != nil {
		p.notice = "That lesson is still locked."
	}
}

func (p *PlayerScreen) openOutline() tea.Cmd {
	snap := p.ctl.Snapshot()
	o := outline.New(p.course, snap.Position.Lesson, snap.Unlocked, p.ctl)
	return func() tea.Msg { return router.PushScreenMsg{Screen: o} }
}

// choose selects, toggles or appends the idx-th option of the current
// block.
func (p *PlayerScreen) choose(idx int) {
	if p.block == nil {
		return
	}
	cur, _ := p.ctl.Answer(p.block.ID)

	var a answers.Answer
	switch {
	case p.quiz != nil:
		if idx >= len(p.quiz.Options) {
			return
		}
		id := string(p.quiz.Options[idx].ID)
		if p.quiz.QuestionType == content.QuestionMultiple {
			a = cur.Toggle(id)
		} else {
			a = answers.Single(id)
		}
	case p.seq != nil:
		if idx >= len(p.seq.Items) {
			return
		}
		id := string(p.seq.Items[idx].ID)
		for _, placed := range cur.Order {
			if placed == id {
				return
			}
		}
		a = answers.Sequence(append(cur.Order, id)...)
	default:
		return
	}
	p.record(a)
}

func (p *PlayerScreen) popSequence() {
	if p.seq == nil || p.block == nil {
		return
	}
	cur, _ := p.ctl.Answer(p.block.ID)
	if len(cur.Order) == 0 {
		return
	}
	p.record(answers.Sequence(cur.Order[:len(cur.Order)-1]...))
}

func (p *PlayerScreen) record(a answers.Answer) {
	p.result = nil
	p.notice = ""
	if err := p.ctl.RecordAnswer(p.block.ID, a); err != nil {
		p.errMsg = err.Error()
		return
	}
	p.errMsg = ""
}

func (p *PlayerScreen) updateInput(msg tea.Msg) (screen.Screen, tea.Cmd) {
	before := p.input.Value()
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	if p.input.Value() != before {
		p.recordInput()
	}
	return p, cmd
}

func (p *PlayerScreen) recordInput() {
	if p.quiz == nil || p.block == nil {
		return
	}
	switch p.quiz.QuestionType {
	case content.QuestionAudio, content.QuestionVideo:
		p.record(answers.Media(p.input.Value()))
	default:
		p.record(answers.Text(p.input.Value()))
	}
}

// refresh re-reads the controller. Moving to another block resets the
// per-block view state.
func (p *PlayerScreen) refresh() {
	p.snap = p.ctl.Snapshot()
	if p.snap.BlockID == p.blockID && p.block != nil {
		return
	}
	p.blockID = p.snap.BlockID
	p.block = p.course.BlockAt(p.snap.Position)
	p.quiz, p.seq = nil, nil
	p.typing = false
	p.hint = nil
	if p.block != nil {
		p.quiz, _ = p.block.Quiz()
		p.seq, _ = p.block.Sequence()
	}
	if p.quiz != nil {
		switch p.quiz.QuestionType {
		case content.QuestionText, content.QuestionAudio, content.QuestionVideo:
			p.typing = true
		}
	}
	p.resetInput()
}

func (p *PlayerScreen) resetInput() {
	value := ""
	if p.block != nil {
		if a, ok := p.ctl.Answer(p.block.ID); ok {
			value = a.Text
			if a.Kind == answers.KindMedia {
				value = a.Media
			}
		}
	}
	p.input.Reset(value)
}

func (p *PlayerScreen) clearFeedback() {
	p.result = nil
	p.notice = ""
	p.errMsg = ""
}

func (p *PlayerScreen) fetchHint(block *content.Block) tea.Cmd {
	svc, course := p.hints, p.course
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), hintTimeout)
		defer cancel()
		return hintMsg{Hint: svc.Hint(ctx, course, block)}
	}
}

func (p *PlayerScreen) loadStanding() tea.Cmd {
	if p.standing == nil || p.userID == "" {
		return nil
	}
	standing, userID := p.standing, p.userID
	return func() tea.Msg {
		sum, err := standing.Summary(context.Background(), userID)
		return summary.StandingMsg{Summary: sum, Err: err}
	}
}
