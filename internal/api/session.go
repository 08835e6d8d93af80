package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/answers"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/apperr"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/hints"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/navigator"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/progress"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers authenticate with the token query parameter; origin is not
	// a credential here.
	CheckOrigin: func(*http.Request) bool { return true },
}

var validate = validator.New()

// command is one client message on a session socket.
type command struct {
	Type    string          `json:"type" validate:"required,oneof=advance retreat jump answer submit snapshot"`
	Lesson  int             `json:"lessonIndex" validate:"min=0"`
	Block   int             `json:"blockIndex" validate:"min=0"`
	BlockID content.ID      `json:"blockId" validate:"required_if=Type answer"`
	Answer  *answers.Answer `json:"answer" validate:"required_if=Type answer"`
}

// frame is one server message. Navigation events are flattened into it.
type frame struct {
	Type string `json:"type"`
	*navigator.Event
	Hint     *hints.Hint             `json:"hint,omitempty"`
	Result   *navigator.SubmitResult `json:"result,omitempty"`
	Snapshot *navigator.Snapshot     `json:"snapshot,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

const (
	frameSnapshot = "snapshot"
	frameResult   = "result"
	frameError    = "error"
)

// liveSession pumps frames to one socket. send never blocks: a client that
// stops reading loses frames rather than stalling the controller.
type liveSession struct {
	id     string
	conn   *websocket.Conn
	logger *zap.Logger

	mu     sync.Mutex
	out    chan frame
	closed bool
}

func (ls *liveSession) send(f frame) {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if ls.closed {
		return
	}
	select {
	case ls.out <- f:
	default:
		ls.logger.Warn("session send buffer full, frame dropped", zap.String("type", f.Type))
	}
}

func (ls *liveSession) close() {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	if !ls.closed {
		ls.closed = true
		close(ls.out)
	}
}

func (ls *liveSession) sendError(err error) {
	ls.send(frame{Type: frameError, Error: err.Error()})
}

func (ls *liveSession) writePump(done chan<- struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ls.conn.Close()
		close(done)
	}()
	for {
		select {
		case f, ok := <-ls.out:
			_ = ls.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ls.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := ls.conn.WriteJSON(f); err != nil {
				ls.logger.Debug("session write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = ls.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ls.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// serveSession runs a live traversal session over a WebSocket. Course and
// stored progress are resolved before the upgrade so failures surface as
// ordinary HTTP errors.
func (s *Server) serveSession(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	courseID := content.ID(chi.URLParam(r, "courseID"))

	course, err := s.courses.Course(r.Context(), courseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	rec, err := s.progress.Latest(r.Context(), user.ID, courseID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	ls := &liveSession{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan frame, sendBuffer),
	}
	ls.logger = s.logger.With(
		zap.String("session", ls.id),
		zap.String("user", user.ID),
		zap.String("course", string(courseID)))

	// Hint lookups outlive the command that triggered them but not the
	// session.
	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	var hintWG sync.WaitGroup

	sink := progress.NewSink(user.ID, string(courseID), s.progress,
		progress.WithDebounce(s.session.SaveDebounce),
		progress.WithLogger(ls.logger),
		progress.WithMetrics(s.metrics))

	listener := func(ev navigator.Event) {
		if ev.Kind == navigator.EventHint {
			hintWG.Add(1)
			go func() {
				defer hintWG.Done()
				h := s.hints.Hint(ctx, course, course.BlockAt(ev.Position))
				ls.send(frame{Type: string(ev.Kind), Event: &ev, Hint: &h})
			}()
			return
		}
		ls.send(frame{Type: string(ev.Kind), Event: &ev})
	}

	ctl, err := navigator.New(navigator.Config{
		UserID:         user.ID,
		UserEmail:      user.Email,
		Settle:         s.session.Settle,
		TimerTick:      s.session.TimerTick,
		AnswerDebounce: s.session.AnswerDebounce,
	}, navigator.Deps{
		Course:    course,
		Sink:      sink,
		Completer: sessionCompleter{s: s, user: user},
		Listener:  listener,
		Logger:    ls.logger,
		Metrics:   s.metrics,
	})
	if err != nil {
		cancel()
		sink.Close()
		_ = conn.WriteJSON(frame{Type: frameError, Error: err.Error()})
		conn.Close()
		return
	}
	if err := ctl.Resume(navigator.ResumeFrom(course, rec)); err != nil {
		ls.logger.Warn("stored position rejected, starting over", zap.Error(err))
	}

	done := make(chan struct{})
	go ls.writePump(done)

	s.metrics.SessionOpened()
	ls.logger.Info("session opened")
	defer func() {
		ctl.Close()
		cancel()
		hintWG.Wait()
		ls.close()
		<-done
		s.metrics.SessionClosed()
		ls.logger.Info("session closed")
	}()

	ctl.Start()
	snap := ctl.Snapshot()
	ls.send(frame{Type: frameSnapshot, Snapshot: &snap})

	conn.SetReadLimit(64 << 10)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var cmd command
		if err := conn.ReadJSON(&cmd); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				ls.logger.Debug("session read failed", zap.Error(err))
			}
			return
		}
		s.handleCommand(ls, ctl, cmd)
	}
}

func (s *Server) handleCommand(ls *liveSession, ctl *navigator.Controller, cmd command) {
	if err := validate.Struct(cmd); err != nil {
		ls.sendError(apperr.Validation("invalid command", err.Error()))
		return
	}

	switch cmd.Type {
	case "advance":
		ctl.Advance()
	case "retreat":
		ctl.Retreat()
	case "jump":
		if err := ctl.JumpTo(cmd.Lesson, cmd.Block); err != nil {
			ls.sendError(err)
		}
	case "answer":
		if err := ctl.RecordAnswer(cmd.BlockID, *cmd.Answer); err != nil {
			ls.sendError(err)
		}
	case "submit":
		res, err := ctl.Submit()
		if err != nil {
			ls.sendError(err)
			return
		}
		ls.send(frame{Type: frameResult, Result: &res})
	case "snapshot":
		snap := ctl.Snapshot()
		ls.send(frame{Type: frameSnapshot, Snapshot: &snap})
	}
}

// sessionCompleter credits a completion reached in a live session and
// dispatches notifications only when this completion was the crediting
// one.
type sessionCompleter struct {
	s    *Server
	user User
}

func (c sessionCompleter) CompleteCourse(ctx context.Context, userID, courseID string, score int) error {
	c.s.completeCourse(ctx, User{ID: userID, Email: c.user.Email}, courseID, score)
	return nil
}
