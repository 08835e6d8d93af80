// Package api serves courses, progress, gamification and live traversal
// sessions over HTTP.
package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/gamification"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/hints"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/logging"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/metrics"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/notify"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/progress"
)

// Notifications lists a learner's in-app notifications, newest first.
type Notifications interface {
	List(ctx context.Context, userID string, limit int) ([]notify.Notification, error)
}

// Dispatcher fans completions out to the notification channels.
type Dispatcher interface {
	Dispatch(notify.Completion)
}

// SessionConfig holds the timing knobs of live sessions.
type SessionConfig struct {
	Settle         time.Duration
	TimerTick      time.Duration
	AnswerDebounce time.Duration
	SaveDebounce   time.Duration
}

// Deps are the services behind the API. Hints, Dispatcher, Notifications
// and Metrics are optional.
type Deps struct {
	Courses       content.Provider
	Progress      *progress.Service
	Gamification  *gamification.Engine
	Notifications Notifications
	Dispatcher    Dispatcher
	Hints         *hints.Service
	Tokens        *Tokens
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
	Session       SessionConfig
}

type Server struct {
	courses       content.Provider
	progress      *progress.Service
	gamification  *gamification.Engine
	notifications Notifications
	dispatcher    Dispatcher
	hints         *hints.Service
	tokens        *Tokens
	metrics       *metrics.Metrics
	logger        *zap.Logger
	session       SessionConfig
}

func NewServer(d Deps) *Server {
	if d.Hints == nil {
		d.Hints = hints.NewService(nil, hints.DefaultConfig(), d.Logger)
	}
	return &Server{
		courses:       d.Courses,
		progress:      d.Progress,
		gamification:  d.Gamification,
		notifications: d.Notifications,
		dispatcher:    d.Dispatcher,
		hints:         d.Hints,
		tokens:        d.Tokens,
		metrics:       d.Metrics,
		logger:        logging.OrNop(d.Logger),
		session:       d.Session,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/courses/{courseID}", s.getCourse)
		r.Get("/courses/{courseID}/session", s.serveSession)
		r.Post("/progress", s.postProgress)
		r.Get("/progress", s.getProgress)
		r.Get("/gamification", s.getGamification)
		r.Get("/notifications", s.getNotifications)
	})
	return r
}

// logRequests logs and counts every request under its route pattern.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		elapsed := time.Since(start)
		s.metrics.HTTPRequest(route, strconv.Itoa(status), elapsed.Seconds())
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}
