package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/apperr"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/notify"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/progress"
)

const (
	defaultNotificationLimit = 20
	maxNotificationLimit     = 100
)

func (s *Server) getCourse(w http.ResponseWriter, r *http.Request) {
	course, err := s.courses.Course(r.Context(), content.ID(chi.URLParam(r, "courseID")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"course": course})
}

func (s *Server) postProgress(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	var req progress.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, apperr.Validation("invalid progress update", err.Error()))
		return
	}
	if err := s.progress.Submit(r.Context(), user.ID, req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Completed != nil && *req.Completed {
		score := 0
		if req.Score != nil {
			score = *req.Score
		}
		s.completeCourse(r.Context(), user, string(req.CourseID), score)
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// completeCourse credits the course once and notifies only on the call
// that credited it. Failures never fail the progress write.
func (s *Server) completeCourse(ctx context.Context, user User, courseID string, score int) {
	if s.gamification == nil {
		return
	}
	credited, err := s.gamification.CompleteCourseOnce(ctx, user.ID, courseID, score)
	if err != nil {
		s.logger.Error("gamification on completion failed",
			zap.String("user", user.ID),
			zap.String("course", courseID),
			zap.Error(err))
		return
	}
	if !credited || s.dispatcher == nil {
		return
	}

	completion := notify.Completion{
		UserID:      user.ID,
		Email:       user.Email,
		CourseID:    courseID,
		Score:       score,
		CompletedAt: time.Now(),
	}
	if course, err := s.courses.Course(ctx, content.ID(courseID)); err == nil {
		completion.CourseTitle = course.Title
	}
	s.dispatcher.Dispatch(completion)
}

func (s *Server) getProgress(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	rec, err := s.progress.Latest(r.Context(), user.ID, content.ID(r.URL.Query().Get("courseId")))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"progress": rec.View()})
}

func (s *Server) getGamification(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())
	summary, err := s.gamification.Summary(r.Context(), user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) getNotifications(w http.ResponseWriter, r *http.Request) {
	user, _ := UserFrom(r.Context())

	limit := defaultNotificationLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.writeError(w, r, apperr.Validation("invalid limit", v))
			return
		}
		limit = min(n, maxNotificationLimit)
	}

	list := []notify.Notification{}
	if s.notifications != nil {
		var err error
		list, err = s.notifications.List(r.Context(), user.ID, limit)
		if err != nil {
			s.writeError(w, r, apperr.Persistence("list notifications", err))
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": list})
}
