package progress

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/apperr"
	"github.com/AverEE0/corporate-learning-platform-v2-sub000/internal/content"
)

func TestPercentage(t *testing.T) {
	tests := []struct {
		name                          string
		lessons, lesson, block, count int
		want                          int
	}{
		{"worked example first advance", 2, 0, 1, 2, 50},
		{"worked example final block", 2, 1, 0, 1, 100},
		{"first of three", 1, 0, 0, 3, 33},
		{"second of three", 1, 0, 1, 3, 67},
		{"mid course", 4, 2, 1, 4, 63},
		{"empty course", 0, 0, 0, 0, 0},
		{"clamped", 1, 3, 9, 1, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Percentage(tt.lessons, tt.lesson, tt.block, tt.count)
			if got != tt.want {
				t.Errorf("Percentage(%d,%d,%d,%d) = %d, want %d",
					tt.lessons, tt.lesson, tt.block, tt.count, got, tt.want)
			}
		})
	}
}

type fakeWriter struct {
	mu      sync.Mutex
	saved   []Record
	fail    bool
	delay   time.Duration
	active  int
	overlap bool
}

func (f *fakeWriter) Save(_ context.Context, rec Record) error {
	f.mu.Lock()
	f.active++
	if f.active > 1 {
		f.overlap = true
	}
	delay, fail := f.delay, f.fail
	f.mu.Unlock()

	time.Sleep(delay)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.active--
	if fail {
		return errors.New("connection reset")
	}
	f.saved = append(f.saved, rec)
	return nil
}

func (f *fakeWriter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.saved)
}

func (f *fakeWriter) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

func at(lesson, block int) Update {
	return Update{Position: content.Position{Lesson: lesson, Block: block}, BlockID: "b"}
}

func TestSinkSuppressesDuplicatePosition(t *testing.T) {
	w := &fakeWriter{}
	s := NewSink("u1", "42", w, WithDebounce(10*time.Millisecond))

	s.Schedule(at(0, 1))
	time.Sleep(30 * time.Millisecond)
	s.Schedule(at(0, 1))
	time.Sleep(30 * time.Millisecond)
	s.Close()

	assert.Equal(t, 1, w.count())
}

func TestSinkDebouncesToLatestPosition(t *testing.T) {
	w := &fakeWriter{}
	s := NewSink("u1", "42", w, WithDebounce(30*time.Millisecond))

	s.Schedule(at(0, 0))
	s.Schedule(at(0, 1))
	s.Schedule(at(1, 0))
	require.Eventually(t, func() bool { return w.count() == 1 }, time.Second, 5*time.Millisecond)
	s.Close()

	assert.Equal(t, 1, w.count())
	w.mu.Lock()
	defer w.mu.Unlock()
	assert.Equal(t, "u1", w.saved[0].UserID)
	assert.Equal(t, "42", w.saved[0].CourseID)
}

func TestSinkRetriesPositionAfterFailure(t *testing.T) {
	w := &fakeWriter{fail: true}
	s := NewSink("u1", "42", w, WithDebounce(5*time.Millisecond))

	s.Schedule(at(0, 1))
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 0, w.count())

	w.setFail(false)
	s.Schedule(at(0, 1))
	require.Eventually(t, func() bool { return w.count() == 1 }, time.Second, 5*time.Millisecond)
	s.Close()
}

func TestSinkKeepsOneWriteInFlight(t *testing.T) {
	w := &fakeWriter{delay: 40 * time.Millisecond}
	s := NewSink("u1", "42", w, WithDebounce(5*time.Millisecond))

	s.Schedule(at(0, 0))
	time.Sleep(15 * time.Millisecond)
	s.Schedule(at(0, 1))
	s.Commit(Update{Position: content.Position{Lesson: 0, Block: 2}, Completed: true, Percentage: 100})
	s.Close()

	assert.False(t, w.overlap, "writes must not overlap")
	w.mu.Lock()
	defer w.mu.Unlock()
	// The scheduled (0,1) snapshot is older than the commit and never lands.
	require.Len(t, w.saved, 2)
	assert.True(t, w.saved[1].Completed)
	assert.Equal(t, 100, w.saved[1].CompletionPercentage)
}

func TestSinkCommitsLandInOrder(t *testing.T) {
	w := &fakeWriter{delay: 5 * time.Millisecond}
	s := NewSink("u1", "42", w, WithDebounce(time.Hour))

	for i := 1; i <= 20; i++ {
		s.Commit(Update{Position: content.Position{Block: i}, Percentage: i * 5, Completed: i == 20})
	}
	s.Close()

	assert.False(t, w.overlap, "writes must not overlap")
	w.mu.Lock()
	defer w.mu.Unlock()
	require.NotEmpty(t, w.saved)
	for i := 1; i < len(w.saved); i++ {
		if w.saved[i].CompletionPercentage < w.saved[i-1].CompletionPercentage {
			t.Fatalf("write %d went back from %d%% to %d%%", i,
				w.saved[i-1].CompletionPercentage, w.saved[i].CompletionPercentage)
		}
	}
	final := w.saved[len(w.saved)-1]
	assert.Equal(t, 100, final.CompletionPercentage)
	assert.True(t, final.Completed)
}

func TestSinkCompletionCommitIsLastWrite(t *testing.T) {
	for i := 0; i < 50; i++ {
		w := &fakeWriter{}
		s := NewSink("u1", "42", w, WithDebounce(time.Hour))

		s.Commit(Update{Position: content.Position{Block: 1}, Percentage: 50})
		s.Commit(Update{Position: content.Position{Block: 2}, Percentage: 100, Completed: true})
		s.Close()

		w.mu.Lock()
		final := w.saved[len(w.saved)-1]
		w.mu.Unlock()
		require.Equal(t, 100, final.CompletionPercentage, "run %d", i)
		require.True(t, final.Completed, "run %d", i)
	}
}

func TestSinkCommitSupersedesScheduled(t *testing.T) {
	w := &fakeWriter{}
	s := NewSink("u1", "42", w, WithDebounce(time.Hour))

	s.Schedule(at(0, 1))
	s.Commit(Update{Position: content.Position{Lesson: 1}, Percentage: 100, Completed: true})
	s.Close()

	w.mu.Lock()
	defer w.mu.Unlock()
	require.Len(t, w.saved, 1)
	assert.True(t, w.saved[0].Completed)
}

func TestSinkCloseFlushesPending(t *testing.T) {
	w := &fakeWriter{}
	s := NewSink("u1", "42", w, WithDebounce(time.Hour))

	s.Schedule(at(1, 0))
	s.Close()
	assert.Equal(t, 1, w.count())

	s.Schedule(at(1, 1))
	s.Commit(at(1, 2))
	assert.Equal(t, 1, w.count(), "closed sink ignores new updates")
}

type memRepo struct {
	mu   sync.Mutex
	recs map[string]Record
	err  error
}

func (m *memRepo) UpsertProgress(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.recs == nil {
		m.recs = map[string]Record{}
	}
	m.recs[rec.UserID+"/"+rec.CourseID+"/"+rec.LessonID+"/"+rec.BlockID] = rec
	return nil
}

func (m *memRepo) LatestProgress(_ context.Context, userID, courseID string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.recs {
		if r.UserID == userID && r.CourseID == courseID {
			r := r
			return &r, nil
		}
	}
	return nil, nil
}

func (m *memRepo) CompletedCourseCount(context.Context, string) (int, error) { return 0, nil }

func intp(v int) *int { return &v }

func TestServiceSubmitValidation(t *testing.T) {
	svc := NewService(&memRepo{}, nil)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     SubmitRequest
		wantErr bool
	}{
		{"minimal", SubmitRequest{CourseID: "42"}, false},
		{"full", SubmitRequest{CourseID: "42", LessonID: "1", BlockID: "b1", CompletionPercentage: intp(100), Score: intp(0), TimeSpent: intp(90)}, false},
		{"missing course", SubmitRequest{}, true},
		{"non numeric course", SubmitRequest{CourseID: "abc"}, true},
		{"pct over 100", SubmitRequest{CourseID: "42", CompletionPercentage: intp(101)}, true},
		{"negative pct", SubmitRequest{CourseID: "42", CompletionPercentage: intp(-1)}, true},
		{"negative score", SubmitRequest{CourseID: "42", Score: intp(-3)}, true},
		{"negative time", SubmitRequest{CourseID: "42", TimeSpent: intp(-1)}, true},
		{"bad answers", SubmitRequest{CourseID: "42", Answers: json.RawMessage(`{`)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.Submit(ctx, "u1", tt.req)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestServiceWrapsPersistenceErrors(t *testing.T) {
	svc := NewService(&memRepo{err: errors.New("database is locked")}, nil)
	err := svc.Submit(context.Background(), "u1", SubmitRequest{CourseID: "42"})
	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))

	_, err = svc.Latest(context.Background(), "u1", "not-a-number")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestRemoteWriter(t *testing.T) {
	var got SubmitRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	w := NewRemoteWriter(srv.URL, "tok", time.Second)
	err := w.Save(context.Background(), Record{CourseID: "42", BlockID: "b1", CompletionPercentage: 50, Completed: true})
	require.NoError(t, err)

	assert.Equal(t, "Bearer tok", auth)
	assert.Equal(t, content.ID("42"), got.CourseID)
	require.NotNil(t, got.CompletionPercentage)
	assert.Equal(t, 50, *got.CompletionPercentage)
	require.NotNil(t, got.Completed)
	assert.True(t, *got.Completed)
}

func TestRemoteWriterLatest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("courseId") != "42" {
			_, _ = w.Write([]byte(`{"progress":null}`))
			return
		}
		_, _ = w.Write([]byte(`{"progress":{"completionPercentage":50,"timeSpent":30,"score":10,"completed":false,"answers":{},"lessonId":"1","blockId":"11"}}`))
	}))
	defer srv.Close()

	w := NewRemoteWriter(srv.URL, "tok", time.Second)
	rec, err := w.Latest(context.Background(), "42")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "11", rec.BlockID)
	assert.Equal(t, 50, rec.CompletionPercentage)
	assert.Equal(t, 10, rec.Score)

	rec, err = w.Latest(context.Background(), "7")
	require.NoError(t, err)
	assert.Nil(t, rec)
}
