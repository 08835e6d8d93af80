package gamification

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoteSummary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/gamification" || r.Header.Get("Authorization") != "Bearer tok" {
			http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"achievements":[{"code":"first_course","name":"First Steps","description":"","points":50,"awarded_at":"2026-01-02T03:04:05Z"}],"xp":{"total_xp":170,"level":2,"xp_to_next_level":282}}`))
	}))
	defer srv.Close()

	sum, err := NewRemote(srv.URL, "tok", time.Second).Summary(context.Background(), "ignored")
	require.NoError(t, err)
	assert.Equal(t, 170, sum.XP.TotalXP)
	assert.Equal(t, 2, sum.XP.Level)
	assert.Equal(t, 282, sum.XP.XPToNextLevel)
	require.Len(t, sum.Achievements, 1)
	assert.Equal(t, FirstCourse, sum.Achievements[0].Code)

	_, err = NewRemote(srv.URL, "bad", time.Second).Summary(context.Background(), "")
	assert.Error(t, err)
}
