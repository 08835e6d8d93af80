package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingNotifier struct {
	name  string
	err   error
	block time.Duration

	mu    sync.Mutex
	calls []Completion
}

func (r *recordingNotifier) Channel() string { return r.name }

func (r *recordingNotifier) Notify(ctx context.Context, c Completion) error {
	if r.block > 0 {
		select {
		case <-time.After(r.block):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, c)
	return r.err
}

func (r *recordingNotifier) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.calls)
}

type panicNotifier struct{}

func (panicNotifier) Channel() string { return "broken" }
func (panicNotifier) Notify(context.Context, Completion) error {
	panic("boom")
}

func TestDispatchInvokesEveryChannelOnce(t *testing.T) {
	ok := &recordingNotifier{name: "in_app"}
	failing := &recordingNotifier{name: "email", err: errors.New("smtp down")}
	slow := &recordingNotifier{name: "crm", block: time.Second}

	d := NewDispatcher(20*time.Millisecond, nil, nil, ok, failing, slow, panicNotifier{})
	assert.Equal(t, []string{"in_app", "email", "crm", "broken"}, d.Channels())

	start := time.Now()
	d.Dispatch(Completion{UserID: "u1", CourseID: "42", Score: 10})
	assert.Less(t, time.Since(start), 20*time.Millisecond, "dispatch does not wait for delivery")
	d.Wait()

	assert.Equal(t, 1, ok.count())
	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 0, slow.count(), "timed out before recording")
}

type memNotifications struct {
	mu    sync.Mutex
	items []Notification
}

func (m *memNotifications) CreateNotification(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, n)
	return nil
}

func TestInApp(t *testing.T) {
	repo := &memNotifications{}
	n := NewInApp(repo)

	err := n.Notify(context.Background(), Completion{UserID: "u1", CourseID: "42", CourseTitle: "Data Privacy", Score: 30})
	require.NoError(t, err)
	require.Len(t, repo.items, 1)
	assert.NotEmpty(t, repo.items[0].ID)
	assert.Equal(t, "u1", repo.items[0].UserID)
	assert.Contains(t, repo.items[0].Body, "Data Privacy")
}

func TestEmail(t *testing.T) {
	var sent *mail.SGMailV3
	e := NewEmailWithSender("academy@example.com", "Academy", func(_ context.Context, msg *mail.SGMailV3) (int, error) {
		sent = msg
		return http.StatusAccepted, nil
	})

	require.NoError(t, e.Notify(context.Background(), Completion{UserID: "u1", Email: "ada@example.com", CourseTitle: "Fire Safety"}))
	require.NotNil(t, sent)
	assert.Equal(t, "You completed Fire Safety", sent.Subject)
	assert.Equal(t, "ada@example.com", sent.Personalizations[0].To[0].Address)

	assert.Error(t, e.Notify(context.Background(), Completion{UserID: "u2"}), "no address")

	rejected := NewEmailWithSender("a@example.com", "A", func(context.Context, *mail.SGMailV3) (int, error) {
		return http.StatusUnauthorized, nil
	})
	assert.Error(t, rejected.Notify(context.Background(), Completion{Email: "x@example.com"}))
}

func TestChatAndCRM(t *testing.T) {
	var mu sync.Mutex
	got := map[string]map[string]any{}
	var crmAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		got[r.URL.Path] = body
		if r.URL.Path == "/crm/learners/u1/completions" {
			crmAuth = r.Header.Get("Authorization")
		}
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := Completion{UserID: "u1", CourseID: "42", CourseTitle: "Fire Safety", Score: 20}
	require.NoError(t, NewChat(srv.URL+"/hook").Notify(context.Background(), c))
	require.NoError(t, NewCRM(srv.URL+"/crm", "key-1").Notify(context.Background(), c))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "42", got["/hook"]["courseId"])
	assert.Equal(t, "42", got["/crm/learners/u1/completions"]["courseId"])
	assert.Equal(t, float64(20), got["/crm/learners/u1/completions"]["score"])
	assert.Equal(t, "Bearer key-1", crmAuth)
}

func TestWebhookErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	assert.Error(t, NewChat(srv.URL).Notify(context.Background(), Completion{UserID: "u1"}))
	assert.Error(t, NewCRM(srv.URL, "").Notify(context.Background(), Completion{UserID: "u1"}))
}
