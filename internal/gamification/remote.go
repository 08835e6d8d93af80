package gamification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// Remote reads a learner's standing from a learning platform API
// (GET {base}/api/gamification). The learner is the token's subject.
type Remote struct {
	client *resty.Client
}

func NewRemote(baseURL, token string, timeout time.Duration) *Remote {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetAuthToken(token).
		SetHeader("Accept", "application/json")
	return &Remote{client: client}
}

// Summary ignores userID; the server answers for the token's subject.
func (r *Remote) Summary(ctx context.Context, _ string) (Summary, error) {
	var out Summary
	resp, err := r.client.R().
		SetContext(ctx).
		SetResult(&out).
		Get("/api/gamification")
	if err != nil {
		return Summary{}, fmt.Errorf("get gamification: %w", err)
	}
	if resp.IsError() {
		return Summary{}, fmt.Errorf("get gamification: status %d", resp.StatusCode())
	}
	return out, nil
}
