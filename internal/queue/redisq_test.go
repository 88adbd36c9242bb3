package queue

import (
	"testing"
	"time"
)

func TestKeyLayout(t *testing.T) {
	q := New(nil, "profile-scrape", 3, time.Second)

	if got := q.waitKey(); got != "queue:profile-scrape:wait" {
		t.Errorf("unexpected wait key: %s", got)
	}
	if got := q.delayedKey(); got != "queue:profile-scrape:delayed" {
		t.Errorf("unexpected delayed key: %s", got)
	}
	if got := q.jobKey("req-1"); got != "queue:profile-scrape:job:req-1" {
		t.Errorf("unexpected job key: %s", got)
	}
}

func TestRetryDelayDoublesPerAttempt(t *testing.T) {
	q := New(nil, "profile-scrape", 5, time.Second)

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
	}
	for _, tt := range tests {
		if got := q.retryDelay(tt.attempt); got != tt.want {
			t.Errorf("attempt %d: expected %s, got %s", tt.attempt, tt.want, got)
		}
	}
}
