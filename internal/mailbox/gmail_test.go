package mailbox

import (
	"testing"
	"time"
)

func TestNewerThanQuery(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		since time.Time
		want  string
	}{
		{"twelve hours", now.Add(-12 * time.Hour), "newer_than:12h"},
		{"partial hour rounds up", now.Add(-90 * time.Minute), "newer_than:2h"},
		{"sub-hour clamps to one", now.Add(-10 * time.Minute), "newer_than:1h"},
		{"future since clamps to one", now.Add(time.Hour), "newer_than:1h"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := newerThanQuery(tt.since, now); got != tt.want {
				t.Errorf("newerThanQuery = %q, want %q", got, tt.want)
			}
		})
	}
}
