package cmd

import (
	"testing"
	"time"
)

func TestFormatListTime(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name string
		t    time.Time
		want string
	}{
		{
			name: "zero time",
			t:    time.Time{},
			want: "—",
		},
		{
			name: "earlier today",
			t:    now.Add(-2 * time.Hour),
			want: now.Add(-2 * time.Hour).Format("Today 15:04"),
		},
		{
			name: "this week",
			t:    now.Add(-3 * 24 * time.Hour),
			want: now.Add(-3 * 24 * time.Hour).Format("Mon 15:04"),
		},
		{
			name: "this year",
			t:    now.Add(-60 * 24 * time.Hour),
			want: now.Add(-60 * 24 * time.Hour).Format("Jan 02 15:04"),
		},
		{
			name: "older",
			t:    now.Add(-2 * 365 * 24 * time.Hour),
			want: now.Add(-2 * 365 * 24 * time.Hour).Format("2006-01-02"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatListTime(tt.t); got != tt.want {
				t.Errorf("formatListTime() = %q, want %q", got, tt.want)
			}
		})
	}
}
