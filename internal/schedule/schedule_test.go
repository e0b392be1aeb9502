package schedule

import (
	"testing"
	"time"
)

func TestParse_Every(t *testing.T) {
	now := time.Date(2026, 1, 15, 10, 0, 0, 500, time.UTC)
	sched, err := Parse(Every, "30m")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got, want := sched.Next(now), now.Add(30*time.Minute); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParse_Cron(t *testing.T) {
	// every four hours on the hour
	now := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	sched, err := Parse(Cron, "0 */4 * * *")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)
	if got := sched.Next(now); !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		typ  Type
		spec string
	}{
		{Every, "bad"},
		{Every, "0s"},
		{Every, "-5m"},
		{Cron, "61 * * * *"},
		{Cron, "@every 1h"},
		{"at", "2026-02-01T09:00:00Z"},
		{"", "1h"},
	}
	for _, tt := range tests {
		if _, err := Parse(tt.typ, tt.spec); err == nil {
			t.Errorf("Parse(%q, %q): expected error", tt.typ, tt.spec)
		}
	}
}

func TestPeriod(t *testing.T) {
	from := time.Date(2026, 1, 15, 9, 30, 0, 0, time.UTC)
	tests := []struct {
		typ  Type
		spec string
		want time.Duration
	}{
		{Every, "2h", 2 * time.Hour},
		{Cron, "0 */4 * * *", 4 * time.Hour},
		{Cron, "30 2 * * *", 24 * time.Hour},
	}
	for _, tt := range tests {
		sched, err := Parse(tt.typ, tt.spec)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tt.spec, err)
		}
		if got := period(sched, from); got != tt.want {
			t.Errorf("period(%q) = %v, want %v", tt.spec, got, tt.want)
		}
	}
}

func TestBackoffDelay(t *testing.T) {
	tests := []struct {
		errs int
		max  time.Duration
		want time.Duration
	}{
		{0, 0, 30 * time.Second},
		{1, 0, 30 * time.Second},
		{2, 0, time.Minute},
		{3, 0, 5 * time.Minute},
		{4, 0, 15 * time.Minute},
		{5, 0, 60 * time.Minute},
		{100, 0, 60 * time.Minute},
		{5, 30 * time.Minute, 30 * time.Minute},
		{1, 10 * time.Second, 10 * time.Second},
	}
	for _, tt := range tests {
		if got := backoffDelay(tt.errs, tt.max); got != tt.want {
			t.Errorf("backoffDelay(%d, %v) = %v, want %v", tt.errs, tt.max, got, tt.want)
		}
	}
}
