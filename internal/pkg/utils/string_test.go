package utils

import (
	"testing"
	"time"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"a longer sentence", 8, "a longer..."},
		{"héllo", 2, "h..."},
		{"anything", 0, ""},
	}
	for _, tt := range tests {
		if got := Truncate(tt.in, tt.max); got != tt.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tt.in, tt.max, got, tt.want)
		}
	}
}

func TestRandDuration(t *testing.T) {
	if RandDuration(0) != 0 || RandDuration(-time.Second) != 0 {
		t.Fatal("non-positive max must yield zero")
	}
	for i := 0; i < 100; i++ {
		if d := RandDuration(time.Second); d < 0 || d >= time.Second {
			t.Fatalf("RandDuration out of range: %v", d)
		}
	}
}
