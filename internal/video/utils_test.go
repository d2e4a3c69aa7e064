package video

import (
	"strings"
	"testing"
	"time"
)

func TestSlugify(t *testing.T) {
	tests := map[string]string{
		"Hello, World!":          "hello-world",
		"  --Already-Slug--  ":   "already-slug",
		"Crème brûlée (2024)":    "cr-me-br-l-e-2024",
		"***":                    "video",
		"Five Minute   Pancakes": "five-minute-pancakes",
	}
	for in, want := range tests {
		if got := slugify(in); got != want {
			t.Errorf("slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDriftWarning(t *testing.T) {
	if w := driftWarning("clip", 3*time.Second, 3200*time.Millisecond); w != "" {
		t.Errorf("expected no warning within tolerance, got %q", w)
	}
	if w := driftWarning("clip", 3*time.Second, 0); w != "" {
		t.Errorf("expected no warning for unknown duration, got %q", w)
	}
	w := driftWarning("assembled", 30*time.Second, 27*time.Second)
	if !strings.Contains(w, "27.00s") || !strings.Contains(w, "30.00s") {
		t.Errorf("unexpected warning %q", w)
	}
}

func TestWholeSeconds(t *testing.T) {
	tests := []struct {
		in   time.Duration
		want int
	}{
		{9 * time.Second, 9},
		{7500 * time.Millisecond, 8},
		{6999 * time.Millisecond, 7},
		{400 * time.Millisecond, 0},
	}
	for _, tt := range tests {
		if got := wholeSeconds(tt.in); got != tt.want {
			t.Errorf("wholeSeconds(%v) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
