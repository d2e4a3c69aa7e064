package video

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// slugify lowercases s and collapses every run of non-alphanumerics into a
// single dash.
func slugify(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "video"
	}
	return out
}

// driftWarning describes how far measured is from expected, or returns ""
// when it is within max(500ms, 5%).
func driftWarning(what string, expected, measured time.Duration) string {
	if measured <= 0 {
		return ""
	}
	drift := measured - expected
	if drift < 0 {
		drift = -drift
	}
	tolerance := max(500*time.Millisecond, expected/20)
	if drift <= tolerance {
		return ""
	}
	return fmt.Sprintf("%s duration %.2fs differs from expected %.2fs", what, measured.Seconds(), expected.Seconds())
}

// wholeSeconds rounds d to the nearest second.
func wholeSeconds(d time.Duration) int {
	return int(d.Round(time.Second) / time.Second)
}
