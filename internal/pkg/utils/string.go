package utils

import (
	"time"
	"unicode/utf8"

	"github.com/bytedance/gopkg/lang/fastrand"
)

// Truncate cuts content to at most maxLen bytes without splitting a rune and
// marks the cut with "...".
func Truncate(content string, maxLen int) string {
	if maxLen <= 0 {
		return ""
	}
	if len(content) <= maxLen {
		return content
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(content[cut]) {
		cut--
	}
	return content[:cut] + "..."
}

func Truncate80(content string) string {
	return Truncate(content, 80)
}

// RandDuration returns a uniformly random duration in [0, max).
func RandDuration(max time.Duration) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(fastrand.Int63n(int64(max)))
}
