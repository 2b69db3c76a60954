package storage

import (
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestObjectKeyShape(t *testing.T) {
	now := time.Date(2026, 8, 28, 14, 30, 5, 0, time.UTC)
	key := ObjectKey("a lighthouse at dusk", now)

	pattern := regexp.MustCompile(`^generated_images/a_lighthouse_at_dusk_20260828_143005_[0-9a-f]{8}\.png$`)
	if !pattern.MatchString(key) {
		t.Errorf("ObjectKey = %q, does not match %s", key, pattern)
	}
}

func TestObjectKeyUnique(t *testing.T) {
	now := time.Now().UTC()
	if ObjectKey("same prompt", now) == ObjectKey("same prompt", now) {
		t.Error("two keys for the same prompt and time should differ")
	}
}

func TestSanitizePrompt(t *testing.T) {
	tests := []struct {
		prompt string
		want   string
	}{
		{"a cat", "a_cat"},
		{"hello, world!", "hello_world"},
		{"slash/back\\slash", "slashbackslash"},
		{"trailing spaces   ", "trailing_spaces"},
		{"dash-and_underscore", "dash-and_underscore"},
		{"", ""},
		{strings.Repeat("x", 50), strings.Repeat("x", 30)},
		{"emoji 🦊 fox", "emoji__fox"},
	}

	for _, tt := range tests {
		if got := sanitizePrompt(tt.prompt); got != tt.want {
			t.Errorf("sanitizePrompt(%q) = %q, want %q", tt.prompt, got, tt.want)
		}
	}
}
