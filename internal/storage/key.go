package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	keyPrefix      = "generated_images"
	maxPromptChars = 30
)

// ObjectKey builds the object key for a generated image:
// generated_images/<prompt fragment>_<timestamp>_<unique suffix>.png.
// The fragment keeps only letters, digits, spaces, dashes, and
// underscores from the first 30 characters of the prompt, with trailing
// spaces trimmed and the rest collapsed to underscores.
func ObjectKey(prompt string, now time.Time) string {
	return fmt.Sprintf("%s/%s_%s_%s.png",
		keyPrefix,
		sanitizePrompt(prompt),
		now.Format("20060102_150405"),
		uuid.NewString()[:8],
	)
}

func sanitizePrompt(prompt string) string {
	runes := []rune(prompt)
	if len(runes) > maxPromptChars {
		runes = runes[:maxPromptChars]
	}

	var b strings.Builder
	for _, r := range runes {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_':
			b.WriteRune(r)
		}
	}

	return strings.ReplaceAll(strings.TrimRight(b.String(), " "), " ", "_")
}
