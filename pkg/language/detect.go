// Package language provides best-effort language detection for artifact
// text and generated answers.
package language

import (
	"strings"

	"github.com/abadojack/whatlanggo"
)

// DefaultLanguage is used when detection fails or is unreliable.
const DefaultLanguage = "en"

// Detect returns the ISO 639-1 code of the dominant language in text.
// The second return is false when the text is empty or detection is
// unreliable; callers then fall back to DefaultLanguage.
func Detect(text string) (string, bool) {
	if strings.TrimSpace(text) == "" {
		return DefaultLanguage, false
	}

	info := whatlanggo.Detect(text)
	code := info.Lang.Iso6391()
	if code == "" || !info.IsReliable() {
		return DefaultLanguage, false
	}

	return code, true
}
