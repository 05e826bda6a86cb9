package classify

import (
	"regexp"
	"strings"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalize prepares a model response for rule matching: the trailing end
// token and everything after it is dropped, text is lowercased, hyphens and
// dashes become spaces, and whitespace runs collapse to single spaces. Small
// models spell "no-dog", "no dog" and "no‑dog" interchangeably; normalizing
// lets one pattern cover them all.
func Normalize(text string) string {
	if cut := strings.Index(text, "<|end|>"); cut >= 0 {
		text = text[:cut]
	}
	text = strings.ToLower(text)
	text = strings.NewReplacer("‑", " ", "–", " ", "-", " ").Replace(text)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(text, " "))
}

func containsKeyword(normalized, keyword string) bool {
	return strings.Contains(normalized, strings.ToLower(keyword))
}
