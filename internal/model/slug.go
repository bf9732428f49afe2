package model

import "strings"

// Slugify derives a URL slug from an article title: lower-case, runs of
// anything outside [a-z0-9_] collapse to a single hyphen, no leading or
// trailing hyphens. "Test Article 1" → "test-article-1".
//
// Titles are restricted to letters, digits, spaces, hyphens and
// underscores before they get here, so the slug is deterministic and two
// titles that differ only in case or spacing produce the same slug.
func Slugify(title string) string {
	slug := make([]rune, 0, len(title))
	lastDash := false
	for _, ch := range strings.ToLower(strings.TrimSpace(title)) {
		if (ch >= 'a' && ch <= 'z') || (ch >= '0' && ch <= '9') || ch == '_' {
			slug = append(slug, ch)
			lastDash = false
			continue
		}
		if !lastDash {
			slug = append(slug, '-')
			lastDash = true
		}
	}
	return strings.Trim(string(slug), "-")
}
