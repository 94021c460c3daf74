package search

import (
	"regexp"
	"strings"

	"github.com/tbourn/course-advisor-backend/internal/domain"
)

// courseText joins the searchable fields of a course into one string.
// Course codes such as "CSCI-A 101" contribute both the department prefix
// and the number.
func courseText(c domain.Course) string {
	parts := []string{c.CourseName, c.CourseTitle, c.CourseDescription, c.Department}
	var b strings.Builder
	for _, p := range parts {
		p = strings.TrimSpace(normalizeWhitespace(p))
		if p == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p)
	}
	return b.String()
}

var wordRE = regexp.MustCompile(`\p{L}+\p{N}*|\p{N}+`)

func tokenize(s string, stop map[string]struct{}) map[string]struct{} {
	words := wordRE.FindAllString(strings.ToLower(s), -1)
	if len(words) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		if stop != nil {
			if _, skip := stop[w]; skip {
				continue
			}
		}
		out[w] = struct{}{}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func normalizeWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevSpace := false
	for _, r := range s {
		if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
			if !prevSpace {
				b.WriteByte(' ')
				prevSpace = true
			}
			continue
		}
		prevSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for", "from", "i",
		"in", "into", "is", "it", "me", "my", "of", "on", "or", "some", "that",
		"the", "this", "to", "want", "what", "which", "with", "course", "courses",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
