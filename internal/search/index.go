// Package search provides a deterministic, concurrency-safe in-memory keyword
// index over the course catalog.
//
// Scoring uses Jaccard similarity between the query token set and each
// course's token set: score = |Q ∩ C| / |Q ∪ C|. The index is immutable after
// construction.
package search

import (
	"sort"
	"strings"

	"github.com/tbourn/course-advisor-backend/internal/domain"
)

// Result is a ranked course with its similarity score.
type Result struct {
	Course domain.Course `json:"course"`
	Score  float64       `json:"score"`
}

// Index is the minimal interface implemented by course indices.
type Index interface {
	TopK(query string, k int) []Result
	Len() int
}

// ----------------------------------------------------------------------------
// Options

type Option func(*config)

type config struct {
	stopwords map[string]struct{}
	maxDocs   int
}

func defaultConfig() config {
	return config{stopwords: defaultStopwords()}
}

// WithStopwords replaces the default stop-word list. An empty list disables
// stop-word removal.
func WithStopwords(words []string) Option {
	return func(c *config) {
		m := make(map[string]struct{}, len(words))
		for _, w := range words {
			w = strings.ToLower(strings.TrimSpace(w))
			if w != "" {
				m[w] = struct{}{}
			}
		}
		if len(m) == 0 {
			m = nil
		}
		c.stopwords = m
	}
}

// WithMaxDocs caps the number of indexed courses.
func WithMaxDocs(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.maxDocs = n
		}
	}
}

// ----------------------------------------------------------------------------
// Implementation

type doc struct {
	course domain.Course
	tokens map[string]struct{}
}

// CourseIndex ranks catalog courses against free-text queries.
type CourseIndex struct {
	cfg  config
	docs []doc
}

var _ Index = (*CourseIndex)(nil)

// NewCourseIndex builds an index over courses. Courses without any indexable
// text are skipped.
func NewCourseIndex(courses []domain.Course, opts ...Option) *CourseIndex {
	cfg := defaultConfig()
	for _, o := range opts {
		o(&cfg)
	}
	docs := make([]doc, 0, len(courses))
	for _, c := range courses {
		toks := tokenize(courseText(c), cfg.stopwords)
		if len(toks) == 0 {
			continue
		}
		docs = append(docs, doc{course: c, tokens: toks})
		if cfg.maxDocs > 0 && len(docs) >= cfg.maxDocs {
			break
		}
	}
	return &CourseIndex{cfg: cfg, docs: docs}
}

// Len returns the number of indexed courses.
func (i *CourseIndex) Len() int { return len(i.docs) }

// TopK returns up to k best-matching courses. k <= 0 means 10.
func (i *CourseIndex) TopK(q string, k int) []Result {
	if len(i.docs) == 0 || strings.TrimSpace(q) == "" {
		return nil
	}
	if k <= 0 {
		k = 10
	}
	qTokens := tokenize(q, i.cfg.stopwords)
	if len(qTokens) == 0 {
		return nil
	}
	qLen := len(qTokens)

	type scored struct {
		idx   int
		score float64
	}
	buf := make([]scored, 0, min(k*4, len(i.docs)))
	for n, d := range i.docs {
		over := overlap(qTokens, d.tokens)
		if over == 0 {
			continue
		}
		union := float64(qLen + len(d.tokens) - over)
		buf = append(buf, scored{idx: n, score: float64(over) / union})
	}
	if len(buf) == 0 {
		return nil
	}

	sort.SliceStable(buf, func(a, b int) bool {
		if buf[a].score != buf[b].score {
			return buf[a].score > buf[b].score
		}
		return i.docs[buf[a].idx].course.CourseID < i.docs[buf[b].idx].course.CourseID
	})

	if k > len(buf) {
		k = len(buf)
	}
	out := make([]Result, k)
	for n := 0; n < k; n++ {
		out[n] = Result{Course: i.docs[buf[n].idx].course, Score: buf[n].score}
	}
	return out
}

func overlap(a, b map[string]struct{}) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	n := 0
	if len(a) > len(b) {
		a, b = b, a
	}
	for k := range a {
		if _, ok := b[k]; ok {
			n++
		}
	}
	return n
}
