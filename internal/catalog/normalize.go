// Package catalog holds the pure course catalog functions: payload
// normalization, filtering and the filter option lists offered to clients.
package catalog

import (
	"bytes"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/course-advisor-backend/internal/domain"
)

// Normalize flattens any of the catalog payload shapes the advisor service
// has produced into a course list:
//
//	[ course, ... ]
//	{ "courses": [ course, ... ] }
//	{ "courses": [ { "courses": [ course, ... ] } ] }
//
// Any other shape yields an empty list and a warning. Entries that do not
// decode as a course are skipped.
func Normalize(raw []byte) []domain.Course {
	items, ok := courseItems(bytes.TrimSpace(raw))
	if !ok {
		log.Warn().Int("bytes", len(raw)).Msg("unexpected course catalog format")
		return []domain.Course{}
	}

	out := make([]domain.Course, 0, len(items))
	for i, it := range items {
		var c domain.Course
		if err := json.Unmarshal(it, &c); err != nil {
			log.Warn().Err(err).Int("index", i).Msg("skipping malformed catalog entry")
			continue
		}
		out = append(out, c)
	}
	return out
}

func courseItems(raw []byte) ([]json.RawMessage, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var items []json.RawMessage
	if raw[0] == '[' {
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, false
		}
		return items, true
	}
	if raw[0] != '{' {
		return nil, false
	}

	var wrapped struct {
		Courses []json.RawMessage `json:"courses"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil || wrapped.Courses == nil {
		return nil, false
	}
	if len(wrapped.Courses) > 0 {
		var nested struct {
			Courses []json.RawMessage `json:"courses"`
		}
		first := bytes.TrimSpace(wrapped.Courses[0])
		if len(first) > 0 && first[0] == '{' && json.Unmarshal(first, &nested) == nil && nested.Courses != nil {
			return nested.Courses, true
		}
	}
	return wrapped.Courses, true
}
