package catalog

import (
	"slices"
	"strings"

	"github.com/tbourn/course-advisor-backend/internal/domain"
)

// Placeholder values of the filter form that mean "no filter".
const (
	AnyCampus     = "Select Campus"
	AnyTerm       = "Select Term"
	AnyDepartment = "All"
)

// Filters narrows a course list. Every field is optional; the zero value
// matches every course.
type Filters struct {
	Campus            string   `form:"campus" json:"campus,omitempty"`
	Term              string   `form:"term" json:"term,omitempty"`
	Department        string   `form:"department" json:"department,omitempty"`
	Keyword           string   `form:"keyword" json:"keyword,omitempty"`
	CourseName        string   `form:"courseName" json:"courseName,omitempty"`
	MaxCredits        float64  `form:"maxCredits" json:"maxCredits,omitempty"`
	InstructionMode   []string `form:"instructionMode" json:"instructionMode,omitempty"`
	HideClosedClasses bool     `form:"hideClosedClasses" json:"hideClosedClasses,omitempty"`
	Semesters         []string `form:"semesters" json:"semesters,omitempty"`
}

// FilterCourses returns the courses that satisfy every active filter, in
// input order. The input slice is not modified.
func FilterCourses(courses []domain.Course, f Filters) []domain.Course {
	preds := f.predicates()
	out := make([]domain.Course, 0, len(courses))
	for _, c := range courses {
		if matchAll(&c, preds) {
			out = append(out, c)
		}
	}
	return out
}

type predicate func(*domain.Course) bool

func matchAll(c *domain.Course, preds []predicate) bool {
	for _, p := range preds {
		if !p(c) {
			return false
		}
	}
	return true
}

func (f Filters) predicates() []predicate {
	var ps []predicate

	if f.Campus != "" && f.Campus != AnyCampus {
		campus := f.Campus
		ps = append(ps, anyClass(func(cl *domain.CourseClass) bool { return cl.Campus == campus }))
	}
	if f.Term != "" && f.Term != AnyTerm {
		term := f.Term
		ps = append(ps, anyClass(func(cl *domain.CourseClass) bool { return cl.Strm == term }))
	}
	if f.Department != "" && f.Department != AnyDepartment {
		dept := f.Department
		ps = append(ps, func(c *domain.Course) bool { return c.Department == dept })
	}
	if f.Keyword != "" {
		kw := strings.ToLower(f.Keyword)
		ps = append(ps, func(c *domain.Course) bool {
			return containsFold(c.CourseName, kw) ||
				containsFold(c.CourseTitle, kw) ||
				containsFold(c.CourseDescription, kw)
		})
	}
	if f.CourseName != "" {
		name := strings.ToLower(f.CourseName)
		ps = append(ps, func(c *domain.Course) bool {
			return containsFold(c.CourseName, name) || containsFold(c.CourseTitle, name)
		})
	}
	if f.MaxCredits > 0 {
		limit := f.MaxCredits
		ps = append(ps, func(c *domain.Course) bool { return c.MaxCredits <= limit })
	}
	if len(f.InstructionMode) > 0 {
		modes := f.InstructionMode
		ps = append(ps, anyClass(func(cl *domain.CourseClass) bool {
			return slices.Contains(modes, cl.ModeOfInstruction)
		}))
	}
	if f.HideClosedClasses {
		ps = append(ps, anyClass(func(cl *domain.CourseClass) bool { return !cl.Closed }))
	}
	if len(f.Semesters) > 0 {
		sems := f.Semesters
		ps = append(ps, func(c *domain.Course) bool {
			for _, s := range sems {
				if strings.Contains(c.OfferedSemester, s) {
					return true
				}
			}
			return false
		})
	}
	return ps
}

// anyClass matches a course when at least one of its classes satisfies fn.
func anyClass(fn func(*domain.CourseClass) bool) predicate {
	return func(c *domain.Course) bool {
		for i := range c.CourseDetails.Classes {
			if fn(&c.CourseDetails.Classes[i]) {
				return true
			}
		}
		return false
	}
}

// containsFold reports whether lower-cased s contains needle, which must
// already be lower case.
func containsFold(s, needle string) bool {
	return strings.Contains(strings.ToLower(s), needle)
}

// Active reports whether any filter is set.
func (f Filters) Active() bool {
	return len(f.predicates()) > 0
}
