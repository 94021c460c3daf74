package handlers

import (
	"net/http"
	"testing"

	"github.com/tbourn/course-advisor-backend/internal/catalog"
	"github.com/tbourn/course-advisor-backend/internal/domain"
	"github.com/tbourn/course-advisor-backend/internal/services"
)

func testCourses() []domain.Course {
	class := func(campus, mode string, closed bool) domain.CourseClass {
		return domain.CourseClass{Campus: campus, ModeOfInstruction: mode, Closed: closed, Strm: "Fall 2024"}
	}
	return []domain.Course{
		{CourseID: "1", CourseName: "CSCI-C 200", CourseTitle: "Introduction to Computers and Programming", Department: "CSCI", MaxCredits: 4,
			CourseDetails: domain.CourseDetails{Classes: []domain.CourseClass{class("IU Bloomington", "In-Person", false)}}},
		{CourseID: "2", CourseName: "CSCI-B 455", CourseTitle: "Principles of Machine Learning", Department: "CSCI", MaxCredits: 3,
			CourseDetails: domain.CourseDetails{Classes: []domain.CourseClass{class("IU Bloomington", "Online", true)}}},
		{CourseID: "3", CourseName: "ECON-E 201", CourseTitle: "Introduction to Microeconomics", Department: "ECON", MaxCredits: 3,
			CourseDetails: domain.CourseDetails{Classes: []domain.CourseClass{class("IU Bloomington", "Hybrid", false)}}},
	}
}

func TestListCourses_BindsFilters(t *testing.T) {
	f := newFixture(t)
	f.courses.courses = testCourses()

	resp := decode[ListCoursesResponse](t, f.do(http.MethodGet, "/courses?department=CSCI", nil))
	if len(resp.Courses) != 2 || resp.Pagination.Total != 2 {
		t.Fatalf("department filter: %+v", resp)
	}

	resp = decode[ListCoursesResponse](t, f.do(http.MethodGet, "/courses?instructionMode=Online,Hybrid&hideClosedClasses=true", nil))
	if len(resp.Courses) != 1 || resp.Courses[0].CourseID != "3" {
		t.Fatalf("mode+closed filter: %+v", resp.Courses)
	}
	if got := f.courses.gotF.InstructionMode; len(got) != 2 || got[0] != "Online" || got[1] != "Hybrid" {
		t.Fatalf("comma list not split: %v", got)
	}

	resp = decode[ListCoursesResponse](t, f.do(http.MethodGet, "/courses?instructionMode=Online&instructionMode=In-Person&maxCredits=3.5", nil))
	if len(resp.Courses) != 1 || resp.Courses[0].CourseID != "2" {
		t.Fatalf("repeated modes + credits: %+v", resp.Courses)
	}

	resp = decode[ListCoursesResponse](t, f.do(http.MethodGet, "/courses?page=2&page_size=2", nil))
	if len(resp.Courses) != 1 || resp.Pagination.TotalPages != 2 {
		t.Fatalf("pagination: %+v", resp)
	}

	expectError(t, f.do(http.MethodGet, "/courses?maxCredits=lots", nil), 400, ErrCodeBadRequest)
}

func TestListCourses_UpstreamFailure(t *testing.T) {
	f := newFixture(t)
	f.courses.err = &services.ExternalError{Service: "advisor", Op: "course catalog", Status: 500}
	expectError(t, f.do(http.MethodGet, "/courses", nil), 502, ErrCodeUpstreamFailed)
}

func TestSearchCourses(t *testing.T) {
	f := newFixture(t)
	f.courses.courses = testCourses()

	resp := decode[SearchCoursesResponse](t, f.do(http.MethodGet, "/courses/search?q=machine+learning", nil))
	if len(resp.Results) == 0 || resp.Results[0].Course.CourseID != "2" || f.courses.gotK != defaultSearchK {
		t.Fatalf("search: %+v k=%d", resp, f.courses.gotK)
	}

	f.do(http.MethodGet, "/courses/search?q=intro&k=500", nil)
	if f.courses.gotK != maxSearchK {
		t.Fatalf("k not clamped: %d", f.courses.gotK)
	}
	f.do(http.MethodGet, "/courses/search?q=intro&k=-3", nil)
	if f.courses.gotK != defaultSearchK {
		t.Fatalf("k not defaulted: %d", f.courses.gotK)
	}
}

func TestCourseDetailsTrendsAndOptions(t *testing.T) {
	f := newFixture(t)
	f.mine.details = func(id string) (domain.Course, error) {
		if id == "404" {
			return domain.Course{}, services.ErrCourseNotFound
		}
		return domain.Course{CourseID: id, CourseName: "CSCI-C 200"}, nil
	}
	f.courses.trends = func(id string) (domain.CourseTrends, error) {
		if id == "404" {
			return domain.CourseTrends{}, services.ErrTrendsNotFound
		}
		return domain.CourseTrends{CourseID: id, Trends: []domain.CourseTrend{{Year: 2023, AvgGPA: 3.4}}}, nil
	}

	if c := decode[domain.Course](t, f.do(http.MethodGet, "/courses/1", nil)); c.CourseName != "CSCI-C 200" {
		t.Fatalf("course: %+v", c)
	}
	expectError(t, f.do(http.MethodGet, "/courses/404", nil), 404, ErrCodeNotFound)

	if tr := decode[domain.CourseTrends](t, f.do(http.MethodGet, "/courses/1/trends", nil)); len(tr.Trends) != 1 || tr.Trends[0].Year != 2023 {
		t.Fatalf("trends: %+v", tr)
	}
	expectError(t, f.do(http.MethodGet, "/courses/404/trends", nil), 404, ErrCodeNotFound)

	opts := decode[catalog.Options](t, f.do(http.MethodGet, "/courses/filters", nil))
	if len(opts.Campuses) == 0 || opts.Campuses[0] != catalog.AnyCampus {
		t.Fatalf("options: %+v", opts)
	}
}
