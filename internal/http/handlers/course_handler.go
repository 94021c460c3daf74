// Course HTTP handlers.
//
// This file exposes the read-only course catalog:
//   - GET /courses               (filtered, paginated list)
//   - GET /courses/search        (free-text ranking)
//   - GET /courses/filters       (choices for the filter form)
//   - GET /courses/{id}          (details)
//   - GET /courses/{id}/trends   (historical statistics)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/course-advisor-backend/internal/catalog"
	"github.com/tbourn/course-advisor-backend/internal/domain"
	"github.com/tbourn/course-advisor-backend/internal/search"
	"github.com/tbourn/course-advisor-backend/internal/utils"
)

const (
	defaultSearchK = 10
	maxSearchK     = 50
)

// ListCoursesResponse wraps a page of courses and pagination information.
type ListCoursesResponse struct {
	Courses    []domain.Course `json:"courses"`
	Pagination Pagination      `json:"pagination"`
}

// SearchCoursesResponse carries ranked search hits.
type SearchCoursesResponse struct {
	Query   string          `json:"query" example:"machine learning"`
	Results []search.Result `json:"results"`
}

// splitMulti accepts both repeated and comma-separated list parameters.
func splitMulti(vals []string) []string {
	var out []string
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// ListCourses godoc
// @ID          listCourses
// @Summary     List courses (filtered, paginated)
// @Description Returns the catalog narrowed by every filter given. Omitted filters match everything.
// @Tags        Courses
// @Produce     json
// @Security    BearerAuth
//
// @Param       campus             query  string    false  "Campus"                example(IU Bloomington)
// @Param       term               query  string    false  "Term (strm)"           example(Fall 2024)
// @Param       department         query  string    false  "Department"            example(CSCI)
// @Param       keyword            query  string    false  "Keyword in name, title or description"
// @Param       courseName         query  string    false  "Course name or title fragment"
// @Param       maxCredits         query  number    false  "Upper credit bound"
// @Param       instructionMode    query  []string  false  "Modes of instruction"  collectionFormat(multi)
// @Param       hideClosedClasses  query  bool      false  "Only courses with an open class"
// @Param       semesters          query  []string  false  "Offered semesters"     collectionFormat(multi)
// @Param       page               query  int       false  "Page number"           minimum(1) default(1)
// @Param       page_size          query  int       false  "Items per page"        minimum(1) maximum(200) default(50)
//
// @Success     200  {object}  handlers.ListCoursesResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     502  {object}  handlers.ErrorResponse  "Advisor service failed"
// @Router      /courses [get]
func (h *Handlers) ListCourses(c *gin.Context) {
	var f catalog.Filters
	if err := c.ShouldBindQuery(&f); err != nil {
		bindError(c, "invalid filter")
		return
	}
	f.InstructionMode = splitMulti(f.InstructionMode)
	f.Semesters = splitMulti(f.Semesters)

	courses, err := h.courseSvc.FilterCourses(c.Request.Context(), f)
	if err != nil {
		writeError(c, err)
		return
	}
	items, p := paginate(c, courses, 50, 200)
	ok(c, http.StatusOK, ListCoursesResponse{Courses: items, Pagination: p})
}

// SearchCourses godoc
// @ID          searchCourses
// @Summary     Search courses
// @Description Ranks catalog courses against a free-text query by keyword overlap.
// @Tags        Courses
// @Produce     json
// @Security    BearerAuth
//
// @Param       q  query  string  true   "Query"               example(machine learning)
// @Param       k  query  int     false  "Maximum hit count"   minimum(1) maximum(50) default(10)
//
// @Success     200  {object}  handlers.SearchCoursesResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     502  {object}  handlers.ErrorResponse  "Advisor service failed"
// @Router      /courses/search [get]
func (h *Handlers) SearchCourses(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	k := utils.AtoiDefault(c.Query("k"), defaultSearchK)
	if k < 1 {
		k = defaultSearchK
	}
	k = min(k, maxSearchK)

	res, err := h.courseSvc.SearchCourses(c.Request.Context(), q, k)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, SearchCoursesResponse{Query: q, Results: res})
}

// FilterOptions godoc
// @ID          courseFilterOptions
// @Summary     Filter choices
// @Description Lists the campuses, terms, departments, semesters, modes and credit values offered by the filter form.
// @Tags        Courses
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {object}  catalog.Options
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /courses/filters [get]
func (h *Handlers) FilterOptions(c *gin.Context) {
	ok(c, http.StatusOK, h.courseSvc.FilterOptions())
}

// GetCourse godoc
// @ID          getCourse
// @Summary     Course details
// @Tags        Courses
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Course ID"
//
// @Success     200  {object}  domain.Course
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Course not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Advisor service failed"
// @Router      /courses/{id} [get]
func (h *Handlers) GetCourse(c *gin.Context) {
	course, err := h.mineSvc.GetCourseDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, course)
}

// GetCourseTrends godoc
// @ID          getCourseTrends
// @Summary     Course trends
// @Description Returns yearly enrollment, rating, GPA and workload statistics with an analysis text.
// @Tags        Courses
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Course ID"
//
// @Success     200  {object}  domain.CourseTrends
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "No trends for this course"
// @Failure     502  {object}  handlers.ErrorResponse  "Advisor service failed"
// @Router      /courses/{id}/trends [get]
func (h *Handlers) GetCourseTrends(c *gin.Context) {
	tr, err := h.courseSvc.GetCourseTrends(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, tr)
}
