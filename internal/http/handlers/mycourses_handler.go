// My-courses HTTP handlers.
//
//   - GET    /my-courses        (saved courses joined with catalog details)
//   - POST   /my-courses        (save a course)
//   - DELETE /my-courses/{id}   (remove a saved course)
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// AddMyCourseRequest is the JSON payload for saving a course.
type AddMyCourseRequest struct {
	CourseID string `json:"courseId" binding:"required" example:"CSCI-C 200"`
	// Override creates another record even when the course is already saved.
	Override bool `json:"override,omitempty"`
}

// ListMyCourses godoc
// @ID          listMyCourses
// @Summary     Saved courses
// @Description Returns the signed-in user's saved courses, each joined with its catalog details, in saved order.
// @Tags        MyCourses
// @Produce     json
// @Security    BearerAuth
//
// @Success     200  {array}   domain.SavedCourse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "A saved course is missing from the catalog"
// @Failure     502  {object}  handlers.ErrorResponse  "Upstream failed"
// @Router      /my-courses [get]
func (h *Handlers) ListMyCourses(c *gin.Context) {
	saved, err := h.mineSvc.GetUserCourses(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, saved)
}

// AddMyCourse godoc
// @ID          addMyCourse
// @Summary     Save a course
// @Description Saves a catalog course for the signed-in user. Saving an already saved course returns the existing record unless override is set.
// @Tags        MyCourses
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.AddMyCourseRequest  true  "Course to save"
//
// @Success     201  {object}  domain.MyCourse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Course not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Upstream failed"
// @Router      /my-courses [post]
func (h *Handlers) AddMyCourse(c *gin.Context) {
	var req AddMyCourseRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.CourseID) == "" {
		bindError(c, "courseId required")
		return
	}

	mc, err := h.mineSvc.AddCourseToMyCourses(c.Request.Context(), strings.TrimSpace(req.CourseID), req.Override)
	if err != nil {
		writeError(c, err)
		return
	}
	created(c, mc)
}

// RemoveMyCourse godoc
// @ID          removeMyCourse
// @Summary     Remove a saved course
// @Tags        MyCourses
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Saved course record ID"
//
// @Success     204  {string}  string  "No Content"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Record not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Record store failed"
// @Router      /my-courses/{id} [delete]
func (h *Handlers) RemoveMyCourse(c *gin.Context) {
	if err := h.mineSvc.RemoveCourseFromMyCourses(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	noContent(c)
}
