// Chat HTTP handlers.
//
// This file exposes REST endpoints for chat resources:
//   - POST  /chats               (create)
//   - GET   /chats               (list, paginated)
//   - GET   /chats/{id}          (details)
//   - PATCH /chats/{id}          (rename)
//   - GET   /chats/{id}/pending  (assistant reply outstanding?)
//
// Handlers are transport-thin: they validate input, call the gateways, and
// translate results into HTTP responses. Every gateway acts for the signed-in
// user, so no handler reads a user id from the request.
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/course-advisor-backend/internal/catalog"
	"github.com/tbourn/course-advisor-backend/internal/domain"
	"github.com/tbourn/course-advisor-backend/internal/http/middleware"
	"github.com/tbourn/course-advisor-backend/internal/search"
	"github.com/tbourn/course-advisor-backend/internal/services"
	"github.com/tbourn/course-advisor-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// AuthService covers sign-in, sign-up and the profile of the signed-in user.
type AuthService interface {
	Login(ctx context.Context, req services.LoginRequest) (services.AuthResult, error)
	Signup(ctx context.Context, req services.SignupRequest) (services.AuthResult, error)
	Logout(ctx context.Context) error
	Status(ctx context.Context) (services.AuthStatus, error)
	UpdateProfile(ctx context.Context, patch domain.UserPatch) (domain.User, error)
}

// ChatService covers chats, their messages and the assistant round trip.
//
// Implementations must be safe for concurrent use and honor the provided
// context for cancellation and timeouts.
type ChatService interface {
	CreateChat(ctx context.Context, title string) (domain.Chat, error)
	GetUserChats(ctx context.Context) ([]domain.Chat, error)
	GetChatDetails(ctx context.Context, chatID string) (domain.Chat, error)
	UpdateChat(ctx context.Context, chatID string, patch domain.ChatPatch) (domain.Chat, error)
	GetChatMessages(ctx context.Context, chatID string) ([]domain.ChatMessage, error)
	AddChatMessage(ctx context.Context, in services.AddMessageInput) (services.MessageResult, error)
	GetAIResponse(ctx context.Context, req services.AIRequest) (domain.AIReply, error)
	GetChatPendingStatus(chatID string) bool
	Exchange(ctx context.Context, chatID, prompt string) (services.ExchangeResult, error)
}

// CourseService covers the read-only course catalog.
type CourseService interface {
	FilterCourses(ctx context.Context, f catalog.Filters) ([]domain.Course, error)
	SearchCourses(ctx context.Context, query string, k int) ([]search.Result, error)
	GetCourseTrends(ctx context.Context, courseID string) (domain.CourseTrends, error)
	FilterOptions() catalog.Options
}

// MyCoursesService covers the student's saved courses.
type MyCoursesService interface {
	GetUserCourses(ctx context.Context) ([]domain.SavedCourse, error)
	AddCourseToMyCourses(ctx context.Context, courseID string, override bool) (domain.MyCourse, error)
	RemoveCourseFromMyCourses(ctx context.Context, myCourseID string) error
	GetCourseDetails(ctx context.Context, courseID string) (domain.Course, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the API. It depends on abstract
// service interfaces to keep transport concerns separate from the gateways.
type Handlers struct {
	authSvc   AuthService
	chatSvc   ChatService
	courseSvc CourseService
	mineSvc   MyCoursesService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(authSvc AuthService, chatSvc ChatService, courseSvc CourseService, mineSvc MyCoursesService) *Handlers {
	return &Handlers{authSvc: authSvc, chatSvc: chatSvc, courseSvc: courseSvc, mineSvc: mineSvc}
}

//
// DTOs
//

// CreateChatRequest is the JSON payload for creating a chat.
type CreateChatRequest struct {
	// Title optionally sets the chat title; a default is used when empty.
	Title string `json:"title" example:"Data science electives"`
}

// UpdateChatRequest is the JSON payload for renaming a chat.
type UpdateChatRequest struct {
	// Title is the new chat name (1–255 chars).
	Title string `json:"title" binding:"required,min=1,max=255" example:"Fall semester plan"`
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int  `json:"page"`
	PageSize   int  `json:"page_size"`
	Total      int  `json:"total"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// ListChatsResponse wraps a page of chats and pagination information.
type ListChatsResponse struct {
	Chats      []domain.Chat `json:"chats"`
	Pagination Pagination    `json:"pagination"`
}

// PendingResponse reports whether an assistant reply is outstanding.
type PendingResponse struct {
	ChatID  string `json:"chat_id" example:"7c1e9a"`
	Pending bool   `json:"pending" example:"true"`
}

//
// Helpers
//

// clampPagination parses and bounds page and page_size query params to sane
// defaults and limits, returning (page, pageSize).
func clampPagination(c *gin.Context, defaultPageSize, maxPageSize int) (page, pageSize int) {
	page = utils.AtoiDefault(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

// paginate cuts one page out of items and describes it.
func paginate[T any](c *gin.Context, items []T, defaultPageSize, maxPageSize int) ([]T, Pagination) {
	page, pageSize := clampPagination(c, defaultPageSize, maxPageSize)
	out, totalPages := utils.Paginate(items, page, pageSize)
	return out, Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      len(items),
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

//
// Handlers
//

// CreateChat godoc
// @ID          createChat
// @Summary     Create a new chat
// @Description Creates a chat for the signed-in user and returns the chat resource.
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.CreateChatRequest  false  "Create chat payload"
//
// @Success     201  {object}  domain.Chat
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     502  {object}  handlers.ErrorResponse  "Record store failed"
// @Router      /chats [post]
func (h *Handlers) CreateChat(c *gin.Context) {
	var req CreateChatRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, "invalid JSON body")
			return
		}
	}

	ch, err := h.chatSvc.CreateChat(c.Request.Context(), strings.TrimSpace(req.Title))
	if err != nil {
		writeError(c, err)
		return
	}
	created(c, ch)
}

// ListChats godoc
// @ID          listChats
// @Summary     List chats (paginated)
// @Description Returns a page of the signed-in user's chats in record store order.
// @Tags        Chats
// @Produce     json
// @Security    BearerAuth
//
// @Param       page       query  int  false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false  "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object}  handlers.ListChatsResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     502  {object}  handlers.ErrorResponse  "Record store failed"
// @Router      /chats [get]
func (h *Handlers) ListChats(c *gin.Context) {
	chats, err := h.chatSvc.GetUserChats(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	items, p := paginate(c, chats, 20, 100)
	ok(c, http.StatusOK, ListChatsResponse{Chats: items, Pagination: p})
}

// GetChat godoc
// @ID          getChat
// @Summary     Get a chat
// @Tags        Chats
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Chat ID"
//
// @Success     200  {object}  domain.Chat
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Record store failed"
// @Router      /chats/{id} [get]
func (h *Handlers) GetChat(c *gin.Context) {
	ch, err := h.chatSvc.GetChatDetails(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, ch)
}

// UpdateChat godoc
// @ID          updateChat
// @Summary     Rename a chat
// @Description Updates the title of a chat and returns the updated chat.
// @Tags        Chats
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       id    path  string                      true  "Chat ID"
// @Param       body  body  handlers.UpdateChatRequest  true  "New title"
//
// @Success     200  {object}  domain.Chat
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Record store failed"
// @Router      /chats/{id} [patch]
func (h *Handlers) UpdateChat(c *gin.Context) {
	var req UpdateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		bindError(c, "title required (1–255 chars)")
		return
	}

	ch, err := h.chatSvc.UpdateChat(c.Request.Context(), c.Param("id"), domain.ChatPatch{Title: strings.TrimSpace(req.Title)})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, ch)
}

// GetPending godoc
// @ID          getChatPending
// @Summary     Is an assistant reply outstanding?
// @Description Reports whether the assistant is still answering in this chat. Use "new-chat" for a request sent without a chat.
// @Tags        Chats
// @Produce     json
// @Security    BearerAuth
//
// @Param       id  path  string  true  "Chat ID or new-chat"
//
// @Success     200  {object}  handlers.PendingResponse
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Router      /chats/{id}/pending [get]
func (h *Handlers) GetPending(c *gin.Context) {
	id := c.Param("id")
	middleware.NoStore(c)
	ok(c, http.StatusOK, PendingResponse{ChatID: id, Pending: h.chatSvc.GetChatPendingStatus(id)})
}
