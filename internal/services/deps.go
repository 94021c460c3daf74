package services

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/tbourn/course-advisor-backend/internal/clients/advisor"
	"github.com/tbourn/course-advisor-backend/internal/clients/store"
	"github.com/tbourn/course-advisor-backend/internal/domain"
)

// Session exposes the signed-in user to the gateways.
type Session interface {
	User() *domain.User
	UserID() string
}

// ChatStore is the part of the record store used by ChatGateway.
type ChatStore interface {
	ListChats(ctx context.Context, userID string) ([]domain.Chat, error)
	GetChat(ctx context.Context, id string) (domain.Chat, error)
	CreateChat(ctx context.Context, chat domain.Chat) (domain.Chat, error)
	PatchChat(ctx context.Context, id string, p domain.ChatPatch) (domain.Chat, error)
	ListMessages(ctx context.Context, chatID string) ([]domain.ChatMessage, error)
	CreateMessage(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error)
}

// MyCourseStore is the part of the record store used by MyCoursesGateway.
type MyCourseStore interface {
	ListMyCourses(ctx context.Context, userID, courseID string) ([]domain.MyCourse, error)
	CreateMyCourse(ctx context.Context, mc domain.MyCourse) (domain.MyCourse, error)
	DeleteMyCourse(ctx context.Context, id string) error
}

// UserStore is the part of the record store used by AuthService.
type UserStore interface {
	FindUsers(ctx context.Context, id string) ([]domain.User, error)
	CreateUser(ctx context.Context, u domain.User) (domain.User, error)
	PatchUser(ctx context.Context, id string, p domain.UserPatch) (domain.User, error)
}

// Assistant answers chat questions.
type Assistant interface {
	Chat(ctx context.Context, req advisor.ChatRequest) (domain.AIReply, error)
}

// CatalogSource serves the course catalog.
type CatalogSource interface {
	Catalog(ctx context.Context) (json.RawMessage, error)
	CourseDetail(ctx context.Context, courseID string) (domain.Course, error)
	Trends(ctx context.Context, courseID string) (domain.CourseTrends, error)
}

// IdentityProvider authenticates students.
type IdentityProvider interface {
	Login(ctx context.Context, userID, password string) (advisor.Identity, error)
	Signup(ctx context.Context, req advisor.SignupRequest) (advisor.Identity, error)
}

// external wraps an upstream failure as *ExternalError, keeping the original
// error in the chain. Errors that are not upstream failures pass through.
func external(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *store.Error
	if errors.As(err, &se) {
		return &ExternalError{Service: "store", Op: op, Status: se.Status, Err: err}
	}
	var ae *advisor.Error
	if errors.As(err, &ae) {
		return &ExternalError{Service: "advisor", Op: op, Status: ae.Status, Err: err}
	}
	return err
}

// isNotFound reports whether err is an upstream 404.
func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound) || errors.Is(err, advisor.ErrNotFound)
}
