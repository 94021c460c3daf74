package store

import (
	"context"
	"net/url"

	"github.com/tbourn/course-advisor-backend/internal/domain"
)

// FindUsers returns the users whose id equals id (zero or one in practice).
func (c *Client) FindUsers(ctx context.Context, id string) ([]domain.User, error) {
	var out []domain.User
	err := c.do(ctx, "GET", "/users", url.Values{"id": {id}}, nil, &out)
	return out, err
}

// CreateUser stores a new user record.
func (c *Client) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	var out domain.User
	err := c.do(ctx, "POST", "/users", nil, u.Public(), &out)
	return out, err
}

// PatchUser applies a partial update to user id.
func (c *Client) PatchUser(ctx context.Context, id string, p domain.UserPatch) (domain.User, error) {
	var out domain.User
	err := c.do(ctx, "PATCH", "/users/"+url.PathEscape(id), nil, p, &out)
	return out, err
}

// ListChats returns the chats owned by userID.
func (c *Client) ListChats(ctx context.Context, userID string) ([]domain.Chat, error) {
	var out []domain.Chat
	err := c.do(ctx, "GET", "/chats", url.Values{"userId": {userID}}, nil, &out)
	return out, err
}

// GetChat loads one chat.
func (c *Client) GetChat(ctx context.Context, id string) (domain.Chat, error) {
	var out domain.Chat
	err := c.do(ctx, "GET", "/chats/"+url.PathEscape(id), nil, nil, &out)
	return out, err
}

// CreateChat stores chat as given; the caller assigns the id.
func (c *Client) CreateChat(ctx context.Context, chat domain.Chat) (domain.Chat, error) {
	var out domain.Chat
	err := c.do(ctx, "POST", "/chats", nil, chat, &out)
	return out, err
}

// PatchChat applies a partial update to chat id.
func (c *Client) PatchChat(ctx context.Context, id string, p domain.ChatPatch) (domain.Chat, error) {
	var out domain.Chat
	err := c.do(ctx, "PATCH", "/chats/"+url.PathEscape(id), nil, p, &out)
	return out, err
}

// ListMessages returns the messages of chatID in store order.
func (c *Client) ListMessages(ctx context.Context, chatID string) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	err := c.do(ctx, "GET", "/messages", url.Values{"chatId": {chatID}}, nil, &out)
	return out, err
}

// CreateMessage stores msg as given.
func (c *Client) CreateMessage(ctx context.Context, msg domain.ChatMessage) (domain.ChatMessage, error) {
	var out domain.ChatMessage
	err := c.do(ctx, "POST", "/messages", nil, msg, &out)
	return out, err
}

// ListMyCourses returns the saved courses of userID, narrowed to courseID
// when it is not empty.
func (c *Client) ListMyCourses(ctx context.Context, userID, courseID string) ([]domain.MyCourse, error) {
	q := url.Values{"userId": {userID}}
	if courseID != "" {
		q.Set("courseId", courseID)
	}
	var out []domain.MyCourse
	err := c.do(ctx, "GET", "/my_courses", q, nil, &out)
	return out, err
}

// CreateMyCourse stores a saved-course record.
func (c *Client) CreateMyCourse(ctx context.Context, mc domain.MyCourse) (domain.MyCourse, error) {
	var out domain.MyCourse
	err := c.do(ctx, "POST", "/my_courses", nil, mc, &out)
	return out, err
}

// DeleteMyCourse removes a saved-course record.
func (c *Client) DeleteMyCourse(ctx context.Context, id string) error {
	return c.do(ctx, "DELETE", "/my_courses/"+url.PathEscape(id), nil, nil, nil)
}
