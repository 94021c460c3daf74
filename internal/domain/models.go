// Package domain defines the core data types shared by the gateways, the
// upstream clients and the HTTP layer: users, chats, chat messages and the
// student's saved courses. Catalog types live in course.go, AI reply types in
// reply.go and the locally persisted GORM models in storage.go.
package domain

import (
	"encoding/json"
	"time"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// User is the student profile mirrored between the external identity service
// and the local record store.
//
// Password is only ever carried inbound (signup payloads) and is stripped by
// Public before a user leaves the process.
type User struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	CreatedAt time.Time `json:"createdAt"`
	Password  string    `json:"password,omitempty"`
}

// Public returns a copy of u without the password.
func (u User) Public() User {
	u.Password = ""
	return u
}

// UserPatch carries the fields a profile update may change. Empty fields are
// left untouched.
type UserPatch struct {
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p UserPatch) Empty() bool {
	return p == UserPatch{}
}

// Apply merges the non-empty fields of p into u.
func (p UserPatch) Apply(u User) User {
	if p.Username != "" {
		u.Username = p.Username
	}
	if p.Email != "" {
		u.Email = p.Email
	}
	if p.FirstName != "" {
		u.FirstName = p.FirstName
	}
	if p.LastName != "" {
		u.LastName = p.LastName
	}
	return u
}

// Chat is a conversation thread owned by a user.
type Chat struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// ChatPatch is the partial update accepted by UpdateChat.
type ChatPatch struct {
	Title string `json:"title,omitempty"`
}

// ChatMessage is a single immutable utterance in a chat. Message holds either
// a JSON string (plain text) or a structured JSON object such as a stored AI
// reply.
type ChatMessage struct {
	ID        string          `json:"id"`
	ChatID    string          `json:"chatId"`
	Role      string          `json:"role"`
	Message   json.RawMessage `json:"message"`
	CreatedAt time.Time       `json:"created_at"`
}

// TextMessage encodes s as a JSON string payload for ChatMessage.Message.
func TextMessage(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// MyCourse is a course saved by a user; CourseID joins onto the catalog.
type MyCourse struct {
	ID       string    `json:"id"`
	UserID   string    `json:"userId"`
	CourseID string    `json:"courseId"`
	AddedAt  time.Time `json:"addedAt"`
}

// SavedCourse is a MyCourse joined with the catalog detail of its course.
type SavedCourse struct {
	MyCourse
	CourseDetails Course `json:"courseDetails"`
}
