// Package services – ChatGateway
//
// ChatGateway owns chats and their messages on the record store and the
// round trip to the AI assistant. Reads are served from the tag cache;
// mutations invalidate the affected tags before returning. Appends to the
// same chat are serialized; appends to different chats run concurrently.
//
// Observability: public methods are OpenTelemetry-instrumented; spans carry
// chat and user identifiers.
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/course-advisor-backend/internal/cache"
	"github.com/tbourn/course-advisor-backend/internal/clients/advisor"
	"github.com/tbourn/course-advisor-backend/internal/domain"
	"github.com/tbourn/course-advisor-backend/internal/pending"
)

const (
	// DefaultChatTitle names chats created without a title.
	DefaultChatTitle = "New chat"

	// NewChatKey is the pending-state key of an AI request without a session.
	NewChatKey = "new-chat"

	titleMaxRunes = 50
	titleMinRunes = 10
)

// AddMessageInput is one message append. An empty ChatID creates a chat,
// named Title when given.
type AddMessageInput struct {
	ChatID  string
	Message json.RawMessage
	Role    string
	Title   string
}

// MessageResult pairs the chat with the message just appended to it.
type MessageResult struct {
	Chat    domain.Chat        `json:"chat"`
	Message domain.ChatMessage `json:"message"`
}

// AIRequest is one question to the assistant. An empty UserID means the
// signed-in user.
type AIRequest struct {
	UserID    string
	Query     string
	SessionID string
}

// ExchangeResult is the outcome of a full prompt/answer round trip.
type ExchangeResult struct {
	Chat             domain.Chat         `json:"chat"`
	UserMessage      domain.ChatMessage  `json:"user_message"`
	AssistantMessage *domain.ChatMessage `json:"assistant_message,omitempty"`
	Reply            *domain.AIReply     `json:"reply,omitempty"`
}

// ChatGateway provides chat operations for the signed-in user.
type ChatGateway struct {
	Store     ChatStore
	Assistant Assistant
	Session   Session
	Cache     *cache.Cache
	Pending   *pending.Tracker

	// AITimeout bounds each assistant call; zero means no gateway deadline.
	AITimeout time.Duration

	Now   func() time.Time
	NewID func() string

	chatLocks keyedMutex
}

// NewChatGateway wires a ChatGateway with real clocks and UUIDs.
func NewChatGateway(st ChatStore, as Assistant, sess Session, c *cache.Cache, p *pending.Tracker) *ChatGateway {
	return &ChatGateway{
		Store:     st,
		Assistant: as,
		Session:   sess,
		Cache:     c,
		Pending:   p,
		Now:       time.Now,
		NewID:     uuid.NewString,
	}
}

func (g *ChatGateway) tracer() trace.Tracer { return otel.Tracer("services/ChatGateway") }

func (g *ChatGateway) now() time.Time { return g.Now().UTC() }

// CreateChat creates an empty chat owned by the signed-in user. A blank title
// falls back to DefaultChatTitle.
func (g *ChatGateway) CreateChat(ctx context.Context, title string) (domain.Chat, error) {
	ctx, span := g.tracer().Start(ctx, "CreateChat")
	defer span.End()

	u := g.Session.User()
	if u == nil {
		return domain.Chat{}, ErrNoUser
	}
	chat, err := g.createChat(ctx, u.ID, title)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create chat")
		return domain.Chat{}, err
	}
	span.SetAttributes(attribute.String("chat.id", chat.ID))
	return chat, nil
}

func (g *ChatGateway) createChat(ctx context.Context, userID, title string) (domain.Chat, error) {
	title = normalizeTitle(title)
	if title == "" {
		title = DefaultChatTitle
	}
	chat := domain.Chat{
		ID:        g.NewID(),
		UserID:    userID,
		Title:     title,
		CreatedAt: g.now(),
	}
	created, err := g.Store.CreateChat(ctx, chat)
	if err != nil {
		return domain.Chat{}, external("create chat", err)
	}
	if created.ID == "" {
		created = chat
	}
	g.Cache.Invalidate(cache.T(cache.TypeChats))
	return created, nil
}

// AddChatMessage appends a message, creating the chat first when in.ChatID
// is empty. The returned chat id always equals the message's chat id.
func (g *ChatGateway) AddChatMessage(ctx context.Context, in AddMessageInput) (MessageResult, error) {
	ctx, span := g.tracer().Start(ctx, "AddChatMessage",
		trace.WithAttributes(
			attribute.String("chat.id", in.ChatID),
			attribute.String("message.role", in.Role),
		),
	)
	defer span.End()

	if in.Role != domain.RoleUser && in.Role != domain.RoleAssistant {
		return MessageResult{}, ErrInvalidRole
	}
	if emptyMessage(in.Message) {
		return MessageResult{}, ErrEmptyMessage
	}
	u := g.Session.User()
	if u == nil {
		return MessageResult{}, ErrNoUser
	}

	var chat domain.Chat
	if in.ChatID == "" {
		created, err := g.createChat(ctx, u.ID, in.Title)
		if err != nil {
			return MessageResult{}, err
		}
		chat = created
		span.SetAttributes(attribute.String("chat.id", chat.ID), attribute.Bool("chat.created", true))
	}

	unlock := g.chatLocks.Lock(firstNonEmpty(in.ChatID, chat.ID))
	defer unlock()

	if in.ChatID != "" {
		existing, err := g.Store.GetChat(ctx, in.ChatID)
		if err != nil {
			if isNotFound(err) {
				return MessageResult{}, ErrChatNotFound
			}
			return MessageResult{}, external("load chat", err)
		}
		chat = existing
	}

	msg := domain.ChatMessage{
		ID:        g.NewID(),
		ChatID:    chat.ID,
		Role:      in.Role,
		Message:   in.Message,
		CreatedAt: g.now(),
	}
	saved, err := g.Store.CreateMessage(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create message")
		if in.ChatID == "" {
			log.Ctx(ctx).Warn().Err(err).Str("chat_id", chat.ID).Msg("chat created without its first message")
		}
		return MessageResult{}, external("create message", err)
	}
	if saved.ID == "" {
		saved = msg
	}

	g.Cache.Invalidate(cache.T(cache.TypeMessages, chat.ID), cache.T(cache.TypeChats, chat.ID))
	return MessageResult{Chat: chat, Message: saved}, nil
}

// GetUserChats lists the signed-in user's chats.
func (g *ChatGateway) GetUserChats(ctx context.Context) ([]domain.Chat, error) {
	uid := g.Session.UserID()
	if uid == "" {
		return nil, ErrNoUser
	}
	return cache.Fetch(ctx, g.Cache, "getUserChats", "chats:"+uid,
		[]cache.Tag{cache.T(cache.TypeChats)},
		func(ctx context.Context) ([]domain.Chat, error) {
			chats, err := g.Store.ListChats(ctx, uid)
			if err != nil {
				return nil, external("list chats", err)
			}
			if chats == nil {
				chats = []domain.Chat{}
			}
			return chats, nil
		})
}

// GetChatMessages returns the messages of a chat, oldest first.
func (g *ChatGateway) GetChatMessages(ctx context.Context, chatID string) ([]domain.ChatMessage, error) {
	if strings.TrimSpace(chatID) == "" {
		return nil, ErrInvalidChatRef
	}
	return cache.Fetch(ctx, g.Cache, "getChatMessages", "messages:"+chatID,
		[]cache.Tag{cache.T(cache.TypeMessages, chatID)},
		func(ctx context.Context) ([]domain.ChatMessage, error) {
			msgs, err := g.Store.ListMessages(ctx, chatID)
			if err != nil {
				return nil, external("list messages", err)
			}
			if msgs == nil {
				msgs = []domain.ChatMessage{}
			}
			sort.SliceStable(msgs, func(i, j int) bool {
				if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
					return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
				}
				return msgs[i].ID < msgs[j].ID
			})
			return msgs, nil
		})
}

// GetChatDetails loads one chat.
func (g *ChatGateway) GetChatDetails(ctx context.Context, chatID string) (domain.Chat, error) {
	if strings.TrimSpace(chatID) == "" {
		return domain.Chat{}, ErrInvalidChatRef
	}
	return cache.Fetch(ctx, g.Cache, "getChatDetails", "chat:"+chatID,
		[]cache.Tag{cache.T(cache.TypeChats, chatID)},
		func(ctx context.Context) (domain.Chat, error) {
			chat, err := g.Store.GetChat(ctx, chatID)
			if err != nil {
				if isNotFound(err) {
					return domain.Chat{}, ErrChatNotFound
				}
				return domain.Chat{}, external("load chat", err)
			}
			return chat, nil
		})
}

// UpdateChat applies a partial update, currently the title.
func (g *ChatGateway) UpdateChat(ctx context.Context, chatID string, patch domain.ChatPatch) (domain.Chat, error) {
	ctx, span := g.tracer().Start(ctx, "UpdateChat",
		trace.WithAttributes(attribute.String("chat.id", chatID)))
	defer span.End()

	if strings.TrimSpace(chatID) == "" {
		return domain.Chat{}, ErrInvalidChatRef
	}
	patch.Title = clipRunes(normalizeTitle(patch.Title), titleMaxRunes*2)
	if patch.Title == "" {
		return domain.Chat{}, ErrEmptyPatch
	}
	chat, err := g.Store.PatchChat(ctx, chatID, patch)
	if err != nil {
		if isNotFound(err) {
			return domain.Chat{}, ErrChatNotFound
		}
		return domain.Chat{}, external("update chat", err)
	}
	g.Cache.Invalidate(cache.T(cache.TypeChats, chatID), cache.T(cache.TypeChats))
	return chat, nil
}

// GetAIResponse asks the assistant. The chat identified by SessionID, or
// NewChatKey without one, is pending for the duration of the call. On
// failure the pending state is cleared and an *ExternalError is returned.
func (g *ChatGateway) GetAIResponse(ctx context.Context, req AIRequest) (domain.AIReply, error) {
	reply, key, err := g.ask(ctx, req)
	if err != nil {
		return domain.AIReply{}, err
	}
	g.Pending.SetPending(key, false)
	return reply, nil
}

// ask performs the assistant call and leaves the pending flag set on success.
func (g *ChatGateway) ask(ctx context.Context, req AIRequest) (domain.AIReply, string, error) {
	ctx, span := g.tracer().Start(ctx, "GetAIResponse",
		trace.WithAttributes(attribute.String("session.id", req.SessionID)))
	defer span.End()

	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return domain.AIReply{}, "", ErrEmptyPrompt
	}
	if req.UserID == "" {
		req.UserID = g.Session.UserID()
	}
	if req.UserID == "" {
		return domain.AIReply{}, "", ErrNoUser
	}

	key := firstNonEmpty(req.SessionID, NewChatKey)
	g.Pending.SetPending(key, true)

	if g.AITimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.AITimeout)
		defer cancel()
	}
	reply, err := g.Assistant.Chat(ctx, advisor.ChatRequest{
		UserID:    req.UserID,
		Query:     req.Query,
		SessionID: req.SessionID,
	})
	if err != nil {
		g.Pending.ClearPending(key)
		span.RecordError(err)
		span.SetStatus(codes.Error, "assistant call failed")
		log.Ctx(ctx).Warn().Err(err).Str("session_id", req.SessionID).Msg("assistant call failed")
		wrapped := external("chat", err)
		var ee *ExternalError
		if !errors.As(wrapped, &ee) {
			wrapped = &ExternalError{Service: "advisor", Op: "chat", Err: err}
		}
		return domain.AIReply{}, key, wrapped
	}
	span.SetAttributes(
		attribute.String("reply.kind", string(reply.Kind)),
		attribute.Int("reply.recommendations", len(reply.RecommendedCourses)),
	)
	return reply, key, nil
}

// GetChatPendingStatus reports whether an assistant reply is outstanding for
// chatID. It is never cached.
func (g *ChatGateway) GetChatPendingStatus(chatID string) bool {
	return g.Pending.IsPending(chatID)
}

// Exchange runs one prompt/answer round trip: it stores the user's prompt
// (creating the chat when chatID is empty), asks the assistant, stores the
// reply and renames the chat. When the assistant fails, the stored prompt is
// returned alongside the error.
func (g *ChatGateway) Exchange(ctx context.Context, chatID, prompt string) (ExchangeResult, error) {
	ctx, span := g.tracer().Start(ctx, "Exchange",
		trace.WithAttributes(attribute.String("chat.id", chatID)))
	defer span.End()

	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return ExchangeResult{}, ErrEmptyPrompt
	}

	first, err := g.AddChatMessage(ctx, AddMessageInput{
		ChatID:  chatID,
		Message: domain.TextMessage(prompt),
		Role:    domain.RoleUser,
		Title:   SuggestTitle(prompt),
	})
	if err != nil {
		return ExchangeResult{}, err
	}
	out := ExchangeResult{Chat: first.Chat, UserMessage: first.Message}
	id := first.Chat.ID

	reply, key, err := g.ask(ctx, AIRequest{UserID: first.Chat.UserID, Query: prompt, SessionID: id})
	if err != nil {
		return out, err
	}

	second, err := g.AddChatMessage(ctx, AddMessageInput{
		ChatID:  id,
		Message: reply.Message(),
		Role:    domain.RoleAssistant,
	})
	if err != nil {
		g.Pending.ClearPending(key)
		return out, err
	}
	g.Pending.SetPending(key, false)
	out.AssistantMessage = &second.Message
	out.Reply = &reply

	title := firstNonEmpty(reply.ChatTitle, SuggestTitle(reply.Text), SuggestTitle(prompt))
	renamed, err := g.UpdateChat(ctx, id, domain.ChatPatch{Title: title})
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("chat_id", id).Msg("failed to rename chat after reply")
		return out, nil
	}
	out.Chat = renamed
	if out.Chat.ID == "" {
		out.Chat = first.Chat
		out.Chat.Title = title
	}
	return out, nil
}

// SuggestTitle derives a chat title from text: the first 50 characters,
// trimmed, with " conversation" appended when shorter than 10 characters and
// "..." appended when text was cut. Blank text yields "".
func SuggestTitle(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	title := strings.TrimSpace(clipRunes(text, titleMaxRunes))
	if utf8.RuneCountInString(title) < titleMinRunes {
		title += " conversation"
	}
	if utf8.RuneCountInString(text) > titleMaxRunes {
		title += "..."
	}
	return title
}

var whitespaceRE = regexp.MustCompile(`\s+`)

// normalizeTitle trims whitespace and collapses runs of spaces to one.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

func clipRunes(s string, n int) string {
	if n > 0 && utf8.RuneCountInString(s) > n {
		return string([]rune(s)[:n])
	}
	return s
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// emptyMessage reports whether raw carries no content: absent, null, an
// empty or blank string, or an empty object.
func emptyMessage(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("{}")) {
		return true
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return true
		}
		return strings.TrimSpace(s) == ""
	}
	return !json.Valid(raw)
}
