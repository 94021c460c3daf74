// Message HTTP handlers.
//
// This file exposes REST endpoints for chat messages and the assistant:
//   - GET  /chats/{id}/messages   (list paginated messages, oldest first)
//   - POST /messages              (append one message; creates the chat when chatId is empty)
//   - POST /chats/{id}/exchange   (store prompt, ask assistant, store reply; id "new" creates)
//   - POST /ai/chat               (ask the assistant without storing anything)
//
// Idempotency:
// POST /messages and POST /chats/{id}/exchange run behind middleware.Idempotency.
// A retried request carrying the same Idempotency-Key receives the recorded
// response with `Idempotency-Replayed: true` and appends nothing.
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/course-advisor-backend/internal/domain"
	"github.com/tbourn/course-advisor-backend/internal/services"
)

// MaxPromptRunes caps a prompt sent to the assistant.
const MaxPromptRunes = 4000

// NewChatParam is the path id that makes Exchange create a chat.
const NewChatParam = "new"

//
// DTOs
//

// AddMessageRequest is the JSON payload for appending a message.
type AddMessageRequest struct {
	// ChatID selects the chat; empty creates one named Title.
	ChatID string `json:"chatId" example:"7c1e9a"`
	// Message is a JSON string or a structured object (stored AI reply).
	Message json.RawMessage `json:"message" swaggertype:"object"`
	// Role is "user" or "assistant".
	Role  string `json:"role" binding:"required" example:"user"`
	Title string `json:"title,omitempty" example:"Machine learning courses"`
}

// PromptRequest is the JSON payload for an exchange.
type PromptRequest struct {
	// Prompt is the student's question. It must be non-empty.
	Prompt string `json:"prompt" binding:"required,min=1" example:"Which data science courses are offered online in Fall?"`
}

// AIChatRequest is the JSON payload for a stateless assistant question.
type AIChatRequest struct {
	Query     string `json:"query" binding:"required,min=1" example:"What should I take after CSCI-C 200?"`
	SessionID string `json:"session_id,omitempty" example:"7c1e9a"`
}

// ListMessagesResponse contains a page of chat messages and pagination metadata.
type ListMessagesResponse struct {
	Messages   []domain.ChatMessage `json:"messages"`
	Pagination Pagination           `json:"pagination"`
}

// ExchangeFailure is returned when the prompt was stored but the assistant
// round trip failed; the client keeps the stored prompt.
type ExchangeFailure struct {
	ErrorResponse
	Chat        domain.Chat        `json:"chat"`
	UserMessage domain.ChatMessage `json:"user_message"`
}

//
// Helpers
//

// nlCollapseRE collapses runs of 3+ newlines to two, preserving paragraphs.
var nlCollapseRE = regexp.MustCompile(`\n{3,}`)

// sanitizeContent normalizes user text for consistent downstream behavior:
// CRLF/CR become LF, runs of 3+ LFs collapse to two, and surrounding
// whitespace is trimmed.
func sanitizeContent(raw string) string {
	s := strings.ReplaceAll(raw, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = nlCollapseRE.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// prompt sanitizes and bounds a prompt, writing a 400 when it is unusable.
func prompt(c *gin.Context, raw string) (string, bool) {
	p := sanitizeContent(raw)
	if p == "" {
		bindError(c, "prompt required")
		return "", false
	}
	if utf8.RuneCountInString(p) > MaxPromptRunes {
		bindError(c, fmt.Sprintf("prompt too long: max %d runes", MaxPromptRunes))
		return "", false
	}
	return p, true
}

//
// Handlers
//

// ListMessages godoc
// @ID          listMessages
// @Summary     List chat messages (paginated)
// @Description Returns a page of a chat's messages, oldest first.
// @Tags        Messages
// @Produce     json
// @Security    BearerAuth
//
// @Param       id         path   string  true   "Chat ID"
// @Param       page       query  int     false  "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false  "Items per page"  minimum(1) maximum(200) default(50)
//
// @Success     200  {object}  handlers.ListMessagesResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     502  {object}  handlers.ErrorResponse  "Record store failed"
// @Router      /chats/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	msgs, err := h.chatSvc.GetChatMessages(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	items, p := paginate(c, msgs, 50, 200)
	ok(c, http.StatusOK, ListMessagesResponse{Messages: items, Pagination: p})
}

// AddMessage godoc
// @ID          addMessage
// @Summary     Append a message
// @Description Appends one message to a chat. Without chatId a chat is created first (named title, or "New chat").
// @Description Supports idempotency via the Idempotency-Key header (same key → same result).
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string                      false  "Idempotency key for safe retries"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.AddMessageRequest  true   "Message payload"
//
// @Success     201  {object}  services.MessageResult
// @Header      201  {string}  Idempotency-Replayed  "true when served from a recorded result"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse  "Chat not found"
// @Failure     502  {object}  handlers.ErrorResponse  "Record store failed"
// @Router      /messages [post]
func (h *Handlers) AddMessage(c *gin.Context) {
	var req AddMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, "role and message required")
		return
	}

	res, err := h.chatSvc.AddChatMessage(c.Request.Context(), services.AddMessageInput{
		ChatID:  strings.TrimSpace(req.ChatID),
		Message: req.Message,
		Role:    strings.TrimSpace(req.Role),
		Title:   strings.TrimSpace(req.Title),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	created(c, res)
}

// Exchange godoc
// @ID          exchange
// @Summary     Ask the assistant inside a chat
// @Description Stores the prompt, asks the assistant, stores the reply and renames the chat after it.
// @Description Use id "new" to start a chat. When the assistant fails, the stored prompt is returned with the error.
// @Tags        Messages
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       Idempotency-Key  header  string                  false  "Idempotency key for safe retries"
// @Param       id               path    string                  true   "Chat ID or new"
// @Param       body             body    handlers.PromptRequest  true   "Prompt"
//
// @Success     200  {object}  services.ExchangeResult
// @Failure     400  {object}  handlers.ErrorResponse    "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse    "Unauthorized"
// @Failure     404  {object}  handlers.ErrorResponse    "Chat not found"
// @Failure     502  {object}  handlers.ExchangeFailure  "Assistant failed after the prompt was stored"
// @Router      /chats/{id}/exchange [post]
func (h *Handlers) Exchange(c *gin.Context) {
	var req PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, "prompt required")
		return
	}
	p, valid := prompt(c, req.Prompt)
	if !valid {
		return
	}

	chatID := c.Param("id")
	if chatID == NewChatParam {
		chatID = ""
	}

	res, err := h.chatSvc.Exchange(c.Request.Context(), chatID, p)
	if err != nil {
		if res.UserMessage.ID == "" {
			writeError(c, err)
			return
		}
		status, code, msg := classify(c, err)
		c.AbortWithStatusJSON(status, ExchangeFailure{
			ErrorResponse: ErrorResponse{
				RequestID: c.Writer.Header().Get("X-Request-ID"),
				Code:      code,
				Message:   msg,
			},
			Chat:        res.Chat,
			UserMessage: res.UserMessage,
		})
		return
	}
	ok(c, http.StatusOK, res)
}

// AIChat godoc
// @ID          aiChat
// @Summary     Ask the assistant
// @Description Sends a question to the assistant and returns its normalized reply. Nothing is stored.
// @Description While the call runs, GET /chats/{session_id}/pending (or /chats/new-chat/pending) reports true.
// @Tags        Assistant
// @Accept      json
// @Produce     json
// @Security    BearerAuth
//
// @Param       body  body  handlers.AIChatRequest  true  "Question"
//
// @Success     200  {object}  domain.AIReply
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     502  {object}  handlers.ErrorResponse  "Assistant failed"
// @Failure     504  {object}  handlers.ErrorResponse  "Assistant timed out"
// @Router      /ai/chat [post]
func (h *Handlers) AIChat(c *gin.Context) {
	var req AIChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, "query required")
		return
	}
	q, valid := prompt(c, req.Query)
	if !valid {
		return
	}

	reply, err := h.chatSvc.GetAIResponse(c.Request.Context(), services.AIRequest{
		Query:     q,
		SessionID: strings.TrimSpace(req.SessionID),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, reply)
}
