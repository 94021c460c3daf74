package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/course-advisor-backend/internal/catalog"
	"github.com/tbourn/course-advisor-backend/internal/domain"
	"github.com/tbourn/course-advisor-backend/internal/search"
	"github.com/tbourn/course-advisor-backend/internal/services"
)

// ---------- stub services ----------

type stubAuth struct {
	login   func(services.LoginRequest) (services.AuthResult, error)
	signup  func(services.SignupRequest) (services.AuthResult, error)
	logout  func() error
	status  func() (services.AuthStatus, error)
	profile func(domain.UserPatch) (domain.User, error)
}

func (s stubAuth) Login(_ context.Context, r services.LoginRequest) (services.AuthResult, error) {
	if s.login != nil {
		return s.login(r)
	}
	return services.AuthResult{User: domain.User{ID: r.Username}, Token: "tok"}, nil
}

func (s stubAuth) Signup(_ context.Context, r services.SignupRequest) (services.AuthResult, error) {
	if s.signup != nil {
		return s.signup(r)
	}
	return services.AuthResult{User: domain.User{ID: r.Username}, Token: "tok"}, nil
}

func (s stubAuth) Logout(context.Context) error {
	if s.logout != nil {
		return s.logout()
	}
	return nil
}

func (s stubAuth) Status(context.Context) (services.AuthStatus, error) {
	if s.status != nil {
		return s.status()
	}
	return services.AuthStatus{}, nil
}

func (s stubAuth) UpdateProfile(_ context.Context, p domain.UserPatch) (domain.User, error) {
	if s.profile != nil {
		return s.profile(p)
	}
	return p.Apply(domain.User{ID: "u1"}), nil
}

type stubChats struct {
	create   func(string) (domain.Chat, error)
	list     func() ([]domain.Chat, error)
	details  func(string) (domain.Chat, error)
	update   func(string, domain.ChatPatch) (domain.Chat, error)
	messages func(string) ([]domain.ChatMessage, error)
	add      func(services.AddMessageInput) (services.MessageResult, error)
	ai       func(services.AIRequest) (domain.AIReply, error)
	pending  map[string]bool
	exchange func(string, string) (services.ExchangeResult, error)
}

func (s *stubChats) CreateChat(_ context.Context, title string) (domain.Chat, error) {
	if s.create != nil {
		return s.create(title)
	}
	return domain.Chat{ID: "c1", Title: title}, nil
}

func (s *stubChats) GetUserChats(context.Context) ([]domain.Chat, error) {
	if s.list != nil {
		return s.list()
	}
	return []domain.Chat{}, nil
}

func (s *stubChats) GetChatDetails(_ context.Context, id string) (domain.Chat, error) {
	if s.details != nil {
		return s.details(id)
	}
	return domain.Chat{ID: id}, nil
}

func (s *stubChats) UpdateChat(_ context.Context, id string, p domain.ChatPatch) (domain.Chat, error) {
	if s.update != nil {
		return s.update(id, p)
	}
	return domain.Chat{ID: id, Title: p.Title}, nil
}

func (s *stubChats) GetChatMessages(_ context.Context, id string) ([]domain.ChatMessage, error) {
	if s.messages != nil {
		return s.messages(id)
	}
	return []domain.ChatMessage{}, nil
}

func (s *stubChats) AddChatMessage(_ context.Context, in services.AddMessageInput) (services.MessageResult, error) {
	if s.add != nil {
		return s.add(in)
	}
	id := in.ChatID
	if id == "" {
		id = "new-id"
	}
	return services.MessageResult{
		Chat:    domain.Chat{ID: id},
		Message: domain.ChatMessage{ID: "m1", ChatID: id, Role: in.Role, Message: in.Message},
	}, nil
}

func (s *stubChats) GetAIResponse(_ context.Context, r services.AIRequest) (domain.AIReply, error) {
	if s.ai != nil {
		return s.ai(r)
	}
	return domain.AIReply{Kind: domain.ReplyText, Text: "echo: " + r.Query}, nil
}

func (s *stubChats) GetChatPendingStatus(id string) bool { return s.pending[id] }

func (s *stubChats) Exchange(_ context.Context, id, p string) (services.ExchangeResult, error) {
	if s.exchange != nil {
		return s.exchange(id, p)
	}
	return services.ExchangeResult{Chat: domain.Chat{ID: id}}, nil
}

type stubCourses struct {
	courses []domain.Course
	err     error
	gotF    catalog.Filters
	gotQ    string
	gotK    int
	trends  func(string) (domain.CourseTrends, error)
}

func (s *stubCourses) FilterCourses(_ context.Context, f catalog.Filters) ([]domain.Course, error) {
	s.gotF = f
	if s.err != nil {
		return nil, s.err
	}
	return catalog.FilterCourses(s.courses, f), nil
}

func (s *stubCourses) SearchCourses(_ context.Context, q string, k int) ([]search.Result, error) {
	s.gotQ, s.gotK = q, k
	if s.err != nil {
		return nil, s.err
	}
	return search.NewCourseIndex(s.courses).TopK(q, k), nil
}

func (s *stubCourses) GetCourseTrends(_ context.Context, id string) (domain.CourseTrends, error) {
	if s.trends != nil {
		return s.trends(id)
	}
	return domain.CourseTrends{CourseID: id, Trends: []domain.CourseTrend{}}, nil
}

func (s *stubCourses) FilterOptions() catalog.Options { return catalog.FilterOptions() }

type stubMine struct {
	saved   []domain.SavedCourse
	err     error
	added   []string
	removed []string
	details func(string) (domain.Course, error)
}

func (s *stubMine) GetUserCourses(context.Context) ([]domain.SavedCourse, error) {
	return s.saved, s.err
}

func (s *stubMine) AddCourseToMyCourses(_ context.Context, id string, override bool) (domain.MyCourse, error) {
	if s.err != nil {
		return domain.MyCourse{}, s.err
	}
	s.added = append(s.added, id)
	return domain.MyCourse{ID: "mc1", UserID: "u1", CourseID: id}, nil
}

func (s *stubMine) RemoveCourseFromMyCourses(_ context.Context, id string) error {
	if s.err != nil {
		return s.err
	}
	s.removed = append(s.removed, id)
	return nil
}

func (s *stubMine) GetCourseDetails(_ context.Context, id string) (domain.Course, error) {
	if s.details != nil {
		return s.details(id)
	}
	return domain.Course{CourseID: id}, nil
}

// ---------- router + request helpers ----------

type fixture struct {
	auth    *stubAuth
	chats   *stubChats
	courses *stubCourses
	mine    *stubMine
	r       *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)
	f := &fixture{
		auth:    &stubAuth{},
		chats:   &stubChats{pending: map[string]bool{}},
		courses: &stubCourses{},
		mine:    &stubMine{},
	}
	h := New(f.auth, f.chats, f.courses, f.mine)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-test")
		c.Next()
	})
	r.POST("/auth/login", h.Login)
	r.POST("/auth/signup", h.Signup)
	r.POST("/auth/logout", h.Logout)
	r.GET("/auth/status", h.AuthStatus)
	r.PATCH("/auth/profile", h.UpdateProfile)
	r.GET("/chats", h.ListChats)
	r.POST("/chats", h.CreateChat)
	r.GET("/chats/:id", h.GetChat)
	r.PATCH("/chats/:id", h.UpdateChat)
	r.GET("/chats/:id/messages", h.ListMessages)
	r.GET("/chats/:id/pending", h.GetPending)
	r.POST("/chats/:id/exchange", h.Exchange)
	r.POST("/messages", h.AddMessage)
	r.POST("/ai/chat", h.AIChat)
	r.GET("/courses", h.ListCourses)
	r.GET("/courses/search", h.SearchCourses)
	r.GET("/courses/filters", h.FilterOptions)
	r.GET("/courses/:id", h.GetCourse)
	r.GET("/courses/:id/trends", h.GetCourseTrends)
	r.GET("/my-courses", h.ListMyCourses)
	r.POST("/my-courses", h.AddMyCourse)
	r.DELETE("/my-courses/:id", h.RemoveMyCourse)
	f.r = r
	return f
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v (body=%s)", err, w.Body.String())
	}
	return v
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status=%d want %d body=%s", w.Code, status, w.Body.String())
	}
	er := decode[ErrorResponse](t, w)
	if er.Code != code || er.RequestID != "rid-test" {
		t.Fatalf("unexpected envelope: %+v", er)
	}
}

