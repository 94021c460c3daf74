package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tbourn/course-advisor-backend/internal/clients/advisor"
	"github.com/tbourn/course-advisor-backend/internal/clients/store"
	"github.com/tbourn/course-advisor-backend/internal/domain"
)

// ----- Fake session -----

type fakeSession struct {
	user *domain.User
}

func signedIn(id string) *fakeSession {
	return &fakeSession{user: &domain.User{ID: id, Username: id}}
}

func (s *fakeSession) User() *domain.User { return s.user }

func (s *fakeSession) UserID() string {
	if s.user == nil {
		return ""
	}
	return s.user.ID
}

// ----- Fake record store -----

type fakeStore struct {
	mu sync.Mutex

	users     map[string]domain.User
	chats     map[string]domain.Chat
	messages  []domain.ChatMessage
	myCourses []domain.MyCourse

	calls map[string]int

	createChatErr    error
	createMessageErr error
	patchChatErr     error
	listChatsErr     error
	patchUserErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users: map[string]domain.User{},
		chats: map[string]domain.Chat{},
		calls: map[string]int{},
	}
}

func (s *fakeStore) called(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *fakeStore) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

func notFound(op string) error {
	return &store.Error{Op: op, Status: http.StatusNotFound, Err: store.ErrNotFound}
}

func serverError(op string) error {
	return &store.Error{Op: op, Status: http.StatusInternalServerError, Message: "boom"}
}

func (s *fakeStore) FindUsers(_ context.Context, id string) ([]domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["FindUsers"]++
	if u, ok := s.users[id]; ok {
		return []domain.User{u}, nil
	}
	return []domain.User{}, nil
}

func (s *fakeStore) CreateUser(_ context.Context, u domain.User) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["CreateUser"]++
	s.users[u.ID] = u
	return u, nil
}

func (s *fakeStore) PatchUser(_ context.Context, id string, p domain.UserPatch) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["PatchUser"]++
	if s.patchUserErr != nil {
		return domain.User{}, s.patchUserErr
	}
	u, ok := s.users[id]
	if !ok {
		return domain.User{}, notFound("PATCH /users/:id")
	}
	u = p.Apply(u)
	s.users[id] = u
	return u, nil
}

func (s *fakeStore) ListChats(_ context.Context, userID string) ([]domain.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["ListChats"]++
	if s.listChatsErr != nil {
		return nil, s.listChatsErr
	}
	var out []domain.Chat
	for _, c := range s.chats {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *fakeStore) GetChat(_ context.Context, id string) (domain.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["GetChat"]++
	c, ok := s.chats[id]
	if !ok {
		return domain.Chat{}, notFound("GET /chats/:id")
	}
	return c, nil
}

func (s *fakeStore) CreateChat(_ context.Context, c domain.Chat) (domain.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["CreateChat"]++
	if s.createChatErr != nil {
		return domain.Chat{}, s.createChatErr
	}
	s.chats[c.ID] = c
	return c, nil
}

func (s *fakeStore) PatchChat(_ context.Context, id string, p domain.ChatPatch) (domain.Chat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["PatchChat"]++
	if s.patchChatErr != nil {
		return domain.Chat{}, s.patchChatErr
	}
	c, ok := s.chats[id]
	if !ok {
		return domain.Chat{}, notFound("PATCH /chats/:id")
	}
	c.Title = p.Title
	s.chats[id] = c
	return c, nil
}

func (s *fakeStore) ListMessages(_ context.Context, chatID string) ([]domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["ListMessages"]++
	var out []domain.ChatMessage
	// Reverse insertion order, so callers must sort.
	for i := len(s.messages) - 1; i >= 0; i-- {
		if s.messages[i].ChatID == chatID {
			out = append(out, s.messages[i])
		}
	}
	return out, nil
}

func (s *fakeStore) CreateMessage(_ context.Context, m domain.ChatMessage) (domain.ChatMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["CreateMessage"]++
	if s.createMessageErr != nil {
		return domain.ChatMessage{}, s.createMessageErr
	}
	s.messages = append(s.messages, m)
	return m, nil
}

func (s *fakeStore) ListMyCourses(_ context.Context, userID, courseID string) ([]domain.MyCourse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["ListMyCourses"]++
	var out []domain.MyCourse
	for _, mc := range s.myCourses {
		if mc.UserID == userID && (courseID == "" || mc.CourseID == courseID) {
			out = append(out, mc)
		}
	}
	return out, nil
}

func (s *fakeStore) CreateMyCourse(_ context.Context, mc domain.MyCourse) (domain.MyCourse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["CreateMyCourse"]++
	s.myCourses = append(s.myCourses, mc)
	return mc, nil
}

func (s *fakeStore) DeleteMyCourse(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls["DeleteMyCourse"]++
	for i, mc := range s.myCourses {
		if mc.ID == id {
			s.myCourses = append(s.myCourses[:i], s.myCourses[i+1:]...)
			return nil
		}
	}
	return notFound("DELETE /my_courses/:id")
}

func (s *fakeStore) messageCount(chatID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.messages {
		if m.ChatID == chatID {
			n++
		}
	}
	return n
}

// ----- Fake assistant -----

type fakeAssistant struct {
	mu    sync.Mutex
	reqs  []advisor.ChatRequest
	reply domain.AIReply
	err   error

	// during runs inside Chat, before it returns.
	during func()
}

func (a *fakeAssistant) Chat(_ context.Context, req advisor.ChatRequest) (domain.AIReply, error) {
	a.mu.Lock()
	a.reqs = append(a.reqs, req)
	during := a.during
	a.mu.Unlock()
	if during != nil {
		during()
	}
	if a.err != nil {
		return domain.AIReply{}, a.err
	}
	return a.reply, nil
}

// ----- Fake catalog -----

type fakeCatalog struct {
	raw     json.RawMessage
	courses map[string]domain.Course
	trends  map[string]domain.CourseTrends
	delay   time.Duration

	catalogCalls atomic.Int32
	detailCalls  atomic.Int32
	inFlight     atomic.Int32
	maxInFlight  atomic.Int32
}

func (f *fakeCatalog) Catalog(context.Context) (json.RawMessage, error) {
	f.catalogCalls.Add(1)
	if f.raw == nil {
		return nil, &advisor.Error{Op: "GET /course_catalog", Status: http.StatusBadGateway}
	}
	return f.raw, nil
}

func (f *fakeCatalog) CourseDetail(ctx context.Context, id string) (domain.Course, error) {
	f.detailCalls.Add(1)
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return domain.Course{}, ctx.Err()
		}
	}
	c, ok := f.courses[id]
	if !ok {
		return domain.Course{}, &advisor.Error{Op: "GET /course_detail/:id", Status: http.StatusNotFound, Err: advisor.ErrNotFound}
	}
	return c, nil
}

func (f *fakeCatalog) Trends(_ context.Context, id string) (domain.CourseTrends, error) {
	tr, ok := f.trends[id]
	if !ok {
		return domain.CourseTrends{}, &advisor.Error{Op: "GET /trends/:id", Status: http.StatusNotFound, Message: "No trends found", Err: advisor.ErrNotFound}
	}
	return tr, nil
}

// ----- Fake identity provider -----

type fakeIdentity struct {
	identity advisor.Identity
	err      error
	logins   int
	signups  []advisor.SignupRequest
}

func (f *fakeIdentity) Login(_ context.Context, userID, _ string) (advisor.Identity, error) {
	f.logins++
	if f.err != nil {
		return advisor.Identity{}, f.err
	}
	id := f.identity
	if id.UserID == "" {
		id.UserID = userID
	}
	return id, nil
}

func (f *fakeIdentity) Signup(_ context.Context, req advisor.SignupRequest) (advisor.Identity, error) {
	f.signups = append(f.signups, req)
	if f.err != nil {
		return advisor.Identity{}, f.err
	}
	return advisor.Identity{UserID: req.UserID, FirstName: req.FirstName, LastName: req.LastName, Email: req.Email}, nil
}

// ----- helpers -----

func seqIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("%s%d", prefix, n.Add(1)) }
}

func stepClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	t := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t = t.Add(time.Second)
		return t
	}
}
