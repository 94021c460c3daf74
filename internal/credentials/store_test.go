package credentials

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/tbourn/course-advisor-backend/internal/domain"
)

// memStorage is an in-memory Storage used by tests.
type memStorage struct {
	mu      sync.Mutex
	items   map[string]string
	failSet error
}

func newMem() *memStorage { return &memStorage{items: map[string]string{}} }

func (m *memStorage) GetItem(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *memStorage) SetItem(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSet != nil {
		return m.failSet
	}
	m.items[key] = value
	return nil
}

func (m *memStorage) RemoveItem(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func sampleUser() domain.User {
	return domain.User{ID: "u1", Username: "ada", Email: "ada@example.com", FirstName: "Ada", LastName: "L", Password: "secret"}
}

func TestSetCredentials_PersistsWithoutPassword(t *testing.T) {
	ctx := context.Background()
	mem := newMem()
	s := New(mem)

	if err := s.SetCredentials(ctx, sampleUser(), "tok"); err != nil {
		t.Fatalf("SetCredentials: %v", err)
	}
	if !s.IsAuthenticated() {
		t.Fatal("expected authenticated")
	}
	if s.Token() != "tok" || s.UserID() != "u1" {
		t.Fatalf("unexpected state: token=%q user=%q", s.Token(), s.UserID())
	}
	if s.User().Password != "" {
		t.Fatal("password kept in memory")
	}
	if strings.Contains(mem.items[KeyUser], "secret") {
		t.Fatalf("password persisted: %s", mem.items[KeyUser])
	}
	if mem.items[KeyToken] != "tok" {
		t.Fatalf("token not persisted: %q", mem.items[KeyToken])
	}
}

func TestSetCredentials_StorageFailureLeavesStateUntouched(t *testing.T) {
	mem := newMem()
	mem.failSet = errors.New("disk full")
	s := New(mem)

	if err := s.SetCredentials(context.Background(), sampleUser(), "tok"); err == nil {
		t.Fatal("expected error")
	}
	if s.IsAuthenticated() {
		t.Fatal("should not be authenticated after failed write")
	}
}

func TestClearCredentials(t *testing.T) {
	ctx := context.Background()
	mem := newMem()
	s := New(mem)
	_ = s.SetCredentials(ctx, sampleUser(), "tok")

	if err := s.ClearCredentials(ctx); err != nil {
		t.Fatalf("ClearCredentials: %v", err)
	}
	if s.IsAuthenticated() || s.User() != nil || s.Token() != "" {
		t.Fatal("state not cleared")
	}
	if len(mem.items) != 0 {
		t.Fatalf("storage not cleared: %v", mem.items)
	}
}

func TestCheckAuthStatus_RestoresSession(t *testing.T) {
	ctx := context.Background()
	mem := newMem()
	_ = New(mem).SetCredentials(ctx, sampleUser(), "tok")

	restored := New(mem)
	if err := restored.CheckAuthStatus(ctx); err != nil {
		t.Fatalf("CheckAuthStatus: %v", err)
	}
	if !restored.IsAuthenticated() {
		t.Fatal("expected restored session")
	}
	if u := restored.User(); u.Email != "ada@example.com" {
		t.Fatalf("unexpected user: %+v", u)
	}
}

func TestCheckAuthStatus_MalformedUserIsDiscarded(t *testing.T) {
	ctx := context.Background()
	mem := newMem()
	mem.items[KeyToken] = "tok"
	mem.items[KeyUser] = "{not json"

	s := New(mem)
	if err := s.CheckAuthStatus(ctx); err != nil {
		t.Fatalf("CheckAuthStatus: %v", err)
	}
	if s.IsAuthenticated() {
		t.Fatal("malformed user must not authenticate")
	}
	if s.User() != nil {
		t.Fatal("user should be nil")
	}
	if _, ok := mem.items[KeyUser]; ok {
		t.Fatal("malformed user should be removed from storage")
	}
}

func TestCheckAuthStatus_Empty(t *testing.T) {
	s := New(newMem())
	if err := s.CheckAuthStatus(context.Background()); err != nil {
		t.Fatalf("CheckAuthStatus: %v", err)
	}
	if s.IsAuthenticated() {
		t.Fatal("empty storage must not authenticate")
	}
}

func TestUpdateUser(t *testing.T) {
	ctx := context.Background()
	mem := newMem()
	s := New(mem)

	got, err := s.UpdateUser(ctx, domain.UserPatch{FirstName: "X"})
	if err != nil || got != nil {
		t.Fatalf("expected no-op when signed out, got %v %v", got, err)
	}

	_ = s.SetCredentials(ctx, sampleUser(), "tok")
	got, err = s.UpdateUser(ctx, domain.UserPatch{FirstName: "Grace"})
	if err != nil {
		t.Fatalf("UpdateUser: %v", err)
	}
	if got.FirstName != "Grace" || got.LastName != "L" {
		t.Fatalf("unexpected merge: %+v", got)
	}
	if !strings.Contains(mem.items[KeyUser], "Grace") {
		t.Fatalf("update not persisted: %s", mem.items[KeyUser])
	}
	if s.Token() != "tok" {
		t.Fatal("token must be untouched")
	}
}
