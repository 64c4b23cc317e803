package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"collab-suite/auth/internal/directory/domain"
	"collab-suite/auth/internal/directory/repository"
	"collab-suite/auth/internal/security"
	sessiondomain "collab-suite/auth/internal/session/domain"
)

// mockRepo implements repository.Repository for tests.
type mockRepo struct {
	mu      sync.Mutex
	byEmail map[string]*domain.Account
	getErr  error
}

func newMockRepo() *mockRepo {
	return &mockRepo{byEmail: map[string]*domain.Account{}}
}

func (m *mockRepo) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.byEmail[strings.ToLower(email)], nil
}

func (m *mockRepo) Create(_ context.Context, a *domain.Account) error {
	if err := a.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byEmail[a.Email]; ok {
		return repository.ErrDuplicateEmail
	}
	m.byEmail[a.Email] = a
	return nil
}

func (m *mockRepo) SetStatus(_ context.Context, id string, status domain.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.byEmail {
		if a.ID == id {
			a.Status = status
			return true, nil
		}
	}
	return false, nil
}

func (m *mockRepo) Ping(context.Context) error { return m.getErr }

// countingHasher records how many Compare calls were made.
type countingHasher struct {
	security.Hasher
	mu       sync.Mutex
	compares int
}

func (c *countingHasher) Compare(hash string, secret []byte) error {
	c.mu.Lock()
	c.compares++
	c.mu.Unlock()
	return c.Hasher.Compare(hash, secret)
}

func newService(t *testing.T) (*Service, *mockRepo, *countingHasher) {
	t.Helper()
	repo := newMockRepo()
	h := &countingHasher{Hasher: security.NewBcryptHasher(4)}
	svc, err := NewService(repo, h, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, repo, h
}

func TestValidateCredentials(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	acc, err := svc.Register(ctx, " Alice@Example.com ", "pw-alice", "")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if acc.Email != "alice@example.com" || acc.Role != domain.DefaultRole {
		t.Errorf("account = %+v", acc)
	}

	p, err := svc.ValidateCredentials(ctx, sessiondomain.Credentials{Email: "ALICE@example.com", Password: "pw-alice"})
	if err != nil {
		t.Fatalf("ValidateCredentials: %v", err)
	}
	if p.SubjectID != acc.ID || p.Role != "member" || !p.Valid() {
		t.Errorf("principal = %+v", p)
	}

	if _, err := svc.ValidateCredentials(ctx, sessiondomain.Credentials{Email: "alice@example.com", Password: "wrong"}); !errors.Is(err, sessiondomain.ErrUnauthorized) {
		t.Errorf("wrong password: want ErrUnauthorized, got %v", err)
	}
	if _, err := svc.ValidateCredentials(ctx, sessiondomain.Credentials{Email: "", Password: "x"}); !errors.Is(err, sessiondomain.ErrUnauthorized) {
		t.Errorf("empty email: want ErrUnauthorized, got %v", err)
	}
}

func TestValidateCredentials_UnknownEmailStillHashes(t *testing.T) {
	svc, _, h := newService(t)
	_, err := svc.ValidateCredentials(context.Background(), sessiondomain.Credentials{Email: "nobody@example.com", Password: "pw"})
	if !errors.Is(err, sessiondomain.ErrUnauthorized) {
		t.Fatalf("want ErrUnauthorized, got %v", err)
	}
	if h.compares != 1 {
		t.Errorf("compares = %d, want 1 (dummy hash)", h.compares)
	}
}

func TestValidateCredentials_DisabledAccount(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()
	acc, err := svc.Register(ctx, "bob@example.com", "pw-bob", "admin")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if ok, _ := repo.SetStatus(ctx, acc.ID, domain.StatusDisabled); !ok {
		t.Fatal("SetStatus did not find the account")
	}
	if _, err := svc.ValidateCredentials(ctx, sessiondomain.Credentials{Email: "bob@example.com", Password: "pw-bob"}); !errors.Is(err, sessiondomain.ErrUnauthorized) {
		t.Errorf("disabled: want ErrUnauthorized, got %v", err)
	}
}

func TestValidateCredentials_RepoFailure(t *testing.T) {
	svc, repo, _ := newService(t)
	repo.getErr = errors.New("connection reset")
	_, err := svc.ValidateCredentials(context.Background(), sessiondomain.Credentials{Email: "a@example.com", Password: "pw"})
	if !errors.Is(err, sessiondomain.ErrUpstreamUnavailable) {
		t.Errorf("want ErrUpstreamUnavailable, got %v", err)
	}
	if errors.Is(err, sessiondomain.ErrUnauthorized) {
		t.Error("a store failure must not look like bad credentials")
	}
	if svc.HealthCheck(context.Background()) == nil {
		t.Error("HealthCheck should surface the repository error")
	}
}

func TestRegister(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, "", "pw", ""); !errors.Is(err, sessiondomain.ErrInvalidArgument) {
		t.Errorf("empty email: want ErrInvalidArgument, got %v", err)
	}
	if _, err := svc.Register(ctx, "dup@example.com", "pw", ""); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := svc.Register(ctx, "DUP@example.com", "pw", ""); !errors.Is(err, repository.ErrDuplicateEmail) {
		t.Errorf("duplicate: want ErrDuplicateEmail, got %v", err)
	}
}

func TestNewService_RequiresDeps(t *testing.T) {
	if _, err := NewService(nil, security.NewBcryptHasher(4), nil); err == nil {
		t.Error("nil repo: expected error")
	}
	if _, err := NewService(newMockRepo(), nil, nil); err == nil {
		t.Error("nil hasher: expected error")
	}
}
