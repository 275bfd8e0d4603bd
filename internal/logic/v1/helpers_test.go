package v1

import (
	"context"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/duynhne/qa-service/config"
	"github.com/duynhne/qa-service/internal/core/cache"
	"github.com/duynhne/qa-service/internal/core/domain"
	"github.com/duynhne/qa-service/internal/core/repository/memory"
)

var testJWT = config.JWTConfig{
	Secret:        "access-secret-access-secret-0123456789",
	RefreshSecret: "refresh-secret-refresh-secret-0123456789",
	AccessTTL:     15 * time.Minute,
	RefreshTTL:    7 * 24 * time.Hour,
}

type testClock struct{ now time.Time }

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type env struct {
	store   *memory.Store
	backend *cache.LocalBackend
	cache   *cache.Service
	clock   *testClock
	tokens  *TokenService
	policy  *InvalidationPolicy
	auth    *AuthService
	votes   *VoteService
	content *ContentService
	users   *UserService
}

func newEnv(t *testing.T) *env {
	t.Helper()
	store := memory.New()
	backend := cache.NewLocalBackend(128)
	return newEnvWithCache(t, store, backend, cache.New(backend, time.Second))
}

func newEnvWithCache(t *testing.T, store *memory.Store, backend *cache.LocalBackend, c *cache.Service) *env {
	t.Helper()
	clock := &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	tokens := NewTokenService(testJWT, WithClock(clock.Now))
	policy := NewInvalidationPolicy(c)
	return &env{
		store:   store,
		backend: backend,
		cache:   c,
		clock:   clock,
		tokens:  tokens,
		policy:  policy,
		auth:    NewAuthService(store.Users(), store.Sessions(), store, tokens, WithBcryptCost(bcrypt.MinCost)),
		votes:   NewVoteService(store.Votes(), store.Content(), store, policy),
		content: NewContentService(store.Content(), store, c, policy, time.Minute),
		users:   NewUserService(store.Profiles()),
	}
}

func (e *env) register(t *testing.T, username string) domain.User {
	t.Helper()
	resp, err := e.auth.Register(context.Background(), domain.RegisterRequest{
		Username: username,
		Email:    username + "@x.com",
		Password: "password-" + username,
	})
	if err != nil {
		t.Fatalf("register %s: %s", username, err)
	}
	return resp.User
}

func (e *env) login(t *testing.T, username string) *domain.AuthResponse {
	t.Helper()
	resp, err := e.auth.Login(context.Background(), domain.LoginRequest{
		Email:    username + "@x.com",
		Password: "password-" + username,
	})
	if err != nil {
		t.Fatalf("login %s: %s", username, err)
	}
	return resp
}

func (e *env) question(t *testing.T, author domain.User) *domain.Question {
	t.Helper()
	q, err := e.content.CreateQuestion(context.Background(), author.ID, domain.CreateQuestionRequest{
		Title: "How does the scheduler work",
		Body:  "Looking for details on goroutine scheduling.",
		Tags:  []string{"Go", "runtime"},
	})
	if err != nil {
		t.Fatalf("create question: %s", err)
	}
	return q
}
