package v1

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/crypto/bcrypt"

	"github.com/duynhne/qa-service/internal/core/domain"
	"github.com/duynhne/qa-service/internal/logger"
	"github.com/duynhne/qa-service/middleware"
)

// AuthService implements registration, login and refresh-session rotation.
// It depends on repository interfaces (injected via constructor) and
// MUST NOT access the database or SQL directly.
type AuthService struct {
	users      domain.UserRepository
	sessions   domain.SessionRepository
	tx         domain.Transactor
	tokens     *TokenService
	bcryptCost int
	dummyHash  func() []byte
}

// AuthOption configures an AuthService.
type AuthOption func(*AuthService)

// WithBcryptCost sets the cost used to hash new passwords.
func WithBcryptCost(cost int) AuthOption {
	return func(s *AuthService) { s.bcryptCost = cost }
}

// NewAuthService creates a new AuthService with the given dependencies.
func NewAuthService(
	users domain.UserRepository,
	sessions domain.SessionRepository,
	tx domain.Transactor,
	tokens *TokenService,
	opts ...AuthOption,
) *AuthService {
	s := &AuthService{
		users:      users,
		sessions:   sessions,
		tx:         tx,
		tokens:     tokens,
		bcryptCost: bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	// Compared against when the email is unknown so both failure paths cost one bcrypt run.
	s.dummyHash = sync.OnceValue(func() []byte {
		h, _ := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), s.bcryptCost)
		return h
	})
	return s
}

// Register creates a user and returns an access token. No refresh session
// is created; the client logs in to obtain one.
func (s *AuthService) Register(ctx context.Context, req domain.RegisterRequest) (*domain.AuthResponse, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.register", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("username", req.Username),
	))
	defer span.End()

	exists, err := s.users.ExistsByUsernameOrEmail(ctx, req.Username, req.Email)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("check existing user: %w", err)
	}
	if exists {
		span.SetAttributes(attribute.Bool("registration.success", false))
		return nil, fmt.Errorf("register user %q: %w", req.Username, ErrUserExists)
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	row, err := s.users.Create(ctx, req.Username, req.Email, string(passwordHash))
	if errors.Is(err, domain.ErrConflict) {
		// Lost a race with a concurrent registration of the same name or email.
		return nil, fmt.Errorf("register user %q: %w", req.Username, ErrUserExists)
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("insert user: %w", err)
	}

	token, err := s.tokens.IssueAccessToken(row.ID)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("user.id", row.ID),
		attribute.Bool("registration.success", true),
	)
	span.AddEvent("user.registered")

	return &domain.AuthResponse{Token: token, User: row.Profile()}, nil
}

// Login verifies the credentials and opens a new refresh session.
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest) (*domain.AuthResponse, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.login", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	row, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user by email: %w", err)
	}
	if row == nil {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash(), []byte(req.Password))
		span.SetAttributes(attribute.Bool("auth.success", false))
		span.AddEvent("authentication.failed")
		return nil, fmt.Errorf("authenticate: %w", ErrInvalidCredentials)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(req.Password)); err != nil {
		span.SetAttributes(attribute.Bool("auth.success", false))
		span.AddEvent("authentication.failed")
		return nil, fmt.Errorf("authenticate: %w", ErrInvalidCredentials)
	}

	resp, err := s.openSession(ctx, row)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	span.SetAttributes(
		attribute.Int64("user.id", row.ID),
		attribute.Bool("auth.success", true),
	)
	span.AddEvent("user.authenticated")

	return resp, nil
}

// Refresh exchanges a refresh token for a new token pair, revoking the
// presented session. Presenting an already revoked token revokes every
// session of its owner.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.AuthResponse, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.refresh", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	claims, err := s.tokens.Verify(refreshToken, RefreshToken)
	if err != nil {
		span.AddEvent("refresh.rejected")
		return nil, fmt.Errorf("refresh: %w: %w", ErrInvalidRefreshToken, err)
	}

	var (
		resp     *domain.AuthResponse
		reusedBy int64
		now      = s.tokens.now()
	)
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		session, err := s.sessions.GetByToken(ctx, refreshToken, true)
		if err != nil {
			return fmt.Errorf("query session: %w", err)
		}
		if session == nil {
			return fmt.Errorf("lookup session: %w", ErrInvalidRefreshToken)
		}
		if session.Revoked {
			reusedBy = session.UserID
			return nil
		}
		if session.UserID != claims.UserID || !session.Active(now) {
			return fmt.Errorf("session %d: %w", session.ID, ErrInvalidRefreshToken)
		}

		row, err := s.users.GetByID(ctx, claims.UserID)
		if err != nil {
			return fmt.Errorf("query user %d: %w", claims.UserID, err)
		}
		if row == nil {
			return fmt.Errorf("lookup user %d: %w", claims.UserID, ErrUserNotFound)
		}

		if _, err := s.sessions.Revoke(ctx, refreshToken); err != nil {
			return fmt.Errorf("revoke session %d: %w", session.ID, err)
		}
		resp, err = s.openSession(ctx, row)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if reusedBy != 0 {
		span.AddEvent("refresh.reuse_detected")
		s.revokeAllAfterReuse(ctx, reusedBy)
		return nil, fmt.Errorf("refresh: %w", ErrInvalidRefreshToken)
	}

	span.SetAttributes(attribute.Int64("user.id", resp.User.ID))
	span.AddEvent("session.rotated")
	return resp, nil
}

// revokeAllAfterReuse runs outside the refresh transaction so the lockout
// is not undone when the refresh itself fails. Its outcome never changes the
// caller's error.
func (s *AuthService) revokeAllAfterReuse(ctx context.Context, userID int64) {
	ctx = context.WithoutCancel(ctx)
	log := logger.FromContext(ctx)
	middleware.RefreshReuseDetectedTotal.Inc()

	n, err := s.sessions.RevokeAllForUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).
			Str("event", "refresh_token_reuse").
			Int64("user_id", userID).
			Msg("Refresh token reuse detected, revoking sessions failed")
		return
	}
	log.Warn().
		Str("event", "refresh_token_reuse").
		Int64("user_id", userID).
		Int64("revoked_sessions", n).
		Msg("Refresh token reuse detected, all sessions revoked")
}

// Logout revokes the session of the given refresh token. Unknown and
// already revoked tokens succeed.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	ctx, span := middleware.StartSpan(ctx, "auth.logout", trace.WithAttributes(
		attribute.String("layer", "logic"),
	))
	defer span.End()

	matched, err := s.sessions.Revoke(ctx, refreshToken)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("revoke session: %w", err)
	}
	span.SetAttributes(attribute.Bool("session.matched", matched))
	return nil
}

// Authenticate verifies an access token and returns its user id.
func (s *AuthService) Authenticate(accessToken string) (int64, error) {
	claims, err := s.tokens.Verify(accessToken, AccessToken)
	if err != nil {
		return 0, fmt.Errorf("authenticate: %w: %w", ErrUnauthorized, err)
	}
	return claims.UserID, nil
}

// GetMe returns the public profile of userID.
func (s *AuthService) GetMe(ctx context.Context, userID int64) (*domain.User, error) {
	ctx, span := middleware.StartSpan(ctx, "auth.get_me", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	row, err := s.users.GetByID(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query user %d: %w", userID, err)
	}
	if row == nil {
		return nil, fmt.Errorf("lookup user %d: %w", userID, ErrUserNotFound)
	}
	user := row.Profile()
	return &user, nil
}

// openSession issues a token pair and persists the refresh session with the
// expiry encoded in the refresh token itself.
func (s *AuthService) openSession(ctx context.Context, row *domain.UserRow) (*domain.AuthResponse, error) {
	access, err := s.tokens.IssueAccessToken(row.ID)
	if err != nil {
		return nil, err
	}
	refresh, err := s.tokens.IssueRefreshToken(row.ID)
	if err != nil {
		return nil, err
	}
	expiresAt, err := s.tokens.DecodeExpiry(refresh)
	if err != nil {
		return nil, err
	}
	if _, err := s.sessions.Create(ctx, row.ID, refresh, expiresAt); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &domain.AuthResponse{
		Token:        access,
		RefreshToken: refresh,
		User:         row.Profile(),
	}, nil
}
