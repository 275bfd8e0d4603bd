package v1

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/duynhne/qa-service/config"
)

// Token verification errors. The Session Manager collapses all of them into
// ErrInvalidRefreshToken or ErrUnauthorized before they reach a client.
var (
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrTokenExpired     = errors.New("token expired")
	ErrMalformedClaims  = errors.New("malformed token claims")
)

// TokenKind selects the secret and the claim shape a token is checked against.
type TokenKind int

const (
	AccessToken TokenKind = iota
	RefreshToken
)

func (k TokenKind) String() string {
	if k == RefreshToken {
		return "refresh"
	}
	return "access"
}

const refreshTokenType = "refresh"

// Claims is the payload of both token kinds. Access tokens carry no type.
type Claims struct {
	UserID int64  `json:"userId"`
	Type   string `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// ValidateShape checks the claims of an already verified token.
func (c *Claims) ValidateShape(kind TokenKind) error {
	if c.UserID <= 0 {
		return fmt.Errorf("%w: userId %d", ErrMalformedClaims, c.UserID)
	}
	switch kind {
	case RefreshToken:
		if c.Type != refreshTokenType {
			return fmt.Errorf("%w: type %q on refresh token", ErrMalformedClaims, c.Type)
		}
	default:
		if c.Type != "" {
			return fmt.Errorf("%w: type %q on access token", ErrMalformedClaims, c.Type)
		}
	}
	return nil
}

// TokenService issues and verifies HS256 tokens. Access and refresh tokens
// are signed with separate secrets.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// TokenOption configures a TokenService.
type TokenOption func(*TokenService)

// WithClock replaces time.Now for issuing and expiry checks.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) { s.now = now }
}

// NewTokenService creates a TokenService from validated JWT settings.
func NewTokenService(cfg config.JWTConfig, opts ...TokenOption) *TokenService {
	s := &TokenService{
		accessSecret:  []byte(cfg.Secret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTTL,
		refreshTTL:    cfg.RefreshTTL,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueAccessToken returns a short-lived token for userID.
func (s *TokenService) IssueAccessToken(userID int64) (string, error) {
	return s.issue(userID, "", s.accessSecret, s.accessTTL)
}

// IssueRefreshToken returns a long-lived refresh token for userID.
func (s *TokenService) IssueRefreshToken(userID int64) (string, error) {
	return s.issue(userID, refreshTokenType, s.refreshSecret, s.refreshTTL)
}

func (s *TokenService) issue(userID int64, typ string, secret []byte, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: userID,
		Type:   typ,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature and expiry, then the claim shape for kind.
func (s *TokenService) Verify(token string, kind TokenKind) (*Claims, error) {
	claims, err := s.VerifySignature(token, kind)
	if err != nil {
		return nil, err
	}
	if err := claims.ValidateShape(kind); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifySignature checks signature, algorithm and expiry only.
func (s *TokenService) VerifySignature(token string, kind TokenKind) (*Claims, error) {
	secret := s.accessSecret
	if kind == RefreshToken {
		secret = s.refreshSecret
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil:
		return claims, nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("verify %s token: %w", kind, ErrTokenExpired)
	default:
		return nil, fmt.Errorf("verify %s token: %w: %v", kind, ErrInvalidSignature, err)
	}
}

// DecodeExpiry reads exp without verifying the signature. Only call it on
// tokens this service just issued or already verified.
func (s *TokenService) DecodeExpiry(token string) (time.Time, error) {
	claims := &Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, fmt.Errorf("decode expiry: %w: %v", ErrMalformedClaims, err)
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, fmt.Errorf("decode expiry: %w: missing exp", ErrMalformedClaims)
	}
	return claims.ExpiresAt.Time, nil
}
