package v1

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func TestTokenRoundTrip(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewTokenService(testJWT, WithClock(clock.Now))

	access, err := s.IssueAccessToken(7)
	if err != nil {
		t.Fatal(err)
	}
	claims, err := s.Verify(access, AccessToken)
	if err != nil {
		t.Fatalf("verify access: %s", err)
	}
	if claims.UserID != 7 || claims.Type != "" || claims.ID == "" {
		t.Fatalf("unexpected access claims %+v", claims)
	}

	refresh, err := s.IssueRefreshToken(7)
	if err != nil {
		t.Fatal(err)
	}
	claims, err = s.Verify(refresh, RefreshToken)
	if err != nil {
		t.Fatalf("verify refresh: %s", err)
	}
	if claims.UserID != 7 || claims.Type != "refresh" {
		t.Fatalf("unexpected refresh claims %+v", claims)
	}
}

func TestTokenSecretsAreSeparate(t *testing.T) {
	s := NewTokenService(testJWT)
	refresh, _ := s.IssueRefreshToken(1)
	access, _ := s.IssueAccessToken(1)

	if _, err := s.Verify(refresh, AccessToken); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("refresh token as access: want ErrInvalidSignature, got %v", err)
	}
	if _, err := s.Verify(access, RefreshToken); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("access token as refresh: want ErrInvalidSignature, got %v", err)
	}
}

func TestTokenExpiry(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewTokenService(testJWT, WithClock(clock.Now))
	access, _ := s.IssueAccessToken(1)

	clock.Advance(testJWT.AccessTTL - time.Second)
	if _, err := s.Verify(access, AccessToken); err != nil {
		t.Fatalf("token must still be valid: %s", err)
	}

	clock.Advance(time.Second)
	if _, err := s.Verify(access, AccessToken); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("want ErrTokenExpired, got %v", err)
	}
}

func TestTokenRejectsOtherAlgorithmsAndTampering(t *testing.T) {
	s := NewTokenService(testJWT)

	hs384, err := jwt.NewWithClaims(jwt.SigningMethodHS384, Claims{
		UserID:           1,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(testJWT.Secret))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Verify(hs384, AccessToken); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("HS384: want ErrInvalidSignature, got %v", err)
	}

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: 1}).SignedString([]byte(testJWT.Secret))
	if _, err := s.Verify(noExp, AccessToken); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("missing exp: want ErrInvalidSignature, got %v", err)
	}

	access, _ := s.IssueAccessToken(1)
	tampered := access[:len(access)-2] + "xx"
	if _, err := s.Verify(tampered, AccessToken); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("tampered: want ErrInvalidSignature, got %v", err)
	}

	if _, err := s.Verify("not-a-token", AccessToken); !errors.Is(err, ErrInvalidSignature) {
		t.Errorf("garbage: want ErrInvalidSignature, got %v", err)
	}
}

func TestValidateShape(t *testing.T) {
	cases := map[string]struct {
		claims Claims
		kind   TokenKind
		ok     bool
	}{
		"access":               {Claims{UserID: 1}, AccessToken, true},
		"refresh":              {Claims{UserID: 1, Type: "refresh"}, RefreshToken, true},
		"zero user":            {Claims{UserID: 0}, AccessToken, false},
		"negative user":        {Claims{UserID: -3, Type: "refresh"}, RefreshToken, false},
		"refresh without type": {Claims{UserID: 1}, RefreshToken, false},
		"access with type":     {Claims{UserID: 1, Type: "refresh"}, AccessToken, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			err := tc.claims.ValidateShape(tc.kind)
			if tc.ok && err != nil {
				t.Fatalf("want valid, got %v", err)
			}
			if !tc.ok && !errors.Is(err, ErrMalformedClaims) {
				t.Fatalf("want ErrMalformedClaims, got %v", err)
			}
		})
	}
}

func TestVerifyChecksShapeAfterSignature(t *testing.T) {
	s := NewTokenService(testJWT)
	signed, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID:           1,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(testJWT.RefreshSecret))

	if _, err := s.VerifySignature(signed, RefreshToken); err != nil {
		t.Fatalf("signature is valid: %s", err)
	}
	if _, err := s.Verify(signed, RefreshToken); !errors.Is(err, ErrMalformedClaims) {
		t.Fatalf("refresh token without type: want ErrMalformedClaims, got %v", err)
	}
}

func TestDecodeExpiry(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 500, time.UTC)}
	s := NewTokenService(testJWT, WithClock(clock.Now))
	refresh, _ := s.IssueRefreshToken(1)

	exp, err := s.DecodeExpiry(refresh)
	if err != nil {
		t.Fatal(err)
	}
	want := clock.now.Add(testJWT.RefreshTTL).Truncate(time.Second)
	if !exp.Equal(want) {
		t.Fatalf("want %s, got %s", want, exp)
	}

	if _, err := s.DecodeExpiry("garbage"); !errors.Is(err, ErrMalformedClaims) {
		t.Fatalf("want ErrMalformedClaims, got %v", err)
	}
}

func TestRefreshTokensAreUniqueWithinOneSecond(t *testing.T) {
	clock := &testClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	s := NewTokenService(testJWT, WithClock(clock.Now))
	a, _ := s.IssueRefreshToken(1)
	b, _ := s.IssueRefreshToken(1)
	if a == b {
		t.Fatal("tokens minted at the same instant must differ")
	}
}
