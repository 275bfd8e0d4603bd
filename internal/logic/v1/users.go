package v1

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/qa-service/internal/core/domain"
	"github.com/duynhne/qa-service/middleware"
)

const (
	defaultTopUsers = 10
	maxTopUsers     = 100
)

// UserService serves public user profiles.
type UserService struct {
	profiles domain.ProfileRepository
}

// NewUserService creates a new UserService.
func NewUserService(profiles domain.ProfileRepository) *UserService {
	return &UserService{profiles: profiles}
}

// GetProfile returns the profile of userID with its recent activity.
func (s *UserService) GetProfile(ctx context.Context, userID int64) (*domain.UserProfile, error) {
	ctx, span := middleware.StartSpan(ctx, "users.get_profile", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int64("user.id", userID),
	))
	defer span.End()

	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query profile %d: %w", userID, err)
	}
	if profile == nil {
		return nil, fmt.Errorf("lookup profile %d: %w", userID, ErrNotFound)
	}
	return profile, nil
}

// TopUsers returns the highest reputation profiles. limit is clamped to
// [1, 100] and defaults to 10.
func (s *UserService) TopUsers(ctx context.Context, limit int) ([]domain.UserProfile, error) {
	switch {
	case limit < 1:
		limit = defaultTopUsers
	case limit > maxTopUsers:
		limit = maxTopUsers
	}

	ctx, span := middleware.StartSpan(ctx, "users.top", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.Int("limit", limit),
	))
	defer span.End()

	profiles, err := s.profiles.TopUsers(ctx, limit)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query top users: %w", err)
	}
	return profiles, nil
}
