package domain

import "context"

// RecentActivityLimit bounds the recent questions and answers of a profile.
const RecentActivityLimit = 10

// ProfileRepository reads public user profiles.
type ProfileRepository interface {
	// GetProfile returns the profile with counts and recent activity.
	// Returns (nil, nil) when no user is found.
	GetProfile(ctx context.Context, userID int64) (*UserProfile, error)

	// TopUsers returns up to limit profiles by descending reputation,
	// without recent activity.
	TopUsers(ctx context.Context, limit int) ([]UserProfile, error)
}
