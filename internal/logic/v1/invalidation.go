package v1

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/duynhne/qa-service/internal/core/domain"
	"github.com/duynhne/qa-service/internal/logger"
)

// questionListingPattern matches every cached question listing.
const questionListingPattern = questionListingPrefix + "*"

// listingGenerationKey holds the token embedded in current listing keys. It
// must stay outside questionListingPattern.
const listingGenerationKey = "generation:questions"

// noExpiry keeps the generation token until it is replaced or evicted.
const noExpiry time.Duration = 0

// InvalidationPolicy drops cached read views staled by a committed write.
// Every hook must be called after the write commits and before the response
// is sent. Listings embed answer and vote counts for an unbounded set of
// query combinations, so each hook drops the whole listing keyspace.
//
// Listing keys also embed a generation token that every hook replaces. A read
// that took the token before a write committed can only store its page under
// the old token, which no later read looks up.
type InvalidationPolicy struct {
	cache domain.Cache
}

// NewInvalidationPolicy creates a policy over cache. A nil cache disables it.
func NewInvalidationPolicy(cache domain.Cache) *InvalidationPolicy {
	return &InvalidationPolicy{cache: cache}
}

func (p *InvalidationPolicy) QuestionCreated(ctx context.Context, questionID int64) {
	p.invalidateListings(ctx, "question_created", string(domain.VotableQuestion), questionID)
}

func (p *InvalidationPolicy) AnswerCreated(ctx context.Context, questionID int64) {
	p.invalidateListings(ctx, "answer_created", string(domain.VotableQuestion), questionID)
}

func (p *InvalidationPolicy) CommentCreated(ctx context.Context, commentableType domain.VotableType, commentableID int64) {
	p.invalidateListings(ctx, "comment_created", string(commentableType), commentableID)
}

func (p *InvalidationPolicy) VoteChanged(ctx context.Context, votableType domain.VotableType, votableID int64) {
	p.invalidateListings(ctx, "vote_changed", string(votableType), votableID)
}

func (p *InvalidationPolicy) invalidateListings(ctx context.Context, reason, entity string, id int64) {
	if p == nil || p.cache == nil {
		return
	}
	p.cache.Set(ctx, listingGenerationKey, uuid.NewString(), noExpiry)
	logger.FromContext(ctx).Debug().
		Str("reason", reason).
		Str("entity", entity).
		Int64("entity_id", id).
		Msg("Invalidating question listings")
	p.cache.InvalidatePattern(ctx, questionListingPattern)
}

// ListingGeneration returns the current listing generation token, starting a
// new generation when none is stored. It must be read before the listing
// query runs.
func (p *InvalidationPolicy) ListingGeneration(ctx context.Context) string {
	if p == nil || p.cache == nil {
		return ""
	}
	var gen string
	if p.cache.Get(ctx, listingGenerationKey, &gen) && gen != "" {
		return gen
	}
	gen = uuid.NewString()
	p.cache.Set(ctx, listingGenerationKey, gen, noExpiry)
	return gen
}
