package v1

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/duynhne/qa-service/internal/core/domain"
	"github.com/duynhne/qa-service/internal/logger"
	"github.com/duynhne/qa-service/middleware"
)

// maxVoteAttempts bounds retries of a vote transaction that lost a race on
// the (user, votable) unique key.
const maxVoteAttempts = 3

// Transition names the state change a cast produced.
type Transition string

const (
	TransitionCreated   Transition = "created"
	TransitionFlipped   Transition = "flipped"
	TransitionRetracted Transition = "retracted"
)

// VoteResult describes the state after a cast.
type VoteResult struct {
	Transition Transition `json:"transition"`
	// VoteType is the caller's current vote; nil after a retraction.
	VoteType *domain.VoteType `json:"vote_type"`
	// Score is upvotes minus downvotes on the votable after the cast.
	Score int `json:"vote_count"`
}

// VoteService runs the vote toggle state machine:
// no vote -> cast inserts, same type -> retracts, other type -> flips in place.
type VoteService struct {
	votes        domain.VoteRepository
	content      domain.ContentRepository
	tx           domain.Transactor
	invalidation *InvalidationPolicy
}

// NewVoteService creates a new VoteService with the given dependencies.
func NewVoteService(
	votes domain.VoteRepository,
	content domain.ContentRepository,
	tx domain.Transactor,
	invalidation *InvalidationPolicy,
) *VoteService {
	return &VoteService{
		votes:        votes,
		content:      content,
		tx:           tx,
		invalidation: invalidation,
	}
}

// CastVote applies voteType from userID to the votable.
func (s *VoteService) CastVote(
	ctx context.Context,
	userID int64,
	votableType domain.VotableType,
	votableID int64,
	voteType domain.VoteType,
) (*VoteResult, error) {
	ctx, span := middleware.StartSpan(ctx, "vote.cast", trace.WithAttributes(
		attribute.String("layer", "logic"),
		attribute.String("votable.type", string(votableType)),
		attribute.Int64("votable.id", votableID),
		attribute.String("vote.type", string(voteType)),
	))
	defer span.End()

	if !votableType.Valid() || !voteType.Valid() {
		return nil, fmt.Errorf("cast %q on %q: %w", voteType, votableType, ErrInvalidVote)
	}

	owner, err := s.content.FindVotableOwner(ctx, votableType, votableID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("query %s %d owner: %w", votableType, votableID, err)
	}
	if owner == nil {
		return nil, fmt.Errorf("lookup %s %d: %w", votableType, votableID, ErrNotFound)
	}
	if *owner == userID {
		span.AddEvent("vote.self_vote_rejected")
		return nil, fmt.Errorf("vote on %s %d: %w", votableType, votableID, ErrSelfVoteForbidden)
	}

	var result *VoteResult
	for attempt := 1; ; attempt++ {
		result, err = s.toggle(ctx, userID, votableType, votableID, voteType, *owner)
		if err == nil || !errors.Is(err, domain.ErrConflict) || attempt == maxVoteAttempts {
			break
		}
		logger.FromContext(ctx).Debug().
			Int("attempt", attempt).
			Str("votable_type", string(votableType)).
			Int64("votable_id", votableID).
			Msg("Concurrent vote on same votable, retrying")
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	middleware.VoteTransitionsTotal.WithLabelValues(string(result.Transition)).Inc()
	span.SetAttributes(attribute.String("vote.transition", string(result.Transition)))

	s.invalidation.VoteChanged(ctx, votableType, votableID)
	return result, nil
}

func (s *VoteService) toggle(
	ctx context.Context,
	userID int64,
	votableType domain.VotableType,
	votableID int64,
	voteType domain.VoteType,
	ownerID int64,
) (*VoteResult, error) {
	var result VoteResult
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.votes.FindByUserAndVotable(ctx, userID, votableType, votableID, true)
		if err != nil {
			return fmt.Errorf("query vote: %w", err)
		}

		switch {
		case existing == nil:
			if _, err := s.votes.Create(ctx, domain.VoteRow{
				UserID:      userID,
				VotableType: votableType,
				VotableID:   votableID,
				VoteType:    voteType,
				AuthorID:    ownerID,
			}); err != nil {
				return fmt.Errorf("insert vote: %w", err)
			}
			result.Transition = TransitionCreated
			result.VoteType = &voteType
		case existing.VoteType == voteType:
			if err := s.votes.Delete(ctx, existing.ID); err != nil {
				return fmt.Errorf("delete vote %d: %w", existing.ID, err)
			}
			result.Transition = TransitionRetracted
		default:
			if err := s.votes.UpdateType(ctx, existing.ID, voteType); err != nil {
				return fmt.Errorf("update vote %d: %w", existing.ID, err)
			}
			result.Transition = TransitionFlipped
			result.VoteType = &voteType
		}

		result.Score, err = s.votes.Score(ctx, votableType, votableID)
		if err != nil {
			return fmt.Errorf("score %s %d: %w", votableType, votableID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
