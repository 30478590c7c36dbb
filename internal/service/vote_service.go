// Package service holds the vote and feed use cases that sit between the
// HTTP handlers and the repositories.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pulse/internal/cache"
	"pulse/internal/featureflags"
	"pulse/internal/models"
	"pulse/internal/notifications"
	"pulse/internal/observability"
	"pulse/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
)

// VotePublisher pushes applied votes to live subscribers.
type VotePublisher interface {
	PublishVote(ctx context.Context, evt notifications.VoteEvent) error
}

type VoteService struct {
	votes      repository.VoteRepository
	subjects   repository.SubjectRepository
	publisher  VotePublisher
	rdb        *redis.Client
	flags      *featureflags.Manager
	maxRetries int
	log        *observability.StructuredLogger
	now        func() time.Time
}

// VoteServiceOptions carries the optional collaborators of a VoteService.
// Nil fields disable the matching side effect.
type VoteServiceOptions struct {
	Publisher  VotePublisher
	Redis      *redis.Client
	Flags      *featureflags.Manager
	MaxRetries int
}

type CastVoteInput struct {
	Subject        models.SubjectRef
	VoterID        string
	Direction      string
	IdempotencyKey string
}

func NewVoteService(votes repository.VoteRepository, subjects repository.SubjectRepository, opts VoteServiceOptions) *VoteService {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	return &VoteService{
		votes:      votes,
		subjects:   subjects,
		publisher:  opts.Publisher,
		rdb:        opts.Redis,
		flags:      opts.Flags,
		maxRetries: opts.MaxRetries,
		log:        observability.NewStructuredLogger(),
		now:        time.Now,
	}
}

func validateVoter(voterID string) error {
	if strings.TrimSpace(voterID) == "" {
		return models.NewUnauthorizedError("Voter identity required")
	}
	if len(voterID) > models.MaxVoterIDLength {
		return models.NewValidationError(fmt.Sprintf("voterId too long (max %d characters)", models.MaxVoterIDLength))
	}
	return nil
}

func validateSubject(ref models.SubjectRef) error {
	switch ref.Kind {
	case models.SubjectPost, models.SubjectComment:
	default:
		return models.NewValidationError(fmt.Sprintf("unknown subject type %q", ref.Kind))
	}
	if ref.ID == 0 {
		return models.NewValidationError("subjectId is required")
	}
	return nil
}

// CastVote applies a toggle vote. Direction is validated before anything is
// read. A write conflict is retried from scratch up to maxRetries times.
func (s *VoteService) CastVote(ctx context.Context, in CastVoteInput) (*models.VoteOutcome, error) {
	dir, err := models.ParseDirection(in.Direction)
	if err != nil {
		return nil, err
	}
	if err := validateVoter(in.VoterID); err != nil {
		return nil, err
	}
	if err := validateSubject(in.Subject); err != nil {
		return nil, err
	}

	if in.IdempotencyKey != "" && s.rdb != nil {
		return s.castOnce(ctx, in, dir)
	}
	return s.apply(ctx, in.Subject, in.VoterID, dir)
}

func (s *VoteService) apply(ctx context.Context, ref models.SubjectRef, voterID string, dir models.Direction) (*models.VoteOutcome, error) {
	span, ctx := observability.NewSpan(ctx, "VoteService.CastVote",
		attribute.String("subject.type", string(ref.Kind)),
		attribute.Int64("subject.id", int64(ref.ID)),
		attribute.String("vote.direction", string(dir)),
	)
	defer span.End()

	var (
		out *models.VoteOutcome
		err error
	)
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		if attempt > 0 {
			if cerr := ctx.Err(); cerr != nil {
				err = cerr
				break
			}
			observability.VoteRetries.Inc()
		}
		out, err = s.votes.Apply(ctx, ref, voterID, dir)
		if err == nil || !errors.Is(err, models.ErrWriteConflict) {
			break
		}
		observability.VoteConflicts.WithLabelValues(string(ref.Kind)).Inc()
		span.AddAttributes(attribute.Int("vote.conflicts", attempt+1))
	}
	if err != nil {
		span.SetError(err)
		if models.StatusFor(err) >= 500 {
			s.log.LogServiceError(ctx, "VoteService", "CastVote", err, map[string]interface{}{"subject": ref.String()})
		}
		return nil, err
	}

	observability.VotesTotal.WithLabelValues(string(ref.Kind), string(out.Transition)).Inc()
	s.log.LogServiceCall(ctx, "VoteService", "CastVote", map[string]interface{}{
		"subject":    ref.String(),
		"transition": string(out.Transition),
		"resulting":  string(out.ResultingDirection),
	})

	s.afterVote(ctx, ref, *out)
	return out, nil
}

// afterVote runs the best-effort side effects of an applied vote. None of
// them can fail the vote.
func (s *VoteService) afterVote(ctx context.Context, ref models.SubjectRef, out models.VoteOutcome) {
	if _, err := cache.BumpFeedVersion(ctx, s.rdb, string(ref.Kind)); err != nil {
		s.log.LogServiceError(ctx, "VoteService", "BumpFeedVersion", err, nil)
	}

	if s.publisher == nil || !s.flags.On(featureflags.VoteEvents) {
		return
	}
	subj, err := s.subjects.Get(ctx, ref)
	if err != nil {
		s.log.LogServiceError(ctx, "VoteService", "PublishVote", err, map[string]interface{}{"subject": ref.String()})
		return
	}
	if err := s.publisher.PublishVote(ctx, notifications.NewVoteEvent(out, subj.ParentID, s.now())); err != nil {
		s.log.LogServiceError(ctx, "VoteService", "PublishVote", err, map[string]interface{}{"subject": ref.String()})
	}
}

// CurrentVote returns the voter's direction on a subject, none if unvoted.
func (s *VoteService) CurrentVote(ctx context.Context, ref models.SubjectRef, voterID string) (models.Direction, error) {
	if err := validateVoter(voterID); err != nil {
		return "", err
	}
	if err := validateSubject(ref); err != nil {
		return "", err
	}
	ok, err := s.subjects.Exists(ctx, ref)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", models.NewSubjectNotFoundError(ref)
	}
	return s.votes.Get(ctx, ref, voterID)
}
