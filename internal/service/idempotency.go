package service

import (
	"context"
	"encoding/json"
	"errors"

	"pulse/internal/cache"
	"pulse/internal/models"
)

// storedVote remembers what a key was first used for, so a reused key can
// only ever replay the same request.
type storedVote struct {
	Pending   bool                `json:"pending"`
	Subject   models.SubjectRef   `json:"subject"`
	Direction models.Direction    `json:"direction"`
	Outcome   *models.VoteOutcome `json:"outcome,omitempty"`
}

func (v storedVote) matches(ref models.SubjectRef, dir models.Direction) bool {
	return v.Subject == ref && v.Direction == dir
}

// errVoteInFlight is returned for a duplicate whose original is still running.
var errVoteInFlight = errors.New("vote with this idempotency key is in progress")

// castOnce applies a vote at most once per (voter, Idempotency-Key). The
// first caller reserves the key; later callers get the stored outcome.
// Redis failures fall back to a plain apply.
func (s *VoteService) castOnce(ctx context.Context, in CastVoteInput, dir models.Direction) (*models.VoteOutcome, error) {
	key := cache.IdempotencyKey(in.VoterID, in.IdempotencyKey)
	record := storedVote{Pending: true, Subject: in.Subject, Direction: dir}

	pending, err := json.Marshal(record)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	reserved, err := s.rdb.SetNX(ctx, key, pending, cache.IdempotencyTTL).Result()
	if err != nil {
		s.log.LogServiceError(ctx, "VoteService", "Idempotency", err, nil)
		return s.apply(ctx, in.Subject, in.VoterID, dir)
	}
	if !reserved {
		return s.replay(ctx, key, in.Subject, dir)
	}

	out, err := s.apply(ctx, in.Subject, in.VoterID, dir)
	if err != nil {
		// release so the client can retry with the same key
		_ = s.rdb.Del(ctx, key).Err()
		return nil, err
	}
	record.Pending, record.Outcome = false, out
	if err := cache.SetJSON(ctx, s.rdb, key, record, cache.IdempotencyTTL); err != nil {
		s.log.LogServiceError(ctx, "VoteService", "Idempotency", err, nil)
		// a key stuck in pending would turn every retry into a conflict
		_ = s.rdb.Del(ctx, key).Err()
	}
	return out, nil
}

func (s *VoteService) replay(ctx context.Context, key string, ref models.SubjectRef, dir models.Direction) (*models.VoteOutcome, error) {
	var stored storedVote
	found, err := cache.GetJSON(ctx, s.rdb, key, &stored)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if found && !stored.matches(ref, dir) {
		return nil, models.NewValidationError("Idempotency-Key was already used for a different vote")
	}
	if !found || stored.Pending || stored.Outcome == nil {
		return nil, models.NewWriteConflictError(errVoteInFlight)
	}
	return stored.Outcome, nil
}
