// Package notifications provides real-time vote event delivery.
package notifications

import (
	"encoding/json"
	"fmt"
	"time"

	"pulse/internal/models"
)

// EventVoteUpdated is the only event type pushed to feed subscribers.
const EventVoteUpdated = "vote_updated"

// VoteEvent carries a subject's counters after a vote. Voter identity is
// deliberately absent: the stream is public.
type VoteEvent struct {
	Type        string             `json:"type"`
	SubjectType models.SubjectKind `json:"subjectType"`
	SubjectID   uint               `json:"subjectId"`
	ParentID    uint               `json:"parentId"`
	Upvotes     int64              `json:"upvotes"`
	Downvotes   int64              `json:"downvotes"`
	At          time.Time          `json:"at"`
}

// NewVoteEvent builds the event for an applied vote.
func NewVoteEvent(out models.VoteOutcome, parentID uint, at time.Time) VoteEvent {
	return VoteEvent{
		Type:        EventVoteUpdated,
		SubjectType: out.SubjectType,
		SubjectID:   out.SubjectID,
		ParentID:    parentID,
		Upvotes:     out.Upvotes,
		Downvotes:   out.Downvotes,
		At:          at.UTC(),
	}
}

// Scopes lists the feed scopes that should see this event.
func (e VoteEvent) Scopes() []string {
	switch e.SubjectType {
	case models.SubjectComment:
		return []string{ScopeAll, PostScope(e.ParentID)}
	default:
		return []string{ScopeAll, ForumScope(e.ParentID)}
	}
}

// ScopeAll receives every vote event.
const ScopeAll = "all"

// ForumScope receives votes on posts in one forum.
func ForumScope(forumID uint) string {
	return fmt.Sprintf("forum:%d", forumID)
}

// PostScope receives votes on comments under one post.
func PostScope(postID uint) string {
	return fmt.Sprintf("post:%d", postID)
}

func decodeVoteEvent(payload string) (VoteEvent, error) {
	var e VoteEvent
	if err := json.Unmarshal([]byte(payload), &e); err != nil {
		return e, err
	}
	if e.Type != EventVoteUpdated {
		return e, fmt.Errorf("unexpected event type %q", e.Type)
	}
	return e, nil
}
