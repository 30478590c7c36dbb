package models

import (
	"fmt"
	"strings"
	"time"
)

// Direction is a voter's stance on a subject. DirectionNone is never stored;
// it is represented by the absence of a VoteRecord.
type Direction string

const (
	DirectionNone Direction = "none"
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// ParseDirection accepts "up" or "down" only.
func ParseDirection(raw string) (Direction, error) {
	switch Direction(strings.ToLower(strings.TrimSpace(raw))) {
	case DirectionUp:
		return DirectionUp, nil
	case DirectionDown:
		return DirectionDown, nil
	default:
		return "", NewInvalidDirectionError(raw)
	}
}

// Transition names what a vote did to the voter's state.
type Transition string

const (
	TransitionCast    Transition = "cast"
	TransitionFlip    Transition = "flip"
	TransitionRetract Transition = "retract"
)

// Plan is the pure state transition of the toggle machine: given the current
// direction and the requested one it yields the counter deltas and the
// resulting direction.
type Plan struct {
	Previous   Direction
	Resulting  Direction
	UpDelta    int64
	DownDelta  int64
	Transition Transition
}

// PlanVote computes the transition for requested against current.
// requested must be up or down.
func PlanVote(current, requested Direction) Plan {
	if current == "" {
		current = DirectionNone
	}
	p := Plan{Previous: current}

	if current == requested {
		p.Resulting = DirectionNone
		p.Transition = TransitionRetract
		p.addDelta(requested, -1)
		return p
	}

	p.Resulting = requested
	p.Transition = TransitionCast
	if current != DirectionNone {
		p.Transition = TransitionFlip
		p.addDelta(current, -1)
	}
	p.addDelta(requested, 1)
	return p
}

func (p *Plan) addDelta(d Direction, n int64) {
	switch d {
	case DirectionUp:
		p.UpDelta += n
	case DirectionDown:
		p.DownDelta += n
	}
}

// MaxVoterIDLength matches the votes.voter_id column.
const MaxVoterIDLength = 64

// VoteRecord stores one voter's current direction on one subject.
type VoteRecord struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	SubjectType SubjectKind `gorm:"size:16;not null;uniqueIndex:idx_vote_subject_voter,priority:1" json:"subjectType"`
	SubjectID   uint        `gorm:"not null;uniqueIndex:idx_vote_subject_voter,priority:2" json:"subjectId"`
	VoterID     string      `gorm:"size:64;not null;uniqueIndex:idx_vote_subject_voter,priority:3;index" json:"voterId"`
	Direction   Direction   `gorm:"size:8;not null;check:chk_vote_direction,direction IN ('up','down')" json:"direction"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// TableName pins the table name.
func (VoteRecord) TableName() string {
	return "votes"
}

// VoteOutcome is the result of applying a vote.
type VoteOutcome struct {
	SubjectType        SubjectKind `json:"-"`
	SubjectID          uint        `json:"-"`
	Upvotes            int64       `json:"upvotes"`
	Downvotes          int64       `json:"downvotes"`
	ResultingDirection Direction   `json:"resultingDirection"`
	Transition         Transition  `json:"-"`
}

func (o VoteOutcome) String() string {
	return fmt.Sprintf("%s:%d up=%d down=%d dir=%s", o.SubjectType, o.SubjectID, o.Upvotes, o.Downvotes, o.ResultingDirection)
}
