package service

import (
	"context"
	"sync"

	"pulse/internal/models"
	"pulse/internal/notifications"
	"pulse/internal/repository"
)

// voteRepoStub is a stub for repository.VoteRepository.
type voteRepoStub struct {
	applyFn       func(context.Context, models.SubjectRef, string, models.Direction) (*models.VoteOutcome, error)
	getFn         func(context.Context, models.SubjectRef, string) (models.Direction, error)
	listByVoterFn func(context.Context, models.SubjectKind, string, []uint) (map[uint]models.Direction, error)
}

func (s *voteRepoStub) Apply(ctx context.Context, ref models.SubjectRef, voterID string, dir models.Direction) (*models.VoteOutcome, error) {
	return s.applyFn(ctx, ref, voterID, dir)
}
func (s *voteRepoStub) Get(ctx context.Context, ref models.SubjectRef, voterID string) (models.Direction, error) {
	return s.getFn(ctx, ref, voterID)
}
func (s *voteRepoStub) ListByVoter(ctx context.Context, kind models.SubjectKind, voterID string, ids []uint) (map[uint]models.Direction, error) {
	return s.listByVoterFn(ctx, kind, voterID, ids)
}

// subjectRepoStub is a stub for repository.SubjectRepository.
type subjectRepoStub struct {
	existsFn          func(context.Context, models.SubjectRef) (bool, error)
	getFn             func(context.Context, models.SubjectRef) (*models.Subject, error)
	postSnapshotFn    func(context.Context, *uint, repository.Window) ([]models.Subject, error)
	commentSnapshotFn func(context.Context, uint, repository.Window) ([]models.Subject, error)
}

func (s *subjectRepoStub) Exists(ctx context.Context, ref models.SubjectRef) (bool, error) {
	return s.existsFn(ctx, ref)
}
func (s *subjectRepoStub) Get(ctx context.Context, ref models.SubjectRef) (*models.Subject, error) {
	return s.getFn(ctx, ref)
}
func (s *subjectRepoStub) PostSnapshot(ctx context.Context, forumID *uint, w repository.Window) ([]models.Subject, error) {
	return s.postSnapshotFn(ctx, forumID, w)
}
func (s *subjectRepoStub) CommentSnapshot(ctx context.Context, postID uint, w repository.Window) ([]models.Subject, error) {
	return s.commentSnapshotFn(ctx, postID, w)
}

func noopSubjectRepo() *subjectRepoStub {
	return &subjectRepoStub{
		existsFn: func(_ context.Context, _ models.SubjectRef) (bool, error) { return true, nil },
		getFn: func(_ context.Context, ref models.SubjectRef) (*models.Subject, error) {
			return &models.Subject{Kind: ref.Kind, ID: ref.ID, ParentID: 1}, nil
		},
		postSnapshotFn:    func(_ context.Context, _ *uint, _ repository.Window) ([]models.Subject, error) { return nil, nil },
		commentSnapshotFn: func(_ context.Context, _ uint, _ repository.Window) ([]models.Subject, error) { return nil, nil },
	}
}

type publisherStub struct {
	mu     sync.Mutex
	events []notifications.VoteEvent
}

func (p *publisherStub) PublishVote(_ context.Context, evt notifications.VoteEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *publisherStub) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}
