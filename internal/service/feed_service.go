package service

import (
	"context"
	"fmt"
	"time"

	"pulse/internal/cache"
	"pulse/internal/featureflags"
	"pulse/internal/models"
	"pulse/internal/notifications"
	"pulse/internal/observability"
	"pulse/internal/ranking"
	"pulse/internal/repository"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
)

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 100
)

type FeedService struct {
	subjects      repository.SubjectRepository
	votes         repository.VoteRepository
	engine        *ranking.Engine
	rdb           *redis.Client
	flags         *featureflags.Manager
	snapshotLimit int
	cacheTTL      time.Duration
	group         singleflight.Group
}

// FeedServiceOptions configures snapshot size and caching. SnapshotLimit 0
// ranks every subject in scope.
type FeedServiceOptions struct {
	Engine        *ranking.Engine
	Redis         *redis.Client
	Flags         *featureflags.Manager
	SnapshotLimit int
	CacheTTL      time.Duration
}

// FeedQuery selects one ranked page. Kind post lists posts, optionally in
// ForumID. Kind comment lists the comments of PostID.
type FeedQuery struct {
	Kind     models.SubjectKind
	ForumID  *uint
	PostID   uint
	Policy   string
	Limit    int
	Offset   int
	ViewerID string
}

// FeedPage is one ranked page. Total counts the whole ranked snapshot.
type FeedPage struct {
	Policy ranking.Policy   `json:"policy"`
	Items  []models.Subject `json:"items"`
	Total  int              `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

func NewFeedService(subjects repository.SubjectRepository, votes repository.VoteRepository, opts FeedServiceOptions) *FeedService {
	if opts.Engine == nil {
		opts.Engine = ranking.NewEngine()
	}
	if opts.SnapshotLimit < 0 {
		opts.SnapshotLimit = 0
	}
	return &FeedService{
		subjects:      subjects,
		votes:         votes,
		engine:        opts.Engine,
		rdb:           opts.Redis,
		flags:         opts.Flags,
		snapshotLimit: opts.SnapshotLimit,
		cacheTTL:      opts.CacheTTL,
	}
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// scope names the snapshot a query reads; it doubles as the cache scope.
func (q FeedQuery) scope() (string, error) {
	switch q.Kind {
	case models.SubjectPost:
		if q.ForumID != nil {
			return notifications.ForumScope(*q.ForumID), nil
		}
		return notifications.ScopeAll, nil
	case models.SubjectComment:
		if q.PostID == 0 {
			return "", models.NewValidationError("postId is required to list comments")
		}
		return notifications.PostScope(q.PostID), nil
	default:
		return "", models.NewValidationError(fmt.Sprintf("unknown subject type %q", q.Kind))
	}
}

// Feed ranks a consistent snapshot and returns the requested page. Ranking
// happens before pagination so pages never overlap within one snapshot.
func (s *FeedService) Feed(ctx context.Context, q FeedQuery) (*FeedPage, error) {
	policy, err := ranking.ParsePolicy(q.Policy)
	if err != nil {
		return nil, err
	}
	scope, err := q.scope()
	if err != nil {
		return nil, err
	}
	limit, offset := normalizePage(q.Limit, q.Offset)

	span, ctx := observability.NewSpan(ctx, "FeedService.Feed",
		attribute.String("feed.kind", string(q.Kind)),
		attribute.String("feed.scope", scope),
		attribute.String("feed.policy", string(policy)),
	)
	defer span.End()

	snapshot, err := s.snapshot(ctx, q, scope, s.window(policy))
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	start := time.Now()
	ranked := ranking.Rank(s.engine, snapshot, policy)
	observability.ObserveRank(string(policy), start)

	page := &FeedPage{Policy: policy, Total: len(ranked), Limit: limit, Offset: offset, Items: []models.Subject{}}
	if offset < len(ranked) {
		end := min(offset+limit, len(ranked))
		page.Items = ranked[offset:end]
	}

	if err := s.overlayViewer(ctx, q.Kind, q.ViewerID, page.Items); err != nil {
		span.SetError(err)
		return nil, err
	}
	return page, nil
}

// window picks the rows a capped snapshot keeps. Top keeps the best net
// scores so old winners are never cut. New and hot keep the newest rows;
// hot divides by age, so an old row needs a proportionally larger net to
// place, and only operators who set a cap accept that trade.
func (s *FeedService) window(policy ranking.Policy) repository.Window {
	if s.snapshotLimit <= 0 {
		return repository.Window{}
	}
	order := repository.OrderNewest
	if policy == ranking.PolicyTop {
		order = repository.OrderTopNet
	}
	return repository.Window{Order: order, Limit: s.snapshotLimit}
}

func (s *FeedService) snapshot(ctx context.Context, q FeedQuery, scope string, w repository.Window) ([]models.Subject, error) {
	load := func(ctx context.Context) ([]models.Subject, error) {
		if q.Kind == models.SubjectComment {
			return s.subjects.CommentSnapshot(ctx, q.PostID, w)
		}
		return s.subjects.PostSnapshot(ctx, q.ForumID, w)
	}

	if s.rdb == nil || s.cacheTTL <= 0 || !s.flags.On(featureflags.FeedCache) {
		observability.FeedCacheResults.WithLabelValues("bypass").Inc()
		return load(ctx)
	}

	version, err := cache.FeedVersion(ctx, s.rdb, string(q.Kind))
	if err != nil {
		observability.FeedCacheResults.WithLabelValues("bypass").Inc()
		return load(ctx)
	}
	selection := "all"
	if w.Capped() {
		selection = fmt.Sprintf("%s%d", w.Order, w.Limit)
	}
	key := cache.FeedKey(string(q.Kind), version, scope, selection)

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		// Waiters share this load, so one caller going away must not fail
		// the rest.
		shared := context.WithoutCancel(ctx)
		var subjects []models.Subject
		hit, err := cache.Aside(shared, s.rdb, key, &subjects, s.cacheTTL, func() error {
			loaded, err := load(shared)
			subjects = loaded
			return err
		})
		if err != nil {
			return nil, err
		}
		if hit {
			observability.FeedCacheResults.WithLabelValues("hit").Inc()
		} else {
			observability.FeedCacheResults.WithLabelValues("miss").Inc()
		}
		return subjects, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Subject), nil
}

// overlayViewer fills ViewerDirection in place; items is already a private
// copy produced by ranking.
func (s *FeedService) overlayViewer(ctx context.Context, kind models.SubjectKind, viewerID string, items []models.Subject) error {
	if viewerID == "" || len(items) == 0 {
		return nil
	}
	ids := make([]uint, len(items))
	for i, it := range items {
		ids[i] = it.ID
	}
	dirs, err := s.votes.ListByVoter(ctx, kind, viewerID, ids)
	if err != nil {
		return err
	}
	for i := range items {
		if d, ok := dirs[items[i].ID]; ok {
			items[i].ViewerDirection = d
		} else {
			items[i].ViewerDirection = models.DirectionNone
		}
	}
	return nil
}
