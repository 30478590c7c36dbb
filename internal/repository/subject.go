package repository

import (
	"context"
	"errors"
	"fmt"

	"pulse/internal/models"
	"pulse/internal/observability"

	"gorm.io/gorm"
)

// SubjectRepository reads votable subjects. Counters are never written here.
type SubjectRepository interface {
	Exists(ctx context.Context, ref models.SubjectRef) (bool, error)
	Get(ctx context.Context, ref models.SubjectRef) (*models.Subject, error)
	PostSnapshot(ctx context.Context, forumID *uint, w Window) ([]models.Subject, error)
	CommentSnapshot(ctx context.Context, postID uint, w Window) ([]models.Subject, error)
}

// SnapshotOrder decides which rows a capped snapshot keeps.
type SnapshotOrder string

const (
	// OrderNewest keeps the most recently created rows.
	OrderNewest SnapshotOrder = "newest"
	// OrderTopNet keeps the rows with the highest upvotes minus downvotes.
	OrderTopNet SnapshotOrder = "top"
)

// Window bounds a snapshot. Limit 0 loads every row in scope and makes
// Order irrelevant.
type Window struct {
	Order SnapshotOrder
	Limit int
}

// Capped reports whether the window drops rows.
func (w Window) Capped() bool {
	return w.Limit > 0
}

func (w Window) apply(q *gorm.DB) *gorm.DB {
	if w.Order == OrderTopNet {
		q = q.Order("upvotes - downvotes DESC")
	}
	q = q.Order("created_at DESC").Order("id DESC")
	if w.Capped() {
		q = q.Limit(w.Limit)
	}
	return q
}

type subjectRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewSubjectRepository returns a SubjectRepository backed by db.
func NewSubjectRepository(db *gorm.DB) SubjectRepository {
	return &subjectRepository{db: db, log: observability.NewRepoLogger("subjects")}
}

// subjectModel returns the GORM model and table for a subject kind.
func subjectModel(kind models.SubjectKind) (interface{}, string, error) {
	switch kind {
	case models.SubjectPost:
		return &models.Post{}, "posts", nil
	case models.SubjectComment:
		return &models.Comment{}, "comments", nil
	default:
		return nil, "", models.NewValidationError(fmt.Sprintf("unknown subject type %q", kind))
	}
}

func (r *subjectRepository) Exists(ctx context.Context, ref models.SubjectRef) (bool, error) {
	model, table, err := subjectModel(ref.Kind)
	if err != nil {
		return false, err
	}
	defer observability.TrackQuery("exists", table)()

	var n int64
	if err := r.db.WithContext(ctx).Model(model).Where("id = ?", ref.ID).Count(&n).Error; err != nil {
		r.log.LogError(ctx, err, "exists")
		return false, err
	}
	return n > 0, nil
}

func (r *subjectRepository) Get(ctx context.Context, ref models.SubjectRef) (*models.Subject, error) {
	var s models.Subject
	var err error

	switch ref.Kind {
	case models.SubjectPost:
		var p models.Post
		err = r.db.WithContext(ctx).Take(&p, ref.ID).Error
		s = p.Subject()
	case models.SubjectComment:
		var c models.Comment
		err = r.db.WithContext(ctx).Take(&c, ref.ID).Error
		s = c.Subject()
	default:
		_, _, err = subjectModel(ref.Kind)
		return nil, err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, models.NewSubjectNotFoundError(ref)
	}
	if err != nil {
		r.log.LogError(ctx, err, "get")
		return nil, err
	}
	return &s, nil
}

// PostSnapshot loads the posts inside w, optionally within one forum, in a
// single query so every row reflects the same committed state.
func (r *subjectRepository) PostSnapshot(ctx context.Context, forumID *uint, w Window) ([]models.Subject, error) {
	defer observability.TrackQuery("snapshot", "posts")()

	q := r.db.WithContext(ctx).Model(&models.Post{})
	if forumID != nil {
		q = q.Where("forum_id = ?", *forumID)
	}
	q = w.apply(q)

	var posts []models.Post
	if err := q.Find(&posts).Error; err != nil {
		r.log.LogError(ctx, err, "post_snapshot")
		return nil, err
	}

	out := make([]models.Subject, len(posts))
	for i, p := range posts {
		out[i] = p.Subject()
	}
	r.log.LogRead(ctx, map[string]interface{}{"kind": "post", "rows": len(out)})
	return out, nil
}

// CommentSnapshot loads the comments on a post inside w.
func (r *subjectRepository) CommentSnapshot(ctx context.Context, postID uint, w Window) ([]models.Subject, error) {
	defer observability.TrackQuery("snapshot", "comments")()

	q := w.apply(r.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID))

	var comments []models.Comment
	if err := q.Find(&comments).Error; err != nil {
		r.log.LogError(ctx, err, "comment_snapshot")
		return nil, err
	}

	out := make([]models.Subject, len(comments))
	for i, c := range comments {
		out[i] = c.Subject()
	}
	r.log.LogRead(ctx, map[string]interface{}{"kind": "comment", "rows": len(out)})
	return out, nil
}
