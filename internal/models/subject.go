// Package models contains data structures for the application's domain models.
package models

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// SubjectKind names the kind of entity a vote can target.
type SubjectKind string

const (
	SubjectPost    SubjectKind = "post"
	SubjectComment SubjectKind = "comment"
)

// ParseSubjectKind accepts "post"/"posts" and "comment"/"comments".
// An empty value defaults to posts.
func ParseSubjectKind(raw string) (SubjectKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "post", "posts":
		return SubjectPost, nil
	case "comment", "comments":
		return SubjectComment, nil
	default:
		return "", NewValidationError(fmt.Sprintf("unknown subject type %q", raw))
	}
}

// SubjectRef identifies a single votable entity.
type SubjectRef struct {
	Kind SubjectKind `json:"type"`
	ID   uint        `json:"id"`
}

func (r SubjectRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

// Forum groups posts.
type Forum struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Name        string         `gorm:"size:120;not null;uniqueIndex" json:"name"`
	Description string         `gorm:"type:text" json:"description"`
	CreatedAt   time.Time      `json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Post is a forum post. Upvotes and Downvotes are only ever changed by the
// vote ledger.
type Post struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	ForumID     uint           `gorm:"not null;index" json:"forumId"`
	AuthorID    string         `gorm:"size:64;not null;index" json:"authorId"`
	Title       string         `gorm:"not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	Upvotes     int64          `gorm:"not null;default:0;check:chk_posts_upvotes,upvotes >= 0" json:"upvotes"`
	Downvotes   int64          `gorm:"not null;default:0;check:chk_posts_downvotes,downvotes >= 0" json:"downvotes"`
	CreatedAt   time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt   time.Time      `json:"updatedAt"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// Subject returns the ranking view of the post.
func (p Post) Subject() Subject {
	return Subject{
		Kind:      SubjectPost,
		ID:        p.ID,
		ParentID:  p.ForumID,
		Title:     p.Title,
		Body:      p.Description,
		AuthorID:  p.AuthorID,
		Upvotes:   p.Upvotes,
		Downvotes: p.Downvotes,
		CreatedAt: p.CreatedAt,
	}
}

// Comment is a reply to a post and is votable on its own.
type Comment struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	PostID    uint           `gorm:"not null;index" json:"postId"`
	AuthorID  string         `gorm:"size:64;not null;index" json:"authorId"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	Upvotes   int64          `gorm:"not null;default:0;check:chk_comments_upvotes,upvotes >= 0" json:"upvotes"`
	Downvotes int64          `gorm:"not null;default:0;check:chk_comments_downvotes,downvotes >= 0" json:"downvotes"`
	CreatedAt time.Time      `gorm:"index" json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// Subject returns the ranking view of the comment.
func (c Comment) Subject() Subject {
	return Subject{
		Kind:      SubjectComment,
		ID:        c.ID,
		ParentID:  c.PostID,
		Body:      c.Content,
		AuthorID:  c.AuthorID,
		Upvotes:   c.Upvotes,
		Downvotes: c.Downvotes,
		CreatedAt: c.CreatedAt,
	}
}

// Subject is the flattened, storage-independent view used for ranking and
// for API responses. ViewerDirection is filled per request and never cached.
type Subject struct {
	Kind            SubjectKind `json:"type"`
	ID              uint        `json:"id"`
	ParentID        uint        `json:"parentId"`
	Title           string      `json:"title,omitempty"`
	Body            string      `json:"body,omitempty"`
	AuthorID        string      `json:"authorId"`
	Upvotes         int64       `json:"upvotes"`
	Downvotes       int64       `json:"downvotes"`
	CreatedAt       time.Time   `json:"createdAt"`
	ViewerDirection Direction   `json:"viewerDirection,omitempty"`
}

// Ref returns the subject's identity.
func (s Subject) Ref() SubjectRef {
	return SubjectRef{Kind: s.Kind, ID: s.ID}
}

// Net is upvotes minus downvotes.
func (s Subject) Net() int64 {
	return s.Upvotes - s.Downvotes
}

// Votes implements ranking.Rankable.
func (s Subject) Votes() (up, down int64) {
	return s.Upvotes, s.Downvotes
}

// Created implements ranking.Rankable.
func (s Subject) Created() time.Time {
	return s.CreatedAt
}
