// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"pulse/internal/database"
	"pulse/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

// NewSQLiteDB opens a migrated, private in-memory database. The pool is
// capped at one connection so every transaction is serialized by SQLite
// the same way row locks serialize them in Postgres.
func NewSQLiteDB(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:pulse_test_%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), database.GormConfig())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

// SeedPost inserts a forum post with the given counters.
func SeedPost(t testing.TB, db *gorm.DB, forumID uint, up, down int64, created time.Time) *models.Post {
	t.Helper()
	p := &models.Post{
		ForumID:   forumID,
		AuthorID:  "author",
		Title:     fmt.Sprintf("post %d", dbSeq.Add(1)),
		Upvotes:   up,
		Downvotes: down,
		CreatedAt: created,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

// SeedComment inserts a comment under postID.
func SeedComment(t testing.TB, db *gorm.DB, postID uint, up, down int64, created time.Time) *models.Comment {
	t.Helper()
	c := &models.Comment{
		PostID:    postID,
		AuthorID:  "author",
		Content:   "comment",
		Upvotes:   up,
		Downvotes: down,
		CreatedAt: created,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}
