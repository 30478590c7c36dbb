package seed

import (
	"context"
	"testing"

	"pulse/internal/models"
	"pulse/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeeder_RunKeepsCountersConsistent(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	s := NewSeeder(db, 42)

	sum, err := s.Run(context.Background(), Options{
		Forums:          2,
		PostsPerForum:   3,
		CommentsPerPost: 2,
		Voters:          10,
		VoteRate:        0.5,
		MaxDays:         3,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Forums)
	assert.Equal(t, 6, sum.Posts)
	assert.Equal(t, 12, sum.Comments)

	var votes int64
	require.NoError(t, db.Model(&models.VoteRecord{}).Count(&votes).Error)
	assert.Equal(t, int64(sum.Votes), votes)

	var posts []models.Post
	require.NoError(t, db.Find(&posts).Error)
	for _, p := range posts {
		var up, down int64
		require.NoError(t, db.Model(&models.VoteRecord{}).
			Where("subject_type = ? AND subject_id = ? AND direction = ?", models.SubjectPost, p.ID, models.DirectionUp).
			Count(&up).Error)
		require.NoError(t, db.Model(&models.VoteRecord{}).
			Where("subject_type = ? AND subject_id = ? AND direction = ?", models.SubjectPost, p.ID, models.DirectionDown).
			Count(&down).Error)
		assert.Equal(t, up, p.Upvotes, "post %d upvotes", p.ID)
		assert.Equal(t, down, p.Downvotes, "post %d downvotes", p.ID)
	}

	var comments []models.Comment
	require.NoError(t, db.Find(&comments).Error)
	for _, c := range comments {
		var parent models.Post
		require.NoError(t, db.First(&parent, c.PostID).Error)
		assert.False(t, c.CreatedAt.Before(parent.CreatedAt), "comment %d predates its post", c.ID)
	}
}

func TestSeeder_ClearAll(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	s := NewSeeder(db, 7)
	_, err := s.Run(context.Background(), Options{Forums: 1, PostsPerForum: 2, CommentsPerPost: 1, Voters: 3, VoteRate: 1})
	require.NoError(t, err)

	require.NoError(t, s.ClearAll())
	for _, m := range []interface{}{&models.VoteRecord{}, &models.Comment{}, &models.Post{}, &models.Forum{}} {
		var n int64
		require.NoError(t, db.Unscoped().Model(m).Count(&n).Error)
		assert.Zero(t, n, "%T", m)
	}
}

func TestSeeder_ForumNamesStayUnique(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	s := NewSeeder(db, 1)
	sum, err := s.Run(context.Background(), Options{Forums: len(forumNames) + 2})
	require.NoError(t, err)
	assert.Equal(t, len(forumNames)+2, sum.Forums)
}
