//go:build integration

package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"pulse/internal/database"
	"pulse/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func startPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("pulse_test"),
		postgres.WithUsername("pulse"),
		postgres.WithPassword("pulse"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = testcontainers.TerminateContainer(container) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), database.GormConfig())
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(32)
	return db
}

// retryConflicts mirrors the service-level retry so the test exercises real
// row-lock contention rather than the retry policy.
func retryConflicts(ctx context.Context, repo VoteRepository, ref models.SubjectRef, voter string, dir models.Direction) (*models.VoteOutcome, error) {
	out, err := repo.Apply(ctx, ref, voter, dir)
	for i := 0; i < 5 && err != nil && models.StatusFor(err) == 409; i++ {
		out, err = repo.Apply(ctx, ref, voter, dir)
	}
	return out, err
}

func TestVoteLedger_Postgres_ConcurrentVoters(t *testing.T) {
	db := startPostgres(t)
	repo := NewVoteRepository(db)

	post := &models.Post{ForumID: 1, AuthorID: "a", Title: "contended"}
	require.NoError(t, db.Create(post).Error)
	ref := models.SubjectRef{Kind: models.SubjectPost, ID: post.ID}

	const voters = 64
	var wg sync.WaitGroup
	start := make(chan struct{})
	errs := make(chan error, voters)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, err := retryConflicts(context.Background(), repo, ref, fmt.Sprintf("voter-%d", i), models.DirectionUp)
			errs <- err
		}(i)
	}
	close(start)
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var p models.Post
	require.NoError(t, db.First(&p, post.ID).Error)
	assert.Equal(t, int64(voters), p.Upvotes)
	assert.Zero(t, p.Downvotes)
}

func TestVoteLedger_Postgres_ToggleAndFlip(t *testing.T) {
	db := startPostgres(t)
	repo := NewVoteRepository(db)
	ctx := context.Background()

	post := &models.Post{ForumID: 1, AuthorID: "a", Title: "toggle"}
	require.NoError(t, db.Create(post).Error)
	ref := models.SubjectRef{Kind: models.SubjectPost, ID: post.ID}

	_, err := repo.Apply(ctx, ref, "v", models.DirectionUp)
	require.NoError(t, err)
	flip, err := repo.Apply(ctx, ref, "v", models.DirectionDown)
	require.NoError(t, err)
	assert.Equal(t, int64(0), flip.Upvotes)
	assert.Equal(t, int64(1), flip.Downvotes)

	off, err := repo.Apply(ctx, ref, "v", models.DirectionDown)
	require.NoError(t, err)
	assert.Equal(t, models.DirectionNone, off.ResultingDirection)
	assert.Zero(t, off.Downvotes)
}
