// Package seed populates a development database with forums, posts,
// comments and votes. Votes are cast through the vote ledger so counters
// always agree with the vote records.
package seed

import (
	"context"
	"fmt"
	"log"
	"time"

	"pulse/internal/models"
	"pulse/internal/repository"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Options configuration for the seeder
type Options struct {
	Forums          int
	PostsPerForum   int
	CommentsPerPost int
	Voters          int
	// VoteRate is the chance a voter votes on a given subject, 0..1.
	VoteRate float64
	// MaxDays spreads createdAt over this many days back from now.
	MaxDays int
	// Seed makes a run reproducible; 0 uses the clock.
	Seed int64
}

// DefaultOptions is a small but rankable data set.
var DefaultOptions = Options{
	Forums:          5,
	PostsPerForum:   40,
	CommentsPerPost: 8,
	Voters:          60,
	VoteRate:        0.15,
	MaxDays:         14,
}

// Summary counts what a run created.
type Summary struct {
	Forums   int
	Posts    int
	Comments int
	Votes    int
}

var forumNames = []string{
	"General", "Technology", "Programming", "Gaming", "Music", "Movies",
	"Books", "Science", "Fitness", "Food", "Travel", "Homelab",
}

// Seeder builds and persists demo data.
type Seeder struct {
	db    *gorm.DB
	votes repository.VoteRepository
	fake  *gofakeit.Faker
	now   time.Time
}

// NewSeeder creates a seeder bound to db.
func NewSeeder(db *gorm.DB, seed int64) *Seeder {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Seeder{
		db:    db,
		votes: repository.NewVoteRepository(db),
		fake:  gofakeit.New(seed),
		now:   time.Now(),
	}
}

// ClearAll removes every seeded row, votes first.
func (s *Seeder) ClearAll() error {
	log.Println("🧹 Clearing votes, comments, posts and forums...")
	for _, m := range []interface{}{&models.VoteRecord{}, &models.Comment{}, &models.Post{}, &models.Forum{}} {
		if err := s.db.Unscoped().Where("1 = 1").Delete(m).Error; err != nil {
			return fmt.Errorf("clear %T: %w", m, err)
		}
	}
	return nil
}

func (s *Seeder) createdAt(maxDays int) time.Time {
	if maxDays <= 0 {
		maxDays = 1
	}
	back := time.Duration(s.fake.Number(0, maxDays*24*60)) * time.Minute
	return s.now.Add(-back)
}

func (s *Seeder) voterIDs(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = uuid.NewString()
	}
	return out
}

// Run creates the data set described by opts.
func (s *Seeder) Run(ctx context.Context, opts Options) (Summary, error) {
	var sum Summary
	voters := s.voterIDs(opts.Voters)
	authors := voters
	if len(authors) == 0 {
		authors = []string{"seed"}
	}

	for f := 0; f < opts.Forums; f++ {
		name := forumNames[f%len(forumNames)]
		if f >= len(forumNames) {
			name = fmt.Sprintf("%s %d", name, f/len(forumNames)+1)
		}
		forum := &models.Forum{Name: name, Description: s.fake.Sentence(8)}
		if err := s.db.WithContext(ctx).Create(forum).Error; err != nil {
			return sum, fmt.Errorf("create forum: %w", err)
		}
		sum.Forums++

		posts := make([]*models.Post, opts.PostsPerForum)
		for i := range posts {
			posts[i] = &models.Post{
				ForumID:     forum.ID,
				AuthorID:    authors[s.fake.Number(0, len(authors)-1)],
				Title:       s.fake.Sentence(6),
				Description: s.fake.Paragraph(1, 3, 8, "\n"),
				CreatedAt:   s.createdAt(opts.MaxDays),
			}
		}
		if len(posts) > 0 {
			if err := s.db.WithContext(ctx).Create(&posts).Error; err != nil {
				return sum, fmt.Errorf("create posts: %w", err)
			}
		}
		sum.Posts += len(posts)

		for _, p := range posts {
			n, err := s.castVotes(ctx, p.Subject().Ref(), voters, opts.VoteRate)
			if err != nil {
				return sum, err
			}
			sum.Votes += n

			comments := make([]*models.Comment, opts.CommentsPerPost)
			for i := range comments {
				created := s.createdAt(opts.MaxDays)
				if created.Before(p.CreatedAt) {
					created = p.CreatedAt.Add(time.Duration(s.fake.Number(1, 600)) * time.Minute)
				}
				comments[i] = &models.Comment{
					PostID:    p.ID,
					AuthorID:  authors[s.fake.Number(0, len(authors)-1)],
					Content:   s.fake.Paragraph(1, 2, 10, " "),
					CreatedAt: created,
				}
			}
			if len(comments) == 0 {
				continue
			}
			if err := s.db.WithContext(ctx).Create(&comments).Error; err != nil {
				return sum, fmt.Errorf("create comments: %w", err)
			}
			sum.Comments += len(comments)

			for _, c := range comments {
				n, err := s.castVotes(ctx, c.Subject().Ref(), voters, opts.VoteRate)
				if err != nil {
					return sum, err
				}
				sum.Votes += n
			}
		}
		log.Printf("✅ Forum %q: %d posts", forum.Name, len(posts))
	}

	return sum, nil
}

// castVotes has each voter vote on ref with probability rate, two ups for
// every down on average.
func (s *Seeder) castVotes(ctx context.Context, ref models.SubjectRef, voters []string, rate float64) (int, error) {
	n := 0
	for _, v := range voters {
		if s.fake.Float64Range(0, 1) >= rate {
			continue
		}
		dir := models.DirectionUp
		if s.fake.Number(0, 2) == 0 {
			dir = models.DirectionDown
		}
		if _, err := s.votes.Apply(ctx, ref, v, dir); err != nil {
			return n, fmt.Errorf("vote on %s: %w", ref, err)
		}
		n++
	}
	return n, nil
}
