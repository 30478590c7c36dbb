// Package bootstrap connects the runtime dependencies shared by the server
// and the command line tools.
package bootstrap

import (
	"context"
	"fmt"
	"log"

	"pulse/internal/cache"
	"pulse/internal/config"
	"pulse/internal/database"
	"pulse/internal/models"
	"pulse/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedDemoData fills an empty database with generated forums, posts,
	// comments and votes.
	SeedDemoData bool
}

// InitRuntime connects to DB and Redis and optionally seeds demo data.
// The Redis client is nil when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	r := cache.InitRedis(cfg.RedisURL)

	if opts.SeedDemoData {
		if err := ensureDemoData(ctx, db, seed.DefaultOptions); err != nil {
			return nil, nil, fmt.Errorf("failed to seed demo data: %w", err)
		}
	}

	return db, r, nil
}

// ensureDemoData seeds only when there are no posts yet, so restarts keep
// whatever votes were cast in the meantime.
func ensureDemoData(ctx context.Context, db *gorm.DB, seedOpts seed.Options) error {
	var count int64
	if err := db.WithContext(ctx).Model(&models.Post{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	sum, err := seed.NewSeeder(db, 0).Run(ctx, seedOpts)
	if err != nil {
		return err
	}
	log.Printf("Seeded demo data: %d forums, %d posts, %d comments, %d votes", sum.Forums, sum.Posts, sum.Comments, sum.Votes)
	return nil
}
