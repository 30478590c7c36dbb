// Command main runs the database seeder for Pulse.
package main

import (
	"context"
	"flag"
	"log"

	"pulse/internal/config"
	"pulse/internal/database"
	"pulse/internal/seed"
)

func main() {
	opts := seed.DefaultOptions
	flag.IntVar(&opts.Forums, "forums", opts.Forums, "Number of forums to create")
	flag.IntVar(&opts.PostsPerForum, "posts", opts.PostsPerForum, "Posts per forum")
	flag.IntVar(&opts.CommentsPerPost, "comments", opts.CommentsPerPost, "Comments per post")
	flag.IntVar(&opts.Voters, "voters", opts.Voters, "Number of distinct voters")
	flag.Float64Var(&opts.VoteRate, "vote-rate", opts.VoteRate, "Chance a voter votes on a subject (0..1)")
	flag.IntVar(&opts.MaxDays, "days", opts.MaxDays, "Spread creation times over this many days")
	flag.Int64Var(&opts.Seed, "seed", 0, "Random seed (0 = time based)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")
	log.Printf("Target: %d forums x %d posts x %d comments, %d voters, clean=%v\n",
		opts.Forums, opts.PostsPerForum, opts.CommentsPerPost, opts.Voters, *shouldClean)

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("❌ Refusing to seed a production database")
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	s := seed.NewSeeder(db, opts.Seed)
	if *shouldClean {
		if err := s.ClearAll(); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	sum, err := s.Run(context.Background(), opts)
	if err != nil {
		log.Fatalf("❌ Seeding failed: %v", err)
	}

	log.Printf("✨ All done! %d forums, %d posts, %d comments, %d votes.", sum.Forums, sum.Posts, sum.Comments, sum.Votes)
}
