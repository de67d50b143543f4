// Command main runs the database seeder for the community feed.
package main

import (
	"context"
	"flag"
	"log"

	"quadra/internal/config"
	"quadra/internal/database"
	"quadra/internal/seed"
)

func main() {
	fixture := flag.String("fixture", "community", "YAML fixture to apply (\"community\" for the built-in one, empty to skip)")
	numProfiles := flag.Int("profiles", 20, "Number of random profiles to create")
	numPosts := flag.Int("posts", 60, "Number of random posts to create")
	maxComments := flag.Int("comments", 4, "Maximum comments per random post")
	likeProbability := flag.Float64("like-probability", 0.2, "Chance that a profile likes a random post")
	maxDays := flag.Int("days", 30, "Spread random posts over this many days")
	seedValue := flag.Int64("seed", 0, "Random seed (0 picks one)")
	shouldClean := flag.Bool("clean", true, "Clean database before seeding")
	flag.Parse()

	log.Println("🌱 Database Seeder")
	log.Println("==================")

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	ctx := context.Background()
	s := seed.NewSeeder(db)

	if *shouldClean {
		if err := s.ClearAll(ctx); err != nil {
			log.Fatalf("❌ Cleanup failed: %v", err)
		}
	}

	if *fixture != "" {
		fx, err := seed.LoadFixture(*fixture)
		if err != nil {
			log.Fatalf("❌ Fixture load failed: %v", err)
		}
		sum, err := s.ApplyFixture(ctx, fx)
		if err != nil {
			log.Fatalf("❌ Fixture seeding failed: %v", err)
		}
		log.Printf("✓ Fixture: %s", sum)
	}

	if *numProfiles > 0 {
		sum, err := s.Generate(ctx, seed.Options{
			NumProfiles:     *numProfiles,
			NumPosts:        *numPosts,
			MaxComments:     *maxComments,
			LikeProbability: *likeProbability,
			MaxDays:         *maxDays,
			Seed:            *seedValue,
		})
		if err != nil {
			log.Fatalf("❌ Random seeding failed: %v", err)
		}
		log.Printf("✓ Generated: %s", sum)
	}

	log.Println("✨ All done! Your database is now populated with test data.")
}
