// Package bootstrap connects the runtime dependencies shared by the commands.
package bootstrap

import (
	"context"
	"fmt"
	"log"

	"quadra/internal/cache"
	"quadra/internal/config"
	"quadra/internal/database"
	"quadra/internal/models"
	"quadra/internal/seed"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// Options control runtime initialization behavior.
type Options struct {
	// SeedFixture names a fixture applied to an empty development database.
	SeedFixture string
}

// InitRuntime connects to DB and Redis and optionally seeds demo data.
// The Redis client is nil when Redis is unreachable.
func InitRuntime(ctx context.Context, cfg *config.Config, opts Options) (*gorm.DB, *redis.Client, error) {
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}

	cache.InitRedis(cfg.RedisURL)
	r := cache.GetClient()

	if opts.SeedFixture != "" && !cfg.IsProduction() {
		seeded, err := SeedIfEmpty(ctx, db, opts.SeedFixture)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to seed %s: %w", opts.SeedFixture, err)
		}
		if seeded {
			log.Printf("Seeded empty database with fixture %q", opts.SeedFixture)
		}
	}

	return db, r, nil
}

// SeedIfEmpty applies the fixture when no profile exists yet.
func SeedIfEmpty(ctx context.Context, db *gorm.DB, fixture string) (bool, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&models.Profile{}).Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	fx, err := seed.LoadFixture(fixture)
	if err != nil {
		return false, err
	}
	if _, err := seed.NewSeeder(db).ApplyFixture(ctx, fx); err != nil {
		return false, err
	}
	return true, nil
}
