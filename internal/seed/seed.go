package seed

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"strings"
	"time"

	"quadra/internal/models"
	"quadra/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Options configures a generated seed run.
type Options struct {
	NumProfiles     int
	NumPosts        int
	MaxComments     int
	LikeProbability float64
	MaxDays         int
	Seed            int64
}

// Summary counts what a run wrote.
type Summary struct {
	Profiles     int
	Posts        int
	Comments     int
	PostLikes    int
	CommentLikes int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d profiles, %d posts, %d comments, %d post likes, %d comment likes",
		s.Profiles, s.Posts, s.Comments, s.PostLikes, s.CommentLikes)
}

// Seeder writes demo data through the repositories so like counters stay
// consistent with the like rows.
type Seeder struct {
	db       *gorm.DB
	profiles repository.ProfileRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	now      func() time.Time
}

// NewSeeder creates a Seeder bound to db.
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{
		db:       db,
		profiles: repository.NewProfileRepository(db),
		posts:    repository.NewPostRepository(db),
		comments: repository.NewCommentRepository(db),
		now:      time.Now,
	}
}

// ClearAll deletes every feed row, children first.
func (s *Seeder) ClearAll(ctx context.Context) error {
	log.Println("🗑️  Clearing existing data...")
	for _, table := range []string{"comment_likes", "post_likes", "comments", "posts", "profiles"} {
		if err := s.db.WithContext(ctx).Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// ApplyFixture writes fx. Profiles are upserted, so a fixture can be
// applied over existing data.
func (s *Seeder) ApplyFixture(ctx context.Context, fx *Fixture) (Summary, error) {
	var sum Summary
	ids := make(map[string]uuid.UUID, len(fx.Profiles))

	for _, fp := range fx.Profiles {
		p := &models.Profile{
			ID:        uuid.NewSHA1(uuid.NameSpaceURL, []byte("quadra:profile:"+fp.Username)),
			Name:      fp.Name,
			Username:  fp.Username,
			Bio:       strings.TrimSpace(fp.Bio),
			Gender:    fp.Gender,
			Positions: fp.Positions,
		}
		if fp.AvatarURL != "" {
			avatar := fp.AvatarURL
			p.AvatarURL = &avatar
		}
		if err := s.profiles.Upsert(ctx, p); err != nil {
			return sum, fmt.Errorf("upsert profile %s: %w", fp.Username, err)
		}
		ids[fp.Username] = p.ID
		sum.Profiles++
	}

	for _, fpost := range fx.Posts {
		topic := models.Topic(fpost.Topic)
		if topic == "" {
			topic = models.DefaultTopic
		}
		post := &models.Post{
			UserID:    ids[fpost.Author],
			Title:     fpost.Title,
			Content:   strings.TrimSpace(fpost.Content),
			Topic:     topic,
			MediaURLs: fpost.MediaURLs,
			Links:     fpost.Links,
			CreatedAt: s.now().Add(-time.Duration(fpost.HoursAgo) * time.Hour).Truncate(time.Second),
		}
		if err := s.posts.Create(ctx, post); err != nil {
			return sum, fmt.Errorf("create post %q: %w", fpost.Title, err)
		}
		sum.Posts++

		for _, u := range fpost.LikedBy {
			if _, err := s.posts.Like(ctx, ids[u], post.ID); err != nil {
				return sum, fmt.Errorf("like post %q: %w", fpost.Title, err)
			}
			sum.PostLikes++
		}

		for i, fc := range fpost.Comments {
			c := &models.Comment{
				PostID:    post.ID,
				UserID:    ids[fc.Author],
				Content:   strings.TrimSpace(fc.Content),
				CreatedAt: post.CreatedAt.Add(time.Duration(i+1) * 10 * time.Minute),
			}
			if err := s.comments.Create(ctx, c); err != nil {
				return sum, fmt.Errorf("create comment on %q: %w", fpost.Title, err)
			}
			sum.Comments++
			for _, u := range fc.LikedBy {
				if _, err := s.comments.Like(ctx, ids[u], c.ID); err != nil {
					return sum, fmt.Errorf("like comment on %q: %w", fpost.Title, err)
				}
				sum.CommentLikes++
			}
		}
	}
	return sum, nil
}

// Generate writes random profiles, posts, comments and likes.
func (s *Seeder) Generate(ctx context.Context, opts Options) (Summary, error) {
	var sum Summary
	if opts.NumProfiles <= 0 {
		return sum, fmt.Errorf("at least one profile is required")
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}
	f := NewFactory(opts.Seed, opts.MaxDays)
	f.now = s.now
	// #nosec G404: acceptable for seeding
	r := rand.New(rand.NewSource(opts.Seed))

	profileIDs := make([]uuid.UUID, 0, opts.NumProfiles)
	for i := 0; i < opts.NumProfiles; i++ {
		p := f.BuildProfile()
		if err := s.profiles.Upsert(ctx, p); err != nil {
			return sum, fmt.Errorf("upsert profile: %w", err)
		}
		profileIDs = append(profileIDs, p.ID)
		sum.Profiles++
	}

	pick := func() uuid.UUID { return profileIDs[r.Intn(len(profileIDs))] }

	for i := 0; i < opts.NumPosts; i++ {
		post := f.BuildPost(pick())
		if err := s.posts.Create(ctx, post); err != nil {
			return sum, fmt.Errorf("create post: %w", err)
		}
		sum.Posts++

		for _, viewer := range profileIDs {
			if r.Float64() >= opts.LikeProbability {
				continue
			}
			if _, err := s.posts.Like(ctx, viewer, post.ID); err != nil {
				return sum, fmt.Errorf("like post: %w", err)
			}
			sum.PostLikes++
		}

		if opts.MaxComments <= 0 {
			continue
		}
		for n := r.Intn(opts.MaxComments + 1); n > 0; n-- {
			c := f.BuildComment(pick(), post)
			if err := s.comments.Create(ctx, c); err != nil {
				return sum, fmt.Errorf("create comment: %w", err)
			}
			sum.Comments++
			if r.Float64() < opts.LikeProbability {
				if _, err := s.comments.Like(ctx, pick(), c.ID); err != nil {
					return sum, fmt.Errorf("like comment: %w", err)
				}
				sum.CommentLikes++
			}
		}
	}
	return sum, nil
}
