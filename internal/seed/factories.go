// Package seed provides helpers to create demo data for the community feed.
// These helpers are intended for development and testing only.
package seed

import (
	"fmt"
	"time"

	"quadra/internal/models"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
)

// Factory builds feed entities without persisting them.
type Factory struct {
	faker   *gofakeit.Faker
	maxDays int
	now     func() time.Time
}

// NewFactory creates a Factory. A zero seed picks a random one.
func NewFactory(seed int64, maxDays int) *Factory {
	if maxDays <= 0 {
		maxDays = 30
	}
	return &Factory{faker: gofakeit.New(seed), maxDays: maxDays, now: time.Now}
}

// BuildProfile constructs a sample profile.
func (f *Factory) BuildProfile(overrides ...func(*models.Profile)) *models.Profile {
	first, last := f.faker.FirstName(), f.faker.LastName()
	avatar := fmt.Sprintf("https://i.pravatar.cc/150?u=%s", f.faker.UUID())
	p := &models.Profile{
		ID:        uuid.New(),
		Name:      first + " " + last,
		Username:  fmt.Sprintf("%s%d", f.faker.Username(), f.faker.Number(10, 99)),
		Bio:       f.faker.Sentence(10),
		Gender:    f.faker.RandomString([]string{models.GenderFemale, models.GenderMale}),
		Positions: []string{f.faker.RandomString(models.Positions)},
		AvatarURL: &avatar,
	}
	for _, override := range overrides {
		override(p)
	}
	return p
}

// BuildPost constructs a post by author with a created_at spread over the
// factory's window.
func (f *Factory) BuildPost(author uuid.UUID, overrides ...func(*models.Post)) *models.Post {
	post := &models.Post{
		UserID:    author,
		Title:     f.faker.Sentence(5),
		Content:   f.faker.Paragraph(1, 3, 8, "\n"),
		Topic:     models.Topics[f.faker.Number(0, len(models.Topics)-1)],
		CreatedAt: f.pastTime(),
	}

	switch f.faker.Number(0, 3) {
	case 0:
		post.MediaURLs = []string{fmt.Sprintf("https://picsum.photos/seed/%s/800/800", f.faker.UUID())}
	case 1:
		post.Links = []string{f.faker.URL()}
	}

	for _, override := range overrides {
		override(post)
	}
	return post
}

// BuildComment constructs a comment by author on post.
func (f *Factory) BuildComment(author uuid.UUID, post *models.Post, overrides ...func(*models.Comment)) *models.Comment {
	c := &models.Comment{
		PostID:  post.ID,
		UserID:  author,
		Content: f.faker.Sentence(8),
	}
	if since := f.now().Sub(post.CreatedAt); since > time.Minute {
		offset := time.Duration(f.faker.Number(1, int(since/time.Second))) * time.Second
		c.CreatedAt = post.CreatedAt.Add(offset)
	}
	for _, override := range overrides {
		override(c)
	}
	return c
}

func (f *Factory) pastTime() time.Time {
	back := time.Duration(f.faker.Number(0, f.maxDays-1))*24*time.Hour +
		time.Duration(f.faker.Number(0, 23))*time.Hour +
		time.Duration(f.faker.Number(0, 59))*time.Minute
	return f.now().Add(-back).Truncate(time.Second)
}
