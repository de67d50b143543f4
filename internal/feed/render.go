// Package feed holds the presentation side of the community feed: the
// card and compact renderings, client-side search and the per-connection
// feed session.
package feed

import (
	"strings"
	"time"
	"unicode/utf8"

	"quadra/internal/models"

	"github.com/google/uuid"
)

// Density selects how items are rendered.
type Density string

const (
	DensityCard    Density = "card"
	DensityCompact Density = "compact"
)

const excerptRunes = 120

// ParseDensity maps a raw value to a Density; anything unknown is card.
func ParseDensity(raw string) Density {
	if strings.EqualFold(strings.TrimSpace(raw), string(DensityCompact)) {
		return DensityCompact
	}
	return DensityCard
}

// ItemView is one rendered feed item. Card views carry the full body, media
// and links; compact views carry an excerpt instead.
type ItemView struct {
	ID         uuid.UUID     `json:"id"`
	Density    Density       `json:"density"`
	Title      string        `json:"title"`
	Topic      models.Topic  `json:"topic"`
	TopicLabel string        `json:"topic_label"`
	Author     models.Author `json:"author"`
	Likes      int           `json:"likes"`
	Comments   int           `json:"comments"`
	Liked      bool          `json:"liked"`
	TimeAgo    string        `json:"time_ago"`
	CreatedAt  time.Time     `json:"created_at"`
	ShareURL   string        `json:"share_url"`
	Content    string        `json:"content,omitempty"`
	Excerpt    string        `json:"excerpt,omitempty"`
	MediaURLs  []string      `json:"media_urls,omitempty"`
	Links      []string      `json:"links,omitempty"`
}

// CommentView is a rendered comment.
type CommentView struct {
	ID        uuid.UUID           `json:"id"`
	PostID    uuid.UUID           `json:"post_id"`
	Author    models.Author       `json:"author"`
	Content   string              `json:"content"`
	ReplyTo   *models.ReplyTarget `json:"reply_to,omitempty"`
	Likes     int                 `json:"likes"`
	Liked     bool                `json:"liked"`
	TimeAgo   string              `json:"time_ago"`
	CreatedAt time.Time           `json:"created_at"`
}

// Render turns assembled items into views without reordering them.
func Render(items []*models.Post, density Density, baseURL string, now time.Time) []ItemView {
	out := make([]ItemView, 0, len(items))
	for _, p := range items {
		v := ItemView{
			ID:         p.ID,
			Density:    density,
			Title:      p.Title,
			Topic:      p.Topic,
			TopicLabel: p.Topic.Label(),
			Author:     p.Author,
			Likes:      p.Likes,
			Comments:   p.Comments,
			Liked:      p.IsLiked(),
			TimeAgo:    models.TimeAgo(p.CreatedAt, now),
			CreatedAt:  p.CreatedAt,
			ShareURL:   ShareURL(baseURL, p.ID),
		}
		if density == DensityCompact {
			v.Excerpt = Excerpt(p.Content, excerptRunes)
		} else {
			v.Content = p.Content
			v.MediaURLs = p.MediaURLs
			v.Links = p.Links
		}
		out = append(out, v)
	}
	return out
}

// RenderComments renders comments in the order given.
func RenderComments(comments []*models.Comment, now time.Time) []CommentView {
	out := make([]CommentView, 0, len(comments))
	for _, c := range comments {
		out = append(out, CommentView{
			ID:        c.ID,
			PostID:    c.PostID,
			Author:    c.Author,
			Content:   c.Content,
			ReplyTo:   c.ReplyTo,
			Likes:     c.Likes,
			Liked:     c.IsLiked(),
			TimeAgo:   models.TimeAgo(c.CreatedAt, now),
			CreatedAt: c.CreatedAt,
		})
	}
	return out
}

// Excerpt cuts s to at most n runes, marking the cut with an ellipsis.
func Excerpt(s string, n int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:n])) + "…"
}

// ShareURL is the public link to a post.
func ShareURL(baseURL string, postID uuid.UUID) string {
	return strings.TrimRight(baseURL, "/") + "/community/post/" + postID.String()
}

// Filter keeps the items whose title, body, author name or author handle
// contains query, ignoring case. An empty query keeps everything.
func Filter(items []*models.Post, query string) []*models.Post {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return items
	}
	out := make([]*models.Post, 0, len(items))
	for _, p := range items {
		if matches(p, q) {
			out = append(out, p)
		}
	}
	return out
}

func matches(p *models.Post, q string) bool {
	for _, field := range []string{p.Title, p.Content, p.Author.Name, p.Author.Username} {
		if strings.Contains(strings.ToLower(field), q) {
			return true
		}
	}
	return false
}
