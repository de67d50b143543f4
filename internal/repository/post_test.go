package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"quadra/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func titles(posts []*models.Post) []string {
	out := make([]string, 0, len(posts))
	for _, p := range posts {
		out = append(out, p.Title)
	}
	return out
}

func TestPostRepository_ListOrdering(t *testing.T) {
	db := setupSQLite(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := seedProfile(t, db, "Ana", "ana")

	t0 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	seedPost(t, db, author.ID, "A", models.TopicDicas, 5, t0)
	seedPost(t, db, author.ID, "B", models.TopicTaticas, 10, t0.Add(time.Hour))
	seedPost(t, db, author.ID, "C", models.TopicDicas, 10, t0.Add(time.Hour))

	tests := []struct {
		name  string
		topic models.Topic
		sort  models.SortMode
		want  []string
	}{
		{"popular", "", models.SortPopular, []string{"B", "C", "A"}},
		{"recent", "", models.SortRecent, []string{"B", "C", "A"}},
		{"topic filter", models.TopicDicas, models.SortRecent, []string{"C", "A"}},
		{"topic filter popular", models.TopicDicas, models.SortPopular, []string{"C", "A"}},
	}
	// B and C share created_at and likes; only the filter cases are strict about them.
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			posts, err := repo.List(ctx, tt.topic, tt.sort)
			require.NoError(t, err)
			got := titles(posts)
			require.Len(t, got, len(tt.want))
			assert.Equal(t, tt.want[len(tt.want)-1], got[len(got)-1])
			assert.ElementsMatch(t, tt.want, got)
		})
	}
}

func TestPostRepository_TrendingTieBreak(t *testing.T) {
	db := setupSQLite(t)
	repo := NewPostRepository(db)
	author := seedProfile(t, db, "Ana", "ana")

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	seedPost(t, db, author.ID, "older", models.TopicDicas, 50, at.Add(-time.Hour))
	seedPost(t, db, author.ID, "quiet", models.TopicDicas, 1, at)
	seedPost(t, db, author.ID, "loud", models.TopicDicas, 9, at)

	posts, err := repo.List(context.Background(), "", models.SortTrending)
	require.NoError(t, err)
	assert.Equal(t, []string{"loud", "quiet", "older"}, titles(posts))
}

func TestPostRepository_ListQuery(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" WHERE topic = $1 ORDER BY likes DESC,created_at DESC`)).
		WithArgs("taticas").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "topic", "likes"}).
			AddRow(uuid.New().String(), "B", "taticas", 10))

	posts, err := repo.List(context.Background(), models.TopicTaticas, models.SortPopular)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, 10, posts[0].Likes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_ListError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts"`)).WillReturnError(errors.New("connection refused"))

	_, err := repo.List(context.Background(), "", models.SortRecent)
	assert.Error(t, err)
}

func TestPostRepository_GetByID_NotFound(t *testing.T) {
	db := setupSQLite(t)
	repo := NewPostRepository(db)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPostRepository_CreateAssignsID(t *testing.T) {
	db := setupSQLite(t)
	repo := NewPostRepository(db)
	author := seedProfile(t, db, "Ana", "ana")

	post := &models.Post{UserID: author.ID, Title: "t", Content: "c", Topic: models.TopicDicas,
		MediaURLs: []string{"https://img.example/1.png"}}
	require.NoError(t, repo.Create(context.Background(), post))
	assert.NotEqual(t, uuid.Nil, post.ID)

	got, err := repo.GetByID(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example/1.png"}, got.MediaURLs)
	assert.Equal(t, 0, got.Likes)
}

func TestPostRepository_BulkEnrichment(t *testing.T) {
	db := setupSQLite(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := seedProfile(t, db, "Ana", "ana")
	viewer := seedProfile(t, db, "Bia", "bia")

	now := time.Now().UTC()
	p1 := seedPost(t, db, author.ID, "p1", models.TopicDicas, 0, now)
	p2 := seedPost(t, db, author.ID, "p2", models.TopicDicas, 0, now)
	p3 := seedPost(t, db, author.ID, "p3", models.TopicDicas, 0, now)

	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&models.Comment{ID: uuid.New(), PostID: p1.ID, UserID: viewer.ID, Content: "c"}).Error)
	}
	require.NoError(t, db.Create(&models.Comment{ID: uuid.New(), PostID: p3.ID, UserID: viewer.ID, Content: "c"}).Error)
	require.NoError(t, db.Create(&models.PostLike{PostID: p2.ID, UserID: viewer.ID}).Error)

	ids := []uuid.UUID{p1.ID, p2.ID, p3.ID}

	counts, err := repo.CommentCounts(ctx, ids)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[p1.ID])
	assert.Equal(t, 0, counts[p2.ID])
	assert.Equal(t, 1, counts[p3.ID])

	liked, err := repo.LikedPostIDs(ctx, viewer.ID, ids)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{p2.ID}, liked)

	none, err := repo.LikedPostIDs(ctx, uuid.Nil, ids)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPostRepository_LikeUnlike(t *testing.T) {
	db := setupSQLite(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := seedProfile(t, db, "Ana", "ana")
	viewer := seedProfile(t, db, "Bia", "bia")
	post := seedPost(t, db, author.ID, "A", models.TopicDicas, 5, time.Now())

	likes, err := repo.Like(ctx, viewer.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, likes)

	liked, err := repo.IsLiked(ctx, viewer.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, liked)

	// a second like is absorbed by the unique pair
	likes, err = repo.Like(ctx, viewer.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, likes)

	likes, err = repo.Unlike(ctx, viewer.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, likes)

	likes, err = repo.Unlike(ctx, viewer.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, likes)

	liked, err = repo.IsLiked(ctx, viewer.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestAdjustLikesClamped(t *testing.T) {
	db := setupSQLite(t)
	repo := NewPostRepository(db)
	ctx := context.Background()
	author := seedProfile(t, db, "Ana", "ana")
	post := seedPost(t, db, author.ID, "A", models.TopicDicas, 1, time.Now())

	require.NoError(t, adjustLikes(db, &models.Post{}, post.ID, -1))
	require.NoError(t, adjustLikes(db, &models.Post{}, post.ID, -1))
	got, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Likes)

	require.NoError(t, adjustLikes(db, &models.Post{}, post.ID, 3))
	require.NoError(t, adjustLikes(db, &models.Post{}, post.ID, -5))
	got, err = repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Likes)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestPostRepository_LikeMissingPost(t *testing.T) {
	db := setupSQLite(t)
	repo := NewPostRepository(db)
	viewer := seedProfile(t, db, "Bia", "bia")

	_, err := repo.Like(context.Background(), viewer.ID, uuid.New())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	var rows int64
	require.NoError(t, db.Model(&models.PostLike{}).Count(&rows).Error)
	assert.Zero(t, rows)
}
