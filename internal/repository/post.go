package repository

import (
	"context"

	"quadra/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	List(ctx context.Context, topic models.Topic, sort models.SortMode) ([]*models.Post, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error)
	Create(ctx context.Context, post *models.Post) error
	LikedPostIDs(ctx context.Context, viewerID uuid.UUID, postIDs []uuid.UUID) ([]uuid.UUID, error)
	CommentCounts(ctx context.Context, postIDs []uuid.UUID) (map[uuid.UUID]int, error)
	IsLiked(ctx context.Context, viewerID, postID uuid.UUID) (bool, error)
	Like(ctx context.Context, viewerID, postID uuid.UUID) (int, error)
	Unlike(ctx context.Context, viewerID, postID uuid.UUID) (int, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// List returns posts of one topic (or every topic when topic is empty) in
// the order the sort mode defines.
func (r *postRepository) List(ctx context.Context, topic models.Topic, sort models.SortMode) ([]*models.Post, error) {
	var posts []*models.Post
	q := r.db.WithContext(ctx).Model(&models.Post{})
	if topic != "" {
		q = q.Where("topic = ?", topic)
	}
	if err := applySort(q, sort).Find(&posts).Error; err != nil {
		return nil, err
	}
	return posts, nil
}

func applySort(db *gorm.DB, sort models.SortMode) *gorm.DB {
	switch sort {
	case models.SortPopular:
		return db.Order("likes DESC").Order("created_at DESC")
	case models.SortTrending:
		return db.Order("created_at DESC").Order("likes DESC")
	default:
		return db.Order("created_at DESC")
	}
}

func (r *postRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Post, error) {
	var post models.Post
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&post).Error; err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if post.ID == uuid.Nil {
		post.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(post).Error
}

// LikedPostIDs returns the subset of postIDs the viewer has liked.
func (r *postRepository) LikedPostIDs(ctx context.Context, viewerID uuid.UUID, postIDs []uuid.UUID) ([]uuid.UUID, error) {
	liked := []uuid.UUID{}
	if viewerID == uuid.Nil || len(postIDs) == 0 {
		return liked, nil
	}
	err := r.db.WithContext(ctx).Model(&models.PostLike{}).
		Where("user_id = ? AND post_id IN ?", viewerID, postIDs).
		Pluck("post_id", &liked).Error
	if err != nil {
		return nil, err
	}
	return liked, nil
}

type postCount struct {
	PostID uuid.UUID
	Total  int
}

// CommentCounts counts comments per post in one grouped query. Posts without
// comments are absent from the map.
func (r *postRepository) CommentCounts(ctx context.Context, postIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(postIDs))
	if len(postIDs) == 0 {
		return counts, nil
	}
	var rows []postCount
	err := r.db.WithContext(ctx).Model(&models.Comment{}).
		Select("post_id, COUNT(*) AS total").
		Where("post_id IN ?", postIDs).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.PostID] = row.Total
	}
	return counts, nil
}

func (r *postRepository) IsLiked(ctx context.Context, viewerID, postID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.PostLike{}).
		Where("user_id = ? AND post_id = ?", viewerID, postID).
		Count(&count).Error
	return count > 0, err
}

// Like records the viewer's like and bumps the counter in the same
// transaction. It returns the resulting like count.
func (r *postRepository) Like(ctx context.Context, viewerID, postID uuid.UUID) (int, error) {
	var likes int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := currentLikes(tx, "posts", postID); err != nil {
			return err
		}
		inserted, err := insertLike(tx, &models.PostLike{PostID: postID, UserID: viewerID})
		if err != nil {
			return err
		}
		if inserted {
			if err := adjustLikes(tx, &models.Post{}, postID, 1); err != nil {
				return err
			}
		}
		likes, err = currentLikes(tx, "posts", postID)
		return err
	})
	return likes, err
}

// Unlike removes the viewer's like. The counter only moves when a row was
// actually deleted.
func (r *postRepository) Unlike(ctx context.Context, viewerID, postID uuid.UUID) (int, error) {
	var likes int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := currentLikes(tx, "posts", postID); err != nil {
			return err
		}
		res := tx.Where("user_id = ? AND post_id = ?", viewerID, postID).Delete(&models.PostLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			if err := adjustLikes(tx, &models.Post{}, postID, -1); err != nil {
				return err
			}
		}
		var err error
		likes, err = currentLikes(tx, "posts", postID)
		return err
	})
	return likes, err
}
