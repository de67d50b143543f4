package repository

import (
	"context"

	"quadra/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CommentRepository defines the interface for comment data operations
type CommentRepository interface {
	ListByPost(ctx context.Context, postID uuid.UUID) ([]*models.Comment, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Comment, error)
	Create(ctx context.Context, comment *models.Comment) error
	LikedCommentIDs(ctx context.Context, viewerID uuid.UUID, commentIDs []uuid.UUID) ([]uuid.UUID, error)
	IsLiked(ctx context.Context, viewerID, commentID uuid.UUID) (bool, error)
	Like(ctx context.Context, viewerID, commentID uuid.UUID) (int, error)
	Unlike(ctx context.Context, viewerID, commentID uuid.UUID) (int, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new comment repository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// ListByPost returns the comments of a post oldest first.
func (r *commentRepository) ListByPost(ctx context.Context, postID uuid.UUID) ([]*models.Comment, error) {
	var comments []*models.Comment
	err := r.db.WithContext(ctx).
		Where("post_id = ?", postID).
		Order("created_at ASC").
		Find(&comments).Error
	if err != nil {
		return nil, err
	}
	return comments, nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&comment).Error; err != nil {
		return nil, err
	}
	return &comment, nil
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if comment.ID == uuid.Nil {
		comment.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(comment).Error
}

func (r *commentRepository) LikedCommentIDs(ctx context.Context, viewerID uuid.UUID, commentIDs []uuid.UUID) ([]uuid.UUID, error) {
	liked := []uuid.UUID{}
	if viewerID == uuid.Nil || len(commentIDs) == 0 {
		return liked, nil
	}
	err := r.db.WithContext(ctx).Model(&models.CommentLike{}).
		Where("user_id = ? AND comment_id IN ?", viewerID, commentIDs).
		Pluck("comment_id", &liked).Error
	if err != nil {
		return nil, err
	}
	return liked, nil
}

func (r *commentRepository) IsLiked(ctx context.Context, viewerID, commentID uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.CommentLike{}).
		Where("user_id = ? AND comment_id = ?", viewerID, commentID).
		Count(&count).Error
	return count > 0, err
}

func (r *commentRepository) Like(ctx context.Context, viewerID, commentID uuid.UUID) (int, error) {
	var likes int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := currentLikes(tx, "comments", commentID); err != nil {
			return err
		}
		inserted, err := insertLike(tx, &models.CommentLike{CommentID: commentID, UserID: viewerID})
		if err != nil {
			return err
		}
		if inserted {
			if err := adjustLikes(tx, &models.Comment{}, commentID, 1); err != nil {
				return err
			}
		}
		likes, err = currentLikes(tx, "comments", commentID)
		return err
	})
	return likes, err
}

func (r *commentRepository) Unlike(ctx context.Context, viewerID, commentID uuid.UUID) (int, error) {
	var likes int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := currentLikes(tx, "comments", commentID); err != nil {
			return err
		}
		res := tx.Where("user_id = ? AND comment_id = ?", viewerID, commentID).Delete(&models.CommentLike{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			if err := adjustLikes(tx, &models.Comment{}, commentID, -1); err != nil {
				return err
			}
		}
		var err error
		likes, err = currentLikes(tx, "comments", commentID)
		return err
	})
	return likes, err
}
