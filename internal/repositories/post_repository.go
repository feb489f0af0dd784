package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"petfolio/internal/database"
	"petfolio/internal/models"
)

// postRepository implements PostRepository
type postRepository struct {
	*BaseRepository
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *database.Manager, logger *zap.Logger) PostRepository {
	return &postRepository{
		BaseRepository: NewBaseRepository(db, logger),
	}
}

// ===============================
// BASIC CRUD OPERATIONS
// ===============================

// Create inserts post, assigning an ID and timestamp when they are unset
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	if post.PetID == uuid.Nil {
		return fmt.Errorf("failed to create post: pet id is required")
	}
	if post.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("failed to generate post id: %w", err)
		}
		post.ID = id
	}
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO posts (id, pet_id, caption, is_public, created_at)
		VALUES (?, ?, ?, ?, ?)`

	if _, err := r.ExecContext(ctx, query,
		post.ID, post.PetID, post.Caption, post.IsPublic, post.CreatedAt,
	); err != nil {
		r.GetLogger().Error("Failed to create post",
			zap.Error(err),
			zap.String("pet_id", post.PetID.String()),
		)
		return fmt.Errorf("failed to create post: %w", err)
	}

	r.GetLogger().Info("Post created successfully",
		zap.String("post_id", post.ID.String()),
		zap.String("pet_id", post.PetID.String()),
	)
	return nil
}

// ===============================
// COUNTING
// ===============================

// CountByPet returns the number of posts made for petID
func (r *postRepository) CountByPet(ctx context.Context, petID uuid.UUID) (int, error) {
	var count int
	err := r.QueryRowContext(ctx, `SELECT COUNT(*) FROM posts WHERE pet_id = ?`, petID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count posts: %w", err)
	}
	return count, nil
}
