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

// activityLogRepository implements ActivityLogRepository
type activityLogRepository struct {
	*BaseRepository
}

// NewActivityLogRepository creates a new activity log repository
func NewActivityLogRepository(db *database.Manager, logger *zap.Logger) ActivityLogRepository {
	return &activityLogRepository{
		BaseRepository: NewBaseRepository(db, logger),
	}
}

// Create inserts log, assigning an ID and timestamp when they are unset
func (r *activityLogRepository) Create(ctx context.Context, log *models.ActivityLog) error {
	if log.PetID == uuid.Nil {
		return fmt.Errorf("failed to create activity log: pet id is required")
	}
	if log.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("failed to generate activity log id: %w", err)
		}
		log.ID = id
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO activity_logs (id, pet_id, user_id, activity_type, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	if _, err := r.ExecContext(ctx, query,
		log.ID, log.PetID, log.UserID, log.ActivityType, log.Comment, log.CreatedAt,
	); err != nil {
		return fmt.Errorf("failed to create activity log: %w", err)
	}

	r.GetLogger().Debug("Activity log created",
		zap.String("log_id", log.ID.String()),
		zap.String("pet_id", log.PetID.String()),
		zap.String("activity_type", log.ActivityType),
	)
	return nil
}

// CountByPet returns the number of activity logs recorded for petID
func (r *activityLogRepository) CountByPet(ctx context.Context, petID uuid.UUID) (int, error) {
	var count int
	err := r.QueryRowContext(ctx, `SELECT COUNT(*) FROM activity_logs WHERE pet_id = ?`, petID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count activity logs: %w", err)
	}
	return count, nil
}
