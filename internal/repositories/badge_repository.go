package repositories

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"petfolio/internal/database"
	"petfolio/internal/models"
)

// badgeRepository implements BadgeRepository
type badgeRepository struct {
	*BaseRepository
}

// NewBadgeRepository creates a new badge repository
func NewBadgeRepository(db *database.Manager, logger *zap.Logger) BadgeRepository {
	return &badgeRepository{
		BaseRepository: NewBaseRepository(db, logger),
	}
}

// ListForPets loads the records of petIDs in batches. An empty input returns
// without touching the database.
func (r *badgeRepository) ListForPets(ctx context.Context, petIDs []uuid.UUID) ([]models.BadgeRecord, error) {
	if len(petIDs) == 0 {
		return nil, nil
	}

	var records []models.BadgeRecord
	for _, batch := range chunk(petIDs, maxInListSize) {
		query := `
			SELECT pet_id, type, tier, last_updated, created_at
			FROM badges
			WHERE pet_id IN (` + inPlaceholders(len(batch)) + `)
			ORDER BY pet_id, type`

		args := make([]interface{}, len(batch))
		for i, id := range batch {
			args[i] = id
		}

		rows, err := r.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to list badges: %w", err)
		}

		for rows.Next() {
			var rec models.BadgeRecord
			if err := rows.Scan(&rec.PetID, &rec.Type, &rec.Tier, &rec.LastUpdated, &rec.CreatedAt); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan badge: %w", err)
			}
			records = append(records, rec)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to iterate badges: %w", err)
		}
	}

	return records, nil
}

// Upsert writes record keyed by (pet_id, type). On conflict the tier and
// last_updated are replaced only when the new rank is strictly higher, and
// created_at is left untouched. Rewriting the same tier is a no-op.
func (r *badgeRepository) Upsert(ctx context.Context, record models.BadgeRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO badges (pet_id, type, tier, tier_rank, last_updated, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (pet_id, type) DO UPDATE SET
			tier = excluded.tier,
			tier_rank = excluded.tier_rank,
			last_updated = excluded.last_updated
		WHERE badges.tier_rank < excluded.tier_rank`

	_, err := r.ExecContext(ctx, query,
		record.PetID,
		string(record.Type),
		string(record.Tier),
		record.Rank(),
		record.LastUpdated.UTC(),
		record.CreatedAt.UTC(),
	)
	if err != nil {
		r.GetLogger().Error("Failed to upsert badge",
			zap.Error(err),
			zap.String("pet_id", record.PetID.String()),
			zap.String("badge_type", string(record.Type)),
			zap.String("tier", string(record.Tier)),
		)
		return fmt.Errorf("failed to upsert badge: %w", err)
	}

	return nil
}
