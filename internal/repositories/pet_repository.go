package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"go.uber.org/zap"

	"petfolio/internal/database"
	"petfolio/internal/models"
)

// ErrPetNotFound is returned when a pet does not exist.
var ErrPetNotFound = errors.New("pet not found")

// petRepository implements PetRepository
type petRepository struct {
	*BaseRepository
}

// NewPetRepository creates a new pet repository
func NewPetRepository(db *database.Manager, logger *zap.Logger) PetRepository {
	return &petRepository{
		BaseRepository: NewBaseRepository(db, logger),
	}
}

// Create inserts pet and records its creator as owner
func (r *petRepository) Create(ctx context.Context, pet *models.Pet) error {
	if pet.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("failed to generate pet id: %w", err)
		}
		pet.ID = id
	}
	if pet.CreatedAt.IsZero() {
		pet.CreatedAt = time.Now().UTC()
	}

	return r.GetDB().WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, r.GetDB().Rebind(`
			INSERT INTO pets (id, name, creator_id, created_at)
			VALUES (?, ?, ?, ?)`),
			pet.ID, pet.Name, pet.CreatorID, pet.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to create pet: %w", err)
		}

		if pet.CreatorID == uuid.Nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, r.GetDB().Rebind(`
			INSERT INTO user_pet_relations (user_id, pet_id, relation)
			VALUES (?, ?, 'owner')
			ON CONFLICT (user_id, pet_id) DO NOTHING`),
			pet.CreatorID, pet.ID,
		); err != nil {
			return fmt.Errorf("failed to add owner relation: %w", err)
		}
		return nil
	})
}

// GetByID retrieves a pet by ID
func (r *petRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Pet, error) {
	var pet models.Pet
	err := r.QueryRowContext(ctx, `
		SELECT id, name, creator_id, created_at
		FROM pets
		WHERE id = ?`, id,
	).Scan(&pet.ID, &pet.Name, &pet.CreatorID, &pet.CreatedAt)
	if r.IsNotFound(err) {
		return nil, ErrPetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pet: %w", err)
	}
	return &pet, nil
}

// AddRelation links a user to a pet; an existing link is left unchanged
func (r *petRepository) AddRelation(ctx context.Context, relation models.UserPetRelation) error {
	if relation.Relation == "" {
		relation.Relation = "owner"
	}

	_, err := r.ExecContext(ctx, `
		INSERT INTO user_pet_relations (user_id, pet_id, relation)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id, pet_id) DO NOTHING`,
		relation.UserID, relation.PetID, relation.Relation,
	)
	if err != nil {
		return fmt.Errorf("failed to add user pet relation: %w", err)
	}
	return nil
}

// PetIDsForUser returns the pets userID is related to, oldest relation first
func (r *petRepository) PetIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := r.QueryContext(ctx, `
		SELECT r.pet_id
		FROM user_pet_relations r
		JOIN pets p ON p.id = r.pet_id
		WHERE r.user_id = ?
		ORDER BY p.created_at, r.pet_id`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list user pets: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan pet id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate user pets: %w", err)
	}

	r.GetLogger().Debug("Loaded user pets",
		zap.String("user_id", userID.String()),
		zap.Int("pet_count", len(ids)),
	)
	return ids, nil
}
