package repositories

import (
	"context"

	"github.com/gofrs/uuid"

	"petfolio/internal/models"
)

// ===============================
// CORE REPOSITORY INTERFACES
// ===============================

// BadgeRepository persists one badge record per (pet, badge type)
type BadgeRepository interface {
	// ListForPets returns every stored record of the given pets.
	ListForPets(ctx context.Context, petIDs []uuid.UUID) ([]models.BadgeRecord, error)
	// Upsert inserts or advances a record. A stored tier is never lowered.
	Upsert(ctx context.Context, record models.BadgeRecord) error
}

// ActivityLogRepository defines the contract for activity log data operations
type ActivityLogRepository interface {
	Create(ctx context.Context, log *models.ActivityLog) error
	CountByPet(ctx context.Context, petID uuid.UUID) (int, error)
}

// PostRepository defines the contract for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	CountByPet(ctx context.Context, petID uuid.UUID) (int, error)
}

// PetRepository defines the contract for pet data operations
type PetRepository interface {
	Create(ctx context.Context, pet *models.Pet) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Pet, error)
	AddRelation(ctx context.Context, relation models.UserPetRelation) error
	PetIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}
