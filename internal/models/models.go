package models

import (
	"time"

	"github.com/gofrs/uuid"
)

// Pet is a tracked animal profile. Badges are recorded per pet.
type Pet struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatorID uuid.UUID `json:"creator_id" db:"creator_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// UserPetRelation links a user (owner or handler) to a pet.
type UserPetRelation struct {
	UserID   uuid.UUID `json:"user_id" db:"user_id"`
	PetID    uuid.UUID `json:"pet_id" db:"pet_id"`
	Relation string    `json:"relation,omitempty" db:"relation"`
}

// ActivityLog is one logged activity (walk, meal, vet visit...) for a pet.
type ActivityLog struct {
	ID           uuid.UUID `json:"id" db:"id"`
	PetID        uuid.UUID `json:"pet_id" db:"pet_id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	ActivityType string    `json:"activity_type" db:"activity_type"`
	Comment      string    `json:"comment,omitempty" db:"comment"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Post is a social post made on behalf of a pet.
type Post struct {
	ID        uuid.UUID `json:"id" db:"id"`
	PetID     uuid.UUID `json:"pet_id" db:"pet_id"`
	Caption   string    `json:"caption" db:"caption"`
	IsPublic  bool      `json:"is_public" db:"is_public"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
