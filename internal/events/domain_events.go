package events

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid"

	"petfolio/internal/models"
)

// Event type names.
const (
	TypePhotoUploaded  = "photo.uploaded"
	TypeActivityLogged = "activity.logged"
	TypePostCreated    = "post.created"
	TypeCommentPosted  = "comment.posted"
	TypeBadgeEarned    = "badge.earned"
	TypeUserLoggedIn   = "user.logged_in"
)

// ===============================
// EVENT INTERFACE
// ===============================

// Event represents a domain event
type Event interface {
	GetEventID() string
	GetEventType() string
	GetTimestamp() time.Time
	// GetPetID is uuid.Nil for events that are not about a pet.
	GetPetID() uuid.UUID
}

// BaseEvent provides common event functionality
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	PetID     uuid.UUID `json:"pet_id,omitempty"`
}

// GetEventID returns the event ID
func (e *BaseEvent) GetEventID() string {
	return e.EventID
}

// GetEventType returns the event type
func (e *BaseEvent) GetEventType() string {
	return e.EventType
}

// GetTimestamp returns the event timestamp
func (e *BaseEvent) GetTimestamp() time.Time {
	return e.Timestamp
}

// GetPetID returns the pet the event is about
func (e *BaseEvent) GetPetID() uuid.UUID {
	return e.PetID
}

func newBase(eventType string, petID uuid.UUID) BaseEvent {
	return BaseEvent{
		EventID:   GenerateEventID(),
		EventType: eventType,
		Timestamp: time.Now().UTC(),
		PetID:     petID,
	}
}

// ===============================
// DOMAIN EVENTS
// ===============================

// PhotoUploadedEvent is emitted after a pet photo lands in storage
type PhotoUploadedEvent struct {
	BaseEvent
}

// ActivityLoggedEvent is emitted after an activity log is stored
type ActivityLoggedEvent struct {
	BaseEvent
	LogID uuid.UUID `json:"log_id,omitempty"`
}

// PostCreatedEvent is emitted after a post is stored
type PostCreatedEvent struct {
	BaseEvent
	PostID uuid.UUID `json:"post_id,omitempty"`
}

// CommentPostedEvent is emitted after a comment is stored
type CommentPostedEvent struct {
	BaseEvent
	PostID uuid.UUID `json:"post_id"`
}

// BadgeEarnedEvent is emitted when a badge is created or advances a tier
type BadgeEarnedEvent struct {
	BaseEvent
	BadgeType models.BadgeType `json:"badge_type"`
	Tier      models.BadgeTier `json:"tier"`
}

// UserLoggedInEvent is emitted after a successful sign in
type UserLoggedInEvent struct {
	BaseEvent
	UserID uuid.UUID `json:"user_id"`
}

// ===============================
// EVENT FACTORY FUNCTIONS
// ===============================

// NewPhotoUploadedEvent creates a new photo uploaded event
func NewPhotoUploadedEvent(petID uuid.UUID) *PhotoUploadedEvent {
	return &PhotoUploadedEvent{BaseEvent: newBase(TypePhotoUploaded, petID)}
}

// NewActivityLoggedEvent creates a new activity logged event
func NewActivityLoggedEvent(petID, logID uuid.UUID) *ActivityLoggedEvent {
	return &ActivityLoggedEvent{BaseEvent: newBase(TypeActivityLogged, petID), LogID: logID}
}

// NewPostCreatedEvent creates a new post created event
func NewPostCreatedEvent(petID, postID uuid.UUID) *PostCreatedEvent {
	return &PostCreatedEvent{BaseEvent: newBase(TypePostCreated, petID), PostID: postID}
}

// NewCommentPostedEvent creates a new comment posted event
func NewCommentPostedEvent(postID uuid.UUID) *CommentPostedEvent {
	return &CommentPostedEvent{BaseEvent: newBase(TypeCommentPosted, uuid.Nil), PostID: postID}
}

// NewBadgeEarnedEvent creates a new badge earned event
func NewBadgeEarnedEvent(petID uuid.UUID, badgeType models.BadgeType, tier models.BadgeTier) *BadgeEarnedEvent {
	return &BadgeEarnedEvent{
		BaseEvent: newBase(TypeBadgeEarned, petID),
		BadgeType: badgeType,
		Tier:      tier,
	}
}

// NewUserLoggedInEvent creates a new user logged in event
func NewUserLoggedInEvent(userID uuid.UUID) *UserLoggedInEvent {
	return &UserLoggedInEvent{BaseEvent: newBase(TypeUserLoggedIn, uuid.Nil), UserID: userID}
}

// ===============================
// UTILITY FUNCTIONS
// ===============================

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	if id, err := uuid.NewV4(); err == nil {
		return "evt_" + id.String()
	}
	return fmt.Sprintf("evt_%d", time.Now().UnixNano())
}
