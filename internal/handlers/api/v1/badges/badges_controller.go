package badges

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gofrs/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	badgeengine "petfolio/internal/badges"
	"petfolio/internal/contextutils"
	"petfolio/internal/events"
	"petfolio/internal/models"
	"petfolio/internal/response"
	"petfolio/internal/validation"
)

// maxEventBodyBytes bounds the ingestion request body.
const maxEventBodyBytes = 64 << 10

// BadgeReader returns the current badges of a pet
type BadgeReader interface {
	Badges(ctx context.Context, petID uuid.UUID) ([]models.BadgeRecord, error)
}

// ActivityWriter stores activity logs
type ActivityWriter interface {
	Create(ctx context.Context, log *models.ActivityLog) error
}

// PostWriter stores posts
type PostWriter interface {
	Create(ctx context.Context, post *models.Post) error
}

// EventBus is the part of the bus the controller publishes to and streams from
type EventBus interface {
	Publish(ctx context.Context, event events.Event) error
	Listen(bufferSize int, eventTypes ...string) *events.Subscription
}

// Dependencies groups the controller's collaborators
type Dependencies struct {
	Badges     BadgeReader
	Activities ActivityWriter
	Posts      PostWriter
	Bus        EventBus
}

// BadgeController exposes badge ingestion, snapshots and the earned stream
type BadgeController struct {
	deps            Dependencies
	responseBuilder *response.Builder
	logger          *zap.Logger
	upgrader        websocket.Upgrader
	streamBuffer    int
}

// NewBadgeController creates a new badge API controller
func NewBadgeController(deps Dependencies, logger *zap.Logger, responseBuilder *response.Builder) *BadgeController {
	if logger == nil {
		logger = zap.NewNop()
	}
	if responseBuilder == nil {
		responseBuilder = response.NewBuilder(nil, logger)
	}
	return &BadgeController{
		deps:            deps,
		responseBuilder: responseBuilder,
		logger:          logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		streamBuffer: 64,
	}
}

// ===============================
// REQUEST AND RESPONSE TYPES
// ===============================

// EventRequest is the body of POST /pets/{petID}/events
type EventRequest struct {
	Type         string    `json:"type" validate:"required,oneof=photo.uploaded activity.logged post.created"`
	UserID       uuid.UUID `json:"user_id,omitempty"`
	ActivityType string    `json:"activity_type,omitempty" validate:"required_if=Type activity.logged,max=64"`
	Comment      string    `json:"comment,omitempty" validate:"max=1000"`
	Caption      string    `json:"caption,omitempty" validate:"max=2000"`
	IsPublic     bool      `json:"is_public,omitempty"`
}

// EventAccepted acknowledges an ingested event
type EventAccepted struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	PetID     uuid.UUID `json:"pet_id"`
	// RecordID is the stored log or post for counted events.
	RecordID *uuid.UUID `json:"record_id,omitempty"`
}

// PetBadgesResponse is the body of GET /pets/{petID}/badges
type PetBadgesResponse struct {
	PetID  uuid.UUID          `json:"pet_id"`
	Badges []models.BadgeView `json:"badges"`
}

// ===============================
// HANDLERS
// ===============================

// PostEvent stores the record behind an event, then publishes the event
//
// @Summary Ingest a pet event
// @Description Stores the activity log or post behind the event, publishes it and returns before badges are evaluated
// @Tags Badges
// @Accept json
// @Produce json
// @Param petID path string true "Pet ID" format(uuid)
// @Param event body EventRequest true "Event"
// @Success 202 {object} response.APIResponse{data=EventAccepted} "Event accepted"
// @Failure 400 {object} response.APIResponse "Invalid pet ID or body"
// @Failure 500 {object} response.APIResponse "Record could not be stored"
// @Failure 503 {object} response.APIResponse "Event could not be published"
// @Router /api/v1/pets/{petID}/events [post]
func (c *BadgeController) PostEvent(w http.ResponseWriter, r *http.Request) {
	petID, err := petIDFromRequest(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	var req EventRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBodyBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		c.responseBuilder.WriteError(w, r, response.NewValidationError("invalid request body", err))
		return
	}
	if err := validation.ValidateStruct(&req); err != nil {
		c.responseBuilder.WriteError(w, r, response.NewValidationError("invalid event", err))
		return
	}

	ctx := r.Context()
	accepted := EventAccepted{PetID: petID}
	var event events.Event

	switch req.Type {
	case events.TypePhotoUploaded:
		event = events.NewPhotoUploadedEvent(petID)
	case events.TypeActivityLogged:
		log := &models.ActivityLog{
			PetID:        petID,
			UserID:       req.UserID,
			ActivityType: req.ActivityType,
			Comment:      req.Comment,
		}
		if err := c.deps.Activities.Create(ctx, log); err != nil {
			c.responseBuilder.WriteError(w, r, response.NewInternalError("failed to store activity log", err))
			return
		}
		accepted.RecordID = &log.ID
		event = events.NewActivityLoggedEvent(petID, log.ID)
	case events.TypePostCreated:
		post := &models.Post{
			PetID:    petID,
			Caption:  req.Caption,
			IsPublic: req.IsPublic,
		}
		if err := c.deps.Posts.Create(ctx, post); err != nil {
			c.responseBuilder.WriteError(w, r, response.NewInternalError("failed to store post", err))
			return
		}
		accepted.RecordID = &post.ID
		event = events.NewPostCreatedEvent(petID, post.ID)
	}

	if err := c.deps.Bus.Publish(ctx, event); err != nil {
		c.responseBuilder.WriteError(w, r, response.NewUnavailableError("event bus unavailable", err))
		return
	}

	accepted.EventID = event.GetEventID()
	accepted.EventType = event.GetEventType()

	contextutils.GetLogger(ctx, c.logger).Info("Event accepted",
		zap.String("event_id", accepted.EventID),
		zap.String("event_type", accepted.EventType),
		zap.String("pet_id", petID.String()),
	)

	c.responseBuilder.WriteAccepted(w, r, accepted)
}

// GetBadges returns the engine's view of a pet's badges
//
// @Summary List a pet's badges
// @Description Returns the badges of a pet ordered by badge type
// @Tags Badges
// @Produce json
// @Param petID path string true "Pet ID" format(uuid)
// @Success 200 {object} response.APIResponse{data=PetBadgesResponse} "Badges"
// @Failure 400 {object} response.APIResponse "Invalid pet ID"
// @Failure 503 {object} response.APIResponse "Badge engine is not running"
// @Router /api/v1/pets/{petID}/badges [get]
func (c *BadgeController) GetBadges(w http.ResponseWriter, r *http.Request) {
	petID, err := petIDFromRequest(r)
	if err != nil {
		c.responseBuilder.WriteError(w, r, err)
		return
	}

	records, err := c.deps.Badges.Badges(r.Context(), petID)
	if err != nil {
		c.responseBuilder.WriteError(w, r, engineError(err))
		return
	}

	views := make([]models.BadgeView, 0, len(records))
	for _, rec := range records {
		views = append(views, models.NewBadgeView(rec))
	}

	c.responseBuilder.WriteSuccess(w, r, PetBadgesResponse{PetID: petID, Badges: views})
}

// ===============================
// HELPERS
// ===============================

func petIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := mux.Vars(r)["petID"]
	petID, err := uuid.FromString(raw)
	if err != nil || petID == uuid.Nil {
		return uuid.Nil, response.NewValidationError("petID must be a valid UUID", err)
	}
	return petID, nil
}

// engineError maps engine lifecycle errors to API errors
func engineError(err error) error {
	switch {
	case errors.Is(err, badgeengine.ErrEngineStopped), errors.Is(err, badgeengine.ErrEngineNotStarted):
		return response.NewUnavailableError("badge engine is not running", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return response.NewUnavailableError("badge engine did not answer in time", err)
	}
	return response.NewInternalError("failed to load badges", err)
}
