package badges

import (
	"net/http"
	"time"

	"github.com/gofrs/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"petfolio/internal/contextutils"
	"petfolio/internal/events"
	"petfolio/internal/models"
	"petfolio/internal/response"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// EarnedMessage is pushed to stream clients for every badge.earned event
type EarnedMessage struct {
	EventID     string           `json:"event_id"`
	PetID       uuid.UUID        `json:"pet_id"`
	BadgeType   models.BadgeType `json:"badge_type"`
	Tier        models.BadgeTier `json:"tier"`
	Description string           `json:"description"`
	ImagePath   string           `json:"image_path"`
	Timestamp   time.Time        `json:"timestamp"`
}

// Stream upgrades to a websocket and forwards badge.earned events. An
// optional pet_id query parameter narrows the stream to one pet.
//
// @Summary Stream earned badges
// @Description Upgrades to a websocket that receives one JSON message per earned badge
// @Tags Badges
// @Param pet_id query string false "Only stream badges of this pet" format(uuid)
// @Success 101 {object} EarnedMessage "Switching protocols"
// @Failure 400 {object} response.APIResponse "Invalid pet_id filter"
// @Router /api/v1/badges/stream [get]
func (c *BadgeController) Stream(w http.ResponseWriter, r *http.Request) {
	var only uuid.UUID
	if raw := r.URL.Query().Get("pet_id"); raw != "" {
		id, err := uuid.FromString(raw)
		if err != nil {
			c.responseBuilder.WriteError(w, r, response.NewValidationError("pet_id must be a valid UUID", err))
			return
		}
		only = id
	}

	logger := contextutils.GetLogger(r.Context(), c.logger)

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	sub := c.deps.Bus.Listen(c.streamBuffer, events.TypeBadgeEarned)
	defer sub.Close()

	logger.Info("Badge stream client connected", zap.String("pet_filter", only.String()))

	closed := make(chan struct{})
	go readPump(conn, closed)

	c.writePump(conn, sub, only, closed, logger)
	logger.Info("Badge stream client disconnected")
}

// readPump drains client frames so control messages are processed
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *BadgeController) writePump(conn *websocket.Conn, sub *events.Subscription, only uuid.UUID, closed <-chan struct{}, logger *zap.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			earned, isEarned := event.(*events.BadgeEarnedEvent)
			if !isEarned || (only != uuid.Nil && earned.PetID != only) {
				continue
			}
			if err := conn.WriteJSON(newEarnedMessage(earned)); err != nil {
				logger.Debug("Badge stream write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func newEarnedMessage(e *events.BadgeEarnedEvent) EarnedMessage {
	return EarnedMessage{
		EventID:     e.EventID,
		PetID:       e.PetID,
		BadgeType:   e.BadgeType,
		Tier:        e.Tier,
		Description: models.Description(e.BadgeType, e.Tier),
		ImagePath:   models.ImagePath(e.BadgeType),
		Timestamp:   e.Timestamp,
	}
}
