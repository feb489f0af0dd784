package badges

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	badgeengine "petfolio/internal/badges"
	"petfolio/internal/events"
	"petfolio/internal/models"
	"petfolio/internal/response"
)

type fakeReader struct {
	records []models.BadgeRecord
	err     error
}

func (f *fakeReader) Badges(context.Context, uuid.UUID) ([]models.BadgeRecord, error) {
	return f.records, f.err
}

type fakeActivities struct {
	mu   sync.Mutex
	logs []*models.ActivityLog
	err  error
}

func (f *fakeActivities) Create(_ context.Context, log *models.ActivityLog) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	log.ID = uuid.Must(uuid.NewV4())
	f.logs = append(f.logs, log)
	return nil
}

type fakePosts struct {
	posts []*models.Post
}

func (f *fakePosts) Create(_ context.Context, post *models.Post) error {
	post.ID = uuid.Must(uuid.NewV4())
	f.posts = append(f.posts, post)
	return nil
}

type harness struct {
	router     *mux.Router
	bus        events.EventBus
	reader     *fakeReader
	activities *fakeActivities
	posts      *fakePosts
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	bus := events.NewEventBus(nil, zap.NewNop())
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { _ = bus.Stop(context.Background()) })

	h := &harness{
		bus:        bus,
		reader:     &fakeReader{},
		activities: &fakeActivities{},
		posts:      &fakePosts{},
	}
	controller := NewBadgeController(Dependencies{
		Badges:     h.reader,
		Activities: h.activities,
		Posts:      h.posts,
		Bus:        bus,
	}, zap.NewNop(), response.NewBuilder(nil, zap.NewNop()))

	h.router = mux.NewRouter()
	h.router.HandleFunc("/pets/{petID}/events", controller.PostEvent).Methods(http.MethodPost)
	h.router.HandleFunc("/pets/{petID}/badges", controller.GetBadges).Methods(http.MethodGet)
	h.router.HandleFunc("/badges/stream", controller.Stream).Methods(http.MethodGet)
	return h
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	h.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) response.APIResponse {
	t.Helper()
	var envelope struct {
		response.APIResponse
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&envelope))
	if data != nil {
		require.NoError(t, json.Unmarshal(envelope.Data, data))
	}
	return envelope.APIResponse
}

func receive(t *testing.T, sub *events.Subscription) events.Event {
	t.Helper()
	select {
	case e := <-sub.Events():
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("no event published")
		return nil
	}
}

func TestPostEventPhoto(t *testing.T) {
	h := newHarness(t)
	sub := h.bus.Listen(4)
	defer sub.Close()
	petID := uuid.Must(uuid.NewV4())

	rec := h.do(http.MethodPost, "/pets/"+petID.String()+"/events", `{"type":"photo.uploaded"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted EventAccepted
	body := decodeBody(t, rec, &accepted)
	assert.True(t, body.Success)
	assert.Equal(t, events.TypePhotoUploaded, accepted.EventType)
	assert.Nil(t, accepted.RecordID)

	event := receive(t, sub)
	assert.Equal(t, accepted.EventID, event.GetEventID())
	assert.Equal(t, petID, event.GetPetID())
}

func TestPostEventActivityStoresLogFirst(t *testing.T) {
	h := newHarness(t)
	sub := h.bus.Listen(4)
	defer sub.Close()
	petID := uuid.Must(uuid.NewV4())

	rec := h.do(http.MethodPost, "/pets/"+petID.String()+"/events",
		`{"type":"activity.logged","activity_type":"walk","comment":"park"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.Len(t, h.activities.logs, 1)
	stored := h.activities.logs[0]
	assert.Equal(t, petID, stored.PetID)
	assert.Equal(t, "walk", stored.ActivityType)

	event, ok := receive(t, sub).(*events.ActivityLoggedEvent)
	require.True(t, ok)
	assert.Equal(t, stored.ID, event.LogID)
}

func TestPostEventPost(t *testing.T) {
	h := newHarness(t)
	petID := uuid.Must(uuid.NewV4())

	rec := h.do(http.MethodPost, "/pets/"+petID.String()+"/events",
		`{"type":"post.created","caption":"hi","is_public":true}`)
	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Len(t, h.posts.posts, 1)
	assert.True(t, h.posts.posts[0].IsPublic)
}

func TestPostEventRejectsBadInput(t *testing.T) {
	h := newHarness(t)
	petID := uuid.Must(uuid.NewV4()).String()

	cases := []struct {
		name string
		path string
		body string
	}{
		{"bad pet id", "/pets/not-a-uuid/events", `{"type":"photo.uploaded"}`},
		{"unknown type", "/pets/" + petID + "/events", `{"type":"badge.earned"}`},
		{"missing activity type", "/pets/" + petID + "/events", `{"type":"activity.logged"}`},
		{"unknown field", "/pets/" + petID + "/events", `{"type":"photo.uploaded","extra":1}`},
		{"not json", "/pets/" + petID + "/events", `nope`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := h.do(http.MethodPost, tc.path, tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			body := decodeBody(t, rec, nil)
			require.NotNil(t, body.Error)
			assert.Equal(t, response.TypeValidation, body.Error.Type)
		})
	}
	assert.Empty(t, h.activities.logs)
}

func TestPostEventStoreFailure(t *testing.T) {
	h := newHarness(t)
	h.activities.err = errors.New("disk full")

	rec := h.do(http.MethodPost, "/pets/"+uuid.Must(uuid.NewV4()).String()+"/events",
		`{"type":"activity.logged","activity_type":"walk"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestGetBadges(t *testing.T) {
	h := newHarness(t)
	petID := uuid.Must(uuid.NewV4())
	now := time.Now().UTC()
	h.reader.records = []models.BadgeRecord{
		{PetID: petID, Type: models.BadgeTypeLogActivity, Tier: models.TierTenth, CreatedAt: now, LastUpdated: now},
	}

	rec := h.do(http.MethodGet, "/pets/"+petID.String()+"/badges", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got PetBadgesResponse
	decodeBody(t, rec, &got)
	assert.Equal(t, petID, got.PetID)
	require.Len(t, got.Badges, 1)
	assert.Equal(t, "Log 10 activities for your pet.", got.Badges[0].Description)
	assert.Equal(t, "log_activity.png", got.Badges[0].ImagePath)
}

func TestGetBadgesEngineStopped(t *testing.T) {
	h := newHarness(t)
	h.reader.err = badgeengine.ErrEngineStopped

	rec := h.do(http.MethodGet, "/pets/"+uuid.Must(uuid.NewV4()).String()+"/badges", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStreamForwardsEarnedBadges(t *testing.T) {
	h := newHarness(t)
	server := httptest.NewServer(h.router)
	defer server.Close()

	petID, other := uuid.Must(uuid.NewV4()), uuid.Must(uuid.NewV4())
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/badges/stream?pet_id=" + petID.String()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return h.bus.Stats().ListenersCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	ctx := context.Background()
	require.NoError(t, h.bus.Publish(ctx, events.NewBadgeEarnedEvent(other, models.BadgeTypeMakePost, models.TierFirst)))
	require.NoError(t, h.bus.Publish(ctx, events.NewPhotoUploadedEvent(petID)))
	require.NoError(t, h.bus.Publish(ctx, events.NewBadgeEarnedEvent(petID, models.BadgeTypeUploadPhoto, models.TierFirst)))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg EarnedMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, petID, msg.PetID)
	assert.Equal(t, models.BadgeTypeUploadPhoto, msg.BadgeType)
	assert.Equal(t, "Upload a picture of your pet.", msg.Description)
}

func TestStreamRejectsBadFilter(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodGet, "/badges/stream?pet_id=zzz", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
