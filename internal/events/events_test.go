package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"petfolio/internal/models"
)

func newTestBus(t *testing.T) EventBus {
	t.Helper()
	bus := NewEventBus(&EventBusConfig{
		HandlerTimeout:   time.Second,
		ListenerBuffer:   8,
		BacklogThreshold: 50,
	}, zap.NewNop())
	require.NoError(t, bus.Start(context.Background()))
	t.Cleanup(func() { _ = bus.Stop(context.Background()) })
	return bus
}

func receive(t *testing.T, sub *Subscription) Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestListenerSeesEventsInPublishOrder(t *testing.T) {
	bus := newTestBus(t)
	sub := bus.Listen(0)
	petID := uuid.Must(uuid.NewV4())

	published := []Event{
		NewPhotoUploadedEvent(petID),
		NewActivityLoggedEvent(petID, uuid.Nil),
		NewPostCreatedEvent(petID, uuid.Nil),
	}
	for _, ev := range published {
		require.NoError(t, bus.Publish(context.Background(), ev))
	}

	for _, want := range published {
		got := receive(t, sub)
		assert.Equal(t, want.GetEventID(), got.GetEventID())
	}
}

func TestListenerMissesEarlierEvents(t *testing.T) {
	bus := newTestBus(t)
	petID := uuid.Must(uuid.NewV4())

	require.NoError(t, bus.Publish(context.Background(), NewPhotoUploadedEvent(petID)))

	sub := bus.Listen(0)
	later := NewPostCreatedEvent(petID, uuid.Nil)
	require.NoError(t, bus.Publish(context.Background(), later))

	got := receive(t, sub)
	assert.Equal(t, later.GetEventID(), got.GetEventID())
	assert.Len(t, sub.Events(), 0)
}

func TestListenerTypeFilter(t *testing.T) {
	bus := newTestBus(t)
	sub := bus.Listen(0, TypeBadgeEarned)
	petID := uuid.Must(uuid.NewV4())

	require.NoError(t, bus.Publish(context.Background(), NewPhotoUploadedEvent(petID)))
	earned := NewBadgeEarnedEvent(petID, models.BadgeTypeUploadPhoto, models.TierFirst)
	require.NoError(t, bus.Publish(context.Background(), earned))

	got := receive(t, sub)
	require.IsType(t, &BadgeEarnedEvent{}, got)
	assert.Equal(t, models.TierFirst, got.(*BadgeEarnedEvent).Tier)
	assert.Equal(t, petID, got.GetPetID())
}

func TestStopClosesListeners(t *testing.T) {
	bus := NewEventBus(nil, nil)
	sub := bus.Listen(1)

	require.NoError(t, bus.Stop(context.Background()))

	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.ErrorIs(t, bus.Publish(context.Background(), NewPhotoUploadedEvent(uuid.Nil)), ErrBusStopped)
	assert.ErrorIs(t, bus.Health(), ErrBusStopped)

	late := bus.Listen(1)
	_, ok = <-late.Events()
	assert.False(t, ok)
}

func TestSubscriptionCloseDetaches(t *testing.T) {
	bus := newTestBus(t)
	sub := bus.Listen(1)
	assert.Equal(t, 1, bus.Stats().ListenersCount)

	sub.Close()
	sub.Close()

	assert.Equal(t, 0, bus.Stats().ListenersCount)
	require.NoError(t, bus.Publish(context.Background(), NewPhotoUploadedEvent(uuid.Nil)))
}

func TestCancelledContextDropsForFullListener(t *testing.T) {
	bus := newTestBus(t)
	sub := bus.Listen(1)
	defer sub.Close()

	require.NoError(t, bus.Publish(context.Background(), NewPhotoUploadedEvent(uuid.Nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.NoError(t, bus.Publish(ctx, NewPhotoUploadedEvent(uuid.Nil)))

	stats := bus.Stats()
	assert.Equal(t, int64(2), stats.EventsPublished)
	assert.Equal(t, int64(1), stats.EventsDelivered)
	assert.Equal(t, int64(1), stats.EventsDropped)
}

func TestHealthReportsBacklog(t *testing.T) {
	bus := newTestBus(t)
	sub := bus.Listen(2)
	defer sub.Close()

	assert.NoError(t, bus.Health())
	for i := 0; i < 2; i++ {
		require.NoError(t, bus.Publish(context.Background(), NewPhotoUploadedEvent(uuid.Nil)))
	}
	assert.Error(t, bus.Health())
}

func TestHandlersAndPatterns(t *testing.T) {
	bus := newTestBus(t)
	var exact, pattern int

	require.NoError(t, bus.Subscribe(TypePostCreated, NewEventHandlerFunc("exact", func(ctx context.Context, event Event) error {
		exact++
		return nil
	})))
	require.NoError(t, bus.SubscribePattern("post.*", NewTypedEventHandler("typed", func(ctx context.Context, event *PostCreatedEvent) error {
		pattern++
		return nil
	})))

	require.NoError(t, bus.Publish(context.Background(), NewPostCreatedEvent(uuid.Nil, uuid.Nil)))
	assert.Equal(t, 1, exact)
	assert.Equal(t, 1, pattern)
	assert.Equal(t, 2, bus.Stats().HandlersCount)

	require.NoError(t, bus.Unsubscribe(TypePostCreated, NewEventHandlerFunc("exact", nil)))
	assert.Error(t, bus.Unsubscribe(TypePostCreated, NewEventHandlerFunc("exact", nil)))
}

func TestHandlerFailuresAreRecovered(t *testing.T) {
	bus := newTestBus(t)
	sub := bus.Listen(0)
	defer sub.Close()
	boom := errors.New("boom")

	require.NoError(t, bus.Subscribe(TypeUserLoggedIn, NewEventHandlerFunc("panics", func(ctx context.Context, event Event) error {
		panic("kaboom")
	})))
	require.NoError(t, bus.Subscribe(TypeUserLoggedIn, NewEventHandlerFunc("fails", func(ctx context.Context, event Event) error {
		return boom
	})))

	ev := NewUserLoggedInEvent(uuid.Must(uuid.NewV4()))
	err := bus.Publish(context.Background(), ev)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	// Listeners still see the event.
	assert.Equal(t, ev.GetEventID(), receive(t, sub).GetEventID())
	assert.Equal(t, int64(1), bus.Stats().EventsFailed)
}

func TestMatchesPattern(t *testing.T) {
	assert.True(t, matchesPattern("badge.earned", "*"))
	assert.True(t, matchesPattern("badge.earned", "badge.*"))
	assert.True(t, matchesPattern("badge.earned", "badge.earned"))
	assert.False(t, matchesPattern("post.created", "badge.*"))
}
