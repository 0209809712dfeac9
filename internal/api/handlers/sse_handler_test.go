package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zatekoja/radreference/internal/api/handlers"
	"github.com/zatekoja/radreference/internal/domain/entities"
	"github.com/zatekoja/radreference/internal/domain/providers"
)

// stubEventBus is an in-memory EventBus for handler tests.
type stubEventBus struct {
	mu       sync.Mutex
	channels map[string]chan *entities.CardEvent
}

func newStubEventBus() *stubEventBus {
	return &stubEventBus{channels: make(map[string]chan *entities.CardEvent)}
}

func (b *stubEventBus) channel(name string) chan *entities.CardEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.channels[name] == nil {
		b.channels[name] = make(chan *entities.CardEvent, 10)
	}
	return b.channels[name]
}

func (b *stubEventBus) Publish(ctx context.Context, channel string, event *entities.CardEvent) error {
	b.channel(channel) <- event
	return nil
}

func (b *stubEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.CardEvent, error) {
	return b.channel(channel), nil
}

func (b *stubEventBus) Unsubscribe(ctx context.Context, channel string) error { return nil }

func (b *stubEventBus) Close() error { return nil }

// runStream drives an SSE handler until cancel fires and returns the body.
func runStream(t *testing.T, handlerFunc http.HandlerFunc, req *http.Request, publish func()) string {
	t.Helper()

	ctx, cancel := context.WithCancel(req.Context())
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handlerFunc(rec, req)
		close(done)
	}()

	// Give the handler time to subscribe before publishing.
	time.Sleep(50 * time.Millisecond)
	publish()
	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream handler did not exit after context cancellation")
	}

	return rec.Body.String()
}

func TestStreamCardUpdates_ForwardsEvents(t *testing.T) {
	bus := newStubEventBus()
	handler := handlers.NewSSEHandler(bus)

	req := httptest.NewRequest(http.MethodGet, "/api/stream/helper-cards", nil)
	event := entities.NewCardEvent("card-1", entities.CardEventTypeGenerated, "tirads", entities.SectionObservations, "ULTRASOUND")

	body := runStream(t, handler.StreamCardUpdates, req, func() {
		require.NoError(t, bus.Publish(context.Background(), providers.EventChannelCardUpdates, event))
	})

	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, "event: card_generated")
	assert.Contains(t, body, `"card_id":"card-1"`)
	assert.Equal(t, 0, handler.GetClientCount())
}

func TestStreamCardUpdates_ModalityFilter(t *testing.T) {
	bus := newStubEventBus()
	handler := handlers.NewSSEHandler(bus)

	req := httptest.NewRequest(http.MethodGet, "/api/stream/helper-cards?modality=ct", nil)
	ctEvent := entities.NewCardEvent("card-ct", entities.CardEventTypeGenerated, "fleischner", entities.SectionRecommendations, "CT")
	usEvent := entities.NewCardEvent("card-us", entities.CardEventTypeGenerated, "tirads", entities.SectionObservations, "ULTRASOUND")

	body := runStream(t, handler.StreamCardUpdates, req, func() {
		require.NoError(t, bus.Publish(context.Background(), providers.EventChannelCardUpdates, usEvent))
		require.NoError(t, bus.Publish(context.Background(), providers.EventChannelCardUpdates, ctEvent))
	})

	assert.Contains(t, body, `"card_id":"card-ct"`)
	assert.NotContains(t, body, `"card_id":"card-us"`)
}

func TestStreamCardUpdates_PassesEventsWithoutModality(t *testing.T) {
	bus := newStubEventBus()
	handler := handlers.NewSSEHandler(bus)

	req := httptest.NewRequest(http.MethodGet, "/api/stream/helper-cards?modality=CT", nil)
	event := entities.NewCardEvent("card-any", entities.CardEventTypeGenerated, "tnm", entities.SectionConclusion, "")

	body := runStream(t, handler.StreamCardUpdates, req, func() {
		require.NoError(t, bus.Publish(context.Background(), providers.EventChannelCardUpdates, event))
	})

	assert.Contains(t, body, `"card_id":"card-any"`)
}

func TestStreamUserCardUpdates_ForwardsUserEvents(t *testing.T) {
	bus := newStubEventBus()
	handler := handlers.NewSSEHandler(bus)

	req := httptest.NewRequest(http.MethodGet, "/api/stream/helper-cards/user/u1", nil)
	req.SetPathValue("id", "u1")
	event := entities.NewCardEvent("card-user", entities.CardEventTypeGenerated, "lirads", entities.SectionConclusion, "CT")

	body := runStream(t, handler.StreamUserCardUpdates, req, func() {
		require.NoError(t, bus.Publish(context.Background(), providers.GetUserChannel("u1"), event))
	})

	assert.Contains(t, body, "event: connected")
	assert.Contains(t, body, `"user_id":"u1"`)
	assert.Contains(t, body, `"card_id":"card-user"`)
}

func TestStreamUserCardUpdates_MissingUserID(t *testing.T) {
	bus := newStubEventBus()
	handler := handlers.NewSSEHandler(bus)

	req := httptest.NewRequest(http.MethodGet, "/api/stream/helper-cards/user/", nil)
	rec := httptest.NewRecorder()

	handler.StreamUserCardUpdates(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "user ID is required")
}

func TestGetClientCount_TracksActiveStreams(t *testing.T) {
	bus := newStubEventBus()
	handler := handlers.NewSSEHandler(bus)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/stream/helper-cards", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		handler.StreamCardUpdates(rec, req)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return handler.GetClientCount() == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, 0, handler.GetClientCount())
}
