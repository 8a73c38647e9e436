package events

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/noteduco342/chatsync/internal/models"
	"github.com/stretchr/testify/require"
)

type collector struct {
	mu     sync.Mutex
	events []Event
}

func (c *collector) handle(evt Event) {
	c.mu.Lock()
	c.events = append(c.events, evt)
	c.mu.Unlock()
}

func (c *collector) snapshot() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Event(nil), c.events...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

func TestMemoryBusPreservesPublishOrder(t *testing.T) {
	req := require.New(t)
	bus := NewMemoryBus()
	defer bus.Close()

	var c collector
	unsubscribe := bus.Subscribe(ConversationTopic(1), "", c.handle)
	defer unsubscribe()

	ctx := context.Background()
	for i := 0; i < 200; i++ {
		req.NoError(bus.Publish(ctx, ConversationTopic(1), EventNewMessage, map[string]int{"seq": i}))
	}

	waitFor(t, func() bool { return len(c.snapshot()) == 200 })
	for i, evt := range c.snapshot() {
		var body map[string]int
		req.NoError(evt.Decode(&body))
		req.Equal(i, body["seq"])
		req.Equal(ConversationTopic(1), evt.Topic)
	}
}

func TestMemoryBusFiltersByTopicAndName(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()
	ctx := context.Background()

	var all, readsOnly, otherTopic collector
	bus.Subscribe(ConversationTopic(1), "", all.handle)
	bus.Subscribe(ConversationTopic(1), EventMessageRead, readsOnly.handle)
	bus.Subscribe(ConversationTopic(2), "", otherTopic.handle)

	require.NoError(t, bus.Publish(ctx, ConversationTopic(1), EventNewMessage, struct{}{}))
	require.NoError(t, bus.Publish(ctx, ConversationTopic(1), EventMessageRead, MessageReadPayload{MessageID: 5, UserID: 2}))

	waitFor(t, func() bool { return len(all.snapshot()) == 2 && len(readsOnly.snapshot()) == 1 })
	require.Equal(t, EventMessageRead, readsOnly.snapshot()[0].Name)

	var payload MessageReadPayload
	require.NoError(t, readsOnly.snapshot()[0].Decode(&payload))
	require.Equal(t, uint(5), payload.MessageID)

	time.Sleep(20 * time.Millisecond)
	require.Empty(t, otherTopic.snapshot())
}

func TestMemoryBusUnsubscribe(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()
	ctx := context.Background()

	var c collector
	unsubscribe := bus.Subscribe(PresenceTopic, EventStatusUpdate, c.handle)
	require.Equal(t, 1, bus.SubscriberCount(PresenceTopic))

	require.NoError(t, bus.Publish(ctx, PresenceTopic, EventStatusUpdate, StatusUpdatePayload{UserID: 1, Status: models.StatusOnline}))
	waitFor(t, func() bool { return len(c.snapshot()) == 1 })

	unsubscribe()
	unsubscribe()
	require.Equal(t, 0, bus.SubscriberCount(PresenceTopic))

	require.NoError(t, bus.Publish(ctx, PresenceTopic, EventStatusUpdate, StatusUpdatePayload{UserID: 1, Status: models.StatusIdle}))
	time.Sleep(20 * time.Millisecond)
	require.Len(t, c.snapshot(), 1)
}

func TestMemoryBusSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()
	ctx := context.Background()

	release := make(chan struct{})
	bus.Subscribe(UserTopic(1), "", func(Event) { <-release })
	var fast collector
	bus.Subscribe(UserTopic(1), "", fast.handle)

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(ctx, UserTopic(1), EventUnreadCountUpdate, UnreadCountPayload{ConversationID: uint(i + 1)}))
	}
	waitFor(t, func() bool { return len(fast.snapshot()) == 5 })
	close(release)
}

func TestMemoryBusHandlerPanicIsContained(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()
	ctx := context.Background()

	var c collector
	calls := 0
	bus.Subscribe(UserTopic(3), "", func(evt Event) {
		calls++
		if calls == 1 {
			panic("boom")
		}
		c.handle(evt)
	})

	require.NoError(t, bus.Publish(ctx, UserTopic(3), EventUnreadCountUpdate, struct{}{}))
	require.NoError(t, bus.Publish(ctx, UserTopic(3), EventUnreadCountUpdate, struct{}{}))
	waitFor(t, func() bool { return len(c.snapshot()) == 1 })
}

func TestMemoryBusClosed(t *testing.T) {
	bus := NewMemoryBus()
	require.NoError(t, bus.Close())
	require.ErrorIs(t, bus.Publish(context.Background(), UserTopic(1), EventStatusUpdate, struct{}{}), ErrBusClosed)
	unsubscribe := bus.Subscribe(UserTopic(1), "", func(Event) {})
	unsubscribe()
}

func TestNewEventKeepsRawPayload(t *testing.T) {
	evt, err := NewEvent("t", "n", []byte(`ignored`))
	require.NoError(t, err)
	require.JSONEq(t, `"aWdub3JlZA=="`, string(evt.Data))

	raw, err := NewEvent("t", "n", map[string]string{"a": "b"})
	require.NoError(t, err)
	again, err := NewEvent("t", "n", raw.Data)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":"b"}`, string(again.Data))

	_, err = NewEvent("t", "n", make(chan int))
	require.Error(t, err)
}
