package events

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case evt, ok := <-ch:
		require.True(t, ok, "channel closed")
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func TestPublishFansOutLocally(t *testing.T) {
	bus := NewBus(Options{Logger: zerolog.Nop()})
	defer bus.Close()

	a, cancelA, err := bus.Subscribe(context.Background())
	require.NoError(t, err)
	defer cancelA()
	b, cancelB, err := bus.Subscribe(context.Background())
	require.NoError(t, err)
	defer cancelB()

	require.NoError(t, bus.Publish(context.Background(), Event{Type: DocumentUploaded, Data: map[string]string{"id": "doc-1"}}))

	for _, ch := range []<-chan Event{a, b} {
		evt := receive(t, ch)
		assert.Equal(t, DocumentUploaded, evt.Type)
		assert.NotEmpty(t, evt.ID)
		assert.False(t, evt.Timestamp.IsZero())
	}
}

func TestSubscriptionEndsWithContext(t *testing.T) {
	bus := NewBus(Options{Logger: zerolog.Nop()})
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	ch, _, err := bus.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription was not closed")
	}
	assert.Eventually(t, func() bool { return bus.Subscribers() == 0 }, time.Second, 10*time.Millisecond)
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus(Options{Logger: zerolog.Nop()})
	defer bus.Close()

	ch, cancel, err := bus.Subscribe(context.Background())
	require.NoError(t, err)
	defer cancel()

	for i := 0; i < subscriberBuffer*2; i++ {
		require.NoError(t, bus.Publish(context.Background(), Event{Type: ConversationMessage}))
	}
	assert.Len(t, ch, subscriberBuffer)
}

func TestCloseClosesSubscribers(t *testing.T) {
	bus := NewBus(Options{Logger: zerolog.Nop()})
	ch, cancel, err := bus.Subscribe(context.Background())
	require.NoError(t, err)

	bus.Close()
	_, ok := <-ch
	assert.False(t, ok)
	cancel()
	bus.Close()

	_, _, err = bus.Subscribe(context.Background())
	assert.Error(t, err)
}
