package event

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_DeliversToSubscribers(t *testing.T) {
	hub := NewHub(nil, []string{"new_order", "order_updated"})

	ch1, cancel1 := hub.Subscribe()
	defer cancel1()
	ch2, cancel2 := hub.Subscribe()
	defer cancel2()
	assert.Equal(t, 2, hub.SubscriberCount())

	ev := newTestEvent("new_order")
	require.NoError(t, hub.Handle(context.Background(), ev))

	for _, ch := range []<-chan Message{ch1, ch2} {
		select {
		case msg := <-ch:
			assert.Equal(t, "new_order", msg.Type)
			assert.Equal(t, ev.EventID().String(), msg.ID)

			var body map[string]any
			require.NoError(t, json.Unmarshal(msg.Data, &body))
			assert.Equal(t, "test data", body["data"])
		case <-time.After(time.Second):
			t.Fatal("message not delivered")
		}
	}
}

func TestHub_CancelClosesChannel(t *testing.T) {
	hub := NewHub(nil, nil)
	ch, cancel := hub.Subscribe()

	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestHub_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(nil, nil, WithHubBuffer(1))
	_, cancel := hub.Subscribe()
	defer cancel()

	for i := 0; i < 3; i++ {
		require.NoError(t, hub.Handle(context.Background(), newTestEvent("order_updated")))
	}
	assert.Equal(t, int64(2), hub.Dropped())
}

func TestHub_ConcurrentSubscribeAndHandle(t *testing.T) {
	hub := NewHub(nil, nil)
	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			ch, cancel := hub.Subscribe()
			select {
			case <-ch:
			case <-time.After(10 * time.Millisecond):
			}
			cancel()
		}()
		go func() {
			defer wg.Done()
			_ = hub.Handle(context.Background(), newTestEvent("new_order"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestHub_ReceivesFromBus(t *testing.T) {
	bus := NewInMemoryEventBus(nil)
	hub := NewHub(nil, []string{"order_updated"})
	bus.Subscribe(hub)

	ch, cancel := hub.Subscribe()
	defer cancel()

	require.NoError(t, bus.Publish(context.Background(), newTestEvent("new_order"), newTestEvent("order_updated")))

	msg := <-ch
	assert.Equal(t, "order_updated", msg.Type)
	select {
	case extra := <-ch:
		t.Fatalf("unexpected message %s", extra.Type)
	default:
	}
}
