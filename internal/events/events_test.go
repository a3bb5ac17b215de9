package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBus_FanOut(t *testing.T) {
	bus := NewBus(4)
	a, unsubA := bus.Subscribe()
	b, unsubB := bus.Subscribe()
	defer unsubA()
	defer unsubB()

	bus.Publish(Event{Type: SyncCompleted, Data: "ok"})

	for _, ch := range []<-chan Event{a, b} {
		select {
		case e := <-ch:
			assert.Equal(t, SyncCompleted, e.Type)
			assert.Equal(t, "ok", e.Data)
			assert.False(t, e.Time.IsZero())
		case <-time.After(time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestBus_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	bus := NewBus(1)
	ch, unsub := bus.Subscribe()
	defer unsub()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			bus.Publish(Event{Type: WorkspaceChanged})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	assert.Len(t, ch, 1)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(0)
	ch, unsub := bus.Subscribe()
	require.Equal(t, 1, bus.Len())

	unsub()
	unsub()
	assert.Equal(t, 0, bus.Len())

	_, open := <-ch
	assert.False(t, open)

	bus.Publish(Event{Type: PreferencesChanged})
}

func TestBus_ConcurrentPublishAndUnsubscribe(t *testing.T) {
	bus := NewBus(0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, unsub := bus.Subscribe()
			bus.Publish(Event{Type: WorkspaceChanged})
			unsub()
		}()
	}
	wg.Wait()
	assert.Equal(t, 0, bus.Len())
}
