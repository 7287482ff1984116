package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keyflow/internal/config"
	"github.com/roach88/keyflow/internal/matcher"
)

func keyEvent(code int) Event {
	return KeyEvent(matcher.KeyEvent{KeyCode: code, Down: true})
}

func TestEventQueue_EnqueueDequeue(t *testing.T) {
	q := newEventQueue()

	ok := q.Enqueue(keyEvent(24))
	require.True(t, ok, "enqueue should succeed")

	got, ok := q.TryDequeue()
	require.True(t, ok, "dequeue should succeed")
	assert.Equal(t, EventTypeKey, got.Type)
	assert.Equal(t, 24, got.Key.KeyCode)
}

func TestEventQueue_FIFO(t *testing.T) {
	q := newEventQueue()

	cfg := &config.Config{Source: "reload"}
	q.Enqueue(keyEvent(1))
	q.Enqueue(ReloadEvent(cfg))
	q.Enqueue(keyEvent(3))

	e1, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, 1, e1.Key.KeyCode)

	e2, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, EventTypeReload, e2.Type)
	assert.Same(t, cfg, e2.Config)

	e3, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, 3, e3.Key.KeyCode)
}

func TestEventQueue_TryDequeue_Empty(t *testing.T) {
	q := newEventQueue()

	_, ok := q.TryDequeue()
	assert.False(t, ok, "dequeue from empty queue should return false")
}

func TestEventQueue_WaitSignals(t *testing.T) {
	q := newEventQueue()
	q.Enqueue(keyEvent(1))

	select {
	case <-q.Wait():
	case <-time.After(100 * time.Millisecond):
		t.Fatal("no signal after enqueue")
	}
}

func TestEventQueue_Close_WakesWaiters(t *testing.T) {
	q := newEventQueue()

	done := make(chan struct{})
	go func() {
		<-q.Wait()
		close(done)
	}()

	q.Close()
	q.Close() // idempotent

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("waiter not woken by close")
	}
}

func TestEventQueue_Enqueue_AfterClose(t *testing.T) {
	q := newEventQueue()
	q.Close()

	ok := q.Enqueue(keyEvent(1))
	assert.False(t, ok, "enqueue after close should return false")
}

func TestEventQueue_Len(t *testing.T) {
	q := newEventQueue()

	assert.Equal(t, 0, q.Len())

	q.Enqueue(keyEvent(1))
	assert.Equal(t, 1, q.Len())

	q.Enqueue(keyEvent(2))
	assert.Equal(t, 2, q.Len())

	q.TryDequeue()
	assert.Equal(t, 1, q.Len())

	q.TryDequeue()
	assert.Equal(t, 0, q.Len())
}

func TestEventQueue_ThreadSafe(t *testing.T) {
	q := newEventQueue()

	const producers = 10
	const eventsPerProducer = 100

	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(producerID int) {
			defer wg.Done()
			for i := 0; i < eventsPerProducer; i++ {
				q.Enqueue(keyEvent(producerID*1000 + i))
			}
		}(p)
	}
	wg.Wait()

	received := 0
	for {
		if _, ok := q.TryDequeue(); !ok {
			break
		}
		received++
	}
	assert.Equal(t, producers*eventsPerProducer, received)
}

func TestEventType_String(t *testing.T) {
	assert.Equal(t, "key", EventTypeKey.String())
	assert.Equal(t, "reload", EventTypeReload.String())
	assert.Equal(t, "unknown", EventType(0).String())
}
