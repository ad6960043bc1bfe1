package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := newEventQueue()
	assert.True(t, q.Enqueue(Event{Token: "a"}))
	assert.True(t, q.Enqueue(Event{Token: "b"}))
	assert.True(t, q.Enqueue(Event{Token: "c"}))
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"a", "b", "c"} {
		ev, ok := q.TryDequeue()
		require.True(t, ok)
		assert.Equal(t, want, ev.Token)
	}

	_, ok := q.TryDequeue()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestQueueRejectsAfterClose(t *testing.T) {
	q := newEventQueue()
	assert.True(t, q.Enqueue(Event{Token: "a"}))
	q.Close()
	assert.True(t, q.Closed())
	assert.False(t, q.Enqueue(Event{Token: "b"}))

	// Events enqueued before close remain drainable.
	ev, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "a", ev.Token)
}

func TestQueueWaitSignalsEnqueue(t *testing.T) {
	q := newEventQueue()

	done := make(chan string, 1)
	go func() {
		for {
			if ev, ok := q.TryDequeue(); ok {
				done <- ev.Token
				return
			}
			<-q.Wait()
		}
	}()

	q.Enqueue(Event{Token: "wake"})

	select {
	case tok := <-done:
		assert.Equal(t, "wake", tok)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer never woke")
	}
}

func TestQueueWaitSignalsClose(t *testing.T) {
	q := newEventQueue()

	done := make(chan struct{})
	go func() {
		<-q.Wait()
		close(done)
	}()

	q.Close()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("close never signalled")
	}
}
