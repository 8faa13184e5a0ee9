package ratelimit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrackerPublishNotifiesInOrder(t *testing.T) {
	tr := NewTracker()

	var order []string
	tr.Subscribe(func(*Info) { order = append(order, "first") })
	tr.Subscribe(func(*Info) { order = append(order, "second") })
	tr.Subscribe(func(*Info) { order = append(order, "third") })

	tr.Publish(&Info{Limit: 10, Remaining: 2})

	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestTrackerCurrent(t *testing.T) {
	tr := NewTracker()
	assert.Nil(t, tr.Current())

	tr.Publish(&Info{Limit: 100, Remaining: 0, RetryAfter: 15})
	cur := tr.Current()
	require.NotNil(t, cur)
	assert.Equal(t, 15, cur.RetryAfter)

	// Callers get copies.
	cur.RetryAfter = 99
	assert.Equal(t, 15, tr.Current().RetryAfter)

	tr.Publish(nil)
	assert.Nil(t, tr.Current())
}

func TestTrackerListenerSeesNil(t *testing.T) {
	tr := NewTracker()

	var got []*Info
	tr.Subscribe(func(i *Info) { got = append(got, i) })

	tr.Publish(&Info{Limit: 1})
	tr.Publish(nil)

	require.Len(t, got, 2)
	assert.NotNil(t, got[0])
	assert.Nil(t, got[1])
}

func TestTrackerUnsubscribe(t *testing.T) {
	tr := NewTracker()

	var a, b int
	unsubA := tr.Subscribe(func(*Info) { a++ })
	tr.Subscribe(func(*Info) { b++ })
	assert.Equal(t, 2, tr.Subscribers())

	tr.Publish(nil)
	unsubA()
	unsubA()
	tr.Publish(nil)

	assert.Equal(t, 1, a)
	assert.Equal(t, 2, b)
	assert.Equal(t, 1, tr.Subscribers())
}

func TestTrackerListenerMayUnsubscribeDuringPublish(t *testing.T) {
	tr := NewTracker()

	var calls int
	var unsub func()
	unsub = tr.Subscribe(func(*Info) {
		calls++
		unsub()
	})

	tr.Publish(&Info{Limit: 1})
	tr.Publish(&Info{Limit: 1})

	assert.Equal(t, 1, calls)
}

func TestTrackerReset(t *testing.T) {
	tr := NewTracker()
	called := false
	tr.Subscribe(func(*Info) { called = true })
	tr.Publish(&Info{Limit: 5})

	tr.Reset()
	assert.Nil(t, tr.Current())
	assert.Zero(t, tr.Subscribers())

	called = false
	tr.Publish(&Info{Limit: 5})
	assert.False(t, called)
}

func TestTrackerConcurrentPublish(t *testing.T) {
	tr := NewTracker()

	var mu sync.Mutex
	count := 0
	tr.Subscribe(func(*Info) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tr.Publish(&Info{Limit: 10, Remaining: n})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, count)
	assert.NotNil(t, tr.Current())
}
