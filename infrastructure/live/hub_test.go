package live

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishReachesMatchingSubscribers(t *testing.T) {
	hub := NewHub(nil)
	lots := hub.Subscribe("lots")
	defer lots.Close()
	packages := hub.Subscribe("packages")
	defer packages.Close()

	hub.Publish("lots", "raw_materials")

	select {
	case change := <-lots.Events():
		assert.Equal(t, []string{"lots", "raw_materials"}, change.Tables)
	default:
		t.Fatalf("expected lots subscriber to receive change")
	}
	select {
	case change := <-packages.Events():
		t.Fatalf("packages subscriber got unrelated change %v", change)
	default:
	}
}

func TestPublishCoalescesWhenBufferFull(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe()
	defer sub.Close()

	hub.Publish("lots")
	hub.Publish("packages")
	hub.Publish("depurations")

	<-sub.Events()
	select {
	case change := <-sub.Events():
		t.Fatalf("expected changes to coalesce, got extra %v", change)
	default:
	}
}

func TestCloseDetaches(t *testing.T) {
	hub := NewHub(nil)
	sub := hub.Subscribe("lots")
	require.Equal(t, 1, hub.Len())
	sub.Close()
	sub.Close()
	assert.Equal(t, 0, hub.Len())
	hub.Publish("lots")
	_, ok := <-sub.Events()
	assert.False(t, ok)
}

func TestQueryWatchRerunsOnDependentChange(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	q := Query[int]{
		Tables: []string{"lots"},
		Fetch: func(context.Context) (int, error) {
			calls++
			return calls, nil
		},
	}

	seen := make(chan int, 8)
	done := make(chan error, 1)
	go func() {
		done <- q.Watch(ctx, hub, func(v int) error {
			seen <- v
			return nil
		})
	}()

	require.Equal(t, 1, waitValue(t, seen))
	hub.Publish("packages")
	hub.Publish("lots")
	require.Equal(t, 2, waitValue(t, seen))

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatalf("watch did not stop after cancel")
	}
	assert.Equal(t, 0, hub.Len())
}

func TestQueryWatchStopsOnFetchError(t *testing.T) {
	hub := NewHub(nil)
	boom := errors.New("boom")
	q := Query[string]{Fetch: func(context.Context) (string, error) { return "", boom }}
	err := q.Watch(context.Background(), hub, func(string) error { return nil })
	assert.ErrorIs(t, err, boom)
}

func waitValue(t *testing.T, ch <-chan int) int {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for live query result")
		return 0
	}
}
