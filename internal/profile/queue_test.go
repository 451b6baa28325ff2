package profile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestQueue_PushPopFIFO(t *testing.T) {
	q := NewQueue(4)
	a, b := &Profile{Timestamp: 1}, &Profile{Timestamp: 2}

	require.False(t, q.Push(a))
	require.False(t, q.Push(b))
	require.Equal(t, 2, q.Len())

	got, ok := q.TryPop()
	require.True(t, ok)
	require.Same(t, a, got)
}

func TestQueue_OverflowDropsOldest(t *testing.T) {
	q := NewQueue(2)
	p1, p2, p3 := &Profile{Timestamp: 1}, &Profile{Timestamp: 2}, &Profile{Timestamp: 3}

	require.False(t, q.Push(p1))
	require.False(t, q.Push(p2))
	require.True(t, q.Push(p3)) // p1 dropped to make room

	require.Equal(t, 2, q.Len())
	require.Equal(t, uint64(1), q.Dropped())

	got, ok := q.TryPop()
	require.True(t, ok)
	require.Same(t, p2, got)

	got, ok = q.TryPop()
	require.True(t, ok)
	require.Same(t, p3, got)
}

func TestQueue_TryPopEmpty(t *testing.T) {
	q := NewQueue(1)
	_, ok := q.TryPop()
	require.False(t, ok)
}

func TestQueue_PopBlocksUntilPush(t *testing.T) {
	q := NewQueue(1)
	done := make(chan *Profile, 1)
	go func() {
		p, err := q.Pop(context.Background())
		require.NoError(t, err)
		done <- p
	}()

	time.Sleep(10 * time.Millisecond)
	p := &Profile{Timestamp: 7}
	q.Push(p)

	select {
	case got := <-done:
		require.Same(t, p, got)
	case <-time.After(time.Second):
		t.Fatal("Pop did not return after Push")
	}
}

func TestQueue_ClearDropsEverythingQueued(t *testing.T) {
	q := NewQueue(4)
	q.Push(&Profile{Timestamp: 1})
	q.Push(&Profile{Timestamp: 2})
	require.Equal(t, 2, q.Len())

	q.Clear()
	require.Equal(t, 0, q.Len())

	_, ok := q.TryPop()
	require.False(t, ok)
}

func TestQueue_PopRespectsCancellation(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := q.Pop(ctx)
	require.Error(t, err)
}
