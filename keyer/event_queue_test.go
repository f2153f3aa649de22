package keyer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_EventQueue_EnqueueDequeue_FIFO(t *testing.T) {
	q := NewEventQueue()
	q.Enqueue(PaddleEvent{Line: LineDit, Active: true, TimestampUS: 1})
	q.Enqueue(PaddleEvent{Line: LineDah, Active: true, TimestampUS: 2})

	evt, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, LineDit, evt.Line)

	evt, ok = q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, LineDah, evt.Line)

	_, ok = q.Dequeue()
	assert.False(t, ok)
}

// Overflow drops the newest event, not the oldest, deliberately differing
// from Timeline's overwrite policy.
func Test_EventQueue_Overflow_DropsNewest(t *testing.T) {
	q := NewEventQueue()
	for i := 0; i < eventQueueCapacity-1; i++ {
		q.Enqueue(PaddleEvent{TimestampUS: int64(i)})
	}
	assert.Equal(t, uint64(0), q.DroppedCount())

	q.Enqueue(PaddleEvent{TimestampUS: 9999}) // should be dropped: queue full
	assert.Equal(t, uint64(1), q.DroppedCount())

	first, ok := q.Dequeue()
	require.True(t, ok)
	assert.Equal(t, int64(0), first.TimestampUS, "oldest queued event must survive an overflow")
}

func Test_EventQueue_DroppedCount_Monotonic(t *testing.T) {
	q := NewEventQueue()
	for i := 0; i < eventQueueCapacity+50; i++ {
		q.Enqueue(PaddleEvent{TimestampUS: int64(i)})
	}
	last := q.DroppedCount()
	for i := 0; i < 10; i++ {
		q.Enqueue(PaddleEvent{})
		next := q.DroppedCount()
		assert.GreaterOrEqual(t, next, last)
		last = next
	}
}

func Test_EventQueue_DrainInto_ConsumesAllInOrder(t *testing.T) {
	q := NewEventQueue()
	for i := 0; i < 10; i++ {
		q.Enqueue(PaddleEvent{TimestampUS: int64(i)})
	}

	var got []int64
	q.DrainInto(func(evt PaddleEvent) { got = append(got, evt.TimestampUS) })

	require.Len(t, got, 10)
	for i, ts := range got {
		assert.Equal(t, int64(i), ts)
	}
	assert.Equal(t, 0, q.Len())
}
