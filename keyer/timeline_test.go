package keyer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Timeline_Push_PreservesInsertionOrder(t *testing.T) {
	tl := NewTimeline()
	tl.Push(TimelineEvent{TimestampUS: 1, Type: EvtPaddleEdge})
	tl.Push(TimelineEvent{TimestampUS: 2, Type: EvtKeyingStart})
	tl.PushISR(TimelineEvent{TimestampUS: 3, Type: EvtKeyingFinish})

	var got []int64
	tl.ForEach(func(e TimelineEvent) { got = append(got, e.TimestampUS) })

	require.Equal(t, []int64{1, 2, 3}, got)
	assert.Equal(t, TimelineEvent{TimestampUS: 3, Type: EvtKeyingFinish}, tl.Latest())
}

func Test_Timeline_Overflow_OverwritesOldest(t *testing.T) {
	tl := NewTimeline()
	for i := 0; i < timelineCapacity; i++ {
		tl.Push(TimelineEvent{TimestampUS: int64(i)})
	}
	assert.Equal(t, timelineCapacity, tl.Size())
	assert.Equal(t, uint64(0), tl.DroppedCount())

	tl.Push(TimelineEvent{TimestampUS: 99999})
	assert.Equal(t, uint64(1), tl.DroppedCount())
	assert.Equal(t, timelineCapacity, tl.Size(), "size saturates at capacity, never grows past it")

	var first TimelineEvent
	tl.ForEach(func(e TimelineEvent) {
		if first == (TimelineEvent{}) {
			first = e
		}
	})
	assert.Equal(t, int64(1), first.TimestampUS, "oldest entry (ts=0) must have been overwritten")
}

func Test_Timeline_DroppedCount_Monotonic(t *testing.T) {
	tl := NewTimeline()
	for i := 0; i < timelineCapacity+100; i++ {
		tl.Push(TimelineEvent{TimestampUS: int64(i)})
	}
	last := tl.DroppedCount()
	for i := 0; i < 20; i++ {
		tl.Push(TimelineEvent{})
		next := tl.DroppedCount()
		assert.GreaterOrEqual(t, next, last)
		last = next
	}
}

func Test_Timeline_Clear_ResetsState(t *testing.T) {
	tl := NewTimeline()
	tl.Push(TimelineEvent{TimestampUS: 1})
	tl.Clear()

	assert.Equal(t, 0, tl.Size())
	assert.Equal(t, uint64(0), tl.DroppedCount())
	assert.Equal(t, TimelineEvent{}, tl.Latest())
}
