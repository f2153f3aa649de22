package keyer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTXKeyer records SetActive calls for assertions; kept local to this
// package's tests to avoid importing keyer/hal (which imports keyer).
type fakeTXKeyer struct {
	history []bool
}

func (f *fakeTXKeyer) SetActive(active bool) error {
	f.history = append(f.history, active)
	return nil
}
func (f *fakeTXKeyer) Shutdown() error { return nil }

func testDeviceConfig() DeviceConfig {
	dc := DefaultDeviceConfig()
	dc.Keying.Preset = PresetV6
	dc.Keying.SpeedWPM = 20
	dc.Keying.PTTTailMS = 50
	dc.Audio.SidetoneEnabled = false // keep these tests decoupled from tone state
	return dc
}

func Test_KeyingSubsystem_PTTTail_HoldsAfterKeyUp(t *testing.T) {
	tx := &fakeTXKeyer{}
	sub := NewKeyingSubsystem(nil)
	sub.Initialize(testDeviceConfig(), nil, tx)

	clock := NewManualClock(0)
	sub.EnqueuePaddleEvent(PaddleEvent{Line: LineDit, Active: true, TimestampUS: clock.NowUS()})

	for i := 0; i < 1000; i++ {
		clock.Advance(100)
		sub.DrainPaddleEvents()
		sub.Tick(clock.NowUS())
		if tx.history != nil && tx.history[len(tx.history)-1] {
			break
		}
	}
	require.NotEmpty(t, tx.history)
	assert.True(t, tx.history[len(tx.history)-1], "TX must assert on key-down")

	sub.EnqueuePaddleEvent(PaddleEvent{Line: LineDit, Active: false, TimestampUS: clock.NowUS()})
	sub.DrainPaddleEvents()

	// Immediately after key-up (before the element/gap actually ends and
	// before the tail timer expires), TX must still be asserted.
	beforeTailEnd := clock.NowUS() + sub.pttTailUS/2
	sub.Tick(beforeTailEnd)
	assert.True(t, tx.history[len(tx.history)-1], "TX must stay asserted during the PTT tail")
}

func Test_KeyingSubsystem_LatencyProvider_ExtendsTail(t *testing.T) {
	tx := &fakeTXKeyer{}
	sub := NewKeyingSubsystem(nil)
	sub.Initialize(testDeviceConfig(), nil, tx)
	sub.SetLatencyProvider(func() int64 { return 200 }) // ms

	before := sub.pttTailEndUS
	sub.assertPTT(true, 0)
	sub.assertPTT(false, 1000)

	assert.Greater(t, sub.pttTailEndUS, before)
	assert.Equal(t, int64(1000)+sub.pttTailUS+200*1000, sub.pttTailEndUS)
}

func Test_KeyingSubsystem_EventQueueDroppedCount_ExposesQueueCounter(t *testing.T) {
	sub := NewKeyingSubsystem(nil)
	sub.Initialize(testDeviceConfig(), nil, &fakeTXKeyer{})

	for i := 0; i < eventQueueCapacity+10; i++ {
		sub.EnqueuePaddleEvent(PaddleEvent{Line: LineDit, Active: i%2 == 0, TimestampUS: int64(i)})
	}
	assert.Greater(t, sub.EventQueueDroppedCount(), uint64(0))
}
