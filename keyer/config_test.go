package keyer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func Test_BuildEngineConfig_PresetV3_AccukeyerBothMemoryModeB(t *testing.T) {
	dc := KeyingConfig{Preset: PresetV3, SpeedWPM: 20, MemoryOpenPct: 0, MemoryClosePct: 100}
	ec := BuildEngineConfig(dc)
	assert.Equal(t, MemoryBoth, ec.MemoryMode)
	assert.Equal(t, ModeB, ec.IambicMode)
}

func Test_BuildEngineConfig_PresetV6_CurtisABothMemory(t *testing.T) {
	dc := KeyingConfig{Preset: PresetV6, SpeedWPM: 20, MemoryOpenPct: 0, MemoryClosePct: 100}
	ec := BuildEngineConfig(dc)
	assert.Equal(t, MemoryBoth, ec.MemoryMode)
	assert.Equal(t, ModeA, ec.IambicMode)
}

func Test_BuildEngineConfig_PresetV9_NoMemoryModeA(t *testing.T) {
	dc := KeyingConfig{Preset: PresetV9, SpeedWPM: 20, MemoryOpenPct: 0, MemoryClosePct: 100}
	ec := BuildEngineConfig(dc)
	assert.Equal(t, MemoryNone, ec.MemoryMode)
	assert.Equal(t, ModeA, ec.IambicMode)
}

func Test_BuildEngineConfig_Manual_UsesTopLevelTiming(t *testing.T) {
	dc := KeyingConfig{
		Preset:       PresetManual,
		SpeedWPM:     25,
		TimingL:      33,
		TimingS:      45,
		TimingP:      55,
		ManualMemory: ManualMemoryConfig{DotEnabled: true, DahEnabled: false},
	}
	ec := BuildEngineConfig(dc)
	assert.Equal(t, MemoryDotOnly, ec.MemoryMode)
	assert.Equal(t, 33, ec.TimingL)
	assert.Equal(t, 45, ec.TimingS)
	assert.Equal(t, 55, ec.TimingP)
}

func Test_BuildEngineConfig_PresetOverride_LayersAtopBaseline(t *testing.T) {
	overrideL := 40
	dc := KeyingConfig{
		Preset:   PresetV6,
		SpeedWPM: 20,
		PresetOverrides: map[Preset]PresetOverride{
			PresetV6: {TimingL: &overrideL},
		},
	}
	ec := BuildEngineConfig(dc)
	assert.Equal(t, 40, ec.TimingL)
	assert.Equal(t, 50, ec.TimingS, "unoverridden fields keep the 30/50/50 baseline")
}

func Test_ClampConfig_OutOfRangeSpeedIsClampedNotRejected(t *testing.T) {
	ec := EngineConfig{SpeedWPM: 999, TimingL: 30, TimingS: 50, TimingP: 50}
	clamped := clampConfig(ec, nil)
	assert.Equal(t, 60, clamped.SpeedWPM)
}

func Test_ClampConfig_InvertedMemoryWindow_ClosesToOpen(t *testing.T) {
	ec := EngineConfig{SpeedWPM: 20, TimingL: 30, TimingS: 50, TimingP: 50, MemWindowOpenPct: 80, MemWindowClosePct: 20}
	clamped := clampConfig(ec, nil)
	assert.LessOrEqual(t, clamped.MemWindowOpenPct, clamped.MemWindowClosePct)
}

// Property: recomputeDurations always derives dah_us as exactly
// dit_us * (timing_l/10) within integer rounding, for any valid config.
func Test_RecomputeDurations_DahIsDitTimesLRatio(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		wpm := rapid.IntRange(5, 60).Draw(rt, "wpm")
		l := rapid.IntRange(10, 90).Draw(rt, "l")
		s := rapid.IntRange(0, 99).Draw(rt, "s")
		p := rapid.IntRange(10, 99).Draw(rt, "p")

		ec := EngineConfig{SpeedWPM: wpm, TimingL: l, TimingS: s, TimingP: p}
		ec.recomputeDurations()

		expectedDah := int64(float64(ec.DitUS)*(float64(l)/10.0) + 0.5)
		require.InDelta(rt, expectedDah, ec.DahUS, 1, "rounding may differ by at most one microsecond via chained vs direct computation")
		require.Greater(rt, ec.DitUS, int64(0))
	})
}
