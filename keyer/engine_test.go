package keyer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testEngineConfig() EngineConfig {
	ec := EngineConfig{
		SpeedWPM:          20,
		IambicMode:        ModeB,
		MemoryMode:        MemoryBoth,
		SqueezeMode:       SqueezeSnapshot,
		MemWindowOpenPct:  0,
		MemWindowClosePct: 100,
		TimingL:           30,
		TimingS:           50,
		TimingP:           50,
	}
	ec.recomputeDurations()
	return ec
}

type engineHarness struct {
	e       *Engine
	clock   *ManualClock
	started []Element
	finished []Element
	keyLog  []bool
	squeeze int
}

func newEngineHarness(cfg EngineConfig) *engineHarness {
	h := &engineHarness{clock: NewManualClock(0)}
	h.e = NewEngine()
	h.e.Initialize(cfg, Callbacks{
		OnElementStarted:  func(elem Element, tsUS int64) { h.started = append(h.started, elem) },
		OnElementFinished: func(elem Element, tsUS int64) { h.finished = append(h.finished, elem) },
		OnKeyStateChanged: func(active bool, tsUS int64) { h.keyLog = append(h.keyLog, active) },
		OnSqueezeDetected: func(tsUS int64) { h.squeeze++ },
	})
	return h
}

func (h *engineHarness) press(line PaddleLine, active bool) {
	h.e.OnPaddleEvent(PaddleEvent{Line: line, Active: active, TimestampUS: h.clock.NowUS()})
}

func (h *engineHarness) runUS(deltaUS int64, stepUS int64) {
	for remaining := deltaUS; remaining > 0; remaining -= stepUS {
		h.clock.Advance(stepUS)
		h.e.Tick(h.clock.NowUS())
	}
}

func Test_Engine_DitAlone_ProducesOneDit(t *testing.T) {
	h := newEngineHarness(testEngineConfig())
	h.press(LineDit, true)
	h.runUS(h.e.cfg.DitUS+1000, 100) // release during the gap, before Idle can re-elect
	h.press(LineDit, false)
	h.runUS(h.e.cfg.GapUS+1000, 100)

	require.Len(t, h.started, 1)
	assert.Equal(t, Dit, h.started[0])
	assert.Equal(t, StateIdle, h.e.State())
}

func Test_Engine_Squeeze_Alternates(t *testing.T) {
	h := newEngineHarness(testEngineConfig())
	h.press(LineDit, true)
	h.press(LineDah, true)

	// Run long enough to generate several elements.
	h.runUS(6*(h.e.cfg.DitUS+h.e.cfg.DahUS+2*h.e.cfg.GapUS), 50)

	h.press(LineDit, false)
	h.press(LineDah, false)
	h.runUS(h.e.cfg.GapUS+1000, 50)

	require.GreaterOrEqual(t, len(h.started), 4)
	for i := 1; i < len(h.started); i++ {
		assert.NotEqual(t, h.started[i-1], h.started[i], "iambic squeeze must alternate dit/dah")
	}
}

// Boundary test: a degenerate memory window (open_pct == close_pct) must
// never arm memory, per spec.md §8.
func Test_Engine_DegenerateMemoryWindow_NeverArms(t *testing.T) {
	cfg := testEngineConfig()
	cfg.IambicMode = ModeA // keep the Mode B squeeze bonus out of this memory-only check
	cfg.MemWindowOpenPct = 50
	cfg.MemWindowClosePct = 50
	cfg.recomputeDurations()

	h := newEngineHarness(cfg)
	h.press(LineDit, true)
	h.runUS(h.e.cfg.DitUS/2, 10) // hold right at the 50% mark
	h.press(LineDah, true)       // opposite paddle pressed mid-element
	h.runUS(h.e.cfg.DitUS/2+1000, 10)
	h.press(LineDit, false)
	h.press(LineDah, false) // release before the gap ends so Idle can't re-elect a dah either
	h.runUS(h.e.cfg.GapUS+1000, 10)

	require.Len(t, h.started, 1, "degenerate window must not arm the dah memory flag")
}

// Mode B bonus only fires as a fallback when memory did not already
// supply the trailing opposite element (spec.md §8 scenario 3).
func Test_Engine_ModeB_Bonus_NotDoubledWithMemory(t *testing.T) {
	cfg := testEngineConfig()
	cfg.IambicMode = ModeB
	cfg.MemoryMode = MemoryBoth
	h := newEngineHarness(cfg)

	h.press(LineDit, true)
	h.runUS(h.e.cfg.DitUS/2, 10)
	h.press(LineDah, true) // squeeze seen + memory window open
	h.runUS(h.e.cfg.DitUS/2+10, 10)
	// both paddles released before gap ends
	h.press(LineDit, false)
	h.press(LineDah, false)
	h.runUS(h.e.cfg.GapUS+h.e.cfg.DahUS+h.e.cfg.GapUS+1000, 10)

	// Expect exactly one dah queued from memory, not a second from the
	// Mode B bonus.
	dahCount := 0
	for _, e := range h.started {
		if e == Dah {
			dahCount++
		}
	}
	assert.Equal(t, 1, dahCount)
}

// StateLatch distinguishes Accukeyer-style state-latch memory arming
// (arms on any hold observed during the window) from Curtis-A-style
// edge-trigger arming (requires the press to start after the window
// opens), per spec.md §6's (memory_mode, latch, iambic_mode) preset
// triple.
func Test_Engine_StateLatch_ArmsOnHoldAcrossWindow(t *testing.T) {
	cfg := testEngineConfig()
	cfg.StateLatch = true
	cfg.MemWindowOpenPct = 10
	cfg.MemWindowClosePct = 90
	cfg.recomputeDurations()

	h := newEngineHarness(cfg)
	h.press(LineDah, true) // dah already held before the dit element even starts
	h.press(LineDit, true)
	h.runUS(h.e.cfg.DitUS+10, 10)
	h.press(LineDit, false)
	h.press(LineDah, false)
	h.runUS(h.e.cfg.GapUS+h.e.cfg.DahUS+h.e.cfg.GapUS+1000, 10)

	require.GreaterOrEqual(t, len(h.started), 2)
	assert.Equal(t, Dah, h.started[1], "state-latch must arm even when the paddle was already held at window open")
}

func Test_Engine_EdgeTrigger_DoesNotArmOnPreHeldPaddle(t *testing.T) {
	cfg := testEngineConfig()
	cfg.StateLatch = false
	cfg.IambicMode = ModeA // edge-trigger is the Curtis-A family; no Mode B squeeze bonus
	cfg.MemWindowOpenPct = 10
	cfg.MemWindowClosePct = 90
	cfg.recomputeDurations()

	h := newEngineHarness(cfg)
	h.press(LineDah, true) // dah already held before the dit element even starts
	h.press(LineDit, true)
	h.runUS(h.e.cfg.DitUS+10, 10)
	h.press(LineDit, false)
	h.press(LineDah, false) // release before the gap ends so alternation can't re-elect it either
	h.runUS(h.e.cfg.GapUS+1000, 10)

	assert.Len(t, h.started, 1, "edge-trigger memory must not arm from a press already held before the window opened")
}

func Test_Engine_KeyStateChanged_Dedup(t *testing.T) {
	h := newEngineHarness(testEngineConfig())
	h.press(LineDit, true)
	h.runUS(h.e.cfg.DitUS+h.e.cfg.GapUS+1000, 50)
	h.press(LineDit, false)
	h.runUS(1000, 50)

	for i := 1; i < len(h.keyLog); i++ {
		assert.NotEqual(t, h.keyLog[i-1], h.keyLog[i], "key state callback must not fire twice in a row with the same value")
	}
}

func Test_Engine_StraightKey_BypassesFSM(t *testing.T) {
	h := newEngineHarness(testEngineConfig())
	h.press(LineKey, true)
	assert.Equal(t, StateIdle, h.e.State(), "straight key must not drive the iambic FSM state")
	require.NotEmpty(t, h.keyLog)
	assert.True(t, h.keyLog[len(h.keyLog)-1])
}

// Property: element duration is always within the config's derived
// duration, regardless of tick step size, for a single isolated element.
func Test_Engine_ElementDuration_ToleratesTickGranularity(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		stepUS := rapid.Int64Range(10, 500).Draw(rt, "step_us")

		cfg := testEngineConfig()
		h := newEngineHarness(cfg)
		h.press(LineDit, true)

		var startedAt, finishedAt int64
		h.e.cb.OnElementStarted = func(elem Element, tsUS int64) {
			startedAt = tsUS
		}
		h.e.cb.OnElementFinished = func(elem Element, tsUS int64) {
			finishedAt = tsUS
		}

		for h.e.State() != StateIntraGap {
			h.clock.Advance(stepUS)
			h.e.Tick(h.clock.NowUS())
		}

		duration := finishedAt - startedAt
		assert.GreaterOrEqual(rt, duration, cfg.DitUS)
		assert.Less(rt, duration, cfg.DitUS+stepUS)
	})
}

func Test_Engine_ApplyConfig_MidElement_DoesNotAffectInFlightElement(t *testing.T) {
	h := newEngineHarness(testEngineConfig())
	h.press(LineDit, true)
	h.runUS(h.e.cfg.DitUS/2, 10)

	newCfg := testEngineConfig()
	newCfg.SpeedWPM = 5 // much slower, would mean a much longer dit
	newCfg.recomputeDurations()
	h.e.ApplyConfig(newCfg)

	// The in-flight element should still finish close to the original
	// (faster) duration, not the newly applied (slower) one.
	h.runUS(testEngineConfig().DitUS, 10)
	require.Len(t, h.finished, 1)
}
