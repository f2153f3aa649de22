package keyer

/*------------------------------------------------------------------
 *
 * Purpose:	EngineConfig / DeviceConfig and preset tables.
 *
 * Description:	Out-of-range values are clamped, never rejected, so the
 *		engine can never enter an undefined state (spec.md §7).
 *
 *---------------------------------------------------------------*/

import (
	"fmt"

	"github.com/charmbracelet/log"
)

// EngineConfig is the engine's read-only parameter set at initialisation.
type EngineConfig struct {
	SpeedWPM    int
	IambicMode  IambicMode
	MemoryMode  MemoryMode
	SqueezeMode SqueezeMode

	// StateLatch selects Accukeyer-style state-latch memory arming (true:
	// the opposite paddle arms memory whenever held anywhere inside the
	// window) over Curtis-A-style edge-trigger arming (false: only a
	// press that starts after the window opens arms memory; a paddle
	// already held before the window opened does not).
	StateLatch bool

	MemWindowOpenPct  int
	MemWindowClosePct int

	TimingL int // dash ratio, 10..90, tenths
	TimingS int // gap ratio, 0..99, fiftieths
	TimingP int // dit duration percent, 10..99

	// Derived, recomputed whenever the above change.
	DitUS int64
	DahUS int64
	GapUS int64
}

// clampConfig clamps every field into its documented range and logs a
// diagnostic for anything that had to move. Called at Initialize and at
// every ApplyConfig.
func clampConfig(c EngineConfig, logger *log.Logger) EngineConfig {
	orig := c

	c.SpeedWPM = clampInt(c.SpeedWPM, 5, 60)
	c.MemWindowOpenPct = clampInt(c.MemWindowOpenPct, 0, 100)
	c.MemWindowClosePct = clampInt(c.MemWindowClosePct, 0, 100)
	if c.MemWindowOpenPct > c.MemWindowClosePct {
		c.MemWindowOpenPct = c.MemWindowClosePct
	}
	c.TimingL = clampInt(c.TimingL, 10, 90)
	c.TimingS = clampInt(c.TimingS, 0, 99)
	c.TimingP = clampInt(c.TimingP, 10, 99)

	if logger != nil && orig != c {
		logger.Warn("engine config clamped to valid range",
			"speed_wpm", logDelta(orig.SpeedWPM, c.SpeedWPM),
			"mem_open_pct", logDelta(orig.MemWindowOpenPct, c.MemWindowOpenPct),
			"mem_close_pct", logDelta(orig.MemWindowClosePct, c.MemWindowClosePct),
			"timing_l", logDelta(orig.TimingL, c.TimingL),
			"timing_s", logDelta(orig.TimingS, c.TimingS),
			"timing_p", logDelta(orig.TimingP, c.TimingP),
		)
	}

	c.recomputeDurations()
	return c
}

func logDelta(before, after int) string {
	if before == after {
		return fmt.Sprintf("%d", after)
	}
	return fmt.Sprintf("%d->%d", before, after)
}

// recomputeDurations derives dit_us, dah_us, gap_us from speed and L/S/P.
//
//	dit_us = (1_200_000 / speed_wpm) * (timing_p / 50)
//	dah_us = dit_us * (timing_l / 10)
//	gap_us = dit_us * (timing_s / 50)
func (c *EngineConfig) recomputeDurations() {
	base := 1_200_000.0 / float64(c.SpeedWPM)
	dit := base * (float64(c.TimingP) / 50.0)
	c.DitUS = int64(dit + 0.5)
	c.DahUS = int64(float64(c.DitUS)*(float64(c.TimingL)/10.0) + 0.5)
	c.GapUS = int64(float64(c.DitUS)*(float64(c.TimingS)/50.0) + 0.5)
}

// Preset identifies one of the fixed V0..V9 behaviour triples, or Manual
// for the explicit per-field configuration.
type Preset int

const (
	PresetV0 Preset = iota
	PresetV1
	PresetV2
	PresetV3
	PresetV4
	PresetV5
	PresetV6
	PresetV7
	PresetV8
	PresetV9
	PresetManual
)

// PresetDef is the fixed (memory_mode, latch, iambic_mode) triple a
// preset maps to, per spec.md §6's table. "Latch" selects how the memory
// window arms: true is state-latch (any hold inside the window arms),
// false is edge-trigger (only a press that starts after the window opens
// arms); see EngineConfig.StateLatch.
type PresetDef struct {
	Name       string
	MemoryMode MemoryMode
	Latch      bool // state-latch (Accukeyer) vs edge-trigger (Curtis A) memory arming
	IambicMode IambicMode
}

// presetTable is the V0..V9 baseline, grounded directly on the three
// preset families the original device catalogued (SuperKeyer, Accukeyer,
// Curtis A), each offered in both/dot-only/dash-only memory variants,
// plus a no-memory preset. The distilled spec names only V3, V6 and V9
// explicitly; the remaining slots follow the same family groupings,
// since a dot-only or dash-only variant of a both-memory preset changes
// only MemoryMode, never the family's iambic_mode/state-latch identity.
var presetTable = [10]PresetDef{
	PresetV0: {Name: "V0: SuperKeyer, dot+dash memory", MemoryMode: MemoryBoth, Latch: true, IambicMode: ModeB},
	PresetV1: {Name: "V1: SuperKeyer, dot memory only", MemoryMode: MemoryDotOnly, Latch: true, IambicMode: ModeB},
	PresetV2: {Name: "V2: SuperKeyer, dash memory only", MemoryMode: MemoryDahOnly, Latch: true, IambicMode: ModeB},
	PresetV3: {Name: "V3: Accukeyer, both memory, Mode B", MemoryMode: MemoryBoth, Latch: true, IambicMode: ModeB},
	PresetV4: {Name: "V4: Accukeyer, dot memory only", MemoryMode: MemoryDotOnly, Latch: true, IambicMode: ModeB},
	PresetV5: {Name: "V5: Accukeyer, dash memory only", MemoryMode: MemoryDahOnly, Latch: true, IambicMode: ModeB},
	PresetV6: {Name: "V6: Curtis-A, both memory", MemoryMode: MemoryBoth, Latch: false, IambicMode: ModeA},
	PresetV7: {Name: "V7: Curtis-A, dot memory only", MemoryMode: MemoryDotOnly, Latch: false, IambicMode: ModeA},
	PresetV8: {Name: "V8: Curtis-A, dash memory only", MemoryMode: MemoryDahOnly, Latch: false, IambicMode: ModeA},
	PresetV9: {Name: "V9: no memory, Mode A", MemoryMode: MemoryNone, Latch: true, IambicMode: ModeA},
}

// PaddlePinConfig mirrors spec.md §6's paddle_pins group.
type PaddlePinConfig struct {
	DitGPIO   int
	DahGPIO   int
	KeyGPIO   int
	ActiveLow bool
	PullUp    bool
	PullDown  bool
	Swap      bool
	PollMode  bool // true selects polling mode over ISR/edge-event mode
}

// OutputPinConfig mirrors spec.md §6's output_pins group.
type OutputPinConfig struct {
	TRXGPIO       int
	TRXActiveHigh bool
}

// ManualMemoryConfig holds the explicit per-flag fields used only when
// Preset == PresetManual.
type ManualMemoryConfig struct {
	DotEnabled bool
	DahEnabled bool
	Latch      bool // state-latch (Accukeyer) vs edge-trigger (Curtis A) memory arming
}

// PresetOverride is a per-preset L/S/P override, layered atop the
// preset's baseline at config-build time per spec.md §9's open question:
// preset baselines apply unless the user has edited overrides for that
// specific preset.
type PresetOverride struct {
	TimingL *int
	TimingS *int
	TimingP *int
}

// KeyingConfig mirrors spec.md §6's keying group.
type KeyingConfig struct {
	Preset          Preset
	SpeedWPM        int
	MemoryOpenPct   int
	MemoryClosePct  int
	ManualMemory    ManualMemoryConfig
	TimingL         int
	TimingS         int
	TimingP         int
	PresetOverrides map[Preset]PresetOverride
	PTTTailMS       int
}

// AudioConfig mirrors spec.md §6's audio group.
type AudioConfig struct {
	SidetoneFrequencyHz int
	SidetoneVolumePct   int
	FadeInMS            int
	FadeOutMS           int
	SidetoneEnabled     bool
	SampleRateHz        int
}

// DeviceConfig is the full aggregate passed at Initialize and ApplyConfig.
type DeviceConfig struct {
	PaddlePins PaddlePinConfig
	OutputPins OutputPinConfig
	Keying     KeyingConfig
	Audio      AudioConfig
}

// DefaultDeviceConfig returns a reasonable starting configuration: V6
// (Curtis-A, both memory), 20 WPM, standard 3:1:1 timing, 600 Hz sidetone
// at 48 kHz with 8 ms fades.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		PaddlePins: PaddlePinConfig{DitGPIO: 17, DahGPIO: 27, KeyGPIO: 22, ActiveLow: true, PullUp: true},
		OutputPins: OutputPinConfig{TRXGPIO: 23, TRXActiveHigh: true},
		Keying: KeyingConfig{
			Preset:         PresetV6,
			SpeedWPM:       20,
			MemoryOpenPct:  0,
			MemoryClosePct: 100,
			TimingL:        30,
			TimingS:        50,
			TimingP:        50,
			PTTTailMS:      50,
		},
		Audio: AudioConfig{
			SidetoneFrequencyHz: 600,
			SidetoneVolumePct:   70,
			FadeInMS:            8,
			FadeOutMS:           8,
			SidetoneEnabled:     true,
			SampleRateHz:        48000,
		},
	}
}

// BuildEngineConfig resolves DeviceConfig.Keying into an EngineConfig,
// applying preset baseline + manual-field layering per spec.md §9:
// PresetManual always uses the top-level L/S/P fields; any other preset
// uses its baseline L/S/P (the standard 30/50/50) unless the caller has
// registered a PresetOverride for that specific preset slot.
func BuildEngineConfig(dc KeyingConfig) EngineConfig {
	var (
		memMode    MemoryMode
		iambicMode IambicMode
		stateLatch bool
		timingL    = 30
		timingS    = 50
		timingP    = 50
	)

	if dc.Preset == PresetManual {
		memMode = manualMemoryMode(dc.ManualMemory)
		iambicMode = ModeA
		stateLatch = dc.ManualMemory.Latch
		timingL, timingS, timingP = dc.TimingL, dc.TimingS, dc.TimingP
	} else {
		idx := clampInt(int(dc.Preset), 0, len(presetTable)-1)
		def := presetTable[idx]
		memMode = def.MemoryMode
		iambicMode = def.IambicMode
		stateLatch = def.Latch
		if ov, ok := dc.PresetOverrides[dc.Preset]; ok {
			if ov.TimingL != nil {
				timingL = *ov.TimingL
			}
			if ov.TimingS != nil {
				timingS = *ov.TimingS
			}
			if ov.TimingP != nil {
				timingP = *ov.TimingP
			}
		}
	}

	ec := EngineConfig{
		SpeedWPM:          dc.SpeedWPM,
		IambicMode:        iambicMode,
		MemoryMode:        memMode,
		SqueezeMode:       SqueezeSnapshot,
		StateLatch:        stateLatch,
		MemWindowOpenPct:  dc.MemoryOpenPct,
		MemWindowClosePct: dc.MemoryClosePct,
		TimingL:           timingL,
		TimingS:           timingS,
		TimingP:           timingP,
	}
	return clampConfig(ec, nil)
}

func manualMemoryMode(m ManualMemoryConfig) MemoryMode {
	switch {
	case m.DotEnabled && m.DahEnabled:
		return MemoryBoth
	case m.DotEnabled:
		return MemoryDotOnly
	case m.DahEnabled:
		return MemoryDahOnly
	default:
		return MemoryNone
	}
}
