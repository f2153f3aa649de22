package keyer

/*------------------------------------------------------------------
 *
 * Purpose:	Load a DeviceConfig from a YAML file. Persistence of
 *		edits back to storage is explicitly out of scope
 *		(spec.md §1 Non-goals); this is a one-shot read at
 *		startup. The daemon does not reload it on SIGHUP.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type yamlDeviceConfig struct {
	PaddlePins struct {
		DitGPIO   int  `yaml:"dit_gpio"`
		DahGPIO   int  `yaml:"dah_gpio"`
		KeyGPIO   int  `yaml:"key_gpio"`
		ActiveLow bool `yaml:"active_low"`
		PullUp    bool `yaml:"pull_up"`
		PullDown  bool `yaml:"pull_down"`
		Swap      bool `yaml:"swap"`
		PollMode  bool `yaml:"poll_mode"`
	} `yaml:"paddle_pins"`

	OutputPins struct {
		TRXGPIO       int  `yaml:"trx_gpio"`
		TRXActiveHigh bool `yaml:"trx_active_high"`
	} `yaml:"output_pins"`

	Keying struct {
		Preset         string `yaml:"preset"`
		SpeedWPM       int    `yaml:"speed_wpm"`
		MemoryOpenPct  int    `yaml:"memory_open_pct"`
		MemoryClosePct int    `yaml:"memory_close_pct"`
		ManualDot      bool   `yaml:"manual_dot_enabled"`
		ManualDah      bool   `yaml:"manual_dah_enabled"`
		ManualLatch    bool   `yaml:"manual_latch"`
		TimingL        int    `yaml:"timing_l"`
		TimingS        int    `yaml:"timing_s"`
		TimingP        int    `yaml:"timing_p"`
		PTTTailMS      int    `yaml:"ptt_tail_ms"`
	} `yaml:"keying"`

	Audio struct {
		SidetoneFrequencyHz int  `yaml:"sidetone_frequency_hz"`
		SidetoneVolumePct   int  `yaml:"sidetone_volume_percent"`
		FadeInMS            int  `yaml:"fade_in_ms"`
		FadeOutMS           int  `yaml:"fade_out_ms"`
		SidetoneEnabled     bool `yaml:"sidetone_enabled"`
		SampleRateHz        int  `yaml:"sample_rate_hz"`
	} `yaml:"audio"`
}

var presetNames = map[string]Preset{
	"V0": PresetV0, "V1": PresetV1, "V2": PresetV2, "V3": PresetV3, "V4": PresetV4,
	"V5": PresetV5, "V6": PresetV6, "V7": PresetV7, "V8": PresetV8, "V9": PresetV9,
	"Manual": PresetManual,
}

// LoadDeviceConfig reads and parses a YAML DeviceConfig on top of
// DefaultDeviceConfig(). A field left at its zero value counts as omitted
// and keeps its default, so sidetone_enabled: false cannot turn the
// default sidetone off. The paddle_pins group replaces the defaults as a
// whole once dit_gpio or dah_gpio is set, output_pins once trx_gpio is
// set, and memory_open_pct is read only together with a non-zero
// memory_close_pct; the manual memory flags are always taken from the file.
func LoadDeviceConfig(path string) (DeviceConfig, error) {
	dc := DefaultDeviceConfig()

	raw, err := os.ReadFile(path)
	if err != nil {
		return dc, fmt.Errorf("keyer: reading config %q: %w", path, err)
	}

	var y yamlDeviceConfig
	if err := yaml.Unmarshal(raw, &y); err != nil {
		return dc, fmt.Errorf("keyer: parsing config %q: %w", path, err)
	}

	if y.PaddlePins.DitGPIO != 0 || y.PaddlePins.DahGPIO != 0 {
		dc.PaddlePins = PaddlePinConfig{
			DitGPIO: y.PaddlePins.DitGPIO, DahGPIO: y.PaddlePins.DahGPIO, KeyGPIO: y.PaddlePins.KeyGPIO,
			ActiveLow: y.PaddlePins.ActiveLow, PullUp: y.PaddlePins.PullUp, PullDown: y.PaddlePins.PullDown,
			Swap: y.PaddlePins.Swap, PollMode: y.PaddlePins.PollMode,
		}
	}
	if y.OutputPins.TRXGPIO != 0 {
		dc.OutputPins = OutputPinConfig{TRXGPIO: y.OutputPins.TRXGPIO, TRXActiveHigh: y.OutputPins.TRXActiveHigh}
	}

	if p, ok := presetNames[y.Keying.Preset]; ok {
		dc.Keying.Preset = p
	}
	if y.Keying.SpeedWPM != 0 {
		dc.Keying.SpeedWPM = y.Keying.SpeedWPM
	}
	if y.Keying.MemoryClosePct != 0 {
		dc.Keying.MemoryOpenPct = y.Keying.MemoryOpenPct
		dc.Keying.MemoryClosePct = y.Keying.MemoryClosePct
	}
	dc.Keying.ManualMemory = ManualMemoryConfig{DotEnabled: y.Keying.ManualDot, DahEnabled: y.Keying.ManualDah, Latch: y.Keying.ManualLatch}
	if y.Keying.TimingL != 0 {
		dc.Keying.TimingL = y.Keying.TimingL
	}
	if y.Keying.TimingS != 0 {
		dc.Keying.TimingS = y.Keying.TimingS
	}
	if y.Keying.TimingP != 0 {
		dc.Keying.TimingP = y.Keying.TimingP
	}
	if y.Keying.PTTTailMS != 0 {
		dc.Keying.PTTTailMS = y.Keying.PTTTailMS
	}

	if y.Audio.SidetoneFrequencyHz != 0 {
		dc.Audio.SidetoneFrequencyHz = y.Audio.SidetoneFrequencyHz
	}
	if y.Audio.SidetoneVolumePct != 0 {
		dc.Audio.SidetoneVolumePct = y.Audio.SidetoneVolumePct
	}
	if y.Audio.FadeInMS != 0 {
		dc.Audio.FadeInMS = y.Audio.FadeInMS
	}
	if y.Audio.FadeOutMS != 0 {
		dc.Audio.FadeOutMS = y.Audio.FadeOutMS
	}
	if y.Audio.SampleRateHz != 0 {
		dc.Audio.SampleRateHz = y.Audio.SampleRateHz
	}
	dc.Audio.SidetoneEnabled = y.Audio.SidetoneEnabled || dc.Audio.SidetoneEnabled

	return dc, nil
}
