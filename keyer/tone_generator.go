package keyer

/*------------------------------------------------------------------
 *
 * Purpose:	Click-free sinusoid synthesis with fade envelopes for
 *		the sidetone. See spec.md §4.5.
 *
 * Description:	A 1024-entry sine LUT; phase is a fractional LUT index
 *		advanced by phase_step = freq * 1024 / sample_rate per
 *		frame, linearly interpolated. Shared state is protected
 *		by a mutex; Fill snapshots state, synthesises without
 *		holding the lock, then writes back under the lock, so
 *		the audio pump never blocks controller calls (§4.5/§5).
 *
 *---------------------------------------------------------------*/

import (
	"math"
	"sync"
)

const toneLUTSize = 1024

var toneSineLUT [toneLUTSize + 1]float64 // +1 guard entry for interpolation wraparound

func init() {
	for i := 0; i < toneLUTSize; i++ {
		toneSineLUT[i] = math.Sin(2 * math.Pi * float64(i) / toneLUTSize)
	}
	toneSineLUT[toneLUTSize] = toneSineLUT[0]
}

// ToneState identifies the generator's envelope state.
type ToneState int

const (
	ToneSilent ToneState = iota
	ToneFadeIn
	TonePlaying
	ToneFadeOut
)

// ToneGenerator is a concrete value, not a polymorphic interface, per
// spec.md §9's design note: it is synthesised inline by the audio pump,
// never swapped out.
type ToneGenerator struct {
	mu sync.Mutex

	sampleRateHz int

	state       ToneState
	pendingStop bool

	phase     float64 // fractional LUT index, [0, toneLUTSize)
	phaseStep float64 // advance per sample

	amplitude float64 // derived from volume %, scale of [0, 32767]

	fadeInSamples  int
	fadeOutSamples int
	fadePosition   int
}

// NewToneGenerator constructs a generator at rest (Silent).
func NewToneGenerator(sampleRateHz int) *ToneGenerator {
	return &ToneGenerator{sampleRateHz: sampleRateHz, state: ToneSilent}
}

// Configure sets frequency, volume and fade durations. Safe to call at
// any time; takes effect on the next Fill.
func (g *ToneGenerator) Configure(freqHz int, volumePct int, fadeInMS, fadeOutMS int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.phaseStep = float64(freqHz) * toneLUTSize / float64(g.sampleRateHz)
	g.amplitude = 32767.0 * clampFloat(float64(volumePct)/100.0, 0, 1.0)
	g.fadeInSamples = msToSamples(fadeInMS, g.sampleRateHz)
	g.fadeOutSamples = msToSamples(fadeOutMS, g.sampleRateHz)
}

func msToSamples(ms int, sampleRateHz int) int {
	n := (ms * sampleRateHz) / 1000
	if n < 1 {
		n = 1
	}
	return n
}

// Start begins (or restarts) the tone, per the state-machine rules of
// spec.md §4.5: from Silent, reset phase and fade into Playing; during
// FadeOut, mirror the envelope gain into an equivalent FadeIn position
// so the envelope reverses continuously with no click; during FadeIn,
// restart from zero (a deliberate quick retrigger); during Playing, it
// is a no-op, avoiding a phase-reset click.
func (g *ToneGenerator) Start() {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case ToneSilent:
		g.phase = 0
		g.pendingStop = false
		if g.fadeInSamples <= 1 {
			g.state = TonePlaying
			g.fadePosition = 0
		} else {
			g.state = ToneFadeIn
			g.fadePosition = 0
		}
	case ToneFadeOut:
		gain := g.envelopeGain()
		g.state = ToneFadeIn
		g.pendingStop = false
		g.fadePosition = mirrorPosition(gain, g.fadeInSamples)
	case ToneFadeIn:
		g.pendingStop = false
		g.fadePosition = 0
	case TonePlaying:
		g.pendingStop = false
		// no-op: already audible at full gain
	}
}

// Stop requests a cooperative, click-free stop. The generator samples
// pending_stop inside Fill and transitions to FadeOut at the next
// sample, so at most fade_out_ms of audio follows the request
// (spec.md §5 "Cancellation and timeouts").
func (g *ToneGenerator) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.state {
	case TonePlaying:
		g.pendingStop = true
	case ToneFadeIn:
		// Handled here rather than deferred to Fill: mirror the current
		// gain into the FadeOut ramp (where gain falls as position grows)
		// so the envelope reverses without a click.
		gain := g.envelopeGain()
		g.state = ToneFadeOut
		g.fadePosition = mirrorPosition(1-gain, g.fadeOutSamples)
	}
}

// envelopeGain returns the current gain in [0,1] given state and
// fade_position; must be called with mu held.
func (g *ToneGenerator) envelopeGain() float64 {
	switch g.state {
	case ToneSilent:
		return 0
	case TonePlaying:
		return 1
	case ToneFadeIn:
		if g.fadeInSamples <= 0 {
			return 1
		}
		return clampFloat(float64(g.fadePosition)/float64(g.fadeInSamples), 0, 1)
	case ToneFadeOut:
		if g.fadeOutSamples <= 0 {
			return 0
		}
		return clampFloat(1.0-float64(g.fadePosition)/float64(g.fadeOutSamples), 0, 1)
	}
	return 0
}

// mirrorPosition maps a gain value onto an equivalent position in a
// fade ramp of the given length, so reversing direction mid-fade does
// not discontinue the audible envelope.
func mirrorPosition(gain float64, fadeSamples int) int {
	if fadeSamples <= 0 {
		return 0
	}
	pos := int(gain*float64(fadeSamples) + 0.5)
	return clampInt(pos, 0, fadeSamples)
}

// Fill writes exactly 2*frames i16 samples (interleaved stereo, left ==
// right) into buffer. Never panics; safe to call with frames == 0 or
// while Silent (produces zeros while keeping phase alive to avoid
// startup transients), per spec.md §4.5.
func (g *ToneGenerator) Fill(buffer []int16, frames int) {
	if frames <= 0 {
		return
	}
	need := frames * 2
	if len(buffer) < need {
		frames = len(buffer) / 2
	}

	g.mu.Lock()
	state := g.state
	pendingStop := g.pendingStop
	phase := g.phase
	phaseStep := g.phaseStep
	amplitude := g.amplitude
	fadeInSamples := g.fadeInSamples
	fadeOutSamples := g.fadeOutSamples
	fadePos := g.fadePosition
	g.mu.Unlock()

	for i := 0; i < frames; i++ {
		if state == TonePlaying && pendingStop {
			state = ToneFadeOut
			fadePos = 0
		}

		var gain float64
		switch state {
		case ToneSilent:
			gain = 0
		case TonePlaying:
			gain = 1
		case ToneFadeIn:
			if fadeInSamples <= 0 {
				gain = 1
			} else {
				gain = clampFloat(float64(fadePos)/float64(fadeInSamples), 0, 1)
			}
			fadePos++
			if fadePos >= fadeInSamples {
				state = TonePlaying
				fadePos = 0
			}
		case ToneFadeOut:
			if fadeOutSamples <= 0 {
				gain = 0
			} else {
				gain = clampFloat(1.0-float64(fadePos)/float64(fadeOutSamples), 0, 1)
			}
			fadePos++
			if fadePos >= fadeOutSamples {
				state = ToneSilent
				fadePos = 0
				pendingStop = false
			}
		}

		var sample int16
		if gain > 0 {
			sample = lutSample(phase, amplitude*gain)
		}
		buffer[2*i] = sample
		buffer[2*i+1] = sample

		// Phase advances even while Silent, per spec.md §4.5, so that a
		// subsequent Start never reintroduces a startup transient.
		phase += phaseStep
		for phase >= toneLUTSize {
			phase -= toneLUTSize
		}
		for phase < 0 {
			phase += toneLUTSize
		}
	}

	g.mu.Lock()
	g.state = state
	g.pendingStop = pendingStop
	g.phase = phase
	g.fadePosition = fadePos
	g.mu.Unlock()
}

// lutSample linearly interpolates between adjacent LUT entries and
// saturates to the i16 range.
func lutSample(phase float64, amplitude float64) int16 {
	idx := int(phase)
	frac := phase - float64(idx)
	a := toneSineLUT[idx]
	b := toneSineLUT[idx+1]
	v := (a + (b-a)*frac) * amplitude
	return saturateI16(v)
}

func saturateI16(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}

// State returns the generator's current envelope state, for tests.
func (g *ToneGenerator) State() ToneState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}
