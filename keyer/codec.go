package keyer

/*------------------------------------------------------------------
 *
 * Purpose:	Codec abstraction the audio pump drives. Implementations:
 *		a real I2S/portaudio-backed codec on target (keyer/audio),
 *		and an in-memory fake for tests, defined here. See
 *		spec.md §4.6/§9.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"sync"
)

// ErrCodecInvalidState is returned by Write when the codec cannot take
// samples yet: FakeCodec before its first unmute, PortAudioCodec before
// Initialize or after Shutdown (spec.md §4.6). Muting an already started
// codec does not produce it.
var ErrCodecInvalidState = errors.New("codec: invalid state")

// FramesPerChunk gives ~5.3ms latency at 48kHz (or ~16ms at 16kHz),
// per spec.md §3.
const FramesPerChunk = 256

// Codec is the narrow interface the audio pump depends on. The real
// backend and the fake below both satisfy it; the pump never knows
// which one it has.
type Codec interface {
	Initialize(sampleRateHz int, bitDepth int, initialVolumePct int) error
	SetMute(mute bool) error
	SetVolume(pct int) error
	// Write blocks until the DMA/stream accepts samples, or returns
	// ErrCodecInvalidState / a transient error.
	Write(samples []int16) error
	Shutdown() error
}

// FakeCodec is an in-memory Codec capturing Write buffers for tests,
// per spec.md §9's design note.
type FakeCodec struct {
	mu sync.Mutex

	initialized bool
	started     bool
	muted       bool
	volumePct   int

	writes      [][]int16
	failNextN   int
	failInvalid bool
}

func NewFakeCodec() *FakeCodec {
	return &FakeCodec{muted: true}
}

func (c *FakeCodec) Initialize(sampleRateHz, bitDepth, initialVolumePct int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initialized = true
	c.muted = true // codec starts muted, per spec.md §4.6
	c.volumePct = initialVolumePct
	return nil
}

func (c *FakeCodec) SetMute(mute bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = mute
	if !mute {
		c.started = true
	}
	return nil
}

func (c *FakeCodec) SetVolume(pct int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volumePct = pct
	return nil
}

func (c *FakeCodec) Write(samples []int16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failInvalid {
		return ErrCodecInvalidState
	}
	if c.failNextN > 0 {
		c.failNextN--
		return errors.New("fake transient codec write failure")
	}
	if !c.started {
		return ErrCodecInvalidState
	}

	cp := make([]int16, len(samples))
	copy(cp, samples)
	c.writes = append(c.writes, cp)
	return nil
}

func (c *FakeCodec) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.started = false
	c.initialized = false
	return nil
}

// Writes returns a copy of every buffer written so far, for assertions.
func (c *FakeCodec) Writes() [][]int16 {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]int16, len(c.writes))
	copy(out, c.writes)
	return out
}

// SetFailInvalidState makes every subsequent Write return
// ErrCodecInvalidState, simulating a muted/not-yet-started codec.
func (c *FakeCodec) SetFailInvalidState(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failInvalid = fail
}

// FailNextWrites makes the next n Write calls return a transient error.
func (c *FakeCodec) FailNextWrites(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failNextN = n
}
