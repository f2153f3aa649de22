package audio

/*------------------------------------------------------------------
 *
 * Purpose:	keyer.Codec backend for the Linux redeployment target,
 *		wrapping github.com/gordonklaus/portaudio in place of
 *		the source firmware's I2S codec driver. See
 *		SPEC_FULL.md §4.9.
 *
 * Description:	Mute is emulated: portaudio streams have no hardware
 *		mute, so SetMute(true) gates Write to emit zeroed
 *		frames instead of forwarding them, matching spec.md
 *		§4.6's "start output muted" / SetMute contract for the
 *		emergency-cutoff case, while the steady unmuted state
 *		still gets its silence from the tone envelope as the
 *		spec intends.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/iu3qez/IU3QEZ-Keyer-sub000/keyer"
)

// PortAudioCodec implements keyer.Codec against a portaudio output
// stream opened for interleaved stereo int16 frames.
type PortAudioCodec struct {
	deviceIndex int // -1 selects the default output device

	mu     sync.Mutex
	stream *portaudio.Stream
	buf    []int16
	muted  bool
	volume float64
}

// NewPortAudioCodec constructs a codec bound to the given output
// device index, or the host default when deviceIndex < 0.
func NewPortAudioCodec(deviceIndex int) *PortAudioCodec {
	return &PortAudioCodec{deviceIndex: deviceIndex, muted: true, volume: 1.0}
}

func (c *PortAudioCodec) Initialize(sampleRateHz int, bitDepth int, initialVolumePct int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		return keyer.NewDegradedInitError("portaudio_codec", fmt.Errorf("initializing portaudio: %w", err))
	}

	dev, err := c.outputDevice()
	if err != nil {
		return keyer.NewDegradedInitError("portaudio_codec", err)
	}

	params := portaudio.HighLatencyParameters(nil, dev)
	params.Output.Channels = 2
	params.SampleRate = float64(sampleRateHz)
	params.FramesPerBuffer = keyer.FramesPerChunk

	buf := make([]int16, keyer.FramesPerChunk*2)

	// A buffer argument (rather than a callback func) selects portaudio's
	// blocking-stream mode: stream.Write() sends whatever is currently in buf.
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return keyer.NewDegradedInitError("portaudio_codec", fmt.Errorf("opening stream: %w", err))
	}
	if err := stream.Start(); err != nil {
		return keyer.NewDegradedInitError("portaudio_codec", fmt.Errorf("starting stream: %w", err))
	}

	c.stream = stream
	c.buf = buf
	c.muted = true // start muted, per spec.md §4.6
	c.volume = clamp01(float64(initialVolumePct) / 100.0)
	return nil
}

func (c *PortAudioCodec) outputDevice() (*portaudio.DeviceInfo, error) {
	if c.deviceIndex < 0 {
		return portaudio.DefaultOutputDevice()
	}
	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	if c.deviceIndex >= len(devices) {
		return nil, fmt.Errorf("device index %d out of range (%d devices)", c.deviceIndex, len(devices))
	}
	return devices[c.deviceIndex], nil
}

func (c *PortAudioCodec) SetMute(mute bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = mute
	return nil
}

func (c *PortAudioCodec) SetVolume(pct int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.volume = clamp01(float64(pct) / 100.0)
	return nil
}

func (c *PortAudioCodec) Write(samples []int16) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stream == nil {
		return keyer.ErrCodecInvalidState
	}
	if len(samples) != len(c.buf) {
		return fmt.Errorf("portaudio write: expected %d samples, got %d", len(c.buf), len(samples))
	}

	if c.muted {
		for i := range c.buf {
			c.buf[i] = 0
		}
	} else {
		for i, s := range samples {
			c.buf[i] = int16(float64(s) * c.volume)
		}
	}

	if err := c.stream.Write(); err != nil {
		return fmt.Errorf("portaudio write: %w", err)
	}
	return nil
}

func (c *PortAudioCodec) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stream == nil {
		return nil
	}
	err := c.stream.Close()
	c.stream = nil
	portaudio.Terminate()
	return err
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
