package keyer

/*------------------------------------------------------------------
 *
 * Purpose:	Background task that synthesises audio chunks and writes
 *		them to the codec, double-buffered. See spec.md §4.6.
 *
 * Description:	Once Start has ever been called, audio-started
 *		latches true and the pump keeps writing (silent) frames
 *		even when logically stopped, so fade-out completes in
 *		real audio with no click on the next Start. Codec mute
 *		is released on the first Start and left unmuted;
 *		silence comes from the tone envelope, not hardware mute.
 *
 *---------------------------------------------------------------*/

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// AudioSource selectable at runtime: local tone generation (TX/sidetone)
// or a remote audio stream player (RX). Switching resets only the
// stream buffer; the tone generator is untouched (spec.md §4.6).
type AudioSource int

const (
	AudioSourceLocalTone AudioSource = iota
	AudioSourceRemoteStream
)

// RemoteAudioPlayer supplies frames when AudioSourceRemoteStream is
// selected. A narrow interface, deliberately not the CWNet protocol
// itself (out of scope per spec.md §1).
type RemoteAudioPlayer interface {
	Fill(buffer []int16, frames int)
	Reset()
}

// AudioPump drives Codec.Write from a dedicated goroutine (standing in
// for the source firmware's dedicated priority-4 audio task).
type AudioPump struct {
	codec  Codec
	tone   *ToneGenerator
	logger *log.Logger

	source atomic.Int32 // AudioSource

	remote   RemoteAudioPlayer
	remoteMu sync.Mutex

	bufA, bufB [FramesPerChunk * 2]int16
	useA       bool

	audioStarted atomic.Bool
	running      atomic.Bool
	stopCh       chan struct{}
	doneCh       chan struct{}

	codecRetryCount atomic.Uint64
}

// NewAudioPump constructs a pump around the given codec and tone
// generator. The codec must already have had Initialize called.
func NewAudioPump(codec Codec, tone *ToneGenerator, logger *log.Logger) *AudioPump {
	if logger == nil {
		logger = log.Default()
	}
	return &AudioPump{codec: codec, tone: tone, logger: logger.With("component", "audio_pump"), useA: true}
}

// SetRemoteSource installs the RX stream player used when the source is
// switched to AudioSourceRemoteStream.
func (p *AudioPump) SetRemoteSource(r RemoteAudioPlayer) {
	p.remoteMu.Lock()
	defer p.remoteMu.Unlock()
	p.remote = r
}

// SetSource switches the audio source. Switching resets only the stream
// buffer state (via the player's Reset), never the tone generator.
func (p *AudioPump) SetSource(src AudioSource) {
	p.source.Store(int32(src))
	if src == AudioSourceRemoteStream {
		p.remoteMu.Lock()
		r := p.remote
		p.remoteMu.Unlock()
		if r != nil {
			r.Reset()
		}
	}
}

// Start releases codec mute (on first call only) and launches the pump
// goroutine if it is not already running.
func (p *AudioPump) Start() error {
	first := p.audioStarted.CompareAndSwap(false, true)
	if first {
		if err := p.codec.SetMute(false); err != nil {
			return NewDegradedInitError("audio_pump", errors.New("failed to unmute codec: "+err.Error()))
		}
	}
	if p.running.CompareAndSwap(false, true) {
		p.stopCh = make(chan struct{})
		p.doneCh = make(chan struct{})
		go p.run()
	}
	return nil
}

// Stop halts the pump goroutine and waits for it to exit. Idempotent.
func (p *AudioPump) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.stopCh)
	<-p.doneCh
}

func (p *AudioPump) run() {
	defer close(p.doneCh)

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		buf := p.nextBuffer()
		p.fillBuffer(buf)

		err := p.codec.Write(buf[:])
		switch {
		case err == nil:
			p.useA = !p.useA
		case errors.Is(err, ErrCodecInvalidState):
			p.logger.Debug("codec not ready, backing off", "sleep_ms", 10)
			p.sleepOrStop(10 * time.Millisecond)
		default:
			p.codecRetryCount.Add(1)
			p.logger.Warn("codec write failed, retrying", "err", err, "sleep_ms", 5, "retry_count", p.codecRetryCount.Load())
			p.sleepOrStop(5 * time.Millisecond)
		}
	}
}

func (p *AudioPump) sleepOrStop(d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-p.stopCh:
	case <-t.C:
	}
}

func (p *AudioPump) nextBuffer() *[FramesPerChunk * 2]int16 {
	if p.useA {
		return &p.bufA
	}
	return &p.bufB
}

func (p *AudioPump) fillBuffer(buf *[FramesPerChunk * 2]int16) {
	if AudioSource(p.source.Load()) == AudioSourceRemoteStream {
		p.remoteMu.Lock()
		r := p.remote
		p.remoteMu.Unlock()
		if r != nil {
			r.Fill(buf[:], FramesPerChunk)
			return
		}
	}
	p.tone.Fill(buf[:], FramesPerChunk)
}

// CodecRetryCount is monotonic non-decreasing, exposed for diagnostics.
func (p *AudioPump) CodecRetryCount() uint64 { return p.codecRetryCount.Load() }
