package keyer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_AudioPump_Start_UnmutesCodecOnce(t *testing.T) {
	codec := NewFakeCodec()
	require.NoError(t, codec.Initialize(48000, 16, 70))
	tone := NewToneGenerator(48000)
	tone.Configure(600, 70, 8, 8)

	pump := NewAudioPump(codec, tone, nil)
	require.NoError(t, pump.Start())
	defer pump.Stop()

	require.Eventually(t, func() bool {
		return len(codec.Writes()) > 0
	}, time.Second, time.Millisecond)
}

func Test_AudioPump_CodecInvalidState_BacksOffWithoutRetryCount(t *testing.T) {
	codec := NewFakeCodec()
	require.NoError(t, codec.Initialize(48000, 16, 70))
	codec.SetFailInvalidState(true)
	tone := NewToneGenerator(48000)
	tone.Configure(600, 70, 8, 8)

	pump := NewAudioPump(codec, tone, nil)
	require.NoError(t, pump.Start())

	time.Sleep(30 * time.Millisecond)
	pump.Stop()

	assert.Equal(t, uint64(0), pump.CodecRetryCount(), "invalid-state errors back off without incrementing the retry counter")
}

func Test_AudioPump_TransientCodecError_IncrementsRetryCount(t *testing.T) {
	codec := NewFakeCodec()
	require.NoError(t, codec.Initialize(48000, 16, 70))
	require.NoError(t, codec.SetMute(false))
	codec.FailNextWrites(3)
	tone := NewToneGenerator(48000)
	tone.Configure(600, 70, 8, 8)

	pump := NewAudioPump(codec, tone, nil)
	require.NoError(t, pump.Start())

	require.Eventually(t, func() bool {
		return pump.CodecRetryCount() >= 3
	}, time.Second, time.Millisecond)
	pump.Stop()
}
