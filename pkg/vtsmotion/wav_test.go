package vtsmotion

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildWAV assembles a minimal RIFF/WAVE buffer around the raw frames.
func buildWAV(format, channels, bitsPer uint16, sampleRate uint32, pcm []byte) []byte {
	var buf bytes.Buffer
	w := func(v interface{}) { binary.Write(&buf, binary.LittleEndian, v) }

	buf.WriteString("RIFF")
	w(uint32(4 + 24 + 8 + len(pcm)))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	w(uint32(16))
	w(format)
	w(channels)
	w(sampleRate)
	w(sampleRate * uint32(channels) * uint32(bitsPer/8)) // byte rate
	w(channels * bitsPer / 8)                            // block align
	w(bitsPer)

	buf.WriteString("data")
	w(uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

func pcm16Bytes(samples []int16) []byte {
	var buf bytes.Buffer
	binary.Write(&buf, binary.LittleEndian, samples)
	return buf.Bytes()
}

func TestDecodeWAVMono16(t *testing.T) {
	raw := []int16{0, 16384, -16384, 32767, -32768}
	data := buildWAV(wavFormatPCM, 1, 16, 16000, pcm16Bytes(raw))

	samples, rate, err := DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, 16000, rate)
	require.Len(t, samples, len(raw))

	assert.InDelta(t, 0.0, samples[0], 1e-9)
	assert.InDelta(t, 0.5, samples[1], 1e-4)
	assert.InDelta(t, -0.5, samples[2], 1e-4)
	assert.InDelta(t, 1.0, samples[3], 1e-4)
	assert.InDelta(t, -1.0, samples[4], 1e-9)
}

func TestDecodeWAVStereoDownmix(t *testing.T) {
	// Left and right cancel in frame 0 and average in frame 1.
	raw := []int16{16384, -16384, 16384, 16384}
	data := buildWAV(wavFormatPCM, 2, 16, 44100, pcm16Bytes(raw))

	samples, rate, err := DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, 44100, rate)
	require.Len(t, samples, 2)
	assert.InDelta(t, 0.0, samples[0], 1e-4)
	assert.InDelta(t, 0.5, samples[1], 1e-4)
}

func TestDecodeWAVUnsigned8Bit(t *testing.T) {
	data := buildWAV(wavFormatPCM, 1, 8, 8000, []byte{128, 255, 0})

	samples, _, err := DecodeWAV(data)
	require.NoError(t, err)
	require.Len(t, samples, 3)
	assert.InDelta(t, 0.0, samples[0], 1e-9)
	assert.InDelta(t, 1.0, samples[1], 0.01)
	assert.InDelta(t, -1.0, samples[2], 1e-9)
}

func TestDecodeWAVFloat32(t *testing.T) {
	var pcm bytes.Buffer
	for _, v := range []float32{0, 0.25, -0.75} {
		binary.Write(&pcm, binary.LittleEndian, math.Float32bits(v))
	}
	data := buildWAV(wavFormatFloat, 1, 32, 48000, pcm.Bytes())

	samples, rate, err := DecodeWAV(data)
	require.NoError(t, err)
	assert.Equal(t, 48000, rate)
	require.Len(t, samples, 3)
	assert.InDelta(t, 0.25, samples[1], 1e-6)
	assert.InDelta(t, -0.75, samples[2], 1e-6)
}

func TestDecodeWAVRejectsGarbage(t *testing.T) {
	cases := map[string][]byte{
		"empty":        {},
		"too short":    []byte("RIFF"),
		"wrong magic":  []byte("OGGS\x00\x00\x00\x00WAVEdataxxxx"),
		"not wave":     []byte("RIFF\x04\x00\x00\x00JUNK"),
		"missing data": buildWAV(wavFormatPCM, 1, 16, 16000, nil)[:20],
	}

	for name, data := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := DecodeWAV(data)
			require.Error(t, err)
			mErr, ok := err.(*MotionError)
			require.True(t, ok)
			assert.Equal(t, ErrCodeAudioDecode, mErr.Code)
		})
	}
}

func TestDecodeWAVUnsupportedFormat(t *testing.T) {
	data := buildWAV(7, 1, 16, 16000, pcm16Bytes([]int16{0}))

	_, _, err := DecodeWAV(data)
	require.Error(t, err)
	mErr, ok := err.(*MotionError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeAudioDecode, mErr.Code)
}
