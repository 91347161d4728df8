package vtsmotion

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
)

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// DecodeWAV parses a RIFF/WAVE buffer into mono float64 samples in
// [-1, 1] plus the sample rate. Multi-channel audio is averaged down
// to mono.
func DecodeWAV(data []byte) ([]float64, int, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, NewAudioDecodeError("not a RIFF/WAVE buffer")
	}

	var (
		format     uint16
		channels   uint16
		sampleRate uint32
		bitsPer    uint16
		haveFmt    bool
		pcm        []byte
	)

	pos := 12
	for pos+8 <= len(data) {
		chunkID := string(data[pos : pos+4])
		chunkLen := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		pos += 8
		if pos+chunkLen > len(data) {
			chunkLen = len(data) - pos
		}
		body := data[pos : pos+chunkLen]

		switch chunkID {
		case "fmt ":
			if chunkLen < 16 {
				return nil, 0, NewAudioDecodeError("fmt chunk too short")
			}
			format = binary.LittleEndian.Uint16(body[0:2])
			channels = binary.LittleEndian.Uint16(body[2:4])
			sampleRate = binary.LittleEndian.Uint32(body[4:8])
			bitsPer = binary.LittleEndian.Uint16(body[14:16])
			haveFmt = true
		case "data":
			pcm = body
		}

		pos += chunkLen
		if chunkLen%2 == 1 {
			pos++ // chunks are word-aligned
		}
	}

	if !haveFmt {
		return nil, 0, NewAudioDecodeError("missing fmt chunk")
	}
	if pcm == nil {
		return nil, 0, NewAudioDecodeError("missing data chunk")
	}
	if channels == 0 || sampleRate == 0 {
		return nil, 0, NewAudioDecodeError("invalid fmt chunk")
	}

	samples, err := decodeFrames(pcm, format, int(channels), int(bitsPer))
	if err != nil {
		return nil, 0, err
	}
	return samples, int(sampleRate), nil
}

func decodeFrames(pcm []byte, format uint16, channels, bitsPer int) ([]float64, error) {
	bytesPer := bitsPer / 8
	if bytesPer == 0 {
		return nil, NewAudioDecodeError("invalid bits per sample")
	}
	frameSize := bytesPer * channels
	frames := len(pcm) / frameSize
	samples := make([]float64, frames)

	for i := 0; i < frames; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			off := i*frameSize + ch*bytesPer
			v, err := decodeSample(pcm[off:off+bytesPer], format, bitsPer)
			if err != nil {
				return nil, err
			}
			sum += v
		}
		samples[i] = sum / float64(channels)
	}
	return samples, nil
}

func decodeSample(b []byte, format uint16, bitsPer int) (float64, error) {
	switch {
	case format == wavFormatPCM && bitsPer == 16:
		return float64(int16(binary.LittleEndian.Uint16(b))) / 32768.0, nil
	case format == wavFormatPCM && bitsPer == 8:
		// 8-bit WAV is unsigned.
		return (float64(b[0]) - 128) / 128.0, nil
	case format == wavFormatPCM && bitsPer == 24:
		v := int32(b[0]) | int32(b[1])<<8 | int32(b[2])<<16
		if v&0x800000 != 0 {
			v |= ^int32(0xffffff)
		}
		return float64(v) / 8388608.0, nil
	case format == wavFormatPCM && bitsPer == 32:
		return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648.0, nil
	case format == wavFormatFloat && bitsPer == 32:
		bits := binary.LittleEndian.Uint32(b)
		return float64(math.Float32frombits(bits)), nil
	default:
		return 0, NewAudioDecodeError(fmt.Sprintf("unsupported format %d/%d-bit", format, bitsPer))
	}
}

// LoadWAVFile reads and decodes a WAV file from disk.
func LoadWAVFile(path string) ([]float64, int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, WrapError(err, ErrCodeAudioDecode)
	}
	return DecodeWAV(data)
}
