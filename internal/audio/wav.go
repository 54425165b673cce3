package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// WAVHeaderSize is the size of the canonical 44-byte RIFF/WAVE header
	WAVHeaderSize = 44
	Channels      = 1
	BitsPerSample = 16
)

var ErrUnsupportedWAV = errors.New("unsupported wav format")

// FloatToPCM16 converts one float sample to 16-bit PCM. Values are clamped to
// [-1, 1]; ok is false for NaN and Inf, which callers skip.
func FloatToPCM16(s float32) (v int16, ok bool) {
	f := float64(s)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if f > 1 {
		f = 1
	} else if f < -1 {
		f = -1
	}
	return int16(math.Round(f * math.MaxInt16)), true
}

// PCM16ToFloat is the inverse of FloatToPCM16
func PCM16ToFloat(v int16) float32 {
	return float32(v) / math.MaxInt16
}

// WriteWAVHeader writes a mono 16-bit PCM header for dataBytes of sample data
func WriteWAVHeader(w io.Writer, sampleRate uint32, dataBytes uint32) error {
	blockAlign := uint16(Channels * BitsPerSample / 8)
	byteRate := sampleRate * uint32(blockAlign)

	var h [WAVHeaderSize]byte
	copy(h[0:4], "RIFF")
	binary.LittleEndian.PutUint32(h[4:8], 36+dataBytes)
	copy(h[8:12], "WAVE")
	copy(h[12:16], "fmt ")
	binary.LittleEndian.PutUint32(h[16:20], 16)
	binary.LittleEndian.PutUint16(h[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(h[22:24], Channels)
	binary.LittleEndian.PutUint32(h[24:28], sampleRate)
	binary.LittleEndian.PutUint32(h[28:32], byteRate)
	binary.LittleEndian.PutUint16(h[32:34], blockAlign)
	binary.LittleEndian.PutUint16(h[34:36], BitsPerSample)
	copy(h[36:40], "data")
	binary.LittleEndian.PutUint32(h[40:44], dataBytes)

	_, err := w.Write(h[:])
	return err
}

// AppendPCM16 converts samples and appends them to dst, skipping non-finite
// values. It returns the extended slice and the number of samples written.
func AppendPCM16(dst []byte, samples []float32) ([]byte, int) {
	written := 0
	for _, s := range samples {
		v, ok := FloatToPCM16(s)
		if !ok {
			continue
		}
		dst = binary.LittleEndian.AppendUint16(dst, uint16(v))
		written++
	}
	return dst, written
}

// EncodeWAV builds a complete mono 16-bit WAV file in memory
func EncodeWAV(samples []float32, sampleRate uint32) []byte {
	pcm, _ := AppendPCM16(make([]byte, 0, len(samples)*2), samples)

	var buf bytes.Buffer
	buf.Grow(WAVHeaderSize + len(pcm))
	WriteWAVHeader(&buf, sampleRate, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// DecodeWAV reads a PCM 16-bit WAV file. Multi-channel input is downmixed to mono.
func DecodeWAV(data []byte) ([]float32, uint32, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("%w: missing RIFF/WAVE header", ErrUnsupportedWAV)
	}

	var (
		sampleRate uint32
		channels   uint16
		bits       uint16
		format     uint16
		pcm        []byte
		haveFmt    bool
	)

	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(data) {
			// writers that crashed before patching sizes leave a short chunk
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return nil, 0, fmt.Errorf("%w: short fmt chunk", ErrUnsupportedWAV)
			}
			format = binary.LittleEndian.Uint16(data[body : body+2])
			channels = binary.LittleEndian.Uint16(data[body+2 : body+4])
			sampleRate = binary.LittleEndian.Uint32(data[body+4 : body+8])
			bits = binary.LittleEndian.Uint16(data[body+14 : body+16])
			haveFmt = true
		case "data":
			pcm = data[body:end]
		}

		pos = body + size
		if size%2 == 1 {
			pos++
		}
	}

	if !haveFmt || pcm == nil {
		return nil, 0, fmt.Errorf("%w: missing fmt or data chunk", ErrUnsupportedWAV)
	}
	if format != 1 || bits != BitsPerSample || channels == 0 {
		return nil, 0, fmt.Errorf("%w: format=%d bits=%d channels=%d", ErrUnsupportedWAV, format, bits, channels)
	}

	frameBytes := int(channels) * 2
	frames := len(pcm) / frameBytes
	samples := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < int(channels); c++ {
			off := i*frameBytes + c*2
			sum += PCM16ToFloat(int16(binary.LittleEndian.Uint16(pcm[off : off+2])))
		}
		samples[i] = sum / float32(channels)
	}
	return samples, sampleRate, nil
}

// DurationMs converts a sample count at sampleRate to whole milliseconds
func DurationMs(samples int64, sampleRate uint32) int64 {
	if sampleRate == 0 {
		return 0
	}
	return int64(math.Round(float64(samples) / float64(sampleRate) * 1000))
}
