package audio

import (
	"bytes"
	"fmt"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

// FlacBlockSize is the number of samples per FLAC frame
const FlacBlockSize = 4096

// EncodeFLAC compresses mono samples into a FLAC stream. Used to shrink
// uploads to transcription providers that accept FLAC.
func EncodeFLAC(samples []float32, sampleRate uint32) ([]byte, error) {
	pcm := make([]int32, 0, len(samples))
	for _, s := range samples {
		v, ok := FloatToPCM16(s)
		if !ok {
			continue
		}
		pcm = append(pcm, int32(v))
	}

	var buf bytes.Buffer
	info := &meta.StreamInfo{
		BlockSizeMin:  FlacBlockSize,
		BlockSizeMax:  FlacBlockSize,
		SampleRate:    sampleRate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
		NSamples:      uint64(len(pcm)),
	}
	enc, err := flac.NewEncoder(&buf, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)

	for start := 0; start < len(pcm); start += FlacBlockSize {
		end := min(start+FlacBlockSize, len(pcm))
		block := pcm[start:end]

		f := &frame.Frame{
			Header: frame.Header{
				BlockSize:     uint16(len(block)),
				SampleRate:    sampleRate,
				Channels:      frame.ChannelsMono,
				BitsPerSample: BitsPerSample,
			},
			Subframes: []*frame.Subframe{{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   block,
				NSamples:  len(block),
			}},
		}
		if err := enc.WriteFrame(f); err != nil {
			return nil, fmt.Errorf("writing flac frame: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing flac encoder: %w", err)
	}
	return buf.Bytes(), nil
}
