package audio

import (
	"bytes"
	"fmt"

	"github.com/tphakala/flac"
	"github.com/tphakala/flac/frame"
	"github.com/tphakala/flac/meta"
)

// EncodeFLAC encodes float32 PCM samples as FLAC bytes at the given sample
// rate, mono, 16-bit.
func EncodeFLAC(samples []float32, sampleRate int) ([]byte, error) {
	if sampleRate < 1 {
		return nil, fmt.Errorf("audio: invalid sample rate %d", sampleRate)
	}

	info := &meta.StreamInfo{
		BlockSizeMin:  4096,
		BlockSizeMax:  4096,
		SampleRate:    uint32(sampleRate),
		NChannels:     ExpectedChannels,
		BitsPerSample: ExpectedBitDepth,
		NSamples:      uint64(len(samples)),
	}

	var buf bytes.Buffer
	enc, err := flac.NewEncoder(&buf, info)
	if err != nil {
		return nil, fmt.Errorf("audio: flac encoder: %w", err)
	}

	const blockSize = 4096
	for start := 0; start < len(samples); start += blockSize {
		end := start + blockSize
		if end > len(samples) {
			end = len(samples)
		}

		block := samples[start:end]
		subframe := make([]int32, len(block))
		for i, s := range block {
			clamped := s
			if clamped > 1 {
				clamped = 1
			}
			if clamped < -1 {
				clamped = -1
			}
			subframe[i] = int32(clamped * 32767)
		}

		f := &frame.Frame{
			Header: frame.Header{
				BlockSize:     uint16(len(block)),
				SampleRate:    uint32(sampleRate),
				BitsPerSample: ExpectedBitDepth,
				Channels:      frame.ChannelsMono,
			},
			Subframes: []*frame.Subframe{
				{
					SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
					Samples:   subframe,
				},
			},
		}

		if err := enc.WriteFrame(f); err != nil {
			return nil, fmt.Errorf("audio: flac write frame: %w", err)
		}
	}

	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("audio: flac close: %w", err)
	}

	return buf.Bytes(), nil
}
