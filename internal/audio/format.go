package audio

import (
	"context"
	"fmt"
)

// Format is a supported output container/codec.
type Format string

const (
	FormatWAV  Format = "wav"
	FormatMP3  Format = "mp3"
	FormatOGG  Format = "ogg"
	FormatFLAC Format = "flac"
)

// Encode converts float32 PCM samples at sampleRate into the requested
// format. WAV and FLAC are produced in-process; MP3 and OGG delegate to an
// external ffmpeg process.
func Encode(ctx context.Context, format Format, samples []float32, sampleRate int) ([]byte, error) {
	switch format {
	case FormatWAV, "":
		return EncodeWAVPCM16(samples, sampleRate)
	case FormatFLAC:
		return EncodeFLAC(samples, sampleRate)
	case FormatMP3:
		return EncodeMP3(ctx, samples, sampleRate)
	case FormatOGG:
		return EncodeOGG(ctx, samples, sampleRate)
	default:
		return nil, fmt.Errorf("audio: unsupported format %q", format)
	}
}
