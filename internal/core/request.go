package core

import (
	"fmt"
	"strings"

	"github.com/example/ttscore/internal/audio"
	"github.com/example/ttscore/internal/stretch"
	"github.com/example/ttscore/internal/voice"
)

// Bounds on request fields.
const (
	MinSpeed            = 0.1
	MaxSpeed            = 3.0
	MinVolumeMultiplier = 0.1
	MaxVolumeMultiplier = 5.0
	MaxTextLength       = 20000
)

// Request is one synthesis call: either a single named voice or a blend of
// several, rendered to the requested format.
type Request struct {
	Text             string
	Voice            string
	VoiceBlend       []voice.Weighted // alternative to Voice; mutually exclusive
	Format           audio.Format
	Speed            float64
	VolumeMultiplier float64
	// Emotion is advisory only: the acoustic graph this core drives has no
	// emotion input, so it is logged at debug level but never changes
	// synthesis output. It is not recorded in metrics. See DESIGN.md's Open
	// Question note.
	Emotion string
	Stream  bool

	TimeStretchEnabled bool
	TimeStretchRate    int // percent, [stretch.MinRatePercent, stretch.MaxRatePercent]
	TimeStretchQuality stretch.Quality
}

// Validate rejects a Request outside the bounds above, returning a *Error
// with KindInputValidation.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return newError(KindInputValidation, "text must not be empty", nil)
	}
	if len(r.Text) > MaxTextLength {
		return newError(KindInputValidation, fmt.Sprintf("text length %d exceeds maximum %d", len(r.Text), MaxTextLength), nil)
	}

	if strings.TrimSpace(r.Voice) == "" && len(r.VoiceBlend) == 0 {
		return newError(KindInputValidation, "voice or voice_blend must be set", nil)
	}
	if strings.TrimSpace(r.Voice) != "" && len(r.VoiceBlend) > 0 {
		return newError(KindInputValidation, "voice and voice_blend are mutually exclusive", nil)
	}

	switch r.Format {
	case audio.FormatWAV, audio.FormatMP3, audio.FormatOGG, audio.FormatFLAC, "":
	default:
		return newError(KindInputValidation, fmt.Sprintf("unsupported response_format %q", r.Format), nil)
	}

	if r.Speed != 0 && (r.Speed < MinSpeed || r.Speed > MaxSpeed) {
		return newError(KindInputValidation, fmt.Sprintf("speed %v outside [%v,%v]", r.Speed, MinSpeed, MaxSpeed), nil)
	}
	if r.VolumeMultiplier != 0 && (r.VolumeMultiplier < MinVolumeMultiplier || r.VolumeMultiplier > MaxVolumeMultiplier) {
		return newError(KindInputValidation, fmt.Sprintf("volume_multiplier %v outside [%v,%v]", r.VolumeMultiplier, MinVolumeMultiplier, MaxVolumeMultiplier), nil)
	}

	if r.TimeStretchEnabled && (r.TimeStretchRate < stretch.MinRatePercent || r.TimeStretchRate > stretch.MaxRatePercent) {
		return newError(KindInputValidation, fmt.Sprintf("time_stretching_rate %d outside [%d,%d]", r.TimeStretchRate, stretch.MinRatePercent, stretch.MaxRatePercent), nil)
	}

	return nil
}

// normalizedSpeed returns the request's speed with the 0-means-default
// convention resolved.
func (r Request) normalizedSpeed() float64 {
	if r.Speed == 0 {
		return 1.0
	}
	return r.Speed
}

func (r Request) normalizedVolume() float64 {
	if r.VolumeMultiplier == 0 {
		return 1.0
	}
	return r.VolumeMultiplier
}

func (r Request) normalizedFormat() audio.Format {
	if r.Format == "" {
		return audio.FormatWAV
	}
	return r.Format
}

// Response is a completed, non-streaming synthesis result.
type Response struct {
	Audio         []byte
	Format        audio.Format
	SampleRate    int
	AudioDuration float64 // seconds
	ChunkCount    int
	RTF           float64
}

// ChunkResult is one delivered chunk of a streaming synthesis, ordered by
// Ordinal regardless of the scheduler's completion order.
type ChunkResult struct {
	Ordinal  int
	Audio    []byte
	Duration float64 // seconds
	Final    bool
	Err      error
}
