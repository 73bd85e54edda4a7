package config

import (
	"fmt"
	"strings"
)

// NormalizeChunkStrategy validates and lowercases a text.ChunkStrategy
// config value, defaulting empty input to "adaptive".
func NormalizeChunkStrategy(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		s = "adaptive"
	}
	switch s {
	case "adaptive", "sentence", "phrase", "fixed":
		return s, nil
	default:
		return "", fmt.Errorf("invalid chunk strategy %q (expected adaptive|sentence|phrase|fixed)", raw)
	}
}

// NormalizeSchedulerMode validates and lowercases a scheduler.Mode config
// value, defaulting empty input to "streaming_concurrent".
func NormalizeSchedulerMode(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		s = "streaming_concurrent"
	}
	switch s {
	case "standard", "chunked_sequential", "streaming_concurrent":
		return s, nil
	default:
		return "", fmt.Errorf("invalid scheduler mode %q (expected standard|chunked_sequential|streaming_concurrent)", raw)
	}
}

// NormalizeTimeStretchQuality validates and lowercases a stretch.Quality
// config value, defaulting empty input to "phase_vocoder".
func NormalizeTimeStretchQuality(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "" {
		s = "phase_vocoder"
	}
	switch s {
	case "phase_vocoder", "linear":
		return s, nil
	default:
		return "", fmt.Errorf("invalid time-stretch quality %q (expected phase_vocoder|linear)", raw)
	}
}
