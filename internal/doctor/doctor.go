// Package doctor provides environment preflight checks for ttscore.
package doctor

import (
	"fmt"
	"io"
	"os"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// VersionFunc returns a version string or an error if the component is unavailable.
type VersionFunc func() (string, error)

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// EspeakVersion returns the output of `espeak-ng --version`.
	EspeakVersion VersionFunc
	// SkipEspeak skips the espeak-ng check (fallback-lexicon-only deployments).
	SkipEspeak bool
	// FFmpegVersion returns the output of `ffmpeg -version`.
	FFmpegVersion VersionFunc
	// SkipFFmpeg skips the ffmpeg check (deployments that only serve WAV/FLAC).
	SkipFFmpeg bool
	// VoiceFiles is the list of voice embedding file paths to verify on disk.
	VoiceFiles []string
	// VocabCoverage, if set, is run against the configured phoneme vocabulary
	// and reports the fraction of fallback-lexicon phonemes it can tokenize.
	VocabCoverage func() (covered, total int, missing []string)
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(cfg Config, w io.Writer) Result {
	var res Result

	// ---- espeak-ng binary ---------------------------------------------------
	if cfg.SkipEspeak {
		fmt.Fprintf(w, "%s espeak-ng: skipped (fallback lexicon only)\n", PassMark)
	} else if cfg.EspeakVersion != nil {
		ver, err := cfg.EspeakVersion()
		if err != nil {
			// espeak-ng is a preferred, not required, phonemizer backend: the
			// fallback lexicon keeps synthesis working without it.
			fmt.Fprintf(w, "%s espeak-ng: not found (%v) — falling back to built-in lexicon\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s espeak-ng: %s\n", PassMark, ver)
		}
	}

	// ---- ffmpeg binary -------------------------------------------------------
	if cfg.SkipFFmpeg {
		fmt.Fprintf(w, "%s ffmpeg: skipped (wav/flac only)\n", PassMark)
	} else if cfg.FFmpegVersion != nil {
		ver, err := cfg.FFmpegVersion()
		if err != nil {
			res.fail(fmt.Sprintf("ffmpeg: %v", err))
			fmt.Fprintf(w, "%s ffmpeg: not found (%v) — mp3/ogg encoding unavailable\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s ffmpeg: %s\n", PassMark, ver)
		}
	}

	// ---- voice files ---------------------------------------------------------
	for _, path := range cfg.VoiceFiles {
		if _, err := os.Stat(path); err != nil {
			res.fail(fmt.Sprintf("voice file %q: %v", path, err))
			fmt.Fprintf(w, "%s voice file: %s not found\n", FailMark, path)
		} else {
			fmt.Fprintf(w, "%s voice file: %s\n", PassMark, path)
		}
	}

	// ---- vocabulary coverage ---------------------------------------------------
	if cfg.VocabCoverage != nil {
		covered, total, missing := cfg.VocabCoverage()
		if total == 0 {
			fmt.Fprintf(w, "%s vocabulary coverage: skipped (empty lexicon)\n", PassMark)
		} else if len(missing) > 0 {
			res.fail(fmt.Sprintf("vocabulary coverage: %d/%d phonemes missing token ids: %v", len(missing), total, missing))
			fmt.Fprintf(w, "%s vocabulary coverage: %d/%d (missing %v)\n", FailMark, covered, total, missing)
		} else {
			fmt.Fprintf(w, "%s vocabulary coverage: %d/%d\n", PassMark, covered, total)
		}
	}

	return res
}
