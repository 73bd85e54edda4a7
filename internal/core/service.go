package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/example/ttscore/internal/audio"
	"github.com/example/ttscore/internal/consistency"
	"github.com/example/ttscore/internal/inference"
	"github.com/example/ttscore/internal/metrics"
	"github.com/example/ttscore/internal/modulation"
	"github.com/example/ttscore/internal/phonemize"
	"github.com/example/ttscore/internal/scheduler"
	"github.com/example/ttscore/internal/session"
	"github.com/example/ttscore/internal/stretch"
	"github.com/example/ttscore/internal/text"
	"github.com/example/ttscore/internal/tokenizer"
	"github.com/example/ttscore/internal/voice"
)

// edgeFadeMS is the fade applied to the very first and very last chunk of a
// request, just long enough to avoid an audible onset/tail click without
// softening the speech itself.
const edgeFadeMS = 5

// Config tunes orchestration behavior that doesn't belong to any one
// component.
type Config struct {
	// MinTextLengthForChunking is the threshold below which a request is
	// always synthesized as a single chunk regardless of scheduler mode.
	// Lives on the orchestrator rather than the chunker (see DESIGN.md):
	// it's a decision about whether to chunk at all, not about how a
	// chunk's boundaries are drawn.
	MinTextLengthForChunking int
	SampleRate               int

	// TimeStretchAutoEnableThreshold is the minimum chunk text length, in
	// characters, below which time-stretching is skipped even when a
	// request asks for it (see config.TimeStretchConfig.AutoEnableThreshold).
	TimeStretchAutoEnableThreshold int

	// ModulationEnabled toggles detection of inline voice-modulation markers
	// (parentheticals, bracket tags, emphasis) before chunking.
	ModulationEnabled bool
	// ModulationWhisperVoice is the voice blended toward for whisper-family
	// markers. Empty disables the voice-blend side of those markers.
	ModulationWhisperVoice string
}

// DefaultConfig returns the package's documented defaults.
func DefaultConfig() Config {
	return Config{
		MinTextLengthForChunking:       200,
		SampleRate:                     24000,
		TimeStretchAutoEnableThreshold: stretch.MinAutoEnableThreshold,
		ModulationEnabled:              true,
	}
}

// Deps are the fully-constructed components Service orchestrates. All
// fields are required except Metrics and Sessions, which default to
// no-op/empty instances.
type Deps struct {
	Normalizer *text.Pipeline
	Chunker    *text.Chunker
	Phonemizer *phonemize.Phonemizer
	Tokenizer  tokenizer.Tokenizer
	Voices     *voice.Store
	Engine     *inference.Engine
	Scheduler  *scheduler.Scheduler
	Metrics    *metrics.Recorder
	Sessions   *session.Registry
}

// Service orchestrates a full text-to-speech request: normalize, chunk,
// phonemize, tokenize, run inference per chunk (optionally concurrently),
// apply voice-consistency deltas and time-stretching, then encode.
type Service struct {
	cfg Config
	d   Deps
}

// New builds a Service. Metrics and Sessions in deps are replaced with
// fresh defaults if nil.
func New(cfg Config, deps Deps) *Service {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewRecorder(nil)
	}
	if deps.Sessions == nil {
		deps.Sessions = session.NewRegistry(session.DefaultMaxAge)
	}
	if cfg.SampleRate == 0 {
		cfg = DefaultConfig()
	}

	return &Service{cfg: cfg, d: deps}
}

// Synthesize runs a complete, non-streaming request and returns one encoded
// audio artifact.
func (s *Service) Synthesize(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	started := time.Now()

	chunks, style, segments, err := s.prepare(req)
	if err != nil {
		return nil, err
	}

	mgr := consistency.New()
	results, err := s.d.Scheduler.Run(ctx, chunks, s.chunkSynthesizer(req, style, mgr, len(chunks), segments))
	if err != nil {
		// Partial results may still be usable; only fail outright if every
		// chunk failed.
		if allFailed(results) {
			return nil, newError(KindInferenceFailure, "all chunks failed", err)
		}
		slog.Warn("synthesis completed with partial chunk failures", slog.String("error", err.Error()))
	}

	var allAudio []float32
	for _, r := range results {
		if r.Err != nil {
			continue
		}
		allAudio = append(allAudio, r.Audio...)
	}

	if len(allAudio) == 0 {
		return nil, newError(KindAudioValidation, "no audio produced", nil)
	}

	allAudio = audio.PeakNormalize(allAudio)
	allAudio = applyVolume(allAudio, req.normalizedVolume())

	format := req.normalizedFormat()
	encoded, err := audio.Encode(ctx, format, allAudio, s.cfg.SampleRate)
	if err != nil {
		return nil, newError(KindEncoderFailure, "audio encoding failed", err)
	}

	audioDuration := float64(len(allAudio)) / float64(s.cfg.SampleRate)
	totalDuration := time.Since(started)
	rtf := metrics.CalcRTF(totalDuration, time.Duration(audioDuration*float64(time.Second)))

	s.d.Metrics.Record(metrics.RequestRecord{
		TextLength:    len(req.Text),
		ChunkCount:    len(chunks),
		TotalDuration: totalDuration,
		AudioDuration: time.Duration(audioDuration * float64(time.Second)),
		BytesOut:      int64(len(encoded)),
		RTF:           rtf,
	})

	return &Response{
		Audio:         encoded,
		Format:        format,
		SampleRate:    s.cfg.SampleRate,
		AudioDuration: audioDuration,
		ChunkCount:    len(chunks),
		RTF:           rtf,
	}, nil
}

// SynthesizeStream starts a streaming session and returns its id plus a
// channel of ordered ChunkResults. The channel is closed once the final
// chunk is delivered, the session errors out, or it is cancelled via the
// returned cancel func.
func (s *Service) SynthesizeStream(ctx context.Context, req Request) (sessionID string, out <-chan ChunkResult, cancel func(), err error) {
	if err := req.Validate(); err != nil {
		return "", nil, nil, err
	}

	chunks, style, segments, err := s.prepare(req)
	if err != nil {
		return "", nil, nil, err
	}

	streamCtx, cancelFn := context.WithCancel(ctx)
	sess := s.d.Sessions.Start(req.Voice, string(req.normalizedFormat()), cancelFn)

	ch := make(chan ChunkResult, len(chunks))
	mgr := consistency.New()
	fn := s.chunkSynthesizer(req, style, mgr, len(chunks), segments)

	go func() {
		defer close(ch)

		partial := false
		format := req.normalizedFormat()

		for _, c := range chunks {
			select {
			case <-streamCtx.Done():
				s.d.Sessions.Finish(sess.ID, true)
				return
			default:
			}

			chunkStart := time.Now()
			audioSamples, err := fn(streamCtx, c)
			if err != nil {
				partial = true
				ch <- ChunkResult{Ordinal: c.Ordinal, Err: err}
				continue
			}

			audioSamples = applyVolume(audioSamples, req.normalizedVolume())

			encoded, err := audio.Encode(streamCtx, format, audioSamples, s.cfg.SampleRate)
			if err != nil {
				partial = true
				ch <- ChunkResult{Ordinal: c.Ordinal, Err: newError(KindEncoderFailure, "chunk encoding failed", err)}
				continue
			}

			sess.RecordChunk(session.ChunkTiming{Ordinal: c.Ordinal, InferenceTime: time.Since(chunkStart), DeliveredAt: time.Now()})

			ch <- ChunkResult{
				Ordinal:  c.Ordinal,
				Audio:    encoded,
				Duration: float64(len(audioSamples)) / float64(s.cfg.SampleRate),
				Final:    c.Ordinal == len(chunks)-1,
			}
		}

		s.d.Sessions.Finish(sess.ID, partial)
	}()

	return sess.ID, ch, func() { s.d.Sessions.Cancel(sess.ID) }, nil
}

// Cancel cancels an in-flight streaming session by id. Idempotent; returns
// false if the session is not tracked.
func (s *Service) Cancel(sessionID string) bool {
	return s.d.Sessions.Cancel(sessionID)
}

// Voices returns the voice store this Service was built with, for callers
// that need to list or inspect voices outside of a synthesis request.
func (s *Service) Voices() *voice.Store {
	return s.d.Voices
}

// prepare runs the normalize -> demodulate -> chunk -> voice-resolution
// stages shared by both Synthesize and SynthesizeStream.
func (s *Service) prepare(req Request) ([]text.Chunk, voice.Embedding, []modulation.Segment, error) {
	normalized, _, err := s.d.Normalizer.Normalize(req.Text)
	if err != nil {
		return nil, voice.Embedding{}, nil, newError(KindInputValidation, "text normalization failed", err)
	}

	var segments []modulation.Segment
	if s.cfg.ModulationEnabled {
		normalized, segments = modulation.Strip(normalized, s.cfg.ModulationWhisperVoice)
	}

	var style voice.Embedding
	if len(req.VoiceBlend) > 0 {
		style, err = s.d.Voices.Blend(req.VoiceBlend, voice.MethodWeightedAverage)
	} else {
		style, err = s.d.Voices.Load(req.Voice)
	}
	if err != nil {
		return nil, voice.Embedding{}, nil, newError(KindVoiceNotFound, fmt.Sprintf("voice %q", req.Voice), err)
	}

	var chunks []text.Chunk
	if len(normalized) < s.cfg.MinTextLengthForChunking {
		chunks = []text.Chunk{{Text: normalized, Ordinal: 0, Start: 0, End: len(normalized), EndsAtSentence: true}}
	} else {
		chunks = s.d.Chunker.Chunk(normalized)
	}

	if req.Emotion != "" {
		slog.Debug("emotion tag is advisory only; acoustic graph has no emotion input", slog.String("emotion", req.Emotion))
	}

	return chunks, style, segments, nil
}

// chunkSynthesizer builds the per-chunk SynthesizeFunc the scheduler runs:
// phonemize, tokenize, apply consistency deltas, run inference, optionally
// time-stretch.
func (s *Service) chunkSynthesizer(req Request, style voice.Embedding, mgr *consistency.Manager, totalChunks int, segments []modulation.Segment) scheduler.SynthesizeFunc {
	// Adjust needs ascending ordinal order even when the scheduler runs
	// chunks concurrently, so each call waits for its turn.
	var mu sync.Mutex
	turn := sync.NewCond(&mu)
	next := 0

	return func(ctx context.Context, c text.Chunk) ([]float32, error) {
		mu.Lock()
		for c.Ordinal > next {
			turn.Wait()
		}
		deltas := mgr.Adjust(c.Text, c.Ordinal, c.Ordinal == totalChunks-1, c.Overlap != "")
		next = c.Ordinal + 1
		turn.Broadcast()
		mu.Unlock()

		phonemes, err := s.d.Phonemizer.Phonemize(ctx, c.Text, req.Voice)
		if err != nil {
			return nil, newError(KindInferenceFailure, "phonemization failed", err)
		}

		tokens := s.d.Tokenizer.Encode(phonemes.Phonemes)

		mod, hasMod := modulation.Overlapping(segments, c.Start, c.End)

		chunkStyle := style
		if hasMod && mod.BlendVoice != "" && len(req.VoiceBlend) == 0 {
			blended, err := s.d.Voices.Blend([]voice.Weighted{
				{Name: req.Voice, Weight: 1 - mod.BlendRatio},
				{Name: mod.BlendVoice, Weight: mod.BlendRatio},
			}, voice.MethodWeightedAverage)
			if err != nil {
				slog.Warn("voice-modulation blend failed, using base voice", slog.String("error", err.Error()))
			} else {
				chunkStyle = blended
			}
		}

		stretchEligible := req.TimeStretchEnabled && len(c.Text) >= s.cfg.TimeStretchAutoEnableThreshold

		speed := req.normalizedSpeed() + deltas.SpeechRate
		if hasMod {
			speed *= mod.SpeedMult
		}
		if stretchEligible {
			speed *= stretch.RatioFromPercent(req.TimeStretchRate)
		}
		if speed < inference.MinSpeed {
			speed = inference.MinSpeed
		}
		if speed > inference.MaxSpeed {
			speed = inference.MaxSpeed
		}

		audioSamples, err := s.d.Engine.Synthesize(ctx, tokens, chunkStyle.Data, float32(speed))
		if err != nil {
			return nil, err
		}

		audioSamples = audio.DCBlock(audioSamples, s.cfg.SampleRate)
		if hasMod && mod.VolumeMult != 1 {
			audioSamples = applyVolume(audioSamples, mod.VolumeMult)
		}
		if c.Ordinal == 0 {
			audioSamples = audio.FadeIn(audioSamples, s.cfg.SampleRate, edgeFadeMS)
		}
		if c.Ordinal == totalChunks-1 {
			audioSamples = audio.FadeOut(audioSamples, s.cfg.SampleRate, edgeFadeMS)
		}

		if stretchEligible {
			quality := req.TimeStretchQuality
			if quality == "" {
				quality = stretch.QualityPhaseVocoder
			}
			ratio := stretch.RatioFromPercent(req.TimeStretchRate)
			stretched, err := stretch.Stretch(audioSamples, s.cfg.SampleRate, ratio, quality)
			if err != nil {
				slog.Warn("time-stretch failed, using unstretched audio", slog.String("error", err.Error()))
			} else {
				audioSamples = stretched
			}
		}

		return audioSamples, nil
	}
}

func applyVolume(samples []float32, mult float64) []float32 {
	if mult == 1 {
		return samples
	}

	out := make([]float32, len(samples))
	for i, s := range samples {
		v := float64(s) * mult
		if v > 1 {
			v = 1
		}
		if v < -1 {
			v = -1
		}
		out[i] = float32(v)
	}
	return out
}

func allFailed(results []scheduler.Result) bool {
	if len(results) == 0 {
		return true
	}
	for _, r := range results {
		if r.Err == nil {
			return false
		}
	}
	return true
}
