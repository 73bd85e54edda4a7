package core

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/example/ttscore/internal/config"
	"github.com/example/ttscore/internal/inference"
	"github.com/example/ttscore/internal/metrics"
	"github.com/example/ttscore/internal/phonemize"
	"github.com/example/ttscore/internal/scheduler"
	"github.com/example/ttscore/internal/session"
	"github.com/example/ttscore/internal/text"
	"github.com/example/ttscore/internal/tokenizer"
	"github.com/example/ttscore/internal/vocab"
	"github.com/example/ttscore/internal/voice"
)

// requiredVocabCoverage is the fraction of the fallback lexicon's output
// alphabet that must have a token id in the loaded vocabulary. Anything less
// means the fallback phonemizer can emit symbols CharTokenizer.Encode will
// silently map to the unknown-token id at request time.
const requiredVocabCoverage = 1.0

// Build constructs a fully-wired Service from a resolved Config: vocabulary,
// normalizer, chunker, phonemizer, voice store, acoustic engine, and
// scheduler, in that order, then the tokenizer as the Service is assembled.
// The returned func releases the acoustic engine's session; the caller must
// call it once the Service is no longer used.
func Build(cfg config.Config, collector *metrics.Collector) (*Service, func(), error) {
	table, err := vocab.Load(cfg.Paths.VocabPath)
	if err != nil {
		return nil, nil, fmt.Errorf("core: load vocabulary: %w", err)
	}

	if err := table.MustCoverage(phonemize.FallbackSymbols(), requiredVocabCoverage); err != nil {
		slog.Error("vocabulary does not cover the fallback phonemizer's output alphabet", slog.String("error", err.Error()))
		return nil, nil, fmt.Errorf("core: vocabulary coverage check failed: %w", err)
	}

	normalizer, err := text.New(normalizeConfig(cfg.Text))
	if err != nil {
		return nil, nil, fmt.Errorf("core: build normalizer: %w", err)
	}

	chunker := text.NewChunker(chunkerConfig(cfg.Text))

	phonemizer, err := phonemize.New(phonemizeConfig(cfg.Phonemizer), table)
	if err != nil {
		return nil, nil, fmt.Errorf("core: build phonemizer: %w", err)
	}

	voices, err := voice.New(cfg.Paths.VoiceDir, cfg.Voices.CacheSize)
	if err != nil {
		return nil, nil, fmt.Errorf("core: build voice store: %w", err)
	}

	engine, err := inference.NewEngine(inference.RunnerConfig{
		LibraryPath: cfg.Runtime.ORTLibraryPath,
		ModelPath:   cfg.Paths.ModelPath,
	}, table.Size())
	if err != nil {
		return nil, nil, fmt.Errorf("core: load acoustic graph: %w", err)
	}

	sched := scheduler.New(schedulerConfig(cfg.Scheduler))

	svc := New(DefaultConfig(), Deps{
		Normalizer: normalizer,
		Chunker:    chunker,
		Phonemizer: phonemizer,
		Tokenizer:  tokenizer.New(table),
		Voices:     voices,
		Engine:     engine,
		Scheduler:  sched,
		Metrics:    metrics.NewRecorder(collector),
		Sessions:   session.NewRegistry(session.DefaultMaxAge),
	})
	svc.cfg.MinTextLengthForChunking = cfg.Text.MinTextLengthForChunking
	svc.cfg.TimeStretchAutoEnableThreshold = cfg.TimeStretch.AutoEnableThreshold
	svc.cfg.ModulationEnabled = cfg.Modulation.Enabled
	svc.cfg.ModulationWhisperVoice = cfg.Modulation.WhisperVoice

	return svc, engine.Close, nil
}

func normalizeConfig(c config.TextConfig) text.Config {
	cfg := text.DefaultConfig()
	if c.ContractionMode == "preserve" {
		cfg.ContractionMode = text.ContractionPreserve
	}
	return cfg
}

func chunkerConfig(c config.TextConfig) text.ChunkerConfig {
	cfg := text.DefaultChunkerConfig()
	if c.MinChunkSize > 0 {
		cfg.MinChunkSize = c.MinChunkSize
	}
	if c.MaxChunkSize > 0 {
		cfg.MaxChunkSize = c.MaxChunkSize
	}
	if c.OverlapSize > 0 {
		cfg.OverlapSize = c.OverlapSize
	}
	switch c.ChunkStrategy {
	case "sentence":
		cfg.Strategy = text.StrategySentence
	case "phrase":
		cfg.Strategy = text.StrategyPhrase
	case "fixed":
		cfg.Strategy = text.StrategyFixed
	default:
		cfg.Strategy = text.StrategyAdaptive
	}
	return cfg
}

func phonemizeConfig(c config.PhonemizerConfig) phonemize.Config {
	cfg := phonemize.DefaultConfig()
	if c.EspeakPath != "" {
		cfg.EspeakPath = c.EspeakPath
	}
	if c.TimeoutMS > 0 {
		cfg.Timeout = time.Duration(c.TimeoutMS) * time.Millisecond
	}
	cfg.DisableExternal = c.DisableExternal
	if c.CacheSize > 0 {
		cfg.CacheSize = c.CacheSize
	}
	return cfg
}

func schedulerConfig(c config.SchedulerConfig) scheduler.Config {
	cfg := scheduler.DefaultConfig()
	if c.Mode != "" {
		cfg.Mode = scheduler.Mode(c.Mode)
	}
	if c.MaxConcurrentChunks > 0 {
		cfg.MaxConcurrentChunks = c.MaxConcurrentChunks
	}
	if c.ChunkTimeoutSecs > 0 {
		cfg.ChunkTimeout = time.Duration(c.ChunkTimeoutSecs) * time.Second
	}
	if c.SessionTimeoutSecs > 0 {
		cfg.SessionTimeout = time.Duration(c.SessionTimeoutSecs) * time.Second
	}
	if c.StreamingDelayMS > 0 {
		cfg.StreamingDelay = time.Duration(c.StreamingDelayMS) * time.Millisecond
	}
	return cfg
}
