package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/ttscore/internal/stretch"
)

// Config is the fully-resolved configuration for the synthesis core, server,
// and CLI. Every field has a default (DefaultConfig), can be set via a
// config file, overridden by environment variables (TTSCORE_ prefix), and
// overridden again by command-line flags, in that order of increasing
// precedence.
type Config struct {
	Paths       PathsConfig       `mapstructure:"paths"`
	Runtime     RuntimeConfig     `mapstructure:"runtime"`
	Text        TextConfig        `mapstructure:"text"`
	Voices      VoicesConfig      `mapstructure:"voices"`
	Phonemizer  PhonemizerConfig  `mapstructure:"phonemizer"`
	Scheduler   SchedulerConfig   `mapstructure:"scheduler"`
	TimeStretch TimeStretchConfig `mapstructure:"time_stretch"`
	Modulation  ModulationConfig  `mapstructure:"modulation"`
	Server      ServerConfig      `mapstructure:"server"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	LogLevel    string            `mapstructure:"log_level"`
}

// PathsConfig locates the on-disk assets the core loads at startup.
type PathsConfig struct {
	ModelPath string `mapstructure:"model_path"` // ONNX graph
	VoiceDir  string `mapstructure:"voice_dir"`
	VocabPath string `mapstructure:"vocab_path"`
}

// RuntimeConfig tunes the ONNX Runtime session.
type RuntimeConfig struct {
	ORTLibraryPath string `mapstructure:"ort_library_path"`
	ORTVersion     string `mapstructure:"ort_version"`
}

// TextConfig tunes normalization and chunking.
type TextConfig struct {
	ChunkStrategy            string `mapstructure:"chunk_strategy"` // adaptive|sentence|phrase|fixed
	MinChunkSize             int    `mapstructure:"min_chunk_size"`
	MaxChunkSize             int    `mapstructure:"max_chunk_size"`
	OverlapSize              int    `mapstructure:"overlap_size"`
	MinTextLengthForChunking int    `mapstructure:"min_text_length_for_chunking"`
	ContractionMode          string `mapstructure:"contraction_mode"` // expand|preserve
}

// VoicesConfig tunes the voice embedding store.
type VoicesConfig struct {
	CacheSize int `mapstructure:"cache_size"`
}

// PhonemizerConfig tunes the espeak-ng-backed phonemizer.
type PhonemizerConfig struct {
	EspeakPath      string `mapstructure:"espeak_path"`
	TimeoutMS       int    `mapstructure:"timeout_ms"`
	DisableExternal bool   `mapstructure:"disable_external"`
	CacheSize       int    `mapstructure:"cache_size"`
}

// SchedulerConfig tunes progressive synthesis.
type SchedulerConfig struct {
	Mode                string `mapstructure:"mode"` // standard|chunked_sequential|streaming_concurrent
	MaxConcurrentChunks int    `mapstructure:"max_concurrent_chunks"`
	ChunkTimeoutSecs    int    `mapstructure:"chunk_timeout_secs"`
	SessionTimeoutSecs  int    `mapstructure:"session_timeout_secs"`
	StreamingDelayMS    int    `mapstructure:"streaming_delay_ms"`
}

// TimeStretchConfig sets the default quality tier when a request enables
// time-stretching without specifying one.
type TimeStretchConfig struct {
	DefaultQuality string `mapstructure:"default_quality"` // phase_vocoder|linear

	// AutoEnableThreshold is the minimum chunk text length, in characters,
	// below which time-stretching is skipped even when a request requests
	// it: stretching a handful of words produces an audible artifact out of
	// proportion to the gain. Clamped to [20,50] by Load.
	AutoEnableThreshold int `mapstructure:"auto_enable_threshold"`
}

// ModulationConfig tunes inline voice-modulation marker handling
// (parenthetical whispers, bracket tags, emphasis).
type ModulationConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// WhisperVoice is the voice blended toward for whisper-family markers
	// (single/nested parens, [whisper], [aside]). Empty disables the
	// voice-blend side of whisper markers; the volume/speed/pitch
	// multipliers still apply.
	WhisperVoice string `mapstructure:"whisper_voice"`
}

// ServerConfig tunes the HTTP server.
type ServerConfig struct {
	ListenAddr         string `mapstructure:"listen_addr"`
	Workers            int    `mapstructure:"workers"`
	ShutdownTimeoutSec int    `mapstructure:"shutdown_timeout_secs"`
	MaxTextBytes       int    `mapstructure:"max_text_bytes"`
	RequestTimeoutSec  int    `mapstructure:"request_timeout_secs"`
}

// MetricsConfig toggles the Prometheus collector.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LoadOptions parameterizes Load.
type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

// DefaultConfig returns the documented defaults for every section.
func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			ModelPath: "models/model.onnx",
			VoiceDir:  "models/voices",
			VocabPath: "models/vocab.json",
		},
		Runtime: RuntimeConfig{
			ORTLibraryPath: "",
			ORTVersion:     "",
		},
		Text: TextConfig{
			ChunkStrategy:            "adaptive",
			MinChunkSize:             50,
			MaxChunkSize:             400,
			OverlapSize:              20,
			MinTextLengthForChunking: 200,
			ContractionMode:          "expand",
		},
		Voices: VoicesConfig{
			CacheSize: 64,
		},
		Phonemizer: PhonemizerConfig{
			EspeakPath:      "espeak-ng",
			TimeoutMS:       300,
			DisableExternal: false,
			CacheSize:       2048,
		},
		Scheduler: SchedulerConfig{
			Mode:                "streaming_concurrent",
			MaxConcurrentChunks: 2,
			ChunkTimeoutSecs:    30,
			SessionTimeoutSecs:  3600,
			StreamingDelayMS:    100,
		},
		TimeStretch: TimeStretchConfig{
			DefaultQuality:      "phase_vocoder",
			AutoEnableThreshold: 20,
		},
		Modulation: ModulationConfig{
			Enabled:      true,
			WhisperVoice: "af_nicole",
		},
		Server: ServerConfig{
			ListenAddr:         ":8080",
			Workers:            2,
			ShutdownTimeoutSec: 30,
			MaxTextBytes:       20000,
			RequestTimeoutSec:  60,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
		LogLevel: "info",
	}
}

// RegisterFlags binds every Config field to a command-line flag at its
// default value.
func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("paths-model-path", defaults.Paths.ModelPath, "Path to the ONNX acoustic graph")
	fs.String("paths-voice-dir", defaults.Paths.VoiceDir, "Directory of voice embedding files")
	fs.String("paths-vocab-path", defaults.Paths.VocabPath, "Path to the tokenizer vocabulary file")

	fs.String("runtime-ort-library-path", defaults.Runtime.ORTLibraryPath, "Path to the ONNX Runtime shared library")
	fs.String("ort-lib", defaults.Runtime.ORTLibraryPath, "Path to ONNX Runtime shared library (alias for --runtime-ort-library-path)")
	fs.String("runtime-ort-version", defaults.Runtime.ORTVersion, "Expected ONNX Runtime version")

	fs.String("chunk-strategy", defaults.Text.ChunkStrategy, "Chunking strategy (adaptive|sentence|phrase|fixed)")
	fs.Int("min-chunk-size", defaults.Text.MinChunkSize, "Minimum chunk size in characters")
	fs.Int("max-chunk-size", defaults.Text.MaxChunkSize, "Maximum chunk size in characters")
	fs.Int("overlap-size", defaults.Text.OverlapSize, "Trailing characters carried into the next chunk for prosodic context")
	fs.Int("min-text-length-for-chunking", defaults.Text.MinTextLengthForChunking, "Requests shorter than this are always synthesized as one chunk")
	fs.String("contraction-mode", defaults.Text.ContractionMode, "Contraction handling mode (expand|preserve)")

	fs.Int("voices-cache-size", defaults.Voices.CacheSize, "Max resident voice embeddings in the LRU cache")

	fs.String("espeak-path", defaults.Phonemizer.EspeakPath, "Path to the espeak-ng executable")
	fs.Int("phonemizer-timeout-ms", defaults.Phonemizer.TimeoutMS, "Per-call espeak-ng timeout in milliseconds")
	fs.Bool("phonemizer-disable-external", defaults.Phonemizer.DisableExternal, "Force fallback-lexicon-only phonemization")
	fs.Int("phonemizer-cache-size", defaults.Phonemizer.CacheSize, "Max cached (text, voice) phoneme results")

	fs.String("scheduler-mode", defaults.Scheduler.Mode, "Progressive synthesis mode (standard|chunked_sequential|streaming_concurrent)")
	fs.Int("max-concurrent-chunks", defaults.Scheduler.MaxConcurrentChunks, "Max chunks synthesized concurrently in streaming_concurrent mode")
	fs.Int("chunk-timeout", defaults.Scheduler.ChunkTimeoutSecs, "Per-chunk synthesis timeout in seconds")
	fs.Int("session-timeout", defaults.Scheduler.SessionTimeoutSecs, "Max age of a tracked generation session in seconds")
	fs.Int("streaming-delay-ms", defaults.Scheduler.StreamingDelayMS, "Pacing delay between sequentially delivered chunks in milliseconds")

	fs.String("time-stretch-quality", defaults.TimeStretch.DefaultQuality, "Default time-stretch quality tier (phase_vocoder|linear)")
	fs.Int("time-stretch-auto-enable-threshold", defaults.TimeStretch.AutoEnableThreshold, "Minimum chunk text length in characters before time-stretching is applied (clamped to [20,50])")

	fs.Bool("modulation-enabled", defaults.Modulation.Enabled, "Detect and apply inline voice-modulation markers (parentheticals, bracket tags, emphasis)")
	fs.String("modulation-whisper-voice", defaults.Modulation.WhisperVoice, "Voice blended toward for whisper-family markers; empty disables voice blending for them")

	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("workers", defaults.Server.Workers, "Max concurrent synthesis requests served")
	fs.Int("shutdown-timeout", defaults.Server.ShutdownTimeoutSec, "Graceful shutdown drain timeout in seconds")
	fs.Int("max-text-bytes", defaults.Server.MaxTextBytes, "Maximum request text size in bytes")
	fs.Int("request-timeout", defaults.Server.RequestTimeoutSec, "Per-request synthesis timeout in seconds")

	fs.Bool("metrics-enabled", defaults.Metrics.Enabled, "Expose the /metrics Prometheus endpoint")

	fs.String("log-level", defaults.LogLevel, "Log level (debug|info|warn|error)")
}

// Load resolves Config from defaults, an optional config file, environment
// variables (TTSCORE_ prefix), and flags bound to opts.Cmd, in that order
// of increasing precedence.
func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := v.BindPFlags(opts.Cmd.Flags()); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}
	registerAliases(v)

	v.SetEnvPrefix("TTSCORE")
	replacer := strings.NewReplacer("-", "_", ".", "_", "__", "_")
	v.SetEnvKeyReplacer(replacer)
	if err := v.BindEnv("runtime.ort_library_path", "TTSCORE_ORT_LIB", "ORT_LIBRARY_PATH"); err != nil {
		return Config{}, fmt.Errorf("bind ort env vars: %w", err)
	}
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("ttscore")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	cfg.TimeStretch.AutoEnableThreshold = stretch.ClampAutoEnableThreshold(cfg.TimeStretch.AutoEnableThreshold)

	return cfg, nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.model_path", c.Paths.ModelPath)
	v.SetDefault("paths.voice_dir", c.Paths.VoiceDir)
	v.SetDefault("paths.vocab_path", c.Paths.VocabPath)

	v.SetDefault("runtime.ort_library_path", c.Runtime.ORTLibraryPath)
	v.SetDefault("runtime.ort_version", c.Runtime.ORTVersion)

	v.SetDefault("text.chunk_strategy", c.Text.ChunkStrategy)
	v.SetDefault("text.min_chunk_size", c.Text.MinChunkSize)
	v.SetDefault("text.max_chunk_size", c.Text.MaxChunkSize)
	v.SetDefault("text.overlap_size", c.Text.OverlapSize)
	v.SetDefault("text.min_text_length_for_chunking", c.Text.MinTextLengthForChunking)
	v.SetDefault("text.contraction_mode", c.Text.ContractionMode)

	v.SetDefault("voices.cache_size", c.Voices.CacheSize)

	v.SetDefault("phonemizer.espeak_path", c.Phonemizer.EspeakPath)
	v.SetDefault("phonemizer.timeout_ms", c.Phonemizer.TimeoutMS)
	v.SetDefault("phonemizer.disable_external", c.Phonemizer.DisableExternal)
	v.SetDefault("phonemizer.cache_size", c.Phonemizer.CacheSize)

	v.SetDefault("scheduler.mode", c.Scheduler.Mode)
	v.SetDefault("scheduler.max_concurrent_chunks", c.Scheduler.MaxConcurrentChunks)
	v.SetDefault("scheduler.chunk_timeout_secs", c.Scheduler.ChunkTimeoutSecs)
	v.SetDefault("scheduler.session_timeout_secs", c.Scheduler.SessionTimeoutSecs)
	v.SetDefault("scheduler.streaming_delay_ms", c.Scheduler.StreamingDelayMS)

	v.SetDefault("time_stretch.default_quality", c.TimeStretch.DefaultQuality)
	v.SetDefault("time_stretch.auto_enable_threshold", c.TimeStretch.AutoEnableThreshold)

	v.SetDefault("modulation.enabled", c.Modulation.Enabled)
	v.SetDefault("modulation.whisper_voice", c.Modulation.WhisperVoice)

	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.shutdown_timeout_secs", c.Server.ShutdownTimeoutSec)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout_secs", c.Server.RequestTimeoutSec)

	v.SetDefault("metrics.enabled", c.Metrics.Enabled)

	v.SetDefault("log_level", c.LogLevel)
}

func registerAliases(v *viper.Viper) {
	v.RegisterAlias("paths.model_path", "paths-model-path")
	v.RegisterAlias("paths.voice_dir", "paths-voice-dir")
	v.RegisterAlias("paths.vocab_path", "paths-vocab-path")

	v.RegisterAlias("runtime.ort_library_path", "runtime-ort-library-path")
	v.RegisterAlias("runtime.ort_library_path", "ort-lib")
	v.RegisterAlias("runtime.ort_version", "runtime-ort-version")

	v.RegisterAlias("text.chunk_strategy", "chunk-strategy")
	v.RegisterAlias("text.min_chunk_size", "min-chunk-size")
	v.RegisterAlias("text.max_chunk_size", "max-chunk-size")
	v.RegisterAlias("text.overlap_size", "overlap-size")
	v.RegisterAlias("text.min_text_length_for_chunking", "min-text-length-for-chunking")
	v.RegisterAlias("text.contraction_mode", "contraction-mode")

	v.RegisterAlias("voices.cache_size", "voices-cache-size")

	v.RegisterAlias("phonemizer.espeak_path", "espeak-path")
	v.RegisterAlias("phonemizer.timeout_ms", "phonemizer-timeout-ms")
	v.RegisterAlias("phonemizer.disable_external", "phonemizer-disable-external")
	v.RegisterAlias("phonemizer.cache_size", "phonemizer-cache-size")

	v.RegisterAlias("scheduler.mode", "scheduler-mode")
	v.RegisterAlias("scheduler.max_concurrent_chunks", "max-concurrent-chunks")
	v.RegisterAlias("scheduler.chunk_timeout_secs", "chunk-timeout")
	v.RegisterAlias("scheduler.session_timeout_secs", "session-timeout")
	v.RegisterAlias("scheduler.streaming_delay_ms", "streaming-delay-ms")

	v.RegisterAlias("time_stretch.default_quality", "time-stretch-quality")
	v.RegisterAlias("time_stretch.auto_enable_threshold", "time-stretch-auto-enable-threshold")

	v.RegisterAlias("modulation.enabled", "modulation-enabled")
	v.RegisterAlias("modulation.whisper_voice", "modulation-whisper-voice")

	v.RegisterAlias("server.listen_addr", "server-listen-addr")
	v.RegisterAlias("server.workers", "workers")
	v.RegisterAlias("server.shutdown_timeout_secs", "shutdown-timeout")
	v.RegisterAlias("server.max_text_bytes", "max-text-bytes")
	v.RegisterAlias("server.request_timeout_secs", "request-timeout")

	v.RegisterAlias("metrics.enabled", "metrics-enabled")

	v.RegisterAlias("log_level", "log-level")
}
