// Package scheduler drives progressive synthesis of a chunked request:
// standard single-shot, chunked-sequential, or streaming-concurrent with a
// bounded worker pool, delivering results back in chunk order regardless of
// completion order.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/multierr"

	"github.com/example/ttscore/internal/text"
)

// Mode selects how chunks are scheduled for synthesis.
type Mode string

const (
	// ModeStandard synthesizes the whole (unchunked) input in one call.
	ModeStandard Mode = "standard"
	// ModeChunkedSequential synthesizes chunks one at a time, in order.
	ModeChunkedSequential Mode = "chunked_sequential"
	// ModeStreamingConcurrent synthesizes up to MaxConcurrentChunks chunks
	// in parallel; Run returns once every chunk has finished, with results
	// in chunk order.
	ModeStreamingConcurrent Mode = "streaming_concurrent"
)

// Config tunes scheduling behavior.
type Config struct {
	Mode                Mode
	MaxConcurrentChunks int
	ChunkTimeout        time.Duration
	SessionTimeout      time.Duration
	StreamingDelay      time.Duration
}

// DefaultConfig returns the package's documented defaults.
func DefaultConfig() Config {
	return Config{
		Mode:                ModeStreamingConcurrent,
		MaxConcurrentChunks: 2,
		ChunkTimeout:        30 * time.Second,
		SessionTimeout:      time.Hour,
		StreamingDelay:      100 * time.Millisecond,
	}
}

// ErrSessionCancelled reports a cancelled generation session. Run does not
// return it itself; cancelling Run's ctx reaches SynthesizeFunc through its
// ctx.
var ErrSessionCancelled = errors.New("scheduler: session cancelled")

// Result is one chunk's synthesis outcome, ready for in-order delivery.
type Result struct {
	Chunk text.Chunk
	Audio []float32
	Err   error
}

// SynthesizeFunc synthesizes one chunk's audio. Implementations should
// respect ctx cancellation and deadlines.
type SynthesizeFunc func(ctx context.Context, chunk text.Chunk) ([]float32, error)

// Scheduler runs chunks through a SynthesizeFunc according to Config.
type Scheduler struct {
	cfg Config
}

// New builds a Scheduler. A zero MaxConcurrentChunks or ChunkTimeout is
// replaced with DefaultConfig's value.
func New(cfg Config) *Scheduler {
	d := DefaultConfig()
	if cfg.MaxConcurrentChunks <= 0 {
		cfg.MaxConcurrentChunks = d.MaxConcurrentChunks
	}
	if cfg.ChunkTimeout <= 0 {
		cfg.ChunkTimeout = d.ChunkTimeout
	}
	if cfg.SessionTimeout <= 0 {
		cfg.SessionTimeout = d.SessionTimeout
	}
	if cfg.Mode == "" {
		cfg.Mode = d.Mode
	}

	return &Scheduler{cfg: cfg}
}

// Run synthesizes chunks per the scheduler's configured mode and returns
// results in chunk order (Results[i].Chunk.Ordinal == i for contiguous
// input). A single-chunk input under ModeStandard and ModeChunkedSequential
// behave identically; they differ only once there is more than one chunk.
func (s *Scheduler) Run(ctx context.Context, chunks []text.Chunk, fn SynthesizeFunc) ([]Result, error) {
	if len(chunks) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.SessionTimeout)
	defer cancel()

	switch s.cfg.Mode {
	case ModeStandard, ModeChunkedSequential:
		return s.runSequential(ctx, chunks, fn)
	case ModeStreamingConcurrent:
		return s.runConcurrent(ctx, chunks, fn)
	default:
		return nil, fmt.Errorf("scheduler: unknown mode %q", s.cfg.Mode)
	}
}

func (s *Scheduler) runSequential(ctx context.Context, chunks []text.Chunk, fn SynthesizeFunc) ([]Result, error) {
	results := make([]Result, len(chunks))
	var errs error

	for i, c := range chunks {
		audio, err := s.synthesizeOne(ctx, c, fn)
		results[i] = Result{Chunk: c, Audio: audio, Err: err}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("chunk %d: %w", c.Ordinal, err))
		}

		if s.cfg.StreamingDelay > 0 && i < len(chunks)-1 {
			select {
			case <-ctx.Done():
				return results, multierr.Append(errs, ctx.Err())
			case <-time.After(s.cfg.StreamingDelay):
			}
		}
	}

	return results, errs
}

func (s *Scheduler) runConcurrent(ctx context.Context, chunks []text.Chunk, fn SynthesizeFunc) ([]Result, error) {
	p := pool.New().WithMaxGoroutines(s.cfg.MaxConcurrentChunks).WithContext(ctx)

	var mu sync.Mutex
	results := make([]Result, len(chunks))

	for _, c := range chunks {
		c := c
		p.Go(func(ctx context.Context) error {
			audio, err := s.synthesizeOne(ctx, c, fn)

			mu.Lock()
			results[c.Ordinal] = Result{Chunk: c, Audio: audio, Err: err}
			mu.Unlock()

			if err != nil {
				return fmt.Errorf("chunk %d: %w", c.Ordinal, err)
			}
			return nil
		})
	}

	err := p.Wait()

	sort.Slice(results, func(i, j int) bool { return results[i].Chunk.Ordinal < results[j].Chunk.Ordinal })

	return results, err
}

func (s *Scheduler) synthesizeOne(ctx context.Context, c text.Chunk, fn SynthesizeFunc) ([]float32, error) {
	chunkCtx, cancel := context.WithTimeout(ctx, s.cfg.ChunkTimeout)
	defer cancel()

	audio, err := fn(chunkCtx, c)
	if err != nil {
		if errors.Is(chunkCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("chunk timed out after %s: %w", s.cfg.ChunkTimeout, err)
		}
		return nil, err
	}

	return audio, nil
}
