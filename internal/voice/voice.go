// Package voice implements the voice-embedding store: lazy loading, a
// bounded LRU cache with coalesced concurrent loads, and weighted blending
// of style vectors.
package voice

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	vecmath "github.com/cwbudde/algo-vecmath"
	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/atomic"

	"github.com/example/ttscore/internal/safetensors"
)

// Method selects the voice-blending algorithm. Only weighted_average and
// energy_preserving are implemented; an attention-weighted blend was
// considered but dropped (see DESIGN.md) since its math is underspecified.
type Method string

const (
	MethodWeightedAverage  Method = "weighted_average"
	MethodEnergyPreserving Method = "energy_preserving"
)

// Embedding is a loaded or blended voice: the canonical [256] style vector
// plus its cache identity.
type Embedding struct {
	Name string
	Hash string
	Data []float32
}

// Weighted names a constituent voice and its (pre-normalization) weight in
// a blend request.
type Weighted struct {
	Name   string
	Weight float64
}

// Stats exposes cache-hit observability.
type Stats struct {
	Hits   int64
	Misses int64
	Loads  int64
}

// Store loads, caches, and blends voice embeddings. It is safe for
// concurrent use; concurrent loads of the same voice are coalesced so only
// one file read occurs for N concurrent requests.
type Store struct {
	dir        string
	cache      *lru.Cache[string, Embedding]
	blendCache *lru.Cache[string, Embedding]

	mu      sync.Mutex
	pending map[string]chan struct{}
	results map[string]loadResult

	hits   atomic.Int64
	misses atomic.Int64
	loads  atomic.Int64
}

type loadResult struct {
	embedding Embedding
	err       error
}

// New builds a Store rooted at dir (the directory containing
// "<name>.safetensors" voice files), with an LRU cache of the given size.
func New(dir string, cacheSize int) (*Store, error) {
	if cacheSize <= 0 {
		cacheSize = 64
	}

	cache, err := lru.New[string, Embedding](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("voice: build cache: %w", err)
	}

	blendCache, err := lru.New[string, Embedding](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("voice: build blend cache: %w", err)
	}

	return &Store{
		dir:        dir,
		cache:      cache,
		blendCache: blendCache,
		pending:    make(map[string]chan struct{}),
		results:    make(map[string]loadResult),
	}, nil
}

// List returns the names of voices currently resident in the cache. It does
// not scan the filesystem; callers that need the full on-disk catalog use
// Discover.
func (s *Store) List() []string {
	keys := s.cache.Keys()
	out := make([]string, len(keys))
	copy(out, keys)
	sort.Strings(out)
	return out
}

// Discover scans the store's voice directory for "<name>.safetensors" files
// and returns their names, sorted. Unlike List, this reflects every voice
// available on disk, not just those already loaded into the cache.
func (s *Store) Discover() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("voice: discover %q: %w", s.dir, err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if filepath.Ext(e.Name()) != ".safetensors" {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".safetensors"))
	}

	sort.Strings(names)
	return names, nil
}

// Load returns the style vector for name, loading it from disk on first
// use. The result is cached by reference and shared across callers;
// concurrent Load calls for the same name share one file read.
func (s *Store) Load(name string) (Embedding, error) {
	if emb, ok := s.cache.Get(name); ok {
		s.hits.Inc()
		return emb, nil
	}

	s.mu.Lock()
	if ch, inFlight := s.pending[name]; inFlight {
		s.mu.Unlock()
		<-ch
		s.mu.Lock()
		res := s.results[name]
		s.mu.Unlock()
		return res.embedding, res.err
	}

	ch := make(chan struct{})
	s.pending[name] = ch
	s.mu.Unlock()

	s.misses.Inc()
	s.loads.Inc()
	emb, err := s.loadFromDisk(name)

	s.mu.Lock()
	s.results[name] = loadResult{embedding: emb, err: err}
	delete(s.pending, name)
	s.mu.Unlock()
	close(ch)

	if err != nil {
		return Embedding{}, err
	}

	s.cache.Add(name, emb)
	return emb, nil
}

func (s *Store) loadFromDisk(name string) (Embedding, error) {
	path := fmt.Sprintf("%s/%s.safetensors", strings.TrimRight(s.dir, "/"), name)
	data, err := safetensors.LoadVoiceEmbedding(path)
	if err != nil {
		return Embedding{}, fmt.Errorf("voice: load %q: %w", name, err)
	}

	slog.Debug("voice embedding loaded from disk", slog.String("voice", name))

	return Embedding{
		Name: name,
		Hash: contentHash(data),
		Data: data,
	}, nil
}

// Evict removes name from the cache.
func (s *Store) Evict(name string) { s.cache.Remove(name) }

// Clear releases all cache entries, base voices and blends alike.
func (s *Store) Clear() {
	s.cache.Purge()
	s.blendCache.Purge()
}

// Stats returns a snapshot of cache-hit observability counters.
func (s *Store) Stats() Stats {
	return Stats{Hits: s.hits.Load(), Misses: s.misses.Load(), Loads: s.loads.Load()}
}

// Blend computes a weighted combination of constituent voices: normalize
// weights to sum to 1, reduce each to its [256]
// style vector, compute the weighted sum, and optionally rescale to
// preserve the weighted-average L2 energy. Cached separately from base
// voices by blend identity, with concurrent identical blends coalesced the
// same way Load coalesces concurrent disk reads.
func (s *Store) Blend(constituents []Weighted, method Method) (Embedding, error) {
	if len(constituents) == 0 {
		return Embedding{}, fmt.Errorf("voice: blend requires at least one constituent")
	}

	identity := blendIdentity(constituents, method)

	if emb, ok := s.blendCache.Get(identity); ok {
		s.hits.Inc()
		return emb, nil
	}

	s.mu.Lock()
	if ch, inFlight := s.pending[identity]; inFlight {
		s.mu.Unlock()
		<-ch
		s.mu.Lock()
		res := s.results[identity]
		s.mu.Unlock()
		return res.embedding, res.err
	}

	ch := make(chan struct{})
	s.pending[identity] = ch
	s.mu.Unlock()

	s.misses.Inc()
	emb, err := s.computeBlend(constituents, method, identity)

	s.mu.Lock()
	s.results[identity] = loadResult{embedding: emb, err: err}
	delete(s.pending, identity)
	s.mu.Unlock()
	close(ch)

	if err != nil {
		return Embedding{}, err
	}

	s.blendCache.Add(identity, emb)
	return emb, nil
}

func (s *Store) computeBlend(constituents []Weighted, method Method, identity string) (Embedding, error) {
	totalWeight := 0.0
	for _, c := range constituents {
		totalWeight += c.Weight
	}
	if totalWeight <= 0 {
		return Embedding{}, fmt.Errorf("voice: blend weights must sum to a positive value")
	}

	embeddings := make([]Embedding, len(constituents))
	normalizedWeights := make([]float64, len(constituents))
	for i, c := range constituents {
		emb, err := s.Load(c.Name)
		if err != nil {
			return Embedding{}, err
		}
		embeddings[i] = emb
		normalizedWeights[i] = c.Weight / totalWeight
	}

	dim := len(embeddings[0].Data)
	blended := make([]float32, dim)
	for i, emb := range embeddings {
		scaled := vecmath.Scale(emb.Data, float32(normalizedWeights[i]))
		blended = vecmath.Add(blended, scaled)
	}

	if method == MethodEnergyPreserving {
		weightedNorm := 0.0
		for i, emb := range embeddings {
			weightedNorm += normalizedWeights[i] * float64(vecmath.Norm2(emb.Data))
		}
		blendedNorm := float64(vecmath.Norm2(blended))
		if blendedNorm > 1e-12 {
			blended = vecmath.Scale(blended, float32(weightedNorm/blendedNorm))
		}
	}

	return Embedding{
		Name: identity,
		Hash: contentHash(blended),
		Data: blended,
	}, nil
}

// blendIdentity derives a deterministic identity string from the sorted
// (name, weight) list and the method name, used as the blend's cache key.
func blendIdentity(constituents []Weighted, method Method) string {
	sorted := append([]Weighted(nil), constituents...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	b.WriteString(string(method))
	for _, c := range sorted {
		fmt.Fprintf(&b, "|%s:%.6f", c.Name, c.Weight)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return "blend_" + hex.EncodeToString(sum[:8])
}

func contentHash(data []float32) string {
	h := sha256.New()
	buf := make([]byte, 4)
	for _, v := range data {
		bits := math.Float32bits(v)
		buf[0] = byte(bits)
		buf[1] = byte(bits >> 8)
		buf[2] = byte(bits >> 16)
		buf[3] = byte(bits >> 24)
		h.Write(buf)
	}
	return hex.EncodeToString(h.Sum(nil))[:16]
}
