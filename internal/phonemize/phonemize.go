// Package phonemize converts normalized surface-form text into a phoneme
// string drawn from the model's vocabulary, preferring an external
// espeak-ng process and falling back to a small built-in lexicon.
package phonemize

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/example/ttscore/internal/vocab"
)

// Config configures a Phonemizer.
type Config struct {
	// EspeakPath is the espeak-ng executable to invoke. Empty uses
	// "espeak-ng" from PATH.
	EspeakPath string
	// Timeout bounds the external phonemizer call to a few hundred
	// milliseconds per request.
	Timeout time.Duration
	// DisableExternal forces fallback-only operation (for environments
	// without espeak-ng installed).
	DisableExternal bool
	// CacheSize bounds the LRU result cache keyed on (text, voice).
	CacheSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		EspeakPath: "espeak-ng",
		Timeout:    300 * time.Millisecond,
		CacheSize:  2048,
	}
}

// substitutionTable maps phonemes espeak-ng may emit that aren't in every
// model vocabulary to the closest in-vocabulary substitute.
var substitutionTable = map[rune]rune{
	'ə': 'ɛ',
	'ʊ': 'u',
	'ɜ': 'ɔ',
}

var stressMarkerReplacer = strings.NewReplacer("ˈ", "", "ˌ", "", "ː", "")

type cacheKey struct {
	text  string
	voice string
}

// Phonemizer converts text to a phoneme string in the vocabulary alphabet.
type Phonemizer struct {
	cfg     Config
	vocab   *vocab.Table
	lexicon *Lexicon
	cache   *lru.Cache[cacheKey, Result]
}

// Result is the phonemizer's cached output for a (text, voice) pair.
type Result struct {
	Phonemes string
	UsedExternal bool
}

// New builds a Phonemizer backed by v for substitution validation and a
// built-in fallback lexicon.
func New(cfg Config, v *vocab.Table) (*Phonemizer, error) {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultConfig().CacheSize
	}

	cache, err := lru.New[cacheKey, Result](cfg.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("phonemize: build cache: %w", err)
	}

	return &Phonemizer{
		cfg:     cfg,
		vocab:   v,
		lexicon: NewLexicon(),
		cache:   cache,
	}, nil
}

// Phonemize returns the phoneme string for text under voice, consulting the
// LRU cache first. voice only affects cache-keying in this core (per-voice
// phoneme variation is a property of the acoustic model, not this stage).
func (p *Phonemizer) Phonemize(ctx context.Context, text, voice string) (Result, error) {
	key := cacheKey{text: text, voice: voice}
	if cached, ok := p.cache.Get(key); ok {
		return cached, nil
	}

	result, err := p.phonemizeUncached(ctx, text)
	if err != nil {
		return Result{}, err
	}

	p.cache.Add(key, result)
	return result, nil
}

func (p *Phonemizer) phonemizeUncached(ctx context.Context, text string) (Result, error) {
	if !p.cfg.DisableExternal {
		phonemes, err := p.runEspeak(ctx, text)
		if err == nil {
			return Result{Phonemes: p.cleanExternalOutput(phonemes, text), UsedExternal: true}, nil
		}
	}

	return Result{Phonemes: p.lexicon.Phonemize(text), UsedExternal: false}, nil
}

func (p *Phonemizer) runEspeak(ctx context.Context, text string) (string, error) {
	exe := p.cfg.EspeakPath
	if exe == "" {
		exe = "espeak-ng"
	}

	timeout := p.cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultConfig().Timeout
	}

	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(cctx, exe, "-q", "--ipa", "-v", "en-us")
	cmd.Stdin = strings.NewReader(text)

	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("phonemize: espeak-ng: %w", err)
	}

	return out.String(), nil
}

var linkingCharRE = regexp.MustCompile(`[‿_]`)
var multiSpaceRE = regexp.MustCompile(`\s+`)
var wordBoundaryTouchRE = regexp.MustCompile(`([a-zɐ-ʯ])([a-zɐ-ʯ])`)

// cleanExternalOutput post-processes raw espeak-ng IPA output: strip
// stress/length markers, replace linking
// characters with spaces, substitute out-of-vocabulary phonemes, and
// separate touching word-boundary phonemes.
//
// text is the original input espeak-ng phonemized, used only to recover the
// expected word count: espeak-ng occasionally emits connected-speech output
// where two words' phonemes run together with no separator at all (distinct
// from the tie-bar/underscore linking case linkingCharRE already handles).
// When fewer space-separated tokens come back than words went in, the
// shortfall is made up by splitting merged tokens at their first
// alphabetic-phoneme boundary.
func (p *Phonemizer) cleanExternalOutput(raw, text string) string {
	s := stressMarkerReplacer.Replace(raw)
	s = linkingCharRE.ReplaceAllString(s, " ")

	var b strings.Builder
	for _, r := range s {
		if sub, ok := substitutionTable[r]; ok && p.vocab != nil && !p.vocab.Has(string(r)) {
			b.WriteRune(sub)
			continue
		}
		b.WriteRune(r)
	}
	s = b.String()

	s = multiSpaceRE.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	return restoreWordBoundaries(s, len(strings.Fields(text)))
}

// restoreWordBoundaries splits merged tokens in s, one touching boundary at a
// time, until it has at least wantWords space-separated tokens or no more
// touching boundaries can be found.
func restoreWordBoundaries(s string, wantWords int) string {
	if wantWords <= 1 {
		return s
	}

	words := strings.Fields(s)
	for len(words) < wantWords {
		splitAt := -1
		wordIdx := -1
		for i, w := range words {
			if loc := wordBoundaryTouchRE.FindStringSubmatchIndex(w); loc != nil {
				wordIdx, splitAt = i, loc[3]
				break
			}
		}
		if wordIdx == -1 {
			break
		}

		w := words[wordIdx]
		left, right := w[:splitAt], w[splitAt:]
		words = append(words[:wordIdx], append([]string{left, right}, words[wordIdx+1:]...)...)
	}

	return strings.Join(words, " ")
}
