package text

import (
	"regexp"
	"strings"
)

// Strategy selects the chunking algorithm.
type Strategy int

const (
	// StrategyAdaptive tries sentence, then phrase, then fixed, in sequence,
	// for each oversize chunk. This is the default.
	StrategyAdaptive Strategy = iota
	StrategySentence
	StrategyPhrase
	StrategyFixed
)

// ChunkerConfig bounds chunk sizes and selects the splitting strategy.
type ChunkerConfig struct {
	Strategy Strategy

	// MaxChunkSize bounds, in characters, how much text is grouped into one
	// chunk; a single sentence (StrategySentence) or clause (StrategyPhrase)
	// longer than it stays one chunk. MinChunkSize is clamped by NewChunker
	// but not applied when splitting, so any chunk may be shorter than it.
	MinChunkSize int
	MaxChunkSize int

	// OverlapSize is the number of trailing characters of the preceding
	// chunk copied into Chunk.Overlap to provide prosodic context. Zero
	// disables overlap.
	OverlapSize int
}

// DefaultChunkerConfig returns the chunker's default tuning.
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		Strategy:     StrategyAdaptive,
		MinChunkSize: 50,
		MaxChunkSize: 400,
		OverlapSize:  0,
	}
}

// Chunk is a semantic fragment of normalized text, a unit of synthesis work.
// Once created by the chunker it is immutable.
type Chunk struct {
	Text            string
	Ordinal         int
	Start           int
	End             int
	EndsAtSentence  bool
	EndsAtParagraph bool
	Overlap         string
}

// Chunker splits normalized text into ordered Chunks per ChunkerConfig.
type Chunker struct {
	cfg ChunkerConfig
}

// NewChunker builds a Chunker from cfg, clamping nonsensical bounds.
func NewChunker(cfg ChunkerConfig) *Chunker {
	if cfg.MaxChunkSize <= 0 {
		cfg.MaxChunkSize = DefaultChunkerConfig().MaxChunkSize
	}
	if cfg.MinChunkSize < 0 || cfg.MinChunkSize > cfg.MaxChunkSize {
		cfg.MinChunkSize = 0
	}
	return &Chunker{cfg: cfg}
}

// abbreviationPeriodRE matches periods inside common abbreviations so they
// can be sentinel-protected before sentence/phrase splitting and restored
// afterward.
var abbreviationPeriodRE = regexp.MustCompile(`(?i)\b(Mr|Mrs|Ms|Dr|Prof|Jr|Sr|St|vs|etc|e\.g|i\.e)\.`)

const periodSentinel = "\x00"

func protectAbbreviationPeriods(s string) string {
	return abbreviationPeriodRE.ReplaceAllStringFunc(s, func(m string) string {
		return strings.TrimSuffix(m, ".") + periodSentinel
	})
}

func restoreAbbreviationPeriods(s string) string {
	return strings.ReplaceAll(s, periodSentinel, ".")
}

var sentenceSplitRE = regexp.MustCompile(`[.!?]+\s+`)
var phraseSplitRE = regexp.MustCompile(`[,;:]\s+`)

// Chunk splits text into ordered Chunks. Empty input yields no chunks.
func (c *Chunker) Chunk(text string) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	protected := protectAbbreviationPeriods(text)

	var segments []segment
	switch c.cfg.Strategy {
	case StrategySentence:
		segments = c.chunkSentence(protected)
	case StrategyPhrase:
		segments = c.chunkPhrase(protected)
	case StrategyFixed:
		segments = c.chunkFixed(protected)
	default:
		segments = c.chunkAdaptive(protected)
	}

	chunks := make([]Chunk, 0, len(segments))
	var prevText string
	for i, seg := range segments {
		restored := restoreAbbreviationPeriods(seg.text)
		trimmed := strings.TrimSpace(restored)
		if trimmed == "" {
			continue
		}

		var overlap string
		if c.cfg.OverlapSize > 0 && i > 0 {
			overlap = lastNChars(prevText, c.cfg.OverlapSize)
		}

		chunks = append(chunks, Chunk{
			Text:            trimmed,
			Ordinal:         len(chunks),
			Start:           seg.start,
			End:             seg.end,
			EndsAtSentence:  seg.endsAtSentence,
			EndsAtParagraph: seg.endsAtParagraph,
			Overlap:         overlap,
		})
		prevText = trimmed
	}

	return chunks
}

type segment struct {
	text            string
	start           int
	end             int
	endsAtSentence  bool
	endsAtParagraph bool
}

// chunkSentence groups sentences, never breaking mid-sentence, accumulating
// until MaxChunkSize would be exceeded.
func (c *Chunker) chunkSentence(text string) []segment {
	sentences := splitOn(text, sentenceSplitRE, true)
	return c.accumulate(sentences, true)
}

// chunkPhrase additionally splits on clause punctuation when a sentence
// chunk exceeds the limit.
func (c *Chunker) chunkPhrase(text string) []segment {
	sentences := splitOn(text, sentenceSplitRE, true)

	var pieces []piece
	for _, s := range sentences {
		if len(s.text) <= c.cfg.MaxChunkSize {
			pieces = append(pieces, s)
			continue
		}
		pieces = append(pieces, splitOn(s.text, phraseSplitRE, false)...)
	}
	return c.accumulate(pieces, true)
}

// chunkFixed applies a hard character cap with word-boundary backoff.
func (c *Chunker) chunkFixed(text string) []segment {
	max := c.cfg.MaxChunkSize
	if max <= 0 {
		return []segment{{text: text, start: 0, end: len(text), endsAtSentence: true}}
	}

	var out []segment
	pos := 0
	for pos < len(text) {
		end := pos + max
		if end >= len(text) {
			out = append(out, segment{text: text[pos:], start: pos, end: len(text), endsAtSentence: true})
			break
		}

		// Word-boundary backoff: if ≥80% of the cap is reached before a
		// space, break there instead of mid-word.
		breakAt := end
		threshold := pos + int(0.8*float64(max))
		for i := end; i > threshold; i-- {
			if text[i] == ' ' {
				breakAt = i
				break
			}
		}

		out = append(out, segment{text: text[pos:breakAt], start: pos, end: breakAt})
		pos = breakAt
		for pos < len(text) && text[pos] == ' ' {
			pos++
		}
	}
	return out
}

// chunkAdaptive tries sentence, then phrase, then fixed, per oversize piece.
func (c *Chunker) chunkAdaptive(text string) []segment {
	sentences := splitOn(text, sentenceSplitRE, true)

	var pieces []piece
	for _, s := range sentences {
		if len(s.text) <= c.cfg.MaxChunkSize {
			pieces = append(pieces, s)
			continue
		}

		phrases := splitOn(s.text, phraseSplitRE, false)
		for _, ph := range phrases {
			if len(ph.text) <= c.cfg.MaxChunkSize {
				pieces = append(pieces, ph)
				continue
			}
			fixed := c.chunkFixed(ph.text)
			for _, f := range fixed {
				pieces = append(pieces, piece{text: f.text, start: ph.start + f.start, end: ph.start + f.end, endsAtSentence: f.endsAtSentence})
			}
		}
	}

	return c.accumulate(pieces, true)
}

type piece = segment

// splitOn splits text on re, keeping the delimiter attached to the preceding
// piece when markSentence is true (used for sentence-terminator splits).
func splitOn(text string, re *regexp.Regexp, markSentence bool) []piece {
	locs := re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []piece{{text: text, start: 0, end: len(text)}}
	}

	var out []piece
	start := 0
	for _, loc := range locs {
		end := loc[1]
		seg := text[start:end]
		if strings.TrimSpace(seg) != "" {
			out = append(out, piece{
				text:           seg,
				start:          start,
				end:            end,
				endsAtSentence: markSentence,
			})
		}
		start = end
	}
	if start < len(text) {
		rest := text[start:]
		if strings.TrimSpace(rest) != "" {
			out = append(out, piece{text: rest, start: start, end: len(text)})
		}
	}
	return out
}

// accumulate greedily groups pieces into chunks bounded by MaxChunkSize.
func (c *Chunker) accumulate(pieces []piece, preserveBoundaryFlags bool) []segment {
	if len(pieces) == 0 {
		return nil
	}

	var out []segment
	var current strings.Builder
	currentStart := pieces[0].start
	endsAtSentence := false

	flush := func(end int) {
		if current.Len() == 0 {
			return
		}
		out = append(out, segment{
			text:           current.String(),
			start:          currentStart,
			end:            end,
			endsAtSentence: endsAtSentence,
		})
		current.Reset()
		endsAtSentence = false
	}

	for i, p := range pieces {
		candidateLen := current.Len() + len(p.text)
		if current.Len() > 0 && candidateLen > c.cfg.MaxChunkSize {
			flush(p.start)
			currentStart = p.start
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(strings.TrimSpace(p.text))
		if preserveBoundaryFlags {
			endsAtSentence = p.endsAtSentence
		}
		if i == len(pieces)-1 {
			flush(p.end)
		}
	}

	return out
}

func lastNChars(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
