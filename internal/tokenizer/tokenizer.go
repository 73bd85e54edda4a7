// Package tokenizer maps a phoneme string onto the integer-token alphabet a
// loaded vocabulary defines, character by character.
package tokenizer

import (
	"log/slog"

	"github.com/example/ttscore/internal/vocab"
)

// Tokenizer encodes a phoneme string into vocabulary token ids.
type Tokenizer interface {
	Encode(phonemes string) []int64
}

// CharTokenizer is a character-by-character tokenizer over a Table: it
// never errors, falling back to the table's unknown id for any symbol
// absent from the vocabulary, and logs when it does. Empty input yields a
// single pad token.
type CharTokenizer struct {
	table *vocab.Table
}

// New builds a CharTokenizer over table.
func New(table *vocab.Table) *CharTokenizer {
	return &CharTokenizer{table: table}
}

// Encode returns one token id per rune in phonemes. Empty input produces
// []int64{pad_id}. Unknown tokens are logged at Warn, with their count, but
// never raise an error; the count is not returned to the caller.
func (t *CharTokenizer) Encode(phonemes string) []int64 {
	if phonemes == "" {
		return []int64{int64(t.table.PadID())}
	}

	runes := []rune(phonemes)
	ids := make([]int64, 0, len(runes))
	unknownCount := 0

	for _, r := range runes {
		sym := string(r)
		id := t.table.Lookup(sym)
		if id == t.table.UnknownID() && !t.table.Has(sym) {
			unknownCount++
		}
		ids = append(ids, int64(id))
	}

	if unknownCount > 0 {
		slog.Warn("tokenizer encountered unknown phoneme symbols",
			slog.Int("unknown_count", unknownCount),
			slog.Int("total_count", len(runes)),
		)
	}

	return ids
}
