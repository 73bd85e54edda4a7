// Package vocab loads the fixed, model-specific phoneme-to-token table that
// defines what the normalization and phonemization pipeline must emit.
package vocab

import (
	"encoding/json"
	"fmt"
	"os"
)

// PadID and UnknownID name the two reserved token ids every table carries.
// A table may reuse the same integer for both (the common case is 0/0).
type file struct {
	Symbols   map[string]int `json:"symbols"`
	PadID     int            `json:"pad_id"`
	UnknownID int            `json:"unknown_id"`
}

// Table is the immutable symbol→token-id mapping loaded at startup. Once
// built it is never mutated; callers share it without locking.
type Table struct {
	ids       map[string]int
	padID     int
	unknownID int
	size      int
}

// Load reads a vocabulary JSON configuration file of the form:
//
//	{"symbols": {"a": 1, "b": 2, ...}, "pad_id": 0, "unknown_id": 0}
//
// and returns an immutable Table. The caller MUST treat the result as
// read-only; Table exposes no mutation methods.
func Load(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: read %s: %w", path, err)
	}

	return loadBytes(raw)
}

func loadBytes(raw []byte) (*Table, error) {
	var f file
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("vocab: decode: %w", err)
	}

	if len(f.Symbols) == 0 {
		return nil, fmt.Errorf("vocab: table has no symbols")
	}

	ids := make(map[string]int, len(f.Symbols))
	maxID := 0
	for sym, id := range f.Symbols {
		if id < 0 {
			return nil, fmt.Errorf("vocab: symbol %q has negative id %d", sym, id)
		}
		ids[sym] = id
		if id > maxID {
			maxID = id
		}
	}

	return &Table{
		ids:       ids,
		padID:     f.PadID,
		unknownID: f.UnknownID,
		size:      maxID + 1,
	}, nil
}

// New builds a Table directly from a symbol→id map, bypassing file I/O. It
// is used by tests and by callers that embed a vocabulary inline.
func New(symbols map[string]int, padID, unknownID int) *Table {
	ids := make(map[string]int, len(symbols))
	maxID := 0
	for sym, id := range symbols {
		ids[sym] = id
		if id > maxID {
			maxID = id
		}
	}

	return &Table{ids: ids, padID: padID, unknownID: unknownID, size: maxID + 1}
}

// Lookup returns the token id for symbol, or UnknownID() if symbol is not
// in the table.
func (t *Table) Lookup(symbol string) int {
	if id, ok := t.ids[symbol]; ok {
		return id
	}
	return t.unknownID
}

// Has reports whether symbol is a member of the vocabulary.
func (t *Table) Has(symbol string) bool {
	_, ok := t.ids[symbol]
	return ok
}

// PadID returns the reserved padding token id.
func (t *Table) PadID() int { return t.padID }

// UnknownID returns the reserved unknown-symbol token id.
func (t *Table) UnknownID() int { return t.unknownID }

// Size returns one past the highest token id in the table, i.e. |V| such
// that every valid token id lies in [0, Size()).
func (t *Table) Size() int { return t.size }

// Coverage returns the fraction of symbols present in the table, along with
// the subset of symbols that are missing. An empty input set reports full
// coverage (1.0, nil) since there is nothing to fail on.
func (t *Table) Coverage(symbols []string) (fraction float64, missing []string) {
	if len(symbols) == 0 {
		return 1.0, nil
	}

	covered := 0
	for _, sym := range symbols {
		if t.Has(sym) {
			covered++
		} else {
			missing = append(missing, sym)
		}
	}

	return float64(covered) / float64(len(symbols)), missing
}

// MustCoverage checks coverage of symbols against a required threshold and
// returns an error describing the shortfall when it is not met. Startup
// MUST call this for every static phoneme table referenced by the
// normalizer/phonemizer and refuse to start (or log prominently) on failure.
func (t *Table) MustCoverage(symbols []string, threshold float64) error {
	fraction, missing := t.Coverage(symbols)
	if fraction < threshold {
		return fmt.Errorf(
			"vocab: coverage %.4f below required %.4f, missing %d symbols: %v",
			fraction, threshold, len(missing), missing,
		)
	}
	return nil
}
