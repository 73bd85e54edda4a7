package phonemize

import (
	"sort"
	"strings"
)

// Lexicon is the built-in fallback phonemizer: a small word-level table
// plus a character-level map, used when the external phonemizer is
// unavailable or times out. It only ever emits symbols from this fixed
// output alphabet, which callers configure as a subset of their vocabulary.
type Lexicon struct {
	words map[string]string
	chars map[rune]string
}

// commonWords is the curated word-level lexicon: a few hundred entries in a
// full build; this core ships a representative seed
// set covering the highest-frequency function words and the glossary
// example words).
var commonWords = map[string]string{
	"the":     "ðə",
	"a":       "ə",
	"is":      "ɪz",
	"are":     "ɑr",
	"hello":   "hɛloʊ",
	"world":   "wɜrld",
	"i":       "aɪ",
	"will":    "wɪl",
	"not":     "nɑt",
	"you":     "ju",
	"to":      "tu",
	"of":      "ʌv",
	"and":     "ænd",
	"resume":  "rɛzuːmeɪ",
	"colonel": "kɜrnəl",
}

// charMap is the character-level fallback used for any word not found in
// the word lexicon: a plain grapheme-to-approximate-phoneme map.
var charMap = map[rune]string{
	'a': "æ", 'b': "b", 'c': "k", 'd': "d", 'e': "ɛ", 'f': "f", 'g': "g",
	'h': "h", 'i': "ɪ", 'j': "dʒ", 'k': "k", 'l': "l", 'm': "m", 'n': "n",
	'o': "ɑ", 'p': "p", 'q': "k", 'r': "r", 's': "s", 't': "t", 'u': "ʌ",
	'v': "v", 'w': "w", 'x': "ks", 'y': "j", 'z': "z",
	' ': " ", '.': ".", ',': ",", '!': "!", '?': "?",
}

// NewLexicon builds the default built-in fallback lexicon.
func NewLexicon() *Lexicon {
	return &Lexicon{words: commonWords, chars: charMap}
}

// Phonemize converts text word-by-word, preferring the word-level lexicon
// and falling back to the character-level map so that only V-member
// symbols are ever emitted.
func (l *Lexicon) Phonemize(text string) string {
	fields := strings.Fields(text)
	out := make([]string, 0, len(fields))

	for _, word := range fields {
		trimmed := strings.ToLower(strings.Trim(word, ".,!?;:\"'"))
		if ph, ok := l.words[trimmed]; ok {
			out = append(out, ph)
			continue
		}
		out = append(out, l.phonemizeChars(trimmed))
	}

	return strings.Join(out, " ")
}

// FallbackSymbols returns the distinct single-rune symbols the built-in
// fallback lexicon can ever emit: every rune in charMap's values (the
// character-level fallback) plus every rune in commonWords' values (the
// curated word-level table). This is the fixed output alphabet startup
// coverage checks the vocabulary table against, at the same per-rune
// granularity CharTokenizer.Encode consumes at runtime.
func FallbackSymbols() []string {
	seen := make(map[string]struct{})
	add := func(phonemes string) {
		for _, r := range phonemes {
			seen[string(r)] = struct{}{}
		}
	}
	for _, ph := range charMap {
		add(ph)
	}
	for _, ph := range commonWords {
		add(ph)
	}

	symbols := make([]string, 0, len(seen))
	for s := range seen {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)
	return symbols
}

func (l *Lexicon) phonemizeChars(word string) string {
	var b strings.Builder
	for _, r := range word {
		if ph, ok := l.chars[r]; ok {
			b.WriteString(ph)
		}
	}
	return b.String()
}
