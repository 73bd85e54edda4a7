package text_test

import (
	"strings"
	"testing"

	"github.com/example/ttscore/internal/text"
)

func TestChunker_EmptyInput_ReturnsNil(t *testing.T) {
	c := text.NewChunker(text.DefaultChunkerConfig())
	if chunks := c.Chunk("   "); chunks != nil {
		t.Errorf("expected nil chunks for empty input, got %v", chunks)
	}
}

func TestChunker_OrdinalsContiguousFromZero(t *testing.T) {
	cfg := text.DefaultChunkerConfig()
	cfg.MaxChunkSize = 20
	c := text.NewChunker(cfg)

	chunks := c.Chunk("One sentence here. Another one follows. And a third one too.")
	for i, ch := range chunks {
		if ch.Ordinal != i {
			t.Errorf("chunk %d has ordinal %d", i, ch.Ordinal)
		}
	}
}

func TestChunker_NeverBreaksMidSentence_SentenceStrategy(t *testing.T) {
	cfg := text.ChunkerConfig{Strategy: text.StrategySentence, MaxChunkSize: 10000}
	c := text.NewChunker(cfg)

	input := "Short one. Short two. Short three."
	chunks := c.Chunk(input)
	if len(chunks) != 1 {
		t.Fatalf("expected a single chunk within budget, got %d: %v", len(chunks), chunks)
	}
}

func TestChunker_FixedStrategy_RespectsWordBoundaryBackoff(t *testing.T) {
	cfg := text.ChunkerConfig{Strategy: text.StrategyFixed, MaxChunkSize: 20}
	c := text.NewChunker(cfg)

	input := "a b c d e f g h i j k l m n o p q r s t u v w x y z"
	chunks := c.Chunk(input)
	for _, ch := range chunks {
		if len(ch.Text) > 20 {
			t.Errorf("chunk exceeds MaxChunkSize: %q (%d chars)", ch.Text, len(ch.Text))
		}
	}
}

func TestChunker_AbbreviationPeriodsPreserved(t *testing.T) {
	cfg := text.ChunkerConfig{Strategy: text.StrategySentence, MaxChunkSize: 10000}
	c := text.NewChunker(cfg)

	input := "Dr. Smith arrived. He was on time."
	chunks := c.Chunk(input)

	joined := ""
	for _, ch := range chunks {
		joined += ch.Text + " "
	}
	if !strings.Contains(joined, "Dr.") {
		t.Errorf("expected 'Dr.' to survive chunking intact, got: %q", joined)
	}
}

func TestChunker_OverlapPopulatedWhenConfigured(t *testing.T) {
	cfg := text.ChunkerConfig{Strategy: text.StrategySentence, MaxChunkSize: 15, OverlapSize: 5}
	c := text.NewChunker(cfg)

	chunks := c.Chunk("First sentence here. Second sentence here. Third sentence here.")
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks to exercise overlap, got %d", len(chunks))
	}
	for i, ch := range chunks {
		if i == 0 {
			if ch.Overlap != "" {
				t.Errorf("first chunk should have no overlap, got %q", ch.Overlap)
			}
			continue
		}
		if ch.Overlap == "" {
			t.Errorf("chunk %d expected non-empty overlap", i)
		}
	}
}

func TestChunker_AdaptiveFallsBackToFixedForOversizeSentence(t *testing.T) {
	cfg := text.ChunkerConfig{Strategy: text.StrategyAdaptive, MaxChunkSize: 30}
	c := text.NewChunker(cfg)

	longWord := strings.Repeat("a very long run of words without punctuation ", 3)
	chunks := c.Chunk(longWord)
	if len(chunks) < 2 {
		t.Fatalf("expected the oversize sentence to be split, got %d chunks", len(chunks))
	}
}

// S4-adjacent: round-trip recovers the words in order (overlap excluded).
func TestChunker_RoundTripRecoversWordsInOrder(t *testing.T) {
	cfg := text.ChunkerConfig{Strategy: text.StrategySentence, MaxChunkSize: 25}
	c := text.NewChunker(cfg)

	input := "Hello there friend. How are you today. I am doing well thanks."
	chunks := c.Chunk(input)

	var rebuilt []string
	for _, ch := range chunks {
		rebuilt = append(rebuilt, strings.Fields(ch.Text)...)
	}

	want := strings.Fields(input)
	if len(rebuilt) != len(want) {
		t.Fatalf("word count mismatch: got %d, want %d (%v vs %v)", len(rebuilt), len(want), rebuilt, want)
	}
	for i := range want {
		if rebuilt[i] != want[i] {
			t.Errorf("word %d mismatch: got %q, want %q", i, rebuilt[i], want[i])
		}
	}
}
