package voice_test

import (
	"path/filepath"
	"testing"

	"github.com/example/ttscore/internal/safetensors"
	"github.com/example/ttscore/internal/voice"
)

func writeVoiceFile(t *testing.T, dir, name string, vec []float32) {
	t.Helper()
	path := filepath.Join(dir, name+".safetensors")
	err := safetensors.WriteFile(path, []safetensors.Tensor{
		{Name: "style", Shape: []int64{int64(len(vec))}, Data: vec},
	})
	if err != nil {
		t.Fatalf("write voice file: %v", err)
	}
}

func constantVector(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestLoad_CachesAndCountsHitsAndMisses(t *testing.T) {
	dir := t.TempDir()
	writeVoiceFile(t, dir, "af_heart", constantVector(safetensors.StyleDim, 0.5))

	store, err := voice.New(dir, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := store.Load("af_heart"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := store.Load("af_heart"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	stats := store.Stats()
	if stats.Loads != 1 {
		t.Errorf("Loads = %d, want 1 (disk read coalesced/cached)", stats.Loads)
	}
	if stats.Hits != 1 {
		t.Errorf("Hits = %d, want 1", stats.Hits)
	}
}

func TestLoad_MissingVoice_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	store, err := voice.New(dir, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := store.Load("nonexistent"); err == nil {
		t.Fatal("expected error for missing voice file")
	}
}

// S5 / testable property 6: blend([(v, 1.0)]) == load(v) bit-for-bit.
func TestBlend_SingleVoiceIdentity(t *testing.T) {
	dir := t.TempDir()
	vec := constantVector(safetensors.StyleDim, 0.25)
	writeVoiceFile(t, dir, "af_heart", vec)

	store, err := voice.New(dir, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	loaded, err := store.Load("af_heart")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	blended, err := store.Blend([]voice.Weighted{{Name: "af_heart", Weight: 1.0}}, voice.MethodWeightedAverage)
	if err != nil {
		t.Fatalf("Blend: %v", err)
	}

	for i := range loaded.Data {
		if blended.Data[i] != loaded.Data[i] {
			t.Fatalf("blend mismatch at %d: %v != %v", i, blended.Data[i], loaded.Data[i])
		}
	}
}

// S5: blend equal-weighted.
func TestBlend_TwoVoicesWeightedAverage(t *testing.T) {
	dir := t.TempDir()
	writeVoiceFile(t, dir, "v1", constantVector(safetensors.StyleDim, 1.0))
	writeVoiceFile(t, dir, "v2", constantVector(safetensors.StyleDim, 3.0))

	store, err := voice.New(dir, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	blended, err := store.Blend([]voice.Weighted{
		{Name: "v1", Weight: 0.5},
		{Name: "v2", Weight: 0.5},
	}, voice.MethodWeightedAverage)
	if err != nil {
		t.Fatalf("Blend: %v", err)
	}

	for i, v := range blended.Data {
		if v < 1.999 || v > 2.001 {
			t.Fatalf("blended[%d] = %v, want ~2.0", i, v)
		}
	}
}

func TestBlend_WeightsNormalized(t *testing.T) {
	dir := t.TempDir()
	writeVoiceFile(t, dir, "v1", constantVector(safetensors.StyleDim, 2.0))
	writeVoiceFile(t, dir, "v2", constantVector(safetensors.StyleDim, 4.0))

	store, err := voice.New(dir, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Unnormalized weights 2:2 should behave identically to 0.5:0.5.
	blended, err := store.Blend([]voice.Weighted{
		{Name: "v1", Weight: 2},
		{Name: "v2", Weight: 2},
	}, voice.MethodWeightedAverage)
	if err != nil {
		t.Fatalf("Blend: %v", err)
	}
	for i, v := range blended.Data {
		if v < 2.999 || v > 3.001 {
			t.Fatalf("blended[%d] = %v, want ~3.0", i, v)
		}
	}
}

func TestBlend_EmptyConstituents_ReturnsError(t *testing.T) {
	dir := t.TempDir()
	store, err := voice.New(dir, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := store.Blend(nil, voice.MethodWeightedAverage); err == nil {
		t.Fatal("expected error for empty constituent list")
	}
}

func TestBlend_CachedByIdentity(t *testing.T) {
	dir := t.TempDir()
	writeVoiceFile(t, dir, "v1", constantVector(safetensors.StyleDim, 1.0))
	writeVoiceFile(t, dir, "v2", constantVector(safetensors.StyleDim, 3.0))

	store, err := voice.New(dir, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	request := []voice.Weighted{{Name: "v1", Weight: 0.5}, {Name: "v2", Weight: 0.5}}

	first, err := store.Blend(request, voice.MethodWeightedAverage)
	if err != nil {
		t.Fatalf("Blend: %v", err)
	}
	loadsAfterFirst := store.Stats().Loads

	second, err := store.Blend(request, voice.MethodWeightedAverage)
	if err != nil {
		t.Fatalf("Blend: %v", err)
	}

	if store.Stats().Loads != loadsAfterFirst {
		t.Errorf("Loads = %d, want %d (second blend should hit the blend cache, not reload constituents)", store.Stats().Loads, loadsAfterFirst)
	}
	if second.Hash != first.Hash || second.Name != first.Name {
		t.Errorf("second blend = %+v, want identical to first %+v", second, first)
	}
}

func TestEvictAndClear(t *testing.T) {
	dir := t.TempDir()
	writeVoiceFile(t, dir, "af_heart", constantVector(safetensors.StyleDim, 0.1))

	store, err := voice.New(dir, 8)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := store.Load("af_heart"); err != nil {
		t.Fatalf("Load: %v", err)
	}

	store.Evict("af_heart")
	if len(store.List()) != 0 {
		t.Error("expected cache empty after evict")
	}

	if _, err := store.Load("af_heart"); err != nil {
		t.Fatalf("Load after evict: %v", err)
	}
	store.Clear()
	if len(store.List()) != 0 {
		t.Error("expected cache empty after clear")
	}
}

