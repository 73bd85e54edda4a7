package safetensors

import (
	"errors"
	"fmt"
	"math"
)

// Tensor holds a single tensor loaded from a safetensors file.
type Tensor struct {
	Name  string
	Shape []int64
	Data  []float32
}

// LoadFirstTensor reads a safetensors file and returns the first float32 tensor.
// The safetensors format is: 8-byte LE header length → JSON header → raw tensor data.
func LoadFirstTensor(path string) (*Tensor, error) {
	store, err := OpenStore(path, StoreOptions{})
	if err != nil {
		return nil, err
	}
	defer store.Close()

	names := store.Names()
	if len(names) == 0 {
		return nil, errors.New("safetensors: no tensors found")
	}

	return store.Tensor(names[0])
}

// LoadFirstTensorFromBytes decodes a safetensors payload and returns the first
// float32 tensor.
func LoadFirstTensorFromBytes(data []byte) (*Tensor, error) {
	store, err := OpenStoreFromBytes(data, StoreOptions{})
	if err != nil {
		return nil, err
	}
	defer store.Close()

	names := store.Names()
	if len(names) == 0 {
		return nil, errors.New("safetensors: no tensors found")
	}

	return store.Tensor(names[0])
}

// StyleDim is the canonical per-voice style vector width required by the
// acoustic model's `style` input (see internal/inference).
const StyleDim = 256

// LoadVoiceEmbedding loads a voice embedding from a safetensors file and
// reduces it to the canonical [256] style vector. The on-disk tensor may be
// shaped either [256] or [510, 256]; for the latter, row 0 is the style
// vector used by the core and the remaining rows are ignored. Any other
// shape, a non-finite value, or an empty tensor is rejected.
func LoadVoiceEmbedding(path string) ([]float32, error) {
	tensor, err := LoadFirstTensor(path)
	if err != nil {
		return nil, err
	}

	return ReduceToStyleVector(tensor)
}

// LoadVoiceEmbeddingFromBytes is LoadVoiceEmbedding for an in-memory payload.
func LoadVoiceEmbeddingFromBytes(data []byte) ([]float32, error) {
	tensor, err := LoadFirstTensorFromBytes(data)
	if err != nil {
		return nil, err
	}

	return ReduceToStyleVector(tensor)
}

// ReduceToStyleVector validates a voice-embedding tensor's shape ([256] or
// [510, 256]) and returns the [256] style
// row, copying so the caller may retain the tensor independently.
func ReduceToStyleVector(tensor *Tensor) ([]float32, error) {
	if tensor == nil {
		return nil, errors.New("safetensors: nil voice embedding tensor")
	}

	var style []float32

	switch {
	case len(tensor.Shape) == 1 && tensor.Shape[0] == StyleDim:
		style = append([]float32(nil), tensor.Data...)
	case len(tensor.Shape) == 2 && tensor.Shape[0] == 510 && tensor.Shape[1] == StyleDim:
		style = append([]float32(nil), tensor.Data[:StyleDim]...)
	default:
		return nil, fmt.Errorf("safetensors: voice embedding has shape %v, expected [%d] or [510, %d]", tensor.Shape, StyleDim, StyleDim)
	}

	if len(style) == 0 {
		return nil, errors.New("safetensors: voice embedding is empty")
	}

	for i, v := range style {
		if f := float64(v); math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("safetensors: voice embedding contains non-finite value at index %d", i)
		}
	}

	return style, nil
}
