// Package inference drives the acoustic model: a single ONNX graph taking
// token ids, a style vector, and a speed scalar, and producing raw audio
// samples. It adapts the multi-graph Moshi/Mimi session plumbing down to
// the one-graph shape this model family needs.
package inference

import "fmt"

// TensorDType is the element type carried by a Tensor.
type TensorDType string

const (
	DTypeFloat32 TensorDType = "float32"
	DTypeInt64   TensorDType = "int64"
)

// Tensor is a named-shape, typed buffer passed to or returned from the
// acoustic graph.
type Tensor struct {
	dtype TensorDType
	shape []int64
	data  any
}

// NewTensor builds a Tensor from a flat data slice and its shape, validating
// that the shape's element count matches len(data).
func NewTensor[T ~int64 | ~float32](data []T, shape []int64) (*Tensor, error) {
	dtype, err := dtypeFromSlice(data)
	if err != nil {
		return nil, err
	}

	if err := validateShapeAgainstData(shape, len(data)); err != nil {
		return nil, err
	}

	out := append([]T(nil), data...)

	return &Tensor{
		dtype: dtype,
		shape: append([]int64(nil), shape...),
		data:  out,
	}, nil
}

func (t *Tensor) DType() TensorDType { return t.dtype }

func (t *Tensor) Shape() []int64 { return append([]int64(nil), t.shape...) }

func (t *Tensor) Data() any {
	switch v := t.data.(type) {
	case []float32:
		return append([]float32(nil), v...)
	case []int64:
		return append([]int64(nil), v...)
	default:
		return nil
	}
}

func dtypeFromSlice[T ~int64 | ~float32](_ []T) (TensorDType, error) {
	var zero T
	switch any(zero).(type) {
	case int64:
		return DTypeInt64, nil
	case float32:
		return DTypeFloat32, nil
	default:
		return "", fmt.Errorf("unsupported tensor data type %T", zero)
	}
}

func validateShapeAgainstData(shape []int64, dataLen int) error {
	count, err := elementCount(shape)
	if err != nil {
		return err
	}
	if count != dataLen {
		return fmt.Errorf("shape %v expects %d elements, got %d", shape, count, dataLen)
	}
	return nil
}

func elementCount(shape []int64) (int, error) {
	if len(shape) == 0 {
		return 1, nil
	}

	count := int64(1)
	for i, dim := range shape {
		if dim < 1 {
			return 0, fmt.Errorf("shape[%d]=%d is not positive", i, dim)
		}
		count *= dim
	}

	return int(count), nil
}
