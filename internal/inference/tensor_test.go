package inference

import "testing"

func TestNewTensor_ValidatesShapeAgainstDataLength(t *testing.T) {
	if _, err := NewTensor([]float32{1, 2, 3}, []int64{1, 2}); err == nil {
		t.Fatal("expected error: shape [1,2] requires 2 elements, got 3")
	}
}

func TestNewTensor_ValidShapeSucceeds(t *testing.T) {
	tn, err := NewTensor([]int64{1, 2, 3, 4}, []int64{1, 4})
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}
	if tn.DType() != DTypeInt64 {
		t.Errorf("DType() = %v, want %v", tn.DType(), DTypeInt64)
	}
	data, ok := tn.Data().([]int64)
	if !ok || len(data) != 4 {
		t.Fatalf("Data() = %v", tn.Data())
	}
}

func TestNewTensor_DataIsCopiedNotAliased(t *testing.T) {
	src := []float32{1, 2}
	tn, err := NewTensor(src, []int64{2})
	if err != nil {
		t.Fatalf("NewTensor: %v", err)
	}
	src[0] = 999
	data := tn.Data().([]float32)
	if data[0] == 999 {
		t.Fatal("Tensor aliased caller's backing array")
	}
}

func TestElementCount_RejectsNonPositiveDim(t *testing.T) {
	if _, err := elementCount([]int64{1, 0, 3}); err == nil {
		t.Fatal("expected error for zero-length dimension")
	}
}
