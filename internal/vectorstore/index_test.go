package vectorstore

import (
	"errors"
	"math"
	"testing"

	"kbrag/internal/domain"
)

func TestIndexSearch_OrdersByInnerProduct(t *testing.T) {
	idx := NewIndex(2)
	if err := idx.Add([]float32{1, 0}, []float32{0, 1}, []float32{0.6, 0.8}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	ids, scores, err := idx.Search([]float32{0, 1}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	want := []int{1, 2, 0}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("ids = %v, want %v", ids, want)
		}
	}
	for i := 1; i < len(scores); i++ {
		if scores[i] > scores[i-1] {
			t.Fatalf("scores not descending: %v", scores)
		}
	}
}

func TestIndexSearch_PadsWithNoID(t *testing.T) {
	idx := NewIndex(2)
	_ = idx.Add([]float32{1, 0}, []float32{0, 1})
	ids, scores, err := idx.Search([]float32{1, 0}, 4)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(ids) != 4 || ids[2] != NoID || ids[3] != NoID {
		t.Fatalf("expected sentinel padding, got %v", ids)
	}
	if !math.IsInf(float64(scores[3]), -1) {
		t.Fatalf("expected -inf pad score, got %v", scores[3])
	}
}

func TestIndexSearch_TiesKeepInsertionOrder(t *testing.T) {
	idx := NewIndex(1)
	_ = idx.Add([]float32{1}, []float32{1}, []float32{1})
	ids, _, _ := idx.Search([]float32{1}, 3)
	if ids[0] != 0 || ids[1] != 1 || ids[2] != 2 {
		t.Fatalf("ties reordered: %v", ids)
	}
}

func TestIndex_DimensionMismatch(t *testing.T) {
	idx := NewIndex(0)
	if err := idx.Add([]float32{1, 2, 3}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if idx.Dimension() != 3 {
		t.Fatalf("dimension = %d", idx.Dimension())
	}
	if err := idx.Add([]float32{1, 2}); err == nil {
		t.Fatal("expected dimension mismatch on add")
	}
	if _, _, err := idx.Search([]float32{1}, 1); err == nil {
		t.Fatal("expected dimension mismatch on search")
	}
}

func TestIndex_BinaryRoundTrip(t *testing.T) {
	idx := NewIndex(3)
	_ = idx.Add([]float32{0.1, 0.2, 0.3}, []float32{-1, 0, 1})
	data, err := idx.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary: %v", err)
	}
	if len(data) != 8+2*3*4 {
		t.Fatalf("unexpected blob size %d", len(data))
	}
	var got Index
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary: %v", err)
	}
	if got.Count() != 2 || got.Dimension() != 3 || got.vecs[1][2] != 1 {
		t.Fatalf("unexpected index %+v", got)
	}
	if err := got.UnmarshalBinary(data[:len(data)-1]); err == nil {
		t.Fatal("expected error for truncated blob")
	}
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Fatalf("unexpected normalized vector %v", v)
	}
	z := Normalize([]float32{0, 0})
	if z[0] != 0 || z[1] != 0 {
		t.Fatalf("zero vector changed: %v", z)
	}
}

func TestValidate(t *testing.T) {
	idx := NewIndex(1)
	_ = idx.Add([]float32{1}, []float32{1})
	ok := []domain.Passage{{ID: 0}, {ID: 1}}
	if err := Validate(idx, ok); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if err := Validate(idx, ok[:1]); !errors.Is(err, domain.ErrStoreCorrupt) {
		t.Fatalf("expected ErrStoreCorrupt for count mismatch, got %v", err)
	}
	if err := Validate(idx, []domain.Passage{{ID: 0}, {ID: 5}}); !errors.Is(err, domain.ErrStoreCorrupt) {
		t.Fatalf("expected ErrStoreCorrupt for sparse ids, got %v", err)
	}
}
