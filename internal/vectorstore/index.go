package vectorstore

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/viant/vec/search"
)

// NoID pads search results when the index holds fewer than k vectors.
const NoID = -1

// Index is an exact inner-product index over fixed-dimension vectors. The
// position of a vector is its id. Vectors are expected to be L2-normalized,
// so scores are cosine similarities.
type Index struct {
	dim  int
	vecs [][]float32
}

func NewIndex(dim int) *Index { return &Index{dim: dim} }

// Add appends vectors; the first vector added fixes the dimension when none was given.
func (i *Index) Add(vectors ...[]float32) error {
	for _, v := range vectors {
		if i.dim == 0 {
			i.dim = len(v)
		}
		if len(v) == 0 || len(v) != i.dim {
			return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(v), i.dim)
		}
	}
	i.vecs = append(i.vecs, vectors...)
	return nil
}

func (i *Index) Count() int     { return len(i.vecs) }
func (i *Index) Dimension() int { return i.dim }

// Search returns the k best ids and their scores, highest first. Ties keep
// insertion order. When fewer than k vectors exist the tail is padded with
// NoID and a score of negative infinity.
func (i *Index) Search(query []float32, k int) ([]int, []float32, error) {
	if k <= 0 {
		return nil, nil, nil
	}
	if len(i.vecs) > 0 && len(query) != i.dim {
		return nil, nil, fmt.Errorf("query dimension %d != index dimension %d", len(query), i.dim)
	}
	scores := make([]float32, len(i.vecs))
	for j, v := range i.vecs {
		scores[j] = dot(v, query)
	}
	idxs := argsortDesc(scores)

	ids := make([]int, k)
	out := make([]float32, k)
	for n := 0; n < k; n++ {
		if n < len(idxs) {
			ids[n] = idxs[n]
			out[n] = scores[idxs[n]]
			continue
		}
		ids[n] = NoID
		out[n] = float32(math.Inf(-1))
	}
	return ids, out, nil
}

// Normalize scales v to unit length in place and returns it. A zero vector is
// left unchanged.
func Normalize(v []float32) []float32 {
	m := search.Float32s(v).Magnitude()
	if m == 0 {
		return v
	}
	for j := range v {
		v[j] /= m
	}
	return v
}

// MarshalBinary stores: dim(uint32), n(uint32), then n*dim little-endian float32.
func (i *Index) MarshalBinary() ([]byte, error) {
	out := make([]byte, 8, 8+4*i.dim*len(i.vecs))
	binary.LittleEndian.PutUint32(out[0:4], uint32(i.dim))
	binary.LittleEndian.PutUint32(out[4:8], uint32(len(i.vecs)))
	for _, v := range i.vecs {
		for _, f := range v {
			out = binary.LittleEndian.AppendUint32(out, math.Float32bits(f))
		}
	}
	return out, nil
}

// UnmarshalBinary restores the index from bytes.
func (i *Index) UnmarshalBinary(data []byte) error {
	if len(data) < 8 {
		return errors.New("index: invalid data")
	}
	dim := int(binary.LittleEndian.Uint32(data[0:4]))
	n := int(binary.LittleEndian.Uint32(data[4:8]))
	if want := 8 + 4*dim*n; len(data) != want {
		return fmt.Errorf("index: expected %d bytes, got %d", want, len(data))
	}
	off := 8
	vecs := make([][]float32, n)
	for idx := range vecs {
		vec := make([]float32, dim)
		for j := range vec {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(data[off : off+4]))
			off += 4
		}
		vecs[idx] = vec
	}
	i.dim = dim
	i.vecs = vecs
	return nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func argsortDesc(vals []float32) []int {
	idxs := make([]int, len(vals))
	for i := range vals {
		idxs[i] = i
	}
	sort.SliceStable(idxs, func(a, b int) bool { return vals[idxs[a]] > vals[idxs[b]] })
	return idxs
}
