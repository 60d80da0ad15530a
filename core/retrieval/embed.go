package retrieval

import (
	"crypto/md5"
	"encoding/binary"
	"math"
	"strconv"

	"gonum.org/v1/gonum/floats"
)

// DefaultEmbedDim is the dimension of the hash embedding.
const DefaultEmbedDim = 384

// Embedder maps text to a unit-length vector.
type Embedder interface {
	Embed(text string) []float64
}

// HashEmbedder derives a deterministic pseudo-embedding from MD5 digests of
// the text suffixed with each component index. Equal texts map to equal
// vectors; it carries no semantics.
type HashEmbedder struct {
	Dim int
}

// Embed implements Embedder.
func (h HashEmbedder) Embed(text string) []float64 {
	dim := h.Dim
	if dim <= 0 {
		dim = DefaultEmbedDim
	}
	v := make([]float64, dim)
	for i := range v {
		sum := md5.Sum([]byte(text + strconv.Itoa(i)))
		bits := int32(binary.LittleEndian.Uint32(sum[:4]))
		v[i] = float64(bits) / math.MaxInt32
	}
	normalize(v)
	return v
}

func normalize(v []float64) {
	n := floats.Norm(v, 2)
	if n == 0 {
		return
	}
	floats.Scale(1/n, v)
}
