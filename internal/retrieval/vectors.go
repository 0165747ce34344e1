package retrieval

import (
	"encoding/binary"
	"math"
)

// CosineSimilarity scores how closely two embeddings point in the same
// direction, from -1 (opposite) to 1 (identical). Mismatched, empty,
// and zero vectors all score 0: an unembeddable passage must never
// outrank a real match.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		ai, bi := float64(a[i]), float64(b[i])
		dot += ai * bi
		normA += ai * ai
		normB += bi * bi
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}

// Float32ToBytes packs an embedding into the little-endian byte form
// stored in the documents table.
func Float32ToBytes(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// BytesToFloat32 is the inverse of Float32ToBytes. A blob whose length
// is not a multiple of 4 decodes to nil so a corrupt row is skipped
// rather than half-read.
func BytesToFloat32(b []byte) []float32 {
	if len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
