package video

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
)

// Aggregate combines frame-level embeddings into a single vector per
// spec.md §4.6. weights (frame confidences) are only consulted for
// AggregateAttention; pass nil otherwise.
func Aggregate(method AggregationMethod, vectors [][]float32, weights []float64) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	dim := len(vectors[0])
	switch method {
	case AggregateMax:
		return aggregateMax(vectors, dim)
	case AggregateAttention:
		return aggregateAttention(vectors, weights, dim)
	default:
		return aggregateMean(vectors, dim)
	}
}

func aggregateMean(vectors [][]float32, dim int) []float32 {
	out := make([]float64, dim)
	for _, v := range vectors {
		for i := 0; i < dim; i++ {
			out[i] += float64(v[i])
		}
	}
	n := float64(len(vectors))
	result := make([]float32, dim)
	for i := range out {
		result[i] = float32(out[i] / n)
	}
	return result
}

func aggregateMax(vectors [][]float32, dim int) []float32 {
	result := make([]float32, dim)
	copy(result, vectors[0])
	for _, v := range vectors[1:] {
		for i := 0; i < dim; i++ {
			if v[i] > result[i] {
				result[i] = v[i]
			}
		}
	}
	return result
}

// aggregateAttention weights each frame's contribution by its normalised
// confidence; if every weight is zero it falls back to the uniform mean
// (spec.md §4.6).
func aggregateAttention(vectors [][]float32, weights []float64, dim int) []float32 {
	var total float64
	for _, w := range weights {
		total += w
	}
	if total <= 0 {
		return aggregateMean(vectors, dim)
	}
	out := make([]float64, dim)
	for idx, v := range vectors {
		weight := weights[idx] / total
		for i := 0; i < dim; i++ {
			out[i] += float64(v[i]) * weight
		}
	}
	result := make([]float32, dim)
	for i := range out {
		result[i] = float32(out[i])
	}
	return result
}

// ContentHash is the SHA-256 of the little-endian IEEE-754 byte image of the
// vector (spec.md §4.6), used as the stored video/scene content hash.
func ContentHash(vector []float32) string {
	buf := make([]byte, 4*len(vector))
	for i, f := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	sum := sha256.Sum256(buf)
	return hexEncode(sum[:])
}

const hexDigits = "0123456789abcdef"

func hexEncode(b []byte) string {
	out := make([]byte, len(b)*2)
	for i, v := range b {
		out[i*2] = hexDigits[v>>4]
		out[i*2+1] = hexDigits[v&0x0f]
	}
	return string(out)
}
