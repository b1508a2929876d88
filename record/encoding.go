package record

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeEmbedding packs an embedding into the BLOB representation stored in
// SQLite: a little-endian sequence of IEEE 754 float32 values with no length
// prefix. The dimension is recovered from the BLOB size on decode.
func EncodeEmbedding(embedding []float32) []byte {
	if len(embedding) == 0 {
		return nil
	}
	b := make([]byte, len(embedding)*4)
	for i, v := range embedding {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

// DecodeEmbedding unpacks a BLOB produced by EncodeEmbedding and checks it
// against the expected collection dimension. A stored vector of the wrong
// size indicates corruption, since validation rejects it on the way in.
func DecodeEmbedding(b []byte, dimension int) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("record: embedding blob length %d is not a multiple of 4", len(b))
	}
	n := len(b) / 4
	if n != dimension {
		return nil, fmt.Errorf("record: embedding blob holds %d values, want %d", n, dimension)
	}
	embedding := make([]float32, n)
	for i := range embedding {
		embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return embedding, nil
}
