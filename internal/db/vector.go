package db

import (
	"encoding/binary"
	"math"
)

// EncodeVector serializes an embedding as little-endian float32 bytes, the
// layout FT vector fields expect in hash documents.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}
