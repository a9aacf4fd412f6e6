package testkit

import (
	"encoding/binary"
	"math"
	"math/rand"
	"time"

	"github.com/datagrove/arraypack/pkg/core"
)

// RNG provides a deterministic random number generator.
// If seed is 0, it uses the current time.
func RNG(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// RandomBytes generates a slice of random bytes of the given length.
func RandomBytes(r *rand.Rand, length int) []byte {
	b := make([]byte, length)
	for i := range b {
		b[i] = byte(r.Intn(256))
	}
	return b
}

// Float32Slab generates shape.Elements() random float32 values as raw bytes.
func Float32Slab(r *rand.Rand, shape core.Shape) []byte {
	n := shape.Elements()
	b := make([]byte, n*4)
	for i := int64(0); i < n; i++ {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(r.Float32()))
	}
	return b
}

// Int16Slab generates shape.Elements() random int16 values as raw bytes,
// roughly resembling a noisy multi-channel recording.
func Int16Slab(r *rand.Rand, shape core.Shape) []byte {
	n := shape.Elements()
	b := make([]byte, n*2)
	for i := int64(0); i < n; i++ {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(r.Intn(1<<12)))
	}
	return b
}

// MonotoneIndex generates n monotonically non-decreasing int64 boundaries
// ending at limit, as raw bytes. Used for ragged dataset index arrays.
func MonotoneIndex(r *rand.Rand, n int, limit int64) []byte {
	vals := make([]int64, n)
	var cur int64
	for i := 0; i < n; i++ {
		if limit > cur {
			cur += r.Int63n((limit-cur)/int64(n-i) + 1)
		}
		vals[i] = cur
	}
	if n > 0 {
		vals[n-1] = limit
	}
	b := make([]byte, n*8)
	for i, v := range vals {
		binary.LittleEndian.PutUint64(b[i*8:], uint64(v))
	}
	return b
}

// CompressibleSlab generates a highly compressible byte pattern of the
// given length, with a sprinkle of noise.
func CompressibleSlab(r *rand.Rand, length int) []byte {
	b := make([]byte, length)
	pattern := []byte("steady baseline signal segment ")
	for i := 0; i < length; i++ {
		b[i] = pattern[i%len(pattern)]
	}
	for i := 0; i < length/1024; i++ {
		b[r.Intn(length)] = byte(r.Intn(256))
	}
	return b
}
