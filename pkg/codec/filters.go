package codec

import (
	"fmt"

	"github.com/datagrove/arraypack/pkg/core"
)

// shuffleFilter groups bytes by position within elements so that similar
// byte positions (sign bits, exponent bytes) sit together, which typed array
// compressors exploit. Reversible byte transpose.
type shuffleFilter struct {
	elemSize int64
}

func newShuffle(elemSize int64) (Filter, error) {
	if elemSize < 1 {
		return nil, fmt.Errorf("%w: shuffle needs a positive element size", core.ErrInvalidInput)
	}
	return &shuffleFilter{elemSize: elemSize}, nil
}

func (f *shuffleFilter) Name() string { return FilterShuffle }

func (f *shuffleFilter) Apply(plain []byte) ([]byte, error) {
	es := int(f.elemSize)
	if es <= 1 || len(plain)%es != 0 {
		return plain, nil
	}
	n := len(plain) / es
	out := make([]byte, len(plain))
	for i := 0; i < n; i++ {
		for j := 0; j < es; j++ {
			out[j*n+i] = plain[i*es+j]
		}
	}
	return out, nil
}

func (f *shuffleFilter) Reverse(stored []byte) ([]byte, error) {
	es := int(f.elemSize)
	if es <= 1 || len(stored)%es != 0 {
		return stored, nil
	}
	n := len(stored) / es
	out := make([]byte, len(stored))
	for i := 0; i < n; i++ {
		for j := 0; j < es; j++ {
			out[i*es+j] = stored[j*n+i]
		}
	}
	return out, nil
}

// deltaFilter stores the byte-wise difference between consecutive elements.
// Monotone index arrays and slowly-varying signals become near-constant
// streams the primary codec collapses.
type deltaFilter struct {
	elemSize int64
}

func newDelta(elemSize int64) (Filter, error) {
	if elemSize < 1 {
		return nil, fmt.Errorf("%w: delta needs a positive element size", core.ErrInvalidInput)
	}
	return &deltaFilter{elemSize: elemSize}, nil
}

func (f *deltaFilter) Name() string { return FilterDelta }

func (f *deltaFilter) Apply(plain []byte) ([]byte, error) {
	es := int(f.elemSize)
	out := make([]byte, len(plain))
	copy(out, plain[:min(es, len(plain))])
	for i := es; i < len(plain); i++ {
		out[i] = plain[i] - plain[i-es]
	}
	return out, nil
}

func (f *deltaFilter) Reverse(stored []byte) ([]byte, error) {
	es := int(f.elemSize)
	out := make([]byte, len(stored))
	copy(out, stored[:min(es, len(stored))])
	for i := es; i < len(stored); i++ {
		out[i] = stored[i] + out[i-es]
	}
	return out, nil
}
