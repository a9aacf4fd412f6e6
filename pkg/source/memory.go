package source

import (
	"context"
	"fmt"

	"github.com/datagrove/arraypack/pkg/core"
)

// Memory is a random-access Source over an in-memory row-major byte slab.
type Memory struct {
	shape core.Shape
	dtype core.Dtype
	data  []byte
}

// NewMemory wraps row-major bytes as a Source. The slab may be shorter than
// shape promises; the shortfall surfaces as ErrShortRead on first access past
// the available bytes, never earlier.
func NewMemory(shape core.Shape, dtype core.Dtype, data []byte) *Memory {
	return &Memory{shape: shape.Clone(), dtype: dtype, data: data}
}

func (m *Memory) Shape() core.Shape { return m.shape.Clone() }
func (m *Memory) Dtype() core.Dtype { return m.dtype }

func (m *Memory) ReadSlab(ctx context.Context, offset, size core.Shape) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkRegion(m.shape, offset, size); err != nil {
		return nil, err
	}

	elem := m.dtype.Size()
	out := make([]byte, size.Elements()*elem)

	// Row-major byte strides of the full array.
	strides := rowMajorStrides(m.shape, elem)

	var dst int64
	err := forEachRow(offset, size, func(coord core.Shape) error {
		src := int64(0)
		for i := range coord {
			src += coord[i] * strides[i]
		}
		run := size[len(size)-1] * elem
		if src+run > int64(len(m.data)) {
			return fmt.Errorf("%w: at byte offset %d (have %d)", core.ErrShortRead, src, len(m.data))
		}
		copy(out[dst:dst+run], m.data[src:src+run])
		dst += run
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// rowMajorStrides returns per-axis byte strides for a row-major layout.
func rowMajorStrides(shape core.Shape, elem int64) []int64 {
	n := len(shape)
	strides := make([]int64, n)
	strides[n-1] = elem
	for i := n - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * shape[i+1]
	}
	return strides
}

// forEachRow invokes fn once per innermost contiguous run of the region,
// passing the absolute coordinate of the run start. Coordinates advance in
// row-major (odometer) order.
func forEachRow(offset, size core.Shape, fn func(coord core.Shape) error) error {
	n := len(size)
	if size.Elements() == 0 {
		return nil
	}
	coord := offset.Clone()
	for {
		if err := fn(coord); err != nil {
			return err
		}
		// Advance all axes but the innermost, which fn consumed whole.
		i := n - 2
		for ; i >= 0; i-- {
			coord[i]++
			if coord[i] < offset[i]+size[i] {
				break
			}
			coord[i] = offset[i]
		}
		if i < 0 {
			return nil
		}
	}
}

func checkRegion(full, offset, size core.Shape) error {
	if len(offset) != len(full) || len(size) != len(full) {
		return fmt.Errorf("%w: region rank %d/%d does not match array rank %d",
			core.ErrInvalidInput, len(offset), len(size), len(full))
	}
	for i := range full {
		if offset[i] < 0 || size[i] < 0 || offset[i]+size[i] > full[i] {
			return fmt.Errorf("%w: region [%d,%d) out of bounds on axis %d (extent %d)",
				core.ErrInvalidInput, offset[i], offset[i]+size[i], i, full[i])
		}
	}
	return nil
}
