// Package container defines what both container families have in common:
// read-side introspection of an already-written container, and a Source
// implementation that reassembles rectangular regions from stored chunks.
package container

import (
	"context"
	"fmt"

	"github.com/datagrove/arraypack/pkg/codec"
	"github.com/datagrove/arraypack/pkg/core"
	"github.com/datagrove/arraypack/pkg/plan"
	"github.com/datagrove/arraypack/pkg/source"
)

// Container is an opened, already-written container of either family.
type Container interface {
	Backend() core.Backend

	// Locations lists dataset locations in stored order.
	Locations() []string

	// Introspect recovers the actual on-disk plan of every dataset
	// verbatim, tagged Existing.
	Introspect() ([]plan.DatasetConfig, error)

	// DatasetSource opens one dataset for region reads; decoding uses the
	// given catalog.
	DatasetSource(loc string, cat *codec.Catalog) (source.Source, error)

	// Refs returns external-reference leaves: location to target path.
	Refs() map[string]string

	// Attrs returns scalar attributes grouped by owner location ("" is the
	// container root).
	Attrs() map[string]map[string]any

	Close() error
}

// FetchFunc returns the decoded raw bytes of the chunk whose grid cell
// starts at origin with the given clipped size.
type FetchFunc func(ctx context.Context, origin, size core.Shape) ([]byte, error)

// ChunkedSource assembles arbitrary rectangular regions of a dataset from
// its stored chunk grid. It never holds more than one decoded chunk beyond
// the region being assembled.
type ChunkedSource struct {
	desc  core.Descriptor
	chunk core.Shape
	fetch FetchFunc
}

// NewChunkedSource wires a chunk grid to a fetch function. A nil chunk
// shape means the dataset was stored whole; the grid then has one cell
// spanning the full shape.
func NewChunkedSource(desc core.Descriptor, chunk core.Shape, fetch FetchFunc) *ChunkedSource {
	if chunk == nil {
		chunk = desc.Shape.Clone()
		for i, d := range chunk {
			if d == 0 {
				chunk[i] = 1
			}
		}
	}
	return &ChunkedSource{desc: desc, chunk: chunk.Clone(), fetch: fetch}
}

func (s *ChunkedSource) Shape() core.Shape { return s.desc.Shape.Clone() }
func (s *ChunkedSource) Dtype() core.Dtype { return s.desc.Dtype }

func (s *ChunkedSource) ReadSlab(ctx context.Context, offset, size core.Shape) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rank := s.desc.Shape.Rank()
	if len(offset) != rank || len(size) != rank {
		return nil, fmt.Errorf("%w: region rank does not match dataset rank %d", core.ErrInvalidInput, rank)
	}
	for i := 0; i < rank; i++ {
		if offset[i] < 0 || size[i] < 0 || offset[i]+size[i] > s.desc.Shape[i] {
			return nil, fmt.Errorf("%w: region out of bounds on axis %d", core.ErrInvalidInput, i)
		}
	}

	elem := s.desc.Dtype.Size()
	out := make([]byte, size.Elements()*elem)
	if size.Elements() == 0 {
		return out, nil
	}

	// Visit every grid cell overlapping the region.
	first := make(core.Shape, rank)
	for i := 0; i < rank; i++ {
		first[i] = offset[i] / s.chunk[i] * s.chunk[i]
	}
	cell := first.Clone()
	for {
		cellSize := make(core.Shape, rank)
		for i := 0; i < rank; i++ {
			cellSize[i] = min64(s.chunk[i], s.desc.Shape[i]-cell[i])
		}
		raw, err := s.fetch(ctx, cell, cellSize)
		if err != nil {
			return nil, err
		}
		if int64(len(raw)) < cellSize.Elements()*elem {
			return nil, fmt.Errorf("%w: chunk at %v holds %d bytes, want %d",
				core.ErrShortRead, cell, len(raw), cellSize.Elements()*elem)
		}
		copyOverlap(out, offset, size, raw, cell, cellSize, elem)

		// Odometer over grid cells intersecting the region.
		i := rank - 1
		for ; i >= 0; i-- {
			cell[i] += s.chunk[i]
			if cell[i] < offset[i]+size[i] {
				break
			}
			cell[i] = first[i]
		}
		if i < 0 {
			return out, nil
		}
	}
}

// copyOverlap copies the intersection of a destination region and a chunk
// cell, both row-major.
func copyOverlap(dst []byte, dstOrigin, dstSize core.Shape, src []byte, srcOrigin, srcSize core.Shape, elem int64) {
	rank := len(dstOrigin)

	lo := make(core.Shape, rank)
	hi := make(core.Shape, rank)
	for i := 0; i < rank; i++ {
		lo[i] = max64(dstOrigin[i], srcOrigin[i])
		hi[i] = min64(dstOrigin[i]+dstSize[i], srcOrigin[i]+srcSize[i])
		if lo[i] >= hi[i] {
			return
		}
	}

	dstStrides := strides(dstSize, elem)
	srcStrides := strides(srcSize, elem)

	coord := lo.Clone()
	run := (hi[rank-1] - lo[rank-1]) * elem
	for {
		var d, s int64
		for i := 0; i < rank; i++ {
			d += (coord[i] - dstOrigin[i]) * dstStrides[i]
			s += (coord[i] - srcOrigin[i]) * srcStrides[i]
		}
		copy(dst[d:d+run], src[s:s+run])

		i := rank - 2
		for ; i >= 0; i-- {
			coord[i]++
			if coord[i] < hi[i] {
				break
			}
			coord[i] = lo[i]
		}
		if i < 0 {
			return
		}
	}
}

func strides(shape core.Shape, elem int64) []int64 {
	n := len(shape)
	out := make([]int64, n)
	out[n-1] = elem
	for i := n - 2; i >= 0; i-- {
		out[i] = out[i+1] * shape[i+1]
	}
	return out
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
