// Package chunkiter produces a lazy, finite sequence of rectangular chunks
// covering a source array without ever materializing more than one buffer
// block. The outer loop visits buffer-sized blocks in row-major order; the
// inner loop emits chunk-sized cells within the resident block, so chunks
// belonging to one buffer come out contiguously and forward-only sources are
// read strictly forward.
package chunkiter

import (
	"context"
	"fmt"
	"io"

	"github.com/datagrove/arraypack/pkg/core"
	"github.com/datagrove/arraypack/pkg/source"
)

// Chunk is one rectangular cell of the source array. Size is clipped at the
// array bounds, so edge chunks may be smaller than the nominal chunk shape.
type Chunk struct {
	Offset core.Shape
	Size   core.Shape
	Data   []byte
}

// Iterator walks a source in (buffer block, chunk cell) order. It is not
// restartable mid-flight; a fresh New always starts from the first chunk.
// Stopping between chunks has no side effects.
type Iterator struct {
	src   source.Source
	full  core.Shape
	chunk core.Shape
	buf   core.Shape
	elem  int64

	bufOrigin core.Shape // origin of the resident buffer block
	bufSize   core.Shape // clipped extent of the resident block
	bufData   []byte

	cell      core.Shape // chunk origin relative to the resident block
	needBlock bool       // the block at bufOrigin has not been read yet
	started   bool
	done      bool
}

// New validates the plan shapes against the source and positions the
// iterator before the first chunk.
func New(src source.Source, chunk, buffer core.Shape) (*Iterator, error) {
	full := src.Shape()
	rank := full.Rank()
	if rank < 1 {
		return nil, fmt.Errorf("%w: source rank must be >= 1", core.ErrInvalidInput)
	}
	if chunk.Rank() != rank || buffer.Rank() != rank {
		return nil, fmt.Errorf("%w: chunk/buffer rank does not match source rank %d", core.ErrInvalidInput, rank)
	}
	for i := 0; i < rank; i++ {
		ext := full[i]
		if ext == 0 {
			ext = 1
		}
		if chunk[i] < 1 || chunk[i] > ext {
			return nil, fmt.Errorf("%w: chunk extent %d out of [1,%d] on axis %d", core.ErrInvalidInput, chunk[i], ext, i)
		}
		if buffer[i] < chunk[i] || buffer[i] > ext {
			return nil, fmt.Errorf("%w: buffer extent %d out of [%d,%d] on axis %d", core.ErrInvalidInput, buffer[i], chunk[i], ext, i)
		}
		if buffer[i] < ext && buffer[i]%chunk[i] != 0 {
			return nil, fmt.Errorf("%w: buffer extent %d not a multiple of chunk extent %d on axis %d", core.ErrInvalidInput, buffer[i], chunk[i], i)
		}
	}
	elem := src.Dtype().Size()
	if elem <= 0 {
		return nil, fmt.Errorf("%w: unknown dtype %q", core.ErrInvalidInput, src.Dtype())
	}

	return &Iterator{
		src:   src,
		full:  full,
		chunk: chunk.Clone(),
		buf:   buffer.Clone(),
		elem:  elem,
		done:  full.Elements() == 0,
	}, nil
}

// NumChunks returns the total number of chunks the iterator will emit.
func (it *Iterator) NumChunks() int64 {
	if it.full.Elements() == 0 {
		return 0
	}
	n := int64(1)
	for i := range it.full {
		n *= ceilDiv(it.full[i], it.chunk[i])
	}
	return n
}

// Next returns the next chunk, or io.EOF once the full shape is covered.
// Each call may block on the underlying source's I/O for at most one buffer
// block.
func (it *Iterator) Next(ctx context.Context) (Chunk, error) {
	if err := ctx.Err(); err != nil {
		return Chunk{}, err
	}
	if it.done {
		return Chunk{}, io.EOF
	}

	if !it.started {
		it.started = true
		it.bufOrigin = make(core.Shape, it.full.Rank())
		it.cell = make(core.Shape, it.full.Rank())
		it.needBlock = true
	}

	// Blocks are read lazily so that a chunk already extracted from the
	// previous block is returned before the next read can fail, and so
	// that stopping between chunks issues no further reads on the source.
	if it.needBlock {
		if err := it.loadBlock(ctx); err != nil {
			return Chunk{}, err
		}
		it.needBlock = false
	}

	out, err := it.emit()
	if err != nil {
		return Chunk{}, err
	}

	// Advance the chunk cell within the block; on wrap, move to the next
	// buffer block.
	if !advance(it.cell, it.chunk, it.bufSize) {
		if !advance(it.bufOrigin, it.buf, it.full) {
			it.done = true
		} else {
			for i := range it.cell {
				it.cell[i] = 0
			}
			it.needBlock = true
		}
		it.bufData = nil
	}
	return out, nil
}

// loadBlock materializes the buffer block at bufOrigin, clipped to the
// array bounds.
func (it *Iterator) loadBlock(ctx context.Context) error {
	size := make(core.Shape, it.full.Rank())
	for i := range size {
		size[i] = min64(it.buf[i], it.full[i]-it.bufOrigin[i])
	}
	data, err := it.src.ReadSlab(ctx, it.bufOrigin, size)
	if err != nil {
		return err
	}
	want := size.Elements() * it.elem
	if int64(len(data)) < want {
		return fmt.Errorf("%w: at offset %v: got %d bytes, want %d",
			core.ErrShortRead, it.bufOrigin, len(data), want)
	}
	it.bufSize = size
	it.bufData = data
	return nil
}

// emit copies the current chunk cell out of the resident block.
func (it *Iterator) emit() (Chunk, error) {
	rank := it.full.Rank()
	offset := make(core.Shape, rank)
	size := make(core.Shape, rank)
	for i := 0; i < rank; i++ {
		offset[i] = it.bufOrigin[i] + it.cell[i]
		size[i] = min64(it.chunk[i], it.bufSize[i]-it.cell[i])
	}

	data := extractRegion(it.bufData, it.bufSize, it.cell, size, it.elem)
	return Chunk{Offset: offset, Size: size, Data: data}, nil
}

// extractRegion copies the region [offset, offset+size) out of a row-major
// block of the given shape.
func extractRegion(block []byte, blockShape, offset, size core.Shape, elem int64) []byte {
	rank := blockShape.Rank()
	out := make([]byte, size.Elements()*elem)

	strides := make([]int64, rank)
	strides[rank-1] = elem
	for i := rank - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * blockShape[i+1]
	}

	coord := offset.Clone()
	run := size[rank-1] * elem
	var dst int64
	for {
		src := int64(0)
		for i := range coord {
			src += coord[i] * strides[i]
		}
		copy(out[dst:dst+run], block[src:src+run])
		dst += run

		i := rank - 2
		for ; i >= 0; i-- {
			coord[i]++
			if coord[i] < offset[i]+size[i] {
				break
			}
			coord[i] = offset[i]
		}
		if i < 0 {
			return out
		}
	}
}

// advance steps an odometer coordinate by step per axis, last axis fastest,
// within limit. Returns false when the coordinate wraps past the end.
func advance(coord, step, limit core.Shape) bool {
	for i := len(coord) - 1; i >= 0; i-- {
		coord[i] += step[i]
		if coord[i] < limit[i] {
			return true
		}
		coord[i] = 0
	}
	return false
}

func ceilDiv(a, b int64) int64 { return (a + b - 1) / b }

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
