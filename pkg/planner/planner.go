// Package planner computes chunk and buffer shapes for array descriptors
// under a memory budget. Pure arithmetic: no I/O, no clocks, no randomness,
// so identical inputs always produce identical plans.
package planner

import (
	"fmt"

	"github.com/datagrove/arraypack/pkg/core"
)

// Plan computes a chunk shape and a buffer shape for desc.
//
// Arrays whose raw bytes fit the memory budget whole are planned as a single
// chunk spanning the full shape. Larger arrays get a chunk approaching
// cfg.TargetChunkBytes, grown innermost-axis-first so the outermost
// (iteration) axis stays smallest; the buffer is then the largest exact
// chunk multiple per axis that fits the budget, inner axes grown to the full
// extent first so buffer blocks cover whole rows where possible.
//
// Rank-2 arrays wider than cfg.ChannelGroupSize on the second axis are
// treated as multi-channel wire streams: the channel axis is chunked in
// groups of cfg.ChannelGroupSize so partial-channel reads stay cheap,
// overriding the byte-budget split for that axis.
//
// Zero-length axes are planned with chunk and buffer extent 1 (the format
// minimum) while the descriptor keeps its explicit zero extent.
func Plan(desc core.Descriptor, cfg core.PlannerConfig) (chunk, buffer core.Shape, err error) {
	cfg = cfg.WithDefaults()
	if err := desc.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", core.ErrPlanning, err)
	}
	elem := desc.Dtype.Size()
	if cfg.MemoryBudgetBytes < elem {
		return nil, nil, fmt.Errorf("%w: memory budget %d below element size %d",
			core.ErrPlanning, cfg.MemoryBudgetBytes, elem)
	}
	if cfg.TargetChunkBytes < elem {
		return nil, nil, fmt.Errorf("%w: target chunk bytes %d below element size %d",
			core.ErrPlanning, cfg.TargetChunkBytes, elem)
	}

	full := effective(desc.Shape)
	totalBytes := full.Elements() * elem

	if totalBytes <= cfg.MemoryBudgetBytes {
		return full.Clone(), full.Clone(), nil
	}

	// A chunk must itself fit the budget.
	target := cfg.TargetChunkBytes
	if target > cfg.MemoryBudgetBytes {
		target = cfg.MemoryBudgetBytes
	}

	chunk = chunkShape(full, elem, target, cfg.ChannelGroupSize)
	buffer = bufferShape(full, chunk, elem, cfg.MemoryBudgetBytes)
	return chunk, buffer, nil
}

// BufferFor derives a buffer shape for a fixed chunk shape, used when a
// plan carried over from an existing container lacks a buffer (buffers are
// never stored on disk). Same rules as Plan: full shape when the array fits
// the budget whole, otherwise the largest exact chunk multiple that fits.
func BufferFor(desc core.Descriptor, chunk core.Shape, cfg core.PlannerConfig) (core.Shape, error) {
	cfg = cfg.WithDefaults()
	if err := desc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrPlanning, err)
	}
	elem := desc.Dtype.Size()
	if cfg.MemoryBudgetBytes < elem {
		return nil, fmt.Errorf("%w: memory budget %d below element size %d",
			core.ErrPlanning, cfg.MemoryBudgetBytes, elem)
	}
	if chunk.Rank() != desc.Shape.Rank() {
		return nil, fmt.Errorf("%w: chunk rank does not match %s", core.ErrPlanning, desc.Location)
	}

	full := effective(desc.Shape)
	if full.Elements()*elem <= cfg.MemoryBudgetBytes {
		return full.Clone(), nil
	}
	return bufferShape(full, chunk, elem, cfg.MemoryBudgetBytes), nil
}

// PlanRagged plans the (data, index) descriptor pair of a ragged dataset.
// The index is small monotone integers: it stays a single full-shape chunk
// unless it exceeds the budget on its own.
func PlanRagged(data, index core.Descriptor, cfg core.PlannerConfig) (dataChunk, dataBuffer, indexChunk, indexBuffer core.Shape, err error) {
	dataChunk, dataBuffer, err = Plan(data, cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	if index.Shape.Rank() != 1 {
		return nil, nil, nil, nil, fmt.Errorf("%w: ragged index %s must be 1-D", core.ErrPlanning, index.Location)
	}
	indexChunk, indexBuffer, err = Plan(index, cfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return dataChunk, dataBuffer, indexChunk, indexBuffer, nil
}

// effective replaces zero extents with the format minimum of 1.
func effective(s core.Shape) core.Shape {
	out := s.Clone()
	for i, d := range out {
		if d == 0 {
			out[i] = 1
		}
	}
	return out
}

func chunkShape(full core.Shape, elem, target, channelGroup int64) core.Shape {
	n := full.Rank()
	chunk := make(core.Shape, n)
	for i := range chunk {
		chunk[i] = 1
	}

	remaining := target / elem
	if remaining < 1 {
		remaining = 1
	}

	// Multi-channel stream rule: pin the channel axis to group-sized chunks.
	channelPinned := false
	if n == 2 && full[1] > channelGroup {
		chunk[1] = channelGroup
		remaining /= channelGroup
		if remaining < 1 {
			remaining = 1
		}
		channelPinned = true
	}

	// Grow inner axes toward the target, outermost axis last.
	for i := n - 1; i >= 1; i-- {
		if i == 1 && channelPinned {
			continue
		}
		chunk[i] = min64(full[i], remaining)
		remaining /= chunk[i]
		if remaining < 1 {
			remaining = 1
		}
	}
	chunk[0] = min64(full[0], remaining)
	return chunk
}

func bufferShape(full, chunk core.Shape, elem, budget int64) core.Shape {
	n := full.Rank()
	buffer := chunk.Clone()

	// Grow innermost axes to the full extent first so buffer blocks cover
	// whole rows, then spend what remains on the outermost axis.
	for i := n - 1; i >= 0; i-- {
		other := elem
		for j := 0; j < n; j++ {
			if j != i {
				other *= buffer[j]
			}
		}
		allowed := budget / other
		if allowed >= full[i] {
			buffer[i] = full[i]
			continue
		}
		multiples := allowed / chunk[i]
		if multiples < 1 {
			multiples = 1
		}
		buffer[i] = min64(multiples*chunk[i], full[i])
	}
	return buffer
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}
