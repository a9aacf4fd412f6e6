// Package plan holds the write plan for a container: one DatasetConfig per
// array leaf, aggregated into a BackendConfig keyed by location. Plans are
// produced by default construction, by introspecting an existing container,
// or by patching either with overrides; every change yields a new value.
package plan

import (
	"fmt"

	"github.com/datagrove/arraypack/pkg/codec"
	"github.com/datagrove/arraypack/pkg/core"
)

// Origin records how a DatasetConfig came to be.
type Origin int

const (
	// OriginPlanned marks a freshly computed default configuration.
	OriginPlanned Origin = iota
	// OriginOverridden marks a configuration with user edits applied.
	OriginOverridden
	// OriginExisting marks a configuration recovered verbatim from disk.
	OriginExisting
	// OriginCommitted marks a configuration already handed to a writer.
	OriginCommitted
)

func (o Origin) String() string {
	switch o {
	case OriginPlanned:
		return "planned"
	case OriginOverridden:
		return "overridden"
	case OriginExisting:
		return "existing"
	case OriginCommitted:
		return "committed"
	}
	return fmt.Sprintf("origin(%d)", int(o))
}

// DatasetConfig is the unit of configuration for one stored array: its
// descriptor, chunk/buffer plan, and compression choice.
//
// Compression naming: the empty string means no compression was recorded
// (an uncompressed leaf recovered from disk); codec.MethodNone means the
// caller deliberately disabled compression. The distinction matters to
// WithGlobalCompression, which respects only the deliberate disable.
//
// A nil ChunkShape is only produced by introspection and means the leaf was
// written whole with no chunking metadata.
type DatasetConfig struct {
	Descriptor core.Descriptor

	ChunkShape  core.Shape
	BufferShape core.Shape

	Compression     string
	CompressionOpts codec.Options

	// Filter chain, cloud-object family only.
	Filters    []string
	FilterOpts []codec.Options

	Origin Origin
}

// Clone returns a deep copy.
func (d DatasetConfig) Clone() DatasetConfig {
	out := d
	out.Descriptor.Shape = d.Descriptor.Shape.Clone()
	out.ChunkShape = d.ChunkShape.Clone()
	out.BufferShape = d.BufferShape.Clone()
	out.CompressionOpts = d.CompressionOpts.Clone()
	if d.Filters != nil {
		out.Filters = append([]string(nil), d.Filters...)
	}
	if d.FilterOpts != nil {
		out.FilterOpts = make([]codec.Options, len(d.FilterOpts))
		for i, o := range d.FilterOpts {
			out.FilterOpts[i] = o.Clone()
		}
	}
	return out
}

// Equal compares every explicitly-configured field, ignoring Origin.
func (d DatasetConfig) Equal(o DatasetConfig) bool {
	if d.Descriptor.Location != o.Descriptor.Location ||
		d.Descriptor.Dtype != o.Descriptor.Dtype ||
		!d.Descriptor.Shape.Equal(o.Descriptor.Shape) {
		return false
	}
	if !d.ChunkShape.Equal(o.ChunkShape) || !d.BufferShape.Equal(o.BufferShape) {
		return false
	}
	if d.Compression != o.Compression || !d.CompressionOpts.Equal(o.CompressionOpts) {
		return false
	}
	if len(d.Filters) != len(o.Filters) {
		return false
	}
	for i := range d.Filters {
		if d.Filters[i] != o.Filters[i] {
			return false
		}
	}
	return true
}

// Validate enforces the plan invariants for the given backend family.
func (d DatasetConfig) Validate(backend core.Backend, cat *codec.Catalog) error {
	if err := d.Descriptor.Validate(); err != nil {
		return err
	}
	loc := d.Descriptor.Location

	// Nil chunk shape: introspected whole-array leaf with no chunking
	// metadata. Nil buffer shape alone is fine: buffers are a write-time
	// concern and are derived when a carried plan is replayed.
	if d.ChunkShape == nil {
		if d.BufferShape != nil {
			return fmt.Errorf("%w: %s: buffer shape without chunk shape", core.ErrInvalidInput, loc)
		}
	} else {
		if err := d.validateShapes(); err != nil {
			return err
		}
	}

	if d.Compression == "" {
		if len(d.CompressionOpts) > 0 {
			return fmt.Errorf("%w: %s: compression options given without a method", core.ErrAmbiguousConfig, loc)
		}
	} else if !cat.IsAvailable(d.Compression, backend) {
		return fmt.Errorf("%w: %q for backend %q (dataset %s)", core.ErrUnknownCodec, d.Compression, backend, loc)
	}

	if len(d.FilterOpts) > 0 && len(d.Filters) == 0 {
		return fmt.Errorf("%w: %s: filter options given without filter methods", core.ErrAmbiguousConfig, loc)
	}
	if len(d.Filters) > 0 {
		if backend != core.BackendObject {
			return fmt.Errorf("%w: %s: filter chains are not supported by backend %q", core.ErrInvalidInput, loc, backend)
		}
		if len(d.FilterOpts) > 0 && len(d.FilterOpts) != len(d.Filters) {
			return fmt.Errorf("%w: %s: %d filter option sets for %d filters",
				core.ErrInvalidInput, loc, len(d.FilterOpts), len(d.Filters))
		}
		for _, f := range d.Filters {
			if !cat.HasFilter(f) {
				return fmt.Errorf("%w: filter %q for backend %q (dataset %s)", core.ErrUnknownCodec, f, backend, loc)
			}
		}
	}
	return nil
}

func (d DatasetConfig) validateShapes() error {
	loc := d.Descriptor.Location
	full := d.Descriptor.Shape
	rank := full.Rank()
	if d.ChunkShape.Rank() != rank {
		return fmt.Errorf("%w: %s: chunk rank does not match full shape rank %d",
			core.ErrInvalidInput, loc, rank)
	}
	if d.BufferShape != nil && d.BufferShape.Rank() != rank {
		return fmt.Errorf("%w: %s: buffer rank does not match full shape rank %d",
			core.ErrInvalidInput, loc, rank)
	}
	for i := 0; i < rank; i++ {
		ext := full[i]
		if ext == 0 {
			ext = 1 // format minimum for zero-length axes
		}
		c := d.ChunkShape[i]
		if c < 1 || c > ext {
			return fmt.Errorf("%w: %s: chunk extent %d out of [1,%d] on axis %d",
				core.ErrInvalidInput, loc, c, ext, i)
		}
		if d.BufferShape == nil {
			continue
		}
		b := d.BufferShape[i]
		if b < c || b > ext {
			return fmt.Errorf("%w: %s: buffer extent %d out of [%d,%d] on axis %d",
				core.ErrInvalidInput, loc, b, c, ext, i)
		}
		if b < ext && b%c != 0 {
			return fmt.Errorf("%w: %s: buffer extent %d is not a multiple of chunk extent %d on axis %d",
				core.ErrInvalidInput, loc, b, c, i)
		}
	}
	return nil
}
