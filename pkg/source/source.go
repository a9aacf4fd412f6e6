// Package source defines the capability interface the chunk pipeline uses to
// pull data out of heterogeneous array-like producers: in-memory arrays,
// already-written container datasets, and forward-only device streams.
package source

import (
	"context"

	"github.com/datagrove/arraypack/pkg/core"
)

// Source is an array-like producer of row-major byte slabs.
type Source interface {
	Shape() core.Shape
	Dtype() core.Dtype

	// ReadSlab reads the rectangular region [offset, offset+size) in
	// row-major order. The returned slice is owned by the caller.
	// Forward-only implementations reject any offset behind data already
	// consumed.
	ReadSlab(ctx context.Context, offset, size core.Shape) ([]byte, error)
}
