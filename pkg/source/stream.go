package source

import (
	"context"
	"fmt"
	"io"

	"github.com/datagrove/arraypack/pkg/core"
)

// RowStream adapts a strictly-forward producer of row-major bytes (a device
// reader that cannot seek) to the Source interface. Reads must request whole
// rows in order: the offset must sit exactly at the next unconsumed row and
// span the full extent of every inner axis.
type RowStream struct {
	shape core.Shape
	dtype core.Dtype
	r     io.Reader

	nextRow int64
}

func NewRowStream(shape core.Shape, dtype core.Dtype, r io.Reader) *RowStream {
	return &RowStream{shape: shape.Clone(), dtype: dtype, r: r}
}

func (s *RowStream) Shape() core.Shape { return s.shape.Clone() }
func (s *RowStream) Dtype() core.Dtype { return s.dtype }

func (s *RowStream) ReadSlab(ctx context.Context, offset, size core.Shape) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkRegion(s.shape, offset, size); err != nil {
		return nil, err
	}
	for i := 1; i < len(s.shape); i++ {
		if offset[i] != 0 || size[i] != s.shape[i] {
			return nil, fmt.Errorf("%w: stream source requires full rows, got axis %d region [%d,%d) of %d",
				core.ErrInvalidInput, i, offset[i], offset[i]+size[i], s.shape[i])
		}
	}
	if offset[0] != s.nextRow {
		return nil, fmt.Errorf("%w: stream source cannot seek to row %d (next is %d)",
			core.ErrInvalidInput, offset[0], s.nextRow)
	}

	rowBytes := s.shape.Elements() / max64(s.shape[0], 1) * s.dtype.Size()
	out := make([]byte, size[0]*rowBytes)
	n, err := io.ReadFull(s.r, out)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		consumed := s.nextRow*rowBytes + int64(n)
		return nil, fmt.Errorf("%w: stream ended at byte offset %d, need %d more",
			core.ErrShortRead, consumed, int64(len(out))-int64(n))
	}
	if err != nil {
		return nil, err
	}
	s.nextRow += size[0]
	return out, nil
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
