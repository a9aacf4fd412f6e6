package chunkiter

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/datagrove/arraypack/internal/testkit"
	"github.com/datagrove/arraypack/pkg/core"
	"github.com/datagrove/arraypack/pkg/source"
)

// drain runs the iterator to io.EOF and scatters every chunk back into a
// full-size slab at its offset, counting per-byte coverage.
func drain(t *testing.T, it *Iterator, full core.Shape, elem int64) ([]byte, []Chunk) {
	t.Helper()
	ctx := context.Background()
	out := make([]byte, full.Elements()*elem)
	cover := make([]int, len(out))
	var chunks []Chunk

	strides := make([]int64, full.Rank())
	strides[full.Rank()-1] = elem
	for i := full.Rank() - 2; i >= 0; i-- {
		strides[i] = strides[i+1] * full[i+1]
	}

	for {
		c, err := it.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		chunks = append(chunks, c)

		if want := c.Size.Elements() * elem; int64(len(c.Data)) != want {
			t.Fatalf("chunk at %v: %d bytes, want %d", c.Offset, len(c.Data), want)
		}

		// Place chunk rows into the output slab.
		coord := c.Offset.Clone()
		run := c.Size[len(c.Size)-1] * elem
		var src int64
		for {
			dst := int64(0)
			for i := range coord {
				dst += coord[i] * strides[i]
			}
			copy(out[dst:dst+run], c.Data[src:src+run])
			for i := dst; i < dst+run; i++ {
				cover[i]++
			}
			src += run

			i := len(coord) - 2
			for ; i >= 0; i-- {
				coord[i]++
				if coord[i] < c.Offset[i]+c.Size[i] {
					break
				}
				coord[i] = c.Offset[i]
			}
			if i < 0 {
				break
			}
		}
	}

	for i, n := range cover {
		if n != 1 {
			t.Fatalf("byte %d covered %d times, want exactly once", i, n)
		}
	}
	return out, chunks
}

func TestIteratorCoversExactly(t *testing.T) {
	r := testkit.RNG(17)
	cases := []struct {
		name          string
		full          core.Shape
		chunk, buffer core.Shape
	}{
		{"Aligned", core.Shape{8, 6}, core.Shape{2, 3}, core.Shape{4, 6}},
		{"ClippedEdges", core.Shape{10, 7}, core.Shape{3, 4}, core.Shape{6, 7}},
		{"ChunkEqualsBuffer", core.Shape{9, 5}, core.Shape{4, 5}, core.Shape{4, 5}},
		{"WholeArray", core.Shape{5, 5}, core.Shape{5, 5}, core.Shape{5, 5}},
		{"OneD", core.Shape{100}, core.Shape{7}, core.Shape{21}},
		{"ThreeD", core.Shape{4, 5, 6}, core.Shape{2, 2, 4}, core.Shape{4, 2, 6}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data := testkit.RandomBytes(r, int(tc.full.Elements()*2))
			src := source.NewMemory(tc.full, core.Int16, data)
			it, err := New(src, tc.chunk, tc.buffer)
			if err != nil {
				t.Fatal(err)
			}
			out, chunks := drain(t, it, tc.full, 2)
			if !bytes.Equal(out, data) {
				t.Error("reassembled array differs from source")
			}
			if int64(len(chunks)) != it.NumChunks() {
				t.Errorf("emitted %d chunks, NumChunks says %d", len(chunks), it.NumChunks())
			}
		})
	}
}

func TestIteratorClipsEdgeChunks(t *testing.T) {
	full := core.Shape{10, 7}
	data := testkit.RandomBytes(testkit.RNG(2), int(full.Elements()))
	src := source.NewMemory(full, core.Uint8, data)
	it, err := New(src, core.Shape{3, 4}, core.Shape{6, 7})
	if err != nil {
		t.Fatal(err)
	}
	_, chunks := drain(t, it, full, 1)

	for _, c := range chunks {
		for i := range full {
			want := min64(3, full[i]-c.Offset[i])
			if i == 1 {
				want = min64(4, full[i]-c.Offset[i])
			}
			if c.Size[i] != want {
				t.Errorf("chunk at %v: size[%d] = %d, want %d", c.Offset, i, c.Size[i], want)
			}
		}
	}
}

func TestIteratorForwardOnlyStream(t *testing.T) {
	// A non-seekable source works because buffer blocks are visited strictly
	// forward and whole rows at a time.
	full := core.Shape{24, 4}
	data := testkit.Float32Slab(testkit.RNG(3), full)
	src := source.NewRowStream(full, core.Float32, bytes.NewReader(data))

	it, err := New(src, core.Shape{4, 4}, core.Shape{8, 4})
	if err != nil {
		t.Fatal(err)
	}
	out, _ := drain(t, it, full, 4)
	if !bytes.Equal(out, data) {
		t.Error("stream-fed iteration differs from source")
	}
}

func TestIteratorShortRead(t *testing.T) {
	// 400 bytes of data truncated to 336; blocks are 20 rows (160 bytes)
	// each, so the first two blocks and their four chunks are intact and
	// the read of the third block fails. Every intact chunk must come out
	// before the error does.
	full := core.Shape{50, 4}
	short := make([]byte, 50*4*2-64)
	src := source.NewMemory(full, core.Int16, short)

	it, err := New(src, core.Shape{10, 4}, core.Shape{20, 4})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	for i := 0; i < 4; i++ {
		c, err := it.Next(ctx)
		if err != nil {
			t.Fatalf("pull %d: %v", i, err)
		}
		if want := int64(i * 10); c.Offset[0] != want {
			t.Errorf("pull %d: offset[0] = %d, want %d", i, c.Offset[0], want)
		}
	}
	if _, err := it.Next(ctx); !errors.Is(err, core.ErrShortRead) {
		t.Errorf("want ErrShortRead after last intact chunk, got %v", err)
	}
}

func TestIteratorEmitsLastChunkBeforeShortBlock(t *testing.T) {
	// Only the first of two blocks is backed by data. The chunk from the
	// intact block must be returned as-is; the failing read happens on the
	// following pull, not eagerly on this one.
	full := core.Shape{4}
	src := source.NewMemory(full, core.Uint8, []byte{7, 8, 9})

	it, err := New(src, core.Shape{2}, core.Shape{2})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	c, err := it.Next(ctx)
	if err != nil {
		t.Fatalf("first pull: %v", err)
	}
	if c.Offset[0] != 0 || c.Size[0] != 2 || !bytes.Equal(c.Data, []byte{7, 8}) {
		t.Errorf("first chunk = %v at %v (%v), want [7 8] at (0)", c.Data, c.Offset, c.Size)
	}
	if _, err := it.Next(ctx); !errors.Is(err, core.ErrShortRead) {
		t.Errorf("second pull: want ErrShortRead, got %v", err)
	}
}

// slabCounter wraps a Source and counts ReadSlab calls.
type slabCounter struct {
	source.Source
	calls int
}

func (s *slabCounter) ReadSlab(ctx context.Context, offset, size core.Shape) ([]byte, error) {
	s.calls++
	return s.Source.ReadSlab(ctx, offset, size)
}

func TestIteratorReadsBlocksLazily(t *testing.T) {
	full := core.Shape{8}
	src := &slabCounter{Source: source.NewMemory(full, core.Uint8, make([]byte, 8))}
	it, err := New(src, core.Shape{2}, core.Shape{2})
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	if _, err := it.Next(ctx); err != nil {
		t.Fatal(err)
	}
	if src.calls != 1 {
		t.Errorf("after one pull: %d slab reads, want 1", src.calls)
	}
	if _, err := it.Next(ctx); err != nil {
		t.Fatal(err)
	}
	if src.calls != 2 {
		t.Errorf("after two pulls: %d slab reads, want 2", src.calls)
	}
}

func TestIteratorCancellation(t *testing.T) {
	full := core.Shape{16, 4}
	src := source.NewMemory(full, core.Int16, testkit.Int16Slab(testkit.RNG(4), full))
	it, err := New(src, core.Shape{4, 4}, core.Shape{8, 4})
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := it.Next(ctx); err != nil {
		t.Fatal(err)
	}
	cancel()
	if _, err := it.Next(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}

func TestIteratorEmptyArray(t *testing.T) {
	full := core.Shape{0, 4}
	src := source.NewMemory(full, core.Int16, nil)
	it, err := New(src, core.Shape{1, 4}, core.Shape{1, 4})
	if err != nil {
		t.Fatal(err)
	}
	if n := it.NumChunks(); n != 0 {
		t.Errorf("NumChunks = %d, want 0", n)
	}
	if _, err := it.Next(context.Background()); err != io.EOF {
		t.Errorf("want io.EOF, got %v", err)
	}
}

func TestIteratorEOFSticky(t *testing.T) {
	full := core.Shape{4}
	src := source.NewMemory(full, core.Uint8, []byte{1, 2, 3, 4})
	it, err := New(src, core.Shape{4}, core.Shape{4})
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if _, err := it.Next(ctx); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if _, err := it.Next(ctx); err != io.EOF {
			t.Fatalf("call %d after exhaustion: want io.EOF, got %v", i, err)
		}
	}
}

func TestNewRejectsBadPlans(t *testing.T) {
	full := core.Shape{10, 10}
	src := source.NewMemory(full, core.Uint8, make([]byte, 100))

	cases := []struct {
		name          string
		chunk, buffer core.Shape
	}{
		{"ChunkTooBig", core.Shape{11, 10}, core.Shape{11, 10}},
		{"BufferBelowChunk", core.Shape{4, 4}, core.Shape{2, 4}},
		{"BufferNotMultiple", core.Shape{3, 3}, core.Shape{7, 9}},
		{"RankMismatch", core.Shape{3}, core.Shape{3}},
		{"ZeroChunk", core.Shape{0, 5}, core.Shape{5, 5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := New(src, tc.chunk, tc.buffer); !errors.Is(err, core.ErrInvalidInput) {
				t.Errorf("want ErrInvalidInput, got %v", err)
			}
		})
	}
}
