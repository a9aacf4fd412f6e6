package packfile

import (
	"encoding/binary"
	"fmt"
	"os"
	"sync"

	"github.com/datagrove/arraypack/pkg/core"
	"github.com/datagrove/arraypack/pkg/digest"
	"github.com/datagrove/arraypack/pkg/plan"
)

// Writer appends encoded chunks to a new packfile. One writer owns the file;
// byte writes are serialized by an internal mutex so per-dataset chunk
// production may fan out while commit order stays single-writer.
type Writer struct {
	mu sync.Mutex

	f         *os.File
	off       int64
	idx       fileIndex
	byLoc     map[string]int // position in idx.Datasets; survives reallocation
	committed bool
}

// Create opens a fresh packfile at path and writes the header.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", core.ErrWrite, path, err)
	}

	header := make([]byte, headerSize)
	copy(header, Magic)
	header[4] = Version
	if _, err := f.Write(header); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: header: %v", core.ErrWrite, err)
	}

	return &Writer{
		f:     f,
		off:   headerSize,
		idx:   fileIndex{Version: Version},
		byLoc: map[string]int{},
	}, nil
}

func (w *Writer) Backend() core.Backend { return core.BackendPack }

// AddDataset registers a dataset before its chunks are appended. A nil
// chunk shape stores the dataset as a single whole-array chunk.
func (w *Writer) AddDataset(cfg plan.DatasetConfig) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committed {
		return core.ErrClosed
	}
	loc := cfg.Descriptor.Location
	if _, dup := w.byLoc[loc]; dup {
		return fmt.Errorf("%w: duplicate dataset %q", core.ErrInvalidInput, loc)
	}

	chunk := cfg.ChunkShape
	if chunk == nil {
		chunk = cfg.Descriptor.Shape.Clone()
		for i, d := range chunk {
			if d == 0 {
				chunk[i] = 1
			}
		}
	}
	w.idx.Datasets = append(w.idx.Datasets, datasetIndex{
		Location:        loc,
		Shape:           cfg.Descriptor.Shape.Clone(),
		Dtype:           string(cfg.Descriptor.Dtype),
		ChunkShape:      chunk.Clone(),
		Compression:     cfg.Compression,
		CompressionOpts: cfg.CompressionOpts,
	})
	w.byLoc[loc] = len(w.idx.Datasets) - 1
	return nil
}

// AppendChunk writes one encoded chunk and records it in the index.
func (w *Writer) AppendChunk(loc string, offset, size core.Shape, stored []byte, rawLen int64) error {
	dg, err := digest.Chunk(stored)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committed {
		return core.ErrClosed
	}
	pos, ok := w.byLoc[loc]
	if !ok {
		return fmt.Errorf("%w: dataset %q not registered", core.ErrNotFound, loc)
	}
	ds := &w.idx.Datasets[pos]

	if _, err := w.f.WriteAt(stored, w.off); err != nil {
		return fmt.Errorf("%w: chunk at %v of %s: %v", core.ErrWrite, offset, loc, err)
	}
	ds.Chunks = append(ds.Chunks, chunkRecord{
		Offset:     offset.Clone(),
		Size:       size.Clone(),
		FileOffset: w.off,
		StoredLen:  int64(len(stored)),
		RawLen:     rawLen,
		Digest:     dg,
	})
	w.off += int64(len(stored))
	return nil
}

// AddExternalRef records a pointer-to-external-data leaf, copied verbatim.
func (w *Writer) AddExternalRef(loc, target string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committed {
		return core.ErrClosed
	}
	w.idx.Refs = append(w.idx.Refs, refEntry{Location: loc, Target: target})
	return nil
}

// SetAttrs records the scalar attributes of one owner location.
func (w *Writer) SetAttrs(loc string, values map[string]any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committed {
		return core.ErrClosed
	}
	if len(values) == 0 {
		return nil
	}
	w.idx.Attrs = append(w.idx.Attrs, attrEntry{Location: loc, Values: values})
	return nil
}

// Commit writes the index footer and trailer and syncs the file. The writer
// is unusable afterwards.
func (w *Writer) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committed {
		return core.ErrClosed
	}

	footer, err := encodeIndex(&w.idx)
	if err != nil {
		return fmt.Errorf("%w: index encode: %v", core.ErrWrite, err)
	}
	footerOff := w.off
	if _, err := w.f.WriteAt(footer, footerOff); err != nil {
		return fmt.Errorf("%w: footer: %v", core.ErrWrite, err)
	}

	trailer := make([]byte, trailerSize)
	binary.BigEndian.PutUint64(trailer[:8], uint64(footerOff))
	copy(trailer[8:], Magic)
	if _, err := w.f.WriteAt(trailer, footerOff+int64(len(footer))); err != nil {
		return fmt.Errorf("%w: trailer: %v", core.ErrWrite, err)
	}

	if err := w.f.Sync(); err != nil {
		return fmt.Errorf("%w: sync: %v", core.ErrWrite, err)
	}
	w.committed = true
	return w.f.Close()
}

// Close abandons an uncommitted writer.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committed {
		return nil
	}
	w.committed = true
	return w.f.Close()
}
