package packfile

import (
	"context"
	"encoding/binary"
	"fmt"
	"os"

	"github.com/datagrove/arraypack/pkg/codec"
	"github.com/datagrove/arraypack/pkg/container"
	"github.com/datagrove/arraypack/pkg/core"
	"github.com/datagrove/arraypack/pkg/digest"
	"github.com/datagrove/arraypack/pkg/plan"
	"github.com/datagrove/arraypack/pkg/source"
)

// Reader opens a committed packfile read-only.
type Reader struct {
	f   *os.File
	idx *fileIndex

	byLoc map[string]*datasetIndex
}

func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.Size() < headerSize+trailerSize {
		f.Close()
		return nil, fmt.Errorf("%w: file too small", core.ErrCorrupt)
	}

	header := make([]byte, headerSize)
	if _, err := f.ReadAt(header, 0); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: header: %v", core.ErrCorrupt, err)
	}
	if string(header[:4]) != Magic || header[4] != Version {
		f.Close()
		return nil, fmt.Errorf("%w: bad magic or version", core.ErrCorrupt)
	}

	trailer := make([]byte, trailerSize)
	if _, err := f.ReadAt(trailer, st.Size()-trailerSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: trailer: %v", core.ErrCorrupt, err)
	}
	if string(trailer[8:]) != Magic {
		f.Close()
		return nil, fmt.Errorf("%w: bad trailer magic", core.ErrCorrupt)
	}
	footerOff := int64(binary.BigEndian.Uint64(trailer[:8]))
	if footerOff < headerSize || footerOff > st.Size()-trailerSize {
		f.Close()
		return nil, fmt.Errorf("%w: footer offset out of range", core.ErrCorrupt)
	}

	footer := make([]byte, st.Size()-trailerSize-footerOff)
	if _, err := f.ReadAt(footer, footerOff); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: footer: %v", core.ErrCorrupt, err)
	}
	idx, err := decodeIndex(footer)
	if err != nil {
		f.Close()
		return nil, err
	}

	r := &Reader{f: f, idx: idx, byLoc: map[string]*datasetIndex{}}
	for i := range idx.Datasets {
		r.byLoc[idx.Datasets[i].Location] = &idx.Datasets[i]
	}
	return r, nil
}

func (r *Reader) Backend() core.Backend { return core.BackendPack }

func (r *Reader) Locations() []string {
	out := make([]string, len(r.idx.Datasets))
	for i, ds := range r.idx.Datasets {
		out[i] = ds.Location
	}
	return out
}

// Introspect recovers the on-disk plan of every dataset verbatim. Buffer
// shapes are a write-time concern and come back nil.
func (r *Reader) Introspect() ([]plan.DatasetConfig, error) {
	out := make([]plan.DatasetConfig, 0, len(r.idx.Datasets))
	for _, ds := range r.idx.Datasets {
		out = append(out, plan.DatasetConfig{
			Descriptor: core.Descriptor{
				Location: ds.Location,
				Shape:    core.Shape(ds.Shape).Clone(),
				Dtype:    core.Dtype(ds.Dtype),
			},
			ChunkShape:      core.Shape(ds.ChunkShape).Clone(),
			Compression:     ds.Compression,
			CompressionOpts: codec.Options(ds.CompressionOpts).Clone(),
			Origin:          plan.OriginExisting,
		})
	}
	return out, nil
}

func (r *Reader) Refs() map[string]string {
	out := make(map[string]string, len(r.idx.Refs))
	for _, ref := range r.idx.Refs {
		out[ref.Location] = ref.Target
	}
	return out
}

func (r *Reader) Attrs() map[string]map[string]any {
	out := make(map[string]map[string]any, len(r.idx.Attrs))
	for _, a := range r.idx.Attrs {
		out[a.Location] = a.Values
	}
	return out
}

// DatasetSource opens one dataset for region reads. Stored chunks are
// digest-verified before decoding.
func (r *Reader) DatasetSource(loc string, cat *codec.Catalog) (source.Source, error) {
	ds, ok := r.byLoc[loc]
	if !ok {
		return nil, fmt.Errorf("%w: dataset %q", core.ErrNotFound, loc)
	}

	method := ds.Compression
	if method == "" {
		method = codec.MethodNone
	}
	c, err := cat.New(method, codec.Options(ds.CompressionOpts), core.BackendPack)
	if err != nil {
		return nil, err
	}

	// Chunk records keyed by grid origin.
	records := make(map[string]*chunkRecord, len(ds.Chunks))
	for i := range ds.Chunks {
		records[gridKey(ds.Chunks[i].Offset)] = &ds.Chunks[i]
	}

	desc := core.Descriptor{
		Location: ds.Location,
		Shape:    core.Shape(ds.Shape).Clone(),
		Dtype:    core.Dtype(ds.Dtype),
	}

	fetch := func(ctx context.Context, origin, size core.Shape) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, ok := records[gridKey(origin)]
		if !ok {
			return nil, fmt.Errorf("%w: %s: no chunk at %v", core.ErrCorrupt, loc, origin)
		}
		stored := make([]byte, rec.StoredLen)
		if _, err := r.f.ReadAt(stored, rec.FileOffset); err != nil {
			return nil, fmt.Errorf("%w: %s: chunk at %v: %v", core.ErrCorrupt, loc, origin, err)
		}
		if err := digest.Verify(rec.Digest, stored); err != nil {
			return nil, fmt.Errorf("%s: chunk at %v: %w", loc, origin, err)
		}
		raw, err := c.Decode(stored)
		if err != nil {
			return nil, fmt.Errorf("%s: chunk at %v: %w", loc, origin, err)
		}
		return raw, nil
	}

	return container.NewChunkedSource(desc, core.Shape(ds.ChunkShape), fetch), nil
}

func (r *Reader) Close() error { return r.f.Close() }

func gridKey(offset []int64) string {
	return fmt.Sprint(offset)
}
