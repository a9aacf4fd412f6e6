package objstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/datagrove/arraypack/pkg/codec"
	"github.com/datagrove/arraypack/pkg/container"
	"github.com/datagrove/arraypack/pkg/core"
	"github.com/datagrove/arraypack/pkg/plan"
	"github.com/datagrove/arraypack/pkg/source"
)

const (
	rootKey  = "container.json"
	metaName = "meta.json"
	refName  = "ref.json"
	attrName = "attrs.json"

	chunkSeparator = "."
	formatVersion  = 1
)

type compressorMeta struct {
	ID      string         `json:"id"`
	Options map[string]int `json:"options,omitempty"`
}

type filterMeta struct {
	ID      string         `json:"id"`
	Options map[string]int `json:"options,omitempty"`
}

// arrayMeta is the per-dataset metadata object. A null compressor means no
// compression was recorded; {"id":"none"} means deliberately disabled.
// Null chunks mean the array was stored whole with no chunk grid.
type arrayMeta struct {
	Shape      []int64         `json:"shape"`
	Dtype      string          `json:"dtype"`
	Chunks     []int64         `json:"chunks"`
	Compressor *compressorMeta `json:"compressor"`
	Filters    []filterMeta    `json:"filters,omitempty"`
	Format     int             `json:"format"`
}

// rootMeta indexes the container: dataset discovery order, external refs,
// and which locations carry attributes.
type rootMeta struct {
	Format     int               `json:"format"`
	Datasets   []string          `json:"datasets"`
	Refs       map[string]string `json:"refs,omitempty"`
	AttrOwners []string          `json:"attr_owners,omitempty"`
}

// chunkKey renders grid indices as a dotted key, e.g. (1,4) -> "1.4".
func chunkKey(indices []int64) string {
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.FormatInt(idx, 10)
	}
	return strings.Join(parts, chunkSeparator)
}

// Writer populates a Store with one container.
type Writer struct {
	mu sync.Mutex

	store     Store
	root      rootMeta
	chunks    map[string]core.Shape // location -> chunk shape for key mapping
	committed bool
}

func Create(store Store) *Writer {
	return &Writer{
		store:  store,
		root:   rootMeta{Format: formatVersion, Refs: map[string]string{}},
		chunks: map[string]core.Shape{},
	}
}

func (w *Writer) Backend() core.Backend { return core.BackendObject }

// AddDataset writes the dataset's metadata object and registers it in the
// container root.
func (w *Writer) AddDataset(cfg plan.DatasetConfig) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committed {
		return core.ErrClosed
	}
	loc := cfg.Descriptor.Location
	if _, dup := w.chunks[loc]; dup {
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

	meta := arrayMeta{
		Shape:  cfg.Descriptor.Shape.Clone(),
		Dtype:  string(cfg.Descriptor.Dtype),
		Chunks: chunk.Clone(),
		Format: formatVersion,
	}
	if cfg.Compression != "" {
		meta.Compressor = &compressorMeta{ID: cfg.Compression, Options: cfg.CompressionOpts}
	}
	for i, f := range cfg.Filters {
		fm := filterMeta{ID: f}
		if i < len(cfg.FilterOpts) {
			fm.Options = cfg.FilterOpts[i]
		}
		meta.Filters = append(meta.Filters, fm)
	}

	b, err := json.MarshalIndent(&meta, "", "  ")
	if err != nil {
		return err
	}
	if err := w.store.Put(loc+"/"+metaName, b); err != nil {
		return err
	}
	w.root.Datasets = append(w.root.Datasets, loc)
	w.chunks[loc] = chunk.Clone()
	return nil
}

// AppendChunk stores one encoded chunk under its dotted grid key.
func (w *Writer) AppendChunk(loc string, offset, size core.Shape, stored []byte, rawLen int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committed {
		return core.ErrClosed
	}
	chunk, ok := w.chunks[loc]
	if !ok {
		return fmt.Errorf("%w: dataset %q not registered", core.ErrNotFound, loc)
	}
	indices := make([]int64, len(offset))
	for i := range offset {
		indices[i] = offset[i] / chunk[i]
	}
	return w.store.Put(loc+"/"+chunkKey(indices), stored)
}

func (w *Writer) AddExternalRef(loc, target string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committed {
		return core.ErrClosed
	}
	b, err := json.Marshal(map[string]string{"target": target})
	if err != nil {
		return err
	}
	if err := w.store.Put(loc+"/"+refName, b); err != nil {
		return err
	}
	w.root.Refs[loc] = target
	return nil
}

func (w *Writer) SetAttrs(loc string, values map[string]any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committed {
		return core.ErrClosed
	}
	if len(values) == 0 {
		return nil
	}
	b, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return err
	}
	key := attrName
	if loc != "" {
		key = loc + "/" + attrName
	}
	if err := w.store.Put(key, b); err != nil {
		return err
	}
	w.root.AttrOwners = append(w.root.AttrOwners, loc)
	return nil
}

// Commit writes the container root object. The writer is unusable after.
func (w *Writer) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.committed {
		return core.ErrClosed
	}
	b, err := json.MarshalIndent(&w.root, "", "  ")
	if err != nil {
		return err
	}
	if err := w.store.Put(rootKey, b); err != nil {
		return err
	}
	w.committed = true
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.committed = true
	return nil
}

// Reader opens a committed container from a Store.
type Reader struct {
	store Store
	root  rootMeta
	metas map[string]*arrayMeta
}

func Open(store Store) (*Reader, error) {
	b, err := store.Get(rootKey)
	if err != nil {
		return nil, fmt.Errorf("%w: missing container root: %v", core.ErrCorrupt, err)
	}
	var root rootMeta
	if err := json.Unmarshal(b, &root); err != nil {
		return nil, fmt.Errorf("%w: container root: %v", core.ErrCorrupt, err)
	}
	if root.Format != formatVersion {
		return nil, fmt.Errorf("%w: unsupported container format %d", core.ErrCorrupt, root.Format)
	}

	r := &Reader{store: store, root: root, metas: map[string]*arrayMeta{}}
	for _, loc := range root.Datasets {
		mb, err := store.Get(loc + "/" + metaName)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: missing metadata: %v", core.ErrCorrupt, loc, err)
		}
		var meta arrayMeta
		if err := json.Unmarshal(mb, &meta); err != nil {
			return nil, fmt.Errorf("%w: %s: metadata: %v", core.ErrCorrupt, loc, err)
		}
		r.metas[loc] = &meta
	}
	return r, nil
}

func (r *Reader) Backend() core.Backend { return core.BackendObject }

func (r *Reader) Locations() []string {
	return append([]string(nil), r.root.Datasets...)
}

// Introspect recovers each dataset's on-disk plan verbatim, including the
// whole-array case (nil chunk shape, no compression recorded).
func (r *Reader) Introspect() ([]plan.DatasetConfig, error) {
	out := make([]plan.DatasetConfig, 0, len(r.root.Datasets))
	for _, loc := range r.root.Datasets {
		meta := r.metas[loc]
		cfg := plan.DatasetConfig{
			Descriptor: core.Descriptor{
				Location: loc,
				Shape:    core.Shape(meta.Shape).Clone(),
				Dtype:    core.Dtype(meta.Dtype),
			},
			ChunkShape: core.Shape(meta.Chunks).Clone(),
			Origin:     plan.OriginExisting,
		}
		if meta.Compressor != nil {
			cfg.Compression = meta.Compressor.ID
			cfg.CompressionOpts = codec.Options(meta.Compressor.Options).Clone()
		}
		for _, f := range meta.Filters {
			cfg.Filters = append(cfg.Filters, f.ID)
			cfg.FilterOpts = append(cfg.FilterOpts, codec.Options(f.Options).Clone())
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (r *Reader) Refs() map[string]string {
	out := make(map[string]string, len(r.root.Refs))
	for k, v := range r.root.Refs {
		out[k] = v
	}
	return out
}

func (r *Reader) Attrs() map[string]map[string]any {
	out := make(map[string]map[string]any, len(r.root.AttrOwners))
	for _, loc := range r.root.AttrOwners {
		key := attrName
		if loc != "" {
			key = loc + "/" + attrName
		}
		b, err := r.store.Get(key)
		if err != nil {
			continue
		}
		var values map[string]any
		if json.Unmarshal(b, &values) == nil {
			out[loc] = values
		}
	}
	return out
}

// DatasetSource opens one dataset for region reads, reversing the filter
// chain after the primary codec.
func (r *Reader) DatasetSource(loc string, cat *codec.Catalog) (source.Source, error) {
	meta, ok := r.metas[loc]
	if !ok {
		return nil, fmt.Errorf("%w: dataset %q", core.ErrNotFound, loc)
	}

	desc := core.Descriptor{
		Location: loc,
		Shape:    core.Shape(meta.Shape).Clone(),
		Dtype:    core.Dtype(meta.Dtype),
	}

	method := codec.MethodNone
	var copts codec.Options
	if meta.Compressor != nil {
		method = meta.Compressor.ID
		copts = meta.Compressor.Options
	}
	c, err := cat.New(method, copts, core.BackendObject)
	if err != nil {
		return nil, err
	}
	var filters []codec.Filter
	for _, fm := range meta.Filters {
		f, err := cat.NewFilter(fm.ID, fm.Options, desc.Dtype.Size(), core.BackendObject)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	pipe := codec.NewPipeline(filters, c)

	chunk := core.Shape(meta.Chunks).Clone()
	gridChunk := chunk
	if gridChunk == nil {
		gridChunk = desc.Shape.Clone()
		for i, d := range gridChunk {
			if d == 0 {
				gridChunk[i] = 1
			}
		}
	}

	fetch := func(ctx context.Context, origin, size core.Shape) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		indices := make([]int64, len(origin))
		for i := range origin {
			indices[i] = origin[i] / gridChunk[i]
		}
		stored, err := r.store.Get(loc + "/" + chunkKey(indices))
		if err != nil {
			return nil, fmt.Errorf("%w: %s: no chunk at %v", core.ErrCorrupt, loc, origin)
		}
		raw, err := pipe.Decode(stored)
		if err != nil {
			return nil, fmt.Errorf("%s: chunk at %v: %w", loc, origin, err)
		}
		return raw, nil
	}

	return container.NewChunkedSource(desc, chunk, fetch), nil
}

func (r *Reader) Close() error { return r.store.Close() }
