package arraypack

import (
	"context"
	"fmt"
	"io"
	"sort"

	"go.uber.org/zap"

	"github.com/datagrove/arraypack/pkg/chunkiter"
	"github.com/datagrove/arraypack/pkg/codec"
	"github.com/datagrove/arraypack/pkg/core"
	"github.com/datagrove/arraypack/pkg/digest"
	"github.com/datagrove/arraypack/pkg/plan"
	"github.com/datagrove/arraypack/pkg/planner"
	"github.com/datagrove/arraypack/pkg/source"
	"github.com/datagrove/arraypack/pkg/tree"
)

// Write streams every dataset of the tree into dst under the given plan.
// All validation happens before the first byte is written. Datasets already
// committed when a later one fails stay in the destination; callers wanting
// atomicity write to a fresh path and rename on success.
func (w *Writer) Write(ctx context.Context, root *tree.Group, dst Destination, bc *plan.BackendConfig) (*Manifest, error) {
	if bc.Backend() != dst.Backend() {
		return nil, fmt.Errorf("%w: plan targets %q, destination is %q",
			core.ErrBackendMismatch, bc.Backend(), dst.Backend())
	}
	if err := bc.Validate(w.cat); err != nil {
		return nil, err
	}

	sources, refs, attrs, err := resolve(root)
	if err != nil {
		return nil, err
	}
	for _, loc := range bc.Locations() {
		if _, ok := sources[loc]; !ok {
			return nil, fmt.Errorf("%w: plan names dataset %q absent from the tree", core.ErrNotFound, loc)
		}
	}

	manifest := &Manifest{Backend: dst.Backend()}
	for _, loc := range bc.Locations() {
		cfg, _ := bc.Get(loc)
		entry, err := w.writeDataset(ctx, dst, cfg, sources[loc])
		if err != nil {
			return nil, err
		}
		manifest.Entries = append(manifest.Entries, entry)
	}

	// Sorted order keeps repeated writes byte-identical.
	for _, loc := range sortedKeys(refs) {
		if err := dst.AddExternalRef(loc, refs[loc]); err != nil {
			return nil, err
		}
	}
	for _, loc := range sortedKeys(attrs) {
		if err := dst.SetAttrs(loc, attrs[loc]); err != nil {
			return nil, err
		}
	}

	if err := dst.Commit(); err != nil {
		return nil, err
	}
	manifest.Plan = bc.MarkCommitted()
	return manifest, nil
}

// writeDataset runs one dataset through the bounded iterator and encode
// pipeline. Memory residency stays within one buffer block of raw bytes.
func (w *Writer) writeDataset(ctx context.Context, dst Destination, cfg plan.DatasetConfig, src source.Source) (ManifestEntry, error) {
	desc := cfg.Descriptor

	chunk := cfg.ChunkShape
	if chunk == nil {
		chunk = desc.Shape.Clone()
		for i, d := range chunk {
			if d == 0 {
				chunk[i] = 1
			}
		}
	}
	buffer := cfg.BufferShape
	if buffer == nil {
		var err error
		buffer, err = planner.BufferFor(desc, chunk, w.cfg)
		if err != nil {
			return ManifestEntry{}, err
		}
	}

	pipe, err := w.pipeline(cfg, dst.Backend())
	if err != nil {
		return ManifestEntry{}, err
	}

	if err := dst.AddDataset(cfg); err != nil {
		return ManifestEntry{}, err
	}

	it, err := chunkiter.New(src, chunk, buffer)
	if err != nil {
		return ManifestEntry{}, err
	}

	entry := ManifestEntry{
		Location:        desc.Location,
		Shape:           desc.Shape.Clone(),
		Dtype:           desc.Dtype,
		ChunkShape:      chunk.Clone(),
		Compression:     cfg.Compression,
		CompressionOpts: cfg.CompressionOpts.Clone(),
		Filters:         append([]string(nil), cfg.Filters...),
	}
	hasher := digest.NewHasher()

	for {
		ch, err := it.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return ManifestEntry{}, err
		}
		stored, err := pipe.Encode(ch.Data)
		if err != nil {
			return ManifestEntry{}, fmt.Errorf("%s: %w", desc.Location, err)
		}
		if err := dst.AppendChunk(desc.Location, ch.Offset, ch.Size, stored, int64(len(ch.Data))); err != nil {
			return ManifestEntry{}, err
		}
		hasher.Write(ch.Data)
		entry.Chunks++
		entry.RawBytes += int64(len(ch.Data))
		entry.StoredBytes += int64(len(stored))
	}

	entry.Digest, err = hasher.Sum()
	if err != nil {
		return ManifestEntry{}, err
	}

	w.log.Info("dataset written",
		zap.String("location", desc.Location),
		zap.String("chunk_shape", chunk.String()),
		zap.String("compression", cfg.Compression),
		zap.Int64("chunks", entry.Chunks),
		zap.Int64("raw_bytes", entry.RawBytes),
		zap.Int64("stored_bytes", entry.StoredBytes),
	)
	return entry, nil
}

// pipeline assembles the encode path for one dataset.
func (w *Writer) pipeline(cfg plan.DatasetConfig, backend core.Backend) (*codec.Pipeline, error) {
	method := cfg.Compression
	if method == "" {
		method = codec.MethodNone
	}
	c, err := w.cat.New(method, cfg.CompressionOpts, backend)
	if err != nil {
		return nil, err
	}
	var filters []codec.Filter
	for i, name := range cfg.Filters {
		var opts codec.Options
		if i < len(cfg.FilterOpts) {
			opts = cfg.FilterOpts[i]
		}
		f, err := w.cat.NewFilter(name, opts, cfg.Descriptor.Dtype.Size(), backend)
		if err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return codec.NewPipeline(filters, c), nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// resolve maps the tree to per-location sources, external refs, and attrs.
func resolve(root *tree.Group) (map[string]source.Source, map[string]string, map[string]map[string]any, error) {
	sources := map[string]source.Source{}
	refs := map[string]string{}
	attrs := map[string]map[string]any{}
	if len(root.Attrs()) > 0 {
		attrs[""] = root.Attrs()
	}

	err := tree.Walk(root, func(loc string, n tree.Node) error {
		switch node := n.(type) {
		case *tree.Array:
			sources[loc] = node.Source
		case *tree.Ragged:
			sources[loc] = node.Data.Source
			sources[loc+plan.RaggedIndexSuffix] = node.Index.Source
		case *tree.ExternalRef:
			refs[loc] = node.Target
		case *tree.Group:
			if len(node.Attrs()) > 0 {
				attrs[loc] = node.Attrs()
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return sources, refs, attrs, nil
}
