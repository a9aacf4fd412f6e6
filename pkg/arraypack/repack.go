package arraypack

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/datagrove/arraypack/pkg/codec"
	"github.com/datagrove/arraypack/pkg/container"
	"github.com/datagrove/arraypack/pkg/core"
	"github.com/datagrove/arraypack/pkg/plan"
	"github.com/datagrove/arraypack/pkg/planner"
)

// GlobalCompression rewrites every non-disabled dataset to one method.
type GlobalCompression struct {
	Method string
	Opts   codec.Options
}

// RepackOptions steers Repack.
//
// UseDefaultConfig discards the source's plan and re-plans every dataset
// from scratch; it is required whenever the source and destination are of
// different families, since chunk and compression semantics do not carry
// across. Overrides and Global are mutually exclusive ways to refine the
// resulting plan.
type RepackOptions struct {
	UseDefaultConfig bool
	Overrides        map[string]plan.Override
	Global           *GlobalCompression
}

// Repack streams every dataset of an existing container into dst, possibly
// under a different backend family and a different plan. Validation errors
// surface before any byte is written.
func (w *Writer) Repack(ctx context.Context, src container.Container, dst Destination, opts RepackOptions) (*Manifest, error) {
	srcBackend, dstBackend := src.Backend(), dst.Backend()
	if srcBackend != dstBackend && !opts.UseDefaultConfig {
		return nil, fmt.Errorf("%w: cannot carry a %q plan into a %q destination without defaulting",
			core.ErrBackendMismatch, srcBackend, dstBackend)
	}
	if opts.Global != nil && len(opts.Overrides) > 0 {
		return nil, fmt.Errorf("%w: global compression cannot be combined with per-dataset overrides",
			core.ErrAmbiguousConfig)
	}

	existing, err := src.Introspect()
	if err != nil {
		return nil, err
	}

	bc, err := w.repackPlan(existing, dstBackend, opts.UseDefaultConfig)
	if err != nil {
		return nil, err
	}
	if opts.Global != nil {
		bc, err = bc.WithGlobalCompression(opts.Global.Method, opts.Global.Opts, w.cat)
		if err != nil {
			return nil, err
		}
	}
	if len(opts.Overrides) > 0 {
		bc, err = bc.Apply(opts.Overrides)
		if err != nil {
			return nil, err
		}
	}
	if err := bc.Validate(w.cat); err != nil {
		return nil, err
	}

	manifest := &Manifest{Backend: dstBackend}
	for _, loc := range bc.Locations() {
		cfg, _ := bc.Get(loc)
		s, err := src.DatasetSource(loc, w.cat)
		if err != nil {
			return nil, err
		}
		entry, err := w.writeDataset(ctx, dst, cfg, s)
		if err != nil {
			return nil, err
		}
		manifest.Entries = append(manifest.Entries, entry)
	}

	// Non-data leaves are copied byte-for-byte without planning.
	refs := src.Refs()
	for _, loc := range sortedKeys(refs) {
		if err := dst.AddExternalRef(loc, refs[loc]); err != nil {
			return nil, err
		}
	}
	attrs := src.Attrs()
	for _, loc := range sortedKeys(attrs) {
		if err := dst.SetAttrs(loc, attrs[loc]); err != nil {
			return nil, err
		}
	}

	if err := dst.Commit(); err != nil {
		return nil, err
	}
	manifest.Plan = bc.MarkCommitted()
	w.log.Info("repack complete",
		zap.String("source_backend", string(srcBackend)),
		zap.String("destination_backend", string(dstBackend)),
		zap.Int("datasets", len(manifest.Entries)),
	)
	return manifest, nil
}

// repackPlan either re-plans every dataset from its descriptor or carries
// the introspected plan forward verbatim.
func (w *Writer) repackPlan(existing []plan.DatasetConfig, backend core.Backend, useDefault bool) (*plan.BackendConfig, error) {
	if !useDefault {
		return plan.FromIntrospection(backend, existing)
	}

	bc, err := plan.NewBackendConfig(backend)
	if err != nil {
		return nil, err
	}
	defaultMethod := w.cat.Default(backend)
	for _, d := range existing {
		chunk, buffer, err := planner.Plan(d.Descriptor, w.cfg)
		if err != nil {
			return nil, err
		}
		if err := bc.Add(plan.DatasetConfig{
			Descriptor:  d.Descriptor,
			ChunkShape:  chunk,
			BufferShape: buffer,
			Compression: defaultMethod,
			Origin:      plan.OriginPlanned,
		}); err != nil {
			return nil, err
		}
	}
	return bc, nil
}
