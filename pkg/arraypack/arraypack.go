// Package arraypack orchestrates the write pipeline: resolve or build a
// backend configuration, stream every dataset through the bounded chunk
// iterator, and persist encoded chunks into a destination container of
// either family.
package arraypack

import (
	"go.uber.org/zap"

	"github.com/datagrove/arraypack/pkg/codec"
	"github.com/datagrove/arraypack/pkg/core"
	"github.com/datagrove/arraypack/pkg/plan"
)

// Destination is the write surface both container families expose.
type Destination interface {
	Backend() core.Backend
	AddDataset(cfg plan.DatasetConfig) error
	AppendChunk(loc string, offset, size core.Shape, stored []byte, rawLen int64) error
	AddExternalRef(loc, target string) error
	SetAttrs(loc string, values map[string]any) error
	Commit() error
	Close() error
}

// Writer drives writes and repacks. The catalog and planner configuration
// are fixed per writer; the zero value of each option falls back to the
// standard catalog, package defaults, and a no-op logger.
type Writer struct {
	cat *codec.Catalog
	cfg core.PlannerConfig
	log *zap.Logger
}

type Option func(*Writer)

// WithCatalog substitutes the compression catalog.
func WithCatalog(cat *codec.Catalog) Option {
	return func(w *Writer) { w.cat = cat }
}

// WithPlannerConfig sets the memory budget and chunk sizing tunables.
func WithPlannerConfig(cfg core.PlannerConfig) Option {
	return func(w *Writer) { w.cfg = cfg }
}

// WithLogger attaches a logger for per-dataset progress.
func WithLogger(log *zap.Logger) Option {
	return func(w *Writer) { w.log = log }
}

func NewWriter(opts ...Option) *Writer {
	w := &Writer{
		cat: codec.NewCatalog(),
		log: zap.NewNop(),
	}
	for _, o := range opts {
		o(w)
	}
	w.cfg = w.cfg.WithDefaults()
	return w
}

// Catalog returns the writer's compression catalog.
func (w *Writer) Catalog() *codec.Catalog { return w.cat }
