package plan

import (
	"fmt"

	"github.com/datagrove/arraypack/pkg/codec"
	"github.com/datagrove/arraypack/pkg/core"
)

// BackendConfig is the full write plan for one container: an ordered
// collection of DatasetConfig keyed by location. Order preserves discovery
// order and matters only for output determinism.
type BackendConfig struct {
	backend core.Backend

	order    []string
	datasets map[string]DatasetConfig

	// set once per-dataset overrides have been applied; mutually exclusive
	// with a later global-compression pass
	overridden bool
}

func NewBackendConfig(backend core.Backend) (*BackendConfig, error) {
	if !backend.Valid() {
		return nil, fmt.Errorf("%w: unknown backend %q", core.ErrInvalidInput, backend)
	}
	return &BackendConfig{
		backend:  backend,
		datasets: make(map[string]DatasetConfig),
	}, nil
}

func (bc *BackendConfig) Backend() core.Backend { return bc.backend }
func (bc *BackendConfig) Len() int              { return len(bc.order) }

// Locations returns dataset locations in discovery order.
func (bc *BackendConfig) Locations() []string {
	out := make([]string, len(bc.order))
	copy(out, bc.order)
	return out
}

func (bc *BackendConfig) Get(location string) (DatasetConfig, bool) {
	d, ok := bc.datasets[location]
	if !ok {
		return DatasetConfig{}, false
	}
	return d.Clone(), true
}

// Add appends a dataset configuration. Locations must be unique: no two
// entries may target the same on-disk node.
func (bc *BackendConfig) Add(d DatasetConfig) error {
	loc := d.Descriptor.Location
	if err := core.ValidateLocation(loc); err != nil {
		return err
	}
	if _, dup := bc.datasets[loc]; dup {
		return fmt.Errorf("%w: duplicate dataset location %q", core.ErrInvalidInput, loc)
	}
	bc.order = append(bc.order, loc)
	bc.datasets[loc] = d.Clone()
	return nil
}

// Validate checks every dataset against the backend family and catalog.
// Writers call this before any byte is written.
func (bc *BackendConfig) Validate(cat *codec.Catalog) error {
	for _, loc := range bc.order {
		if err := bc.datasets[loc].Validate(bc.backend, cat); err != nil {
			return err
		}
	}
	return nil
}

// Override is a partial patch for one dataset. Nil fields keep the current
// value. Setting Compression to codec.MethodNone deliberately disables
// compression, which a later global pass will respect.
type Override struct {
	ChunkShape      core.Shape
	BufferShape     core.Shape
	Compression     *string
	CompressionOpts *codec.Options
	Filters         *[]string
	FilterOpts      *[]codec.Options
}

// Apply patches the named datasets and returns a new BackendConfig; the
// receiver is unchanged. Unknown locations fail.
func (bc *BackendConfig) Apply(overrides map[string]Override) (*BackendConfig, error) {
	out := bc.clone()
	if len(overrides) == 0 {
		return out, nil
	}
	for loc, ov := range overrides {
		d, ok := out.datasets[loc]
		if !ok {
			return nil, fmt.Errorf("%w: override targets unknown dataset %q", core.ErrNotFound, loc)
		}
		if ov.ChunkShape != nil {
			d.ChunkShape = ov.ChunkShape.Clone()
		}
		if ov.BufferShape != nil {
			d.BufferShape = ov.BufferShape.Clone()
		}
		if ov.Compression != nil {
			d.Compression = *ov.Compression
			if ov.CompressionOpts == nil {
				d.CompressionOpts = nil
			}
		}
		if ov.CompressionOpts != nil {
			d.CompressionOpts = ov.CompressionOpts.Clone()
		}
		if ov.Filters != nil {
			d.Filters = append([]string(nil), (*ov.Filters)...)
			if ov.FilterOpts == nil {
				d.FilterOpts = nil
			}
		}
		if ov.FilterOpts != nil {
			d.FilterOpts = make([]codec.Options, len(*ov.FilterOpts))
			for i, o := range *ov.FilterOpts {
				d.FilterOpts[i] = o.Clone()
			}
		}
		if d.Origin == OriginPlanned {
			d.Origin = OriginOverridden
		}
		out.datasets[loc] = d
	}
	out.overridden = true
	return out, nil
}

// WithGlobalCompression rewrites every dataset whose compression is not
// deliberately disabled to use the given method and options.
//
// Ambiguous intent is rejected rather than silently resolved: options
// without a method fail, and so does combining a global pass with a config
// that already carries explicit per-dataset overrides.
func (bc *BackendConfig) WithGlobalCompression(method string, opts codec.Options, cat *codec.Catalog) (*BackendConfig, error) {
	if method == "" {
		return nil, fmt.Errorf("%w: global compression options given without a method", core.ErrAmbiguousConfig)
	}
	if bc.overridden {
		return nil, fmt.Errorf("%w: global compression cannot be combined with per-dataset overrides", core.ErrAmbiguousConfig)
	}
	if !cat.IsAvailable(method, bc.backend) {
		return nil, fmt.Errorf("%w: %q for backend %q", core.ErrUnknownCodec, method, bc.backend)
	}

	out := bc.clone()
	for loc, d := range out.datasets {
		if d.Compression == codec.MethodNone {
			continue // deliberately disabled; leave untouched
		}
		d.Compression = method
		d.CompressionOpts = opts.Clone()
		if d.Origin == OriginPlanned {
			d.Origin = OriginOverridden
		}
		out.datasets[loc] = d
	}
	return out, nil
}

// MarkCommitted returns a copy with every dataset in the terminal committed
// state. Writers call this once a write pass has accepted the plan.
func (bc *BackendConfig) MarkCommitted() *BackendConfig {
	out := bc.clone()
	for loc, d := range out.datasets {
		d.Origin = OriginCommitted
		out.datasets[loc] = d
	}
	return out
}

func (bc *BackendConfig) clone() *BackendConfig {
	out := &BackendConfig{
		backend:    bc.backend,
		order:      append([]string(nil), bc.order...),
		datasets:   make(map[string]DatasetConfig, len(bc.datasets)),
		overridden: bc.overridden,
	}
	for loc, d := range bc.datasets {
		out.datasets[loc] = d.Clone()
	}
	return out
}

// FromIntrospection assembles a BackendConfig from dataset configurations
// recovered from an existing container. Every entry is tagged Existing.
func FromIntrospection(backend core.Backend, datasets []DatasetConfig) (*BackendConfig, error) {
	bc, err := NewBackendConfig(backend)
	if err != nil {
		return nil, err
	}
	for _, d := range datasets {
		d.Origin = OriginExisting
		if err := bc.Add(d); err != nil {
			return nil, err
		}
	}
	return bc, nil
}
