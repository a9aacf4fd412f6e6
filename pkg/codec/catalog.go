package codec

import (
	"fmt"

	"github.com/datagrove/arraypack/pkg/core"
)

// Method and filter names known to the standard catalog.
const (
	MethodNone = "none"
	MethodGzip = "gzip"
	MethodZlib = "zlib"
	MethodZstd = "zstd"
	MethodS2   = "s2"

	FilterShuffle = "shuffle"
	FilterDelta   = "delta"
)

type methodEntry struct {
	acceptsOptions bool
	backends       map[core.Backend]bool
	build          func(opts Options) (Codec, error)
}

type filterEntry struct {
	build func(opts Options, elemSize int64) (Filter, error)
}

// Catalog enumerates, per backend family, which named codecs exist and how
// to construct them. Catalogs are immutable once built and passed explicitly
// into planner and writer calls; there is no process-wide default.
type Catalog struct {
	methods map[string]methodEntry
	filters map[string]filterEntry
}

// NewCatalog returns the standard catalog: zstd, gzip, zlib and "none" for
// both families, s2 for the object family only, and the shuffle/delta filter
// chain for the object family.
func NewCatalog() *Catalog {
	both := map[core.Backend]bool{core.BackendPack: true, core.BackendObject: true}
	objectOnly := map[core.Backend]bool{core.BackendObject: true}

	return &Catalog{
		methods: map[string]methodEntry{
			MethodNone: {
				backends: both,
				build:    func(Options) (Codec, error) { return noneCodec{}, nil },
			},
			MethodGzip: {
				acceptsOptions: true,
				backends:       both,
				build:          newGzip,
			},
			MethodZlib: {
				acceptsOptions: true,
				backends:       both,
				build:          newZlib,
			},
			MethodZstd: {
				acceptsOptions: true,
				backends:       both,
				build:          newZstd,
			},
			MethodS2: {
				backends: objectOnly,
				build:    func(Options) (Codec, error) { return s2Codec{}, nil },
			},
		},
		filters: map[string]filterEntry{
			FilterShuffle: {build: func(_ Options, elemSize int64) (Filter, error) { return newShuffle(elemSize) }},
			FilterDelta:   {build: func(_ Options, elemSize int64) (Filter, error) { return newDelta(elemSize) }},
		},
	}
}

// Default returns the conservative always-available codec used when the
// caller asks for defaults without naming a method. Lossless, pure Go.
func (c *Catalog) Default(backend core.Backend) string { return MethodGzip }

// IsAvailable reports whether method exists for the given backend family.
func (c *Catalog) IsAvailable(method string, backend core.Backend) bool {
	e, ok := c.methods[method]
	return ok && e.backends[backend]
}

// AcceptsOptions reports whether the named method takes numeric options.
func (c *Catalog) AcceptsOptions(method string) bool {
	e, ok := c.methods[method]
	return ok && e.acceptsOptions
}

// Methods lists the names available for a backend, sorted.
func (c *Catalog) Methods(backend core.Backend) []string {
	var out []string
	for _, name := range sortedKeys(c.methods) {
		if c.methods[name].backends[backend] {
			out = append(out, name)
		}
	}
	return out
}

// New builds the named codec for a backend. An unknown or inapplicable name
// fails before any bytes are written.
func (c *Catalog) New(method string, opts Options, backend core.Backend) (Codec, error) {
	e, ok := c.methods[method]
	if !ok || !e.backends[backend] {
		return nil, fmt.Errorf("%w: %q for backend %q", core.ErrUnknownCodec, method, backend)
	}
	if len(opts) > 0 && !e.acceptsOptions {
		return nil, fmt.Errorf("%w: %q takes no options", core.ErrInvalidInput, method)
	}
	return e.build(opts)
}

// NewFilter builds a named pre-compression filter. Filter chains exist only
// in the cloud-object family.
func (c *Catalog) NewFilter(name string, opts Options, elemSize int64, backend core.Backend) (Filter, error) {
	if backend != core.BackendObject {
		return nil, fmt.Errorf("%w: filters are not supported by backend %q", core.ErrInvalidInput, backend)
	}
	e, ok := c.filters[name]
	if !ok {
		return nil, fmt.Errorf("%w: filter %q for backend %q", core.ErrUnknownCodec, name, backend)
	}
	return e.build(opts, elemSize)
}

// HasFilter reports whether the named filter exists.
func (c *Catalog) HasFilter(name string) bool {
	_, ok := c.filters[name]
	return ok
}

// Pipeline chains filters and a primary codec over one chunk payload:
// filters apply in order on encode and reverse on decode, the codec last.
type Pipeline struct {
	filters []Filter
	codec   Codec
}

// NewPipeline assembles the encode path for one dataset.
func NewPipeline(filters []Filter, c Codec) *Pipeline {
	return &Pipeline{filters: filters, codec: c}
}

func (p *Pipeline) Encode(plain []byte) ([]byte, error) {
	data := plain
	var err error
	for _, f := range p.filters {
		if data, err = f.Apply(data); err != nil {
			return nil, fmt.Errorf("filter %s: %w", f.Name(), err)
		}
	}
	return p.codec.Encode(data)
}

func (p *Pipeline) Decode(stored []byte) ([]byte, error) {
	data, err := p.codec.Decode(stored)
	if err != nil {
		return nil, err
	}
	for i := len(p.filters) - 1; i >= 0; i-- {
		if data, err = p.filters[i].Reverse(data); err != nil {
			return nil, fmt.Errorf("filter %s: %w", p.filters[i].Name(), err)
		}
	}
	return data, nil
}
