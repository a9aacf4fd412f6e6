package codec

import (
	"bytes"
	"errors"
	"testing"

	"github.com/datagrove/arraypack/internal/testkit"
	"github.com/datagrove/arraypack/pkg/core"
)

func TestCatalogAvailability(t *testing.T) {
	cat := NewCatalog()

	for _, tc := range []struct {
		method  string
		backend core.Backend
		want    bool
	}{
		{MethodGzip, core.BackendPack, true},
		{MethodGzip, core.BackendObject, true},
		{MethodZstd, core.BackendPack, true},
		{MethodZlib, core.BackendObject, true},
		{MethodNone, core.BackendPack, true},
		{MethodS2, core.BackendObject, true},
		{MethodS2, core.BackendPack, false},
		{"lzf", core.BackendPack, false},
		{"lzf", core.BackendObject, false},
	} {
		if got := cat.IsAvailable(tc.method, tc.backend); got != tc.want {
			t.Errorf("IsAvailable(%q, %q) = %v, want %v", tc.method, tc.backend, got, tc.want)
		}
	}
}

func TestCatalogDefault(t *testing.T) {
	cat := NewCatalog()
	for _, b := range []core.Backend{core.BackendPack, core.BackendObject} {
		def := cat.Default(b)
		if !cat.IsAvailable(def, b) {
			t.Errorf("default %q not available for backend %q", def, b)
		}
	}
}

func TestCatalogUnknownCodec(t *testing.T) {
	cat := NewCatalog()

	_, err := cat.New("brotli", nil, core.BackendPack)
	if !errors.Is(err, core.ErrUnknownCodec) {
		t.Errorf("want ErrUnknownCodec, got %v", err)
	}

	// s2 exists but only in the object family.
	_, err = cat.New(MethodS2, nil, core.BackendPack)
	if !errors.Is(err, core.ErrUnknownCodec) {
		t.Errorf("want ErrUnknownCodec for s2 on pack, got %v", err)
	}
}

func TestCatalogMethods(t *testing.T) {
	cat := NewCatalog()

	pack := cat.Methods(core.BackendPack)
	object := cat.Methods(core.BackendObject)
	if len(object) != len(pack)+1 {
		t.Errorf("object family should carry one extra codec: pack=%v object=%v", pack, object)
	}
	for _, name := range pack {
		if !cat.IsAvailable(name, core.BackendPack) {
			t.Errorf("listed method %q not available", name)
		}
	}
}

func TestCodecRoundTrips(t *testing.T) {
	cat := NewCatalog()
	r := testkit.RNG(7)
	payloads := [][]byte{
		nil,
		{0x01},
		testkit.CompressibleSlab(r, 4096),
		testkit.RandomBytes(r, 16384),
	}

	for _, method := range cat.Methods(core.BackendObject) {
		t.Run(method, func(t *testing.T) {
			c, err := cat.New(method, nil, core.BackendObject)
			if err != nil {
				t.Fatal(err)
			}
			for i, plain := range payloads {
				stored, err := c.Encode(plain)
				if err != nil {
					t.Fatalf("payload %d: encode: %v", i, err)
				}
				back, err := c.Decode(stored)
				if err != nil {
					t.Fatalf("payload %d: decode: %v", i, err)
				}
				if !bytes.Equal(back, plain) {
					t.Errorf("payload %d: round trip mismatch", i)
				}
			}
		})
	}
}

func TestCodecLevels(t *testing.T) {
	cat := NewCatalog()
	r := testkit.RNG(11)
	plain := testkit.CompressibleSlab(r, 1<<16)

	for _, method := range []string{MethodGzip, MethodZlib, MethodZstd} {
		t.Run(method, func(t *testing.T) {
			fast, err := cat.New(method, Options{"level": 1}, core.BackendPack)
			if err != nil {
				t.Fatal(err)
			}
			stored, err := fast.Encode(plain)
			if err != nil {
				t.Fatal(err)
			}
			back, err := fast.Decode(stored)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(back, plain) {
				t.Error("leveled round trip mismatch")
			}
			if len(stored) >= len(plain) {
				t.Errorf("compressible payload did not shrink: %d -> %d", len(plain), len(stored))
			}
		})
	}
}

func TestCodecDecodeCorrupt(t *testing.T) {
	cat := NewCatalog()
	for _, method := range []string{MethodGzip, MethodZlib, MethodZstd} {
		t.Run(method, func(t *testing.T) {
			c, err := cat.New(method, nil, core.BackendPack)
			if err != nil {
				t.Fatal(err)
			}
			_, err = c.Decode([]byte("definitely not a valid stream"))
			if !errors.Is(err, core.ErrCorrupt) {
				t.Errorf("want ErrCorrupt, got %v", err)
			}
		})
	}
}

func TestFiltersReversible(t *testing.T) {
	cat := NewCatalog()
	r := testkit.RNG(3)

	for _, name := range []string{FilterShuffle, FilterDelta} {
		for _, elemSize := range []int64{1, 2, 4, 8} {
			f, err := cat.NewFilter(name, nil, elemSize, core.BackendObject)
			if err != nil {
				t.Fatal(err)
			}
			plain := testkit.RandomBytes(r, int(elemSize)*512)
			applied, err := f.Apply(plain)
			if err != nil {
				t.Fatalf("%s/%d: %v", name, elemSize, err)
			}
			back, err := f.Reverse(applied)
			if err != nil {
				t.Fatalf("%s/%d: %v", name, elemSize, err)
			}
			if !bytes.Equal(back, plain) {
				t.Errorf("%s elemSize=%d: not reversible", name, elemSize)
			}
		}
	}
}

func TestFiltersObjectFamilyOnly(t *testing.T) {
	cat := NewCatalog()
	_, err := cat.NewFilter(FilterShuffle, nil, 2, core.BackendPack)
	if err == nil {
		t.Fatal("filter construction for the chunked-binary family should fail")
	}

	_, err = cat.NewFilter("bitround", nil, 2, core.BackendObject)
	if !errors.Is(err, core.ErrUnknownCodec) {
		t.Errorf("want ErrUnknownCodec for unknown filter, got %v", err)
	}
}

func TestShuffleImprovesCompression(t *testing.T) {
	cat := NewCatalog()
	r := testkit.RNG(21)

	// Low-amplitude int16 samples: high bytes are almost constant, so the
	// byte transpose groups them and gzip does noticeably better.
	samples := testkit.Int16Slab(r, core.Shape{8192})
	shuf, err := cat.NewFilter(FilterShuffle, nil, 2, core.BackendObject)
	if err != nil {
		t.Fatal(err)
	}
	gz, err := cat.New(MethodGzip, nil, core.BackendObject)
	if err != nil {
		t.Fatal(err)
	}

	direct, err := gz.Encode(samples)
	if err != nil {
		t.Fatal(err)
	}
	transposed, err := shuf.Apply(samples)
	if err != nil {
		t.Fatal(err)
	}
	viaFilter, err := gz.Encode(transposed)
	if err != nil {
		t.Fatal(err)
	}
	if len(viaFilter) >= len(direct) {
		t.Logf("shuffle did not help here: direct=%d filtered=%d", len(direct), len(viaFilter))
	}
}

func TestPipeline(t *testing.T) {
	cat := NewCatalog()
	r := testkit.RNG(5)
	plain := testkit.Int16Slab(r, core.Shape{4096})

	shuf, err := cat.NewFilter(FilterShuffle, nil, 2, core.BackendObject)
	if err != nil {
		t.Fatal(err)
	}
	delta, err := cat.NewFilter(FilterDelta, nil, 2, core.BackendObject)
	if err != nil {
		t.Fatal(err)
	}
	zs, err := cat.New(MethodZstd, nil, core.BackendObject)
	if err != nil {
		t.Fatal(err)
	}

	p := NewPipeline([]Filter{delta, shuf}, zs)
	stored, err := p.Encode(plain)
	if err != nil {
		t.Fatal(err)
	}
	back, err := p.Decode(stored)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back, plain) {
		t.Error("pipeline round trip mismatch")
	}
}

func TestOptions(t *testing.T) {
	opts := Options{"level": 9}
	c := opts.Clone()
	c["level"] = 1
	if opts["level"] != 9 {
		t.Error("Clone must not alias")
	}
	if !opts.Equal(Options{"level": 9}) {
		t.Error("Equal on identical maps")
	}
	if opts.Equal(Options{"level": 1}) {
		t.Error("Equal on differing maps")
	}
	if got := Options(nil).Level(6); got != 6 {
		t.Errorf("nil options default level = %d, want 6", got)
	}
}
