package testkit

import (
	"math/rand"
	"testing"

	"github.com/datagrove/arraypack/pkg/core"
	"github.com/datagrove/arraypack/pkg/source"
	"github.com/datagrove/arraypack/pkg/tree"
)

// RecordingTree builds a small but representative container tree: a
// multi-channel acquisition series, a processed float array, a ragged
// spike-times column, and an external raw-data reference.
func RecordingTree(t *testing.T, r *rand.Rand) *tree.Group {
	t.Helper()

	root := tree.NewGroup()
	root.SetAttr("session", "test-session")

	acq, err := root.AddGroup("acquisition")
	if err != nil {
		t.Fatal(err)
	}
	series := core.Shape{400, 16}
	if _, err := acq.AddArray("series", source.NewMemory(series, core.Int16, Int16Slab(r, series))); err != nil {
		t.Fatal(err)
	}

	proc, err := root.AddGroup("processing")
	if err != nil {
		t.Fatal(err)
	}
	filtered := core.Shape{200, 4}
	if _, err := proc.AddArray("filtered", source.NewMemory(filtered, core.Float32, Float32Slab(r, filtered))); err != nil {
		t.Fatal(err)
	}

	units, err := root.AddGroup("units")
	if err != nil {
		t.Fatal(err)
	}
	times := core.Shape{300}
	idx := core.Shape{10}
	if _, err := units.AddRagged("spike_times",
		source.NewMemory(times, core.Float64, RandomBytes(r, int(times.Elements()*8))),
		source.NewMemory(idx, core.Int64, MonotoneIndex(r, 10, 300)),
	); err != nil {
		t.Fatal(err)
	}

	if err := root.AddExternalRef("raw_link", "/mnt/raw/session.bin"); err != nil {
		t.Fatal(err)
	}
	return root
}
