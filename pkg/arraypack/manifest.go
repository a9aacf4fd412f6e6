package arraypack

import (
	"github.com/datagrove/arraypack/pkg/codec"
	"github.com/datagrove/arraypack/pkg/core"
	"github.com/datagrove/arraypack/pkg/plan"
)

// ManifestEntry records what was actually written for one dataset.
type ManifestEntry struct {
	Location        string
	Shape           core.Shape
	Dtype           core.Dtype
	ChunkShape      core.Shape
	Compression     string
	CompressionOpts codec.Options
	Filters         []string

	Chunks      int64
	RawBytes    int64
	StoredBytes int64

	// Digest covers the raw dataset bytes in chunk emission order.
	Digest []byte
}

// Manifest is the committed record of one write pass.
type Manifest struct {
	Backend core.Backend
	Entries []ManifestEntry

	// Plan is the accepted configuration with every dataset in the
	// committed state.
	Plan *plan.BackendConfig
}

// Entry returns the manifest entry for a location, or nil.
func (m *Manifest) Entry(loc string) *ManifestEntry {
	for i := range m.Entries {
		if m.Entries[i].Location == loc {
			return &m.Entries[i]
		}
	}
	return nil
}
