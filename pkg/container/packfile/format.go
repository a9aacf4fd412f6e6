// Package packfile implements the classic chunked-binary single-file
// container family: a fixed header, chunk payloads appended sequentially,
// and a canonical-CBOR index footer that makes the file self-describing.
package packfile

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/datagrove/arraypack/pkg/core"
)

const (
	Magic   = "APCK"
	Version = 1

	headerSize  = 8  // magic + version + reserved
	trailerSize = 12 // footer offset (8) + magic (4)
)

// chunkRecord locates one stored chunk: its grid cell and where its encoded
// bytes live in the file.
type chunkRecord struct {
	Offset     []int64 `cbor:"offset"` // grid origin in elements
	Size       []int64 `cbor:"size"`   // clipped extent
	FileOffset int64   `cbor:"file_offset"`
	StoredLen  int64   `cbor:"stored_len"`
	RawLen     int64   `cbor:"raw_len"`
	Digest     []byte  `cbor:"digest"`
}

type datasetIndex struct {
	Location        string         `cbor:"location"`
	Shape           []int64        `cbor:"shape"`
	Dtype           string         `cbor:"dtype"`
	ChunkShape      []int64        `cbor:"chunk_shape"`
	Compression     string         `cbor:"compression,omitempty"`
	CompressionOpts map[string]int `cbor:"compression_opts,omitempty"`
	Chunks          []chunkRecord  `cbor:"chunks"`
}

type refEntry struct {
	Location string `cbor:"location"`
	Target   string `cbor:"target"`
}

type attrEntry struct {
	Location string         `cbor:"location"` // "" is the container root
	Values   map[string]any `cbor:"values"`
}

type fileIndex struct {
	Version  uint16         `cbor:"version"`
	Datasets []datasetIndex `cbor:"datasets"`
	Refs     []refEntry     `cbor:"refs,omitempty"`
	Attrs    []attrEntry    `cbor:"attrs,omitempty"`
}

func encodeIndex(idx *fileIndex) ([]byte, error) {
	// Canonical CBOR keeps the footer byte-identical for identical plans.
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, err
	}
	return em.Marshal(idx)
}

func decodeIndex(b []byte) (*fileIndex, error) {
	var idx fileIndex
	if err := cbor.Unmarshal(b, &idx); err != nil {
		return nil, fmt.Errorf("%w: index: %v", core.ErrCorrupt, err)
	}
	if idx.Version != Version {
		return nil, fmt.Errorf("%w: unsupported index version %d", core.ErrCorrupt, idx.Version)
	}
	for _, ds := range idx.Datasets {
		for i, rec := range ds.Chunks {
			if len(rec.Offset) != len(ds.Shape) || len(rec.Size) != len(ds.Shape) {
				return nil, fmt.Errorf("%w: %s: chunk %d rank mismatch", core.ErrCorrupt, ds.Location, i)
			}
		}
	}
	return &idx, nil
}
