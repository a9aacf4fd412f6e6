// Package digest computes content digests for stored chunks and whole
// datasets, encoded as CIDv1 raw bytes so containers and manifests can be
// verified without knowing which hash produced them.
package digest

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"hash"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	"github.com/datagrove/arraypack/pkg/core"
)

// Chunk digests one stored chunk payload.
func Chunk(stored []byte) ([]byte, error) {
	mh, err := multihash.Sum(stored, multihash.SHA2_256, -1)
	if err != nil {
		return nil, fmt.Errorf("multihash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh).Bytes(), nil
}

// Verify recomputes the digest of stored and compares it to want.
func Verify(want, stored []byte) error {
	id, err := cid.Cast(want)
	if err != nil {
		return fmt.Errorf("%w: invalid digest bytes: %v", core.ErrCorrupt, err)
	}
	prefix := id.Prefix()
	mh, err := multihash.Sum(stored, prefix.MhType, prefix.MhLength)
	if err != nil {
		return fmt.Errorf("multihash: %w", err)
	}
	if !bytes.Equal(id.Hash(), mh) {
		return fmt.Errorf("%w: chunk digest mismatch", core.ErrCorrupt)
	}
	return nil
}

// Hasher accumulates a whole dataset's raw bytes in chunk emission order
// and yields one dataset-level digest.
type Hasher struct {
	h hash.Hash
}

func NewHasher() *Hasher { return &Hasher{h: sha256.New()} }

func (h *Hasher) Write(p []byte) { h.h.Write(p) }

// Sum returns the accumulated digest as CIDv1 raw bytes.
func (h *Hasher) Sum() ([]byte, error) {
	mh, err := multihash.Encode(h.h.Sum(nil), multihash.SHA2_256)
	if err != nil {
		return nil, fmt.Errorf("multihash: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh).Bytes(), nil
}
