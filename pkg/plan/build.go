package plan

import (
	"github.com/datagrove/arraypack/pkg/codec"
	"github.com/datagrove/arraypack/pkg/core"
	"github.com/datagrove/arraypack/pkg/planner"
	"github.com/datagrove/arraypack/pkg/tree"
)

// RaggedIndexSuffix names the stored index leaf of a ragged composite.
const RaggedIndexSuffix = "_index"

// Build walks the container tree and produces the default write plan:
// every array-bearing leaf gets a planned chunk/buffer shape and the
// catalog's default codec. External-reference leaves are skipped and never
// receive a configuration; ragged composites contribute a (data, index)
// pair of entries.
func Build(root *tree.Group, backend core.Backend, cfg core.PlannerConfig, cat *codec.Catalog) (*BackendConfig, error) {
	bc, err := NewBackendConfig(backend)
	if err != nil {
		return nil, err
	}
	defaultMethod := cat.Default(backend)

	err = tree.Walk(root, func(loc string, n tree.Node) error {
		switch node := n.(type) {
		case *tree.Array:
			desc := core.Descriptor{Location: loc, Shape: node.Shape, Dtype: node.Dtype}
			chunk, buffer, err := planner.Plan(desc, cfg)
			if err != nil {
				return err
			}
			return bc.Add(DatasetConfig{
				Descriptor:  desc,
				ChunkShape:  chunk,
				BufferShape: buffer,
				Compression: defaultMethod,
				Origin:      OriginPlanned,
			})

		case *tree.Ragged:
			dataDesc := core.Descriptor{Location: loc, Shape: node.Data.Shape, Dtype: node.Data.Dtype}
			indexDesc := core.Descriptor{Location: loc + RaggedIndexSuffix, Shape: node.Index.Shape, Dtype: node.Index.Dtype}
			dc, db, ic, ib, err := planner.PlanRagged(dataDesc, indexDesc, cfg)
			if err != nil {
				return err
			}
			if err := bc.Add(DatasetConfig{
				Descriptor:  dataDesc,
				ChunkShape:  dc,
				BufferShape: db,
				Compression: defaultMethod,
				Origin:      OriginPlanned,
			}); err != nil {
				return err
			}
			return bc.Add(DatasetConfig{
				Descriptor:  indexDesc,
				ChunkShape:  ic,
				BufferShape: ib,
				Compression: defaultMethod,
				Origin:      OriginPlanned,
			})
		}
		// Groups carry no data; external refs are copied verbatim, not planned.
		return nil
	})
	if err != nil {
		return nil, err
	}
	return bc, nil
}
