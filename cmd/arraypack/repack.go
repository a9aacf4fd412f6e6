package main

import (
	"fmt"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/datagrove/arraypack/pkg/arraypack"
	"github.com/datagrove/arraypack/pkg/codec"
	"github.com/datagrove/arraypack/pkg/core"
)

func newRepackCommand() *cobra.Command {
	var (
		srcBackend    string
		dstBackend    string
		defaultConfig bool
		compression   string
		level         int
		memoryBudget  string
		targetChunk   string
		verbose       bool
	)

	cmd := &cobra.Command{
		Use:   "repack <source> <destination>",
		Short: "Rewrite a container under a new chunk/compression plan",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(verbose)
			if err != nil {
				return err
			}
			defer log.Sync()

			plannerCfg := core.PlannerConfig{}
			if memoryBudget != "" {
				n, err := units.RAMInBytes(memoryBudget)
				if err != nil {
					return fmt.Errorf("invalid --memory-budget: %w", err)
				}
				plannerCfg.MemoryBudgetBytes = n
			}
			if targetChunk != "" {
				n, err := units.RAMInBytes(targetChunk)
				if err != nil {
					return fmt.Errorf("invalid --target-chunk: %w", err)
				}
				plannerCfg.TargetChunkBytes = n
			}

			src, err := openContainer(args[0], srcBackend)
			if err != nil {
				return err
			}
			defer src.Close()

			if dstBackend == "" {
				dstBackend = string(src.Backend())
			}
			dst, err := openDestination(args[1], dstBackend)
			if err != nil {
				return err
			}
			defer dst.Close()

			opts := arraypack.RepackOptions{UseDefaultConfig: defaultConfig}
			if compression != "" {
				gc := &arraypack.GlobalCompression{Method: compression}
				if cmd.Flags().Changed("level") {
					gc.Opts = codec.Options{"level": level}
				}
				opts.Global = gc
			}

			w := arraypack.NewWriter(
				arraypack.WithPlannerConfig(plannerCfg),
				arraypack.WithLogger(log),
			)
			manifest, err := w.Repack(cmd.Context(), src, dst, opts)
			if err != nil {
				return err
			}

			for _, e := range manifest.Entries {
				fmt.Printf("%s: %d chunks, %s raw -> %s stored\n",
					e.Location, e.Chunks,
					units.BytesSize(float64(e.RawBytes)), units.BytesSize(float64(e.StoredBytes)))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&srcBackend, "src-backend", "", "source backend (pack|object); guessed when empty")
	cmd.Flags().StringVar(&dstBackend, "dst-backend", "", "destination backend (pack|object); defaults to the source's")
	cmd.Flags().BoolVar(&defaultConfig, "default-config", false, "re-plan every dataset instead of carrying the source plan")
	cmd.Flags().StringVar(&compression, "compression", "", "apply one compression method to every non-disabled dataset")
	cmd.Flags().IntVar(&level, "level", 0, "compression level for --compression")
	cmd.Flags().StringVar(&memoryBudget, "memory-budget", "", "per-dataset memory ceiling, e.g. 2GiB")
	cmd.Flags().StringVar(&targetChunk, "target-chunk", "", "target raw bytes per chunk, e.g. 1MiB")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose logging")
	return cmd
}
