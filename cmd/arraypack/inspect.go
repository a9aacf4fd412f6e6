package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newInspectCommand() *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "inspect <path>",
		Short: "Recover and print the chunking/compression plan of a container",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := openContainer(args[0], backend)
			if err != nil {
				return err
			}
			defer c.Close()

			configs, err := c.Introspect()
			if err != nil {
				return err
			}

			fmt.Printf("backend: %s\n", c.Backend())
			tw := tabwriter.NewWriter(os.Stdout, 2, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LOCATION\tSHAPE\tDTYPE\tCHUNKS\tCOMPRESSION\tFILTERS")
			for _, cfg := range configs {
				chunk := "-"
				if cfg.ChunkShape != nil {
					chunk = cfg.ChunkShape.String()
				}
				compression := cfg.Compression
				if compression == "" {
					compression = "-"
				}
				filters := "-"
				if len(cfg.Filters) > 0 {
					filters = fmt.Sprint(cfg.Filters)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					cfg.Descriptor.Location, cfg.Descriptor.Shape, cfg.Descriptor.Dtype,
					chunk, compression, filters)
			}
			if err := tw.Flush(); err != nil {
				return err
			}

			for loc, target := range c.Refs() {
				fmt.Printf("external ref: %s -> %s\n", loc, target)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&backend, "backend", "", "container backend (pack|object); guessed from the path when empty")
	return cmd
}
