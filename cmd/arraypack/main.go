// Command arraypack inspects and repacks chunked array containers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/datagrove/arraypack/pkg/arraypack"
	"github.com/datagrove/arraypack/pkg/container"
	"github.com/datagrove/arraypack/pkg/container/objstore"
	"github.com/datagrove/arraypack/pkg/container/packfile"
	"github.com/datagrove/arraypack/pkg/core"
)

func main() {
	root := &cobra.Command{
		Use:           "arraypack",
		Short:         "Inspect and repack chunked array containers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newInspectCommand(), newRepackCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// openContainer opens an existing container. An empty backend guesses from
// the path: directories are object stores, files are packfiles.
func openContainer(path string, backend string) (container.Container, error) {
	b, err := resolveBackend(path, backend)
	if err != nil {
		return nil, err
	}
	switch b {
	case core.BackendPack:
		return packfile.Open(path)
	case core.BackendObject:
		store, err := objstore.OpenDir(path)
		if err != nil {
			return nil, err
		}
		return objstore.Open(store)
	}
	return nil, fmt.Errorf("%w: unknown backend %q", core.ErrInvalidInput, b)
}

// openDestination creates a fresh destination container.
func openDestination(path string, backend string) (arraypack.Destination, error) {
	b := core.Backend(backend)
	if !b.Valid() {
		return nil, fmt.Errorf("%w: unknown backend %q", core.ErrInvalidInput, backend)
	}
	switch b {
	case core.BackendPack:
		return packfile.Create(path)
	default:
		store, err := objstore.OpenDir(path)
		if err != nil {
			return nil, err
		}
		return objstore.Create(store), nil
	}
}

func resolveBackend(path, backend string) (core.Backend, error) {
	if backend != "" {
		b := core.Backend(backend)
		if !b.Valid() {
			return "", fmt.Errorf("%w: unknown backend %q", core.ErrInvalidInput, backend)
		}
		return b, nil
	}
	st, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if st.IsDir() {
		return core.BackendObject, nil
	}
	return core.BackendPack, nil
}
