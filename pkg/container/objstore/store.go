// Package objstore implements the cloud-object chunked multi-file container
// family: each dataset is a key prefix holding a JSON metadata object and
// one object per chunk, keyed by dotted grid indices. The backing Store is
// pluggable; a filesystem directory and an embedded KV store ship here.
package objstore

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/datagrove/arraypack/pkg/core"
)

// Store is the flat key-value surface the object family writes through.
// Keys are slash-delimited, values are opaque byte objects.
type Store interface {
	Put(key string, value []byte) error
	Get(key string) ([]byte, error) // core.ErrNotFound when absent
	Has(key string) (bool, error)
	List(prefix string) ([]string, error) // sorted
	Close() error
}

// DirStore keeps every object as a file under a root directory.
type DirStore struct {
	root string
}

func OpenDir(root string) (*DirStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrWrite, err)
	}
	return &DirStore{root: root}, nil
}

func (s *DirStore) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

func (s *DirStore) Put(key string, value []byte) error {
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrWrite, key, err)
	}
	if err := os.WriteFile(p, value, 0o644); err != nil {
		return fmt.Errorf("%w: %s: %v", core.ErrWrite, key, err)
	}
	return nil
}

func (s *DirStore) Get(key string) ([]byte, error) {
	b, err := os.ReadFile(s.path(key))
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (s *DirStore) Has(key string) (bool, error) {
	_, err := os.Stat(s.path(key))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *DirStore) List(prefix string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if strings.HasPrefix(key, prefix) {
			out = append(out, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(out)
	return out, nil
}

func (s *DirStore) Close() error { return nil }
