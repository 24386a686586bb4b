// Package store publishes finished export trees to a storage backend.
//
// The pipeline writes exports to the local output root; a configured
// store additionally mirrors each finished bundle directory, keyed by
// model stem, so downstream consumers can pull from shared storage
// instead of the worker's disk.
package store

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/justapithecus/mason/iox"
)

// Store writes objects addressed by slash-separated keys.
type Store interface {
	// Put writes the contents of r under key.
	Put(ctx context.Context, key string, r io.Reader) error
}

// Publish mirrors localDir into s, prefixing every key with keyPrefix.
// Files are visited in lexical order; directories themselves are not
// represented as objects.
func Publish(ctx context.Context, s Store, localDir, keyPrefix string) error {
	return filepath.WalkDir(localDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(localDir, p)
		if err != nil {
			return fmt.Errorf("cannot relativize %s: %w", p, err)
		}

		f, err := os.Open(p)
		if err != nil {
			return fmt.Errorf("cannot open %s: %w", p, err)
		}
		defer iox.DiscardClose(f)

		key := path.Join(keyPrefix, filepath.ToSlash(rel))
		if err := s.Put(ctx, key, f); err != nil {
			return fmt.Errorf("cannot publish %s: %w", key, err)
		}
		return nil
	})
}

// FSStore writes objects under a root directory.
type FSStore struct {
	root string
}

// NewFSStore creates a filesystem store rooted at root.
func NewFSStore(root string) *FSStore {
	return &FSStore{root: root}
}

// Put implements Store.
func (s *FSStore) Put(_ context.Context, key string, r io.Reader) error {
	dest := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("cannot create %s: %w", filepath.Dir(dest), err)
	}

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("cannot create %s: %w", dest, err)
	}
	defer iox.DiscardClose(f)

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("cannot write %s: %w", dest, err)
	}
	return nil
}

// StubStore records Put calls for testing.
type StubStore struct {
	mu   sync.Mutex
	Keys []string
}

// NewStubStore creates a new stub store.
func NewStubStore() *StubStore {
	return &StubStore{}
}

// Put implements Store by recording the key and discarding the data.
func (s *StubStore) Put(_ context.Context, key string, r io.Reader) error {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Keys = append(s.Keys, key)
	return nil
}

var (
	_ Store = (*FSStore)(nil)
	_ Store = (*StubStore)(nil)
)
