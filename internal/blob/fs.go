package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FSStore is a filesystem-backed Store. Bundles live at
// <root>/<hash[:2]>/<hash>.zip and are immutable once written.
type FSStore struct {
	root    string
	baseURL string
}

// NewFSStore creates the root directory if needed.
func NewFSStore(root, baseURL string) (*FSStore, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("blob root required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}
	return &FSStore{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func (s *FSStore) path(hash string) string {
	prefix := hash
	if len(prefix) > 2 {
		prefix = prefix[:2]
	}
	return filepath.Join(s.root, prefix, hash+".zip")
}

// URL returns the fetchable URL for a stored hash.
func (s *FSStore) URL(hash string) string {
	return s.baseURL + "/" + hash
}

// Put writes the bundle unless the hash is already present.
func (s *FSStore) Put(ctx context.Context, hash string, r io.Reader) (string, int64, error) {
	if strings.TrimSpace(hash) == "" {
		return "", 0, errors.New("blob hash required")
	}
	dest := s.path(hash)
	if info, err := os.Stat(dest); err == nil {
		return s.URL(hash), info.Size(), nil
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", 0, fmt.Errorf("create blob dir: %w", err)
	}

	// Write to a temp file first so a partial upload never becomes
	// addressable under its hash.
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+hash+".*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp blob: %w", err)
	}
	size, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("write blob %s: %w", hash, err)
	}
	if err := os.Rename(tmp.Name(), dest); err != nil {
		os.Remove(tmp.Name())
		return "", 0, fmt.Errorf("publish blob %s: %w", hash, err)
	}
	return s.URL(hash), size, nil
}

// Delete removes the stored bundle; a missing hash is not an error.
func (s *FSStore) Delete(ctx context.Context, hash string) error {
	if strings.TrimSpace(hash) == "" {
		return nil
	}
	err := os.Remove(s.path(hash))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete blob %s: %w", hash, err)
	}
	return nil
}

// Open returns a reader for a stored hash, used by the download endpoint.
func (s *FSStore) Open(hash string) (io.ReadCloser, error) {
	f, err := os.Open(s.path(hash))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("blob %s not found: %w", hash, os.ErrNotExist)
		}
		return nil, err
	}
	return f, nil
}

var _ Store = (*FSStore)(nil)
