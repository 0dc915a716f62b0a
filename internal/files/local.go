package files

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// LocalStorage keeps files below a root directory on disk.
type LocalStorage struct {
	root string
}

// NewLocal creates the root directory if needed.
func NewLocal(root string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, eris.Wrapf(err, "files: create root %s", root)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, eris.Wrap(err, "files: resolve root")
	}
	return &LocalStorage{root: abs}, nil
}

func (s *LocalStorage) path(key string) (string, error) {
	cleaned, err := cleanKey(key)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(cleaned)), nil
}

// Put writes r to key atomically via a temp file in the target directory.
func (s *LocalStorage) Put(_ context.Context, key string, r io.Reader) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	return writeAtomic(p, r)
}

func (s *LocalStorage) Resolve(_ context.Context, key string) (string, error) {
	p, err := s.path(key)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && info.IsDir()) {
		return "", eris.Wrapf(ErrNotFound, "%s", key)
	}
	if err != nil {
		return "", eris.Wrapf(err, "files: stat %s", key)
	}
	return p, nil
}

// Delete removes key. Missing files are not an error.
func (s *LocalStorage) Delete(_ context.Context, key string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "files: delete %s", key)
	}
	return nil
}

func writeAtomic(p string, r io.Reader) error {
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "files: mkdir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, ".upload-*")
	if err != nil {
		return eris.Wrap(err, "files: create temp")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close() //nolint:errcheck
		return eris.Wrap(err, "files: write temp")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "files: close temp")
	}
	return eris.Wrap(os.Rename(tmp.Name(), p), "files: rename")
}
