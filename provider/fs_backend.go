package provider

import (
	"encoding/hex"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// FSBackend is the content-addressed filesystem cache backend: one file per
// key, named by its hex encoding, under dir. Writes go to a temp file first
// and are renamed into place, so a crash mid-write never leaves a partial
// value visible, matching the teacher's data-file write convention in
// core/rawdb/filedb.go.
type FSBackend struct {
	dir string
}

// NewFSBackend opens dir as a cache root, creating it if absent.
func NewFSBackend(dir string) (*FSBackend, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "provider: mkdir cache dir")
	}
	return &FSBackend{dir: dir}, nil
}

func (b *FSBackend) path(key []byte) string {
	return filepath.Join(b.dir, hex.EncodeToString(key))
}

func (b *FSBackend) Get(key []byte) ([]byte, bool, error) {
	data, err := os.ReadFile(b.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "provider: read cache file")
	}
	return data, true, nil
}

func (b *FSBackend) Put(key, value []byte) error {
	path := b.path(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return errors.Wrap(err, "provider: write temp cache file")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "provider: rename cache file")
	}
	return nil
}
