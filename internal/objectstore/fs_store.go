package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	dirPerm  = 0o750
	filePerm = 0o640
)

// FSStore keeps each object as a file directly under one directory.
type FSStore struct {
	dir string
}

// NewFS creates dir if needed and returns a store rooted there.
func NewFS(dir string) (*FSStore, error) {
	err := os.MkdirAll(dir, dirPerm)
	if err != nil {
		return nil, fmt.Errorf("failed to create store directory '%s': %w", dir, err)
	}

	return &FSStore{dir: dir}, nil
}

// Dir returns the root directory.
func (s *FSStore) Dir() string { return s.dir }

// Download reads the object stored under key.
func (s *FSStore) Download(_ context.Context, key string) ([]byte, error) {
	err := checkKey(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(s.dir, key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: '%s' in '%s'", ErrNotFound, key, s.dir)
		}

		return nil, fmt.Errorf("failed to read object '%s': %w", key, err)
	}

	return data, nil
}

// Upload writes data to a temporary file and renames it over key, so readers
// never see a partial object.
func (s *FSStore) Upload(_ context.Context, key string, data []byte) error {
	err := checkKey(key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for '%s': %w", key, err)
	}

	_, writeErr := tmp.Write(data)
	closeErr := tmp.Close()

	if writeErr == nil {
		writeErr = closeErr
	}

	if writeErr == nil {
		writeErr = os.Chmod(tmp.Name(), filePerm)
	}

	if writeErr == nil {
		writeErr = os.Rename(tmp.Name(), filepath.Join(s.dir, key))
	}

	if writeErr != nil {
		_ = os.Remove(tmp.Name())

		return fmt.Errorf("failed to write object '%s': %w", key, writeErr)
	}

	return nil
}

// Delete removes the object. Missing objects are not an error.
func (s *FSStore) Delete(_ context.Context, key string) error {
	err := checkKey(key)
	if err != nil {
		return err
	}

	err = os.Remove(filepath.Join(s.dir, key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete object '%s': %w", key, err)
	}

	return nil
}

// checkKey accepts flat names only; keys double as file names.
func checkKey(key string) error {
	if key == "" || key == "." || key == ".." ||
		strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}

	return nil
}
