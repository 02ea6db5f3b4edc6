package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/samuelfneumann/vrprl/agent/policy"
)

// File stores each table as a gob file named after its model in a
// directory
type File struct {
	dir string
}

// NewFile returns a File store in dir, creating dir if needed
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("new file store: %w", err)
	}
	return &File{dir: dir}, nil
}

func (f *File) path(model string) string {
	return filepath.Join(f.dir, model+".gob")
}

// Load implements the Store interface
func (f *File) Load(_ context.Context, model string) (*policy.Table, error) {
	if err := validateModel(model); err != nil {
		return nil, fmt.Errorf("file load: %w", err)
	}

	data, err := os.ReadFile(f.path(model))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("file load %q: %w", model, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("file load %q: %w", model, err)
	}

	t, err := policy.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("file load %q: %w", model, err)
	}
	return t, nil
}

// Save implements the Store interface. The file is replaced atomically.
func (f *File) Save(_ context.Context, model string, t *policy.Table) error {
	if err := validateModel(model); err != nil {
		return fmt.Errorf("file save: %w", err)
	}

	data, err := policy.Encode(t)
	if err != nil {
		return fmt.Errorf("file save %q: %w", model, err)
	}

	tmp, err := os.CreateTemp(f.dir, model+".*.tmp")
	if err != nil {
		return fmt.Errorf("file save %q: %w", model, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("file save %q: %w", model, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("file save %q: %w", model, err)
	}
	if err := os.Rename(tmp.Name(), f.path(model)); err != nil {
		return fmt.Errorf("file save %q: %w", model, err)
	}
	return nil
}

// Close implements the Store interface
func (f *File) Close() error {
	return nil
}
