package mirror

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileDestination copies the config document to a local path, typically
// a mounted network share. Writes go through a temp file and rename so
// the mirror file is never half-written.
type FileDestination struct {
	path string
}

var _ Destination = (*FileDestination)(nil)

func NewFileDestination(path string) (*FileDestination, error) {
	if path == "" {
		return nil, fmt.Errorf("mirror path not configured")
	}
	return &FileDestination{path: path}, nil
}

func (d *FileDestination) Write(ctx context.Context, data []byte) error {
	dir := filepath.Dir(d.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create mirror directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".mirror_tmp_*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpPath, d.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("publish mirror file: %w", err)
	}
	return nil
}
