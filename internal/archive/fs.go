package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Additional-Code/bloom/internal/entity"
)

// FileArchiver writes snapshots as JSON files under a local directory.
type FileArchiver struct {
	dir    string
	prefix string
}

func NewFileArchiver(dir, prefix string) *FileArchiver {
	return &FileArchiver{dir: dir, prefix: prefix}
}

func (a *FileArchiver) Archive(_ context.Context, orders []entity.Order, at time.Time) (string, error) {
	data, err := encode(orders, at)
	if err != nil {
		return "", err
	}

	target := filepath.Join(a.dir, filepath.FromSlash(objectKey(a.prefix, at)))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	// write then rename so a crash never leaves a truncated snapshot behind
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write snapshot: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("publish snapshot: %w", err)
	}
	return target, nil
}
