package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/bloom/internal/config"
	"github.com/Additional-Code/bloom/internal/entity"
)

// Archiver stores a snapshot of the order history before it is cleared.
// Archive returns the location the snapshot was written to, or "" when
// archiving is disabled.
type Archiver interface {
	Archive(ctx context.Context, orders []entity.Order, at time.Time) (string, error)
}

// Module provides the configured archiver.
var Module = fx.Provide(New)

// Snapshot is the document written for each archived epoch.
type Snapshot struct {
	ArchivedAt time.Time      `json:"archivedAt"`
	Count      int            `json:"count"`
	Orders     []entity.Order `json:"orders"`
}

// New selects the archive driver from ARCHIVE_DRIVER.
func New(cfg config.Config, logger *zap.Logger) (Archiver, error) {
	switch cfg.Archive.Driver {
	case "", "noop":
		return Noop{}, nil
	case "fs":
		logger.Info("archiving order history to filesystem", zap.String("dir", cfg.Archive.Dir))
		return NewFileArchiver(cfg.Archive.Dir, cfg.Archive.Prefix), nil
	case "s3":
		logger.Info("archiving order history to s3", zap.String("bucket", cfg.Archive.S3.Bucket))
		return NewS3Archiver(context.Background(), cfg.Archive)
	default:
		return nil, fmt.Errorf("unsupported archive driver: %s", cfg.Archive.Driver)
	}
}

// Noop discards snapshots.
type Noop struct{}

func (Noop) Archive(context.Context, []entity.Order, time.Time) (string, error) { return "", nil }

func encode(orders []entity.Order, at time.Time) ([]byte, error) {
	if orders == nil {
		orders = []entity.Order{}
	}
	data, err := json.MarshalIndent(Snapshot{ArchivedAt: at.UTC(), Count: len(orders), Orders: orders}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

func objectKey(prefix string, at time.Time) string {
	name := at.UTC().Format("20060102T150405.000000000Z") + ".json"
	if prefix == "" {
		return name
	}
	return path.Join(prefix, name)
}
