// Package loader imports snapshot files into the store, once at startup
// and again whenever a watched seed file changes.
package loader

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"nodegraph/internal/codec"
	"nodegraph/internal/domain"
)

// Importer saves a decoded snapshot
type Importer interface {
	Import(ctx context.Context, snap *domain.Snapshot) (int, error)
}

// Loader reads snapshot files and hands them to an Importer
type Loader struct {
	importer Importer
	logger   *zap.Logger
}

// New creates a loader
func New(importer Importer, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{importer: importer, logger: logger.Named("loader")}
}

// ReadFile decodes a snapshot file. The format is chosen by extension.
func ReadFile(path string) (*domain.Snapshot, error) {
	c, err := codec.ForPath(path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	return c.Decode(f)
}

// LoadFile imports every node in the file and returns how many were saved
func (l *Loader) LoadFile(ctx context.Context, path string) (int, error) {
	start := time.Now()

	snap, err := ReadFile(path)
	if err != nil {
		return 0, err
	}

	count, err := l.importer.Import(ctx, snap)
	if err != nil {
		return 0, err
	}

	l.logger.Info("seed loaded",
		zap.String("path", path),
		zap.Int("nodes", count),
		zap.Duration("duration", time.Since(start)),
	)
	return count, nil
}

// Reload is LoadFile for watcher callbacks: failures are logged, since the
// previous contents stay in place
func (l *Loader) Reload(ctx context.Context, path string) {
	if _, err := l.LoadFile(ctx, path); err != nil {
		l.logger.Error("seed reload failed", zap.String("path", path), zap.Error(err))
	}
}
