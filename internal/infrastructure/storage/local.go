package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/erp/wmssync/internal/domain/commerce"
	"github.com/erp/wmssync/internal/infrastructure/config"
	"go.uber.org/zap"
)

// LocalAssetReader reads assets from a directory. Sources are slash-separated
// paths relative to the directory and may not escape it.
type LocalAssetReader struct {
	fsys fs.FS
}

var _ commerce.AssetReader = (*LocalAssetReader)(nil)

// NewLocalAssetReader creates a reader rooted at dir
func NewLocalAssetReader(dir string) *LocalAssetReader {
	return &LocalAssetReader{fsys: os.DirFS(dir)}
}

// ReadAsset reads the file stored under source.
func (r *LocalAssetReader) ReadAsset(_ context.Context, source string) ([]byte, error) {
	name := path.Clean(strings.TrimPrefix(source, "/"))
	if !fs.ValidPath(name) || name == "." {
		return nil, fmt.Errorf("%w: invalid source %q", commerce.ErrAssetNotFound, source)
	}
	data, err := fs.ReadFile(r.fsys, name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", commerce.ErrAssetNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("read asset %s: %w", name, err)
	}
	if len(data) > maxAssetSize {
		return nil, fmt.Errorf("asset %s exceeds %d bytes", name, maxAssetSize)
	}
	return data, nil
}

// NewAssetReader selects S3 when a bucket is configured, else the local directory.
func NewAssetReader(cfg *config.StorageConfig, logger *zap.Logger) (commerce.AssetReader, error) {
	if cfg.Bucket != "" {
		return NewS3AssetReader(cfg, logger)
	}
	return NewLocalAssetReader(cfg.LocalDir), nil
}
