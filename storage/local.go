package storage

import (
	"context"
	"os"
	"path"
	"path/filepath"

	"github.com/Skryldev/image-intake/core"
	apperrors "github.com/Skryldev/image-intake/errors"
)

const (
	imagesSubdir     = "images"
	thumbnailsSubdir = "thumbnails"
)

// Local is a PermanentStore on the local filesystem: promoted primaries land
// in images/, thumbnails in thumbnails/.
type Local struct {
	rootDir     string
	baseURL     string // prefix for returned references; may be empty
	permissions os.FileMode
}

// NewLocal creates a Local permanent store rooted at dir.
func NewLocal(dir, baseURL string, perm os.FileMode) (*Local, error) {
	if perm == 0 {
		perm = 0o644
	}
	for _, sub := range []string{imagesSubdir, thumbnailsSubdir} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryStorage, "local.mkdir", err)
		}
	}
	return &Local{rootDir: dir, baseURL: baseURL, permissions: perm}, nil
}

func (l *Local) StoreImage(ctx context.Context, name string, data []byte, mimeType string) (string, error) {
	return l.store(ctx, imagesSubdir, name, data)
}

func (l *Local) StoreThumbnail(ctx context.Context, name string, data []byte, mimeType string) (string, error) {
	return l.store(ctx, thumbnailsSubdir, name, data)
}

func (l *Local) store(ctx context.Context, subdir, name string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperrors.Wrap(apperrors.CategoryStorage, "local.store", err)
	}
	// name is system-generated upstream; Base guards against regressions.
	name = filepath.Base(name)
	dst := filepath.Join(l.rootDir, subdir, name)
	if err := os.WriteFile(dst, data, l.permissions); err != nil {
		return "", apperrors.Wrap(apperrors.CategoryStorage, "local.store.write", err)
	}
	return path.Join(l.baseURL, subdir, name), nil
}

// compile-time interface check
var _ core.PermanentStore = (*Local)(nil)
