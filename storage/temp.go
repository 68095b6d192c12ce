// Package storage provides the scratch store that owns the short-lived
// on-disk existence of processed assets, and the permanent stores that
// receive promoted assets.
package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Skryldev/image-intake/core"
	apperrors "github.com/Skryldev/image-intake/errors"
)

const (
	// DefaultTTL is the fixed lifetime of a temp entry.
	DefaultTTL = 24 * time.Hour
	// DefaultSweepInterval is how often the background sweep runs.
	DefaultSweepInterval = time.Hour
)

// Entry tracks one stored asset.  Lifecycle per entry:
// Created → (Read*) → {Promoted | Deleted | Expired}; terminal states are
// mutually exclusive and irreversible.
type Entry struct {
	ID            string
	PrimaryPath   string
	ThumbnailPath string // empty when no thumbnail was stored
	CreatedAt     time.Time
	ExpiresAt     time.Time
}

// TempConfig configures a Temp store.  Zero values resolve to defaults.
type TempConfig struct {
	Dir           string
	TTL           time.Duration
	SweepInterval time.Duration
	Permissions   os.FileMode
}

// Temp is the scratch store.  The id→entry table is guarded by mu; table
// insertion happens only after the on-disk write completes, so no entry is
// ever observable half-written.
type Temp struct {
	cfg       TempConfig
	permanent core.PermanentStore
	logger    core.Logger

	mu      sync.RWMutex
	entries map[string]*Entry

	// now is injectable so tests can reposition the clock.
	now func() time.Time

	once     sync.Once
	shutdown chan struct{}
	wg       sync.WaitGroup
}

// NewTemp creates a Temp store rooted at cfg.Dir.  permanent receives
// promoted assets and must not be nil.
func NewTemp(cfg TempConfig, permanent core.PermanentStore) (*Temp, error) {
	if permanent == nil {
		return nil, fmt.Errorf("temp storage: permanent store must not be nil")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.Permissions == 0 {
		cfg.Permissions = 0o644
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "temp.mkdir", err)
	}
	return &Temp{
		cfg:       cfg,
		permanent: permanent,
		entries:   make(map[string]*Entry),
		now:       time.Now,
		shutdown:  make(chan struct{}),
	}, nil
}

// SetLogger attaches a structured logger.
func (t *Temp) SetLogger(l core.Logger) { t.logger = l }

// SetClock replaces the store's time source.  Call before Start; intended for
// deterministic expiry tests.
func (t *Temp) SetClock(now func() time.Time) { t.now = now }

// Start launches the hourly sweep goroutine.  It is idempotent.
func (t *Temp) Start() {
	t.once.Do(func() {
		t.wg.Add(1)
		go t.sweepLoop()
	})
}

// Stop shuts down the sweep goroutine.
func (t *Temp) Stop() {
	close(t.shutdown)
	t.wg.Wait()
}

// Create writes the asset (and thumbnail, if present) to the scratch area and
// registers the entry with a fresh opaque id.  On-disk names are always
// derived from the system-assigned filename, never the caller-supplied one.
func (t *Temp) Create(ctx context.Context, asset *core.ImageAsset, thumbnail *core.ImageAsset) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", apperrors.Wrap(apperrors.CategoryStorage, "temp.create", err)
	}
	if asset == nil || len(asset.Data) == 0 {
		return "", apperrors.New(apperrors.CategoryStorage, "temp.create", apperrors.ErrEmptyInput)
	}

	id := uuid.NewString()
	primaryPath := filepath.Join(t.cfg.Dir, id+"_"+asset.AssignedFileName)
	if err := os.WriteFile(primaryPath, asset.Data, t.cfg.Permissions); err != nil {
		return "", apperrors.Wrap(apperrors.CategoryStorage, "temp.create.write", err)
	}

	var thumbPath string
	if thumbnail != nil && len(thumbnail.Data) > 0 {
		thumbPath = filepath.Join(t.cfg.Dir, id+"_"+thumbnail.AssignedFileName)
		if err := os.WriteFile(thumbPath, thumbnail.Data, t.cfg.Permissions); err != nil {
			_ = os.Remove(primaryPath)
			return "", apperrors.Wrap(apperrors.CategoryStorage, "temp.create.write_thumb", err)
		}
	}

	now := t.now()
	entry := &Entry{
		ID:            id,
		PrimaryPath:   primaryPath,
		ThumbnailPath: thumbPath,
		CreatedAt:     now,
		ExpiresAt:     now.Add(t.cfg.TTL),
	}
	t.mu.Lock()
	t.entries[id] = entry
	t.mu.Unlock()

	if t.logger != nil {
		t.logger.Debug("temp.entry.created", "id", id, "expires_at", entry.ExpiresAt)
	}
	return id, nil
}

// Get returns the stored bytes and inferred MIME type, or nil for an absent
// id.  An expired entry is deleted as a side effect and reported as absent.
func (t *Temp) Get(ctx context.Context, id string) (*core.TempObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "temp.get", err)
	}

	t.mu.RLock()
	entry, ok := t.entries[id]
	t.mu.RUnlock()
	if !ok {
		return nil, nil
	}

	if t.now().After(entry.ExpiresAt) {
		t.remove(id) // lazy expiry
		return nil, nil
	}

	data, err := os.ReadFile(entry.PrimaryPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Swept between the expiry check and the read; genuinely gone.
			return nil, nil
		}
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "temp.get.read", err)
	}
	return &core.TempObject{
		Data:     data,
		MimeType: mimeFromPath(entry.PrimaryPath),
	}, nil
}

// Delete removes the entry and its files.  Idempotent: deleting an absent or
// already-deleted id is a no-op.
func (t *Temp) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Wrap(apperrors.CategoryStorage, "temp.delete", err)
	}
	t.remove(id)
	return nil
}

// Promote copies the primary (and thumbnail, if present) into permanent
// storage, then deletes the temp entry.  Returns nil for an absent or
// expired entry.
func (t *Temp) Promote(ctx context.Context, id string) (*core.Promotion, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "temp.promote", err)
	}

	t.mu.RLock()
	entry, ok := t.entries[id]
	t.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if t.now().After(entry.ExpiresAt) {
		t.remove(id)
		return nil, nil
	}

	data, err := os.ReadFile(entry.PrimaryPath)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "temp.promote.read", err)
	}
	url, err := t.permanent.StoreImage(ctx, filepath.Base(entry.PrimaryPath), data, mimeFromPath(entry.PrimaryPath))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryStorage, "temp.promote.store", err)
	}

	promo := &core.Promotion{URL: url}
	if entry.ThumbnailPath != "" {
		thumb, err := os.ReadFile(entry.ThumbnailPath)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryStorage, "temp.promote.read_thumb", err)
		}
		thumbURL, err := t.permanent.StoreThumbnail(ctx, filepath.Base(entry.ThumbnailPath), thumb, mimeFromPath(entry.ThumbnailPath))
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CategoryStorage, "temp.promote.store_thumb", err)
		}
		promo.ThumbnailURL = thumbURL
	}

	t.remove(id)
	if t.logger != nil {
		t.logger.Info("temp.entry.promoted", "id", id, "url", promo.URL)
	}
	return promo, nil
}

// Sweep deletes every tracked entry past its expiry and reports how many
// were removed.  The background loop calls this hourly; tests call it
// directly.
func (t *Temp) Sweep(ctx context.Context) int {
	now := t.now()

	t.mu.RLock()
	var expired []string
	for id, entry := range t.entries {
		if now.After(entry.ExpiresAt) {
			expired = append(expired, id)
		}
	}
	t.mu.RUnlock()

	removed := 0
	for _, id := range expired {
		if ctx.Err() != nil {
			break
		}
		if t.remove(id) {
			removed++
		}
	}
	if removed > 0 && t.logger != nil {
		t.logger.Info("temp.sweep", "removed", removed)
	}
	return removed
}

// Len reports the number of tracked entries.
func (t *Temp) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

// remove is the single path into a terminal state; once the entry leaves the
// table nothing can resurrect it.
func (t *Temp) remove(id string) bool {
	t.mu.Lock()
	entry, ok := t.entries[id]
	if ok {
		delete(t.entries, id)
	}
	t.mu.Unlock()
	if !ok {
		return false
	}

	if err := os.Remove(entry.PrimaryPath); err != nil && !errors.Is(err, os.ErrNotExist) && t.logger != nil {
		t.logger.Warn("temp.remove.primary", "id", id, "error", err.Error())
	}
	if entry.ThumbnailPath != "" {
		if err := os.Remove(entry.ThumbnailPath); err != nil && !errors.Is(err, os.ErrNotExist) && t.logger != nil {
			t.logger.Warn("temp.remove.thumbnail", "id", id, "error", err.Error())
		}
	}
	return true
}

func (t *Temp) sweepLoop() {
	defer t.wg.Done()
	ticker := time.NewTicker(t.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.shutdown:
			return
		case <-ticker.C:
			t.Sweep(context.Background())
		}
	}
}

// mimeFromPath infers the MIME type from the stored file extension.
func mimeFromPath(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "jpg", "jpeg":
		return "image/jpeg"
	case "png":
		return "image/png"
	case "webp":
		return "image/webp"
	case "gif":
		return "image/gif"
	case "bmp":
		return "image/bmp"
	case "tiff", "tif":
		return "image/tiff"
	case "svg":
		return "image/svg+xml"
	}
	return "application/octet-stream"
}

// compile-time interface check
var _ core.TempStore = (*Temp)(nil)
