// Package imageintake validates, transforms, and temporarily stores uploaded
// images ahead of permanent placement.  The high-level Service wires together
// signature validation, metadata extraction, constraint enforcement, the
// transform pipeline, and TTL-bound scratch storage.
package imageintake

import (
	"context"
	"fmt"
	"io"

	"github.com/Skryldev/image-intake/adapters/codec/std"
	"github.com/Skryldev/image-intake/adapters/codec/vips"
	"github.com/Skryldev/image-intake/config"
	"github.com/Skryldev/image-intake/core"
	"github.com/Skryldev/image-intake/metadata"
	"github.com/Skryldev/image-intake/pipeline"
	"github.com/Skryldev/image-intake/security"
	"github.com/Skryldev/image-intake/storage"
	"github.com/Skryldev/image-intake/utils"
	"github.com/Skryldev/image-intake/validate"
)

// Re-export Format constants for convenience.
const (
	JPEG = core.FormatJPEG
	PNG  = core.FormatPNG
	WebP = core.FormatWebP
	GIF  = core.FormatGIF
)

// DefaultConfig returns a sensible production configuration.
func DefaultConfig() config.Config { return config.Default() }

// Service is the primary entry point.
type Service struct {
	cfg    config.Config
	inner  *core.Orchestrator
	temp   *storage.Temp
	vipsBE *vips.Backend // non-nil only for the vips codec backend
}

// New creates a fully wired Service: codec backend, permanent store, temp
// store, and the intake orchestrator, all selected by cfg.
func New(cfg config.Config) (*Service, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	svc := &Service{cfg: cfg}

	var codec core.Codec
	switch cfg.Codec {
	case config.CodecVips:
		svc.vipsBE = vips.NewBackend(vips.BackendConfig{DefaultQuality: cfg.DefaultQuality})
		codec = svc.vipsBE
	case config.CodecStd, "":
		codec = std.New()
	default:
		return nil, fmt.Errorf("unknown codec backend %q", cfg.Codec)
	}

	permanent, err := newPermanentStore(cfg)
	if err != nil {
		return nil, err
	}

	temp, err := storage.NewTemp(storage.TempConfig{
		Dir:           cfg.TempDir,
		TTL:           cfg.TempTTL,
		SweepInterval: cfg.SweepInterval,
	}, permanent)
	if err != nil {
		return nil, err
	}
	svc.temp = temp

	svc.inner = core.NewOrchestrator(cfg, core.Deps{
		Validator:   security.NewValidator(),
		Extractor:   metadata.NewExtractor(codec),
		Enforcer:    validate.NewEnforcer(),
		Transformer: pipeline.NewTransformer(codec),
		Codec:       codec,
		TempStore:   temp,
	})
	return svc, nil
}

func newPermanentStore(cfg config.Config) (core.PermanentStore, error) {
	switch cfg.Storage {
	case config.StorageMinio:
		return storage.NewMinio(context.Background(), storage.MinioConfig{
			Endpoint:        cfg.Minio.Endpoint,
			AccessKeyID:     cfg.Minio.AccessKeyID,
			SecretAccessKey: cfg.Minio.SecretAccessKey,
			Bucket:          cfg.Minio.Bucket,
			UseSSL:          cfg.Minio.UseSSL,
			PublicBaseURL:   cfg.PublicBaseURL,
		})
	case config.StorageLocal, "":
		return storage.NewLocal(cfg.PermanentDir, cfg.PublicBaseURL, 0)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}

// SetLogger attaches a structured logger to the orchestrator and temp store.
func (s *Service) SetLogger(l core.Logger) {
	s.inner.SetLogger(l)
	s.temp.SetLogger(l)
}

// SetMetrics attaches a metrics collector.
func (s *Service) SetMetrics(m core.MetricsCollector) { s.inner.SetMetrics(m) }

// AddHook registers an observer for intake stage events.
func (s *Service) AddHook(h core.Hook) { s.inner.AddHook(h) }

// Start launches the async worker pool and the hourly expiry sweep.
func (s *Service) Start() {
	s.inner.Start()
	s.temp.Start()
}

// Stop shuts down the workers, the sweep loop, and the codec backend.
func (s *Service) Stop() {
	s.inner.Stop()
	s.temp.Stop()
	if s.vipsBE != nil {
		s.vipsBE.Shutdown()
	}
}

// DefaultPolicy returns the upload policy seeded from configuration.
func (s *Service) DefaultPolicy() core.UploadPolicy {
	p := s.cfg.Policy
	return core.UploadPolicy{
		MaxBytes:          p.MaxBytes,
		MaxWidth:          p.MaxWidth,
		MaxHeight:         p.MaxHeight,
		Quality:           p.Quality,
		Compress:          p.Compress,
		GenerateThumbnail: p.GenerateThumbnail,
		ThumbnailWidth:    p.ThumbnailWidth,
		ThumbnailHeight:   p.ThumbnailHeight,
	}
}

// ProcessImage runs a full intake with the configured default policy.
func (s *Service) ProcessImage(ctx context.Context, data []byte, mimeType, originalName string) (*core.ProcessingResult, error) {
	return s.inner.ProcessImage(ctx, data, mimeType, originalName, s.DefaultPolicy())
}

// ProcessImageWithPolicy runs a full intake with an explicit policy.
func (s *Service) ProcessImageWithPolicy(ctx context.Context, data []byte, mimeType, originalName string, policy core.UploadPolicy) (*core.ProcessingResult, error) {
	return s.inner.ProcessImage(ctx, data, mimeType, originalName, policy)
}

// ProcessImageFromDataURL accepts a data:mime;base64,payload envelope.
func (s *Service) ProcessImageFromDataURL(ctx context.Context, encoded string) (*core.ProcessingResult, error) {
	return s.inner.ProcessImageFromDataURL(ctx, encoded, s.DefaultPolicy())
}

// ProcessImageFromReader drains r and runs a full intake.  Reading stops one
// byte past the policy's MaxBytes: the partial buffer still trips the size
// constraint, so an oversize stream is reported as a size violation instead
// of buffering without bound.
func (s *Service) ProcessImageFromReader(ctx context.Context, r io.Reader, mimeType, originalName string) (*core.ProcessingResult, error) {
	policy := s.DefaultPolicy()
	if policy.MaxBytes > 0 {
		r = io.LimitReader(r, policy.MaxBytes+1)
	}
	buf, err := utils.DrainReader(ctx, r, 0)
	if err != nil {
		return nil, err
	}
	defer utils.ReleaseBuffer(buf)
	return s.inner.ProcessImage(ctx, utils.CloneBytes(buf.Bytes()), mimeType, originalName, policy)
}

// ProcessBatch runs independent intakes concurrently.
func (s *Service) ProcessBatch(ctx context.Context, requests []core.IntakeRequest) ([]*core.ProcessingResult, error) {
	return s.inner.ProcessBatch(ctx, requests)
}

// Submit enqueues an async intake job for the worker pool.
func (s *Service) Submit(job core.Job) error { return s.inner.Submit(job) }

// GetTempImage retrieves a pending asset.  Returns (nil, nil) when the id is
// unknown or the entry has expired.
func (s *Service) GetTempImage(ctx context.Context, id string) (*core.TempObject, error) {
	return s.temp.Get(ctx, id)
}

// DeleteTempImage removes a pending asset.  Deleting an unknown id is a no-op.
func (s *Service) DeleteTempImage(ctx context.Context, id string) error {
	return s.temp.Delete(ctx, id)
}

// Promote moves a pending asset into permanent storage and evicts it from
// the scratch area.
func (s *Service) Promote(ctx context.Context, id string) (*core.Promotion, error) {
	return s.temp.Promote(ctx, id)
}

// Sweep removes all expired scratch entries immediately and reports how many
// were evicted.  The background loop calls this on the configured interval.
func (s *Service) Sweep(ctx context.Context) int { return s.temp.Sweep(ctx) }

// Stats returns lightweight intake statistics.
func (s *Service) Stats() (processed, errors int64) {
	return s.inner.ProcessedCount(), s.inner.ErrorCount()
}
