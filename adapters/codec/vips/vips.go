// Package vips implements the codec capability on libvips via govips.
// Thumbnailing uses vips_thumbnail() so the full bitmap is never allocated
// for shrink-dominated workloads.
package vips

import (
	"context"
	"fmt"
	"runtime"

	govips "github.com/davidbyttow/govips/v2/vips"

	"github.com/Skryldev/image-intake/core"
	apperrors "github.com/Skryldev/image-intake/errors"
)

// BackendConfig configures the libvips backend.
type BackendConfig struct {
	DefaultQuality int
	MaxCacheSize   int
	MaxWorkers     int
	ReportLeaks    bool
}

// Backend is a libvips-powered core.Codec.  Safe for concurrent use across
// goroutines.
type Backend struct {
	cfg BackendConfig
}

// NewBackend initialises libvips and returns a ready Backend.
// Call Shutdown() when the process exits.
func NewBackend(cfg BackendConfig) *Backend {
	if cfg.DefaultQuality <= 0 {
		cfg.DefaultQuality = 85
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = runtime.NumCPU()
	}
	govips.Startup(&govips.Config{
		ConcurrencyLevel: cfg.MaxWorkers,
		MaxCacheSize:     cfg.MaxCacheSize,
		ReportLeaks:      cfg.ReportLeaks,
		CollectStats:     true,
	})
	return &Backend{cfg: cfg}
}

// Shutdown releases all libvips resources.  Call once at process exit.
func (b *Backend) Shutdown() {
	govips.Shutdown()
}

// CanTransform reports whether libvips can load pixel data for f.
func (b *Backend) CanTransform(f core.Format) bool {
	switch f {
	case core.FormatJPEG, core.FormatPNG, core.FormatWebP,
		core.FormatGIF, core.FormatBMP, core.FormatTIFF, core.FormatSVG:
		return true
	}
	return false
}

// DecodeMetadata reads structural metadata from the buffer header.
func (b *Backend) DecodeMetadata(ctx context.Context, data []byte) (core.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return core.Metadata{}, apperrors.Wrap(apperrors.CategoryMetadata, "vips.decode", err)
	}
	ref, err := govips.NewImageFromBuffer(data)
	if err != nil {
		return core.Metadata{}, apperrors.Wrap(apperrors.CategoryMetadata, "vips.decode", err)
	}
	defer ref.Close()

	meta := core.Metadata{
		Width:      ref.Width(),
		Height:     ref.Height(),
		Format:     vipsFormatToCore(ref.Format()),
		ColorSpace: vipsInterpretationToColorSpace(ref.Interpretation()),
		HasAlpha:   ref.HasAlpha(),
	}
	if fields := ref.GetFields(); len(fields) > 0 {
		tags := make(map[string]string, len(fields))
		for _, field := range fields {
			tags[field] = ref.GetString(field)
		}
		meta.Tags = tags
	}
	return meta, nil
}

// Resize applies the fit geometry and re-encodes in the source format.
func (b *Backend) Resize(ctx context.Context, data []byte, opts core.ResizeOptions, quality int) ([]byte, core.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.Metadata{}, apperrors.Wrap(apperrors.CategoryTransform, "vips.resize", err)
	}
	ref, err := govips.NewImageFromBuffer(data)
	if err != nil {
		return nil, core.Metadata{}, apperrors.Wrap(apperrors.CategoryTransform, "vips.resize", err)
	}
	defer ref.Close()

	if err := applyFit(ref, opts); err != nil {
		return nil, core.Metadata{}, apperrors.Wrap(apperrors.CategoryTransform, "vips.resize", err)
	}
	return b.export(ref, vipsFormatToCore(ref.Format()), quality)
}

// Encode re-encodes the buffer into the target format.
func (b *Backend) Encode(ctx context.Context, data []byte, format core.Format, quality int) ([]byte, core.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.Metadata{}, apperrors.Wrap(apperrors.CategoryTransform, "vips.encode", err)
	}
	ref, err := govips.NewImageFromBuffer(data)
	if err != nil {
		return nil, core.Metadata{}, apperrors.Wrap(apperrors.CategoryTransform, "vips.encode", err)
	}
	defer ref.Close()
	return b.export(ref, format, quality)
}

// Thumbnail uses vips_thumbnail() with centre attention cropping.
func (b *Backend) Thumbnail(ctx context.Context, data []byte, width, height, quality int) ([]byte, core.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.Metadata{}, apperrors.Wrap(apperrors.CategoryTransform, "vips.thumbnail", err)
	}
	ref, err := govips.NewThumbnailFromBuffer(data, width, height, govips.InterestingCentre)
	if err != nil {
		return nil, core.Metadata{}, apperrors.Wrap(apperrors.CategoryTransform, "vips.thumbnail", err)
	}
	defer ref.Close()
	return b.export(ref, core.FormatJPEG, quality)
}

// ── internals ─────────────────────────────────────────────────────────────────

func applyFit(ref *govips.ImageRef, opts core.ResizeOptions) error {
	srcW, srcH := ref.Width(), ref.Height()
	tw, th := opts.Width, opts.Height
	if tw == 0 && th == 0 {
		return nil
	}
	if tw == 0 {
		tw = srcW * th / srcH
	}
	if th == 0 {
		th = srcH * tw / srcW
	}

	switch opts.Fit {
	case core.FitCover:
		return ref.Thumbnail(tw, th, govips.InterestingCentre)
	case core.FitFill:
		return ref.ResizeWithVScale(float64(tw)/float64(srcW), float64(th)/float64(srcH), govips.KernelLanczos3)
	case core.FitContain:
		if err := ref.Resize(clampRatio(minRatio(srcW, srcH, tw, th), true), govips.KernelLanczos3); err != nil {
			return err
		}
		left := (tw - ref.Width()) / 2
		top := (th - ref.Height()) / 2
		return ref.Embed(left, top, tw, th, govips.ExtendBackground)
	case core.FitOutside:
		return ref.Resize(clampRatio(maxRatio(srcW, srcH, tw, th), opts.AllowUpscale), govips.KernelLanczos3)
	case core.FitInside, "":
		return ref.Resize(clampRatio(minRatio(srcW, srcH, tw, th), opts.AllowUpscale), govips.KernelLanczos3)
	}
	return nil
}

func clampRatio(r float64, allowUpscale bool) float64 {
	if !allowUpscale && r > 1 {
		return 1
	}
	return r
}

func minRatio(srcW, srcH, tw, th int) float64 {
	rw := float64(tw) / float64(srcW)
	rh := float64(th) / float64(srcH)
	if rw < rh {
		return rw
	}
	return rh
}

func maxRatio(srcW, srcH, tw, th int) float64 {
	rw := float64(tw) / float64(srcW)
	rh := float64(th) / float64(srcH)
	if rw > rh {
		return rw
	}
	return rh
}

func (b *Backend) export(ref *govips.ImageRef, format core.Format, quality int) ([]byte, core.Metadata, error) {
	if quality <= 0 {
		quality = b.cfg.DefaultQuality
	}

	var (
		buf []byte
		err error
	)
	switch format {
	case core.FormatJPEG:
		ep := govips.NewJpegExportParams()
		ep.Quality = quality
		ep.StripMetadata = true
		buf, _, err = ref.ExportJpeg(ep)
	case core.FormatPNG:
		ep := govips.NewPngExportParams()
		ep.StripMetadata = true
		buf, _, err = ref.ExportPng(ep)
	case core.FormatWebP:
		ep := govips.NewWebpExportParams()
		ep.Quality = quality
		ep.StripMetadata = true
		buf, _, err = ref.ExportWebp(ep)
	case core.FormatGIF:
		ep := govips.NewGifExportParams()
		ep.Quality = quality
		buf, _, err = ref.ExportGIF(ep)
	case core.FormatTIFF:
		ep := govips.NewTiffExportParams()
		ep.Quality = quality
		buf, _, err = ref.ExportTiff(ep)
	default:
		return nil, core.Metadata{}, apperrors.New(apperrors.CategoryTransform, "vips.export",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format))
	}
	if err != nil {
		return nil, core.Metadata{}, apperrors.Wrap(apperrors.CategoryTransform, "vips.export", err)
	}

	return buf, core.Metadata{
		Width:      ref.Width(),
		Height:     ref.Height(),
		Format:     format,
		ColorSpace: vipsInterpretationToColorSpace(ref.Interpretation()),
		HasAlpha:   ref.HasAlpha(),
	}, nil
}

func vipsFormatToCore(f govips.ImageType) core.Format {
	switch f {
	case govips.ImageTypeJPEG:
		return core.FormatJPEG
	case govips.ImageTypePNG:
		return core.FormatPNG
	case govips.ImageTypeWEBP:
		return core.FormatWebP
	case govips.ImageTypeGIF:
		return core.FormatGIF
	case govips.ImageTypeBMP:
		return core.FormatBMP
	case govips.ImageTypeTIFF:
		return core.FormatTIFF
	case govips.ImageTypeSVG:
		return core.FormatSVG
	}
	return core.FormatUnknown
}

func vipsInterpretationToColorSpace(i govips.Interpretation) core.ColorSpace {
	switch i {
	case govips.InterpretationSRGB, govips.InterpretationRGB16:
		return core.ColorSpaceRGB
	case govips.InterpretationBW:
		return core.ColorSpaceGray
	case govips.InterpretationCMYK:
		return core.ColorSpaceCMYK
	}
	return core.ColorSpaceRGB
}

// compile-time interface check
var _ core.Codec = (*Backend)(nil)
