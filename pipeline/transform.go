// Package pipeline provides the transform operations of the intake core:
// resize, recompress, format conversion, thumbnailing, and the composed
// optimize pass.  Every operation is a pure byte-buffer-to-byte-buffer
// function delegating pixel work to the codec capability; on failure it
// returns a transform-category error, never the original bytes.
package pipeline

import (
	"context"
	"fmt"

	"github.com/Skryldev/image-intake/core"
	apperrors "github.com/Skryldev/image-intake/errors"
)

// Fixed thumbnail policy: thumbnails must be visually predictable and
// storage-cheap, not configurable per call.
const (
	thumbnailQuality = 80
	thumbnailFormat  = core.FormatJPEG
)

// defaultConvertQuality applies when ConvertFormat is called with quality 0.
const defaultConvertQuality = 85

// Transformer runs byte-level transforms through a codec backend.  Safe for
// concurrent use.
type Transformer struct {
	codec core.Codec
}

// NewTransformer returns a Transformer backed by codec.
func NewTransformer(codec core.Codec) *Transformer {
	return &Transformer{codec: codec}
}

// Resize scales data according to opts.  With AllowUpscale false (the
// default) the output never exceeds the larger of requested and source
// dimensions.
func (t *Transformer) Resize(ctx context.Context, data []byte, opts core.ResizeOptions, quality int) ([]byte, core.Metadata, error) {
	if len(data) == 0 {
		return nil, core.Metadata{}, apperrors.New(apperrors.CategoryTransform, "transform.resize", apperrors.ErrEmptyInput)
	}
	if opts.Fit == "" {
		opts.Fit = core.FitInside
	}
	if opts.Anchor == "" {
		opts.Anchor = core.AnchorCenter
	}
	out, meta, err := t.codec.Resize(ctx, data, opts, quality)
	if err != nil {
		return nil, core.Metadata{}, apperrors.Wrap(apperrors.CategoryTransform, "transform.resize", err)
	}
	return out, meta, nil
}

// Recompress re-encodes data at the given quality without changing geometry.
func (t *Transformer) Recompress(ctx context.Context, data []byte, opts core.RecompressOptions) ([]byte, core.Metadata, error) {
	if len(data) == 0 {
		return nil, core.Metadata{}, apperrors.New(apperrors.CategoryTransform, "transform.recompress", apperrors.ErrEmptyInput)
	}
	format := opts.TargetFormat
	if format == "" {
		detected, err := t.codec.DecodeMetadata(ctx, data)
		if err != nil {
			return nil, core.Metadata{}, apperrors.Wrap(apperrors.CategoryTransform, "transform.recompress", err)
		}
		format = detected.Format
	}
	out, meta, err := t.codec.Encode(ctx, data, format, opts.Quality)
	if err != nil {
		return nil, core.Metadata{}, apperrors.Wrap(apperrors.CategoryTransform, "transform.recompress", err)
	}
	return out, meta, nil
}

// ConvertFormat decodes data and re-encodes it into target.  Output MIME
// always matches target regardless of the input's actual format.  Only the
// three web delivery formats are valid targets.
func (t *Transformer) ConvertFormat(ctx context.Context, data []byte, target core.Format, quality int) ([]byte, core.Metadata, error) {
	if len(data) == 0 {
		return nil, core.Metadata{}, apperrors.New(apperrors.CategoryTransform, "transform.convert", apperrors.ErrEmptyInput)
	}
	switch target {
	case core.FormatJPEG, core.FormatPNG, core.FormatWebP:
	default:
		return nil, core.Metadata{}, apperrors.New(apperrors.CategoryTransform, "transform.convert",
			fmt.Errorf("%w: cannot convert to %s", apperrors.ErrUnsupportedFormat, target))
	}
	if quality <= 0 {
		quality = defaultConvertQuality
	}
	out, meta, err := t.codec.Encode(ctx, data, target, quality)
	if err != nil {
		return nil, core.Metadata{}, apperrors.Wrap(apperrors.CategoryTransform, "transform.convert", err)
	}
	meta.Format = target
	return out, meta, nil
}

// GenerateThumbnail produces an exact width×height rendition with the fixed
// policy fit=cover, anchor=center, JPEG at quality 80.
func (t *Transformer) GenerateThumbnail(ctx context.Context, data []byte, width, height int) ([]byte, core.Metadata, error) {
	if len(data) == 0 {
		return nil, core.Metadata{}, apperrors.New(apperrors.CategoryTransform, "transform.thumbnail", apperrors.ErrEmptyInput)
	}
	if width <= 0 || height <= 0 {
		return nil, core.Metadata{}, apperrors.New(apperrors.CategoryTransform, "transform.thumbnail", apperrors.ErrInvalidDimensions)
	}
	out, meta, err := t.codec.Thumbnail(ctx, data, width, height, thumbnailQuality)
	if err != nil {
		return nil, core.Metadata{}, apperrors.Wrap(apperrors.CategoryTransform, "transform.thumbnail", err)
	}
	meta.Format = thumbnailFormat
	return out, meta, nil
}

// Optimize is the composed convenience pass: resize with fit=inside and no
// upscaling, then recompress.  Used whenever policy requests compression or
// the source exceeds policy bounds.
func (t *Transformer) Optimize(ctx context.Context, data []byte, opts core.OptimizeOptions) ([]byte, core.Metadata, error) {
	if len(data) == 0 {
		return nil, core.Metadata{}, apperrors.New(apperrors.CategoryTransform, "transform.optimize", apperrors.ErrEmptyInput)
	}

	current := data
	if opts.MaxWidth > 0 || opts.MaxHeight > 0 {
		resized, _, err := t.Resize(ctx, current, core.ResizeOptions{
			Width:        opts.MaxWidth,
			Height:       opts.MaxHeight,
			Fit:          core.FitInside,
			AllowUpscale: false,
		}, opts.Quality)
		if err != nil {
			return nil, core.Metadata{}, err
		}
		current = resized
	}

	out, meta, err := t.Recompress(ctx, current, core.RecompressOptions{
		Quality:      opts.Quality,
		TargetFormat: opts.Format,
	})
	if err != nil {
		return nil, core.Metadata{}, err
	}
	return out, meta, nil
}
