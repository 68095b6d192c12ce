// Package metadata extracts structural image metadata through the codec
// capability.  It is the only component permitted to surface a decode attempt
// as a hard failure; everything downstream degrades to findings.
package metadata

import (
	"context"

	"github.com/Skryldev/image-intake/core"
	apperrors "github.com/Skryldev/image-intake/errors"
)

// Extractor decodes header-only metadata from raw buffers.
type Extractor struct {
	codec core.Codec
}

// NewExtractor returns an Extractor backed by codec.
func NewExtractor(codec core.Codec) *Extractor {
	return &Extractor{codec: codec}
}

// Extract returns structural metadata for data, or a metadata-category error
// when the stream cannot be decoded at all (corrupt, truncated, unknown
// codec).  Missing dimensions default to 0 rather than failing; the
// constraint layer flags implausibly small dimensions downstream.
func (e *Extractor) Extract(ctx context.Context, data []byte) (core.Metadata, error) {
	if len(data) == 0 {
		return core.Metadata{}, apperrors.New(apperrors.CategoryMetadata, "metadata.extract", apperrors.ErrEmptyInput)
	}

	meta, err := e.codec.DecodeMetadata(ctx, data)
	if err != nil {
		return core.Metadata{}, apperrors.Wrap(apperrors.CategoryMetadata, "metadata.extract", err)
	}

	if meta.Width < 0 {
		meta.Width = 0
	}
	if meta.Height < 0 {
		meta.Height = 0
	}
	return meta, nil
}
