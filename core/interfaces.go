package core

import (
	"context"
)

// Codec is the external image capability this core consumes: header-only
// metadata decode, resize, and re-encode.  Implementations live in
// adapters/codec/.
type Codec interface {
	// DecodeMetadata inspects data without materialising the full bitmap.
	DecodeMetadata(ctx context.Context, data []byte) (Metadata, error)
	// Resize decodes, applies opts, and re-encodes in the source format
	// (quality 1-100; 0 = codec default).
	Resize(ctx context.Context, data []byte, opts ResizeOptions, quality int) ([]byte, Metadata, error)
	// Encode re-encodes data into the target format at the given quality.
	Encode(ctx context.Context, data []byte, format Format, quality int) ([]byte, Metadata, error)
	// Thumbnail produces an exact width×height crop-to-fill rendition.
	Thumbnail(ctx context.Context, data []byte, width, height int, quality int) ([]byte, Metadata, error)
	// CanTransform reports whether this backend can decode pixel data for f.
	CanTransform(f Format) bool
}

// TempStore owns the short-lived on-disk existence of processed assets.
// Implementations live in storage/.
type TempStore interface {
	Create(ctx context.Context, asset *ImageAsset, thumbnail *ImageAsset) (string, error)
	Get(ctx context.Context, id string) (*TempObject, error)
	Delete(ctx context.Context, id string) error
	Promote(ctx context.Context, id string) (*Promotion, error)
	Sweep(ctx context.Context) int
}

// PermanentStore receives assets promoted out of temp storage.
// Implementations live in storage/.
type PermanentStore interface {
	StoreImage(ctx context.Context, name string, data []byte, mimeType string) (string, error)
	StoreThumbnail(ctx context.Context, name string, data []byte, mimeType string) (string, error)
}

// MetricsCollector receives performance observations from the orchestrator.
type MetricsCollector interface {
	RecordStageTime(stage string, d interface{ Seconds() float64 })
	RecordThroughput(bytes int64)
	RecordError(stage string, category string)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}
