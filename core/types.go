package core

import (
	"context"
	"time"
)

// Format identifies an image codec.  The set is closed: validation and
// transformation switch over it exhaustively, so adding a format is a
// compile-time-checked change.
type Format string

const (
	FormatJPEG    Format = "jpeg"
	FormatPNG     Format = "png"
	FormatWebP    Format = "webp"
	FormatGIF     Format = "gif"
	FormatBMP     Format = "bmp"
	FormatTIFF    Format = "tiff"
	FormatSVG     Format = "svg"
	FormatUnknown Format = "unknown"
)

// Formats lists every supported format.
var Formats = []Format{
	FormatJPEG, FormatPNG, FormatWebP, FormatGIF, FormatBMP, FormatTIFF, FormatSVG,
}

// MIMEType returns the canonical MIME type for f.
func (f Format) MIMEType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatWebP:
		return "image/webp"
	case FormatGIF:
		return "image/gif"
	case FormatBMP:
		return "image/bmp"
	case FormatTIFF:
		return "image/tiff"
	case FormatSVG:
		return "image/svg+xml"
	}
	return "application/octet-stream"
}

// Extension returns the on-disk file extension for f, without the dot.
func (f Format) Extension() string {
	if f == FormatSVG {
		return "svg"
	}
	if f == FormatUnknown {
		return "bin"
	}
	return string(f)
}

// FormatFromMIME maps a declared MIME type to a Format.
func FormatFromMIME(mime string) Format {
	switch mime {
	case "image/jpeg", "image/jpg":
		return FormatJPEG
	case "image/png":
		return FormatPNG
	case "image/webp":
		return FormatWebP
	case "image/gif":
		return FormatGIF
	case "image/bmp", "image/x-ms-bmp":
		return FormatBMP
	case "image/tiff":
		return FormatTIFF
	case "image/svg+xml":
		return FormatSVG
	}
	return FormatUnknown
}

// ColorSpace represents the image colour model.
type ColorSpace string

const (
	ColorSpaceRGB  ColorSpace = "rgb"
	ColorSpaceRGBA ColorSpace = "rgba"
	ColorSpaceCMYK ColorSpace = "cmyk"
	ColorSpaceGray ColorSpace = "gray"
)

// Metadata holds extracted image information without loading pixel data.
type Metadata struct {
	Width      int
	Height     int
	Format     Format
	ColorSpace ColorSpace
	HasAlpha   bool
	Density    int               // pixels per inch; 0 when the format omits it
	Tags       map[string]string // embedded tag block (EXIF etc.); nil when absent
}

// ImageAsset is an immutable value once created.  A transformed variant is a
// new ImageAsset, never an in-place edit.
type ImageAsset struct {
	ID               string
	OriginalName     string
	AssignedFileName string // system-generated; the only name ever used on disk
	MimeType         string
	ByteSize         int64
	Width            int
	Height           int
	Data             []byte
	UploadedAt       time.Time
	IsTransformed    bool
	QualityLevel     int // 0-100
}

// UploadPolicy is per-call configuration; it has no lifecycle of its own.
type UploadPolicy struct {
	MaxBytes          int64
	MaxWidth          int
	MaxHeight         int
	AllowedMimeTypes  []string // empty = any supported type
	Quality           int
	Compress          bool
	GenerateThumbnail bool
	ThumbnailWidth    int
	ThumbnailHeight   int
	ConvertTo         Format // optional target format for the processed asset
}

// ── Validation findings ───────────────────────────────────────────────────────

// FindingKind enumerates constraint findings.
type FindingKind string

const (
	FindingFileTooLarge       FindingKind = "file_too_large"
	FindingWidthExceeded      FindingKind = "width_exceeded"
	FindingHeightExceeded     FindingKind = "height_exceeded"
	FindingMimeNotAllowed     FindingKind = "mime_not_allowed"
	FindingTinyDimensions     FindingKind = "tiny_dimensions"
	FindingLargeAnimated      FindingKind = "large_animated"
	FindingSuspiciousFilename FindingKind = "suspicious_filename"
)

// Finding is a single structured validation error or warning.
type Finding struct {
	Kind    FindingKind
	Message string
}

// FileInfo is an advisory snapshot attached to a ValidationOutcome.
type FileInfo struct {
	SizeBytes       int64
	Width           int
	Height          int
	Format          Format
	HasTransparency bool
}

// ValidationOutcome aggregates constraint errors and warnings.  Errors
// invalidate the asset; warnings never do.
type ValidationOutcome struct {
	Errors   []Finding
	Warnings []Finding
	FileInfo *FileInfo
}

// IsValid reports whether the outcome carries no errors.
func (o *ValidationOutcome) IsValid() bool { return len(o.Errors) == 0 }

// AddError appends a structured error finding.
func (o *ValidationOutcome) AddError(kind FindingKind, msg string) {
	o.Errors = append(o.Errors, Finding{Kind: kind, Message: msg})
}

// AddWarning appends a structured warning finding.
func (o *ValidationOutcome) AddWarning(kind FindingKind, msg string) {
	o.Warnings = append(o.Warnings, Finding{Kind: kind, Message: msg})
}

// Merge folds another outcome into o, preserving ordering.
func (o *ValidationOutcome) Merge(other *ValidationOutcome) {
	if other == nil {
		return
	}
	o.Errors = append(o.Errors, other.Errors...)
	o.Warnings = append(o.Warnings, other.Warnings...)
	if o.FileInfo == nil {
		o.FileInfo = other.FileInfo
	}
}

// ── Security threats ──────────────────────────────────────────────────────────

// ThreatKind enumerates signature-level threats.
type ThreatKind string

const (
	ThreatUnsupportedFormat ThreatKind = "unsupported_format"
	ThreatSignatureMismatch ThreatKind = "signature_mismatch"
	ThreatEmbeddedContent   ThreatKind = "embedded_content"
)

// Threat is a single security finding.
type Threat struct {
	Kind   ThreatKind
	Detail string
}

// SecurityOutcome reports signature validation results.  IsSecure is never a
// stored flag: it is computed from the threat list after all checks ran.
type SecurityOutcome struct {
	Threats                []Threat
	ObservedSignature      string // hex prefix of the buffer
	DetectedFormat         Format
	SuspiciousContentFound bool
}

// IsSecure reports whether no threats were recorded.
func (o *SecurityOutcome) IsSecure() bool { return len(o.Threats) == 0 }

// ── Transform options ─────────────────────────────────────────────────────────

// FitPolicy is the geometric rule governing how source dimensions map to
// target dimensions during resize.
type FitPolicy string

const (
	FitCover   FitPolicy = "cover"
	FitContain FitPolicy = "contain"
	FitFill    FitPolicy = "fill"
	FitInside  FitPolicy = "inside"
	FitOutside FitPolicy = "outside"
)

// Anchor selects the retained region for cover-style crops.
type Anchor string

const (
	AnchorCenter Anchor = "center"
	AnchorTop    Anchor = "top"
	AnchorBottom Anchor = "bottom"
	AnchorLeft   Anchor = "left"
	AnchorRight  Anchor = "right"
)

// ResizeOptions controls a single resize operation.  Pass 0 for one axis to
// derive it from the other.
type ResizeOptions struct {
	Width        int
	Height       int
	Fit          FitPolicy
	Anchor       Anchor
	Background   [4]uint8 // pad colour for contain/fill; RGBA
	AllowUpscale bool     // false: output never exceeds the source dimension
}

// RecompressOptions controls a re-encode without a geometry change.
type RecompressOptions struct {
	Quality      int
	TargetFormat Format // empty = keep the source format
	Progressive  bool
}

// OptimizeOptions is the composed resize-inside + recompress convenience.
type OptimizeOptions struct {
	MaxWidth  int
	MaxHeight int
	Quality   int
	Format    Format // empty = keep the source format
}

// ── Results ───────────────────────────────────────────────────────────────────

// TempObject is the payload returned when reading a temp entry.
type TempObject struct {
	Data     []byte
	MimeType string
}

// Promotion references the permanent copies produced by promoting a temp entry.
type Promotion struct {
	URL          string
	ThumbnailURL string // empty when the entry had no thumbnail
}

// ProcessingResult is returned to the caller after a full intake run.
type ProcessingResult struct {
	Success bool
	Err     error // set when intake aborted before validation completed

	OriginalImage  *ImageAsset
	ProcessedImage *ImageAsset
	Thumbnail      *ImageAsset

	Validation ValidationOutcome
	Security   SecurityOutcome

	TempID           string // empty when nothing was persisted
	CompressionRatio float64

	ProcessingTime time.Duration
	StageTimings   map[string]time.Duration
}

// ── Async jobs ────────────────────────────────────────────────────────────────

// IntakeRequest is one unit of intake work.
type IntakeRequest struct {
	Data         []byte
	MimeType     string
	OriginalName string
	Policy       UploadPolicy
}

// Job encapsulates an async intake submission for the worker pool.
type Job struct {
	ID      string
	Ctx     context.Context //nolint:containedctx // intentional for async jobs
	Request IntakeRequest
	// Result channel; nil for fire-and-forget.
	ResultCh chan<- JobResult
}

// JobResult wraps the outcome of an async job.
type JobResult struct {
	JobID  string
	Result *ProcessingResult
	Err    error
}

// Hook is an optional observer invoked around intake stages.
type Hook interface {
	BeforeStage(ctx context.Context, stage string)
	AfterStage(ctx context.Context, stage string, d time.Duration, err error)
}
