// Package validate applies upload policy constraints to extracted metadata,
// producing structured errors (which invalidate the asset) and warnings
// (advisory only).  Findings are always data, never exceptions.
package validate

import (
	"fmt"
	"strings"

	"github.com/Skryldev/image-intake/core"
	"github.com/Skryldev/image-intake/utils"
)

// animatedSizeThreshold is the fixed byte size past which a multi-frame
// format draws a performance warning.
const animatedSizeThreshold = 5 * 1024 * 1024

// minSaneDimension is the floor below which dimensions are advisory-suspect.
const minSaneDimension = 10

// maxFilenameLen matches the common filesystem component limit.
const maxFilenameLen = 255

// Enforcer evaluates policy rules.  All rules apply independently; none
// short-circuits another.
type Enforcer struct{}

// NewEnforcer returns a constraint enforcer.
func NewEnforcer() *Enforcer { return &Enforcer{} }

// Enforce checks byteSize and meta against policy.  originalName is advisory
// metadata, never used for path construction; name findings are warnings only.
func (e *Enforcer) Enforce(byteSize int64, meta core.Metadata, policy core.UploadPolicy, declaredMime, originalName string) core.ValidationOutcome {
	out := core.ValidationOutcome{
		FileInfo: &core.FileInfo{
			SizeBytes:       byteSize,
			Width:           meta.Width,
			Height:          meta.Height,
			Format:          meta.Format,
			HasTransparency: meta.HasAlpha,
		},
	}

	if policy.MaxBytes > 0 && byteSize > policy.MaxBytes {
		out.AddError(core.FindingFileTooLarge,
			fmt.Sprintf("file size %s exceeds the %s limit",
				utils.HumanSize(byteSize), utils.HumanSize(policy.MaxBytes)))
	}

	if policy.MaxWidth > 0 && meta.Width > policy.MaxWidth {
		out.AddError(core.FindingWidthExceeded,
			fmt.Sprintf("width %dpx exceeds the maximum of %dpx", meta.Width, policy.MaxWidth))
	}

	if policy.MaxHeight > 0 && meta.Height > policy.MaxHeight {
		out.AddError(core.FindingHeightExceeded,
			fmt.Sprintf("height %dpx exceeds the maximum of %dpx", meta.Height, policy.MaxHeight))
	}

	if len(policy.AllowedMimeTypes) > 0 && !mimeAllowed(policy.AllowedMimeTypes, declaredMime) {
		out.AddError(core.FindingMimeNotAllowed,
			fmt.Sprintf("type %s is not permitted by the upload policy", declaredMime))
	}

	if meta.Width < minSaneDimension || meta.Height < minSaneDimension {
		out.AddWarning(core.FindingTinyDimensions,
			fmt.Sprintf("image dimensions %dx%d are below the sane minimum", meta.Width, meta.Height))
	}

	if meta.Format == core.FormatGIF && byteSize > animatedSizeThreshold {
		out.AddWarning(core.FindingLargeAnimated,
			fmt.Sprintf("animated image of %s may degrade processing performance", utils.HumanSize(byteSize)))
	}

	if originalName != "" {
		checkFilename(&out, originalName)
	}

	return out
}

// checkFilename flags control characters, path-breaking punctuation, and
// over-long names.  Warnings only: the on-disk name is always system
// generated, so a hostile name is noise rather than an injection vector.
func checkFilename(out *core.ValidationOutcome, name string) {
	if len(name) > maxFilenameLen {
		out.AddWarning(core.FindingSuspiciousFilename,
			fmt.Sprintf("filename length %d exceeds %d characters", len(name), maxFilenameLen))
	}
	if strings.ContainsAny(name, "/\\") || strings.Contains(name, "..") {
		out.AddWarning(core.FindingSuspiciousFilename, "filename contains path separators")
	}
	for _, r := range name {
		if r < 0x20 || r == 0x7F {
			out.AddWarning(core.FindingSuspiciousFilename, "filename contains control characters")
			break
		}
	}
}

func mimeAllowed(allowed []string, mime string) bool {
	for _, a := range allowed {
		if strings.EqualFold(a, mime) {
			return true
		}
	}
	return false
}
