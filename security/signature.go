// Package security implements magic-byte signature validation for untrusted
// image buffers: declared-MIME verification against the per-format signature
// table and a whole-buffer scan for embedded markup payloads.
package security

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/Skryldev/image-intake/core"
	"github.com/Skryldev/image-intake/utils"
)

// signatures maps every supported format to its accepted leading-byte
// variants.  WebP is absent: its RIFF container needs a two-part check and a
// plain prefix match must not be used for it.
var signatures = map[core.Format][][]byte{
	core.FormatJPEG: {
		{0xFF, 0xD8, 0xFF, 0xDB},
		{0xFF, 0xD8, 0xFF, 0xE0},
		{0xFF, 0xD8, 0xFF, 0xE1},
		{0xFF, 0xD8, 0xFF, 0xE2},
		{0xFF, 0xD8, 0xFF, 0xE3},
		{0xFF, 0xD8, 0xFF, 0xE8},
	},
	core.FormatPNG: {
		{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A},
	},
	core.FormatGIF: {
		[]byte("GIF87a"),
		[]byte("GIF89a"),
	},
	core.FormatBMP: {
		{0x42, 0x4D},
	},
	core.FormatTIFF: {
		{0x49, 0x49, 0x2A, 0x00},
		{0x4D, 0x4D, 0x00, 0x2A},
	},
	core.FormatSVG: {
		[]byte("<?xml"),
		[]byte("<svg"),
	},
}

var (
	riffTag = []byte("RIFF")
	webpTag = []byte("WEBP")
)

// suspiciousPatterns are byte sequences indicating embedded markup or script
// content; a match anywhere in the buffer marks a polyglot file.
var suspiciousPatterns = [][]byte{
	[]byte("<?xml"),
	[]byte("<script"),
	[]byte("javascript:"),
}

// signaturePrefixLen bounds the hex prefix recorded in the outcome.
const signaturePrefixLen = 12

// Validator checks raw buffers against the signature table.  It is stateless
// and safe for concurrent use.
type Validator struct{}

// NewValidator returns a signature validator.
func NewValidator() *Validator { return &Validator{} }

// Validate inspects data against the signature set of the declared MIME type
// and scans for embedded payloads.  It is a pure function of its inputs: a
// malformed buffer produces threats, never an error.
func (v *Validator) Validate(data []byte, declaredMime string) core.SecurityOutcome {
	out := core.SecurityOutcome{
		ObservedSignature: observedSignature(data),
		DetectedFormat:    core.Format(utils.DetectFormat(data)),
	}

	format := core.FormatFromMIME(declaredMime)
	if format == core.FormatUnknown {
		out.Threats = append(out.Threats, core.Threat{
			Kind:   core.ThreatUnsupportedFormat,
			Detail: fmt.Sprintf("unsupported format: %s", declaredMime),
		})
		// Nothing else is meaningful without a known signature set.
		return out
	}

	if !matchesSignature(data, format) {
		out.Threats = append(out.Threats, core.Threat{
			Kind: core.ThreatSignatureMismatch,
			Detail: fmt.Sprintf("signature does not match declared type %s (observed %s)",
				declaredMime, out.ObservedSignature),
		})
		// No early return: remaining checks still run so all threats collect.
	}

	if pattern := scanEmbeddedContent(data); pattern != "" {
		out.SuspiciousContentFound = true
		out.Threats = append(out.Threats, core.Threat{
			Kind:   core.ThreatEmbeddedContent,
			Detail: fmt.Sprintf("embedded content marker %q found in buffer", pattern),
		})
	}

	return out
}

// matchesSignature reports whether data opens with any accepted variant for
// format.  The switch is exhaustive over the closed format set.
func matchesSignature(data []byte, format core.Format) bool {
	switch format {
	case core.FormatWebP:
		// Container check: RIFF tag at [0,4) AND sub-format tag at [8,12).
		return len(data) >= 12 &&
			bytes.Equal(data[0:4], riffTag) &&
			bytes.Equal(data[8:12], webpTag)
	case core.FormatJPEG, core.FormatPNG, core.FormatGIF,
		core.FormatBMP, core.FormatTIFF, core.FormatSVG:
		for _, sig := range signatures[format] {
			if bytes.HasPrefix(data, sig) {
				return true
			}
		}
		return false
	case core.FormatUnknown:
		return false
	}
	return false
}

// scanEmbeddedContent scans the entire buffer, not just the header, so
// polyglot files (valid image plus trailing script) are caught.
func scanEmbeddedContent(data []byte) string {
	for _, pattern := range suspiciousPatterns {
		if bytes.Contains(data, pattern) {
			return string(pattern)
		}
	}
	return ""
}

func observedSignature(data []byte) string {
	n := signaturePrefixLen
	if len(data) < n {
		n = len(data)
	}
	return hex.EncodeToString(data[:n])
}
