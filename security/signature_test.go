package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/image-intake/core"
)

var (
	jpegHeader = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00, 0x01}
	pngHeader  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x00, 0x00, 0x00, 0x0D}
	gifHeader  = append([]byte("GIF89a"), 0x01, 0x00, 0x01, 0x00)
	bmpHeader  = []byte{0x42, 0x4D, 0x36, 0x00, 0x00, 0x00}
	tiffLE     = []byte{0x49, 0x49, 0x2A, 0x00, 0x08, 0x00, 0x00, 0x00}
	tiffBE     = []byte{0x4D, 0x4D, 0x00, 0x2A, 0x00, 0x00, 0x00, 0x08}
	webpHeader = []byte{'R', 'I', 'F', 'F', 0x24, 0x00, 0x00, 0x00, 'W', 'E', 'B', 'P', 'V', 'P', '8', ' '}
)

func TestValidate_MatchingSignatures(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		mime string
	}{
		{"jpeg jfif", jpegHeader, "image/jpeg"},
		{"jpeg alias mime", jpegHeader, "image/jpg"},
		{"png", pngHeader, "image/png"},
		{"gif89a", gifHeader, "image/gif"},
		{"gif87a", append([]byte("GIF87a"), 0, 0), "image/gif"},
		{"bmp", bmpHeader, "image/bmp"},
		{"tiff little endian", tiffLE, "image/tiff"},
		{"tiff big endian", tiffBE, "image/tiff"},
		{"webp riff container", webpHeader, "image/webp"},
	}

	v := NewValidator()
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := v.Validate(tc.data, tc.mime)
			assert.True(t, out.IsSecure(), "threats: %v", out.Threats)
			assert.NotEmpty(t, out.ObservedSignature)
		})
	}
}

func TestValidate_JPEGVariants(t *testing.T) {
	v := NewValidator()
	for _, fourth := range []byte{0xDB, 0xE0, 0xE1, 0xE2, 0xE3, 0xE8} {
		data := []byte{0xFF, 0xD8, 0xFF, fourth, 0x00, 0x10}
		out := v.Validate(data, "image/jpeg")
		assert.True(t, out.IsSecure(), "variant FFD8FF%02X should match", fourth)
	}
}

func TestValidate_SignatureMismatch(t *testing.T) {
	v := NewValidator()
	// PNG bytes declared as JPEG.
	out := v.Validate(pngHeader, "image/jpeg")

	require.False(t, out.IsSecure())
	require.Len(t, out.Threats, 1)
	assert.Equal(t, core.ThreatSignatureMismatch, out.Threats[0].Kind)
	assert.Equal(t, core.FormatPNG, out.DetectedFormat)
}

func TestValidate_WebPRequiresBothTags(t *testing.T) {
	v := NewValidator()

	// RIFF tag alone (a WAV file, say) must not pass as WebP.
	wav := []byte{'R', 'I', 'F', 'F', 0x24, 0x00, 0x00, 0x00, 'W', 'A', 'V', 'E'}
	out := v.Validate(wav, "image/webp")
	assert.False(t, out.IsSecure())

	// Truncated container shorter than 12 bytes.
	out = v.Validate([]byte("RIFF"), "image/webp")
	assert.False(t, out.IsSecure())
}

func TestValidate_UnsupportedMime(t *testing.T) {
	v := NewValidator()
	out := v.Validate(jpegHeader, "application/pdf")

	require.Len(t, out.Threats, 1)
	assert.Equal(t, core.ThreatUnsupportedFormat, out.Threats[0].Kind)
}

func TestValidate_EmbeddedContent(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		name    string
		payload string
	}{
		{"script tag", "<script>alert(1)</script>"},
		{"javascript uri", "javascript:void(0)"},
		{"xml prolog", "<?xml version=\"1.0\"?>"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			// Valid JPEG header with a payload buried mid-buffer.
			data := append(append([]byte{}, jpegHeader...), []byte("garbage"+tc.payload+"trailer")...)
			out := v.Validate(data, "image/jpeg")

			require.False(t, out.IsSecure())
			assert.True(t, out.SuspiciousContentFound)
			assert.Equal(t, core.ThreatEmbeddedContent, out.Threats[0].Kind)
		})
	}
}

func TestValidate_SVG(t *testing.T) {
	v := NewValidator()

	// Plain <svg> root: signature matches, no embedded-content marker.
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`)
	out := v.Validate(svg, "image/svg+xml")
	assert.Equal(t, core.FormatSVG, out.DetectedFormat)
	assert.True(t, out.IsSecure())

	// XML prolog: signature matches but the prolog itself is a scan marker,
	// so a prolog-led SVG always lands in review.
	prolog := []byte(`<?xml version="1.0"?><svg></svg>`)
	out = v.Validate(prolog, "image/svg+xml")
	require.False(t, out.IsSecure())
	assert.Equal(t, core.ThreatEmbeddedContent, out.Threats[0].Kind)
	assert.True(t, out.SuspiciousContentFound)
}

func TestValidate_CollectsAllThreats(t *testing.T) {
	v := NewValidator()
	// Wrong signature AND an embedded script: both must be reported.
	data := []byte("garbage<script>alert(1)</script>")
	out := v.Validate(data, "image/png")

	require.Len(t, out.Threats, 2)
	assert.Equal(t, core.ThreatSignatureMismatch, out.Threats[0].Kind)
	assert.Equal(t, core.ThreatEmbeddedContent, out.Threats[1].Kind)
}

func TestValidate_EmptyBuffer(t *testing.T) {
	v := NewValidator()
	out := v.Validate(nil, "image/png")

	assert.False(t, out.IsSecure())
	assert.Empty(t, out.ObservedSignature)
}

func TestObservedSignature_Truncation(t *testing.T) {
	assert.Equal(t, "ffd8", observedSignature([]byte{0xFF, 0xD8}))
	long := make([]byte, 64)
	assert.Len(t, observedSignature(long), signaturePrefixLen*2)
}
