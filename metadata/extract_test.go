package metadata

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skryldev/image-intake/adapters/codec/std"
	"github.com/Skryldev/image-intake/core"
	apperrors "github.com/Skryldev/image-intake/errors"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 10, G: 120, B: 30, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestExtract(t *testing.T) {
	e := NewExtractor(std.New())

	meta, err := e.Extract(context.Background(), encodePNG(t, 640, 480))
	require.NoError(t, err)

	assert.Equal(t, 640, meta.Width)
	assert.Equal(t, 480, meta.Height)
	assert.Equal(t, core.FormatPNG, meta.Format)
}

func TestExtract_EmptyInput(t *testing.T) {
	e := NewExtractor(std.New())

	_, err := e.Extract(context.Background(), nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrEmptyInput)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryMetadata))
}

func TestExtract_Undecodable(t *testing.T) {
	e := NewExtractor(std.New())

	_, err := e.Extract(context.Background(), []byte("not an image"))
	require.Error(t, err)
	assert.True(t, apperrors.IsCategory(err, apperrors.CategoryMetadata))
}
