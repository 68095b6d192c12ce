// Package std implements the codec capability in pure Go: stdlib JPEG, PNG,
// and GIF codecs, x/image decoders for WebP, BMP, and TIFF, and
// chai2010/webp for WebP encoding.
package std

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/chai2010/webp"
	xbmp "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	xtiff "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // register WebP decoding

	"github.com/Skryldev/image-intake/core"
	apperrors "github.com/Skryldev/image-intake/errors"
	"github.com/Skryldev/image-intake/utils"
)

// Codec is a pure-Go core.Codec.  Stateless; safe for concurrent use.
type Codec struct {
	// Resampler controls quality vs speed.  Defaults to draw.BiLinear.
	Resampler xdraw.Interpolator
}

// New returns a std codec with default settings.
func New() *Codec { return &Codec{} }

// CanTransform reports whether f has a pixel decoder in this backend.
// SVG is vector markup; there is nothing here to rasterise it with.
func (c *Codec) CanTransform(f core.Format) bool {
	switch f {
	case core.FormatJPEG, core.FormatPNG, core.FormatWebP,
		core.FormatGIF, core.FormatBMP, core.FormatTIFF:
		return true
	}
	return false
}

// DecodeMetadata reads header-only metadata without materialising pixels.
func (c *Codec) DecodeMetadata(ctx context.Context, data []byte) (core.Metadata, error) {
	if err := ctx.Err(); err != nil {
		return core.Metadata{}, apperrors.Wrap(apperrors.CategoryMetadata, "std.decode_config", err)
	}
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return core.Metadata{}, apperrors.Wrap(apperrors.CategoryMetadata, "std.decode_config", err)
	}

	format := formatFromName(name)
	if format == core.FormatUnknown {
		format = core.Format(utils.DetectFormat(data))
	}
	return core.Metadata{
		Width:      cfg.Width,
		Height:     cfg.Height,
		Format:     format,
		ColorSpace: colorSpaceOf(cfg.ColorModel),
		HasAlpha:   modelHasAlpha(cfg.ColorModel),
	}, nil
}

// Resize decodes, applies opts, and re-encodes in the source format.
func (c *Codec) Resize(ctx context.Context, data []byte, opts core.ResizeOptions, quality int) ([]byte, core.Metadata, error) {
	src, format, err := c.decode(ctx, data)
	if err != nil {
		return nil, core.Metadata{}, err
	}

	dst := c.applyFit(src, opts)
	out, err := encodeImage(dst, format, quality)
	if err != nil {
		return nil, core.Metadata{}, err
	}

	b := dst.Bounds()
	return out, core.Metadata{
		Width:      b.Dx(),
		Height:     b.Dy(),
		Format:     format,
		ColorSpace: core.ColorSpaceRGBA,
		HasAlpha:   format == core.FormatPNG || format == core.FormatWebP,
	}, nil
}

// Encode re-encodes data into the target format at the given quality.
func (c *Codec) Encode(ctx context.Context, data []byte, format core.Format, quality int) ([]byte, core.Metadata, error) {
	src, _, err := c.decode(ctx, data)
	if err != nil {
		return nil, core.Metadata{}, err
	}
	out, err := encodeImage(src, format, quality)
	if err != nil {
		return nil, core.Metadata{}, err
	}
	b := src.Bounds()
	return out, core.Metadata{
		Width:      b.Dx(),
		Height:     b.Dy(),
		Format:     format,
		ColorSpace: core.ColorSpaceRGBA,
		HasAlpha:   format == core.FormatPNG || format == core.FormatWebP,
	}, nil
}

// Thumbnail produces an exact width×height centre-cropped rendition.
func (c *Codec) Thumbnail(ctx context.Context, data []byte, width, height, quality int) ([]byte, core.Metadata, error) {
	src, _, err := c.decode(ctx, data)
	if err != nil {
		return nil, core.Metadata{}, err
	}

	dst := c.applyFit(src, core.ResizeOptions{
		Width:        width,
		Height:       height,
		Fit:          core.FitCover,
		Anchor:       core.AnchorCenter,
		AllowUpscale: true, // a thumbnail has exact dimensions even for tiny sources
	})
	out, err := encodeImage(dst, core.FormatJPEG, quality)
	if err != nil {
		return nil, core.Metadata{}, err
	}
	return out, core.Metadata{
		Width:      width,
		Height:     height,
		Format:     core.FormatJPEG,
		ColorSpace: core.ColorSpaceRGB,
	}, nil
}

// ── decode / geometry internals ───────────────────────────────────────────────

func (c *Codec) decode(ctx context.Context, data []byte) (image.Image, core.Format, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.FormatUnknown, apperrors.Wrap(apperrors.CategoryTransform, "std.decode", err)
	}
	if len(data) == 0 {
		return nil, core.FormatUnknown, apperrors.New(apperrors.CategoryTransform, "std.decode", apperrors.ErrEmptyInput)
	}
	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, core.FormatUnknown, apperrors.Wrap(apperrors.CategoryTransform, "std.decode", err)
	}
	return img, formatFromName(name), nil
}

// applyFit maps source pixels onto the geometry demanded by opts.  Upscale
// clamping applies to the aspect-preserving fits; cover and contain must fill
// their fixed canvas.
func (c *Codec) applyFit(src image.Image, opts core.ResizeOptions) image.Image {
	sb := src.Bounds()
	srcW, srcH := sb.Dx(), sb.Dy()

	tw, th := utils.ScaleDimensions(srcW, srcH, opts.Width, opts.Height)
	if tw <= 0 || th <= 0 {
		return src
	}

	switch opts.Fit {
	case core.FitFill:
		if tw == srcW && th == srcH {
			return src
		}
		return c.scaleTo(src, tw, th)

	case core.FitInside, "":
		ratio := minRatio(srcW, srcH, tw, th)
		if !opts.AllowUpscale && ratio > 1 {
			ratio = 1
		}
		return c.scaleRatio(src, ratio)

	case core.FitOutside:
		ratio := maxRatio(srcW, srcH, tw, th)
		if !opts.AllowUpscale && ratio > 1 {
			ratio = 1
		}
		return c.scaleRatio(src, ratio)

	case core.FitContain:
		scaled := c.scaleRatio(src, minRatio(srcW, srcH, tw, th))
		canvas := image.NewRGBA(image.Rect(0, 0, tw, th))
		bg := color.RGBA{R: opts.Background[0], G: opts.Background[1], B: opts.Background[2], A: opts.Background[3]}
		draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: bg}, image.Point{}, draw.Src)
		offset := anchorOffset(opts.Anchor, tw, th, scaled.Bounds().Dx(), scaled.Bounds().Dy())
		draw.Draw(canvas, scaled.Bounds().Add(offset), scaled, image.Point{}, draw.Over)
		return canvas

	case core.FitCover:
		scaled := c.scaleRatio(src, maxRatio(srcW, srcH, tw, th))
		canvas := image.NewRGBA(image.Rect(0, 0, tw, th))
		offset := anchorOffset(opts.Anchor, tw, th, scaled.Bounds().Dx(), scaled.Bounds().Dy())
		draw.Draw(canvas, canvas.Bounds(), scaled, image.Point{X: -offset.X, Y: -offset.Y}, draw.Src)
		return canvas
	}
	return src
}

func (c *Codec) scaleRatio(src image.Image, ratio float64) image.Image {
	if ratio == 1 {
		return src
	}
	sb := src.Bounds()
	w := int(float64(sb.Dx())*ratio + 0.5)
	h := int(float64(sb.Dy())*ratio + 0.5)
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return c.scaleTo(src, w, h)
}

func (c *Codec) scaleTo(src image.Image, w, h int) image.Image {
	sampler := c.Resampler
	if sampler == nil {
		sampler = xdraw.BiLinear
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	sampler.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Over, nil)
	return dst
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

// anchorOffset positions an inner w×h box inside an outer canvas.  For cover
// the inner box is larger than the canvas and the offset goes negative,
// selecting the retained region.
func anchorOffset(anchor core.Anchor, outerW, outerH, innerW, innerH int) image.Point {
	dx := (outerW - innerW) / 2
	dy := (outerH - innerH) / 2
	switch anchor {
	case core.AnchorTop:
		dy = 0
	case core.AnchorBottom:
		dy = outerH - innerH
	case core.AnchorLeft:
		dx = 0
	case core.AnchorRight:
		dx = outerW - innerW
	}
	return image.Point{X: dx, Y: dy}
}

// ── encoding ──────────────────────────────────────────────────────────────────

func encodeImage(img image.Image, format core.Format, quality int) ([]byte, error) {
	if quality <= 0 {
		quality = 85
	}
	var buf bytes.Buffer
	var err error
	switch format {
	case core.FormatJPEG:
		err = jpeg.Encode(&buf, flattenToOpaque(img), &jpeg.Options{Quality: quality})
	case core.FormatPNG:
		err = png.Encode(&buf, img)
	case core.FormatWebP:
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)})
	case core.FormatGIF:
		err = gif.Encode(&buf, img, nil)
	case core.FormatBMP:
		err = xbmp.Encode(&buf, img)
	case core.FormatTIFF:
		err = xtiff.Encode(&buf, img, nil)
	default:
		return nil, apperrors.New(apperrors.CategoryTransform, "std.encode",
			fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, format))
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CategoryTransform, "std.encode", err)
	}
	return buf.Bytes(), nil
}

// flattenToOpaque composites alpha onto white; JPEG has no alpha channel.
func flattenToOpaque(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}
	b := img.Bounds()
	dst := image.NewRGBA(b)
	draw.Draw(dst, b, &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, b, img, b.Min, draw.Over)
	return dst
}

// ── model helpers ─────────────────────────────────────────────────────────────

func formatFromName(name string) core.Format {
	switch name {
	case "jpeg":
		return core.FormatJPEG
	case "png":
		return core.FormatPNG
	case "webp":
		return core.FormatWebP
	case "gif":
		return core.FormatGIF
	case "bmp":
		return core.FormatBMP
	case "tiff":
		return core.FormatTIFF
	}
	return core.FormatUnknown
}

func colorSpaceOf(m color.Model) core.ColorSpace {
	switch m {
	case color.GrayModel, color.Gray16Model:
		return core.ColorSpaceGray
	case color.CMYKModel:
		return core.ColorSpaceCMYK
	case color.RGBAModel, color.NRGBAModel, color.RGBA64Model, color.NRGBA64Model:
		return core.ColorSpaceRGBA
	}
	return core.ColorSpaceRGB
}

func modelHasAlpha(m color.Model) bool {
	switch m {
	case color.RGBAModel, color.NRGBAModel, color.RGBA64Model, color.NRGBA64Model:
		return true
	}
	return false
}

// compile-time interface check
var _ core.Codec = (*Codec)(nil)
