package overlay

import (
	"image"
	"image/color"
	"image/draw"
)

// BlendImage blends a source image onto a destination image at the given position
// with the specified opacity
func BlendImage(dst *image.RGBA, src image.Image, x, y int, opacity float64) {
	srcBounds := src.Bounds()
	dstBounds := dst.Bounds()

	for sy := srcBounds.Min.Y; sy < srcBounds.Max.Y; sy++ {
		dy := y + (sy - srcBounds.Min.Y)
		if dy < dstBounds.Min.Y || dy >= dstBounds.Max.Y {
			continue
		}

		for sx := srcBounds.Min.X; sx < srcBounds.Max.X; sx++ {
			dx := x + (sx - srcBounds.Min.X)
			if dx < dstBounds.Min.X || dx >= dstBounds.Max.X {
				continue
			}

			sr, sg, sb, sa := src.At(sx, sy).RGBA()
			alpha := float64(sa) * opacity / 65535.0
			if alpha <= 0 {
				continue
			}

			// Screenshots are opaque, so the destination alpha is always 1
			d := dst.RGBAAt(dx, dy)
			dst.SetRGBA(dx, dy, color.RGBA{
				R: mix(sr, sa, d.R, alpha),
				G: mix(sg, sa, d.G, alpha),
				B: mix(sb, sa, d.B, alpha),
				A: 255,
			})
		}
	}
}

// mix blends one premultiplied 16-bit source channel over an 8-bit destination channel
func mix(src, srcAlpha uint32, dst uint8, alpha float64) uint8 {
	straight := 0.0
	if srcAlpha > 0 {
		straight = float64(src) / float64(srcAlpha) * 255
	}
	return uint8(straight*alpha + float64(dst)*(1-alpha) + 0.5)
}

// DrawRectangle draws a filled rectangle with the specified color and opacity
func DrawRectangle(dst *image.RGBA, x, y, width, height int, c color.Color, opacity float64) {
	rect := image.Rect(0, 0, width, height)

	tmp := image.NewRGBA(rect)
	draw.Draw(tmp, rect, image.NewUniform(c), image.Point{}, draw.Src)

	BlendImage(dst, tmp, x, y, opacity)
}
