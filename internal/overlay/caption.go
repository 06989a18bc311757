package overlay

import (
	"image"
	"image/color"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Caption is a one-line banner stamped along the bottom of a screenshot
type Caption struct {
	Text       string
	TextColor  color.RGBA
	Background color.RGBA
	Padding    int
	Opacity    float64
}

// NewCaption returns a white-on-dark caption
func NewCaption(text string) *Caption {
	return &Caption{
		Text:       text,
		TextColor:  color.RGBA{255, 255, 255, 255},
		Background: color.RGBA{0, 0, 0, 255},
		Padding:    6,
		Opacity:    0.7,
	}
}

// Height is the banner height in pixels
func (c *Caption) Height() int {
	face := basicfont.Face7x13
	return face.Height + c.Padding*2
}

// Render draws the caption onto img. Text wider than the image is clipped.
func (c *Caption) Render(img *image.RGBA) error {
	if c.Text == "" {
		return nil
	}

	face := basicfont.Face7x13
	bounds := img.Bounds()
	height := c.Height()
	top := bounds.Max.Y - height

	DrawRectangle(img, bounds.Min.X, top, bounds.Dx(), height, c.Background, c.Opacity)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c.TextColor),
		Face: face,
		Dot:  fixed.P(bounds.Min.X+c.Padding, top+c.Padding+face.Ascent),
	}
	d.DrawString(c.Text)

	return nil
}
