package bitmap

import (
	"image"
	"image/color"
)

// Bitmap is a decoded RGB pixel grid. Pix holds width*height RGB triplets in
// row-major order.
type Bitmap struct {
	Width  int
	Height int
	Pix    []uint8
}

func New(width, height int) *Bitmap {
	return &Bitmap{
		Width:  width,
		Height: height,
		Pix:    make([]uint8, 3*width*height),
	}
}

// FromImage flattens any decoded image to 3 channels. Alpha is discarded
// rather than composited, palettes are expanded and grey is replicated.
func FromImage(img image.Image) *Bitmap {
	bounds := img.Bounds()
	b := New(bounds.Dx(), bounds.Dy())

	for y := 0; y < b.Height; y++ {
		for x := 0; x < b.Width; x++ {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			b.Set(x, y, c.R, c.G, c.B)
		}
	}

	return b
}

func (b *Bitmap) Set(x, y int, r, g, bl uint8) {
	i := 3 * (y*b.Width + x)
	b.Pix[i] = r
	b.Pix[i+1] = g
	b.Pix[i+2] = bl
}

func (b *Bitmap) RGB(x, y int) (uint8, uint8, uint8) {
	i := 3 * (y*b.Width + x)
	return b.Pix[i], b.Pix[i+1], b.Pix[i+2]
}

func (b *Bitmap) ColorModel() color.Model {
	return color.RGBAModel
}

func (b *Bitmap) Bounds() image.Rectangle {
	return image.Rect(0, 0, b.Width, b.Height)
}

func (b *Bitmap) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= b.Width || y >= b.Height {
		return color.RGBA{}
	}
	r, g, bl := b.RGB(x, y)
	return color.RGBA{R: r, G: g, B: bl, A: 0xff}
}
