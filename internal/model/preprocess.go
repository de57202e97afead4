package model

import (
	"image"
	"image/color"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
	"github.com/pkg/errors"
)

// ResizeMode selects how an image is fitted into the square model input.
type ResizeMode string

const (
	// ResizeCrop scales the shortest side to the input size and centre-crops,
	// the transform the classifier was trained with.
	ResizeCrop ResizeMode = "crop"
	// ResizeLetterbox fits the whole image and pads with black.
	ResizeLetterbox ResizeMode = "letterbox"
	// ResizeStretch ignores the aspect ratio.
	ResizeStretch ResizeMode = "stretch"
)

func ParseResizeMode(s string) (ResizeMode, error) {
	switch m := ResizeMode(s); m {
	case ResizeCrop, ResizeLetterbox, ResizeStretch:
		return m, nil
	}
	return "", errors.Errorf("unknown resize mode %q", s)
}

type Preprocessor struct {
	size int
	mode ResizeMode
}

func NewPreprocessor(size int, mode ResizeMode) *Preprocessor {
	return &Preprocessor{size: size, mode: mode}
}

func (p *Preprocessor) Size() int {
	return p.size
}

func (p *Preprocessor) resize(img image.Image) image.Image {
	switch p.mode {
	case ResizeStretch:
		return resize.Resize(uint(p.size), uint(p.size), img, resize.Lanczos3)
	case ResizeLetterbox:
		fitted := imaging.Fit(img, p.size, p.size, imaging.Linear)
		canvas := imaging.New(p.size, p.size, color.Black)
		return imaging.PasteCenter(canvas, fitted)
	default:
		return imaging.Fill(img, p.size, p.size, imaging.Center, imaging.Linear)
	}
}

// Tensor resizes img and lays it out as CHW float32 scaled to [0,1].
func (p *Preprocessor) Tensor(img image.Image) []float32 {
	resized := p.resize(img)

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height
	data := make([]float32, 3*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := color.NRGBAModel.Convert(resized.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)

			i := y*width + x
			data[i] = float32(c.R) / 255.0
			data[plane+i] = float32(c.G) / 255.0
			data[2*plane+i] = float32(c.B) / 255.0
		}
	}

	return data
}
