package bitmap

import (
	"math"
)

// plane is an interleaved sample grid taken from a DICOM frame, kept as
// float64 so windowing can produce fractional values.
type plane struct {
	width    int
	height   int
	samples  int
	bits     int
	signed   bool
	windowed bool
	values   []float64
}

// eightBit reports whether the samples can be used as display bytes without
// rescaling. Signed 8-bit data is rescaled like any other depth.
func (p *plane) eightBit() bool {
	return p.bits > 0 && p.bits <= 8 && !p.signed && !p.windowed
}

// to8Bit maps the plane onto [0,255]. Planes that are already 8-bit are copied
// through unchanged. Otherwise non-finite samples become 0 and the observed
// [min,max] range is stretched linearly; a flat plane yields all zeros.
func to8Bit(p *plane) []uint8 {
	out := make([]uint8, len(p.values))
	if len(p.values) == 0 {
		return out
	}

	if p.eightBit() {
		for i, v := range p.values {
			out[i] = clampByte(v)
		}
		return out
	}

	values := make([]float64, len(p.values))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i, v := range p.values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			v = 0
		}
		values[i] = v
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	if hi <= lo {
		return out
	}

	span := hi - lo
	for i, v := range values {
		out[i] = clampByte((v - lo) / span * 255)
	}
	return out
}

// clampByte truncates toward zero after clamping, matching an unsigned 8-bit
// cast of an in-range float.
func clampByte(v float64) uint8 {
	switch {
	case math.IsNaN(v), v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}

// toBitmap converts 8-bit samples to RGB. Single-sample planes are treated as
// grey; planes with three or more samples use the first three.
func (p *plane) toBitmap(pix []uint8) *Bitmap {
	b := New(p.width, p.height)
	n := p.width * p.height
	for i := 0; i < n; i++ {
		base := i * p.samples
		if p.samples >= 3 {
			copy(b.Pix[3*i:3*i+3], pix[base:base+3])
			continue
		}
		v := pix[base]
		b.Pix[3*i], b.Pix[3*i+1], b.Pix[3*i+2] = v, v, v
	}
	return b
}
