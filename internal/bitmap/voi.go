package bitmap

import (
	"log/slog"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// optionalStep is a correction that may not apply to a given dataset. A step
// that fails leaves the plane as it was.
type optionalStep func(p *plane) (*plane, error)

func applyOptional(name string, step optionalStep, p *plane) *plane {
	out, err := step(p)
	if err != nil {
		slog.Debug("skipping optional dicom step", "step", name, "error", err)
		return p
	}
	return out
}

type voiFunction string

const (
	voiLinear      voiFunction = "LINEAR"
	voiLinearExact voiFunction = "LINEAR_EXACT"
	voiSigmoid     voiFunction = "SIGMOID"
)

// window holds the VOI attributes of a dataset. Slope and intercept are the
// modality rescale applied before windowing.
type window struct {
	center    float64
	width     float64
	function  voiFunction
	slope     float64
	intercept float64
	bitsOut   int
	signed    bool
}

// voiStep returns a step applying the window to monochrome data.
func voiStep(w *window) optionalStep {
	return func(p *plane) (*plane, error) {
		if w == nil {
			return nil, errors.New("no VOI window in dataset")
		}
		if p.samples != 1 {
			return nil, errors.Errorf("VOI windowing needs monochrome data, got %d samples", p.samples)
		}
		return w.apply(p)
	}
}

func (w *window) outputRange() (float64, float64) {
	bits := w.bitsOut
	if bits <= 0 || bits > 32 {
		bits = 16
	}
	if w.signed {
		return -math.Exp2(float64(bits - 1)), math.Exp2(float64(bits-1)) - 1
	}
	return 0, math.Exp2(float64(bits)) - 1
}

func (w *window) apply(p *plane) (*plane, error) {
	yMin, yMax := w.outputRange()
	yRange := yMax - yMin
	c, width := w.center, w.width

	var f func(v float64) float64
	switch voiFunction(strings.ToUpper(strings.TrimSpace(string(w.function)))) {
	case "", voiLinear:
		if width < 1 {
			return nil, errors.Errorf("window width must be at least 1 for LINEAR, got %v", width)
		}
		c, width = c-0.5, width-1
		lower, upper := c-width/2, c+width/2
		f = func(v float64) float64 {
			switch {
			case v <= lower:
				return yMin
			case v > upper:
				return yMax
			default:
				return ((v-c)/width+0.5)*yRange + yMin
			}
		}
	case voiLinearExact:
		if width <= 0 {
			return nil, errors.Errorf("window width must be positive for LINEAR_EXACT, got %v", width)
		}
		lower, upper := c-width/2, c+width/2
		f = func(v float64) float64 {
			switch {
			case v <= lower:
				return yMin
			case v > upper:
				return yMax
			default:
				return (v-c)/width*yRange + (yMin+yMax)/2
			}
		}
	case voiSigmoid:
		if width <= 0 {
			return nil, errors.Errorf("window width must be positive for SIGMOID, got %v", width)
		}
		f = func(v float64) float64 {
			return yRange/(1+math.Exp(-4*(v-c)/width)) + yMin
		}
	default:
		return nil, errors.Errorf("unsupported VOI LUT function %q", w.function)
	}

	slope := w.slope
	if slope == 0 {
		slope = 1
	}

	out := &plane{
		width:    p.width,
		height:   p.height,
		samples:  p.samples,
		bits:     p.bits,
		signed:   p.signed,
		windowed: true,
		values:   make([]float64, len(p.values)),
	}
	for i, v := range p.values {
		out.values[i] = f(v*slope + w.intercept)
	}
	return out, nil
}
