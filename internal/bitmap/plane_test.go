package bitmap

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTo8BitLeavesEightBitPlanesUntouched(t *testing.T) {
	p := &plane{width: 2, height: 2, samples: 1, bits: 8, values: []float64{0, 17, 200, 255}}

	out := to8Bit(p)

	assert.Equal(t, []uint8{0, 17, 200, 255}, out)
	assert.Equal(t, out, to8Bit(&plane{width: 2, height: 2, samples: 1, bits: 8, values: []float64{0, 17, 200, 255}}))
}

func TestTo8BitRescalesWideRange(t *testing.T) {
	p := &plane{width: 3, height: 1, samples: 1, bits: 16, values: []float64{1000, 2000, 3000}}

	out := to8Bit(p)

	assert.Equal(t, []uint8{0, 127, 255}, out)
}

func TestTo8BitFlatImageIsZero(t *testing.T) {
	p := &plane{width: 2, height: 2, samples: 1, bits: 16, values: []float64{4095, 4095, 4095, 4095}}

	assert.Equal(t, []uint8{0, 0, 0, 0}, to8Bit(p))
}

func TestTo8BitReplacesNonFiniteValues(t *testing.T) {
	p := &plane{
		width:    5,
		height:   1,
		samples:  1,
		bits:     16,
		windowed: true,
		values:   []float64{math.NaN(), math.Inf(1), math.Inf(-1), 100, 50},
	}

	out := to8Bit(p)

	// non-finite samples count as 0 and sit at the bottom of the range
	assert.Equal(t, []uint8{0, 0, 0, 255, 127}, out)
}

func TestTo8BitWindowedPlaneIsRescaledEvenAtEightBits(t *testing.T) {
	p := &plane{width: 2, height: 1, samples: 1, bits: 8, windowed: true, values: []float64{10, 20}}

	assert.Equal(t, []uint8{0, 255}, to8Bit(p))
}

func TestTo8BitRescalesSignedEightBitPlanes(t *testing.T) {
	p := &plane{width: 3, height: 1, samples: 1, bits: 8, signed: true, values: []float64{-128, 0, 127}}

	assert.Equal(t, []uint8{0, 128, 255}, to8Bit(p))
}

func TestPlaneToBitmapReplicatesGrey(t *testing.T) {
	p := &plane{width: 2, height: 1, samples: 1, bits: 8, values: []float64{10, 250}}

	b := p.toBitmap(to8Bit(p))

	require.Equal(t, 2, b.Width)
	require.Equal(t, 1, b.Height)
	assert.Equal(t, []uint8{10, 10, 10, 250, 250, 250}, b.Pix)
}

func TestPlaneToBitmapKeepsColour(t *testing.T) {
	p := &plane{width: 1, height: 1, samples: 3, bits: 8, values: []float64{1, 2, 3}}

	b := p.toBitmap(to8Bit(p))

	assert.Equal(t, []uint8{1, 2, 3}, b.Pix)
}

func TestSignExtend(t *testing.T) {
	assert.Equal(t, -1, signExtend(0xFFFF, 16, true))
	assert.Equal(t, 100, signExtend(100, 16, true))
	assert.Equal(t, -5, signExtend(-5, 16, true))
	assert.Equal(t, 0xFFFF, signExtend(0xFFFF, 16, false))
}
