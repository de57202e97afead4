package bitmap_test

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/Brownie44l1/fracture-api/internal/bitmap"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestIsDICOM(t *testing.T) {
	assert.True(t, bitmap.IsDICOM("scan.dcm"))
	assert.True(t, bitmap.IsDICOM("SCAN.DCM"))
	assert.True(t, bitmap.IsDICOM("wrist.Dicom"))
	assert.False(t, bitmap.IsDICOM("wrist.png"))
	assert.False(t, bitmap.IsDICOM("dcm"))
	assert.False(t, bitmap.IsDICOM(""))
}

func TestNormalizeDropsAlpha(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 1))
	img.SetNRGBA(0, 0, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	img.SetNRGBA(1, 0, color.NRGBA{R: 10, G: 20, B: 30, A: 128})

	decoded, err := bitmap.NewNormalizer(true).Normalize(encodePNG(t, img), "xray.png")
	require.NoError(t, err)

	assert.Equal(t, "png", decoded.Format)
	assert.Nil(t, decoded.DICOM)
	assert.Equal(t, []uint8{200, 100, 50, 10, 20, 30}, decoded.Bitmap.Pix)
}

func TestNormalizeExpandsPalette(t *testing.T) {
	palette := color.Palette{color.Black, color.RGBA{R: 255, A: 255}}
	img := image.NewPaletted(image.Rect(0, 0, 2, 1), palette)
	img.SetColorIndex(1, 0, 1)

	decoded, err := bitmap.NewNormalizer(false).Normalize(encodePNG(t, img), "xray.png")
	require.NoError(t, err)

	assert.Equal(t, []uint8{0, 0, 0, 255, 0, 0}, decoded.Bitmap.Pix)
}

func TestNormalizeReplicatesGrey(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 1, 1))
	img.SetGray16(0, 0, color.Gray16{Y: 0xFFFF})

	decoded, err := bitmap.NewNormalizer(false).Normalize(encodePNG(t, img), "xray.png")
	require.NoError(t, err)

	assert.Equal(t, []uint8{255, 255, 255}, decoded.Bitmap.Pix)
}

func TestNormalizeRejectsUnknownFormat(t *testing.T) {
	_, err := bitmap.NewNormalizer(true).Normalize([]byte("definitely not an image"), "xray.jpg")
	require.Error(t, err)

	var decodeErr *bitmap.DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, image.ErrFormat.Error(), err.Error())
}

func TestNormalizeRejectsEmptyPayload(t *testing.T) {
	_, err := bitmap.NewNormalizer(true).Normalize(nil, "xray.jpg")

	var decodeErr *bitmap.DecodeError
	assert.True(t, errors.As(err, &decodeErr))
}

func TestNormalizeDICOMDisabled(t *testing.T) {
	n := bitmap.NewNormalizer(false)
	assert.False(t, n.DICOMEnabled())

	_, err := n.Normalize([]byte("anything"), "scan.DCM")
	assert.ErrorIs(t, err, bitmap.ErrDICOMUnavailable)
	assert.Equal(t, "DICOM support not enabled", err.Error())
}

func TestNormalizeRoutesDICOMByExtension(t *testing.T) {
	_, err := bitmap.NewNormalizer(true).Normalize([]byte("nope"), "scan.dicom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid DICOM file: ")
}
