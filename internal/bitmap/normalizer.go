package bitmap

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/pkg/errors"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

var dicomExtensions = []string{".dcm", ".dicom"}

// Decoded is the normalized form of an upload. DICOM is nil unless the
// payload came through the DICOM decoder.
type Decoded struct {
	Bitmap *Bitmap
	Format string
	DICOM  *DICOMInfo
}

type Normalizer struct {
	dicomEnabled bool
}

// NewNormalizer builds a Normalizer. dicomEnabled is fixed for the lifetime of
// the process.
func NewNormalizer(dicomEnabled bool) *Normalizer {
	return &Normalizer{dicomEnabled: dicomEnabled}
}

func (n *Normalizer) DICOMEnabled() bool {
	return n.dicomEnabled
}

// IsDICOM reports whether filename carries a DICOM extension.
func IsDICOM(filename string) bool {
	lower := strings.ToLower(filename)
	for _, ext := range dicomExtensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}

// Normalize converts an uploaded payload into an RGB Bitmap, dispatching on
// the filename extension.
func (n *Normalizer) Normalize(data []byte, filename string) (*Decoded, error) {
	if IsDICOM(filename) {
		if !n.dicomEnabled {
			return nil, ErrDICOMUnavailable
		}
		bmp, info, err := DecodeDICOM(data)
		if err != nil {
			return nil, err
		}
		return &Decoded{Bitmap: bmp, Format: "dicom", DICOM: info}, nil
	}

	if len(data) == 0 {
		return nil, decodeError(errors.New("empty image payload"))
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, decodeError(err)
	}

	return &Decoded{Bitmap: FromImage(img), Format: format}, nil
}
