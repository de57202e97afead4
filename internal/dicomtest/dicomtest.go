// Package dicomtest builds small single-frame DICOM files for tests.
package dicomtest

import (
	"bytes"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"
	"github.com/suyashkumar/dicom/pkg/uid"
)

// Window is an optional VOI window written into the file.
type Window struct {
	Center   string
	Width    string
	Function string
}

// Image describes a monochrome frame and the study attributes stored with it.
type Image struct {
	Rows, Cols    int
	BitsAllocated int
	BitsStored    int
	Signed        bool
	Pixels        []int
	Window        *Window

	PatientID string
	Modality  string
	StudyDate string
}

// Encode writes img as an explicit VR little endian file with a full
// preamble and file meta group.
func Encode(t testing.TB, img Image) []byte {
	t.Helper()
	require.Len(t, img.Pixels, img.Rows*img.Cols, "pixel count must match rows*cols")

	stored := img.BitsStored
	if stored == 0 {
		stored = img.BitsAllocated
	}
	rep := 0
	if img.Signed {
		rep = 1
	}

	data := make([][]int, len(img.Pixels))
	for i, v := range img.Pixels {
		data[i] = []int{v}
	}

	elems := map[tag.Tag]interface{}{
		tag.MediaStorageSOPClassUID:    []string{"1.2.840.10008.5.1.4.1.1.1.1"},
		tag.MediaStorageSOPInstanceUID: []string{"1.2.826.0.1.3680043.2.1125.1"},
		tag.TransferSyntaxUID:          []string{uid.ExplicitVRLittleEndian},
		tag.SamplesPerPixel:            []int{1},
		tag.PhotometricInterpretation:  []string{"MONOCHROME2"},
		tag.Rows:                       []int{img.Rows},
		tag.Columns:                    []int{img.Cols},
		tag.BitsAllocated:              []int{img.BitsAllocated},
		tag.BitsStored:                 []int{stored},
		tag.HighBit:                    []int{stored - 1},
		tag.PixelRepresentation:        []int{rep},
		tag.PixelData: dicom.PixelDataInfo{
			Frames: []*frame.Frame{{
				NativeData: frame.NativeFrame{
					Data:          data,
					Rows:          img.Rows,
					Cols:          img.Cols,
					BitsPerSample: img.BitsAllocated,
				},
			}},
		},
	}
	for tg, v := range map[tag.Tag]string{
		tag.PatientID: img.PatientID,
		tag.Modality:  img.Modality,
		tag.StudyDate: img.StudyDate,
	} {
		if v != "" {
			elems[tg] = []string{v}
		}
	}
	if w := img.Window; w != nil {
		elems[tag.WindowCenter] = []string{w.Center}
		elems[tag.WindowWidth] = []string{w.Width}
		if w.Function != "" {
			elems[tag.VOILUTFunction] = []string{w.Function}
		}
	}

	ds := dicom.Dataset{}
	for tg, v := range elems {
		el, err := dicom.NewElement(tg, v)
		require.NoError(t, err)
		ds.Elements = append(ds.Elements, el)
	}
	sort.Slice(ds.Elements, func(i, j int) bool {
		a, b := ds.Elements[i].Tag, ds.Elements[j].Tag
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		return a.Element < b.Element
	})

	var buf bytes.Buffer
	require.NoError(t, dicom.Write(&buf, ds))
	return buf.Bytes()
}
