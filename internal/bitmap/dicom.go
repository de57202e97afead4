package bitmap

import (
	"bytes"
	"encoding/binary"
	"image"
	"log/slog"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

const notAvailable = "N/A"

// DICOMInfo is the subset of study attributes echoed back to callers.
type DICOMInfo struct {
	PatientID string
	Modality  string
	StudyDate string
}

// Fields returns the attributes keyed by their display names.
func (i *DICOMInfo) Fields() map[string]string {
	return map[string]string{
		"Patient ID": i.PatientID,
		"Modality":   i.Modality,
		"Study Date": i.StudyDate,
	}
}

// DecodeDICOM parses a DICOM payload and renders its first frame as an RGB
// Bitmap. Every failure is reported as an "Invalid DICOM file" DecodeError.
func DecodeDICOM(data []byte) (*Bitmap, *DICOMInfo, error) {
	ds, err := parseDataset(data)
	if err != nil {
		return nil, nil, invalidDICOM(err)
	}

	p, err := extractPlane(ds)
	if err != nil {
		return nil, nil, invalidDICOM(err)
	}

	if p.samples == 1 {
		p = applyOptional("voi_lut", voiStep(readWindow(ds, p)), p)
	}

	return p.toBitmap(to8Bit(p)), readInfo(ds), nil
}

const preambleLen = 128

var dicomMagic = []byte("DICM")

// parseDataset reads a full dataset. A stream that fails to parse is retried
// with its missing preamble (and magic) restored, then as a bare dataset; the
// first error is kept if no retry yields pixel data.
func parseDataset(data []byte) (dicom.Dataset, error) {
	ds, err := safeParse(data)
	if err == nil {
		return ds, nil
	}

	if repaired, ok := restoreHeader(data); ok {
		if ds, repairErr := safeParse(repaired); repairErr == nil {
			slog.Debug("parsed dicom with restored preamble", "error", err)
			return ds, nil
		}
	}

	raw, rawErr := safeParse(data, dicom.SkipMetadataReadOnNewParserInit())
	if rawErr == nil {
		if _, lookupErr := raw.FindElementByTag(tag.PixelData); lookupErr == nil {
			slog.Debug("parsed dicom without file meta header", "error", err)
			return raw, nil
		}
	}

	return dicom.Dataset{}, err
}

// restoreHeader rebuilds the 128-byte preamble for streams that start at the
// DICM magic, or the preamble and magic for streams that start at the group
// 0002 file meta elements.
func restoreHeader(data []byte) ([]byte, bool) {
	var prefix []byte
	switch {
	case bytes.HasPrefix(data, dicomMagic):
		prefix = make([]byte, preambleLen)
	case len(data) >= 4 && binary.LittleEndian.Uint16(data) == tag.MetadataGroup:
		prefix = append(make([]byte, preambleLen), dicomMagic...)
	default:
		return nil, false
	}
	return append(prefix, data...), true
}

func safeParse(data []byte, opts ...dicom.ParseOption) (ds dicom.Dataset, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("dicom parser panic: %v", r)
		}
	}()
	return dicom.Parse(bytes.NewReader(data), int64(len(data)), nil, opts...)
}

func extractPlane(ds dicom.Dataset) (*plane, error) {
	el, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, errors.Wrap(err, "pixel data not found")
	}

	info, ok := el.Value.GetValue().(dicom.PixelDataInfo)
	if !ok {
		return nil, errors.New("pixel data element has unexpected value type")
	}
	if len(info.Frames) == 0 {
		return nil, errors.New("pixel data contains no frames")
	}

	fr := info.Frames[0]
	if fr.Encapsulated {
		img, _, err := image.Decode(bytes.NewReader(fr.EncapsulatedData.Data))
		if err != nil {
			return nil, errors.Wrap(err, "decoding encapsulated frame")
		}
		return planeFromImage(img), nil
	}

	nf := fr.NativeData
	if nf.Rows <= 0 || nf.Cols <= 0 || len(nf.Data) < nf.Rows*nf.Cols {
		return nil, errors.Errorf("pixel data has %d samples for a %dx%d frame", len(nf.Data), nf.Cols, nf.Rows)
	}

	samples := len(nf.Data[0])
	if samples == 0 {
		return nil, errors.New("pixel data has no samples per pixel")
	}

	bits := nf.BitsPerSample
	if allocated, ok := firstInt(ds, tag.BitsAllocated); ok {
		bits = allocated
	}
	signed := false
	if rep, ok := firstInt(ds, tag.PixelRepresentation); ok && rep == 1 {
		signed = true
	}

	n := nf.Rows * nf.Cols
	p := &plane{
		width:   nf.Cols,
		height:  nf.Rows,
		samples: samples,
		bits:    bits,
		signed:  signed,
		values:  make([]float64, n*samples),
	}
	for i := 0; i < n; i++ {
		px := nf.Data[i]
		for s := 0; s < samples && s < len(px); s++ {
			p.values[i*samples+s] = float64(signExtend(px[s], bits, signed))
		}
	}
	return p, nil
}

// signExtend reinterprets an unsigned sample of the given width as two's
// complement. Values that are already negative are left alone.
func signExtend(v, bits int, signed bool) int {
	if !signed || bits <= 0 || bits >= 63 {
		return v
	}
	if v >= 1<<(bits-1) {
		return v - 1<<bits
	}
	return v
}

func planeFromImage(img image.Image) *plane {
	b := FromImage(img)
	p := &plane{
		width:   b.Width,
		height:  b.Height,
		samples: 3,
		bits:    8,
		values:  make([]float64, len(b.Pix)),
	}
	for i, v := range b.Pix {
		p.values[i] = float64(v)
	}
	return p
}

func readWindow(ds dicom.Dataset, p *plane) *window {
	center, ok := firstFloat(ds, tag.WindowCenter)
	if !ok {
		return nil
	}
	width, ok := firstFloat(ds, tag.WindowWidth)
	if !ok {
		return nil
	}

	w := &window{center: center, width: width, slope: 1, bitsOut: p.bits}
	if fn, ok := stringValue(ds, tag.VOILUTFunction); ok {
		w.function = voiFunction(fn)
	}
	if slope, ok := firstFloat(ds, tag.RescaleSlope); ok {
		w.slope = slope
	}
	if intercept, ok := firstFloat(ds, tag.RescaleIntercept); ok {
		w.intercept = intercept
	}
	if stored, ok := firstInt(ds, tag.BitsStored); ok {
		w.bitsOut = stored
	}
	if rep, ok := firstInt(ds, tag.PixelRepresentation); ok && rep == 1 {
		w.signed = true
	}
	return w
}

func readInfo(ds dicom.Dataset) *DICOMInfo {
	return &DICOMInfo{
		PatientID: stringOr(ds, tag.PatientID, notAvailable),
		Modality:  stringOr(ds, tag.Modality, notAvailable),
		StudyDate: stringOr(ds, tag.StudyDate, notAvailable),
	}
}

func stringValue(ds dicom.Dataset, t tag.Tag) (string, bool) {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return "", false
	}
	vals, ok := el.Value.GetValue().([]string)
	if !ok {
		return "", false
	}
	trimmed := make([]string, len(vals))
	for i, v := range vals {
		trimmed[i] = strings.TrimRight(v, " \x00")
	}
	return strings.Join(trimmed, `\`), true
}

func stringOr(ds dicom.Dataset, t tag.Tag, fallback string) string {
	if s, ok := stringValue(ds, t); ok {
		return s
	}
	return fallback
}

func firstFloat(ds dicom.Dataset, t tag.Tag) (float64, bool) {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return 0, false
	}
	switch vals := el.Value.GetValue().(type) {
	case []string:
		if len(vals) == 0 {
			return 0, false
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimRight(vals[0], "\x00")), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case []float64:
		if len(vals) == 0 {
			return 0, false
		}
		return vals[0], true
	case []int:
		if len(vals) == 0 {
			return 0, false
		}
		return float64(vals[0]), true
	}
	return 0, false
}

func firstInt(ds dicom.Dataset, t tag.Tag) (int, bool) {
	el, err := ds.FindElementByTag(t)
	if err != nil {
		return 0, false
	}
	vals, ok := el.Value.GetValue().([]int)
	if !ok || len(vals) == 0 {
		return 0, false
	}
	return vals[0], true
}
