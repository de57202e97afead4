package model

import (
	"hash/fnv"
	"image"
	"log/slog"

	"github.com/Brownie44l1/fracture-api/internal/bitmap"
)

const (
	mockInference = "mock"
	mockProvider  = "Go Backend (Mock Mode)"

	mockMinConfidence = 0.60
	mockMaxConfidence = 0.95
)

// MockClassifier stands in when no model could be loaded. Its answer is
// derived from a hash of the pixels so the same image always gets the same
// placeholder result.
type MockClassifier struct {
	labels []string
}

func NewMockClassifier(labels []string) *MockClassifier {
	if len(labels) == 0 {
		labels = DefaultLabels
	}
	return &MockClassifier{labels: labels}
}

func (m *MockClassifier) Classify(img image.Image) (*Result, error) {
	sum := fingerprint(img)

	label := m.labels[sum%uint64(len(m.labels))]
	frac := float64((sum>>32)%10000) / 10000
	confidence := mockMinConfidence + frac*(mockMaxConfidence-mockMinConfidence)

	return &Result{Predictions: []Prediction{{Label: label, Probability: confidence}}}, nil
}

func fingerprint(img image.Image) uint64 {
	h := fnv.New64a()
	if b, ok := img.(*bitmap.Bitmap); ok {
		h.Write(b.Pix)
		return h.Sum64()
	}

	bounds := img.Bounds()
	buf := make([]byte, 0, 3*bounds.Dx())
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		buf = buf[:0]
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			buf = append(buf, byte(r>>8), byte(g>>8), byte(b>>8))
		}
		h.Write(buf)
	}
	return h.Sum64()
}

func (m *MockClassifier) Provider() string {
	return mockProvider
}

func (m *MockClassifier) Inference() string {
	return mockInference
}

func (m *MockClassifier) Loaded() bool {
	return false
}

func (m *MockClassifier) Close() {}

// Load builds the ONNX classifier, degrading to the mock classifier when the
// model is missing or cannot be loaded.
func Load(opts Options) Classifier {
	server, err := NewServer(opts)
	if err != nil {
		slog.Warn("model unavailable, serving mock predictions", "error", err)

		var labels []string
		if opts.MetadataPath != "" {
			if md, mdErr := LoadMetadata(opts.MetadataPath); mdErr == nil {
				labels = md.Classes
			}
		}
		return NewMockClassifier(labels)
	}
	return server
}
