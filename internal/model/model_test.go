package model

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/Brownie44l1/fracture-api/internal/bitmap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"
)

func TestRankOrdersAndTruncates(t *testing.T) {
	preds := rank([]float32{0.1, 0.5, 0.05, 0.3, 0.05}, []string{"a", "b", "c", "d", "e"}, 3)

	require.Len(t, preds, 3)
	assert.Equal(t, "b", preds[0].Label)
	assert.Equal(t, "d", preds[1].Label)
	assert.Equal(t, "a", preds[2].Label)
	assert.InDelta(t, 0.5, preds[0].Probability, 1e-6)
}

func TestRankIgnoresScoresWithoutLabels(t *testing.T) {
	preds := rank([]float32{0.1, 0.2, 0.9}, []string{"a", "b"}, 5)

	require.Len(t, preds, 2)
	assert.Equal(t, "b", preds[0].Label)
}

func TestSoftmax(t *testing.T) {
	logits := []float32{1, 1, 1, 1}
	softmax(logits)
	for _, v := range logits {
		assert.InDelta(t, 0.25, v, 1e-6)
	}

	logits = []float32{1000, 0}
	softmax(logits)
	assert.InDelta(t, 1, logits[0], 1e-6)
	assert.InDelta(t, 0, logits[1], 1e-6)
}

func TestParseNames(t *testing.T) {
	names, err := ParseNames("{0: 'Avulsion fracture', 1: 'Comminuted fracture', 2: Test}")
	require.NoError(t, err)
	assert.Equal(t, []string{"Avulsion fracture", "Comminuted fracture", "Test"}, names)

	_, err = ParseNames("{0: a, 2: b}")
	assert.Error(t, err)
}

func TestLoadMetadata(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "model_metadata.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"classes":["x","y"],"image_size":320,"input_name":"images"}`), 0644))

	md, err := LoadMetadata(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, Metadata{InputName: "images", Classes: []string{"x", "y"}, ImageSize: 320}, md)

	yamlPath := filepath.Join(dir, "data.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("image_size: 224\nnames:\n  0: normal\n  1: fracture\n"), 0644))

	md, err = LoadMetadata(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"normal", "fracture"}, md.Classes)
	assert.Equal(t, 224, md.ImageSize)

	_, err = LoadMetadata(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestPickImageSize(t *testing.T) {
	static := ort.NewShape(1, 3, 640, 640)
	dynamic := ort.NewShape(-1, 3, -1, -1)

	assert.Equal(t, 416, pickImageSize(416, 320, static))
	assert.Equal(t, 320, pickImageSize(0, 320, static))
	assert.Equal(t, 640, pickImageSize(0, 0, static))
	assert.Equal(t, 0, pickImageSize(0, 0, dynamic))
	assert.Equal(t, 0, pickImageSize(0, 0, ort.NewShape(1, 3, 224, 320)))

	dir := t.TempDir()
	path := filepath.Join(dir, "model_metadata.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"image_size":320}`), 0644))
	md, err := LoadMetadata(path)
	require.NoError(t, err)
	assert.Equal(t, 320, pickImageSize(0, md.ImageSize, dynamic))
}

func TestParseResizeMode(t *testing.T) {
	for _, s := range []string{"crop", "letterbox", "stretch"} {
		m, err := ParseResizeMode(s)
		require.NoError(t, err)
		assert.Equal(t, ResizeMode(s), m)
	}

	_, err := ParseResizeMode("squash")
	assert.EqualError(t, err, `unknown resize mode "squash"`)
}

func TestPreprocessorTensorLayout(t *testing.T) {
	src := bitmap.New(8, 4)
	for y := 0; y < 4; y++ {
		for x := 0; x < 8; x++ {
			src.Set(x, y, 255, 0, 51)
		}
	}

	for _, mode := range []ResizeMode{ResizeCrop, ResizeStretch} {
		t.Run(string(mode), func(t *testing.T) {
			data := NewPreprocessor(4, mode).Tensor(src)

			require.Len(t, data, 3*4*4)
			assert.InDelta(t, 1.0, data[0], 1e-2)
			assert.InDelta(t, 0.0, data[16], 1e-2)
			assert.InDelta(t, 0.2, data[32], 1e-2)
		})
	}
}

func TestPreprocessorLetterboxPadsBlack(t *testing.T) {
	src := image.NewNRGBA(image.Rect(0, 0, 8, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 8; x++ {
			src.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 255})
		}
	}

	data := NewPreprocessor(8, ResizeLetterbox).Tensor(src)

	require.Len(t, data, 3*8*8)
	// top-left corner is padding, the middle rows hold the image
	assert.Equal(t, float32(0), data[0])
	assert.InDelta(t, 1.0, data[4*8+4], 1e-2)
}

func TestMockClassifierIsDeterministic(t *testing.T) {
	m := NewMockClassifier(nil)
	assert.False(t, m.Loaded())
	assert.Equal(t, "mock", m.Inference())
	assert.Equal(t, "Go Backend (Mock Mode)", m.Provider())

	img := bitmap.New(3, 3)
	img.Set(1, 1, 9, 9, 9)

	first, err := m.Classify(img)
	require.NoError(t, err)
	second, err := m.Classify(img)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	require.Len(t, first.Predictions, 1)
	assert.Contains(t, DefaultLabels, first.Predictions[0].Label)
	assert.GreaterOrEqual(t, first.Predictions[0].Probability, 0.60)
	assert.Less(t, first.Predictions[0].Probability, 0.95)
}

func TestMockFingerprintMatchesAcrossImageTypes(t *testing.T) {
	b := bitmap.New(2, 2)
	b.Set(0, 1, 10, 20, 30)

	rgba := image.NewRGBA(image.Rect(0, 0, 2, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			rgba.Set(x, y, b.At(x, y))
		}
	}

	assert.Equal(t, fingerprint(b), fingerprint(rgba))
}

func TestLoadFallsBackToMock(t *testing.T) {
	c := Load(Options{ModelPath: filepath.Join(t.TempDir(), "absent.onnx"), TopK: 5})
	defer c.Close()

	assert.False(t, c.Loaded())
	assert.IsType(t, &MockClassifier{}, c)
}

func TestResolveModelPathUsesFallback(t *testing.T) {
	dir := t.TempDir()
	fallback := filepath.Join(dir, "model.onnx")
	require.NoError(t, os.WriteFile(fallback, []byte("x"), 0644))

	p, err := ResolveModelPath(filepath.Join(dir, "missing.onnx"), fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, p)

	_, err = ResolveModelPath("", filepath.Join(dir, "nope.onnx"))
	assert.Error(t, err)
}
