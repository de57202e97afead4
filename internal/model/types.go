package model

import (
	"image"
	"sort"
)

// Metadata describes the model file. Any field left empty is discovered from
// the ONNX graph or filled from defaults.
type Metadata struct {
	InputName  string   `json:"input_name" yaml:"input_name"`
	OutputName string   `json:"output_name" yaml:"output_name"`
	Classes    []string `json:"classes" yaml:"classes"`
	ImageSize  int      `json:"image_size" yaml:"image_size"`
}

type Prediction struct {
	Label       string  `json:"label"`
	Probability float64 `json:"probability"`
}

// Result is the ranked top-k output of one classification, most probable
// first.
type Result struct {
	Predictions []Prediction `json:"predictions"`
}

func (r *Result) Top() (Prediction, bool) {
	if len(r.Predictions) == 0 {
		return Prediction{}, false
	}
	return r.Predictions[0], true
}

// Classifier turns a normalized image into a ranked result. Implementations
// are safe for concurrent use.
type Classifier interface {
	Classify(img image.Image) (*Result, error)
	// Provider is the human readable name reported with every verdict.
	Provider() string
	// Inference names the backend kind, e.g. "onnxruntime" or "mock".
	Inference() string
	Loaded() bool
	Close()
}

// rank pairs scores with labels and keeps the k highest. Scores beyond the
// label list are ignored.
func rank(scores []float32, labels []string, k int) []Prediction {
	n := len(scores)
	if len(labels) < n {
		n = len(labels)
	}

	preds := make([]Prediction, n)
	for i := 0; i < n; i++ {
		preds[i] = Prediction{Label: labels[i], Probability: float64(scores[i])}
	}

	sort.SliceStable(preds, func(i, j int) bool {
		return preds[i].Probability > preds[j].Probability
	})

	if k > 0 && k < len(preds) {
		preds = preds[:k]
	}
	return preds
}
