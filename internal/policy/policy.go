// Package policy maps raw classifier output to the verdict shown to users.
//
// The thresholds and the reserved label set are fixed business rules carried
// over from the deployed service; they have no derivation beyond that.
package policy

import (
	"fmt"
	"math"
	"strings"

	"github.com/Brownie44l1/fracture-api/internal/model"
)

const (
	// LowConfidenceThreshold is the top-1 probability below which a result is
	// reported as normal.
	LowConfidenceThreshold = 0.20
	// NormalConfidenceFloor is the minimum confidence reported for a result
	// overridden to normal.
	NormalConfidenceFloor = 0.65
	// ConfirmThreshold is the confidence at which a fracture finding skips
	// manual review.
	ConfirmThreshold = 0.70

	NormalLabel = "normal"

	summaryLength = 3
)

// reservedLabels are training-taxonomy classes that never denote a finding.
var reservedLabels = map[string]struct{}{
	"Test":  {},
	"Train": {},
}

type ReviewStatus string

const (
	StatusConfirmed     ReviewStatus = "ai_confirmed"
	StatusPendingReview ReviewStatus = "pending_review"
)

// Input carries everything the verdict depends on.
type Input struct {
	Predictions []model.Prediction
	Provider    string
	Inference   string
	Language    string
	// DICOM is the study attribute subset, nil for non-DICOM uploads.
	DICOM map[string]string
}

type Metadata struct {
	Inference      string             `json:"inference"`
	Provider       string             `json:"provider"`
	RawClass       string             `json:"rawClass"`
	RawConfidence  string             `json:"rawConfidence"`
	Top3           string             `json:"top3"`
	Language       string             `json:"language"`
	DICOM          map[string]string  `json:"dicom"`
	AllPredictions map[string]float64 `json:"allPredictions"`
}

type Verdict struct {
	FractureType string       `json:"fractureType"`
	Confidence   float64      `json:"confidence"`
	Status       ReviewStatus `json:"status"`
	Metadata     Metadata     `json:"metadata"`
}

func IsReserved(label string) bool {
	_, ok := reservedLabels[label]
	return ok
}

// Evaluate derives the verdict for one classification. It is a pure function
// of its input.
func Evaluate(in Input) Verdict {
	var raw model.Prediction
	if len(in.Predictions) > 0 {
		raw = in.Predictions[0]
	}

	label, confidence := raw.Label, raw.Probability
	if confidence < LowConfidenceThreshold || IsReserved(label) {
		label = NormalLabel
		confidence = math.Max(NormalConfidenceFloor, confidence)
	}

	status := StatusPendingReview
	if confidence >= ConfirmThreshold && label != NormalLabel {
		status = StatusConfirmed
	}

	all := make(map[string]float64, len(in.Predictions))
	for _, p := range in.Predictions {
		all[p.Label] = p.Probability
	}

	return Verdict{
		FractureType: label,
		Confidence:   confidence,
		Status:       status,
		Metadata: Metadata{
			Inference:      in.Inference,
			Provider:       in.Provider,
			RawClass:       raw.Label,
			RawConfidence:  fmt.Sprintf("%.4f", raw.Probability),
			Top3:           Summary(in.Predictions),
			Language:       in.Language,
			DICOM:          in.DICOM,
			AllPredictions: all,
		},
	}
}

// Summary renders up to the three most probable classes as
// "label (pp.p%)" joined by ", ".
func Summary(preds []model.Prediction) string {
	n := len(preds)
	if n > summaryLength {
		n = summaryLength
	}

	parts := make([]string, n)
	for i := 0; i < n; i++ {
		parts[i] = fmt.Sprintf("%s (%.1f%%)", preds[i].Label, preds[i].Probability*100)
	}
	return strings.Join(parts, ", ")
}
