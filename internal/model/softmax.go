package model

import (
	"github.com/chewxy/math32"
)

// softmax normalizes raw logits in place into a probability distribution.
func softmax(logits []float32) {
	if len(logits) == 0 {
		return
	}

	maxVal := logits[0]
	for _, v := range logits[1:] {
		if v > maxVal {
			maxVal = v
		}
	}

	var sum float32
	for i, v := range logits {
		logits[i] = math32.Exp(v - maxVal)
		sum += logits[i]
	}
	for i := range logits {
		logits[i] /= sum
	}
}
