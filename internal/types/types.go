package types

import "time"

// Checkpoint is one saved model snapshot discovered in the model directory.
// Identity is Steps; Time is the artifact's filesystem timestamp and is used
// only as the wall-clock coordinate for emitted metric events.
type Checkpoint struct {
	Path  string    `json:"path"`
	Steps int64     `json:"steps"`
	Time  time.Time `json:"time"`
}

// Variant selects case handling for BLEU scoring.
type Variant string

const (
	VariantCased   Variant = "cased"
	VariantUncased Variant = "uncased"
)

// Tag returns the metric tag for the variant, e.g. "BLEU_uncased".
func (v Variant) Tag(suffix string) string {
	return "BLEU_" + string(v) + suffix
}

// MetricEvent is one point in the emitted metric stream. Events are
// append-only and ordered by Step ascending.
type MetricEvent struct {
	Tag      string    `json:"tag"`
	Value    float64   `json:"value"`
	WallTime time.Time `json:"wall_time"`
	Step     int64     `json:"step"`
}
