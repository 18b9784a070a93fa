package pitch

import "math"

// Accuracy buckets a cents deviation for tuner feedback.
type Accuracy int

const (
	AccuracyUnknown Accuracy = iota
	AccuracyInTune
	AccuracyClose
	AccuracyOff
)

func (a Accuracy) String() string {
	switch a {
	case AccuracyInTune:
		return "in tune"
	case AccuracyClose:
		return "close"
	case AccuracyOff:
		return "off"
	default:
		return "unknown"
	}
}

// MarshalText encodes the accuracy by name.
func (a Accuracy) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// Thresholds in cents.
const (
	inTuneCents = 5
	closeCents  = 20
	needleRange = 50
)

// AccuracyOf classifies a cents deviation.
func AccuracyOf(cents float64) Accuracy {
	switch {
	case math.IsNaN(cents) || math.IsInf(cents, 0):
		return AccuracyUnknown
	case math.Abs(cents) < inTuneCents:
		return AccuracyInTune
	case math.Abs(cents) < closeCents:
		return AccuracyClose
	default:
		return AccuracyOff
	}
}

// NeedlePosition maps cents onto a 0..100 scale with 50 at perfect pitch.
// Deviations beyond half a semitone pin the needle to the edge.
func NeedlePosition(cents float64) float64 {
	if math.IsNaN(cents) {
		return 50
	}
	clamped := math.Max(-needleRange, math.Min(needleRange, cents))
	return (clamped + needleRange) / (2 * needleRange) * 100
}
