package pitch

import (
	"math"
	"sort"
)

// StabilizerConfig tunes the live smoothing filter.
type StabilizerConfig struct {
	BufferSize    int     `json:"buffer_size"`     // median window length
	SilenceDrain  int     `json:"silence_drain"`   // entries dropped per silent tick
	MinBuffered   int     `json:"min_buffered"`    // fewer entries than this during silence means no output
	OctaveUpTol   float64 `json:"octave_up_tol"`   // relative tolerance around a 2.0 ratio
	OctaveDownTol float64 `json:"octave_down_tol"` // relative tolerance around a 0.5 ratio
	AnchorWeight  float64 `json:"anchor_weight"`   // weight of a new value in the anchor average
}

// DefaultStabilizerConfig returns the stock smoothing settings.
func DefaultStabilizerConfig() StabilizerConfig {
	return StabilizerConfig{
		BufferSize:    7,
		SilenceDrain:  2,
		MinBuffered:   3,
		OctaveUpTol:   0.05,
		OctaveDownTol: 0.04,
		AnchorWeight:  0.1,
	}
}

// Stabilizer smooths the raw per-tick estimates of a live stream: octave
// jumps against a slowly moving anchor are folded back, a short median
// window removes jitter and silence drains the window quickly.
//
// A Stabilizer belongs to a single analysis loop and is not safe for
// concurrent use.
type Stabilizer struct {
	cfg    StabilizerConfig
	buffer []float64
	anchor float64
	last   float64
	sorted []float64
}

// NewStabilizer creates an empty stabilizer.
func NewStabilizer(cfg StabilizerConfig) *Stabilizer {
	if cfg.BufferSize < 1 {
		cfg.BufferSize = 1
	}
	return &Stabilizer{
		cfg:    cfg,
		buffer: make([]float64, 0, cfg.BufferSize+1),
		sorted: make([]float64, 0, cfg.BufferSize+1),
	}
}

// Update consumes the estimate of one tick and returns the smoothed note
// number, or NaN when nothing should be shown.
func (s *Stabilizer) Update(e Estimate) float64 {
	var out float64

	if !e.Valid() {
		drop := min(s.cfg.SilenceDrain, len(s.buffer))
		s.buffer = append(s.buffer[:0], s.buffer[drop:]...)
		if len(s.buffer) == 0 {
			out = 0
			s.anchor = 0
		} else {
			out = s.median()
		}
		if len(s.buffer) < s.cfg.MinBuffered {
			out = 0
		}
	} else {
		s.push(s.correctOctave(e.Frequency))
		out = s.median()
		if out > 0 {
			if s.anchor == 0 {
				s.anchor = out
			} else {
				s.anchor = s.anchor*(1-s.cfg.AnchorWeight) + out*s.cfg.AnchorWeight
			}
		}
	}

	s.last = out
	return NoteNumber(out)
}

// Frequency returns the smoothed frequency of the last update, 0 if none.
func (s *Stabilizer) Frequency() float64 {
	return s.last
}

// Anchor returns the current octave reference, 0 while unset.
func (s *Stabilizer) Anchor() float64 {
	return s.anchor
}

// Buffered returns the number of values in the median window.
func (s *Stabilizer) Buffered() int {
	return len(s.buffer)
}

// Reset forgets all history.
func (s *Stabilizer) Reset() {
	s.buffer = s.buffer[:0]
	s.anchor = 0
	s.last = 0
}

// correctOctave folds f back when it sits an octave above or below the anchor.
func (s *Stabilizer) correctOctave(f float64) float64 {
	if s.anchor <= 0 {
		return f
	}
	ratio := f / s.anchor
	switch {
	case within(ratio, 2, s.cfg.OctaveUpTol):
		return f / 2
	case within(ratio, 0.5, s.cfg.OctaveDownTol):
		return f * 2
	}
	return f
}

func (s *Stabilizer) push(f float64) {
	s.buffer = append(s.buffer, f)
	if over := len(s.buffer) - s.cfg.BufferSize; over > 0 {
		s.buffer = append(s.buffer[:0], s.buffer[over:]...)
	}
}

// median returns the upper median of the window.
func (s *Stabilizer) median() float64 {
	s.sorted = append(s.sorted[:0], s.buffer...)
	sort.Float64s(s.sorted)
	return s.sorted[len(s.sorted)/2]
}

// within reports whether v lies strictly inside target*(1±tol).
func within(v, target, tol float64) bool {
	return math.Abs(v-target) < target*tol
}
