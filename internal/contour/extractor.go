// Package contour turns a complete recording into a smoothed note contour.
//
// Unlike the live stabilizer it can look ahead: each pass below runs over
// the whole sequence produced by the previous one.
package contour

import (
	"math"
	"sort"

	"github.com/0xlemi/tunetrace/internal/audio"
	"github.com/0xlemi/tunetrace/internal/pitch"
	"github.com/0xlemi/tunetrace/internal/timeline"
)

// Config holds the offline pipeline constants.
type Config struct {
	HopSize          int       `json:"hop_size"`          // samples between frames
	FrameSize        int       `json:"frame_size"`        // samples per analysed frame
	MedianRadius     int       `json:"median_radius"`     // median window is 2*radius+1 points
	OctaveTolerance  float64   `json:"octave_tolerance"`  // semitones around ±12 treated as an octave error
	OutlierThreshold float64   `json:"outlier_threshold"` // semitones from the neighbour mean treated as an outlier
	SmoothingKernel  []float64 `json:"smoothing_kernel"`  // symmetric weights, centred
}

// DefaultConfig returns the stock offline settings.
func DefaultConfig() Config {
	return Config{
		HopSize:          256,
		FrameSize:        2048,
		MedianRadius:     2,
		OctaveTolerance:  1.0,
		OutlierThreshold: 3,
		SmoothingKernel:  []float64{1, 2, 3, 4, 3, 2, 1},
	}
}

// Result is an extracted contour.
type Result struct {
	Points []timeline.NotePoint
	Range  timeline.Range
	Step   float64 // seconds between points
}

// Extractor runs the offline pipeline with a given detector.
type Extractor struct {
	cfg      Config
	detector pitch.Detector
}

// NewExtractor creates an extractor. A nil detector uses the default
// autocorrelation detector.
func NewExtractor(cfg Config, detector pitch.Detector) *Extractor {
	if detector == nil {
		detector = pitch.NewDefaultDetector()
	}
	return &Extractor{cfg: cfg, detector: detector}
}

// Extract analyses buf frame by frame and runs the smoothing passes.
func (e *Extractor) Extract(buf audio.AudioBuffer) Result {
	raw := e.Frames(buf)
	points := FillGaps(raw)
	points = MedianFilter(points, e.cfg.MedianRadius)
	points = CorrectOctaves(points, e.cfg.OctaveTolerance, e.cfg.OutlierThreshold)
	points = WeightedSmooth(points, e.cfg.SmoothingKernel)

	step := 0.0
	if buf.SampleRate > 0 {
		step = float64(e.cfg.HopSize) / float64(buf.SampleRate)
	}
	return Result{Points: points, Range: timeline.RangeOf(points), Step: step}
}

// Frames detects one point per hop. Frames that would run past the end
// of the buffer are not analysed.
func (e *Extractor) Frames(buf audio.AudioBuffer) []timeline.NotePoint {
	if buf.SampleRate <= 0 || e.cfg.HopSize <= 0 || e.cfg.FrameSize <= 0 {
		return nil
	}

	n := len(buf.Samples)
	points := make([]timeline.NotePoint, 0, max(0, (n-e.cfg.FrameSize)/e.cfg.HopSize+1))
	for i := 0; i+e.cfg.FrameSize <= n; i += e.cfg.HopSize {
		frame := audio.Frame{Samples: buf.Samples[i : i+e.cfg.FrameSize], SampleRate: buf.SampleRate}
		t := float64(i) / float64(buf.SampleRate)

		est := e.detector.Detect(frame)
		if !est.Valid() {
			points = append(points, timeline.Gap(t))
			continue
		}
		points = append(points, timeline.NotePoint{Time: t, Note: pitch.NoteNumber(est.Frequency)})
	}
	return points
}

// FillGaps bridges single-point gaps with the mean of both neighbours.
// Longer gaps are left alone.
func FillGaps(points []timeline.NotePoint) []timeline.NotePoint {
	out := clonePoints(points)
	for i := 1; i < len(points)-1; i++ {
		if !points[i].Valid() && points[i-1].Valid() && points[i+1].Valid() {
			out[i].Note = (points[i-1].Note + points[i+1].Note) / 2
		}
	}
	return out
}

// MedianFilter replaces each point with the median of the valid notes
// within radius positions. The upper median is used for even counts.
func MedianFilter(points []timeline.NotePoint, radius int) []timeline.NotePoint {
	out := clonePoints(points)
	window := make([]float64, 0, 2*radius+1)
	for i := range points {
		window = window[:0]
		for j := max(0, i-radius); j <= min(len(points)-1, i+radius); j++ {
			if points[j].Valid() {
				window = append(window, points[j].Note)
			}
		}
		if len(window) == 0 {
			out[i].Note = math.NaN()
			continue
		}
		sort.Float64s(window)
		out[i].Note = window[len(window)/2]
	}
	return out
}

// CorrectOctaves compares each interior point with the mean of its
// neighbours. A deviation within tolerance of an octave is folded back by
// twelve semitones; any other deviation beyond threshold is replaced by
// the mean. The pass works in place from left to right, so each point sees
// its already corrected predecessor.
func CorrectOctaves(points []timeline.NotePoint, tolerance, threshold float64) []timeline.NotePoint {
	out := clonePoints(points)
	for i := 1; i < len(out)-1; i++ {
		prev, curr, next := out[i-1], out[i], out[i+1]
		if !prev.Valid() || !curr.Valid() || !next.Valid() {
			continue
		}

		avg := (prev.Note + next.Note) / 2
		diff := curr.Note - avg
		switch {
		case math.Abs(math.Abs(diff)-12) < tolerance:
			out[i].Note -= 12 * sign(diff)
		case math.Abs(diff) > threshold:
			out[i].Note = avg
		}
	}
	return out
}

// WeightedSmooth applies a centred weighted moving average. Only valid
// neighbours contribute, normalised by the weight they carry. Gaps stay
// gaps.
func WeightedSmooth(points []timeline.NotePoint, kernel []float64) []timeline.NotePoint {
	out := clonePoints(points)
	offset := len(kernel) / 2
	for i := range points {
		if !points[i].Valid() {
			continue
		}

		sum, weight := 0.0, 0.0
		for k, w := range kernel {
			j := i + k - offset
			if j < 0 || j >= len(points) || !points[j].Valid() {
				continue
			}
			sum += points[j].Note * w
			weight += w
		}
		if weight > 0 {
			out[i].Note = sum / weight
		} else {
			out[i].Note = math.NaN()
		}
	}
	return out
}

func clonePoints(points []timeline.NotePoint) []timeline.NotePoint {
	out := make([]timeline.NotePoint, len(points))
	copy(out, points)
	return out
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}
