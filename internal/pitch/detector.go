package pitch

import (
	"math"

	"github.com/0xlemi/tunetrace/internal/audio"
	"gonum.org/v1/gonum/floats"
)

// Estimate is the outcome of analysing one frame. A zero Frequency means no
// pitch was found; Clarity may still be reported in that case.
type Estimate struct {
	Frequency float64 `json:"frequency_hz"`
	Clarity   float64 `json:"clarity"`
}

// Valid reports whether the estimate carries a usable frequency.
func (e Estimate) Valid() bool {
	return e.Frequency > 0 && !math.IsInf(e.Frequency, 0)
}

// Detector defines the interface for pitch detection
type Detector interface {
	// Detect analyzes a single frame. It must not retain the frame.
	Detect(frame audio.Frame) Estimate
}

// DetectorConfig holds the autocorrelation tuning constants.
type DetectorConfig struct {
	SilenceRMS   float64 `json:"silence_rms"`   // frames quieter than this are silence
	ClipRatio    float64 `json:"clip_ratio"`    // center-clip level as a fraction of peak
	MinFrequency float64 `json:"min_frequency"` // Hz
	MaxFrequency float64 `json:"max_frequency"` // Hz
	MaxPairs     int     `json:"max_pairs"`     // sample pairs summed per lag
	Clarity      float64 `json:"clarity"`       // required clarity for normal signals
	WeakClarity  float64 `json:"weak_clarity"`  // required clarity below WeakRMS
	WeakRMS      float64 `json:"weak_rms"`      // RMS under which a signal counts as weak
	PeakRatio    float64 `json:"peak_ratio"`    // first peak above this fraction of the max wins
}

// DefaultDetectorConfig returns the stock detector settings.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		SilenceRMS:   0.02,
		ClipRatio:    0.4,
		MinFrequency: 60,
		MaxFrequency: 1200,
		MaxPairs:     800,
		Clarity:      0.85,
		WeakClarity:  0.92,
		WeakRMS:      0.05,
		PeakRatio:    0.9,
	}
}

// AutocorrelationDetector finds the fundamental period of a center-clipped
// frame with a bounded normalized autocorrelation. It holds no state
// between calls and is safe for concurrent use.
type AutocorrelationDetector struct {
	cfg DetectorConfig
}

// NewAutocorrelationDetector creates a detector with cfg.
func NewAutocorrelationDetector(cfg DetectorConfig) *AutocorrelationDetector {
	return &AutocorrelationDetector{cfg: cfg}
}

// NewDefaultDetector creates a detector with the stock settings
func NewDefaultDetector() *AutocorrelationDetector {
	return NewAutocorrelationDetector(DefaultDetectorConfig())
}

// Detect analyzes a frame and returns its fundamental frequency estimate
func (d *AutocorrelationDetector) Detect(frame audio.Frame) Estimate {
	samples := frame.Samples
	size := len(samples)
	if size == 0 || frame.SampleRate <= 0 {
		return Estimate{}
	}

	rms := floats.Norm(samples, 2) / math.Sqrt(float64(size))
	// NaN input fails this comparison too.
	if !(rms >= d.cfg.SilenceRMS) {
		return Estimate{}
	}

	peak := floats.Norm(samples, math.Inf(1))
	clipped := centerClip(samples, peak*d.cfg.ClipRatio)

	sampleRate := float64(frame.SampleRate)
	minLag := max(int(math.Floor(sampleRate/d.cfg.MaxFrequency)), 1)
	maxLag := min(int(math.Floor(sampleRate/d.cfg.MinFrequency)), size-1)
	if maxLag < minLag {
		return Estimate{}
	}

	// The lags just outside the band are computed as neighbours for the peak
	// test and the parabolic fit; they never count towards the maximum.
	lo, hi := minLag-1, min(maxLag+1, size-1)
	// shape is the energy-normalized correlation used to place the period.
	// The per-pair mean feeds clarity.
	shape := make([]float64, maxLag+2)
	maxCorr, maxShape := 0.0, 0.0
	for lag := lo; lag <= hi; lag++ {
		n := min(size-lag, d.cfg.MaxPairs)
		if n <= 0 {
			continue
		}
		head, tail := clipped[:n], clipped[lag:lag+n]
		dot := floats.Dot(head, tail)
		if energy := floats.Dot(head, head) * floats.Dot(tail, tail); energy > 0 {
			shape[lag] = dot / math.Sqrt(energy)
		}
		if lag < minLag || lag > maxLag {
			continue
		}
		maxCorr = max(maxCorr, dot/float64(n))
		maxShape = max(maxShape, shape[lag])
	}

	clipRMS := floats.Norm(clipped, 2) / math.Sqrt(float64(size))
	clarity := 0.0
	if clipRMS > 0 {
		clarity = maxCorr / (clipRMS * clipRMS)
	}

	required := d.cfg.Clarity
	if rms < d.cfg.WeakRMS {
		required = d.cfg.WeakClarity
	}
	if !(clarity >= required) {
		return Estimate{Clarity: clampUnit(clarity)}
	}

	t0 := firstPeak(shape, minLag, maxLag, maxShape*d.cfg.PeakRatio)
	if t0 < 0 {
		return Estimate{}
	}

	period := refinePeriod(shape, t0, lo, hi)
	return Estimate{
		Frequency: sampleRate / period,
		Clarity:   clampUnit(clarity),
	}
}

// centerClip zeroes samples inside [-limit, limit] and shifts the rest
// towards zero by limit.
func centerClip(samples []float64, limit float64) []float64 {
	out := make([]float64, len(samples))
	for i, v := range samples {
		switch {
		case v > limit:
			out[i] = v - limit
		case v < -limit:
			out[i] = v + limit
		}
	}
	return out
}

// firstPeak returns the first lag whose correlation exceeds threshold and
// is a local maximum (strictly above its predecessor, not below its
// successor), or -1.
func firstPeak(corr []float64, minLag, maxLag int, threshold float64) int {
	for lag := minLag; lag <= maxLag; lag++ {
		c := corr[lag]
		if c > threshold && c > corr[lag-1] && c >= corr[lag+1] {
			return lag
		}
	}
	return -1
}

// refinePeriod fits a parabola through the peak and its neighbours, which
// must lie within the computed lags [lo, hi]. It falls back to the integer
// lag when the fit is degenerate.
func refinePeriod(corr []float64, t0, lo, hi int) float64 {
	if t0-1 < lo || t0+1 > hi {
		return float64(t0)
	}

	x1, x2, x3 := corr[t0-1], corr[t0], corr[t0+1]
	a := (x1 + x3 - 2*x2) / 2
	b := (x3 - x1) / 2
	if a == 0 {
		return float64(t0)
	}

	refined := float64(t0) - b/(2*a)
	if math.IsNaN(refined) || math.IsInf(refined, 0) || math.Abs(refined-float64(t0)) > 1 {
		return float64(t0)
	}
	return refined
}

func clampUnit(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
