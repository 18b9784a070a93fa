package audio

import (
	"errors"
	"time"
)

// Errors
var (
	ErrCaptureStarted    = errors.New("audio capture already started")
	ErrCaptureStopped    = errors.New("audio capture not started")
	ErrEmptyAudio        = errors.New("audio contains no samples")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Frame is a fixed-length analysis window of mono samples. Frames handed
// out by a Capturer are snapshots and are never written to again.
type Frame struct {
	Samples    []float64
	SampleRate int
}

// Capturer defines the interface for live audio capture
type Capturer interface {
	// Start begins audio capture
	Start() error

	// Stop ends audio capture and closes the frame channel
	Stop() error

	// Frames delivers one analysis frame per capture tick
	Frames() <-chan Frame

	// IsCapturing returns true if currently capturing audio
	IsCapturing() bool
}

// Config holds the capture side settings.
type Config struct {
	SampleRate    int     `json:"sample_rate"`
	Channels      int     `json:"channels"`
	FrameSize     int     `json:"frame_size"`
	TickRate      int     `json:"tick_rate"`     // frames delivered per second
	Amplification float64 `json:"amplification"` // input gain applied before filtering
	LowPassHz     float64 `json:"low_pass_hz"`   // 0 disables the pre-filter
	QueueDepth    int     `json:"queue_depth"`
}

// DefaultConfig returns the capture defaults: 2048-sample frames at ~60 Hz
// through a 1 kHz low-pass.
func DefaultConfig() Config {
	return Config{
		SampleRate:    44100,
		Channels:      1,
		FrameSize:     2048,
		TickRate:      60,
		Amplification: 1.0,
		LowPassHz:     1000,
		QueueDepth:    4,
	}
}

// HopSize is the number of new samples between two delivered frames.
func (c Config) HopSize() int {
	if c.TickRate <= 0 {
		return c.FrameSize
	}
	hop := c.SampleRate / c.TickRate
	if hop < 1 {
		hop = 1
	}
	return hop
}

// TickInterval is the wall-clock time between two delivered frames.
func (c Config) TickInterval() time.Duration {
	if c.SampleRate <= 0 {
		return time.Second / 60
	}
	return time.Duration(float64(c.HopSize()) / float64(c.SampleRate) * float64(time.Second))
}

// rollingWindow keeps the most recent size samples in arrival order.
type rollingWindow struct {
	samples []float64
	size    int
}

func newRollingWindow(size int) *rollingWindow {
	return &rollingWindow{samples: make([]float64, 0, size), size: size}
}

func (w *rollingWindow) append(in []float64) {
	if len(in) >= w.size {
		w.samples = append(w.samples[:0], in[len(in)-w.size:]...)
		return
	}
	if overflow := len(w.samples) + len(in) - w.size; overflow > 0 {
		w.samples = append(w.samples[:0], w.samples[overflow:]...)
	}
	w.samples = append(w.samples, in...)
}

func (w *rollingWindow) full() bool {
	return len(w.samples) == w.size
}

// snapshot copies the window so the consumer owns its frame.
func (w *rollingWindow) snapshot(sampleRate int) Frame {
	out := make([]float64, len(w.samples))
	copy(out, w.samples)
	return Frame{Samples: out, SampleRate: sampleRate}
}
