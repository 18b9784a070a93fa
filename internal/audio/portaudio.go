package audio

import (
	"fmt"
	"sync"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/gordonklaus/portaudio"
)

// PortAudioCapturer implements audio capture using PortAudio
type PortAudioCapturer struct {
	cfg         Config
	isCapturing bool
	stream      *portaudio.Stream
	window      *rollingWindow
	filter      *biquad.Section
	queue       *FrameQueue
	mono        []float64
	mu          sync.Mutex
}

// NewPortAudioCapturer creates a new audio capturer using PortAudio
func NewPortAudioCapturer(cfg Config) (*PortAudioCapturer, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}

	return &PortAudioCapturer{
		cfg:    cfg,
		window: newRollingWindow(cfg.FrameSize),
		filter: newPreFilter(cfg.LowPassHz, float64(cfg.SampleRate)),
		mono:   make([]float64, 0, cfg.HopSize()),
	}, nil
}

// Start begins audio capture
func (c *PortAudioCapturer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isCapturing {
		return ErrCaptureStarted
	}

	c.queue = NewFrameQueue(c.cfg.QueueDepth)
	c.window = newRollingWindow(c.cfg.FrameSize)
	c.filter.Reset()

	// One callback per tick keeps the analysis rate tied to the device clock.
	stream, err := portaudio.OpenDefaultStream(
		c.cfg.Channels, // input channels
		0,              // no output
		float64(c.cfg.SampleRate),
		c.cfg.HopSize(),
		c.processAudio,
	)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start input stream: %w", err)
	}

	c.stream = stream
	c.isCapturing = true
	return nil
}

// Stop ends audio capture
func (c *PortAudioCapturer) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isCapturing {
		return ErrCaptureStopped
	}

	if err := c.stream.Stop(); err != nil {
		return fmt.Errorf("stop input stream: %w", err)
	}
	if err := c.stream.Close(); err != nil {
		return fmt.Errorf("close input stream: %w", err)
	}

	c.queue.Close()
	c.isCapturing = false
	return nil
}

// Terminate releases PortAudio. The capturer cannot be restarted afterwards.
func (c *PortAudioCapturer) Terminate() error {
	return portaudio.Terminate()
}

// Frames returns the frame channel of the current capture run.
func (c *PortAudioCapturer) Frames() <-chan Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queue == nil {
		return nil
	}
	return c.queue.Frames()
}

// IsCapturing returns true if currently capturing audio
func (c *PortAudioCapturer) IsCapturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isCapturing
}

// processAudio runs on the PortAudio thread. It is the only producer of
// the frame queue.
func (c *PortAudioCapturer) processAudio(in, _ []float32) {
	c.mono = downmix(c.mono[:0], in, c.cfg.Channels, c.cfg.Amplification)
	c.filter.ProcessBlock(c.mono)
	c.window.append(c.mono)

	if c.window.full() {
		c.queue.Push(c.window.snapshot(c.cfg.SampleRate))
	}
}

// downmix averages interleaved channels into dst and applies gain.
func downmix(dst []float64, in []float32, channels int, gain float64) []float64 {
	if channels < 1 {
		channels = 1
	}
	if gain <= 0 {
		gain = 1
	}
	for i := 0; i+channels <= len(in); i += channels {
		sum := 0.0
		for ch := 0; ch < channels; ch++ {
			sum += float64(in[i+ch])
		}
		dst = append(dst, sum/float64(channels)*gain)
	}
	return dst
}
