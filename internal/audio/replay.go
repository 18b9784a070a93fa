package audio

import (
	"context"
	"sync"
	"time"
)

// ReplayCapturer feeds a decoded buffer through the live path, one frame
// per tick, as if it came from an input device.
type ReplayCapturer struct {
	cfg      Config
	buffer   AudioBuffer
	realtime bool

	mu          sync.Mutex
	isCapturing bool
	queue       *FrameQueue
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewReplayCapturer creates a capturer over buf. With realtime false frames
// are produced as fast as the consumer takes them.
func NewReplayCapturer(buf AudioBuffer, cfg Config, realtime bool) *ReplayCapturer {
	cfg.SampleRate = buf.SampleRate
	return &ReplayCapturer{cfg: cfg, buffer: buf, realtime: realtime}
}

// Start begins replaying
func (c *ReplayCapturer) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isCapturing {
		return ErrCaptureStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.queue = NewFrameQueue(c.cfg.QueueDepth)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.isCapturing = true

	go c.run(ctx, c.queue, c.done)
	return nil
}

// Stop ends replaying
func (c *ReplayCapturer) Stop() error {
	c.mu.Lock()
	if !c.isCapturing {
		c.mu.Unlock()
		return ErrCaptureStopped
	}
	c.isCapturing = false
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
	return nil
}

// Frames returns the frame channel of the current replay.
func (c *ReplayCapturer) Frames() <-chan Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.queue == nil {
		return nil
	}
	return c.queue.Frames()
}

// IsCapturing returns true while frames are being produced
func (c *ReplayCapturer) IsCapturing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.isCapturing
}

func (c *ReplayCapturer) run(ctx context.Context, queue *FrameQueue, done chan struct{}) {
	defer close(done)
	defer queue.Close()

	hop := c.cfg.HopSize()
	window := newRollingWindow(c.cfg.FrameSize)
	filter := newPreFilter(c.cfg.LowPassHz, float64(c.cfg.SampleRate))
	block := make([]float64, 0, hop)

	var ticker *time.Ticker
	if c.realtime {
		ticker = time.NewTicker(c.cfg.TickInterval())
		defer ticker.Stop()
	}

	for pos := 0; pos < len(c.buffer.Samples); pos += hop {
		end := min(pos+hop, len(c.buffer.Samples))
		block = append(block[:0], c.buffer.Samples[pos:end]...)
		filter.ProcessBlock(block)
		window.append(block)
		if !window.full() {
			continue
		}

		frame := window.snapshot(c.cfg.SampleRate)
		if ticker != nil {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			queue.Push(frame)
			continue
		}

		select {
		case <-ctx.Done():
			return
		case queue.ch <- frame:
		}
	}
}
