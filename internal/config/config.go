// Package config aggregates the tunable settings of every component.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/0xlemi/tunetrace/internal/audio"
	"github.com/0xlemi/tunetrace/internal/contour"
	"github.com/0xlemi/tunetrace/internal/pitch"
	"github.com/0xlemi/tunetrace/internal/timeline"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config is the whole application configuration.
type Config struct {
	Detector   pitch.DetectorConfig   `json:"detector"`
	Stabilizer pitch.StabilizerConfig `json:"stabilizer"`
	Contour    contour.Config         `json:"contour"`
	Timeline   timeline.Config        `json:"timeline"`
	Audio      audio.Config           `json:"audio"`
	Server     ServerConfig           `json:"server"`
	Import     ImportConfig           `json:"import"`
	LogLevel   string                 `json:"log_level"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr           string   `json:"addr"`
	AllowedOrigins []string `json:"allowed_origins"`
	MaxUploadBytes int64    `json:"max_upload_bytes"`
}

// ImportConfig configures batch analysis.
type ImportConfig struct {
	Workers int      `json:"workers"`
	Colors  []string `json:"colors"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		Detector:   pitch.DefaultDetectorConfig(),
		Stabilizer: pitch.DefaultStabilizerConfig(),
		Contour:    contour.DefaultConfig(),
		Timeline:   timeline.DefaultConfig(),
		Audio:      audio.DefaultConfig(),
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"*"},
			MaxUploadBytes: 64 << 20,
		},
		Import: ImportConfig{
			Workers: 4,
			Colors:  slices.Clone(contour.DefaultColors),
		},
		LogLevel: "info",
	}
}

// Load reads a JSON file over the defaults. Fields missing from the file
// keep their default value. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate checks that every value can drive its component.
func (c Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
		}
	}

	d := c.Detector
	check(d.MinFrequency > 0 && d.MaxFrequency > d.MinFrequency,
		"detector band %v-%v Hz", d.MinFrequency, d.MaxFrequency)
	check(d.ClipRatio >= 0 && d.ClipRatio < 1, "detector clip ratio %v", d.ClipRatio)
	check(d.MaxPairs > 0, "detector max pairs %d", d.MaxPairs)
	check(d.PeakRatio > 0 && d.PeakRatio <= 1, "detector peak ratio %v", d.PeakRatio)

	s := c.Stabilizer
	check(s.BufferSize > 0, "stabilizer buffer size %d", s.BufferSize)
	check(s.AnchorWeight > 0 && s.AnchorWeight <= 1, "stabilizer anchor weight %v", s.AnchorWeight)

	k := c.Contour
	check(k.HopSize > 0 && k.FrameSize >= k.HopSize, "contour hop %d frame %d", k.HopSize, k.FrameSize)
	check(k.MedianRadius >= 0, "contour median radius %d", k.MedianRadius)
	check(len(k.SmoothingKernel) > 0, "contour smoothing kernel is empty")

	t := c.Timeline
	check(t.FollowWindow > 0, "follow window %v", t.FollowWindow)
	check(t.HistoryCapacity > 0, "history capacity %d", t.HistoryCapacity)
	check(t.MinZoom >= 1 && t.MaxZoom >= t.MinZoom, "zoom range %v-%v", t.MinZoom, t.MaxZoom)
	check(t.DefaultDuration > 0, "default duration %v", t.DefaultDuration)

	a := c.Audio
	check(a.SampleRate > 0 && a.Channels > 0, "audio %d Hz %d channels", a.SampleRate, a.Channels)
	check(a.FrameSize > 0, "audio frame size %d", a.FrameSize)
	check(a.TickRate > 0 && a.TickRate <= a.SampleRate, "audio tick rate %d", a.TickRate)
	check(a.QueueDepth > 0, "audio queue depth %d", a.QueueDepth)

	check(c.Server.Addr != "", "server address is empty")
	check(c.Import.Workers > 0, "import workers %d", c.Import.Workers)
	check(len(c.Import.Colors) > 0, "import palette is empty")

	return errors.Join(errs...)
}
