package timeline

import (
	"fmt"
	"math"

	"github.com/0xlemi/tunetrace/internal/pitch"
)

// Tick is a labelled mark on the time axis.
type Tick struct {
	Time  float64 `json:"t"`
	Label string  `json:"label"`
}

var tickIntervals = []float64{0.1, 0.2, 0.5, 1, 2, 5, 10, 15, 30, 60, 120, 300}

const (
	targetTicks = 8
	liveTicks   = 5
)

// TickInterval picks the smallest interval giving at most about eight
// ticks over duration.
func TickInterval(duration float64) float64 {
	rough := duration / targetTicks
	for _, m := range tickIntervals {
		if rough <= m {
			return m
		}
	}
	return tickIntervals[len(tickIntervals)-1]
}

// Ticks lays out the axis for w. Live windows get evenly spaced offsets
// from now; other windows get round times.
func Ticks(w Window) []Tick {
	if !(w.Duration > 0) || math.IsInf(w.Duration, 0) {
		return nil
	}

	if w.Live {
		ticks := make([]Tick, 0, liveTicks+1)
		for i := 0; i <= liveTicks; i++ {
			t := w.Start + float64(i)/liveTicks*w.Duration
			label := fmt.Sprintf("%.1fs", t)
			if t > 0 {
				label = "+" + label
			}
			ticks = append(ticks, Tick{Time: t, Label: label})
		}
		return ticks
	}

	interval := TickInterval(w.Duration)
	first := math.Ceil(w.Start/interval) * interval
	var ticks []Tick
	for k := 0; ; k++ {
		t := first + float64(k)*interval
		if t > w.End {
			break
		}
		ticks = append(ticks, Tick{Time: t, Label: FormatTime(t)})
	}
	return ticks
}

// FormatTime renders seconds as "m:ss" from one minute up and as "s.ds"
// below.
func FormatTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "0:00"
	}
	if seconds < 0 {
		return "-" + FormatTime(-seconds)
	}

	m := int(math.Floor(seconds / 60))
	s := int(math.Floor(math.Mod(seconds, 60)))
	if seconds >= 60 {
		return fmt.Sprintf("%d:%02d", m, s)
	}
	tenths := int(math.Floor(math.Mod(seconds, 1) * 10))
	return fmt.Sprintf("%d.%ds", s, tenths)
}

// GridLine is a horizontal line at an integer note.
type GridLine struct {
	Note    int    `json:"note"`
	Label   string `json:"label,omitempty"`
	IsC     bool   `json:"is_c"`
	Labeled bool   `json:"labeled"`
}

// denseGridSpan is the range below which every line gets a label.
const denseGridSpan = 20

// GridLines returns one line per integer note inside r. C, F and A are
// always labelled; narrow ranges label every note.
func GridLines(r Range) []GridLine {
	if r.Empty() || math.IsInf(r.Low, 0) || math.IsInf(r.High, 0) {
		return nil
	}

	dense := r.High-r.Low < denseGridSpan
	var lines []GridLine
	for n := int(math.Ceil(r.Low)); n <= int(math.Floor(r.High)); n++ {
		class := ((n % 12) + 12) % 12
		line := GridLine{
			Note:    n,
			IsC:     class == 0,
			Labeled: dense || class == 0 || class == 5 || class == 9,
		}
		if line.Labeled {
			line.Label = fmt.Sprintf("%s%d", pitch.NoteName(n), int(math.Floor(float64(n)/12))-1)
		}
		lines = append(lines, line)
	}
	return lines
}
