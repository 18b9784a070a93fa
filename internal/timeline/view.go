package timeline

import (
	"fmt"
	"math"
)

// Mode selects how the visible window is placed.
type Mode int

const (
	// Follow keeps a fixed-width window centred on the current time.
	Follow Mode = iota
	// Full shows the whole duration, zoomed and scrolled.
	Full
)

func (m Mode) String() string {
	if m == Full {
		return "full"
	}
	return "follow"
}

// MarshalText encodes the mode by name.
func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a mode name.
func (m *Mode) UnmarshalText(text []byte) error {
	mode, ok := ParseMode(string(text))
	if !ok {
		return fmt.Errorf("timeline: unknown view mode %q", text)
	}
	*m = mode
	return nil
}

// ParseMode accepts "follow" or "full".
func ParseMode(s string) (Mode, bool) {
	switch s {
	case "follow":
		return Follow, true
	case "full":
		return Full, true
	}
	return Follow, false
}

// Config holds the windowing constants.
type Config struct {
	FollowWindow      float64 `json:"follow_window"`      // seconds visible in follow mode
	HistoryCapacity   int     `json:"history_capacity"`   // live ticks kept for the history view
	RecordingCapacity int     `json:"recording_capacity"` // live points kept while comparing
	MinZoom           float64 `json:"min_zoom"`
	MaxZoom           float64 `json:"max_zoom"`
	ZoomStep          float64 `json:"zoom_step"`        // zoom change per wheel notch
	DefaultDuration   float64 `json:"default_duration"` // full-view extent with nothing loaded
	NoteMargin        float64 `json:"note_margin"`      // semitones added above and below the data
	MinNoteSpan       float64 `json:"min_note_span"`
	DefaultLowNote    float64 `json:"default_low_note"`
	DefaultHighNote   float64 `json:"default_high_note"`
}

// DefaultConfig returns a 10 s follow window over 600 ticks of history.
func DefaultConfig() Config {
	return Config{
		FollowWindow:      10,
		HistoryCapacity:   600,
		RecordingCapacity: 60 * 60 * 60,
		MinZoom:           1,
		MaxZoom:           50,
		ZoomStep:          0.5,
		DefaultDuration:   10,
		NoteMargin:        2,
		MinNoteSpan:       12,
		DefaultLowNote:    57,
		DefaultHighNote:   81,
	}
}

// ViewState describes what the user asked to see.
type ViewState struct {
	Mode   Mode    `json:"mode"`
	Zoom   float64 `json:"zoom"`
	Scroll float64 `json:"scroll"`
}

// DefaultViewState is an unzoomed follow view.
func DefaultViewState() ViewState {
	return ViewState{Mode: Follow, Zoom: 1}
}

// Window is the visible time range. Live windows are relative to now and
// are labelled as offsets.
type Window struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
	Live     bool    `json:"live"`
}

// Contains reports whether t lies inside the window.
func (w Window) Contains(t float64) bool {
	return t >= w.Start && t <= w.End
}

// Series IDs used for the streams the aligner produces itself.
const (
	LiveID      = "live"
	RecordingID = "recording"
)

// Series is one stream to align. A positive Step marks a uniform hop grid
// that can be sliced by index arithmetic.
type Series struct {
	ID     string
	Points []NotePoint
	Step   float64
}

// AlignedSeries is the visible part of a Series.
type AlignedSeries struct {
	ID       string        `json:"id"`
	Lo       int           `json:"lo"`
	Hi       int           `json:"hi"`
	Points   []NotePoint   `json:"-"`
	Segments [][]NotePoint `json:"segments"`
}

// Alignment is everything a renderer needs for one frame.
type Alignment struct {
	Window    Window          `json:"window"`
	NoteRange Range           `json:"note_range"`
	Tracks    []AlignedSeries `json:"tracks"`
	Recording *AlignedSeries  `json:"recording,omitempty"`
	Ticks     []Tick          `json:"ticks"`
	Grid      []GridLine      `json:"grid"`
}

// Aligner computes visible windows and slices streams to them. It holds
// only configuration.
type Aligner struct {
	cfg Config
}

// NewAligner creates an aligner with cfg.
func NewAligner(cfg Config) Aligner {
	return Aligner{cfg: cfg}
}

// Config returns the aligner configuration.
func (a Aligner) Config() Config { return a.cfg }

// ClampView brings zoom and scroll into their valid ranges.
func (a Aligner) ClampView(v ViewState) ViewState {
	if math.IsNaN(v.Zoom) {
		v.Zoom = a.cfg.MinZoom
	}
	v.Zoom = math.Max(a.cfg.MinZoom, math.Min(a.cfg.MaxZoom, v.Zoom))
	if math.IsNaN(v.Scroll) {
		v.Scroll = 0
	}
	v.Scroll = math.Max(0, math.Min(1, v.Scroll))
	return v
}

// Wheel applies one scroll-wheel movement: scrolling up (negative deltaY)
// zooms in by one step.
func (a Aligner) Wheel(v ViewState, deltaY float64) ViewState {
	switch {
	case deltaY < 0:
		v.Zoom += a.cfg.ZoomStep
	case deltaY > 0:
		v.Zoom -= a.cfg.ZoomStep
	}
	return a.ClampView(v)
}

// Window computes the visible range. total is the full-view extent and
// now the follow-mode centre, both in seconds.
func (a Aligner) Window(v ViewState, total, now float64) Window {
	if v.Mode == Follow {
		half := a.cfg.FollowWindow / 2
		return Window{Start: now - half, End: now + half, Duration: a.cfg.FollowWindow}
	}

	if !(total > 0) || math.IsInf(total, 0) {
		total = a.cfg.DefaultDuration
	}
	v = a.ClampView(v)
	visible := total / v.Zoom
	start := v.Scroll * (total - visible)
	return Window{Start: start, End: start + visible, Duration: visible}
}

// Align slices every track and the optional recording to the window of v.
// Tracks with a Step use index arithmetic, the recording binary search.
func (a Aligner) Align(v ViewState, total, now float64, tracks []Series, recording []NotePoint) Alignment {
	w := a.Window(v, total, now)
	observed := EmptyRange()

	out := Alignment{Window: w, Tracks: make([]AlignedSeries, 0, len(tracks))}
	for _, s := range tracks {
		var lo, hi int
		if s.Step > 0 {
			lo, hi = SliceUniform(s.Points, s.Step, w.Start, w.End)
		} else {
			lo, hi = SliceSorted(s.Points, w.Start, w.End)
		}
		out.Tracks = append(out.Tracks, aligned(s.ID, s.Points, lo, hi))
		observed = observed.Union(RangeOf(s.Points))
	}

	if len(recording) > 0 {
		lo, hi := SliceSorted(recording, w.Start, w.End)
		rec := aligned(RecordingID, recording, lo, hi)
		out.Recording = &rec
		observed = observed.Union(RangeOf(recording))
	}

	out.NoteRange = a.NoteRange(observed)
	out.Ticks = Ticks(w)
	out.Grid = GridLines(out.NoteRange)
	return out
}

// Live maps the history onto a window centred on now: the newest entry
// sits at time 0 and each older entry one tick further back, where the
// whole capacity spans one follow window. Only entries inside the window
// are returned.
func (a Aligner) Live(h *History) Alignment {
	half := a.cfg.FollowWindow / 2
	w := Window{Start: -half, End: half, Duration: a.cfg.FollowWindow, Live: true}

	tick := a.cfg.FollowWindow / float64(h.Cap())
	points := make([]NotePoint, 0, h.Len())
	for i := 0; i < h.Len(); i++ {
		age := h.Len() - 1 - i
		t := -float64(age) * tick
		if t < w.Start {
			continue
		}
		points = append(points, NotePoint{Time: t, Note: h.At(i).Note})
	}

	noteRange := a.NoteRange(h.Range())
	return Alignment{
		Window:    w,
		NoteRange: noteRange,
		Tracks:    []AlignedSeries{aligned(LiveID, points, 0, len(points))},
		Ticks:     Ticks(w),
		Grid:      GridLines(noteRange),
	}
}

// NoteRange pads the observed range and widens it to the minimum span.
// With nothing observed it falls back to the default range.
func (a Aligner) NoteRange(observed Range) Range {
	r := Range{Low: a.cfg.DefaultLowNote, High: a.cfg.DefaultHighNote}
	if !observed.Empty() {
		r = Range{Low: observed.Low - a.cfg.NoteMargin, High: observed.High + a.cfg.NoteMargin}
	}
	if r.High-r.Low < a.cfg.MinNoteSpan {
		centre := (r.High + r.Low) / 2
		r = Range{Low: centre - a.cfg.MinNoteSpan/2, High: centre + a.cfg.MinNoteSpan/2}
	}
	return r
}

func aligned(id string, points []NotePoint, lo, hi int) AlignedSeries {
	visible := points[lo:hi]
	return AlignedSeries{
		ID:       id,
		Lo:       lo,
		Hi:       hi,
		Points:   visible,
		Segments: Segments(visible),
	}
}
