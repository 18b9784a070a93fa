package timeline

import (
	"encoding/json"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformPoints(n int, step float64) []NotePoint {
	points := make([]NotePoint, n)
	for i := range points {
		points[i] = NotePoint{Time: float64(i) * step, Note: 60 + float64(i%12)}
	}
	return points
}

func linearSlice(points []NotePoint, start, end float64) (lo, hi int) {
	lo, hi = -1, -1
	for i, p := range points {
		if p.Time >= start && p.Time <= end {
			if lo < 0 {
				lo = i
			}
			hi = i + 1
		}
	}
	if lo < 0 {
		// empty: both at the insertion point
		for lo = 0; lo < len(points) && points[lo].Time < start; lo++ {
		}
		hi = lo
	}
	return lo, hi
}

func TestHistoryEvictsOldestFirst(t *testing.T) {
	h := NewHistory(3)
	for i := 0; i < 3; i++ {
		_, evicted := h.Push(float64(i))
		assert.False(t, evicted)
	}

	old, evicted := h.Push(3)
	require.True(t, evicted)
	assert.Equal(t, Entry{Index: 0, Note: 0}, old)

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, []Entry{{1, 1}, {2, 2}, {3, 3}}, h.Entries())

	last, ok := h.Last()
	require.True(t, ok)
	assert.Equal(t, int64(3), last.Index)
}

func TestHistoryNeverExceedsCapacity(t *testing.T) {
	h := NewHistory(600)
	for i := 0; i < 2000; i++ {
		h.Push(float64(i))
		require.LessOrEqual(t, h.Len(), h.Cap())
	}
	assert.Equal(t, 600, h.Len())
	assert.Equal(t, int64(1400), h.At(0).Index)
	assert.Equal(t, 1999.0, h.At(599).Note)
}

func TestHistoryClearAndRange(t *testing.T) {
	h := NewHistory(4)
	h.Push(60)
	h.Push(math.NaN())
	h.Push(64)
	assert.Equal(t, Range{Low: 60, High: 64}, h.Range())

	h.Clear()
	assert.Equal(t, 0, h.Len())
	assert.True(t, h.Range().Empty())
	_, ok := h.Last()
	assert.False(t, ok)

	h.Push(1)
	assert.Equal(t, int64(0), h.At(0).Index)
	assert.Panics(t, func() { h.At(1) })
}

func TestRecordingStaysSorted(t *testing.T) {
	r := NewRecording(0)
	assert.False(t, r.Append(NotePoint{Time: -0.1, Note: 60}))
	assert.True(t, r.Append(NotePoint{Time: 0, Note: 60}))
	assert.True(t, r.Append(Gap(0.5)))
	assert.False(t, r.Append(NotePoint{Time: 0.4, Note: 61}))
	assert.True(t, r.Append(NotePoint{Time: 0.5, Note: 61}))
	assert.Equal(t, 3, r.Len())

	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, 61.0, last.Note)

	r.Reset()
	assert.Equal(t, 0, r.Len())
}

func TestRecordingCapacityEvictsOldest(t *testing.T) {
	r := NewRecording(5)
	for i := 0; i < 12; i++ {
		r.Append(NotePoint{Time: float64(i), Note: 60})
	}
	require.Equal(t, 5, r.Len())
	assert.Equal(t, 7.0, r.Points()[0].Time)
}

func TestSliceSortedMatchesLinearScan(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	points := make([]NotePoint, 5000)
	now := 0.0
	for i := range points {
		now += rng.Float64() * 0.03
		points[i] = NotePoint{Time: now, Note: 60}
	}

	for trial := 0; trial < 200; trial++ {
		t0 := rng.Float64()*now*1.2 - now*0.1
		t1 := t0 + rng.Float64()*20
		lo, hi := SliceSorted(points, t0, t1)
		wantLo, wantHi := linearSlice(points, t0, t1)
		require.Equal(t, wantLo, lo, "window [%v, %v]", t0, t1)
		require.Equal(t, wantHi, hi, "window [%v, %v]", t0, t1)
	}
}

func TestSliceUniformMatchesLinearScan(t *testing.T) {
	step := 256.0 / 44100
	points := uniformPoints(3000, step)
	rng := rand.New(rand.NewSource(3))

	windows := [][2]float64{
		{0, 1}, {-5, 5}, {points[10].Time, points[20].Time},
		{100, 200}, {-10, -1}, {5, 4},
	}
	for i := 0; i < 200; i++ {
		t0 := rng.Float64()*20 - 2
		windows = append(windows, [2]float64{t0, t0 + rng.Float64()*5})
	}

	for _, w := range windows {
		lo, hi := SliceUniform(points, step, w[0], w[1])
		if w[1] < w[0] {
			assert.Equal(t, lo, hi)
			continue
		}
		wantLo, wantHi := linearSlice(points, w[0], w[1])
		require.Equal(t, wantLo, lo, "window %v", w)
		require.Equal(t, wantHi, hi, "window %v", w)
	}
}

func TestSegmentsBreakAtGaps(t *testing.T) {
	points := []NotePoint{
		Gap(0), {Time: 1, Note: 60}, {Time: 2, Note: 61}, Gap(3),
		{Time: 4, Note: math.Inf(1)}, {Time: 5, Note: 62}, Gap(6), {Time: 7, Note: 63},
	}
	segs := Segments(points)
	require.Len(t, segs, 3)
	assert.Len(t, segs[0], 2)
	assert.Equal(t, 62.0, segs[1][0].Note)
	assert.Equal(t, 63.0, segs[2][0].Note)

	assert.Empty(t, Segments([]NotePoint{Gap(0), Gap(1)}))
}

func TestFullViewUnzoomedSpansEverything(t *testing.T) {
	a := NewAligner(DefaultConfig())
	for _, scroll := range []float64{0, 0.3, 0.5, 1} {
		w := a.Window(ViewState{Mode: Full, Zoom: 1, Scroll: scroll}, 42.5, 7)
		assert.Equal(t, 0.0, w.Start)
		assert.Equal(t, 42.5, w.End)
		assert.Equal(t, 42.5, w.Duration)
		assert.False(t, w.Live)
	}
}

func TestFullViewZoomAndScroll(t *testing.T) {
	a := NewAligner(DefaultConfig())
	w := a.Window(ViewState{Mode: Full, Zoom: 4, Scroll: 0.5}, 40, 0)
	assert.Equal(t, 10.0, w.Duration)
	assert.Equal(t, 15.0, w.Start)
	assert.Equal(t, 25.0, w.End)

	w = a.Window(ViewState{Mode: Full, Zoom: 4, Scroll: 1}, 40, 0)
	assert.Equal(t, 40.0, w.End)

	// out of range inputs are clamped
	w = a.Window(ViewState{Mode: Full, Zoom: 500, Scroll: 2}, 100, 0)
	assert.Equal(t, 2.0, w.Duration)
	assert.Equal(t, 100.0, w.End)

	// nothing loaded falls back to the default extent
	w = a.Window(ViewState{Mode: Full, Zoom: 1}, 0, 0)
	assert.Equal(t, 10.0, w.Duration)
}

func TestFollowViewCentresOnNow(t *testing.T) {
	a := NewAligner(DefaultConfig())
	w := a.Window(ViewState{Mode: Follow, Zoom: 7}, 100, 30)
	assert.Equal(t, Window{Start: 25, End: 35, Duration: 10}, w)
}

func TestWheel(t *testing.T) {
	a := NewAligner(DefaultConfig())
	v := DefaultViewState()
	v.Mode = Full

	v = a.Wheel(v, -100)
	assert.Equal(t, 1.5, v.Zoom)
	v = a.Wheel(v, 3)
	v = a.Wheel(v, 3)
	assert.Equal(t, 1.0, v.Zoom)

	v.Zoom = 49.8
	v = a.Wheel(v, -1)
	assert.Equal(t, 50.0, v.Zoom)
}

func TestAlignSlicesTracksAndRecording(t *testing.T) {
	a := NewAligner(DefaultConfig())
	step := 0.01
	track := uniformPoints(2000, step) // 0 .. 19.99 s
	track[500] = Gap(track[500].Time)

	var rec []NotePoint
	for i := 0; i < 600; i++ {
		rec = append(rec, NotePoint{Time: float64(i) / 60, Note: 70})
	}

	view := ViewState{Mode: Full, Zoom: 2, Scroll: 0}
	al := a.Align(view, 20, 0, []Series{{ID: "a", Points: track, Step: step}}, rec)

	assert.Equal(t, Window{Start: 0, End: 10, Duration: 10}, al.Window)
	require.Len(t, al.Tracks, 1)
	tr := al.Tracks[0]
	assert.Equal(t, 0, tr.Lo)
	assert.Equal(t, 1001, tr.Hi)
	assert.Len(t, tr.Segments, 2, "gap at index 500 splits the line")

	require.NotNil(t, al.Recording)
	assert.Equal(t, 600, al.Recording.Hi-al.Recording.Lo)
	assert.Equal(t, Range{Low: 58, High: 73}, al.NoteRange)
	assert.NotEmpty(t, al.Ticks)
	assert.NotEmpty(t, al.Grid)
}

func TestLiveViewAnchorsNewestAtCentre(t *testing.T) {
	a := NewAligner(DefaultConfig())
	h := NewHistory(600)
	for i := 0; i < 600; i++ {
		h.Push(60 + float64(i%3))
	}

	al := a.Live(h)
	assert.True(t, al.Window.Live)
	assert.Equal(t, -5.0, al.Window.Start)
	assert.Equal(t, 5.0, al.Window.End)

	pts := al.Tracks[0].Points
	// 300 ticks fit into the five seconds before now, plus now itself
	require.Len(t, pts, 301)
	assert.Equal(t, 0.0, pts[len(pts)-1].Time)
	assert.Equal(t, h.At(599).Note, pts[len(pts)-1].Note)
	assert.InDelta(t, -5.0, pts[0].Time, 1e-9)
	assert.Equal(t, "-5.0s", al.Ticks[0].Label)
	assert.Equal(t, "+5.0s", al.Ticks[len(al.Ticks)-1].Label)
}

func TestNoteRange(t *testing.T) {
	a := NewAligner(DefaultConfig())
	assert.Equal(t, Range{Low: 57, High: 81}, a.NoteRange(EmptyRange()))
	assert.Equal(t, Range{Low: 58, High: 80}, a.NoteRange(Range{Low: 60, High: 78}))
	// narrow ranges widen to an octave around their centre
	assert.Equal(t, Range{Low: 63, High: 75}, a.NoteRange(Range{Low: 69, High: 69}))
}

func TestRangeHelpers(t *testing.T) {
	r := EmptyRange()
	assert.True(t, r.Empty())
	assert.Equal(t, 0.0, r.Span())
	r = r.Include(math.NaN()).Include(62).Include(60)
	assert.Equal(t, Range{Low: 60, High: 62}, r)
	assert.Equal(t, Range{Low: 55, High: 62}, r.Union(Range{Low: 55, High: 56}))
	assert.Equal(t, r, r.Union(EmptyRange()))
}

func TestTickInterval(t *testing.T) {
	assert.Equal(t, 0.2, TickInterval(1.5))
	assert.Equal(t, 2.0, TickInterval(10))
	assert.Equal(t, 15.0, TickInterval(100))
	assert.Equal(t, 300.0, TickInterval(100000))
}

func TestTicksOnRoundTimes(t *testing.T) {
	ticks := Ticks(Window{Start: 3.3, End: 13.3, Duration: 10})
	require.NotEmpty(t, ticks)
	assert.Equal(t, 4.0, ticks[0].Time)
	assert.Equal(t, "4.0s", ticks[0].Label)
	assert.Equal(t, 12.0, ticks[len(ticks)-1].Time)
	assert.Nil(t, Ticks(Window{}))
}

func TestFormatTime(t *testing.T) {
	assert.Equal(t, "5.2s", FormatTime(5.25))
	assert.Equal(t, "0.0s", FormatTime(0))
	assert.Equal(t, "1:05", FormatTime(65.9))
	assert.Equal(t, "-2.5s", FormatTime(-2.5))
	assert.Equal(t, "0:00", FormatTime(math.NaN()))
}

func TestGridLines(t *testing.T) {
	lines := GridLines(Range{Low: 59.5, High: 62.2})
	require.Len(t, lines, 3)
	assert.Equal(t, 60, lines[0].Note)
	assert.True(t, lines[0].IsC)
	assert.Equal(t, "C4", lines[0].Label)
	assert.Equal(t, "C#4", lines[1].Label, "narrow ranges label every note")

	wide := GridLines(Range{Low: 48, High: 84})
	labeled := 0
	for _, l := range wide {
		if l.Labeled {
			labeled++
		}
	}
	// C, F and A over three octaves plus the top C
	assert.Equal(t, 10, labeled)
}

func TestNotePointJSON(t *testing.T) {
	data, err := json.Marshal([]NotePoint{{Time: 1, Note: 60.5}, Gap(2)})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"t":1,"n":60.5},{"t":2,"n":null}]`, string(data))

	var back []NotePoint
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back[0].Valid())
	assert.False(t, back[1].Valid())

	data, err = json.Marshal(EmptyRange())
	require.NoError(t, err)
	assert.Equal(t, "null", string(data))
}

func TestModeText(t *testing.T) {
	data, err := json.Marshal(ViewState{Mode: Full, Zoom: 2})
	require.NoError(t, err)
	assert.JSONEq(t, `{"mode":"full","zoom":2,"scroll":0}`, string(data))

	var v ViewState
	assert.Error(t, json.Unmarshal([]byte(`{"mode":"sideways"}`), &v))
}
