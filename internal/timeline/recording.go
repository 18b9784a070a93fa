package timeline

import (
	"math"
	"sort"
)

// Recording is a time-ordered, append-only capture of live points made
// while comparing against imported tracks. Once full the oldest points are
// evicted.
type Recording struct {
	points   []NotePoint
	capacity int
}

// NewRecording creates a recording holding at most capacity points. A
// capacity of zero or less means unbounded.
func NewRecording(capacity int) *Recording {
	return &Recording{capacity: capacity}
}

// Append adds p. Points before time zero or earlier than the last point
// are rejected so the sequence stays sorted.
func (r *Recording) Append(p NotePoint) bool {
	if p.Time < 0 {
		return false
	}
	if n := len(r.points); n > 0 && p.Time < r.points[n-1].Time {
		return false
	}

	r.points = append(r.points, p)
	if r.capacity > 0 && len(r.points) > r.capacity {
		over := len(r.points) - r.capacity
		r.points = append(r.points[:0], r.points[over:]...)
	}
	return true
}

// Points returns the recorded points. The slice must not be modified.
func (r *Recording) Points() []NotePoint {
	return r.points
}

// Len returns the number of recorded points.
func (r *Recording) Len() int { return len(r.points) }

// Last returns the newest point.
func (r *Recording) Last() (NotePoint, bool) {
	if len(r.points) == 0 {
		return NotePoint{}, false
	}
	return r.points[len(r.points)-1], true
}

// Reset empties the recording.
func (r *Recording) Reset() {
	r.points = r.points[:0]
}

// SliceSorted returns the index range [lo, hi) of points whose time lies
// in [start, end], found by binary search.
func SliceSorted(points []NotePoint, start, end float64) (lo, hi int) {
	lo = sort.Search(len(points), func(i int) bool { return points[i].Time >= start })
	hi = sort.Search(len(points), func(i int) bool { return points[i].Time > end })
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// SliceUniform returns the same index range as SliceSorted for points laid
// out on a uniform grid (time = first + i*step), using index arithmetic.
func SliceUniform(points []NotePoint, step, start, end float64) (lo, hi int) {
	n := len(points)
	if n == 0 || math.IsNaN(start) || math.IsNaN(end) || end < start {
		return 0, 0
	}
	if n == 1 || !(step > 0) {
		return SliceSorted(points, start, end)
	}

	origin := points[0].Time
	lo = clampIndex(int((start-origin)/step), n)
	hi = clampIndex(int((end-origin)/step)+1, n)

	// Nudge past rounding at the boundaries.
	for lo > 0 && points[lo-1].Time >= start {
		lo--
	}
	for lo < n && points[lo].Time < start {
		lo++
	}
	for hi > 0 && points[hi-1].Time > end {
		hi--
	}
	for hi < n && points[hi].Time <= end {
		hi++
	}
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

// Segments splits points at gaps into the runs a renderer may connect.
// Each run is a sub-slice of points.
func Segments(points []NotePoint) [][]NotePoint {
	var segments [][]NotePoint
	start := -1
	for i, p := range points {
		if p.Valid() {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			segments = append(segments, points[start:i])
			start = -1
		}
	}
	if start >= 0 {
		segments = append(segments, points[start:])
	}
	return segments
}
