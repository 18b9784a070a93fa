// Package timeline aligns pitch streams against a visible time range.
//
// Every stream is a time-ordered sequence of NotePoint. A point whose note
// is NaN or infinite is a gap: consumers must not draw across it.
package timeline

import (
	"encoding/json"
	"math"
)

// NotePoint is a note number observed at a time offset in seconds.
type NotePoint struct {
	Time float64
	Note float64
}

// Gap returns a point with no note at t.
func Gap(t float64) NotePoint {
	return NotePoint{Time: t, Note: math.NaN()}
}

// Valid reports whether the point carries a finite note.
func (p NotePoint) Valid() bool {
	return !math.IsNaN(p.Note) && !math.IsInf(p.Note, 0)
}

type jsonPoint struct {
	T float64  `json:"t"`
	N *float64 `json:"n"`
}

// MarshalJSON encodes gaps as a null note.
func (p NotePoint) MarshalJSON() ([]byte, error) {
	jp := jsonPoint{T: p.Time}
	if p.Valid() {
		n := p.Note
		jp.N = &n
	}
	return json.Marshal(jp)
}

// UnmarshalJSON decodes a null note as a gap.
func (p *NotePoint) UnmarshalJSON(data []byte) error {
	var jp jsonPoint
	if err := json.Unmarshal(data, &jp); err != nil {
		return err
	}
	p.Time = jp.T
	p.Note = math.NaN()
	if jp.N != nil {
		p.Note = *jp.N
	}
	return nil
}

// Range is a closed interval of note numbers. The zero value is not empty;
// use EmptyRange to start accumulating.
type Range struct {
	Low  float64
	High float64
}

// EmptyRange returns a range that contains nothing.
func EmptyRange() Range {
	return Range{Low: math.Inf(1), High: math.Inf(-1)}
}

// Empty reports whether no value has been included.
func (r Range) Empty() bool {
	return !(r.Low <= r.High)
}

// Include widens r to cover v. Non-finite values are ignored.
func (r Range) Include(v float64) Range {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return r
	}
	r.Low = math.Min(r.Low, v)
	r.High = math.Max(r.High, v)
	return r
}

// Union returns the smallest range covering r and o.
func (r Range) Union(o Range) Range {
	if o.Empty() {
		return r
	}
	if r.Empty() {
		return o
	}
	return Range{Low: math.Min(r.Low, o.Low), High: math.Max(r.High, o.High)}
}

// Span returns High-Low, or 0 when empty.
func (r Range) Span() float64 {
	if r.Empty() {
		return 0
	}
	return r.High - r.Low
}

// MarshalJSON encodes an empty range as null.
func (r Range) MarshalJSON() ([]byte, error) {
	if r.Empty() {
		return []byte("null"), nil
	}
	return json.Marshal(struct {
		Low  float64 `json:"low"`
		High float64 `json:"high"`
	}{r.Low, r.High})
}

// RangeOf returns the range of the valid notes in points.
func RangeOf(points []NotePoint) Range {
	r := EmptyRange()
	for _, p := range points {
		if p.Valid() {
			r = r.Include(p.Note)
		}
	}
	return r
}
