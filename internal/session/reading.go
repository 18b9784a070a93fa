package session

import (
	"github.com/0xlemi/tunetrace/internal/pitch"
)

// poorSignalClarity is the raw clarity under which a pitched reading is
// flagged as unreliable.
const poorSignalClarity = 0.8

// Reading is the outcome of one tick.
type Reading struct {
	Time      float64        `json:"time"` // seconds since listening started
	Estimate  pitch.Estimate `json:"estimate"`
	Frequency float64        `json:"frequency_hz"` // stabilized, 0 when none
	Pitched   bool           `json:"pitched"`
	Note      pitch.Note     `json:"note"`
	Accuracy  pitch.Accuracy `json:"accuracy"`
	Needle    float64        `json:"needle"`
	// PoorSignal marks a shown pitch backed by a weak raw detection.
	PoorSignal bool `json:"poor_signal"`
}

func newReading(t float64, est pitch.Estimate, freq float64) Reading {
	r := Reading{Time: t, Estimate: est, Needle: pitch.NeedlePosition(0)}

	note, ok := pitch.FrequencyToNote(freq)
	if !ok {
		return r
	}
	r.Frequency = freq
	r.Pitched = true
	r.Note = note
	r.Accuracy = pitch.AccuracyOf(float64(note.Cents))
	r.Needle = pitch.NeedlePosition(float64(note.Cents))
	r.PoorSignal = est.Clarity < poorSignalClarity
	return r
}
