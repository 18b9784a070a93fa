package pitch

import "math"

// Reference tuning: note number 69 is A4 at 440 Hz.
const (
	ReferenceNote      = 69.0
	ReferenceFrequency = 440.0
)

// Note represents a musical note
type Note struct {
	Name      string  `json:"name"`      // e.g., "A", "A#", "B"
	Octave    int     `json:"octave"`    // e.g., 4 for middle C (C4)
	Number    float64 `json:"number"`    // continuous note number, 69 = A4
	Frequency float64 `json:"frequency"` // Frequency in Hz
	Cents     int     `json:"cents"`     // deviation from the nearest equal-tempered note
}

// All note names in chromatic order
var noteNames = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// NoteName returns the pitch class name of an integer note number.
func NoteName(n int) string {
	return noteNames[((n%12)+12)%12]
}

// NoteNumber converts a frequency to a continuous note number. Non-positive
// or non-finite input yields NaN.
func NoteNumber(frequency float64) float64 {
	if !(frequency > 0) || math.IsInf(frequency, 0) {
		return math.NaN()
	}
	return ReferenceNote + 12*math.Log2(frequency/ReferenceFrequency)
}

// Frequency converts a note number back to Hz.
func Frequency(noteNumber float64) float64 {
	return ReferenceFrequency * math.Pow(2, (noteNumber-ReferenceNote)/12)
}

// FrequencyToNote names the note closest to frequency and reports how many
// cents (rounded down) it sits above or below it.
func FrequencyToNote(frequency float64) (Note, bool) {
	number := NoteNumber(frequency)
	if math.IsNaN(number) {
		return Note{}, false
	}

	rounded := int(math.Round(number))
	target := Frequency(float64(rounded))
	cents := int(math.Floor(1200 * math.Log2(frequency/target)))

	return Note{
		Name:      NoteName(rounded),
		Octave:    floorDiv(rounded, 12) - 1,
		Number:    number,
		Frequency: frequency,
		Cents:     cents,
	}, true
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
