package contour

import (
	"errors"
	"fmt"
	"regexp"
	"sync"

	"github.com/0xlemi/tunetrace/internal/timeline"
	"github.com/google/uuid"
)

// Errors
var (
	ErrTrackNotFound = errors.New("track not found")
	ErrInvalidColor  = errors.New("invalid track color")
)

// DefaultColors is the palette new tracks cycle through.
var DefaultColors = []string{"#ef4444", "#3b82f6", "#22c55e", "#eab308", "#a855f7", "#ec4899", "#06b6d4"}

var hexColor = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Track is an analysed recording. Points, Step, Duration and Range never
// change after creation; Name and Color may be edited.
type Track struct {
	ID       uuid.UUID            `json:"id"`
	Name     string               `json:"name"`
	Color    string               `json:"color"`
	Duration float64              `json:"duration"`
	Step     float64              `json:"step"`
	Range    timeline.Range       `json:"note_range"`
	Points   []timeline.NotePoint `json:"points,omitempty"`
}

// Series exposes the track to the aligner.
func (t Track) Series() timeline.Series {
	return timeline.Series{ID: t.ID.String(), Points: t.Points, Step: t.Step}
}

// Summary returns the track without its points.
func (t Track) Summary() Track {
	t.Points = nil
	return t
}

// Library holds the imported tracks in insertion order. It is safe for
// concurrent use.
type Library struct {
	mu      sync.RWMutex
	tracks  []*Track
	palette []string
}

// NewLibrary creates an empty library. An empty palette uses DefaultColors.
func NewLibrary(palette []string) *Library {
	if len(palette) == 0 {
		palette = DefaultColors
	}
	return &Library{palette: palette}
}

// Add stores an extracted contour as a new track and returns it. The
// color is picked from the palette by position.
func (l *Library) Add(name string, res Result, duration float64) Track {
	l.mu.Lock()
	defer l.mu.Unlock()

	t := &Track{
		ID:       uuid.New(),
		Name:     name,
		Color:    l.palette[len(l.tracks)%len(l.palette)],
		Duration: duration,
		Step:     res.Step,
		Range:    res.Range,
		Points:   res.Points,
	}
	l.tracks = append(l.tracks, t)
	return *t
}

// Get returns the track with id.
func (l *Library) Get(id uuid.UUID) (Track, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	i := l.indexOf(id)
	if i < 0 {
		return Track{}, fmt.Errorf("%w: %s", ErrTrackNotFound, id)
	}
	return *l.tracks[i], nil
}

// Tracks returns all tracks in insertion order.
func (l *Library) Tracks() []Track {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Track, len(l.tracks))
	for i, t := range l.tracks {
		out[i] = *t
	}
	return out
}

// Len returns the number of tracks.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.tracks)
}

// Rename changes the display name of a track.
func (l *Library) Rename(id uuid.UUID, name string) error {
	return l.edit(id, func(t *Track) error {
		t.Name = name
		return nil
	})
}

// Recolor changes the color of a track. Colors are "#rrggbb".
func (l *Library) Recolor(id uuid.UUID, color string) error {
	if !hexColor.MatchString(color) {
		return fmt.Errorf("%w: %q", ErrInvalidColor, color)
	}
	return l.edit(id, func(t *Track) error {
		t.Color = color
		return nil
	})
}

// Remove deletes a track.
func (l *Library) Remove(id uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrTrackNotFound, id)
	}
	l.tracks = append(l.tracks[:i], l.tracks[i+1:]...)
	return nil
}

// MaxDuration returns the longest track duration, 0 when empty.
func (l *Library) MaxDuration() float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()

	longest := 0.0
	for _, t := range l.tracks {
		longest = max(longest, t.Duration)
	}
	return longest
}

// Series returns every track as aligner input.
func (l *Library) Series() []timeline.Series {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]timeline.Series, len(l.tracks))
	for i, t := range l.tracks {
		out[i] = t.Series()
	}
	return out
}

func (l *Library) edit(id uuid.UUID, fn func(*Track) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := l.indexOf(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrTrackNotFound, id)
	}
	return fn(l.tracks[i])
}

func (l *Library) indexOf(id uuid.UUID) int {
	for i, t := range l.tracks {
		if t.ID == id {
			return i
		}
	}
	return -1
}
