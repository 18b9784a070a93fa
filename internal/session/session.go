// Package session runs the live analysis loop and owns everything it
// mutates: the stabilizer, the live history, the comparison recording,
// the imported tracks and the view state.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/0xlemi/tunetrace/internal/audio"
	"github.com/0xlemi/tunetrace/internal/config"
	"github.com/0xlemi/tunetrace/internal/contour"
	"github.com/0xlemi/tunetrace/internal/logging"
	"github.com/0xlemi/tunetrace/internal/pitch"
	"github.com/0xlemi/tunetrace/internal/timeline"
	"github.com/google/uuid"
)

// Errors
var (
	ErrNotListening     = errors.New("session is not listening")
	ErrAlreadyListening = errors.New("session is already listening")
)

// Snapshot is a consistent copy of the session state for rendering.
type Snapshot struct {
	Listening bool               `json:"listening"`
	Armed     bool               `json:"armed"`
	Now       float64            `json:"now"`
	Reading   Reading            `json:"reading"`
	Display   Reading            `json:"display"` // last pitched reading, held through silence
	View      timeline.ViewState `json:"view"`
	Tracks    []contour.Track    `json:"tracks"` // without points
	Alignment timeline.Alignment `json:"alignment"`
}

// Session ties detection, stabilization and alignment together. Tick is
// driven by a single consumer; the other methods may be called from any
// goroutine.
type Session struct {
	mu sync.Mutex

	detector   pitch.Detector
	stabilizer *pitch.Stabilizer
	history    *timeline.History
	recording  *timeline.Recording
	aligner    timeline.Aligner
	library    *contour.Library
	importer   *contour.Importer
	log        logging.Logger

	step      float64 // seconds per tick
	listening bool
	ticks     int64
	view      timeline.ViewState
	reading   Reading
	display   Reading
}

// New creates an idle session. A nil logger discards output.
func New(cfg config.Config, logger logging.Logger) *Session {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}

	detector := pitch.NewAutocorrelationDetector(cfg.Detector)
	library := contour.NewLibrary(cfg.Import.Colors)

	step := 0.0
	if cfg.Audio.SampleRate > 0 {
		step = float64(cfg.Audio.HopSize()) / float64(cfg.Audio.SampleRate)
	}

	return &Session{
		detector:   detector,
		stabilizer: pitch.NewStabilizer(cfg.Stabilizer),
		history:    timeline.NewHistory(cfg.Timeline.HistoryCapacity),
		recording:  timeline.NewRecording(cfg.Timeline.RecordingCapacity),
		aligner:    timeline.NewAligner(cfg.Timeline),
		library:    library,
		importer:   contour.NewImporter(contour.NewExtractor(cfg.Contour, detector), library, cfg.Import.Workers),
		log:        logger.WithFields(logging.Fields{"component": "session"}),
		step:       step,
		view:       timeline.DefaultViewState(),
	}
}

// Start begins a listening run. The view switches to follow mode and,
// when tracks are loaded, a fresh comparison recording starts.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listening {
		return ErrAlreadyListening
	}
	s.listening = true
	s.ticks = 0
	s.stabilizer.Reset()
	s.reading, s.display = Reading{}, Reading{}
	s.view.Mode = timeline.Follow
	if s.library.Len() > 0 {
		s.recording.Reset()
	}

	s.log.Info("listening started", logging.Fields{"tracks": s.library.Len()})
	return nil
}

// Stop ends the listening run. The live history and stabilizer are
// cleared; the recording is kept for review.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.listening {
		return ErrNotListening
	}
	s.listening = false
	s.stabilizer.Reset()
	s.history.Clear()
	s.reading, s.display = Reading{}, Reading{}

	s.log.Info("listening stopped", logging.Fields{
		"ticks":     s.ticks,
		"recording": s.recording.Len(),
	})
	return nil
}

// Listening reports whether a run is active.
func (s *Session) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listening
}

// Tick analyses one frame. With tracks loaded the stabilized note goes to
// the recording, otherwise to the live history.
func (s *Session) Tick(frame audio.Frame) (Reading, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.listening {
		return Reading{}, ErrNotListening
	}

	now := float64(s.ticks) * s.step
	s.ticks++

	est := s.detector.Detect(frame)
	note := s.stabilizer.Update(est)
	r := newReading(now, est, s.stabilizer.Frequency())

	if s.library.Len() > 0 {
		s.recording.Append(timeline.NotePoint{Time: now, Note: note})
	} else {
		s.history.Push(note)
	}

	s.reading = r
	if r.Pitched {
		s.display = r
	}
	return r, nil
}

// Run consumes frames until ctx is done or frames is closed. Frames that
// arrive while not listening are dropped. emit, when set, receives every
// reading.
func (s *Session) Run(ctx context.Context, frames <-chan audio.Frame, emit func(Reading)) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case f, ok := <-frames:
			if !ok {
				return nil
			}
			r, err := s.Tick(f)
			if err != nil {
				continue
			}
			if emit != nil {
				emit(r)
			}
		}
	}
}

// Listen starts c, runs the loop on its frames and stops both when ctx is
// done or the capturer runs dry.
func (s *Session) Listen(ctx context.Context, c audio.Capturer, emit func(Reading)) error {
	if err := s.Start(); err != nil {
		return err
	}
	defer func() {
		if err := s.Stop(); err != nil {
			s.log.Warn("stop after listen", logging.Fields{"error": err.Error()})
		}
	}()

	if err := c.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	defer func() {
		if err := c.Stop(); err != nil && !errors.Is(err, audio.ErrCaptureStopped) {
			s.log.Error(err, "stop capture")
		}
	}()

	err := s.Run(ctx, c.Frames(), emit)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Import analyses files into the library. Each file reports its own
// outcome. When at least one file succeeds the view switches to the full
// view.
func (s *Session) Import(ctx context.Context, paths []string) []contour.ImportResult {
	results := s.importer.ImportFiles(ctx, paths)

	added := 0
	for _, res := range results {
		if res.Err != nil {
			s.log.Error(res.Err, "import failed", logging.Fields{"path": res.Path})
			continue
		}
		added++
		s.log.Info("track imported", logging.Fields{
			"path":     res.Path,
			"id":       res.Track.ID.String(),
			"points":   len(res.Track.Points),
			"duration": res.Track.Duration,
		})
	}
	if added > 0 {
		s.showFull()
	}
	return results
}

// ImportReader analyses a single WAV stream into the library.
func (s *Session) ImportReader(name string, r io.Reader) (contour.Track, error) {
	track, err := s.importer.ImportReader(name, r)
	if err != nil {
		s.log.Error(err, "import failed", logging.Fields{"name": name})
		return contour.Track{}, err
	}
	s.log.Info("track imported", logging.Fields{"name": name, "id": track.ID.String()})
	s.showFull()
	return track, nil
}

func (s *Session) showFull() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.listening {
		s.view.Mode = timeline.Full
	}
}

// Library exposes the imported tracks.
func (s *Session) Library() *contour.Library {
	return s.library
}

// RenameTrack changes a track name.
func (s *Session) RenameTrack(id uuid.UUID, name string) error {
	return s.library.Rename(id, name)
}

// RecolorTrack changes a track color.
func (s *Session) RecolorTrack(id uuid.UUID, color string) error {
	return s.library.Recolor(id, color)
}

// RemoveTrack deletes a track.
func (s *Session) RemoveTrack(id uuid.UUID) error {
	if err := s.library.Remove(id); err != nil {
		return err
	}
	s.log.Info("track removed", logging.Fields{"id": id.String()})
	return nil
}

// View returns the current view state.
func (s *Session) View() timeline.ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Wheel zooms the full view. It does nothing while listening, in follow
// mode or without tracks.
func (s *Session) Wheel(deltaY float64) timeline.ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listening || s.view.Mode != timeline.Full || s.library.Len() == 0 {
		return s.view
	}
	s.view = s.aligner.Wheel(s.view, deltaY)
	return s.view
}

// Scroll moves the full view to fraction f of the scrollable range.
func (s *Session) Scroll(f float64) timeline.ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.view.Scroll = f
	s.view = s.aligner.ClampView(s.view)
	return s.view
}

// ToggleFull switches between follow and full view. The mode is locked to
// follow while listening.
func (s *Session) ToggleFull() timeline.ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listening {
		return s.view
	}
	if s.view.Mode == timeline.Full {
		s.view.Mode = timeline.Follow
	} else {
		s.view.Mode = timeline.Full
	}
	return s.view
}

// Now returns the follow-mode centre: the elapsed listening time, or the
// last recorded point when idle.
func (s *Session) Now() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now()
}

func (s *Session) now() float64 {
	if s.listening {
		return float64(s.ticks) * s.step
	}
	if p, ok := s.recording.Last(); ok {
		return p.Time
	}
	return 0
}

// Snapshot copies the state needed to draw one frame.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	tracks := s.library.Tracks()
	for i := range tracks {
		tracks[i] = tracks[i].Summary()
	}

	return Snapshot{
		Listening: s.listening,
		Armed:     len(tracks) > 0,
		Now:       s.now(),
		Reading:   s.reading,
		Display:   s.display,
		View:      s.view,
		Tracks:    tracks,
		Alignment: s.align(s.view, s.now()),
	}
}

// AlignAt computes the alignment for an arbitrary view and centre time.
func (s *Session) AlignAt(v timeline.ViewState, now float64) timeline.Alignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.align(s.aligner.ClampView(v), now)
}

// align picks the live history view when no tracks are loaded. The
// visible recording points are copied since the recording keeps changing
// after the lock is released.
func (s *Session) align(v timeline.ViewState, now float64) timeline.Alignment {
	if s.library.Len() == 0 {
		return s.aligner.Live(s.history)
	}

	a := s.aligner.Align(v, s.library.MaxDuration(), now, s.library.Series(), s.recording.Points())
	if a.Recording != nil {
		rec := *a.Recording
		rec.Points = slices.Clone(rec.Points)
		rec.Segments = timeline.Segments(rec.Points)
		a.Recording = &rec
	}
	return a
}
