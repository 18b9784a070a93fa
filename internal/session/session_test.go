package session

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/0xlemi/tunetrace/internal/audio"
	"github.com/0xlemi/tunetrace/internal/config"
	"github.com/0xlemi/tunetrace/internal/pitch"
	"github.com/0xlemi/tunetrace/internal/timeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRate = 44100

func sine(freq float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/sampleRate)
	}
	return out
}

func toneFrame(freq float64) audio.Frame {
	return audio.Frame{Samples: sine(freq, 2048), SampleRate: sampleRate}
}

func silentFrame() audio.Frame {
	return audio.Frame{Samples: make([]float64, 2048), SampleRate: sampleRate}
}

func writeWAV(t *testing.T, path string, samples []float64) {
	t.Helper()

	var data bytes.Buffer
	for _, s := range samples {
		require.NoError(t, binary.Write(&data, binary.LittleEndian, int16(s*math.MaxInt16)))
	}

	var buf bytes.Buffer
	w := func(v any) { require.NoError(t, binary.Write(&buf, binary.LittleEndian, v)) }
	buf.WriteString("RIFF")
	w(uint32(36 + data.Len()))
	buf.WriteString("WAVEfmt ")
	w(uint32(16))
	w(uint16(1))
	w(uint16(1))
	w(uint32(sampleRate))
	w(uint32(sampleRate * 2))
	w(uint16(2))
	w(uint16(16))
	buf.WriteString("data")
	w(uint32(data.Len()))
	buf.Write(data.Bytes())

	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func importTone(t *testing.T, s *Session, seconds float64) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tone.wav")
	writeWAV(t, path, sine(440, int(seconds*sampleRate)))
	results := s.Import(context.Background(), []string{path})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
}

func TestStartStopErrors(t *testing.T) {
	s := New(config.Default(), nil)

	_, err := s.Tick(toneFrame(440))
	assert.ErrorIs(t, err, ErrNotListening)
	assert.ErrorIs(t, s.Stop(), ErrNotListening)

	require.NoError(t, s.Start())
	assert.True(t, s.Listening())
	assert.ErrorIs(t, s.Start(), ErrAlreadyListening)

	require.NoError(t, s.Stop())
	assert.False(t, s.Listening())
}

func TestTickLiveHistory(t *testing.T) {
	s := New(config.Default(), nil)
	require.NoError(t, s.Start())

	var r Reading
	for i := 0; i < 10; i++ {
		var err error
		r, err = s.Tick(toneFrame(440))
		require.NoError(t, err)
	}

	require.True(t, r.Pitched)
	assert.Equal(t, "A", r.Note.Name)
	assert.Equal(t, 4, r.Note.Octave)
	assert.InDelta(t, 440, r.Frequency, 4)
	assert.Equal(t, pitch.AccuracyInTune, r.Accuracy)
	assert.False(t, r.PoorSignal)
	assert.InDelta(t, 9*735.0/sampleRate, r.Time, 1e-9)

	snap := s.Snapshot()
	assert.True(t, snap.Listening)
	assert.False(t, snap.Armed)
	assert.True(t, snap.Alignment.Window.Live)
	require.Len(t, snap.Alignment.Tracks, 1)
	assert.Len(t, snap.Alignment.Tracks[0].Points, 10)
	assert.InDelta(t, 69, snap.Alignment.Tracks[0].Points[9].Note, 0.2)
}

func TestSilenceHoldsDisplay(t *testing.T) {
	s := New(config.Default(), nil)
	require.NoError(t, s.Start())

	for i := 0; i < 7; i++ {
		_, err := s.Tick(toneFrame(440))
		require.NoError(t, err)
	}
	var r Reading
	for i := 0; i < 4; i++ {
		r, _ = s.Tick(silentFrame())
	}

	assert.False(t, r.Pitched)
	assert.Equal(t, 50.0, r.Needle)

	snap := s.Snapshot()
	assert.False(t, snap.Reading.Pitched)
	assert.True(t, snap.Display.Pitched)
	assert.Equal(t, "A", snap.Display.Note.Name)

	require.NoError(t, s.Stop())
	snap = s.Snapshot()
	assert.False(t, snap.Display.Pitched)
	require.Len(t, snap.Alignment.Tracks, 1)
	assert.Empty(t, snap.Alignment.Tracks[0].Points)
}

func TestImportSwitchesToFullView(t *testing.T) {
	s := New(config.Default(), nil)
	assert.Equal(t, timeline.Follow, s.View().Mode)

	importTone(t, s, 2)
	snap := s.Snapshot()
	assert.Equal(t, timeline.Full, snap.View.Mode)
	assert.True(t, snap.Armed)
	require.Len(t, snap.Tracks, 1)
	assert.Nil(t, snap.Tracks[0].Points)

	w := snap.Alignment.Window
	assert.InDelta(t, 0, w.Start, 1e-9)
	assert.InDelta(t, 2, w.End, 1e-9)
	require.Len(t, snap.Alignment.Tracks, 1)
	assert.NotEmpty(t, snap.Alignment.Tracks[0].Segments)
}

func TestImportFailureKeepsView(t *testing.T) {
	s := New(config.Default(), nil)
	results := s.Import(context.Background(), []string{filepath.Join(t.TempDir(), "missing.wav")})
	require.Len(t, results, 1)
	assert.Error(t, results[0].Err)
	assert.Equal(t, timeline.Follow, s.View().Mode)
	assert.Zero(t, s.Library().Len())
}

func TestRecordingWhileArmed(t *testing.T) {
	s := New(config.Default(), nil)
	importTone(t, s, 1)

	require.NoError(t, s.Start())
	assert.Equal(t, timeline.Follow, s.View().Mode)
	for i := 0; i < 5; i++ {
		_, err := s.Tick(toneFrame(440))
		require.NoError(t, err)
	}

	snap := s.Snapshot()
	assert.False(t, snap.Alignment.Window.Live)
	require.NotNil(t, snap.Alignment.Recording)
	assert.Len(t, snap.Alignment.Recording.Points, 5)
	assert.InDelta(t, 5*735.0/sampleRate, snap.Now, 1e-9)
	assert.InDelta(t, snap.Now-5, snap.Alignment.Window.Start, 1e-9)

	require.NoError(t, s.Stop())
	assert.InDelta(t, 4*735.0/sampleRate, s.Now(), 1e-9)

	// a new run starts a fresh recording
	require.NoError(t, s.Start())
	_, err := s.Tick(toneFrame(440))
	require.NoError(t, err)
	snap = s.Snapshot()
	require.NotNil(t, snap.Alignment.Recording)
	assert.Len(t, snap.Alignment.Recording.Points, 1)
}

func TestViewControls(t *testing.T) {
	s := New(config.Default(), nil)

	// no tracks, follow mode: wheel is ignored
	assert.Equal(t, 1.0, s.Wheel(-1).Zoom)

	importTone(t, s, 1)
	v := s.Wheel(-1)
	assert.Equal(t, 1.5, v.Zoom)
	v = s.Wheel(1)
	assert.Equal(t, 1.0, v.Zoom)

	assert.Equal(t, 1.0, s.Scroll(3).Scroll)
	assert.Equal(t, 0.0, s.Scroll(-1).Scroll)

	assert.Equal(t, timeline.Follow, s.ToggleFull().Mode)
	assert.Equal(t, timeline.Full, s.ToggleFull().Mode)

	require.NoError(t, s.Start())
	assert.Equal(t, timeline.Follow, s.ToggleFull().Mode)
	assert.Equal(t, 1.0, s.Wheel(-1).Zoom)
}

func TestAlignAt(t *testing.T) {
	s := New(config.Default(), nil)
	importTone(t, s, 4)

	a := s.AlignAt(timeline.ViewState{Mode: timeline.Full, Zoom: 2, Scroll: 1}, 0)
	assert.InDelta(t, 2, a.Window.Start, 1e-9)
	assert.InDelta(t, 4, a.Window.End, 1e-9)

	a = s.AlignAt(timeline.ViewState{Mode: timeline.Follow, Zoom: 1}, 3)
	assert.InDelta(t, -2, a.Window.Start, 1e-9)
	assert.InDelta(t, 8, a.Window.End, 1e-9)
}

func TestTrackEdits(t *testing.T) {
	s := New(config.Default(), nil)
	importTone(t, s, 1)
	id := s.Library().Tracks()[0].ID

	require.NoError(t, s.RenameTrack(id, "reference"))
	require.NoError(t, s.RecolorTrack(id, "#ffffff"))
	tr, err := s.Library().Get(id)
	require.NoError(t, err)
	assert.Equal(t, "reference", tr.Name)
	assert.Equal(t, "#ffffff", tr.Color)

	require.NoError(t, s.RemoveTrack(id))
	assert.Error(t, s.RemoveTrack(id))

	snap := s.Snapshot()
	assert.False(t, snap.Armed)
	assert.True(t, snap.Alignment.Window.Live)
}

func TestRunDrainsChannel(t *testing.T) {
	s := New(config.Default(), nil)
	require.NoError(t, s.Start())

	frames := make(chan audio.Frame, 3)
	for i := 0; i < 3; i++ {
		frames <- toneFrame(440)
	}
	close(frames)

	var got []Reading
	require.NoError(t, s.Run(context.Background(), frames, func(r Reading) {
		got = append(got, r)
	}))
	assert.Len(t, got, 3)
}

func TestRunCancelled(t *testing.T) {
	s := New(config.Default(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Run(ctx, make(chan audio.Frame), nil), context.Canceled)
}

func TestListenReplay(t *testing.T) {
	cfg := config.Default()
	s := New(cfg, nil)

	buf := audio.AudioBuffer{Samples: sine(440, sampleRate), SampleRate: sampleRate}
	capture := audio.NewReplayCapturer(buf, cfg.Audio, false)

	pitched := 0
	total := 0
	require.NoError(t, s.Listen(context.Background(), capture, func(r Reading) {
		total++
		if r.Pitched {
			pitched++
		}
	}))

	assert.Equal(t, 58, total)
	assert.Greater(t, pitched, 50)
	assert.False(t, s.Listening())
}
