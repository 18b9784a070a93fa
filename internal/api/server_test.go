package api

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/0xlemi/tunetrace/internal/config"
	"github.com/0xlemi/tunetrace/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func toneWAV(t *testing.T, freq float64, sampleRate, n int) []byte {
	t.Helper()

	var data bytes.Buffer
	for i := 0; i < n; i++ {
		v := int16(0.5 * math.MaxInt16 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)))
		require.NoError(t, binary.Write(&data, binary.LittleEndian, v))
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
	return buf.Bytes()
}

func newTestServer(t *testing.T) (*Server, *session.Session) {
	t.Helper()
	cfg := config.Default()
	sess := session.New(cfg, nil)
	return NewServer(sess, cfg.Server, nil), sess
}

func do(t *testing.T, s *Server, method, target string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

type trackJSON struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Color    string  `json:"color"`
	Duration float64 `json:"duration"`
	Points   []any   `json:"points"`
}

func upload(t *testing.T, s *Server, name string) trackJSON {
	t.Helper()
	rec := do(t, s, http.MethodPost, "/tracks?name="+name, toneWAV(t, 440, 22050, 44100))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var tr trackJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tr))
	return tr
}

func TestUploadOverLimit(t *testing.T) {
	cfg := config.Default()
	cfg.Server.MaxUploadBytes = 1024
	s := NewServer(session.New(cfg, nil), cfg.Server, nil)

	rec := do(t, s, http.MethodPost, "/tracks?name=big", toneWAV(t, 440, 22050, 4096))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	rec = do(t, s, http.MethodGet, "/tracks", nil)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestUploadSilenceHasNoPitch(t *testing.T) {
	s, _ := newTestServer(t)

	rec := do(t, s, http.MethodPost, "/tracks?name=quiet", toneWAV(t, 0, 22050, 22050))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var tr trackJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tr))

	rec = do(t, s, http.MethodGet, "/tracks/"+tr.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var full trackJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &full))
	require.NotEmpty(t, full.Points)
	for _, p := range full.Points {
		require.Nil(t, p.(map[string]any)["n"])
	}
}

func TestUploadAndList(t *testing.T) {
	s, _ := newTestServer(t)

	tr := upload(t, s, "scale")
	assert.Equal(t, "scale", tr.Name)
	assert.Equal(t, "#ef4444", tr.Color)
	assert.InDelta(t, 2.0, tr.Duration, 1e-9)
	assert.Empty(t, tr.Points)

	rec := do(t, s, http.MethodGet, "/tracks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []trackJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, tr.ID, list[0].ID)

	rec = do(t, s, http.MethodGet, "/tracks/"+tr.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var full trackJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &full))
	assert.NotEmpty(t, full.Points)
}

func TestUploadRejectsGarbage(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodPost, "/tracks", []byte("definitely not audio"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "error")
}

func TestUpdateTrack(t *testing.T) {
	s, _ := newTestServer(t)
	tr := upload(t, s, "a")

	rec := do(t, s, http.MethodPatch, "/tracks/"+tr.ID, []byte(`{"name":"lead","color":"#3b82f6"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got trackJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "lead", got.Name)
	assert.Equal(t, "#3b82f6", got.Color)

	rec = do(t, s, http.MethodPatch, "/tracks/"+tr.ID, []byte(`{"color":"blue"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, s, http.MethodPatch, "/tracks/"+tr.ID, []byte(`{`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteTrack(t *testing.T) {
	s, _ := newTestServer(t)
	tr := upload(t, s, "a")

	rec := do(t, s, http.MethodDelete, "/tracks/"+tr.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, s, http.MethodDelete, "/tracks/"+tr.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, s, http.MethodGet, "/tracks/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type windowJSON struct {
	Window struct {
		Start    float64 `json:"start"`
		End      float64 `json:"end"`
		Duration float64 `json:"duration"`
		Live     bool    `json:"live"`
	} `json:"window"`
	Tracks []struct {
		ID       string  `json:"id"`
		Segments [][]any `json:"segments"`
	} `json:"tracks"`
	Ticks []struct {
		Label string `json:"label"`
	} `json:"ticks"`
}

func TestWindowQuery(t *testing.T) {
	s, _ := newTestServer(t)
	tr := upload(t, s, "a")

	rec := do(t, s, http.MethodGet, "/window?mode=full&zoom=2&scroll=1", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var win windowJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &win))
	assert.InDelta(t, 1.0, win.Window.Start, 1e-9)
	assert.InDelta(t, 2.0, win.Window.End, 1e-9)
	assert.False(t, win.Window.Live)
	require.Len(t, win.Tracks, 1)
	assert.Equal(t, tr.ID, win.Tracks[0].ID)
	assert.NotEmpty(t, win.Tracks[0].Segments)
	assert.NotEmpty(t, win.Ticks)

	rec = do(t, s, http.MethodGet, "/window?mode=follow&now=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &win))
	assert.InDelta(t, -4.0, win.Window.Start, 1e-9)
	assert.InDelta(t, 6.0, win.Window.End, 1e-9)
}

func TestWindowLiveWithoutTracks(t *testing.T) {
	s, _ := newTestServer(t)
	rec := do(t, s, http.MethodGet, "/window", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var win windowJSON
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &win))
	assert.True(t, win.Window.Live)
	assert.InDelta(t, -5.0, win.Window.Start, 1e-9)
}

func TestWindowBadParams(t *testing.T) {
	s, _ := newTestServer(t)
	for _, q := range []string{"mode=sideways", "zoom=abc", "now=NaN", "scroll=Inf"} {
		rec := do(t, s, http.MethodGet, "/window?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestState(t *testing.T) {
	s, sess := newTestServer(t)
	require.NoError(t, sess.Start())

	rec := do(t, s, http.MethodGet, "/state", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, strings.Contains(rec.Body.String(), `"listening":true`))
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/tracks", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
