// Package api serves tracks and aligned windows over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/0xlemi/tunetrace/internal/audio"
	"github.com/0xlemi/tunetrace/internal/config"
	"github.com/0xlemi/tunetrace/internal/contour"
	"github.com/0xlemi/tunetrace/internal/logging"
	"github.com/0xlemi/tunetrace/internal/session"
	"github.com/0xlemi/tunetrace/internal/timeline"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

const shutdownTimeout = 5 * time.Second

// Backend is the session surface the API exposes.
type Backend interface {
	Library() *contour.Library
	ImportReader(name string, r io.Reader) (contour.Track, error)
	RenameTrack(id uuid.UUID, name string) error
	RecolorTrack(id uuid.UUID, color string) error
	RemoveTrack(id uuid.UUID) error
	View() timeline.ViewState
	Now() float64
	AlignAt(v timeline.ViewState, now float64) timeline.Alignment
	Snapshot() session.Snapshot
}

// Server routes HTTP requests to a Backend.
type Server struct {
	backend Backend
	cfg     config.ServerConfig
	log     logging.Logger
	router  *mux.Router
	handler http.Handler
}

// NewServer builds the router. A nil logger discards output.
func NewServer(backend Backend, cfg config.ServerConfig, logger logging.Logger) *Server {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	s := &Server{
		backend: backend,
		cfg:     cfg,
		log:     logger.WithFields(logging.Fields{"component": "api"}),
		router:  mux.NewRouter().StrictSlash(true),
	}

	s.router.HandleFunc("/tracks", s.handleListTracks).Methods(http.MethodGet)
	s.router.HandleFunc("/tracks", s.handleUploadTrack).Methods(http.MethodPost)
	s.router.HandleFunc("/tracks/{id}", s.handleGetTrack).Methods(http.MethodGet)
	s.router.HandleFunc("/tracks/{id}", s.handleUpdateTrack).Methods(http.MethodPatch)
	s.router.HandleFunc("/tracks/{id}", s.handleDeleteTrack).Methods(http.MethodDelete)
	s.router.HandleFunc("/window", s.handleWindow).Methods(http.MethodGet)
	s.router.HandleFunc("/state", s.handleState).Methods(http.MethodGet)

	s.handler = cors.New(cors.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowedHeaders: []string{"Content-Type"},
	}).Handler(s.router)
	return s
}

// Handler returns the root handler with CORS applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("server listening", logging.Fields{"addr": s.cfg.Addr})
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("server stopped")
	return nil
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Error(err, "encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorBody{Error: err.Error()})
}

// trackID parses the {id} route variable.
func (s *Server) trackID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return uuid.Nil, false
	}
	return id, true
}

func statusOf(err error) int {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, contour.ErrTrackNotFound):
		return http.StatusNotFound
	case errors.Is(err, contour.ErrInvalidColor),
		errors.Is(err, audio.ErrUnsupportedFormat),
		errors.Is(err, audio.ErrEmptyAudio):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleListTracks(w http.ResponseWriter, r *http.Request) {
	tracks := s.backend.Library().Tracks()
	for i := range tracks {
		tracks[i] = tracks[i].Summary()
	}
	s.writeJSON(w, http.StatusOK, tracks)
}

func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	id, ok := s.trackID(w, r)
	if !ok {
		return
	}
	track, err := s.backend.Library().Get(id)
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, track)
}

func (s *Server) handleUploadTrack(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload"
	}

	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	track, err := s.backend.ImportReader(name, body)
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	s.writeJSON(w, http.StatusCreated, track.Summary())
}

type trackUpdate struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

func (s *Server) handleUpdateTrack(w http.ResponseWriter, r *http.Request) {
	id, ok := s.trackID(w, r)
	if !ok {
		return
	}

	var upd trackUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if upd.Color != nil {
		if err := s.backend.RecolorTrack(id, *upd.Color); err != nil {
			s.writeError(w, statusOf(err), err)
			return
		}
	}
	if upd.Name != nil {
		if err := s.backend.RenameTrack(id, *upd.Name); err != nil {
			s.writeError(w, statusOf(err), err)
			return
		}
	}

	track, err := s.backend.Library().Get(id)
	if err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, track.Summary())
}

func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request) {
	id, ok := s.trackID(w, r)
	if !ok {
		return
	}
	if err := s.backend.RemoveTrack(id); err != nil {
		s.writeError(w, statusOf(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleWindow aligns every stream to a view given by query parameters.
// Missing parameters fall back to the session's current view and clock.
func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	v := s.backend.View()
	now := s.backend.Now()

	if m := q.Get("mode"); m != "" {
		mode, ok := timeline.ParseMode(m)
		if !ok {
			s.writeError(w, http.StatusBadRequest, errors.New("mode must be follow or full"))
			return
		}
		v.Mode = mode
	}

	for _, p := range []struct {
		key string
		dst *float64
	}{{"zoom", &v.Zoom}, {"scroll", &v.Scroll}, {"now", &now}} {
		raw := q.Get(p.key)
		if raw == "" {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err == nil && (math.IsNaN(f) || math.IsInf(f, 0)) {
			err = fmt.Errorf("%s must be finite", p.key)
		}
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		*p.dst = f
	}

	s.writeJSON(w, http.StatusOK, s.backend.AlignAt(v, now))
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.backend.Snapshot())
}
