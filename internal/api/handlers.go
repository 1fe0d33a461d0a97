package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/lox/stravaexplorer/internal/explore"
	"github.com/lox/stravaexplorer/internal/log"
	"github.com/lox/stravaexplorer/internal/render"
)

func writeError(w http.ResponseWriter, err error) {
	var bad *badRequestError
	if errors.As(err, &bad) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	d, err := s.Dashboard(r)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.WritePage(w, d); err != nil {
		log.Errorw("api: render page", "error", err)
	}
}

// WritePage renders the dashboard page for d.
func (s *Server) WritePage(w io.Writer, d *explore.Dashboard) error {
	return s.tmpl.ExecuteTemplate(w, "index.html", newPageData(d))
}

// handleChart serves /charts/{name}.{png|svg}.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	file := strings.TrimPrefix(r.URL.Path, "/charts/")
	ext := path.Ext(file)
	name := strings.TrimSuffix(file, ext)
	format, ok := render.ParseFormat(strings.TrimPrefix(ext, "."))
	if !ok || !render.ValidChart(name) {
		http.NotFound(w, r)
		return
	}

	d, err := s.Dashboard(r)
	if err != nil {
		writeError(w, err)
		return
	}
	img, err := render.New(format).Chart(d, name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Cache-Control", "no-store")
	w.Write(img)
}

func (s *Server) handleAPIDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := s.Dashboard(r)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(d); err != nil {
		log.Warnw("api: write dashboard", "error", err)
	}
}

type HealthStatus struct {
	Status   string    `json:"status"`
	Rows     int       `json:"rows"`
	LoadedAt time.Time `json:"loaded_at"`
	Error    string    `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	t, err := s.cache.Get()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		resp := HealthStatus{Status: "error", LoadedAt: s.cache.LoadedAt(), Error: err.Error()}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Warnw("health: write response", "error", err)
		}
		return
	}
	if err := json.NewEncoder(w).Encode(HealthStatus{Status: "ok", Rows: t.Len(), LoadedAt: s.cache.LoadedAt()}); err != nil {
		log.Warnw("health: write response", "error", err)
	}
}
