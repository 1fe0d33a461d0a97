package api

import (
	"context"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/stravaexplorer/internal/dataset"
	"github.com/lox/stravaexplorer/internal/explore"
	"github.com/lox/stravaexplorer/internal/log"
	"github.com/lox/stravaexplorer/internal/models"
)

type Server struct {
	cache *dataset.Cache
	addr  string
	tmpl  *template.Template

	optionsOnce sync.Once
	times       []models.TimeOfDay
	months      []string
	optionsErr  error
}

func NewServer(cache *dataset.Cache, addr string) *Server {
	return &Server{
		cache: cache,
		addr:  addr,
		tmpl:  newTemplates(),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/charts/", s.handleChart)
	mux.HandleFunc("/api/dashboard", s.handleAPIDashboard)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	return withRequestLogging(mux)
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	log.Infow("api: listening", "addr", s.addr)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// options returns the selectable time-of-day and month labels of the
// loaded table. They never change once the table is loaded.
func (s *Server) options() ([]models.TimeOfDay, []string, error) {
	s.optionsOnce.Do(func() {
		raw, err := s.cache.Get()
		if err != nil {
			s.optionsErr = err
			return
		}
		base, err := dataset.Derive(raw)
		if err != nil {
			s.optionsErr = err
			return
		}
		s.times, s.months = explore.Options(base)
	})
	return s.times, s.months, s.optionsErr
}

// Dashboard runs one full pass for the selection encoded in the request's
// query string.
func (s *Server) Dashboard(r *http.Request) (*explore.Dashboard, error) {
	times, months, err := s.options()
	if err != nil {
		return nil, err
	}
	st, err := ParseState(r.URL.Query(), times, months)
	if err != nil {
		return nil, &badRequestError{err}
	}
	raw, err := s.cache.Get()
	if err != nil {
		return nil, err
	}
	return explore.Run(raw, st)
}

type badRequestError struct{ err error }

func (e *badRequestError) Error() string { return e.err.Error() }
func (e *badRequestError) Unwrap() error { return e.err }
