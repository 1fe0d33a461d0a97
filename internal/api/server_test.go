package api_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lox/stravaexplorer/internal/api"
	"github.com/lox/stravaexplorer/internal/dataset"
	"github.com/lox/stravaexplorer/internal/explore"
	"github.com/lox/stravaexplorer/internal/log"
	"github.com/lox/stravaexplorer/internal/models"
)

const testCSV = "timestamp,Vertical Oscillation,Cadence,Power,Air Power,Ground Time,Form Power,Leg Spring Stiffness,heart_rate,speed\n" +
	"2024-01-15 02:10:00,9.0,168,240,10,250,58,11.0,130,2.8\n" +
	"2024-01-15 07:30:00,9.1,170,250,12,240,60,11.2,150,3.2\n" +
	"2024-01-16 08:00:00,9.3,172,255,13,238,61,11.4,155,3.4\n" +
	"2024-01-17 13:45:00,8.8,166,245,11,245,59,11.1,148,3.0\n" +
	"2024-02-03 15:10:00,8.7,168,260,11,244,58,11.0,152,3.1\n" +
	"2024-02-04 19:20:00,9.4,174,270,14,236,62,11.6,160,3.6\n" +
	"2024-02-05 21:00:00,9.2,171,262,12,239,60,11.3,158,3.5\n"

func setupServer(t *testing.T) *api.Server {
	t.Helper()
	cache := dataset.NewCache(func() (*dataset.Table, error) {
		return dataset.ReadCSV(strings.NewReader(testCSV))
	})
	return api.NewServer(cache, ":0")
}

func get(t *testing.T, srv *api.Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", target, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()
	w := get(t, setupServer(t), "/health")

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var health api.HealthStatus
	if err := json.NewDecoder(w.Body).Decode(&health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if health.Status != "ok" || health.Rows != 7 {
		t.Errorf("health = %+v, want ok with 7 rows", health)
	}
	if health.LoadedAt.IsZero() {
		t.Error("expected loaded_at to be set")
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}
}

func TestHealthEndpoint_LoadError(t *testing.T) {
	t.Parallel()
	cache := dataset.NewCache(func() (*dataset.Table, error) {
		return nil, errors.New("boom")
	})
	w := get(t, api.NewServer(cache, ":0"), "/health")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"error"`) {
		t.Error("expected error status in JSON response")
	}
}

func TestIndexPage_Defaults(t *testing.T) {
	t.Parallel()
	w := get(t, setupServer(t), "/")

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		"Strava Wearable Metrics Explorer",
		"Explore cadence, power, vertical oscillation, and more by time of day and month.",
		"KDE &amp; Boxplot",
		"Scatterplot",
		"Histogram Only",
		"Density Plot of Vertical Oscillation",
		"/charts/density.png?",
		"Built by Alexis Parker",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q", want)
		}
	}
	if strings.Contains(body, explore.NoticeFallback) {
		t.Error("unexpected fallback notice")
	}
}

func TestIndexPage_Fallback(t *testing.T) {
	t.Parallel()
	q := url.Values{"submitted": {"1"}, "time": {"Morning"}, "month": {"February"}}
	w := get(t, setupServer(t), "/?"+q.Encode())

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, explore.NoticeFallback) {
		t.Error("expected fallback notice")
	}
	if !strings.Contains(body, "/charts/fallback.png?") {
		t.Error("expected fallback chart")
	}
	if strings.Contains(body, "Histogram Only") {
		t.Error("tabs should not render in fallback")
	}
}

func TestIndexPage_NotFound(t *testing.T) {
	t.Parallel()
	w := get(t, setupServer(t), "/nope")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestAPIDashboard(t *testing.T) {
	t.Parallel()
	q := url.Values{"metric": {"Cadence"}, "x": {"Power"}, "y": {"Cadence"}}
	w := get(t, setupServer(t), "/api/dashboard?"+q.Encode())

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var d explore.Dashboard
	if err := json.NewDecoder(w.Body).Decode(&d); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.State.Sidebar.Metric != models.MetricCadence {
		t.Errorf("metric = %q, want Cadence", d.State.Sidebar.Metric)
	}
	if !d.State.Sidebar.RemoveOutliers {
		t.Error("outlier removal should default on")
	}
	if d.Scatter == nil || d.Scatter.Title != "Cadence vs Power" {
		t.Errorf("scatter = %+v", d.Scatter)
	}
	if d.TotalRows != 7 {
		t.Errorf("TotalRows = %d, want 7", d.TotalRows)
	}
}

type failingWriter struct {
	*httptest.ResponseRecorder
}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

// Not parallel: it swaps the process logger.
func TestResponseWriteErrorsAreLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	restore := log.Replace(zap.New(core))
	defer restore()

	tests := []struct {
		path    string
		message string
	}{
		{"/api/dashboard", "api: write dashboard"},
		{"/health", "health: write response"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := failingWriter{httptest.NewRecorder()}
			setupServer(t).Handler().ServeHTTP(w, httptest.NewRequest("GET", tt.path, nil))
			if n := logs.FilterMessage(tt.message).Len(); n != 1 {
				t.Errorf("%q logged %d times, want 1", tt.message, n)
			}
		})
	}
}

func TestAPIDashboard_BadMetric(t *testing.T) {
	t.Parallel()
	w := get(t, setupServer(t), "/api/dashboard?metric=Altitude")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestChartEndpoint(t *testing.T) {
	t.Parallel()
	srv := setupServer(t)

	tests := []struct {
		path        string
		wantCode    int
		contentType string
	}{
		{"/charts/density.png", 200, "image/png"},
		{"/charts/box.svg", 200, "image/svg+xml"},
		{"/charts/scatter.png?reg=1&submitted=1&stime=Morning&smonth=January", 200, "image/png"},
		{"/charts/histogram.svg", 200, "image/svg+xml"},
		{"/charts/fallback.png", 200, "image/png"},
		{"/charts/pie.png", 404, ""},
		{"/charts/density.gif", 404, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := get(t, srv, tt.path)
			if w.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, w.Code)
			}
			if tt.contentType != "" && w.Header().Get("Content-Type") != tt.contentType {
				t.Errorf("Content-Type = %q, want %q", w.Header().Get("Content-Type"), tt.contentType)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv := setupServer(t)
	get(t, srv, "/charts/density.png")

	w := get(t, srv, "/metrics")
	if w.Code != 200 {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "stravaexplorer_charts_total") {
		t.Error("expected chart counter in exposition")
	}
}
