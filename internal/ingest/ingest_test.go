package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lox/stravaexplorer/internal/models"
	"github.com/lox/stravaexplorer/internal/store"
)

const testCSV = "timestamp,Vertical Oscillation,Cadence,Power,Air Power,Ground Time,Form Power,Leg Spring Stiffness,heart_rate,speed\n" +
	"2024-01-15 07:30:00,9.1,170,250,12,240,60,11.2,150,3.2\n" +
	"2024-02-03T20:10:00+10:00,8.7,168,245,11,245,58,11.0,300,3.0\n" +
	",8.9,172,,,250,,,140,2.9\n"

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st := store.New(db)
	if err := st.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return st
}

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "activities.csv")
	if err := os.WriteFile(path, []byte(testCSV), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestValidateObservation(t *testing.T) {
	f := func(v float64) sql.NullFloat64 { return sql.NullFloat64{Float64: v, Valid: true} }
	ts := sql.NullString{String: "2024-01-15 07:30:00", Valid: true}

	tests := []struct {
		name      string
		obs       *models.Observation
		wantFlags []string
	}{
		{
			name: "valid observation - no flags",
			obs: &models.Observation{
				Timestamp:           ts,
				VerticalOscillation: f(9.1),
				Cadence:             f(170),
				Power:               f(250),
				AirPower:            f(12),
				GroundTime:          f(240),
				FormPower:           f(60),
				LegSpringStiffness:  f(11.2),
				HeartRate:           f(150),
				Speed:               f(3.2),
			},
			wantFlags: nil,
		},
		{
			name:      "missing values are not flagged",
			obs:       &models.Observation{Timestamp: ts},
			wantFlags: nil,
		},
		{
			name:      "missing timestamp",
			obs:       &models.Observation{HeartRate: f(150)},
			wantFlags: []string{FlagTimestampMissing},
		},
		{
			name:      "heart rate too high",
			obs:       &models.Observation{Timestamp: ts, HeartRate: f(251)},
			wantFlags: []string{FlagHeartRateOutOfRange},
		},
		{
			name:      "heart rate at boundary - valid",
			obs:       &models.Observation{Timestamp: ts, HeartRate: f(25)},
			wantFlags: nil,
		},
		{
			name:      "negative speed",
			obs:       &models.Observation{Timestamp: ts, Speed: f(-0.1)},
			wantFlags: []string{FlagSpeedUnlikely},
		},
		{
			name:      "negative power counted once",
			obs:       &models.Observation{Timestamp: ts, Power: f(-1), AirPower: f(-2), FormPower: f(-3)},
			wantFlags: []string{FlagPowerNegative},
		},
		{
			name: "multiple flags",
			obs: &models.Observation{
				Cadence:             f(400),
				GroundTime:          f(-5),
				VerticalOscillation: f(80),
				LegSpringStiffness:  f(-1),
			},
			wantFlags: []string{FlagTimestampMissing, FlagCadenceUnlikely, FlagGroundTimeInvalid, FlagOscillationInvalid, FlagStiffnessNegative},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateObservation(tt.obs)
			if len(got) != len(tt.wantFlags) {
				t.Fatalf("flags = %v, want %v", got, tt.wantFlags)
			}
			sort.Strings(got)
			want := append([]string(nil), tt.wantFlags...)
			sort.Strings(want)
			for i := range got {
				if got[i] != want[i] {
					t.Errorf("flags = %v, want %v", got, want)
					break
				}
			}
		})
	}
}

func TestQualityFlagsToJSON(t *testing.T) {
	if got := QualityFlagsToJSON(nil); got != "" {
		t.Errorf("QualityFlagsToJSON(nil) = %q, want empty", got)
	}

	got := QualityFlagsToJSON([]string{FlagSpeedUnlikely, FlagPowerNegative})
	var decoded []string
	if err := json.Unmarshal([]byte(got), &decoded); err != nil {
		t.Fatalf("unmarshal %q: %v", got, err)
	}
	if len(decoded) != 2 || decoded[0] != FlagSpeedUnlikely {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestFetchLocalFile(t *testing.T) {
	path := writeCSV(t)
	body, err := Fetch(context.Background(), path, time.Second)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != testCSV {
		t.Errorf("body mismatch")
	}

	if _, err := Fetch(context.Background(), filepath.Join(t.TempDir(), "missing.csv"), time.Second); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestFetchUnsupportedScheme(t *testing.T) {
	if _, err := Fetch(context.Background(), "s3://bucket/key.csv", time.Second); err == nil {
		t.Error("expected error for unsupported scheme")
	}
}

func TestFetchHTTPRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(testCSV))
	}))
	defer srv.Close()

	body, err := Fetch(context.Background(), srv.URL+"/activities.csv", 10*time.Second)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != testCSV {
		t.Errorf("body mismatch")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("calls = %d, want 2", got)
	}
}

func TestFetchHTTPNotFoundIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	if _, err := Fetch(context.Background(), srv.URL, 10*time.Second); err == nil {
		t.Fatal("expected error for 404")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestLoadTableDBWithoutStore(t *testing.T) {
	_, err := LoadTable(context.Background(), "db:march", nil, time.Second)
	if !errors.Is(err, ErrNoStore) {
		t.Errorf("err = %v, want ErrNoStore", err)
	}
}

func TestImportAndLoadFromStore(t *testing.T) {
	st := setupTestStore(t)
	im := NewImporter(st, time.Second)
	path := writeCSV(t)

	ds, err := im.Import(context.Background(), path, "winter", false)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if ds.RowCount != 3 {
		t.Errorf("RowCount = %d, want 3", ds.RowCount)
	}
	// heart_rate 300, and the row without a timestamp.
	if ds.FlagCount != 2 {
		t.Errorf("FlagCount = %d, want 2", ds.FlagCount)
	}

	if _, err := im.Import(context.Background(), path, "winter", false); !errors.Is(err, store.ErrDatasetExists) {
		t.Errorf("second Import err = %v, want ErrDatasetExists", err)
	}

	fromFile, err := LoadTable(context.Background(), path, nil, time.Second)
	if err != nil {
		t.Fatalf("LoadTable(file): %v", err)
	}
	fromDB, err := LoadTable(context.Background(), "db:winter", st, time.Second)
	if err != nil {
		t.Fatalf("LoadTable(db): %v", err)
	}
	if fromDB.Len() != fromFile.Len() {
		t.Fatalf("Len = %d, want %d", fromDB.Len(), fromFile.Len())
	}

	wantTS := fromFile.Strings(models.ColTimestamp)
	gotTS := fromDB.Strings(models.ColTimestamp)
	for i := range wantTS {
		if gotTS[i] != wantTS[i] {
			t.Errorf("timestamp[%d] = %q, want %q", i, gotTS[i], wantTS[i])
		}
	}
	for _, m := range models.Metrics {
		want, got := fromFile.Floats(m), fromDB.Floats(m)
		for i := range want {
			if want[i] != got[i] && !(math.IsNaN(want[i]) && math.IsNaN(got[i])) {
				t.Errorf("%s[%d] = %v, want %v", m, i, got[i], want[i])
			}
		}
	}

	if _, err := LoadTable(context.Background(), "db:summer", st, time.Second); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("unknown dataset err = %v, want sql.ErrNoRows", err)
	}
}
