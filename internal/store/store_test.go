package store

import (
	"database/sql"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/lox/stravaexplorer/internal/models"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store := New(db)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func testObservations() []models.Observation {
	return []models.Observation{
		{
			Timestamp: sql.NullString{String: "2024-03-01T07:15:00Z", Valid: true},
			HeartRate: sql.NullFloat64{Float64: 142, Valid: true},
			Speed:     sql.NullFloat64{Float64: 3.1, Valid: true},
			Cadence:   sql.NullFloat64{Float64: 170, Valid: true},
		},
		{
			Timestamp: sql.NullString{String: "2024-03-01T19:40:00+10:00", Valid: true},
			HeartRate: sql.NullFloat64{Float64: 260, Valid: true},
			QCFlags:   `["heart_rate_range"]`,
		},
		{
			Speed: sql.NullFloat64{Float64: 2.5, Valid: true},
		},
	}
}

func TestMigrate(t *testing.T) {
	store := setupTestStore(t)

	version, err := store.MigrationVersion()
	if err != nil {
		t.Fatalf("MigrationVersion: %v", err)
	}
	if version != len(migrations) {
		t.Errorf("version = %d, want %d", version, len(migrations))
	}

	if err := store.Migrate(); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
}

func TestSaveAndGetDataset(t *testing.T) {
	store := setupTestStore(t)

	ds, err := store.SaveDataset(models.Dataset{Name: "march", Source: "testdata/march.csv"}, testObservations(), false)
	if err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}
	if ds.ID == 0 {
		t.Error("ID not set")
	}
	if ds.RowCount != 3 {
		t.Errorf("RowCount = %d, want 3", ds.RowCount)
	}
	if ds.FlagCount != 1 {
		t.Errorf("FlagCount = %d, want 1", ds.FlagCount)
	}

	got, err := store.GetDataset("march")
	if err != nil {
		t.Fatalf("GetDataset: %v", err)
	}
	if got == nil {
		t.Fatal("GetDataset returned nil")
	}
	if got.Source != "testdata/march.csv" || got.RowCount != 3 {
		t.Errorf("got %+v", got)
	}

	missing, err := store.GetDataset("nope")
	if err != nil {
		t.Fatalf("GetDataset(nope): %v", err)
	}
	if missing != nil {
		t.Errorf("GetDataset(nope) = %+v, want nil", missing)
	}
}

func TestGetObservationsRoundTrip(t *testing.T) {
	store := setupTestStore(t)
	want := testObservations()
	if _, err := store.SaveDataset(models.Dataset{Name: "march"}, want, false); err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}

	got, err := store.GetObservations("march")
	if err != nil {
		t.Fatalf("GetObservations: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}

	tests := []struct {
		name string
		got  models.Observation
		want models.Observation
	}{
		{"first", got[0], want[0]},
		{"flagged", got[1], want[1]},
		{"no timestamp", got[2], want[2]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got.Timestamp != tt.want.Timestamp {
				t.Errorf("Timestamp = %+v, want %+v", tt.got.Timestamp, tt.want.Timestamp)
			}
			for _, m := range models.Metrics {
				if tt.got.Value(m) != tt.want.Value(m) {
					t.Errorf("%s = %+v, want %+v", m, tt.got.Value(m), tt.want.Value(m))
				}
			}
			if tt.got.QCFlags != tt.want.QCFlags {
				t.Errorf("QCFlags = %q, want %q", tt.got.QCFlags, tt.want.QCFlags)
			}
		})
	}
}

func TestGetObservationsUnknownDataset(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.GetObservations("nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestSaveDatasetExisting(t *testing.T) {
	store := setupTestStore(t)
	obs := testObservations()
	if _, err := store.SaveDataset(models.Dataset{Name: "march"}, obs, false); err != nil {
		t.Fatalf("SaveDataset: %v", err)
	}

	_, err := store.SaveDataset(models.Dataset{Name: "march"}, obs[:1], false)
	if !errors.Is(err, ErrDatasetExists) {
		t.Fatalf("err = %v, want ErrDatasetExists", err)
	}

	if _, err := store.SaveDataset(models.Dataset{Name: "march"}, obs[:1], true); err != nil {
		t.Fatalf("SaveDataset replace: %v", err)
	}
	got, err := store.GetObservations("march")
	if err != nil {
		t.Fatalf("GetObservations: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("len = %d after replace, want 1", len(got))
	}

	datasets, err := store.ListDatasets()
	if err != nil {
		t.Fatalf("ListDatasets: %v", err)
	}
	if len(datasets) != 1 {
		t.Errorf("len(datasets) = %d, want 1", len(datasets))
	}
}

func TestListAndDeleteDatasets(t *testing.T) {
	store := setupTestStore(t)
	for _, name := range []string{"a", "b"} {
		if _, err := store.SaveDataset(models.Dataset{Name: name}, testObservations(), false); err != nil {
			t.Fatalf("SaveDataset(%s): %v", name, err)
		}
	}

	datasets, err := store.ListDatasets()
	if err != nil {
		t.Fatalf("ListDatasets: %v", err)
	}
	if len(datasets) != 2 {
		t.Fatalf("len = %d, want 2", len(datasets))
	}

	deleted, err := store.DeleteDataset("a")
	if err != nil || !deleted {
		t.Fatalf("DeleteDataset(a) = %v, %v", deleted, err)
	}
	deleted, err = store.DeleteDataset("a")
	if err != nil || deleted {
		t.Fatalf("second DeleteDataset(a) = %v, %v", deleted, err)
	}

	var orphans int
	if err := store.db.QueryRow(`SELECT COUNT(*) FROM observations o LEFT JOIN datasets d ON d.id = o.dataset_id WHERE d.id IS NULL`).Scan(&orphans); err != nil {
		t.Fatalf("count orphans: %v", err)
	}
	if orphans != 0 {
		t.Errorf("orphans = %d, want 0", orphans)
	}
}
