package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lox/stravaexplorer/internal/models"
)

// ErrDatasetExists is returned when importing under a name that is taken
// and replacement was not requested.
var ErrDatasetExists = errors.New("dataset already exists")

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const observationColumns = `ts, vertical_oscillation, cadence, power, air_power, ground_time, form_power, leg_spring_stiffness, heart_rate, speed, qc_flags`

// SaveDataset stores ds and its observations in one transaction. When a
// dataset with the same name exists it is replaced if replace is set,
// otherwise ErrDatasetExists is returned. The stored dataset is returned
// with its ID, RowCount and ImportedAt filled in.
func (s *Store) SaveDataset(ds models.Dataset, obs []models.Observation, replace bool) (*models.Dataset, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var existing int64
	err = tx.QueryRow(`SELECT id FROM datasets WHERE name = ?`, ds.Name).Scan(&existing)
	switch {
	case err == sql.ErrNoRows:
	case err != nil:
		return nil, fmt.Errorf("lookup dataset %q: %w", ds.Name, err)
	case !replace:
		return nil, fmt.Errorf("%w: %s", ErrDatasetExists, ds.Name)
	default:
		if err := deleteDatasetTx(tx, existing); err != nil {
			return nil, err
		}
	}

	ds.RowCount = len(obs)
	ds.FlagCount = 0
	for _, o := range obs {
		if o.QCFlags != "" {
			ds.FlagCount++
		}
	}
	ds.ImportedAt = time.Now().UTC()

	res, err := tx.Exec(`
		INSERT INTO datasets (name, source, row_count, flag_count, imported_at)
		VALUES (?, ?, ?, ?, ?)
	`, ds.Name, ds.Source, ds.RowCount, ds.FlagCount, ds.ImportedAt)
	if err != nil {
		return nil, fmt.Errorf("insert dataset: %w", err)
	}
	if ds.ID, err = res.LastInsertId(); err != nil {
		return nil, fmt.Errorf("dataset id: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO observations (dataset_id, ` + observationColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("prepare observation insert: %w", err)
	}
	defer stmt.Close()

	for i, o := range obs {
		if _, err := stmt.Exec(ds.ID, o.Timestamp,
			o.VerticalOscillation, o.Cadence, o.Power, o.AirPower, o.GroundTime,
			o.FormPower, o.LegSpringStiffness, o.HeartRate, o.Speed, o.QCFlags,
		); err != nil {
			return nil, fmt.Errorf("insert observation %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit dataset: %w", err)
	}
	return &ds, nil
}

func deleteDatasetTx(tx *sql.Tx, id int64) error {
	if _, err := tx.Exec(`DELETE FROM observations WHERE dataset_id = ?`, id); err != nil {
		return fmt.Errorf("delete observations: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM datasets WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete dataset: %w", err)
	}
	return nil
}

// GetDataset returns the named dataset, or nil if there is none.
func (s *Store) GetDataset(name string) (*models.Dataset, error) {
	var ds models.Dataset
	var source sql.NullString
	err := s.db.QueryRow(`
		SELECT id, name, source, row_count, flag_count, imported_at
		FROM datasets WHERE name = ?
	`, name).Scan(&ds.ID, &ds.Name, &source, &ds.RowCount, &ds.FlagCount, &ds.ImportedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	ds.Source = source.String
	return &ds, nil
}

// ListDatasets returns every dataset, most recently imported first.
func (s *Store) ListDatasets() ([]models.Dataset, error) {
	rows, err := s.db.Query(`
		SELECT id, name, source, row_count, flag_count, imported_at
		FROM datasets ORDER BY imported_at DESC, id DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Dataset
	for rows.Next() {
		var ds models.Dataset
		var source sql.NullString
		if err := rows.Scan(&ds.ID, &ds.Name, &source, &ds.RowCount, &ds.FlagCount, &ds.ImportedAt); err != nil {
			return nil, err
		}
		ds.Source = source.String
		out = append(out, ds)
	}
	return out, rows.Err()
}

// GetObservations returns the observations of the named dataset in import
// order. An unknown dataset yields sql.ErrNoRows.
func (s *Store) GetObservations(name string) ([]models.Observation, error) {
	ds, err := s.GetDataset(name)
	if err != nil {
		return nil, err
	}
	if ds == nil {
		return nil, fmt.Errorf("dataset %q: %w", name, sql.ErrNoRows)
	}

	rows, err := s.db.Query(`SELECT id, dataset_id, `+observationColumns+` FROM observations WHERE dataset_id = ? ORDER BY id`, ds.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Observation, 0, ds.RowCount)
	for rows.Next() {
		var o models.Observation
		if err := rows.Scan(&o.ID, &o.DatasetID, &o.Timestamp,
			&o.VerticalOscillation, &o.Cadence, &o.Power, &o.AirPower, &o.GroundTime,
			&o.FormPower, &o.LegSpringStiffness, &o.HeartRate, &o.Speed, &o.QCFlags,
		); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// DeleteDataset removes the named dataset and its observations. It reports
// whether anything was deleted.
func (s *Store) DeleteDataset(name string) (bool, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRow(`SELECT id FROM datasets WHERE name = ?`, name).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := deleteDatasetTx(tx, id); err != nil {
		return false, err
	}
	return true, tx.Commit()
}
