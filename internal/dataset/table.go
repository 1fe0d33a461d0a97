// Package dataset loads the observation table and derives its categorical
// time features.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"github.com/lox/stravaexplorer/internal/models"
)

// ErrMissingColumn is returned when the source lacks a required column.
var ErrMissingColumn = errors.New("missing column")

// nanValues are the cell contents treated as missing.
var nanValues = []string{"", "NA", "NaN", "nan", "<nil>", "null"}

// Table is an immutable observation table backed by a gota DataFrame.
// Operations that change rows or columns return a new Table.
type Table struct {
	df dataframe.DataFrame
}

// NewTable wraps df, surfacing any error it carries.
func NewTable(df dataframe.DataFrame) (*Table, error) {
	if df.Err != nil {
		return nil, df.Err
	}
	return &Table{df: df}, nil
}

func columnTypes() map[string]series.Type {
	types := map[string]series.Type{
		models.ColTimestamp: series.String,
		models.ColMonthName: series.String,
		models.ColTimeOfDay: series.String,
	}
	for _, m := range models.Metrics {
		types[string(m)] = series.Float
	}
	return types
}

func loadOptions() []dataframe.LoadOption {
	return []dataframe.LoadOption{
		dataframe.HasHeader(true),
		dataframe.WithTypes(columnTypes()),
		dataframe.NaNValues(nanValues),
	}
}

// ReadCSV parses a CSV document with a header row. The timestamp column and
// all nine metric columns must be present, and every non-empty timestamp
// must parse. A header with no data rows yields an empty table.
func ReadCSV(r io.Reader) (*Table, error) {
	records, err := csv.NewReader(r).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("read csv: no header row")
	}
	if len(records) == 1 {
		return validate(emptyFrame(records[0]))
	}
	df := dataframe.LoadRecords(records, loadOptions()...)
	if df.Err != nil {
		return nil, fmt.Errorf("read csv: %w", df.Err)
	}
	return validate(df)
}

// emptyFrame builds a zero-row frame with the typed columns named by header.
func emptyFrame(header []string) dataframe.DataFrame {
	types := columnTypes()
	cols := make([]series.Series, 0, len(header))
	for _, name := range header {
		if types[name] == series.Float {
			cols = append(cols, series.New([]float64{}, series.Float, name))
		} else {
			cols = append(cols, series.New([]string{}, series.String, name))
		}
	}
	return dataframe.New(cols...)
}

// FromObservations builds a table from stored observations.
func FromObservations(obs []models.Observation) (*Table, error) {
	header := make([]string, 0, len(models.Metrics)+1)
	header = append(header, models.ColTimestamp)
	for _, m := range models.Metrics {
		header = append(header, string(m))
	}
	if len(obs) == 0 {
		return validate(emptyFrame(header))
	}

	records := make([][]string, 0, len(obs)+1)
	records = append(records, header)
	for _, o := range obs {
		row := make([]string, 0, len(header))
		if o.Timestamp.Valid {
			row = append(row, o.Timestamp.String)
		} else {
			row = append(row, "NaN")
		}
		for _, m := range models.Metrics {
			v := o.Value(m)
			if v.Valid {
				row = append(row, strconv.FormatFloat(v.Float64, 'g', -1, 64))
			} else {
				row = append(row, "NaN")
			}
		}
		records = append(records, row)
	}

	df := dataframe.LoadRecords(records, loadOptions()...)
	if df.Err != nil {
		return nil, fmt.Errorf("load records: %w", df.Err)
	}
	return validate(df)
}

func validate(df dataframe.DataFrame) (*Table, error) {
	if df.Err != nil {
		return nil, fmt.Errorf("read csv: %w", df.Err)
	}
	t := &Table{df: df}
	if !t.Has(models.ColTimestamp) {
		return nil, fmt.Errorf("%w: %q", ErrMissingColumn, models.ColTimestamp)
	}
	for _, m := range models.Metrics {
		if !t.Has(string(m)) {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, m)
		}
	}
	for i, s := range t.Strings(models.ColTimestamp) {
		if s == "" {
			continue
		}
		if _, err := ParseTimestamp(s); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return t.finite()
}

// finite rewrites infinite metric readings as missing. strconv accepts
// "inf" and "Infinity", and no chart can place them.
func (t *Table) finite() (*Table, error) {
	df := t.df
	for _, m := range models.Metrics {
		vals := t.Floats(m)
		hasInf := false
		for _, v := range vals {
			if math.IsInf(v, 0) {
				hasInf = true
				break
			}
		}
		if !hasInf {
			continue
		}
		cells := make([]string, len(vals))
		for i, v := range vals {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				cells[i] = "NaN"
			} else {
				cells[i] = strconv.FormatFloat(v, 'g', -1, 64)
			}
		}
		df = df.Mutate(series.New(cells, series.Float, string(m)))
		if df.Err != nil {
			return nil, fmt.Errorf("clear infinite %s: %w", m, df.Err)
		}
	}
	return &Table{df: df}, nil
}

// Frame returns the underlying DataFrame.
func (t *Table) Frame() dataframe.DataFrame {
	return t.df
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return t.df.Nrow()
}

// Has reports whether the table has a column named col.
func (t *Table) Has(col string) bool {
	for _, name := range t.df.Names() {
		if name == col {
			return true
		}
	}
	return false
}

// Floats returns the metric column with missing values as NaN.
func (t *Table) Floats(m models.Metric) []float64 {
	if !t.Has(string(m)) {
		return nil
	}
	return t.df.Col(string(m)).Float()
}

// Strings returns a text column with missing values as "".
func (t *Table) Strings(col string) []string {
	if !t.Has(col) {
		return nil
	}
	s := t.df.Col(col)
	out := s.Records()
	for i, na := range s.IsNaN() {
		if na {
			out[i] = ""
		}
	}
	return out
}
