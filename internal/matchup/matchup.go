// Package matchup handles harmonisation *input* files: the per-pair matchup
// datasets a harmonisation solver consumes. It reads the legacy AVHRR pair
// layout, converts it to the updated input specification (column split,
// uncertainty correlation types, CSR-encoded W/u matrices) and reads/writes
// updated-spec files.
package matchup

import "fmt"

// ReferenceSensor is the sensor ID marking the reference side of a
// reference-sensor pair.
const ReferenceSensor = -1

// ScanWindow is the number of scanlines in the calibration averaging kernel
// of the AVHRR products.
const ScanWindow = 51

// Table is a dense row-major matrix of matchup data (one row per matchup).
type Table struct {
	Rows, Cols int
	V          []float64
}

// NewTable returns a zeroed rows×cols table.
func NewTable(rows, cols int) *Table {
	return &Table{Rows: rows, Cols: cols, V: make([]float64, rows*cols)}
}

// At returns element (i, j).
func (t *Table) At(i, j int) float64 { return t.V[i*t.Cols+j] }

// Set assigns element (i, j).
func (t *Table) Set(i, j int, x float64) { t.V[i*t.Cols+j] = x }

// Row returns row i as a slice into the table.
func (t *Table) Row(i int) []float64 { return t.V[i*t.Cols : (i+1)*t.Cols] }

// SelectColumns returns a new table holding the given columns of the rows
// enabled in keep (all rows when keep is nil).
func (t *Table) SelectColumns(cols []int, keep []bool) (*Table, error) {
	for _, c := range cols {
		if c < 0 || c >= t.Cols {
			return nil, fmt.Errorf("matchup: column %d out of range (table has %d)", c, t.Cols)
		}
	}
	rows := 0
	for i := 0; i < t.Rows; i++ {
		if keep == nil || keep[i] {
			rows++
		}
	}
	out := NewTable(rows, len(cols))
	r := 0
	for i := 0; i < t.Rows; i++ {
		if keep != nil && !keep[i] {
			continue
		}
		for j, c := range cols {
			out.Set(r, j, t.At(i, c))
		}
		r++
	}
	return out, nil
}

// ZeroColumns clears the given columns in place.
func (t *Table) ZeroColumns(cols ...int) {
	for i := 0; i < t.Rows; i++ {
		for _, c := range cols {
			t.Set(i, c, 0)
		}
	}
}

// selectVec filters a vector by the keep mask (all rows when nil).
func selectVec(v []float64, keep []bool) []float64 {
	if keep == nil {
		out := make([]float64, len(v))
		copy(out, v)
		return out
	}
	out := make([]float64, 0, len(v))
	for i, x := range v {
		if keep[i] {
			out = append(out, x)
		}
	}
	return out
}
