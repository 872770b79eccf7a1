package matchup

import (
	"fmt"
	"math"
	"sort"
)

// CSR is a sparse matrix in compressed sparse row form, the encoding the
// updated input specification uses for W matrices.
type CSR struct {
	Rows, Cols int
	RowPtr     []int32 // length Rows+1
	Col        []int32
	Val        []float64
}

// NNZ returns the number of stored elements.
func (w *CSR) NNZ() int { return len(w.Val) }

// At returns element (i, j), zero when not stored.
func (w *CSR) At(i, j int) float64 {
	for k := w.RowPtr[i]; k < w.RowPtr[i+1]; k++ {
		if int(w.Col[k]) == j {
			return w.Val[k]
		}
	}
	return 0
}

// RowSum returns the sum of row i, 1 for a well-formed averaging row.
func (w *CSR) RowSum(i int) float64 {
	s := 0.0
	for k := w.RowPtr[i]; k < w.RowPtr[i+1]; k++ {
		s += w.Val[k]
	}
	return s
}

// WBlock is the complete W/u matrix block of an updated input file: the W
// weighting matrices, the u scanline uncertainty vectors, and the mappings
// from data matrix columns to them (1-based, 0 meaning none).
type WBlock struct {
	W []*CSR
	U [][]float64

	WUse1, WUse2 []int32
	UUse1, UUse2 []int32
}

// RollingAverage builds the W matrix and scanline uncertainty vector for a
// calibration rolling average: each matchup value is the mean of ScanWindow
// consecutive scanlines centred on the matchup time, with scanlines width
// seconds apart. The matrix columns span the union of all scanlines touched
// by any matchup, in time order; scanUnc carries the per-matchup scanline
// uncertainties (matchups × ScanWindow).
func RollingAverage(times []float64, width float64, scanUnc *Table) (*CSR, []float64, error) {
	m := len(times)
	if width <= 0 {
		return nil, nil, fmt.Errorf("matchup: scanline width %g, want > 0", width)
	}
	if scanUnc.Rows != m || scanUnc.Cols != ScanWindow {
		return nil, nil, fmt.Errorf("matchup: scanline uncertainty table is %d×%d, want %d×%d",
			scanUnc.Rows, scanUnc.Cols, m, ScanWindow)
	}
	half := ScanWindow / 2

	// Collect the scanline grid indices touched by any matchup kernel.
	grid := make(map[int64]struct{})
	for i := 0; i < m; i++ {
		base := int64(math.Round(times[i] / width))
		for k := 0; k < ScanWindow; k++ {
			grid[base+int64(k-half)] = struct{}{}
		}
	}
	keys := make([]int64, 0, len(grid))
	for g := range grid {
		keys = append(keys, g)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	column := make(map[int64]int32, len(keys))
	for c, g := range keys {
		column[g] = int32(c)
	}

	w := &CSR{
		Rows:   m,
		Cols:   len(keys),
		RowPtr: make([]int32, m+1),
		Col:    make([]int32, 0, m*ScanWindow),
		Val:    make([]float64, 0, m*ScanWindow),
	}
	u := make([]float64, len(keys))
	weight := 1.0 / float64(ScanWindow)
	for i := 0; i < m; i++ {
		base := int64(math.Round(times[i] / width))
		for k := 0; k < ScanWindow; k++ {
			c := column[base+int64(k-half)]
			w.Col = append(w.Col, c)
			w.Val = append(w.Val, weight)
			u[c] = scanUnc.At(i, k)
		}
		w.RowPtr[i+1] = int32(len(w.Val))
	}
	return w, u, nil
}
