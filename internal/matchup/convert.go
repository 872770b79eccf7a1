package matchup

import (
	"math"
)

// Uncertainty correlation types per data matrix column.
const (
	CorrIndependent           int32 = 1
	CorrIndependentSystematic int32 = 2
	CorrStructured            int32 = 3
)

// Input is a harmonisation input file in the updated specification: the
// per-sensor data matrices with split uncertainties, the K adjustment
// block, and the CSR W/u matrix block describing structured errors.
type Input struct {
	Sensor1, Sensor2 int32

	X1, X2   *Table // sensor data columns per matchup
	Ur1, Ur2 *Table // random uncertainties
	Us1, Us2 *Table // systematic uncertainties

	UncertaintyType1, UncertaintyType2 []int32

	K, Kr, Ks []float64

	Time1, Time2 []float64

	W *WBlock
}

// Matchups returns the matchup count.
func (in *Input) Matchups() int { return len(in.K) }

// ValidAverages masks matchups whose full averaging kernel is available: a
// NaN in any scanline uncertainty marks the matchup invalid.
func ValidAverages(p *LegacyPair) []bool {
	keep := make([]bool, p.Matchups())
	for i := range keep {
		keep[i] = rowFinite(p.ScanSpace1, i) && rowFinite(p.ScanICT1, i) &&
			rowFinite(p.ScanSpace2, i) && rowFinite(p.ScanICT2, i)
	}
	return keep
}

func rowFinite(t *Table, i int) bool {
	for _, x := range t.Row(i) {
		if math.IsNaN(x) {
			return false
		}
	}
	return true
}

// Convert rewrites a legacy pair to the updated input specification:
// matchups with incomplete averaging kernels are dropped, the H matrix is
// split into per-sensor column blocks, mis-assigned random uncertainties
// are cleared, and the rolling-average W/u matrices are generated. width is
// the scanline period in seconds (0.5 for AVHRR).
func Convert(p *LegacyPair, width float64) (*Input, error) {
	keep := ValidAverages(p)
	ref := p.IsReferencePair()

	// The legacy products carry uncertainties in columns that the updated
	// spec models through W matrices or the K block; clear them before the
	// split, on copies.
	ur, err := p.Ur.SelectColumns(allCols(p.Ur.Cols), nil)
	if err != nil {
		return nil, err
	}
	us, err := p.Us.SelectColumns(allCols(p.Us.Cols), nil)
	if err != nil {
		return nil, err
	}
	if ref {
		ur.ZeroColumns(5, 6)
		us.ZeroColumns(0)
	} else {
		ur.ZeroColumns(0, 1, 5, 6)
	}

	// Column split: five calibration columns per sensor, one fewer when the
	// orbit temperature column is empty, a single radiance column for the
	// reference side.
	m1, m2 := 5, 5
	if allZeroColumn(p.H, 9) {
		m2 = 4
		if !ref {
			m1 = 4
		}
	}
	if ref {
		m1 = 1
	}

	in := &Input{Sensor1: p.Sensor1, Sensor2: p.Sensor2}
	cols1 := allCols(m1)
	cols2 := offsetCols(5, m2)
	if in.X1, err = p.H.SelectColumns(cols1, keep); err != nil {
		return nil, err
	}
	if in.Ur1, err = ur.SelectColumns(cols1, keep); err != nil {
		return nil, err
	}
	if in.Us1, err = us.SelectColumns(cols1, keep); err != nil {
		return nil, err
	}
	if in.X2, err = p.H.SelectColumns(cols2, keep); err != nil {
		return nil, err
	}
	if in.Ur2, err = ur.SelectColumns(cols2, keep); err != nil {
		return nil, err
	}
	if in.Us2, err = us.SelectColumns(cols2, keep); err != nil {
		return nil, err
	}
	in.K = selectVec(p.K, keep)
	in.Kr = selectVec(p.Kr, keep)
	in.Ks = selectVec(p.Ks, keep)
	in.Time1 = selectVec(p.Time1, keep)
	in.Time2 = selectVec(p.Time2, keep)

	if in.W, err = buildWBlock(p, keep, width, m1, m2, ref, in.Time1, in.Time2); err != nil {
		return nil, err
	}
	in.UncertaintyType1, in.UncertaintyType2 = correlationTypes(m1, m2, ref)
	return in, nil
}

// buildWBlock generates the rolling-average W matrices and scanline
// uncertainty vectors: space-count and ICT-count vectors per sensor, one W
// matrix per non-reference sensor (the two count columns of a sensor share
// one kernel).
func buildWBlock(p *LegacyPair, keep []bool, width float64, m1, m2 int, ref bool, time1, time2 []float64) (*WBlock, error) {
	maskTable := func(t *Table) (*Table, error) {
		return t.SelectColumns(allCols(t.Cols), keep)
	}

	space2, err := maskTable(p.ScanSpace2)
	if err != nil {
		return nil, err
	}
	ict2, err := maskTable(p.ScanICT2)
	if err != nil {
		return nil, err
	}
	w2, uSpace2, err := RollingAverage(time2, width, space2)
	if err != nil {
		return nil, err
	}
	_, uICT2, err := RollingAverage(time2, width, ict2)
	if err != nil {
		return nil, err
	}

	b := &WBlock{}
	if ref {
		b.W = []*CSR{w2}
		b.U = [][]float64{uSpace2, uICT2}
		b.WUse1 = make([]int32, m1)
		b.UUse1 = make([]int32, m1)
		b.WUse2 = useMap(m2, 1, 1)
		b.UUse2 = useMap(m2, 1, 2)
		return b, nil
	}

	space1, err := maskTable(p.ScanSpace1)
	if err != nil {
		return nil, err
	}
	ict1, err := maskTable(p.ScanICT1)
	if err != nil {
		return nil, err
	}
	w1, uSpace1, err := RollingAverage(time1, width, space1)
	if err != nil {
		return nil, err
	}
	_, uICT1, err := RollingAverage(time1, width, ict1)
	if err != nil {
		return nil, err
	}

	b.W = []*CSR{w1, w2}
	b.U = [][]float64{uSpace1, uICT1, uSpace2, uICT2}
	b.WUse1 = useMap(m1, 1, 1)
	b.WUse2 = useMap(m2, 2, 2)
	b.UUse1 = useMap(m1, 1, 2)
	b.UUse2 = useMap(m2, 3, 4)
	return b, nil
}

// useMap builds a column-to-matrix mapping where the two leading count
// columns point at the given 1-based indices and the rest carry none.
func useMap(cols int, first, second int32) []int32 {
	out := make([]int32, cols)
	if cols > 0 {
		out[0] = first
	}
	if cols > 1 {
		out[1] = second
	}
	return out
}

// correlationTypes labels each data column with its error correlation
// structure: the averaged count columns are structured, the remaining
// calibration columns independent-plus-systematic (or independent when the
// orbit temperature column is absent), and a lone reference radiance column
// independent.
func correlationTypes(m1, m2 int, ref bool) (t1, t2 []int32) {
	full := func(cols int) []int32 {
		out := make([]int32, cols)
		for i := range out {
			switch {
			case i < 2:
				out[i] = CorrStructured
			case i == 2:
				out[i] = CorrIndependent
			case cols == 5:
				out[i] = CorrIndependentSystematic
			default:
				out[i] = CorrIndependent
			}
		}
		return out
	}
	if ref {
		return []int32{CorrIndependent}, full(m2)
	}
	return full(m1), full(m2)
}

func allCols(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

func offsetCols(start, n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = start + i
	}
	return out
}

func allZeroColumn(t *Table, col int) bool {
	if col >= t.Cols {
		return true
	}
	for i := 0; i < t.Rows; i++ {
		if t.At(i, col) != 0 {
			return false
		}
	}
	return true
}
