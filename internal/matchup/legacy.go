package matchup

import (
	"fmt"

	"harmtool/internal/cdf"
)

// Legacy AVHRR pair file variable names.
const (
	varLm        = "lm"
	varH         = "H"
	varUr        = "Ur"
	varUs        = "Us"
	varK         = "K"
	varKr        = "Kr"
	varKs        = "Ks"
	varRefTime   = "ref_time_matchup"
	varTime      = "time_matchup"
	varRefScanSp = "ref_cal_Sp_Ur"
	varRefScanBB = "ref_cal_BB_Ur"
	varScanSp    = "cal_Sp_Ur"
	varScanBB    = "cal_BB_Ur"
	varCorrIndex = "CorrIndexArray"
	varCorrData  = "corrData"
)

// LegacyPair is a legacy AVHRR matchup pair file: the calibration data
// matrix H with its random and systematic uncertainties, the K adjustment
// values, matchup times and per-scanline calibration count uncertainties.
type LegacyPair struct {
	Sensor1 int32 // ReferenceSensor for reference-sensor pairs
	Sensor2 int32

	H, Ur, Us *Table // matchups × 10 calibration data and uncertainties

	K, Kr, Ks []float64 // sensor-to-sensor differences and uncertainties

	Time1, Time2 []float64 // matchup times per sensor

	// Scanline uncertainties of the calibration counts (space and internal
	// calibration target), matchups × ScanWindow.
	ScanSpace1, ScanICT1 *Table
	ScanSpace2, ScanICT2 *Table

	CorrIndex []float64 // scanline correlation index per matchup
	CorrData  []float64 // averaging window data
}

// Matchups returns the matchup count.
func (p *LegacyPair) Matchups() int { return len(p.K) }

// IsReferencePair reports whether sensor 1 is the harmonisation reference.
func (p *LegacyPair) IsReferencePair() bool { return p.Sensor1 == ReferenceSensor }

// ReadLegacy opens and decodes a legacy pair file.
func ReadLegacy(path string) (*LegacyPair, error) {
	f, err := cdf.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return LegacyFromFile(f)
}

// LegacyFromFile decodes a legacy pair file from its netCDF form.
func LegacyFromFile(f *cdf.File) (*LegacyPair, error) {
	lm, err := numeric(f, varLm)
	if err != nil {
		return nil, err
	}
	if len(lm) < 3 {
		return nil, fmt.Errorf("matchup: %s holds %d values, want at least 3", varLm, len(lm))
	}
	p := &LegacyPair{
		Sensor1: int32(lm[0]),
		Sensor2: int32(lm[1]),
	}
	m := int(lm[2])

	if p.H, err = table(f, varH); err != nil {
		return nil, err
	}
	if p.Ur, err = table(f, varUr); err != nil {
		return nil, err
	}
	if p.Us, err = table(f, varUs); err != nil {
		return nil, err
	}
	for _, col := range []struct {
		name string
		dst  *[]float64
	}{
		{varK, &p.K}, {varKr, &p.Kr}, {varKs, &p.Ks},
		{varRefTime, &p.Time1}, {varTime, &p.Time2},
		{varCorrIndex, &p.CorrIndex}, {varCorrData, &p.CorrData},
	} {
		if *col.dst, err = numeric(f, col.name); err != nil {
			return nil, err
		}
	}
	if p.ScanSpace1, err = table(f, varRefScanSp); err != nil {
		return nil, err
	}
	if p.ScanICT1, err = table(f, varRefScanBB); err != nil {
		return nil, err
	}
	if p.ScanSpace2, err = table(f, varScanSp); err != nil {
		return nil, err
	}
	if p.ScanICT2, err = table(f, varScanBB); err != nil {
		return nil, err
	}

	if p.H.Rows != m || len(p.K) != m || len(p.Time2) != m {
		return nil, fmt.Errorf("matchup: %s declares %d matchups, data holds %d/%d/%d",
			varLm, m, p.H.Rows, len(p.K), len(p.Time2))
	}
	return p, nil
}

// numeric returns the named variable's values widened to float64.
func numeric(f *cdf.File, name string) ([]float64, error) {
	v := f.Var(name)
	if v == nil {
		return nil, fmt.Errorf("matchup: missing variable %q", name)
	}
	return widen(v)
}

// table returns a rank-2 variable as a Table.
func table(f *cdf.File, name string) (*Table, error) {
	v := f.Var(name)
	if v == nil {
		return nil, fmt.Errorf("matchup: missing variable %q", name)
	}
	if len(v.Dims) != 2 {
		return nil, fmt.Errorf("matchup: variable %q has rank %d, want 2", name, len(v.Dims))
	}
	rows := f.DimLen(v.Dims[0])
	cols := f.DimLen(v.Dims[1])
	vals, err := widen(v)
	if err != nil {
		return nil, err
	}
	if len(vals) != rows*cols {
		return nil, fmt.Errorf("matchup: variable %q has %d values for a %d×%d table", name, len(vals), rows, cols)
	}
	return &Table{Rows: rows, Cols: cols, V: vals}, nil
}

func widen(v *cdf.Var) ([]float64, error) {
	switch d := v.Data.(type) {
	case []float64:
		out := make([]float64, len(d))
		copy(out, d)
		return out, nil
	case []float32:
		out := make([]float64, len(d))
		for i, x := range d {
			out[i] = float64(x)
		}
		return out, nil
	case []int32:
		out := make([]float64, len(d))
		for i, x := range d {
			out[i] = float64(x)
		}
		return out, nil
	case []int16:
		out := make([]float64, len(d))
		for i, x := range d {
			out[i] = float64(x)
		}
		return out, nil
	case []int8:
		out := make([]float64, len(d))
		for i, x := range d {
			out[i] = float64(x)
		}
		return out, nil
	}
	return nil, fmt.Errorf("matchup: variable %q is not numeric", v.Name)
}
