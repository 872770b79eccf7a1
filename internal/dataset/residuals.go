package dataset

import (
	"fmt"

	"harmtool/internal/cdf"
)

// Dimension names shared by the two layouts.
const (
	DimMatchup = "m"      // matchup count (residuals) / sensor-pair count (parameter)
	DimParam   = "n"      // fitted parameter count
	DimLabel   = "l_name" // fixed label width
)

// Residuals variable names.
const (
	VarTime                   = "t"
	VarMeasurandI             = "measurand_i"
	VarMeasurandJ             = "measurand_j"
	VarMeasurandIUncertaintyQ = "measurand_i_uncertainty_q"
	VarMeasurandIUncertaintyX = "measurand_i_uncertainty_x"
	VarMeasurandJUncertaintyQ = "measurand_j_uncertainty_q"
	VarMeasurandJUncertaintyX = "measurand_j_uncertainty_x"
	VarKRes                   = "k_res"
	VarKResUncertaintyL       = "k_res_uncertainty_l"
	VarKResUncertaintyH       = "k_res_uncertainty_h"
	VarKResNormalised         = "k_res_normalised"
)

type varSpec struct {
	name        string
	typ         cdf.Type
	description string
	units       string
}

// residualVars lists every residuals variable in file order. All span the
// matchup dimension; record i of every variable describes the same matchup.
var residualVars = []varSpec{
	{VarTime, cdf.Double, "matchup time", "seconds since 1970-01-01 00:00:00"},
	{VarMeasurandI, cdf.Double, "measurand of sensor i", ""},
	{VarMeasurandJ, cdf.Double, "measurand of sensor j", ""},
	{VarMeasurandIUncertaintyQ, cdf.Float, "uncertainty of measurand_i due to state variables", ""},
	{VarMeasurandIUncertaintyX, cdf.Float, "uncertainty of measurand_i due to calibration parameters", ""},
	{VarMeasurandJUncertaintyQ, cdf.Float, "uncertainty of measurand_j due to state variables", ""},
	{VarMeasurandJUncertaintyX, cdf.Float, "uncertainty of measurand_j due to calibration parameters", ""},
	{VarKRes, cdf.Double, "harmonisation residual", ""},
	{VarKResUncertaintyL, cdf.Float, "matchup contribution to k_res uncertainty", ""},
	{VarKResUncertaintyH, cdf.Float, "harmonisation contribution to k_res uncertainty", ""},
	{VarKResNormalised, cdf.Double, "k_res normalised by its total uncertainty", ""},
}

// Residuals is the per-matchup output of a harmonisation fit: one record
// per matchup event, every field index-aligned over the matchup dimension.
type Residuals struct {
	Time                   []float64
	MeasurandI             []float64
	MeasurandJ             []float64
	MeasurandIUncertaintyQ []float32
	MeasurandIUncertaintyX []float32
	MeasurandJUncertaintyQ []float32
	MeasurandJUncertaintyX []float32
	KRes                   []float64
	KResUncertaintyL       []float32
	KResUncertaintyH       []float32
	KResNormalised         []float64

	Provenance Provenance
}

// Len returns the matchup count m.
func (r *Residuals) Len() int { return len(r.Time) }

// columns maps variable names to the backing slices, allocating matchup-
// sized slices when alloc is set.
func (r *Residuals) columns(alloc bool) map[string]any {
	m := r.Len()
	if alloc {
		r.MeasurandI = make([]float64, m)
		r.MeasurandJ = make([]float64, m)
		r.MeasurandIUncertaintyQ = make([]float32, m)
		r.MeasurandIUncertaintyX = make([]float32, m)
		r.MeasurandJUncertaintyQ = make([]float32, m)
		r.MeasurandJUncertaintyX = make([]float32, m)
		r.KRes = make([]float64, m)
		r.KResUncertaintyL = make([]float32, m)
		r.KResUncertaintyH = make([]float32, m)
		r.KResNormalised = make([]float64, m)
	}
	return map[string]any{
		VarTime:                   r.Time,
		VarMeasurandI:             r.MeasurandI,
		VarMeasurandJ:             r.MeasurandJ,
		VarMeasurandIUncertaintyQ: r.MeasurandIUncertaintyQ,
		VarMeasurandIUncertaintyX: r.MeasurandIUncertaintyX,
		VarMeasurandJUncertaintyQ: r.MeasurandJUncertaintyQ,
		VarMeasurandJUncertaintyX: r.MeasurandJUncertaintyX,
		VarKRes:                   r.KRes,
		VarKResUncertaintyL:       r.KResUncertaintyL,
		VarKResUncertaintyH:       r.KResUncertaintyH,
		VarKResNormalised:         r.KResNormalised,
	}
}

// Validate checks the index-alignment invariant: every field spans the same
// matchup dimension.
func (r *Residuals) Validate() error {
	m := r.Len()
	for name, col := range r.columns(false) {
		var got int
		switch v := col.(type) {
		case []float64:
			got = len(v)
		case []float32:
			got = len(v)
		}
		if got != m {
			return fmt.Errorf("dataset: %s has %d values, matchup dimension is %d", name, got, m)
		}
	}
	return r.Provenance.Validate()
}

// File renders the residuals as a netCDF classic dataset.
func (r *Residuals) File(version cdf.Version) (*cdf.File, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	f := &cdf.File{
		Version: version,
		Dims:    []cdf.Dim{{Name: DimMatchup, Len: r.Len()}},
		Attrs:   r.Provenance.attrs(),
	}
	cols := r.columns(false)
	for _, spec := range residualVars {
		v := cdf.Var{
			Name:  spec.name,
			Type:  spec.typ,
			Dims:  []string{DimMatchup},
			Attrs: []cdf.Attr{cdf.TextAttr("description", spec.description)},
			Data:  cols[spec.name],
		}
		if spec.units != "" {
			v.Attrs = append(v.Attrs, cdf.TextAttr("units", spec.units))
		}
		f.Vars = append(f.Vars, v)
	}
	return f, nil
}

// ResidualsFromFile decodes a residuals dataset, enforcing the schema.
func ResidualsFromFile(f *cdf.File) (*Residuals, error) {
	m := f.DimLen(DimMatchup)
	if m < 0 {
		return nil, fmt.Errorf("dataset: missing dimension %q", DimMatchup)
	}
	r := &Residuals{Time: make([]float64, m), Provenance: provenanceFromFile(f)}
	cols := r.columns(true)
	for _, spec := range residualVars {
		v := f.Var(spec.name)
		if v == nil {
			return nil, fmt.Errorf("dataset: missing variable %q", spec.name)
		}
		if v.Type != spec.typ {
			return nil, fmt.Errorf("dataset: variable %q is %s, want %s", spec.name, v.Type, spec.typ)
		}
		if len(v.Dims) != 1 || v.Dims[0] != DimMatchup {
			return nil, fmt.Errorf("dataset: variable %q spans %v, want [%s]", spec.name, v.Dims, DimMatchup)
		}
		switch dst := cols[spec.name].(type) {
		case []float64:
			copy(dst, v.Data.([]float64))
		case []float32:
			copy(dst, v.Data.([]float32))
		}
	}
	return r, nil
}
