package dataset

import (
	"fmt"

	"harmtool/internal/cdf"
	"harmtool/internal/stats"
)

// Parameter dataset variable names.
const (
	VarParameter            = "parameter"
	VarParameterUncertainty = "parameter_uncertainty"
	VarParameterCovariance  = "parameter_covariance_matrix"
	VarParameterCorrelation = "parameter_correlation_matrix"
	VarParameterHessian     = "parameter_hessian_matrix"
	VarParameterSensors     = "parameter_sensors"
	VarKResMean             = "k_res_mean"
	VarKResMeanStdev        = "k_res_mean_stdev"
	VarKResStdev            = "k_res_stdev"
	VarKResUncertaintyLMean = "k_res_uncertainty_l_mean"
	VarKResUncertaintyHMean = "k_res_uncertainty_h_mean"
	VarKResSensors          = "k_res_sensors"
)

// matrixVars lists the n×n blocks; all are symmetric by construction and
// share the coefficient ordering of the parameter vector.
var matrixVars = []varSpec{
	{VarParameterCovariance, cdf.Double, "covariance matrix of the fitted parameters", ""},
	{VarParameterCorrelation, cdf.Double, "correlation matrix of the fitted parameters", ""},
	{VarParameterHessian, cdf.Double, "Hessian matrix of the cost function at the solution", ""},
}

// summaryVars lists the per-sensor-pair summary statistics, each spanning
// the pair dimension and aligned with k_res_sensors.
var summaryVars = []varSpec{
	{VarKResMean, cdf.Double, "mean k_res per sensor pair", ""},
	{VarKResMeanStdev, cdf.Double, "standard deviation of the mean k_res per sensor pair", ""},
	{VarKResStdev, cdf.Double, "standard deviation of k_res per sensor pair", ""},
	{VarKResUncertaintyLMean, cdf.Double, "mean matchup contribution to k_res uncertainty per sensor pair", ""},
	{VarKResUncertaintyHMean, cdf.Double, "mean harmonisation contribution to k_res uncertainty per sensor pair", ""},
}

// Parameters is the global output of a harmonisation fit: the coefficient
// vector with its uncertainty structure, plus per-sensor-pair residual
// summary statistics.
type Parameters struct {
	Parameter            []float64
	ParameterUncertainty []float64
	Covariance           *stats.Matrix
	Correlation          *stats.Matrix
	Hessian              *stats.Matrix
	ParameterSensors     []string // sensor label per coefficient

	Summary stats.PairSummary

	LabelWidth int // l_name; DefaultLabelWidth when zero
	Provenance Provenance
}

// N returns the parameter count n.
func (p *Parameters) N() int { return len(p.Parameter) }

func (p *Parameters) labelWidth() int {
	if p.LabelWidth > 0 {
		return p.LabelWidth
	}
	return DefaultLabelWidth
}

func (p *Parameters) matrices() map[string]*stats.Matrix {
	return map[string]*stats.Matrix{
		VarParameterCovariance:  p.Covariance,
		VarParameterCorrelation: p.Correlation,
		VarParameterHessian:     p.Hessian,
	}
}

func (p *Parameters) summaryColumns() map[string][]float64 {
	return map[string][]float64{
		VarKResMean:             p.Summary.KResMean,
		VarKResMeanStdev:        p.Summary.KResMeanStdev,
		VarKResStdev:            p.Summary.KResStdev,
		VarKResUncertaintyLMean: p.Summary.KResUncertaintyLMean,
		VarKResUncertaintyHMean: p.Summary.KResUncertaintyHMean,
	}
}

// Validate checks the structural invariants: coefficient ordering alignment
// across vector, matrices and labels; matrix symmetry; summary alignment.
func (p *Parameters) Validate() error {
	n := p.N()
	if len(p.ParameterUncertainty) != n {
		return fmt.Errorf("dataset: %s has %d values, want %d", VarParameterUncertainty, len(p.ParameterUncertainty), n)
	}
	if len(p.ParameterSensors) != n {
		return fmt.Errorf("dataset: %s has %d labels, want %d", VarParameterSensors, len(p.ParameterSensors), n)
	}
	for name, m := range p.matrices() {
		if m == nil {
			return fmt.Errorf("dataset: missing matrix %s", name)
		}
		if m.N() != n {
			return fmt.Errorf("dataset: %s is %d×%d, parameter vector has %d entries", name, m.N(), m.N(), n)
		}
		if !m.IsSymmetric(0) {
			return fmt.Errorf("dataset: %s is not symmetric (max asymmetry %g)", name, m.MaxAsymmetry())
		}
	}
	pairs := p.Summary.Len()
	for name, col := range p.summaryColumns() {
		if len(col) != pairs {
			return fmt.Errorf("dataset: %s has %d values, pair dimension is %d", name, len(col), pairs)
		}
	}
	return p.Provenance.Validate()
}

// File renders the parameters as a netCDF classic dataset.
func (p *Parameters) File(version cdf.Version) (*cdf.File, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	n := p.N()
	width := p.labelWidth()
	pairs := p.Summary.Len()

	paramLabels, err := packLabels(p.ParameterSensors, width)
	if err != nil {
		return nil, err
	}
	pairLabels, err := packLabels(p.Summary.Sensors, width)
	if err != nil {
		return nil, err
	}

	f := &cdf.File{
		Version: version,
		Dims: []cdf.Dim{
			{Name: DimParam, Len: n},
			{Name: DimMatchup, Len: pairs},
			{Name: DimLabel, Len: width},
		},
		Attrs: p.Provenance.attrs(),
	}

	addVec := func(name, description string, data []float64, dim string) {
		f.Vars = append(f.Vars, cdf.Var{
			Name:  name,
			Type:  cdf.Double,
			Dims:  []string{dim},
			Attrs: []cdf.Attr{cdf.TextAttr("description", description)},
			Data:  data,
		})
	}

	addVec(VarParameter, "fitted calibration parameters", p.Parameter, DimParam)
	addVec(VarParameterUncertainty, "marginal uncertainty of the fitted parameters", p.ParameterUncertainty, DimParam)
	for _, spec := range matrixVars {
		f.Vars = append(f.Vars, cdf.Var{
			Name:  spec.name,
			Type:  cdf.Double,
			Dims:  []string{DimParam, DimParam},
			Attrs: []cdf.Attr{cdf.TextAttr("description", spec.description)},
			Data:  p.matrices()[spec.name].Values(),
		})
	}
	f.Vars = append(f.Vars, cdf.Var{
		Name:  VarParameterSensors,
		Type:  cdf.Char,
		Dims:  []string{DimParam, DimLabel},
		Attrs: []cdf.Attr{cdf.TextAttr("description", "sensor associated with each parameter")},
		Data:  paramLabels,
	})
	for _, spec := range summaryVars {
		addVec(spec.name, spec.description, p.summaryColumns()[spec.name], DimMatchup)
	}
	f.Vars = append(f.Vars, cdf.Var{
		Name:  VarKResSensors,
		Type:  cdf.Char,
		Dims:  []string{DimMatchup, DimLabel},
		Attrs: []cdf.Attr{cdf.TextAttr("description", "sensor pair of each summary row")},
		Data:  pairLabels,
	})
	return f, nil
}

// ParametersFromFile decodes a parameter dataset, enforcing the schema.
func ParametersFromFile(f *cdf.File) (*Parameters, error) {
	n := f.DimLen(DimParam)
	if n < 0 {
		return nil, fmt.Errorf("dataset: missing dimension %q", DimParam)
	}
	pairs := f.DimLen(DimMatchup)
	if pairs < 0 {
		return nil, fmt.Errorf("dataset: missing dimension %q", DimMatchup)
	}
	width := f.DimLen(DimLabel)
	if width < 0 {
		return nil, fmt.Errorf("dataset: missing dimension %q", DimLabel)
	}

	doubles := func(name string, wantLen int, dims ...string) ([]float64, error) {
		v := f.Var(name)
		if v == nil {
			return nil, fmt.Errorf("dataset: missing variable %q", name)
		}
		if v.Type != cdf.Double {
			return nil, fmt.Errorf("dataset: variable %q is %s, want double", name, v.Type)
		}
		if len(v.Dims) != len(dims) {
			return nil, fmt.Errorf("dataset: variable %q spans %v, want %v", name, v.Dims, dims)
		}
		for i := range dims {
			if v.Dims[i] != dims[i] {
				return nil, fmt.Errorf("dataset: variable %q spans %v, want %v", name, v.Dims, dims)
			}
		}
		data := v.Data.([]float64)
		if len(data) != wantLen {
			return nil, fmt.Errorf("dataset: variable %q has %d values, want %d", name, len(data), wantLen)
		}
		return data, nil
	}
	labels := func(name string, rows int) ([]string, error) {
		v := f.Var(name)
		if v == nil {
			return nil, fmt.Errorf("dataset: missing variable %q", name)
		}
		if v.Type != cdf.Char {
			return nil, fmt.Errorf("dataset: variable %q is %s, want char", name, v.Type)
		}
		raw := v.Data.([]byte)
		if len(raw) != rows*width {
			return nil, fmt.Errorf("dataset: variable %q has %d bytes, want %d", name, len(raw), rows*width)
		}
		return unpackLabels(raw, width), nil
	}

	p := &Parameters{LabelWidth: width, Provenance: provenanceFromFile(f)}
	var err error
	if p.Parameter, err = doubles(VarParameter, n, DimParam); err != nil {
		return nil, err
	}
	if p.ParameterUncertainty, err = doubles(VarParameterUncertainty, n, DimParam); err != nil {
		return nil, err
	}
	for _, spec := range matrixVars {
		vals, err := doubles(spec.name, n*n, DimParam, DimParam)
		if err != nil {
			return nil, err
		}
		m, err := stats.MatrixFromSlice(n, vals)
		if err != nil {
			return nil, err
		}
		switch spec.name {
		case VarParameterCovariance:
			p.Covariance = m
		case VarParameterCorrelation:
			p.Correlation = m
		case VarParameterHessian:
			p.Hessian = m
		}
	}
	if p.ParameterSensors, err = labels(VarParameterSensors, n); err != nil {
		return nil, err
	}
	if p.Summary.KResMean, err = doubles(VarKResMean, pairs, DimMatchup); err != nil {
		return nil, err
	}
	if p.Summary.KResMeanStdev, err = doubles(VarKResMeanStdev, pairs, DimMatchup); err != nil {
		return nil, err
	}
	if p.Summary.KResStdev, err = doubles(VarKResStdev, pairs, DimMatchup); err != nil {
		return nil, err
	}
	if p.Summary.KResUncertaintyLMean, err = doubles(VarKResUncertaintyLMean, pairs, DimMatchup); err != nil {
		return nil, err
	}
	if p.Summary.KResUncertaintyHMean, err = doubles(VarKResUncertaintyHMean, pairs, DimMatchup); err != nil {
		return nil, err
	}
	if p.Summary.Sensors, err = labels(VarKResSensors, pairs); err != nil {
		return nil, err
	}
	return p, nil
}
