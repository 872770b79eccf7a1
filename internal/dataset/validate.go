package dataset

import (
	"fmt"
	"math"

	"github.com/google/uuid"

	"harmtool/internal/cdf"
	"harmtool/internal/stats"
)

// Kind identifies which of the two layouts a file carries.
type Kind int

const (
	KindUnknown Kind = iota
	KindResiduals
	KindParameters
)

func (k Kind) String() string {
	switch k {
	case KindResiduals:
		return "residuals"
	case KindParameters:
		return "parameter"
	}
	return "unknown"
}

// DetectKind classifies a decoded file by its marker variables.
func DetectKind(f *cdf.File) Kind {
	if f.Var(VarParameter) != nil {
		return KindParameters
	}
	if f.Var(VarKRes) != nil {
		return KindResiduals
	}
	return KindUnknown
}

// Tolerances control the numeric checks applied to externally produced
// files. Zero values demand exact equality, the contract for files written
// by this tool.
type Tolerances struct {
	Symmetry        float64 // absolute, matrix symmetry
	CorrelationDiag float64 // absolute, |corr[i][i] - 1|
	CovarianceDiag  float64 // relative, covariance diagonal vs uncertainty²
}

// DefaultTolerances suits files produced by external solvers, where the
// matrix blocks went through a float round trip.
func DefaultTolerances() Tolerances {
	return Tolerances{Symmetry: 0, CorrelationDiag: 1e-12, CovarianceDiag: 1e-9}
}

// Report collects every schema violation found in one file.
type Report struct {
	Kind   Kind
	Issues []string
}

// OK reports whether validation found no issues.
func (r *Report) OK() bool { return len(r.Issues) == 0 }

func (r *Report) addf(format string, args ...any) {
	r.Issues = append(r.Issues, fmt.Sprintf(format, args...))
}

// Check validates a decoded file against whichever layout it carries,
// collecting all violations rather than stopping at the first.
func Check(f *cdf.File, tol Tolerances) *Report {
	r := &Report{Kind: DetectKind(f)}
	switch r.Kind {
	case KindResiduals:
		r.checkResiduals(f)
	case KindParameters:
		r.checkParameters(f, tol)
	default:
		r.addf("file carries neither a residuals nor a parameter layout")
		return r
	}
	r.checkProvenance(f)
	return r
}

func (r *Report) checkProvenance(f *cdf.File) {
	for _, name := range []string{
		AttrMatchupDataset, AttrMatchupDatasetBegin, AttrMatchupDatasetEnd,
		AttrSoftware, AttrSoftwareVersion, AttrSoftwareTag, AttrJob, AttrJobID,
	} {
		a := f.Attr(name)
		if a == nil {
			r.addf("missing global attribute %q", name)
			continue
		}
		if a.Type != cdf.Char {
			r.addf("global attribute %q is %s, want char", name, a.Type)
		}
	}
	if id := f.AttrText(AttrJobID); id != "" {
		if _, err := uuid.Parse(id); err != nil {
			r.addf("global attribute %q = %q is not a UUID", AttrJobID, id)
		}
	}
}

// checkVar verifies presence, type and dimensionality of one variable.
func (r *Report) checkVar(f *cdf.File, name string, typ cdf.Type, dims ...string) bool {
	v := f.Var(name)
	if v == nil {
		r.addf("missing variable %q", name)
		return false
	}
	if v.Type != typ {
		r.addf("variable %q is %s, want %s", name, v.Type, typ)
		return false
	}
	if len(v.Dims) != len(dims) {
		r.addf("variable %q spans %v, want %v", name, v.Dims, dims)
		return false
	}
	for i := range dims {
		if v.Dims[i] != dims[i] {
			r.addf("variable %q spans %v, want %v", name, v.Dims, dims)
			return false
		}
	}
	return true
}

func (r *Report) checkResiduals(f *cdf.File) {
	if f.DimLen(DimMatchup) < 0 {
		r.addf("missing dimension %q", DimMatchup)
	}
	for _, spec := range residualVars {
		r.checkVar(f, spec.name, spec.typ, DimMatchup)
	}
}

func (r *Report) checkParameters(f *cdf.File, tol Tolerances) {
	n := f.DimLen(DimParam)
	if n < 0 {
		r.addf("missing dimension %q", DimParam)
	}
	if f.DimLen(DimMatchup) < 0 {
		r.addf("missing dimension %q", DimMatchup)
	}
	if f.DimLen(DimLabel) < 0 {
		r.addf("missing dimension %q", DimLabel)
	}

	r.checkVar(f, VarParameter, cdf.Double, DimParam)
	r.checkVar(f, VarParameterUncertainty, cdf.Double, DimParam)
	r.checkVar(f, VarParameterSensors, cdf.Char, DimParam, DimLabel)
	for _, spec := range summaryVars {
		r.checkVar(f, spec.name, cdf.Double, DimMatchup)
	}
	r.checkVar(f, VarKResSensors, cdf.Char, DimMatchup, DimLabel)

	for _, spec := range matrixVars {
		if !r.checkVar(f, spec.name, cdf.Double, DimParam, DimParam) || n < 0 {
			continue
		}
		vals, ok := f.Var(spec.name).Data.([]float64)
		if !ok {
			r.addf("variable %q holds %T data, want []float64", spec.name, f.Var(spec.name).Data)
			continue
		}
		m, err := stats.MatrixFromSlice(n, vals)
		if err != nil {
			r.addf("%s: %v", spec.name, err)
			continue
		}
		if !m.IsSymmetric(tol.Symmetry) {
			r.addf("%s is not symmetric (max asymmetry %g, tolerance %g)",
				spec.name, m.MaxAsymmetry(), tol.Symmetry)
		}
	}

	// Correlation diagonal must be one. Mistyped matrices were already
	// reported above; skip the numeric checks for them.
	if v := f.Var(VarParameterCorrelation); v != nil && n >= 0 {
		if vals, ok := v.Data.([]float64); ok {
			if corr, err := stats.MatrixFromSlice(n, vals); err == nil {
				for i := 0; i < n; i++ {
					if d := math.Abs(corr.At(i, i) - 1); d > tol.CorrelationDiag {
						r.addf("%s diagonal element %d deviates from 1 by %g", VarParameterCorrelation, i, d)
						break
					}
				}
			}
		}
	}

	// Covariance diagonal must match the marginal uncertainties.
	cov := f.Var(VarParameterCovariance)
	unc := f.Var(VarParameterUncertainty)
	if cov != nil && unc != nil && n >= 0 {
		covVals, okC := cov.Data.([]float64)
		sigmas, okU := unc.Data.([]float64)
		var covM *stats.Matrix
		var errM error
		if okC {
			covM, errM = stats.MatrixFromSlice(n, covVals)
		}
		if okC && errM == nil && okU && len(sigmas) == n {
			for i := 0; i < n; i++ {
				want := sigmas[i] * sigmas[i]
				diff := math.Abs(covM.At(i, i) - want)
				if diff > tol.CovarianceDiag*math.Max(math.Abs(want), math.SmallestNonzeroFloat64) {
					r.addf("%s diagonal element %d (%g) does not match %s² (%g)",
						VarParameterCovariance, i, covM.At(i, i), VarParameterUncertainty, want)
					break
				}
			}
		}
	}
}
