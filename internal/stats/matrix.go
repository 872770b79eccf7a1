package stats

import (
	"fmt"
	"math"
)

// Matrix is a dense square matrix stored row-major, the in-memory form of
// the parameter covariance, correlation and Hessian blocks.
type Matrix struct {
	n int
	v []float64
}

// NewMatrix returns a zeroed n×n matrix.
func NewMatrix(n int) *Matrix {
	return &Matrix{n: n, v: make([]float64, n*n)}
}

// MatrixFromSlice wraps a row-major value slice as an n×n matrix. The slice
// is not copied.
func MatrixFromSlice(n int, values []float64) (*Matrix, error) {
	if len(values) != n*n {
		return nil, fmt.Errorf("stats: %d values cannot form a %d×%d matrix", len(values), n, n)
	}
	return &Matrix{n: n, v: values}, nil
}

// N returns the matrix order.
func (m *Matrix) N() int { return m.n }

// At returns element (i, j).
func (m *Matrix) At(i, j int) float64 { return m.v[i*m.n+j] }

// Set assigns element (i, j).
func (m *Matrix) Set(i, j int, x float64) { m.v[i*m.n+j] = x }

// Values returns the backing row-major slice.
func (m *Matrix) Values() []float64 { return m.v }

// MaxAsymmetry returns the largest |M[i][j] - M[j][i]| over the upper
// triangle. Zero for an exactly symmetric matrix.
func (m *Matrix) MaxAsymmetry() float64 {
	worst := 0.0
	for i := 0; i < m.n; i++ {
		for j := i + 1; j < m.n; j++ {
			d := math.Abs(m.At(i, j) - m.At(j, i))
			if d > worst {
				worst = d
			}
		}
	}
	return worst
}

// IsSymmetric reports whether the matrix is symmetric within tol.
// tol 0 demands exact equality, the contract for matrices this tool writes.
func (m *Matrix) IsSymmetric(tol float64) bool {
	return m.MaxAsymmetry() <= tol
}

// CorrelationFromCovariance converts a covariance matrix to the matching
// correlation matrix, corr[i][j] = cov[i][j]/(σi·σj). Fails when a diagonal
// element is not positive.
func CorrelationFromCovariance(cov *Matrix) (*Matrix, error) {
	n := cov.N()
	sigma := make([]float64, n)
	for i := 0; i < n; i++ {
		d := cov.At(i, i)
		if d <= 0 || math.IsNaN(d) {
			return nil, fmt.Errorf("stats: covariance diagonal element %d is %g, want > 0", i, d)
		}
		sigma[i] = math.Sqrt(d)
	}
	corr := NewMatrix(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			corr.Set(i, j, cov.At(i, j)/(sigma[i]*sigma[j]))
		}
	}
	return corr, nil
}

// MarginalUncertainties returns the square roots of the covariance
// diagonal, the parameter_uncertainty vector implied by the matrix.
func MarginalUncertainties(cov *Matrix) []float64 {
	out := make([]float64, cov.N())
	for i := range out {
		out[i] = math.Sqrt(cov.At(i, i))
	}
	return out
}
