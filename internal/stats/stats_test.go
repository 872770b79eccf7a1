package stats

import (
	"math"
	"testing"
)

func TestAccumulator(t *testing.T) {
	var a Accumulator
	for _, x := range []float64{2, 4, 4, 4, 5, 5, 7, 9} {
		a.Add(x)
	}
	if a.N() != 8 {
		t.Fatalf("N = %d, want 8", a.N())
	}
	if got := a.Mean(); math.Abs(got-5) > 1e-12 {
		t.Errorf("Mean = %v, want 5", got)
	}
	// Sample variance of the classic 2,4,4,4,5,5,7,9 set is 32/7.
	wantStdev := math.Sqrt(32.0 / 7.0)
	if got := a.Stdev(); math.Abs(got-wantStdev) > 1e-12 {
		t.Errorf("Stdev = %v, want %v", got, wantStdev)
	}
	wantMeanStdev := wantStdev / math.Sqrt(8)
	if got := a.MeanStdev(); math.Abs(got-wantMeanStdev) > 1e-12 {
		t.Errorf("MeanStdev = %v, want %v", got, wantMeanStdev)
	}
}

func TestAccumulatorEmptyAndNaN(t *testing.T) {
	var a Accumulator
	if !math.IsNaN(a.Mean()) || !math.IsNaN(a.Stdev()) {
		t.Error("empty accumulator should report NaN")
	}
	a.Add(math.NaN())
	if a.N() != 0 {
		t.Errorf("NaN was accumulated, N = %d", a.N())
	}
	a.Add(3)
	if a.Mean() != 3 {
		t.Errorf("Mean = %v, want 3", a.Mean())
	}
	if !math.IsNaN(a.Stdev()) {
		t.Error("single-value Stdev should be NaN")
	}
}

func TestSummarisePairs(t *testing.T) {
	labels := []string{"n19_n18", "n19_n18", "n18_n17", "n19_n18", "n18_n17"}
	kRes := []float64{1, 3, 10, 2, 30}
	uncL := []float32{0.1, 0.3, 1, 0.2, 3}
	uncH := []float32{1, 1, 2, 1, 2}

	s, err := SummarisePairs(labels, kRes, uncL, uncH)
	if err != nil {
		t.Fatalf("SummarisePairs failed: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("Len = %d, want 2", s.Len())
	}
	// First-appearance order.
	if s.Sensors[0] != "n19_n18" || s.Sensors[1] != "n18_n17" {
		t.Fatalf("pair order = %v", s.Sensors)
	}
	if got := s.KResMean[0]; math.Abs(got-2) > 1e-12 {
		t.Errorf("KResMean[n19_n18] = %v, want 2", got)
	}
	if got := s.KResMean[1]; math.Abs(got-20) > 1e-12 {
		t.Errorf("KResMean[n18_n17] = %v, want 20", got)
	}
	if got := s.KResStdev[0]; math.Abs(got-1) > 1e-12 {
		t.Errorf("KResStdev[n19_n18] = %v, want 1", got)
	}
	if got := s.KResUncertaintyLMean[0]; math.Abs(got-0.2) > 1e-6 {
		t.Errorf("KResUncertaintyLMean[n19_n18] = %v, want 0.2", got)
	}
	if got := s.KResUncertaintyHMean[1]; math.Abs(got-2) > 1e-6 {
		t.Errorf("KResUncertaintyHMean[n18_n17] = %v, want 2", got)
	}
}

func TestSummarisePairsMisaligned(t *testing.T) {
	_, err := SummarisePairs([]string{"a"}, []float64{1, 2}, []float32{1, 2}, []float32{1, 2})
	if err == nil {
		t.Error("misaligned inputs accepted")
	}
}

func TestMatrixSymmetry(t *testing.T) {
	m := NewMatrix(3)
	m.Set(0, 1, 0.5)
	m.Set(1, 0, 0.5)
	m.Set(0, 2, -1)
	m.Set(2, 0, -1)
	if !m.IsSymmetric(0) {
		t.Error("symmetric matrix reported asymmetric")
	}
	m.Set(2, 1, 1e-9)
	if m.IsSymmetric(0) {
		t.Error("asymmetric matrix reported symmetric at tol 0")
	}
	if !m.IsSymmetric(1e-8) {
		t.Error("asymmetry above stated tolerance")
	}
	if got := m.MaxAsymmetry(); math.Abs(got-1e-9) > 1e-24 {
		t.Errorf("MaxAsymmetry = %v, want 1e-9", got)
	}
}

func TestCorrelationFromCovariance(t *testing.T) {
	cov, err := MatrixFromSlice(2, []float64{4, 1, 1, 9})
	if err != nil {
		t.Fatalf("MatrixFromSlice failed: %v", err)
	}
	corr, err := CorrelationFromCovariance(cov)
	if err != nil {
		t.Fatalf("CorrelationFromCovariance failed: %v", err)
	}
	if corr.At(0, 0) != 1 || corr.At(1, 1) != 1 {
		t.Errorf("diagonal = %v, %v, want 1, 1", corr.At(0, 0), corr.At(1, 1))
	}
	want := 1.0 / 6.0
	if got := corr.At(0, 1); math.Abs(got-want) > 1e-12 {
		t.Errorf("corr(0,1) = %v, want %v", got, want)
	}
	if corr.At(0, 1) != corr.At(1, 0) {
		t.Error("correlation matrix not symmetric")
	}

	sigma := MarginalUncertainties(cov)
	if sigma[0] != 2 || sigma[1] != 3 {
		t.Errorf("MarginalUncertainties = %v, want [2 3]", sigma)
	}
}

func TestCorrelationRejectsBadDiagonal(t *testing.T) {
	cov, _ := MatrixFromSlice(2, []float64{4, 1, 1, 0})
	if _, err := CorrelationFromCovariance(cov); err == nil {
		t.Error("zero diagonal accepted")
	}
}

func TestMatrixFromSliceWrongLength(t *testing.T) {
	if _, err := MatrixFromSlice(3, make([]float64, 8)); err == nil {
		t.Error("8 values accepted for a 3×3 matrix")
	}
}
