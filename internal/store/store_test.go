package store

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"harmtool/internal/dataset"
)

func testResiduals(jobID string) *dataset.Residuals {
	return &dataset.Residuals{
		Time:                   []float64{100, 200, 300, 400},
		MeasurandI:             []float64{1, 2, 3, 4},
		MeasurandJ:             []float64{1.5, 2.5, 3.5, 4.5},
		MeasurandIUncertaintyQ: []float32{0.1, 0.1, 0.1, 0.1},
		MeasurandIUncertaintyX: []float32{0.2, 0.2, 0.2, 0.2},
		MeasurandJUncertaintyQ: []float32{0.1, 0.1, 0.1, 0.1},
		MeasurandJUncertaintyX: []float32{0.2, 0.2, 0.2, 0.2},
		KRes:                   []float64{0.5, -0.5, 1, 3},
		KResUncertaintyL:       []float32{0.25, 0.75, 0.5, 0.5},
		KResUncertaintyH:       []float32{0.5, 0.5, 0.25, 0.25},
		KResNormalised:         []float64{1, -1, 2, 6},
		Provenance: dataset.Provenance{
			MatchupDataset: "AVHRR_REAL_4",
			Software:       "harmtool",
			JobID:          jobID,
		},
	}
}

func TestIngestAndLookup(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	jobID := "1b4e28ba-2fa1-11d2-883f-0016d3cca427"
	id, err := s.Ingest(ctx, testResiduals(jobID), []string{"m02_n19", "m02_n19", "n19_n15", "n19_n15"})
	require.NoError(t, err)
	require.NotZero(t, id)

	all, err := s.Datasets(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, jobID, all[0].Provenance.JobID)
	assert.Equal(t, 4, all[0].Records)

	d, err := s.DatasetByJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, id, d.ID)
	assert.Equal(t, "AVHRR_REAL_4", d.Provenance.MatchupDataset)

	_, err = s.DatasetByJob(ctx, "missing")
	assert.Error(t, err)
}

func TestIngestRejectsDuplicateJob(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	jobID := "1b4e28ba-2fa1-11d2-883f-0016d3cca427"
	_, err = s.Ingest(ctx, testResiduals(jobID), nil)
	require.NoError(t, err)

	_, err = s.Ingest(ctx, testResiduals(jobID), nil)
	assert.Error(t, err)
}

func TestIngestRejectsMisalignedPairs(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	jobID := "1b4e28ba-2fa1-11d2-883f-0016d3cca427"
	_, err = s.Ingest(context.Background(), testResiduals(jobID), []string{"only_one"})
	assert.Error(t, err)
}

func TestPairStats(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	jobID := "1b4e28ba-2fa1-11d2-883f-0016d3cca427"
	id, err := s.Ingest(ctx, testResiduals(jobID), []string{"m02_n19", "m02_n19", "n19_n15", "n19_n15"})
	require.NoError(t, err)

	sum, err := s.PairStats(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []string{"m02_n19", "n19_n15"}, sum.Sensors)

	// First pair: k_res {0.5, -0.5}.
	assert.InDelta(t, 0, sum.KResMean[0], 1e-12)
	assert.InDelta(t, math.Sqrt(0.5), sum.KResStdev[0], 1e-12)
	assert.InDelta(t, 0.5, sum.KResUncertaintyLMean[0], 1e-12)
	// Second pair: k_res {1, 3}.
	assert.InDelta(t, 2, sum.KResMean[1], 1e-12)
	assert.InDelta(t, math.Sqrt2, sum.KResStdev[1], 1e-12)
	assert.InDelta(t, 0.25, sum.KResUncertaintyHMean[1], 1e-12)

	_, err = s.PairStats(ctx, id+1)
	assert.Error(t, err)
}

func TestIngestMaskedMatchups(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	jobID := "1b4e28ba-2fa1-11d2-883f-0016d3cca427"
	r := testResiduals(jobID)
	r.KRes[1] = math.NaN()
	r.KResNormalised[1] = math.NaN()
	r.KResUncertaintyL[1] = float32(math.NaN())

	id, err := s.Ingest(ctx, r, []string{"m02_n19", "m02_n19", "n19_n15", "n19_n15"})
	require.NoError(t, err)

	// The masked matchup is stored but excluded from the summaries.
	sum, err := s.PairStats(ctx, id)
	require.NoError(t, err)
	require.Equal(t, []string{"m02_n19", "n19_n15"}, sum.Sensors)
	assert.InDelta(t, 0.5, sum.KResMean[0], 1e-12)
	assert.InDelta(t, 0.25, sum.KResUncertaintyLMean[0], 1e-12)
	assert.InDelta(t, 2, sum.KResMean[1], 1e-12)
}

func TestRemove(t *testing.T) {
	s, err := Open(":memory:")
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	jobID := "1b4e28ba-2fa1-11d2-883f-0016d3cca427"
	id, err := s.Ingest(ctx, testResiduals(jobID), nil)
	require.NoError(t, err)

	require.NoError(t, s.Remove(ctx, jobID))

	all, err := s.Datasets(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	_, err = s.PairStats(ctx, id)
	assert.Error(t, err)

	assert.Error(t, s.Remove(ctx, jobID))
}
