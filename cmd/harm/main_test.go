package main

import (
	"os"
	"path/filepath"
	"testing"

	"harmtool/internal/cdf"
	"harmtool/internal/dataset"
)

func writeResidualsFile(t *testing.T, dir string) string {
	t.Helper()
	r := &dataset.Residuals{
		Time:                   []float64{100, 200},
		MeasurandI:             []float64{1, 2},
		MeasurandJ:             []float64{1.5, 2.5},
		MeasurandIUncertaintyQ: []float32{0.1, 0.1},
		MeasurandIUncertaintyX: []float32{0.2, 0.2},
		MeasurandJUncertaintyQ: []float32{0.1, 0.1},
		MeasurandJUncertaintyX: []float32{0.2, 0.2},
		KRes:                   []float64{0.5, -0.5},
		KResUncertaintyL:       []float32{0.25, 0.75},
		KResUncertaintyH:       []float32{0.5, 0.5},
		KResNormalised:         []float64{1, -1},
		Provenance: dataset.Provenance{
			MatchupDataset:      "AVHRR_REAL_4",
			MatchupDatasetBegin: "19911004",
			MatchupDatasetEnd:   "20100403",
			Software:            "harmtool",
			SoftwareVersion:     "1.0",
			SoftwareTag:         "v1.0",
			Job:                 "avhrr_test",
			JobID:               "1b4e28ba-2fa1-11d2-883f-0016d3cca427",
		},
	}
	f, err := r.File(cdf.V2)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "residuals.nc")
	if err := cdf.WriteFile(path, f); err != nil {
		t.Fatal(err)
	}
	return path
}

func execute(t *testing.T, args ...string) error {
	t.Helper()
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func TestInspectValidateStats(t *testing.T) {
	path := writeResidualsFile(t, t.TempDir())

	if err := execute(t, "inspect", path); err != nil {
		t.Errorf("inspect: %v", err)
	}
	if err := execute(t, "validate", path); err != nil {
		t.Errorf("validate: %v", err)
	}
	if err := execute(t, "stats", path); err != nil {
		t.Errorf("stats: %v", err)
	}
}

func TestValidateFailsOnBrokenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.nc")
	if err := os.WriteFile(path, []byte("not netcdf"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := execute(t, "validate", path); err == nil {
		t.Error("validate accepted a broken file")
	}
}

func TestDiffBytesIdentical(t *testing.T) {
	path := writeResidualsFile(t, t.TempDir())
	if err := execute(t, "diff", "--bytes", path, path); err != nil {
		t.Errorf("diff: %v", err)
	}
}

func TestIngestDatasetsPairs(t *testing.T) {
	dir := t.TempDir()
	path := writeResidualsFile(t, dir)
	t.Setenv("HARM_DB", filepath.Join(dir, "index.db"))

	labels := filepath.Join(dir, "labels.txt")
	if err := os.WriteFile(labels, []byte("m02_n19\nm02_n19\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := execute(t, "ingest", "--labels", labels, path); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if err := execute(t, "datasets"); err != nil {
		t.Errorf("datasets: %v", err)
	}
	if err := execute(t, "pairs", "1b4e28ba-2fa1-11d2-883f-0016d3cca427"); err != nil {
		t.Errorf("pairs: %v", err)
	}
}
