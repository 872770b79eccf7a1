// Package store maintains a local sqlite index of ingested residual
// datasets, so per-pair summaries and job lookups do not have to re-read the
// 16.8M-row netCDF products every time.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"harmtool/internal/dataset"
	"harmtool/internal/stats"
)

// ingestBatch rows go into one prepared statement per transaction.
const ingestBatch = 5000

// Store is a residual dataset index backed by sqlite.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// Open creates or opens the index at path. ":memory:" opens a throwaway
// in-memory index.
func Open(path string) (*Store, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("store: create directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: initialize schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS datasets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		job_id TEXT NOT NULL UNIQUE,
		matchup_dataset TEXT NOT NULL,
		matchup_begin TEXT,
		matchup_end TEXT,
		software TEXT,
		software_version TEXT,
		software_tag TEXT,
		job TEXT,
		records INTEGER NOT NULL,
		ingested_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS residuals (
		dataset_id INTEGER NOT NULL,
		idx INTEGER NOT NULL,
		t REAL,
		pair TEXT NOT NULL DEFAULT '',
		k_res REAL,
		k_res_normalised REAL,
		uncertainty_l REAL,
		uncertainty_h REAL,
		PRIMARY KEY (dataset_id, idx),
		FOREIGN KEY (dataset_id) REFERENCES datasets(id)
	);
	CREATE INDEX IF NOT EXISTS idx_residuals_pair ON residuals(dataset_id, pair);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Dataset is one indexed residual dataset.
type Dataset struct {
	ID         int64
	Provenance dataset.Provenance
	Records    int
	IngestedAt time.Time
}

// Ingest indexes a residual dataset. pairs optionally carries the
// sensor-pair label of each matchup; nil leaves the pair column empty.
// Re-ingesting a job ID fails rather than silently duplicating.
func (s *Store) Ingest(ctx context.Context, r *dataset.Residuals, pairs []string) (int64, error) {
	if err := r.Validate(); err != nil {
		return 0, err
	}
	if pairs != nil && len(pairs) != r.Len() {
		return 0, fmt.Errorf("store: %d pair labels for %d matchups", len(pairs), r.Len())
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	p := r.Provenance
	res, err := tx.ExecContext(ctx, `
		INSERT INTO datasets (job_id, matchup_dataset, matchup_begin, matchup_end,
			software, software_version, software_tag, job, records, ingested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.JobID, p.MatchupDataset, p.MatchupDatasetBegin, p.MatchupDatasetEnd,
		p.Software, p.SoftwareVersion, p.SoftwareTag, p.Job, r.Len(), time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("store: insert dataset: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO residuals (dataset_id, idx, t, pair, k_res, k_res_normalised,
			uncertainty_l, uncertainty_h)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("store: prepare residual insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < r.Len(); i++ {
		pair := ""
		if pairs != nil {
			pair = pairs[i]
		}
		if _, err := stmt.ExecContext(ctx, id, i, nullableReal(r.Time[i]), pair,
			nullableReal(r.KRes[i]), nullableReal(r.KResNormalised[i]),
			nullableReal(float64(r.KResUncertaintyL[i])), nullableReal(float64(r.KResUncertaintyH[i]))); err != nil {
			return 0, fmt.Errorf("store: insert residual %d: %w", i, err)
		}
		if (i+1)%ingestBatch == 0 {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: commit: %w", err)
	}
	return id, nil
}

// Masked matchups carry NaN, which sqlite cannot store in a REAL column; the
// value goes in as NULL and comes back out as NaN.
func nullableReal(x float64) any {
	if math.IsNaN(x) {
		return nil
	}
	return x
}

func realValue(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}

// Datasets lists all indexed datasets, most recent first.
func (s *Store) Datasets(ctx context.Context) ([]Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, job_id, matchup_dataset, matchup_begin, matchup_end,
			software, software_version, software_tag, job, records, ingested_at
		FROM datasets ORDER BY ingested_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("store: list datasets: %w", err)
	}
	defer rows.Close()

	var out []Dataset
	for rows.Next() {
		var d Dataset
		p := &d.Provenance
		if err := rows.Scan(&d.ID, &p.JobID, &p.MatchupDataset,
			&p.MatchupDatasetBegin, &p.MatchupDatasetEnd,
			&p.Software, &p.SoftwareVersion, &p.SoftwareTag, &p.Job,
			&d.Records, &d.IngestedAt); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DatasetByJob returns the dataset indexed under the given job ID.
func (s *Store) DatasetByJob(ctx context.Context, jobID string) (*Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var d Dataset
	p := &d.Provenance
	err := s.db.QueryRowContext(ctx, `
		SELECT id, job_id, matchup_dataset, matchup_begin, matchup_end,
			software, software_version, software_tag, job, records, ingested_at
		FROM datasets WHERE job_id = ?`, jobID).
		Scan(&d.ID, &p.JobID, &p.MatchupDataset,
			&p.MatchupDatasetBegin, &p.MatchupDatasetEnd,
			&p.Software, &p.SoftwareVersion, &p.SoftwareTag, &p.Job,
			&d.Records, &d.IngestedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("store: no dataset with job ID %q", jobID)
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Remove drops a dataset and its residual rows.
func (s *Store) Remove(ctx context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM residuals WHERE dataset_id IN (SELECT id FROM datasets WHERE job_id = ?)`,
		jobID); err != nil {
		return err
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM datasets WHERE job_id = ?`, jobID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("store: no dataset with job ID %q", jobID)
	}
	return tx.Commit()
}

type pairAcc struct {
	kRes stats.Accumulator
	uL   stats.Accumulator
	uH   stats.Accumulator
}

// PairStats streams the indexed residuals of a dataset and summarises them
// per sensor pair, grouped in matchup order of first appearance.
func (s *Store) PairStats(ctx context.Context, datasetID int64) (*stats.PairSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT pair, k_res, uncertainty_l, uncertainty_h
		FROM residuals WHERE dataset_id = ? ORDER BY idx`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("store: query residuals: %w", err)
	}
	defer rows.Close()

	accs := make(map[string]*pairAcc)
	var order []string
	for rows.Next() {
		var pair string
		var kRes, uL, uH sql.NullFloat64
		if err := rows.Scan(&pair, &kRes, &uL, &uH); err != nil {
			return nil, err
		}
		acc, ok := accs[pair]
		if !ok {
			acc = &pairAcc{}
			accs[pair] = acc
			order = append(order, pair)
		}
		acc.kRes.Add(realValue(kRes))
		acc.uL.Add(realValue(uL))
		acc.uH.Add(realValue(uH))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(order) == 0 {
		return nil, fmt.Errorf("store: dataset %d has no residual rows", datasetID)
	}

	sum := &stats.PairSummary{
		Sensors:              order,
		KResMean:             make([]float64, len(order)),
		KResMeanStdev:        make([]float64, len(order)),
		KResStdev:            make([]float64, len(order)),
		KResUncertaintyLMean: make([]float64, len(order)),
		KResUncertaintyHMean: make([]float64, len(order)),
	}
	for i, pair := range order {
		acc := accs[pair]
		sum.KResMean[i] = acc.kRes.Mean()
		sum.KResMeanStdev[i] = acc.kRes.MeanStdev()
		sum.KResStdev[i] = acc.kRes.Stdev()
		sum.KResUncertaintyLMean[i] = acc.uL.Mean()
		sum.KResUncertaintyHMean[i] = acc.uH.Mean()
	}
	return sum, nil
}
