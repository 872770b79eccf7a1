// Package dataset defines the two harmonisation output layouts — the
// per-matchup residuals dataset and the parameter dataset — as typed
// structures over the netCDF classic codec, together with their schema
// validation.
package dataset

import (
	"fmt"

	"github.com/google/uuid"

	"harmtool/internal/cdf"
)

// Global attribute names shared by both layouts. Written once at file
// creation and never mutated afterwards.
const (
	AttrMatchupDataset      = "matchup_dataset"
	AttrMatchupDatasetBegin = "matchup_dataset_begin"
	AttrMatchupDatasetEnd   = "matchup_dataset_end"
	AttrSoftware            = "software"
	AttrSoftwareVersion     = "software_version"
	AttrSoftwareTag         = "software_tag"
	AttrJob                 = "job"
	AttrJobID               = "job_id"
)

// Provenance is the immutable creation metadata carried by both layouts.
type Provenance struct {
	MatchupDataset      string // matchup dataset identity, e.g. "AVHRR_REAL_4"
	MatchupDatasetBegin string // first matchup date, YYYYMMDD
	MatchupDatasetEnd   string // last matchup date, YYYYMMDD
	Software            string // producing software name
	SoftwareVersion     string
	SoftwareTag         string // VCS tag or commit of the producing software
	Job                 string // job configuration name
	JobID               string // unique job identifier (UUID)
}

// NewJobID returns a fresh job identifier.
func NewJobID() string { return uuid.NewString() }

// Validate checks the fields a well-formed product must carry.
func (p Provenance) Validate() error {
	if p.MatchupDataset == "" {
		return fmt.Errorf("dataset: provenance missing %s", AttrMatchupDataset)
	}
	if p.JobID == "" {
		return fmt.Errorf("dataset: provenance missing %s", AttrJobID)
	}
	if _, err := uuid.Parse(p.JobID); err != nil {
		return fmt.Errorf("dataset: %s %q is not a UUID: %w", AttrJobID, p.JobID, err)
	}
	return nil
}

// attrs renders the provenance as global attributes in canonical order.
func (p Provenance) attrs() []cdf.Attr {
	return []cdf.Attr{
		cdf.TextAttr(AttrMatchupDataset, p.MatchupDataset),
		cdf.TextAttr(AttrMatchupDatasetBegin, p.MatchupDatasetBegin),
		cdf.TextAttr(AttrMatchupDatasetEnd, p.MatchupDatasetEnd),
		cdf.TextAttr(AttrSoftware, p.Software),
		cdf.TextAttr(AttrSoftwareVersion, p.SoftwareVersion),
		cdf.TextAttr(AttrSoftwareTag, p.SoftwareTag),
		cdf.TextAttr(AttrJob, p.Job),
		cdf.TextAttr(AttrJobID, p.JobID),
	}
}

// provenanceFromFile extracts the provenance attributes; absent attributes
// come back empty and are reported by schema validation, not here.
func provenanceFromFile(f *cdf.File) Provenance {
	return Provenance{
		MatchupDataset:      f.AttrText(AttrMatchupDataset),
		MatchupDatasetBegin: f.AttrText(AttrMatchupDatasetBegin),
		MatchupDatasetEnd:   f.AttrText(AttrMatchupDatasetEnd),
		Software:            f.AttrText(AttrSoftware),
		SoftwareVersion:     f.AttrText(AttrSoftwareVersion),
		SoftwareTag:         f.AttrText(AttrSoftwareTag),
		Job:                 f.AttrText(AttrJob),
		JobID:               f.AttrText(AttrJobID),
	}
}
