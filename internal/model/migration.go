package model

import (
	"time"

	"github.com/gofrs/uuid/v5"
)

// MigrationStatus is the outcome of one bulk-migration item.
type MigrationStatus string

const (
	StatusUploaded MigrationStatus = "uploaded"
	StatusSkipped  MigrationStatus = "skipped"
	StatusError    MigrationStatus = "error"
)

// MigrationRecord is one report line. It is never modified after being appended.
type MigrationRecord struct {
	Target    string          `json:"target"`
	LocalPath string          `json:"local_path"`
	RemoteRef *RemoteRef      `json:"remote_ref,omitempty"`
	Status    MigrationStatus `json:"status"`
	Reason    string          `json:"reason,omitempty"`
}

// MigrationTotals aggregates record statuses.
type MigrationTotals struct {
	Uploaded int `json:"uploaded"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"error"`
}

// MigrationReport is the JSON artifact written after every bulk run.
type MigrationReport struct {
	RunID      uuid.UUID         `json:"run_id"`
	Kind       string            `json:"kind"` // "files" or "database"
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	DryRun     bool              `json:"dry_run"`
	DeleteSrc  bool              `json:"delete_local"`
	Records    []MigrationRecord `json:"records"`
	Totals     MigrationTotals   `json:"totals"`
}

// Count recomputes Totals from Records.
func (r *MigrationReport) Count() {
	var t MigrationTotals
	for _, rec := range r.Records {
		switch rec.Status {
		case StatusUploaded:
			t.Uploaded++
		case StatusSkipped:
			t.Skipped++
		case StatusError:
			t.Errors++
		}
	}
	r.Totals = t
}

// FileField names a relational column that stores a file path or URL.
type FileField struct {
	Table    string
	Column   string
	Category string // folder category the files belong to
}

// FileRef is one row value of a FileField that still points at a local file.
type FileRef struct {
	Field    FileField
	RecordID int64
	Path     string
}
