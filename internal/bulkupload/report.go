package bulkupload

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/and161185/cruise-docsync/internal/model"
)

const reportTimeLayout = "20060102T150405Z"

// Options control a bulk run.
type Options struct {
	DeleteLocal bool   // remove each local file after a successful upload
	DryRun      bool   // record what would be uploaded without touching anything
	ReportDir   string // where the JSON report goes; "" means the working directory
}

func newReport(kind string, opts Options, now time.Time) *model.MigrationReport {
	id, err := uuid.NewV4()
	if err != nil {
		id = uuid.Nil
	}
	return &model.MigrationReport{
		RunID:     id,
		Kind:      kind,
		StartedAt: now.UTC(),
		DryRun:    opts.DryRun,
		DeleteSrc: opts.DeleteLocal,
		Records:   []model.MigrationRecord{},
	}
}

// ReportName is the file name for rep finished at t. The kind and a run id
// prefix keep runs finishing in the same second apart.
func ReportName(rep *model.MigrationReport, t time.Time) string {
	id := rep.RunID.String()
	return fmt.Sprintf("migration-report-%s-%s-%s.json", t.UTC().Format(reportTimeLayout), rep.Kind, id[:8])
}

// WriteReport finalizes totals and writes the report as indented JSON. It returns the path.
func WriteReport(dir string, rep *model.MigrationReport, finished time.Time) (string, error) {
	rep.FinishedAt = finished.UTC()
	rep.Count()

	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report dir: %w", err)
	}
	b, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, ReportName(rep, finished))
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// ReadReport loads a report written by WriteReport.
func ReadReport(path string) (*model.MigrationReport, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rep model.MigrationReport
	if err := json.Unmarshal(b, &rep); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &rep, nil
}
