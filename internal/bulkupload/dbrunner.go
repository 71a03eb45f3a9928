package bulkupload

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/cruise-docsync/internal/config"
	"github.com/and161185/cruise-docsync/internal/docstore"
	"github.com/and161185/cruise-docsync/internal/model"
	"github.com/and161185/cruise-docsync/internal/repository"
)

// DefaultFields are the file-reference columns of the trip schema.
var DefaultFields = []model.FileField{
	{Table: "travelers", Column: "passport_image", Category: string(config.Passports)},
	{Table: "travelers", Column: "signature_image", Category: string(config.Signatures)},
	{Table: "reservations", Column: "contract_file", Category: string(config.Contracts)},
	{Table: "trips", Column: "cover_image", Category: string(config.CruiseImage)},
}

// DBRunner migrates files referenced from database columns and repoints each
// column to the remote URL right after its upload, so an interrupted run
// leaves finished rows correct.
type DBRunner struct {
	refs    repository.FileRefRepository
	files   docstore.Files
	folders map[config.Category]string
	baseDir string
	opts    Options
	log     *zap.Logger
	now     func() time.Time
}

// NewDBRunner constructs a DBRunner. Relative stored paths are resolved against baseDir.
func NewDBRunner(refs repository.FileRefRepository, files docstore.Files, folders map[config.Category]string, baseDir string, opts Options, log *zap.Logger) *DBRunner {
	if log == nil {
		log = zap.NewNop()
	}
	return &DBRunner{refs: refs, files: files, folders: folders, baseDir: baseDir, opts: opts, log: log, now: time.Now}
}

// dbRun is the state of one DBRunner.Run. A local file may be referenced by
// several rows; it is uploaded once and deleted only after every field ran.
type dbRun struct {
	uploaded map[string]model.RemoteRef // local path -> remote copy
	order    []string                   // uploaded paths in upload order
	keep     map[string]bool            // paths some row still points at
}

// Run processes every field in order. Like Runner.Run the report is always written.
func (r *DBRunner) Run(ctx context.Context, fields []model.FileField) (*model.MigrationReport, string, error) {
	rep := newReport("database", r.opts, r.now())
	st := &dbRun{uploaded: map[string]model.RemoteRef{}, keep: map[string]bool{}}

	for _, f := range fields {
		if ctx.Err() != nil {
			break
		}
		rep.Records = append(rep.Records, r.runField(ctx, st, f)...)
	}
	if r.opts.DeleteLocal {
		r.deleteLocal(st, rep.Records)
	}

	path, err := WriteReport(r.opts.ReportDir, rep, r.now())
	r.log.Info("database file migration finished",
		zap.String("run_id", rep.RunID.String()),
		zap.Int("uploaded", rep.Totals.Uploaded),
		zap.Int("skipped", rep.Totals.Skipped),
		zap.Int("errors", rep.Totals.Errors),
		zap.String("report", path),
	)
	return rep, path, err
}

func (r *DBRunner) runField(ctx context.Context, st *dbRun, f model.FileField) []model.MigrationRecord {
	target := f.Table + "." + f.Column
	cat := config.Category(f.Category)
	folderID := r.folders[cat]
	if folderID == "" {
		return []model.MigrationRecord{skipped(target, "", config.FolderEnv[cat]+" not set")}
	}

	refs, err := r.refs.ListLocal(ctx, f)
	if err != nil {
		return []model.MigrationRecord{failed(target, "", err)}
	}

	recs := make([]model.MigrationRecord, 0, len(refs))
	for _, ref := range refs {
		if ctx.Err() != nil {
			break
		}
		recs = append(recs, r.migrate(ctx, st, target, folderID, ref))
	}
	return recs
}

func (r *DBRunner) migrate(ctx context.Context, st *dbRun, target, folderID string, ref model.FileRef) model.MigrationRecord {
	path := r.localPath(ref.Path)

	remote, seen := st.uploaded[path]
	if !seen {
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return skipped(target, path, "file not found")
			}
			return failed(target, path, err)
		}
		if r.opts.DryRun {
			return skipped(target, path, "dry-run")
		}

		rel, err := filepath.Rel(r.baseDir, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			rel = filepath.Base(path)
		}
		remote, err = uploadFile(ctx, r.files, folderID, path, RemoteName(rel), docstore.LinkShared)
		if err != nil {
			r.log.Warn("upload failed", zap.String("path", path), zap.Error(err))
			return failed(target, path, err)
		}
		st.uploaded[path] = remote
		st.order = append(st.order, path)
	}

	if err := r.refs.UpdateURL(ctx, ref, remote.URL); err != nil {
		st.keep[path] = true
		r.log.Error("uploaded but row not repointed",
			zap.String("target", target), zap.Int64("id", ref.RecordID), zap.String("url", remote.URL), zap.Error(err))
		return model.MigrationRecord{Target: target, LocalPath: path, RemoteRef: &remote, Status: model.StatusError,
			Reason: "update row: " + err.Error()}
	}

	rec := model.MigrationRecord{Target: target, LocalPath: path, RemoteRef: &remote, Status: model.StatusUploaded}
	if seen {
		rec.Reason = "reused upload from this run"
	}
	return rec
}

// deleteLocal removes uploaded files no row still points at and notes
// failed deletes on the matching records.
func (r *DBRunner) deleteLocal(st *dbRun, recs []model.MigrationRecord) {
	for _, path := range st.order {
		if st.keep[path] {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			r.log.Warn("local delete failed", zap.String("path", path), zap.Error(err))
			for i := range recs {
				if recs[i].LocalPath == path && recs[i].Status == model.StatusUploaded {
					recs[i].Reason = strings.TrimPrefix(recs[i].Reason+"; local delete failed: "+err.Error(), "; ")
				}
			}
		}
	}
}

// localPath maps a stored value such as "/uploads/passports/a.jpg" onto baseDir.
func (r *DBRunner) localPath(stored string) string {
	p := filepath.FromSlash(strings.TrimSpace(stored))
	if filepath.IsAbs(p) {
		if _, err := os.Stat(p); err == nil {
			return p
		}
		p = strings.TrimLeft(p, string(filepath.Separator))
	}
	if r.baseDir == "" {
		return p
	}
	rel := strings.TrimPrefix(p, "uploads"+string(filepath.Separator))
	if rel != p {
		if _, err := os.Stat(filepath.Join(r.baseDir, rel)); err == nil {
			return filepath.Join(r.baseDir, rel)
		}
	}
	return filepath.Join(r.baseDir, p)
}
