// Package bulkupload migrates local files into the remote document store and
// records a per-file report.
package bulkupload

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/and161185/cruise-docsync/internal/config"
	"github.com/and161185/cruise-docsync/internal/docstore"
	"github.com/and161185/cruise-docsync/internal/model"
)

// Entry is one rule: files under Dir go to the folder configured for Category.
type Entry struct {
	Label      string
	Category   config.Category
	Dir        string
	Visibility docstore.Visibility
}

// DefaultEntries returns one link-shared entry per category, each reading
// <uploadsDir>/<category>.
func DefaultEntries(uploadsDir string) []Entry {
	cats := []config.Category{
		config.Images, config.Profiles, config.Reviews, config.Audio, config.Documents,
		config.Videos, config.Contracts, config.Signatures, config.Passports, config.CruiseImage,
	}
	out := make([]Entry, 0, len(cats))
	for _, c := range cats {
		out = append(out, Entry{
			Label:      string(c),
			Category:   c,
			Dir:        filepath.Join(uploadsDir, string(c)),
			Visibility: docstore.LinkShared,
		})
	}
	return out
}

// Runner walks entry directories and uploads every file in lexical order.
type Runner struct {
	files   docstore.Files
	folders map[config.Category]string
	opts    Options
	log     *zap.Logger
	now     func() time.Time
}

// NewRunner constructs a Runner. folders maps categories to target folder ids;
// a missing category skips its entry.
func NewRunner(files docstore.Files, folders map[config.Category]string, opts Options, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{files: files, folders: folders, opts: opts, log: log, now: time.Now}
}

// Run processes entries one file at a time. A failing file never stops the
// run; it only produces an error record. The report is always written; the
// returned error is only about writing it.
func (r *Runner) Run(ctx context.Context, entries []Entry) (*model.MigrationReport, string, error) {
	rep := newReport("files", r.opts, r.now())

	for _, e := range entries {
		if ctx.Err() != nil {
			break
		}
		rep.Records = append(rep.Records, r.runEntry(ctx, e)...)
	}

	path, err := WriteReport(r.opts.ReportDir, rep, r.now())
	r.log.Info("bulk migration finished",
		zap.String("run_id", rep.RunID.String()),
		zap.Int("uploaded", rep.Totals.Uploaded),
		zap.Int("skipped", rep.Totals.Skipped),
		zap.Int("errors", rep.Totals.Errors),
		zap.String("report", path),
	)
	return rep, path, err
}

func (r *Runner) runEntry(ctx context.Context, e Entry) []model.MigrationRecord {
	label := e.Label
	if label == "" {
		label = string(e.Category)
	}
	folderID := r.folders[e.Category]
	if folderID == "" {
		return []model.MigrationRecord{skipped(label, e.Dir, config.FolderEnv[e.Category]+" not set")}
	}
	if st, err := os.Stat(e.Dir); err != nil || !st.IsDir() {
		return []model.MigrationRecord{skipped(label, e.Dir, "directory not found")}
	}

	var recs []model.MigrationRecord
	walkErr := filepath.WalkDir(e.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			recs = append(recs, failed(label, path, err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel, err := filepath.Rel(e.Dir, path)
		if err != nil {
			rel = d.Name()
		}
		recs = append(recs, r.upload(ctx, label, folderID, path, RemoteName(rel), e.Visibility))
		return nil
	})
	if walkErr != nil && !errors.Is(walkErr, context.Canceled) {
		recs = append(recs, failed(label, e.Dir, walkErr))
	}
	return recs
}

func (r *Runner) upload(ctx context.Context, label, folderID, path, name string, vis docstore.Visibility) model.MigrationRecord {
	if r.opts.DryRun {
		return skipped(label, path, "dry-run")
	}
	ref, err := uploadFile(ctx, r.files, folderID, path, name, vis)
	if err != nil {
		r.log.Warn("upload failed", zap.String("path", path), zap.Error(err))
		return failed(label, path, err)
	}
	rec := model.MigrationRecord{Target: label, LocalPath: path, RemoteRef: &ref, Status: model.StatusUploaded}
	if r.opts.DeleteLocal {
		if err := os.Remove(path); err != nil {
			r.log.Warn("local delete failed", zap.String("path", path), zap.Error(err))
			rec.Reason = "uploaded; local delete failed: " + err.Error()
		}
	}
	return rec
}

func uploadFile(ctx context.Context, files docstore.Files, folderID, path, name string, vis docstore.Visibility) (model.RemoteRef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.RemoteRef{}, fmt.Errorf("read %s: %w", path, err)
	}
	return files.Upload(ctx, docstore.UploadRequest{
		FolderID:   folderID,
		Name:       name,
		MimeType:   MimeType(name),
		Data:       data,
		Visibility: vis,
	})
}

func skipped(target, path, reason string) model.MigrationRecord {
	return model.MigrationRecord{Target: target, LocalPath: path, Status: model.StatusSkipped, Reason: reason}
}

func failed(target, path string, err error) model.MigrationRecord {
	return model.MigrationRecord{Target: target, LocalPath: path, Status: model.StatusError, Reason: err.Error()}
}
