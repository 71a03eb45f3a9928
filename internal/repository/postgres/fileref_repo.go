package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/cruise-docsync/internal/errs"
	"github.com/and161185/cruise-docsync/internal/model"
)

// FileRefRepo implements FileRefRepository over arbitrary (table, column) pairs.
// Identifiers come from configuration and are quoted, never interpolated raw.
type FileRefRepo struct{ db *DB }

// NewFileRefRepo constructs a file-reference repository.
func NewFileRefRepo(db *DB) *FileRefRepo { return &FileRefRepo{db: db} }

// ListLocal returns rows whose column holds a local path.
func (r *FileRefRepo) ListLocal(ctx context.Context, f model.FileField) ([]model.FileRef, error) {
	table, col := pgx.Identifier{f.Table}.Sanitize(), pgx.Identifier{f.Column}.Sanitize()
	q := fmt.Sprintf(`
SELECT id, %[2]s FROM %[1]s
WHERE %[2]s IS NOT NULL AND %[2]s <> '' AND %[2]s NOT LIKE 'http://%%' AND %[2]s NOT LIKE 'https://%%'
ORDER BY id ASC`, table, col)

	rows, err := r.db.Pool.Query(ctx, q)
	if err != nil {
		return nil, fieldErr(f, err)
	}
	defer rows.Close()

	var out []model.FileRef
	for rows.Next() {
		ref := model.FileRef{Field: f}
		if err = rows.Scan(&ref.RecordID, &ref.Path); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	if err = rows.Err(); err != nil {
		return nil, fieldErr(f, err)
	}
	return out, nil
}

// UpdateURL rewrites one row's column to url. errs.ErrVersionConflict means the
// value changed since it was listed.
func (r *FileRefRepo) UpdateURL(ctx context.Context, ref model.FileRef, url string) error {
	table, col := pgx.Identifier{ref.Field.Table}.Sanitize(), pgx.Identifier{ref.Field.Column}.Sanitize()
	q := fmt.Sprintf(`UPDATE %[1]s SET %[2]s=$2 WHERE id=$1 AND %[2]s=$3`, table, col)

	tag, err := r.db.Pool.Exec(ctx, q, ref.RecordID, url, ref.Path)
	if err != nil {
		return fieldErr(ref.Field, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s.%s id=%d: %w", ref.Field.Table, ref.Field.Column, ref.RecordID, errs.ErrVersionConflict)
	}
	return nil
}

func fieldErr(f model.FileField, err error) error {
	if isUndefinedObject(err) {
		return &errs.ConfigurationError{Key: f.Table + "." + f.Column, Msg: err.Error()}
	}
	return err
}
