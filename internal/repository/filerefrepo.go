package repository

import (
	"context"

	"github.com/and161185/cruise-docsync/internal/model"
)

// FileRefRepository lists and rewrites file-reference columns.
type FileRefRepository interface {
	// ListLocal returns rows whose column holds a non-empty value that is not a URL.
	ListLocal(ctx context.Context, f model.FileField) ([]model.FileRef, error)
	// UpdateURL replaces the stored path with url, only if it still holds ref.Path.
	UpdateURL(ctx context.Context, ref model.FileRef, url string) error
}
