// Package remote wraps the Google Drive and Sheets APIs behind the narrow
// interfaces the engine needs and builds authenticated handles from a
// service-account credential.
package remote

import (
	"context"
	"io"
)

// FolderMime is the Drive MIME type of a folder.
const FolderMime = "application/vnd.google-apps.folder"

// RootSentinel is the Drive alias of the owner's root folder.
const RootSentinel = "root"

// File is the subset of Drive file metadata the engine reads.
type File struct {
	ID             string
	Name           string
	WebViewLink    string
	WebContentLink string
}

// FileSpec describes a file to create.
type FileSpec struct {
	Name     string
	MimeType string
	ParentID string
}

// Permission is a Drive permission grant.
type Permission struct {
	Role               string // "reader"
	Type               string // "anyone"
	AllowFileDiscovery bool
}

// Drive is the document-store surface used by the provisioner, uploader and sync.
type Drive interface {
	// ListFolders returns non-trashed folders named name under parentID, in backend order.
	ListFolders(ctx context.Context, name, parentID string) ([]File, error)
	// CreateFolder creates a folder under parentID.
	CreateFolder(ctx context.Context, name, parentID string) (File, error)
	// CreateFile streams media into a new file.
	CreateFile(ctx context.Context, spec FileSpec, media io.Reader) (File, error)
	// CreatePermission grants p on fileID.
	CreatePermission(ctx context.Context, fileID string, p Permission) error
	// MoveToFolder makes parentID the only parent of fileID.
	MoveToFolder(ctx context.Context, fileID, parentID string) error
}

// Spreadsheet identifies a spreadsheet and its first sheet.
type Spreadsheet struct {
	ID         string
	URL        string
	SheetID    int64
	SheetTitle string
}

// Sheets is the spreadsheet-service surface used by the sync orchestrator.
type Sheets interface {
	// Create makes a spreadsheet with one named sheet.
	Create(ctx context.Context, title, sheetTitle string) (Spreadsheet, error)
	// Get reads metadata; a missing spreadsheet yields *errs.NotFoundError.
	Get(ctx context.Context, id string) (Spreadsheet, error)
	// UsedRows returns the number of rows holding data in column A of sheetTitle.
	UsedRows(ctx context.Context, id, sheetTitle string) (int, error)
	// WriteValues replaces the range starting at rangeA1 with rows (RAW input).
	WriteValues(ctx context.Context, id, rangeA1 string, rows [][]string) error
	// FormatHeader makes row (0-based) bold on a light background over cols columns.
	FormatHeader(ctx context.Context, id string, sheetID int64, row, cols int) error
}
