package docstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/cruise-docsync/internal/errs"
	"github.com/and161185/cruise-docsync/internal/model"
	"github.com/and161185/cruise-docsync/internal/remote"
)

// Visibility is the access level set on an uploaded file.
type Visibility int

const (
	// Private sets no permission beyond the owner's.
	Private Visibility = iota
	// LinkShared lets anyone with the link read the file.
	LinkShared
	// Public lets anyone read and find the file.
	Public
)

func (v Visibility) String() string {
	switch v {
	case Private:
		return "private"
	case LinkShared:
		return "link-shared"
	case Public:
		return "public"
	default:
		return fmt.Sprintf("visibility(%d)", int(v))
	}
}

// ParseVisibility accepts "private", "link-shared" (or "link") and "public".
func ParseVisibility(s string) (Visibility, error) {
	switch s {
	case "private":
		return Private, nil
	case "link-shared", "link":
		return LinkShared, nil
	case "public":
		return Public, nil
	}
	return Private, fmt.Errorf("unknown visibility %q", s)
}

// UploadRequest describes one in-memory file to store.
type UploadRequest struct {
	FolderID   string
	Name       string
	MimeType   string
	Data       []byte
	Visibility Visibility
}

// Files is the upload surface consumed by bulk migration.
type Files interface {
	Upload(ctx context.Context, req UploadRequest) (model.RemoteRef, error)
}

// Uploader implements Files on top of remote.Drive.
type Uploader struct {
	drive remote.Drive
	log   *zap.Logger
}

// NewUploader constructs an Uploader.
func NewUploader(d remote.Drive, log *zap.Logger) *Uploader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Uploader{drive: d, log: log}
}

// Upload creates the file, applies the permission for req.Visibility and
// returns its reference. The reference is only returned when every step succeeds.
func (u *Uploader) Upload(ctx context.Context, req UploadRequest) (model.RemoteRef, error) {
	if req.FolderID == "" || req.Name == "" {
		return model.RemoteRef{}, &errs.UploadError{Op: "upload file", Name: req.Name, Err: errors.New("folder id and name are required")}
	}
	mime := req.MimeType
	if mime == "" {
		mime = "application/octet-stream"
	}

	f, err := u.drive.CreateFile(ctx, remote.FileSpec{Name: req.Name, MimeType: mime, ParentID: req.FolderID}, bytes.NewReader(req.Data))
	if err != nil {
		return model.RemoteRef{}, asUploadError("upload file", req.Name, err)
	}

	if perm, ok := permissionFor(req.Visibility); ok {
		if err := u.drive.CreatePermission(ctx, f.ID, perm); err != nil {
			u.log.Warn("permission failed after create", zap.String("file_id", f.ID), zap.String("name", req.Name), zap.Error(err))
			return model.RemoteRef{}, asUploadError("set permission", req.Name, err)
		}
	}

	return model.RemoteRef{ExternalID: f.ID, URL: FileURL(f)}, nil
}

func permissionFor(v Visibility) (remote.Permission, bool) {
	switch v {
	case LinkShared:
		return remote.Permission{Role: "reader", Type: "anyone", AllowFileDiscovery: false}, true
	case Public:
		return remote.Permission{Role: "reader", Type: "anyone", AllowFileDiscovery: true}, true
	default:
		return remote.Permission{}, false
	}
}

// FileURL prefers the web view link, then the content link, then the canonical view URL.
func FileURL(f remote.File) string {
	switch {
	case f.WebViewLink != "":
		return f.WebViewLink
	case f.WebContentLink != "":
		return f.WebContentLink
	default:
		return fmt.Sprintf("https://drive.google.com/file/d/%s/view", f.ID)
	}
}

// asUploadError keeps authentication failures as they are and tags everything else.
func asUploadError(op, name string, err error) error {
	var ae *errs.AuthenticationError
	if errors.As(err, &ae) {
		return err
	}
	var ue *errs.UploadError
	if errors.As(err, &ue) {
		return err
	}
	return &errs.UploadError{Op: op, Name: name, Err: err}
}
