package remote

import (
	"context"
	"fmt"
	"io"
	"strings"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
)

// GoogleDrive implements Drive over the Drive v3 API. With a shared drive
// configured every call carries the all-drives flags.
type GoogleDrive struct {
	svc     *drive.Service
	driveID string
	diag    keyDiag
}

// NewGoogleDrive wraps an existing service. sharedDriveID may be empty.
func NewGoogleDrive(svc *drive.Service, sharedDriveID string) *GoogleDrive {
	return &GoogleDrive{svc: svc, driveID: sharedDriveID}
}

func (d *GoogleDrive) shared() bool { return d.driveID != "" }

// SharedDriveID returns the configured shared drive or "".
func (d *GoogleDrive) SharedDriveID() string { return d.driveID }

// ListFolders queries folders by exact name under parentID.
func (d *GoogleDrive) ListFolders(ctx context.Context, name, parentID string) ([]File, error) {
	q := fmt.Sprintf("mimeType='%s' and name='%s' and trashed=false and '%s' in parents",
		FolderMime, escapeQuery(name), escapeQuery(parentID))

	call := d.svc.Files.List().
		Q(q).
		Fields("files(id, name, webViewLink)").
		PageSize(10).
		Context(ctx)
	if d.shared() {
		call = call.SupportsAllDrives(true).IncludeItemsFromAllDrives(true).Corpora("allDrives")
	}
	res, err := call.Do()
	if err != nil {
		return nil, d.diag.classify("list folders", "folder", name, err)
	}
	out := make([]File, 0, len(res.Files))
	for _, f := range res.Files {
		out = append(out, toFile(f))
	}
	return out, nil
}

// CreateFolder creates a folder under parentID.
func (d *GoogleDrive) CreateFolder(ctx context.Context, name, parentID string) (File, error) {
	meta := &drive.File{Name: name, MimeType: FolderMime, Parents: []string{parentID}}
	call := d.svc.Files.Create(meta).Fields("id, name, webViewLink").Context(ctx)
	if d.shared() {
		call = call.SupportsAllDrives(true)
	}
	f, err := call.Do()
	if err != nil {
		return File{}, d.diag.classify("create folder", "folder", name, err)
	}
	return toFile(f), nil
}

// CreateFile streams media into a new file under spec.ParentID.
func (d *GoogleDrive) CreateFile(ctx context.Context, spec FileSpec, media io.Reader) (File, error) {
	meta := &drive.File{Name: spec.Name, MimeType: spec.MimeType, Parents: []string{spec.ParentID}}
	call := d.svc.Files.Create(meta).
		Media(media, googleapi.ContentType(spec.MimeType)).
		Fields("id, name, webViewLink, webContentLink").
		Context(ctx)
	if d.shared() {
		call = call.SupportsAllDrives(true)
	}
	f, err := call.Do()
	if err != nil {
		return File{}, d.diag.classify("upload file", "file", spec.Name, err)
	}
	return toFile(f), nil
}

// CreatePermission grants p on fileID.
func (d *GoogleDrive) CreatePermission(ctx context.Context, fileID string, p Permission) error {
	perm := &drive.Permission{Role: p.Role, Type: p.Type, AllowFileDiscovery: p.AllowFileDiscovery}
	call := d.svc.Permissions.Create(fileID, perm).Fields("id").Context(ctx)
	if d.shared() {
		call = call.SupportsAllDrives(true)
	}
	if _, err := call.Do(); err != nil {
		return d.diag.classify("set permission", "file", fileID, err)
	}
	return nil
}

// MoveToFolder makes parentID the only parent of fileID: current parents are
// read first and removed in the same update that adds the new one.
func (d *GoogleDrive) MoveToFolder(ctx context.Context, fileID, parentID string) error {
	get := d.svc.Files.Get(fileID).Fields("id, parents").Context(ctx)
	if d.shared() {
		get = get.SupportsAllDrives(true)
	}
	cur, err := get.Do()
	if err != nil {
		return d.diag.classify("move file", "file", fileID, err)
	}

	remove := make([]string, 0, len(cur.Parents))
	for _, p := range cur.Parents {
		if p != parentID {
			remove = append(remove, p)
		}
	}
	if len(cur.Parents) > 0 && len(remove) == 0 {
		return nil // already there
	}

	call := d.svc.Files.Update(fileID, &drive.File{}).
		AddParents(parentID).
		Fields("id").
		Context(ctx)
	if len(remove) > 0 {
		call = call.RemoveParents(strings.Join(remove, ","))
	}
	if d.shared() {
		call = call.SupportsAllDrives(true)
	}
	if _, err := call.Do(); err != nil {
		return d.diag.classify("move file", "file", fileID, err)
	}
	return nil
}

func toFile(f *drive.File) File {
	return File{ID: f.Id, Name: f.Name, WebViewLink: f.WebViewLink, WebContentLink: f.WebContentLink}
}

// escapeQuery escapes a literal for the Drive query language.
func escapeQuery(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `'`, `\'`)
}
