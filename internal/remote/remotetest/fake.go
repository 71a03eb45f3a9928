// Package remotetest provides in-memory Drive and Sheets fakes for tests.
package remotetest

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/and161185/cruise-docsync/internal/errs"
	"github.com/and161185/cruise-docsync/internal/remote"
)

// Drive is an in-memory remote.Drive.
type Drive struct {
	mu      sync.Mutex
	seq     int
	order   []string // folder ids in creation order
	Folders map[string]remote.File // id -> folder
	Parents map[string][]string    // id -> parent ids
	Files   map[string][]byte      // id -> content
	Perms   map[string][]remote.Permission

	ListCalls   int
	CreateCalls int

	// Fail* return the error for matching calls when set.
	FailUploadName string
	FailUploadErr  error
	FailPermErr    error
	FailListErr    error
}

var _ remote.Drive = (*Drive)(nil)

// NewDrive returns an empty fake drive.
func NewDrive() *Drive {
	return &Drive{
		Folders: map[string]remote.File{},
		Parents: map[string][]string{},
		Files:   map[string][]byte{},
		Perms:   map[string][]remote.Permission{},
	}
}

func (d *Drive) nextID(prefix string) string {
	d.seq++
	return fmt.Sprintf("%s%d", prefix, d.seq)
}

// ListFolders returns folders in creation order.
func (d *Drive) ListFolders(_ context.Context, name, parentID string) ([]remote.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ListCalls++
	if d.FailListErr != nil {
		return nil, d.FailListErr
	}
	var out []remote.File
	for _, id := range d.order {
		f := d.Folders[id]
		if f.Name != name {
			continue
		}
		for _, p := range d.Parents[id] {
			if p == parentID {
				out = append(out, f)
				break
			}
		}
	}
	return out, nil
}

// CreateFolder records a folder.
func (d *Drive) CreateFolder(_ context.Context, name, parentID string) (remote.File, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.CreateCalls++
	return d.addFolder(name, parentID), nil
}

// AddFolder inserts a folder directly, e.g. to simulate a concurrent creator.
func (d *Drive) AddFolder(name, parentID string) string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.addFolder(name, parentID).ID
}

func (d *Drive) addFolder(name, parentID string) remote.File {
	f := remote.File{ID: d.nextID("fld"), Name: name}
	d.Folders[f.ID] = f
	d.Parents[f.ID] = []string{parentID}
	d.order = append(d.order, f.ID)
	return f
}

// CreateFile stores media content.
func (d *Drive) CreateFile(_ context.Context, spec remote.FileSpec, media io.Reader) (remote.File, error) {
	if d.FailUploadErr != nil && (d.FailUploadName == "" || d.FailUploadName == spec.Name) {
		return remote.File{}, d.FailUploadErr
	}
	b, err := io.ReadAll(media)
	if err != nil {
		return remote.File{}, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID("file")
	d.Files[id] = b
	d.Parents[id] = []string{spec.ParentID}
	return remote.File{ID: id, Name: spec.Name, WebViewLink: "https://drive.test/" + id}, nil
}

// CreatePermission records p.
func (d *Drive) CreatePermission(_ context.Context, fileID string, p remote.Permission) error {
	if d.FailPermErr != nil {
		return d.FailPermErr
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Perms[fileID] = append(d.Perms[fileID], p)
	return nil
}

// MoveToFolder replaces the parents of fileID with parentID.
func (d *Drive) MoveToFolder(_ context.Context, fileID, parentID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.Parents[fileID]; !ok {
		return &errs.NotFoundError{Kind: "file", ID: fileID}
	}
	d.Parents[fileID] = []string{parentID}
	return nil
}

// Sheets is an in-memory remote.Sheets.
type Sheets struct {
	mu     sync.Mutex
	seq    int
	Sheets map[string]*Sheet

	// Drive, when set, receives each created spreadsheet as a file so MoveToFolder works.
	Drive *Drive

	FormatErr error
	WriteErr  error
	GetErr    error
	Creates   int
}

// Sheet is the stored state of one spreadsheet.
type Sheet struct {
	remote.Spreadsheet
	Title     string
	Values    [][]string
	Formatted []int // formatted row indexes
}

var _ remote.Sheets = (*Sheets)(nil)

// NewSheets returns an empty fake bound to d (may be nil).
func NewSheets(d *Drive) *Sheets {
	return &Sheets{Sheets: map[string]*Sheet{}, Drive: d}
}

// Create makes a spreadsheet.
func (s *Sheets) Create(_ context.Context, title, sheetTitle string) (remote.Spreadsheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.Creates++
	id := fmt.Sprintf("sheet%d", s.seq)
	sp := remote.Spreadsheet{ID: id, URL: remote.SpreadsheetURL(id), SheetID: 0, SheetTitle: sheetTitle}
	s.Sheets[id] = &Sheet{Spreadsheet: sp, Title: title}
	if s.Drive != nil {
		s.Drive.mu.Lock()
		s.Drive.Parents[id] = []string{remote.RootSentinel}
		s.Drive.mu.Unlock()
	}
	return sp, nil
}

// Delete removes a spreadsheet out of band.
func (s *Sheets) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.Sheets, id)
}

// Get reports whether the spreadsheet exists.
func (s *Sheets) Get(_ context.Context, id string) (remote.Spreadsheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return remote.Spreadsheet{}, s.GetErr
	}
	sh, ok := s.Sheets[id]
	if !ok {
		return remote.Spreadsheet{}, &errs.NotFoundError{Kind: "spreadsheet", ID: id}
	}
	return sh.Spreadsheet, nil
}

// UsedRows counts stored rows.
func (s *Sheets) UsedRows(_ context.Context, id, _ string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.Sheets[id]
	if !ok {
		return 0, &errs.NotFoundError{Kind: "spreadsheet", ID: id}
	}
	n := 0
	for i, r := range sh.Values {
		for _, v := range r {
			if v != "" {
				n = i + 1
				break
			}
		}
	}
	return n, nil
}

// WriteValues replaces the stored grid from the top-left anchor.
func (s *Sheets) WriteValues(_ context.Context, id, _ string, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.WriteErr != nil {
		return s.WriteErr
	}
	sh, ok := s.Sheets[id]
	if !ok {
		return &errs.NotFoundError{Kind: "spreadsheet", ID: id}
	}
	grid := make([][]string, len(rows))
	for i, r := range rows {
		grid[i] = append([]string(nil), r...)
	}
	if len(grid) < len(sh.Values) {
		grid = append(grid, sh.Values[len(grid):]...)
	}
	sh.Values = grid
	return nil
}

// FormatHeader records the formatted row.
func (s *Sheets) FormatHeader(_ context.Context, id string, _ int64, row, _ int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FormatErr != nil {
		return s.FormatErr
	}
	sh, ok := s.Sheets[id]
	if !ok {
		return &errs.NotFoundError{Kind: "spreadsheet", ID: id}
	}
	sh.Formatted = append(sh.Formatted, row)
	return nil
}
