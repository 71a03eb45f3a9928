// Package service contains application services for spreadsheet sync and operator tokens.
package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/cruise-docsync/internal/docstore"
	"github.com/and161185/cruise-docsync/internal/errs"
	"github.com/and161185/cruise-docsync/internal/model"
	"github.com/and161185/cruise-docsync/internal/projection"
	"github.com/and161185/cruise-docsync/internal/remote"
	"github.com/and161185/cruise-docsync/internal/repository"
)

// SheetTitle names the single sheet of every trip spreadsheet.
const SheetTitle = "Travelers"

// SyncService defines the spreadsheet sync operation.
type SyncService interface {
	// SyncTrip writes the trip's travelers into its bound spreadsheet,
	// creating or re-creating the spreadsheet when needed.
	SyncTrip(ctx context.Context, tripID int64) (model.SyncResult, error)
}

type SyncServiceImpl struct {
	trips   repository.TripRepository
	folders docstore.Folders
	drive   remote.Drive
	sheets  remote.Sheets
	rootID  string
	log     *zap.Logger
	locks   *keyedMutex
}

// NewSyncService constructs SyncService. rootID is the folder that holds one
// subfolder per trip.
func NewSyncService(trips repository.TripRepository, folders docstore.Folders, d remote.Drive, s remote.Sheets, rootID string, log *zap.Logger) *SyncServiceImpl {
	if log == nil {
		log = zap.NewNop()
	}
	return &SyncServiceImpl{
		trips:   trips,
		folders: folders,
		drive:   d,
		sheets:  s,
		rootID:  rootID,
		log:     log,
		locks:   newKeyedMutex(),
	}
}

// FolderName is the per-trip folder and spreadsheet title: "<departure date> <ship>".
func FolderName(t model.Trip) string {
	return fmt.Sprintf("%s %s", t.DepartureDate.Format(projection.DateLayout), t.ShipName)
}

// SyncTrip runs one full sync. Syncs of the same trip are serialized.
func (s *SyncServiceImpl) SyncTrip(ctx context.Context, tripID int64) (model.SyncResult, error) {
	unlock := s.locks.Lock(tripID)
	defer unlock()

	trip, err := s.trips.GetTrip(ctx, tripID)
	if err != nil {
		return model.SyncResult{}, err
	}
	reservations, err := s.trips.ListReservations(ctx, tripID)
	if err != nil {
		return model.SyncResult{}, fmt.Errorf("list reservations: %w", err)
	}
	travelers, err := s.trips.ListTravelers(ctx, tripID)
	if err != nil {
		return model.SyncResult{}, fmt.Errorf("list travelers: %w", err)
	}
	rows := projection.Project(*trip, reservations, travelers)

	res := model.SyncResult{TripID: tripID, Rows: len(rows)}
	sp, err := s.resolve(ctx, trip, FolderName(*trip), &res)
	if err != nil {
		return model.SyncResult{}, err
	}
	res.SpreadsheetID, res.URL = sp.ID, sp.URL

	if err := s.write(ctx, sp, projection.Sheet(*trip, rows)); err != nil {
		return model.SyncResult{}, err
	}

	if err := s.sheets.FormatHeader(ctx, sp.ID, sp.SheetID, projection.HeaderRowIndex, len(projection.Columns)); err != nil {
		ferr := &errs.FormattingError{SpreadsheetID: sp.ID, Err: err}
		s.log.Warn("header formatting skipped", zap.Int64("trip_id", tripID), zap.Error(ferr))
	}

	s.log.Info("trip synced",
		zap.Int64("trip_id", tripID),
		zap.String("spreadsheet_id", sp.ID),
		zap.Int("rows", res.Rows),
		zap.Bool("created", res.Created),
		zap.Bool("healed", res.Healed),
	)
	return res, nil
}

// resolve returns the spreadsheet to write into: the bound one when it still
// exists, otherwise a new one bound with compare-and-set.
func (s *SyncServiceImpl) resolve(ctx context.Context, trip *model.Trip, name string, res *model.SyncResult) (remote.Spreadsheet, error) {
	old := trip.SpreadsheetID
	if old != nil && *old != "" {
		sp, err := s.sheets.Get(ctx, *old)
		if err == nil {
			return sp, nil
		}
		if !errors.Is(err, errs.ErrNotFound) {
			return remote.Spreadsheet{}, err
		}
		s.log.Warn("bound spreadsheet missing, creating a new one",
			zap.Int64("trip_id", trip.ID), zap.String("spreadsheet_id", *old))
		res.Healed = true
	}

	sp, err := s.create(ctx, name, res)
	if err != nil {
		return remote.Spreadsheet{}, err
	}

	cur, err := s.trips.BindSpreadsheet(ctx, trip.ID, old, sp.ID)
	switch {
	case err == nil:
		res.Created = true
		return sp, nil
	case errors.Is(err, errs.ErrVersionConflict) && cur != nil && *cur != "":
		s.log.Warn("spreadsheet bound concurrently, adopting existing binding",
			zap.Int64("trip_id", trip.ID), zap.String("orphan_id", sp.ID), zap.String("spreadsheet_id", *cur))
		winner, gerr := s.sheets.Get(ctx, *cur)
		if gerr != nil {
			return remote.Spreadsheet{}, fmt.Errorf("adopt spreadsheet %s: %w", *cur, gerr)
		}
		res.Healed = false
		return winner, nil
	default:
		return remote.Spreadsheet{}, fmt.Errorf("bind spreadsheet: %w", err)
	}
}

// create provisions the trip folder, makes the spreadsheet and moves it into
// the folder. A cached folder id that turns out to be gone is re-provisioned once.
func (s *SyncServiceImpl) create(ctx context.Context, name string, res *model.SyncResult) (remote.Spreadsheet, error) {
	var err error
	res.FolderID, err = s.folders.FindOrCreate(ctx, name, s.rootID)
	if err != nil {
		return remote.Spreadsheet{}, err
	}
	sp, err := s.sheets.Create(ctx, name, SheetTitle)
	if err != nil {
		return remote.Spreadsheet{}, err
	}

	err = s.drive.MoveToFolder(ctx, sp.ID, res.FolderID)
	if errors.Is(err, errs.ErrNotFound) {
		s.folders.Forget(name, s.rootID)
		res.FolderID, err = s.folders.FindOrCreate(ctx, name, s.rootID)
		if err != nil {
			return remote.Spreadsheet{}, err
		}
		err = s.drive.MoveToFolder(ctx, sp.ID, res.FolderID)
	}
	if err != nil {
		return remote.Spreadsheet{}, err
	}
	return sp, nil
}

// write replaces the sheet content in one values update, blanking rows left
// over from a longer previous write.
func (s *SyncServiceImpl) write(ctx context.Context, sp remote.Spreadsheet, grid [][]string) error {
	title := sp.SheetTitle
	if title == "" {
		title = SheetTitle
	}
	used, err := s.sheets.UsedRows(ctx, sp.ID, title)
	if err != nil {
		return err
	}
	return s.sheets.WriteValues(ctx, sp.ID, remote.A1(title, "A1"), projection.Pad(grid, used))
}
