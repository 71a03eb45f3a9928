// Package repository defines storage interfaces implemented by concrete backends.
package repository

import (
	"context"

	"github.com/and161185/cruise-docsync/internal/model"
)

// TripRepository provides read access to trips and their rows plus the spreadsheet binding.
type TripRepository interface {
	// GetTrip loads a trip by id.
	GetTrip(ctx context.Context, id int64) (*model.Trip, error)
	// ListReservations returns the trip's reservations ordered by creation.
	ListReservations(ctx context.Context, tripID int64) ([]model.Reservation, error)
	// ListTravelers returns the trip's travelers keyed by reservation id.
	ListTravelers(ctx context.Context, tripID int64) (map[int64][]model.Traveler, error)
	// BindSpreadsheet sets the binding only if it still equals old (nil means unbound).
	// On a lost race it returns the current binding and errs.ErrVersionConflict.
	BindSpreadsheet(ctx context.Context, tripID int64, old *string, spreadsheetID string) (*string, error)
}
