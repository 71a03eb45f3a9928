package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/and161185/cruise-docsync/internal/errs"
	"github.com/and161185/cruise-docsync/internal/model"
)

// TripRepo implements TripRepository using PostgreSQL.
type TripRepo struct{ db *DB }

// NewTripRepo constructs a trip repository.
func NewTripRepo(db *DB) *TripRepo { return &TripRepo{db: db} }

// GetTrip returns a trip by id.
func (r *TripRepo) GetTrip(ctx context.Context, id int64) (*model.Trip, error) {
	const q = `
SELECT id, name, ship_name, departure_date, return_date, spreadsheet_id, cover_image
FROM trips WHERE id=$1`
	var (
		t     model.Trip
		cover *string
	)
	err := r.db.Pool.QueryRow(ctx, q, id).
		Scan(&t.ID, &t.Name, &t.ShipName, &t.DepartureDate, &t.ReturnDate, &t.SpreadsheetID, &cover)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("trip %d: %w", id, errs.ErrNotFound)
		}
		return nil, err
	}
	t.CoverImage = deref(cover)
	return &t, nil
}

// ListReservations returns reservations of a trip in creation order.
func (r *TripRepo) ListReservations(ctx context.Context, tripID int64) ([]model.Reservation, error) {
	const q = `
SELECT id, trip_id, code, cabin, category, flight, contact_phone,
       payment_date, payment_method, payment_amount, agent, remark1, remark2,
       contract_file, created_at
FROM reservations
WHERE trip_id=$1
ORDER BY created_at ASC, id ASC`
	rows, err := r.db.Pool.Query(ctx, q, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		var (
			res      model.Reservation
			contract *string
		)
		if err = rows.Scan(&res.ID, &res.TripID, &res.Code, &res.Cabin, &res.Category, &res.Flight,
			&res.ContactPhone, &res.PaymentDate, &res.PaymentMethod, &res.PaymentAmount, &res.Agent,
			&res.Remark1, &res.Remark2, &contract, &res.CreatedAt); err != nil {
			return nil, err
		}
		res.ContractFile = deref(contract)
		out = append(out, res)
	}
	return out, rows.Err()
}

// ListTravelers returns travelers of a trip grouped by reservation.
func (r *TripRepo) ListTravelers(ctx context.Context, tripID int64) (map[int64][]model.Traveler, error) {
	const q = `
SELECT t.id, t.reservation_id, COALESCE(t.room_number,0), t.surname, t.given_name, t.local_name,
       t.national_id, t.sex, t.birth_date, t.passport_no, t.passport_issued, t.passport_expires,
       t.phone, t.passport_image, t.signature_image
FROM travelers t
JOIN reservations r ON r.id = t.reservation_id
WHERE r.trip_id=$1
ORDER BY t.reservation_id ASC, t.id ASC`
	rows, err := r.db.Pool.Query(ctx, q, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[int64][]model.Traveler)
	for rows.Next() {
		var (
			t         model.Traveler
			passport  *string
			signature *string
		)
		if err = rows.Scan(&t.ID, &t.ReservationID, &t.RoomNumber, &t.Surname, &t.GivenName, &t.LocalName,
			&t.NationalID, &t.Sex, &t.BirthDate, &t.PassportNo, &t.PassportIssued, &t.PassportExpires,
			&t.Phone, &passport, &signature); err != nil {
			return nil, err
		}
		t.PassportImage = deref(passport)
		t.SignatureImage = deref(signature)
		out[t.ReservationID] = append(out[t.ReservationID], t)
	}
	return out, rows.Err()
}

// BindSpreadsheet stores the spreadsheet id with compare-and-set on the previous value.
func (r *TripRepo) BindSpreadsheet(ctx context.Context, tripID int64, old *string, spreadsheetID string) (current *string, err error) {
	const upd = `UPDATE trips SET spreadsheet_id=$2, updated_at=$4 WHERE id=$1 AND spreadsheet_id IS NOT DISTINCT FROM $3`
	const sel = `SELECT spreadsheet_id FROM trips WHERE id=$1`

	err = r.db.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, upd, tripID, spreadsheetID, old, time.Now().UTC())
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 1 {
			current = &spreadsheetID
			return nil
		}
		if err := tx.QueryRow(ctx, sel, tripID).Scan(&current); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return fmt.Errorf("trip %d: %w", tripID, errs.ErrNotFound)
			}
			return err
		}
		return fmt.Errorf("bind spreadsheet for trip %d: %w", tripID, errs.ErrVersionConflict)
	})
	if errors.Is(err, errs.ErrVersionConflict) {
		// the conflict is a result, not a failed transaction
		return current, err
	}
	if err != nil {
		return nil, err
	}
	return current, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
