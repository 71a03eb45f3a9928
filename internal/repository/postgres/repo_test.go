package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/and161185/cruise-docsync/internal/errs"
	"github.com/and161185/cruise-docsync/internal/model"
)

func newDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	return &DB{Pool: mock}, mock
}

func ptr[T any](v T) *T { return &v }

func TestTripRepo_GetTrip_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTripRepo(db)

	dep := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	ret := dep.AddDate(0, 0, 7)
	mock.ExpectQuery(`SELECT id, name, ship_name, departure_date, return_date, spreadsheet_id, cover_image\s+FROM trips WHERE id=\$1`).
		WithArgs(int64(7)).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "ship_name", "departure_date", "return_date", "spreadsheet_id", "cover_image"}).
			AddRow(int64(7), "May group", "Bellissima", dep, ret, ptr("sheet1"), (*string)(nil)))

	trip, err := r.GetTrip(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "Bellissima", trip.ShipName)
	require.Equal(t, "sheet1", *trip.SpreadsheetID)
	require.Empty(t, trip.CoverImage)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTripRepo_GetTrip_NotFound(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTripRepo(db)

	mock.ExpectQuery(`FROM trips WHERE id=\$1`).WithArgs(int64(9)).WillReturnError(pgx.ErrNoRows)

	_, err := r.GetTrip(context.Background(), 9)
	require.ErrorIs(t, err, errs.ErrNotFound)
}

func TestTripRepo_ListReservations(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTripRepo(db)

	now := time.Now()
	cols := []string{"id", "trip_id", "code", "cabin", "category", "flight", "contact_phone", "payment_date",
		"payment_method", "payment_amount", "agent", "remark1", "remark2", "contract_file", "created_at"}
	mock.ExpectQuery(`FROM reservations\s+WHERE trip_id=\$1\s+ORDER BY created_at ASC, id ASC`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(int64(10), int64(1), "R-10", "8012", "Balcony", "KE123", "010", &now, "card", int64(100), "agent", "", "", ptr("uploads/c.pdf"), now).
			AddRow(int64(11), int64(1), "R-11", "8014", "Inside", "", "", (*time.Time)(nil), "", int64(0), "", "", "", (*string)(nil), now))

	res, err := r.ListReservations(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, res, 2)
	require.Equal(t, "uploads/c.pdf", res[0].ContractFile)
	require.Nil(t, res[1].PaymentDate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTripRepo_ListTravelers_Grouped(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTripRepo(db)

	cols := []string{"id", "reservation_id", "room_number", "surname", "given_name", "local_name", "national_id",
		"sex", "birth_date", "passport_no", "passport_issued", "passport_expires", "phone", "passport_image", "signature_image"}
	nt := (*time.Time)(nil)
	ns := (*string)(nil)
	mock.ExpectQuery(`FROM travelers t\s+JOIN reservations r ON r.id = t.reservation_id\s+WHERE r.trip_id=\$1`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows(cols).
			AddRow(int64(100), int64(10), 1, "KIM/PAPA", "", "", "", "M", nt, "", nt, nt, "", ns, ns).
			AddRow(int64(101), int64(10), 2, "LEE", "MAMA", "", "", "F", nt, "", nt, nt, "", ptr("p.jpg"), ns).
			AddRow(int64(200), int64(11), 0, "PARK", "JI", "", "", "", nt, "", nt, nt, "", ns, ns))

	got, err := r.ListTravelers(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got[10], 2)
	require.Len(t, got[11], 1)
	require.Equal(t, "p.jpg", got[10][1].PassportImage)
}

func TestTripRepo_BindSpreadsheet_OK(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTripRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE trips SET spreadsheet_id=\$2, updated_at=\$4 WHERE id=\$1 AND spreadsheet_id IS NOT DISTINCT FROM \$3`).
		WithArgs(int64(1), "new", (*string)(nil), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	cur, err := r.BindSpreadsheet(context.Background(), 1, nil, "new")
	require.NoError(t, err)
	require.Equal(t, "new", *cur)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTripRepo_BindSpreadsheet_Conflict(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTripRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE trips SET spreadsheet_id`).
		WithArgs(int64(1), "mine", (*string)(nil), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT spreadsheet_id FROM trips WHERE id=\$1`).
		WithArgs(int64(1)).
		WillReturnRows(pgxmock.NewRows([]string{"spreadsheet_id"}).AddRow(ptr("theirs")))
	mock.ExpectRollback()

	cur, err := r.BindSpreadsheet(context.Background(), 1, nil, "mine")
	require.ErrorIs(t, err, errs.ErrVersionConflict)
	require.Equal(t, "theirs", *cur)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTripRepo_BindSpreadsheet_TripGone(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewTripRepo(db)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE trips SET spreadsheet_id`).
		WithArgs(int64(1), "mine", ptr("old"), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectQuery(`SELECT spreadsheet_id FROM trips`).WithArgs(int64(1)).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	cur, err := r.BindSpreadsheet(context.Background(), 1, ptr("old"), "mine")
	require.ErrorIs(t, err, errs.ErrNotFound)
	require.Nil(t, cur)
}

func TestFileRefRepo_ListLocal(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewFileRefRepo(db)

	f := model.FileField{Table: "travelers", Column: "passport_image", Category: "passports"}
	mock.ExpectQuery(`SELECT id, "passport_image" FROM "travelers"\s+WHERE "passport_image" IS NOT NULL`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "passport_image"}).
			AddRow(int64(1), "uploads/passports/a.jpg").
			AddRow(int64(2), "uploads/passports/b.jpg"))

	refs, err := r.ListLocal(context.Background(), f)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	require.Equal(t, f, refs[0].Field)
	require.Equal(t, int64(2), refs[1].RecordID)
}

func TestFileRefRepo_ListLocal_UndefinedColumn(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewFileRefRepo(db)

	mock.ExpectQuery(`FROM "travelers"`).WillReturnError(&pgconn.PgError{Code: "42703"})

	_, err := r.ListLocal(context.Background(), model.FileField{Table: "travelers", Column: "nope"})
	require.ErrorIs(t, err, errs.ErrMissingConfig)
}

func TestFileRefRepo_UpdateURL(t *testing.T) {
	db, mock := newDB(t)
	defer mock.Close()
	r := NewFileRefRepo(db)

	ref := model.FileRef{Field: model.FileField{Table: "reservations", Column: "contract_file"}, RecordID: 5, Path: "c.pdf"}
	mock.ExpectExec(`UPDATE "reservations" SET "contract_file"=\$2 WHERE id=\$1 AND "contract_file"=\$3`).
		WithArgs(int64(5), "https://x/c", "c.pdf").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec(`UPDATE "reservations"`).
		WithArgs(int64(5), "https://x/c", "c.pdf").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	require.NoError(t, r.UpdateURL(context.Background(), ref, "https://x/c"))
	err := r.UpdateURL(context.Background(), ref, "https://x/c")
	require.ErrorIs(t, err, errs.ErrVersionConflict)
}

func TestIsUndefinedObject(t *testing.T) {
	require.True(t, isUndefinedObject(&pgconn.PgError{Code: "42P01"}))
	require.False(t, isUndefinedObject(errors.New("x")))
}
