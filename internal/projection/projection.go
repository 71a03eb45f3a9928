// Package projection flattens trips into spreadsheet rows.
package projection

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/and161185/cruise-docsync/internal/model"
)

// DateLayout is used for every date cell.
const DateLayout = "2006-01-02"

// HeaderRowIndex is the zero-based row of the column header in the grid built by Sheet.
const HeaderRowIndex = 4

// Columns is the fixed header. Existing sheets depend on this order.
var Columns = []string{
	"No",
	"Reservation",
	"Cabin",
	"Category",
	"Surname",
	"Given name",
	"Local name",
	"National ID",
	"Sex",
	"Birth date",
	"Passport no.",
	"Issue date",
	"Expiry date",
	"Phone",
	"Flight",
	"Payment date",
	"Payment method",
	"Payment amount",
	"Agent",
	"Remark 1",
	"Remark 2",
	"Document link",
}

// Project returns one row per traveler. Reservations keep the given order;
// travelers within a reservation are ordered by room (unset counts as 1) and id.
// The first column is a running sequence across the whole trip.
func Project(trip model.Trip, reservations []model.Reservation, travelers map[int64][]model.Traveler) [][]string {
	var rows [][]string
	seq := 0
	for _, r := range reservations {
		ts := append([]model.Traveler(nil), travelers[r.ID]...)
		sort.SliceStable(ts, func(i, j int) bool {
			ri, rj := room(ts[i]), room(ts[j])
			if ri != rj {
				return ri < rj
			}
			return ts[i].ID < ts[j].ID
		})
		for _, t := range ts {
			seq++
			rows = append(rows, row(seq, r, t))
		}
	}
	return rows
}

func room(t model.Traveler) int {
	if t.RoomNumber == 0 {
		return 1
	}
	return t.RoomNumber
}

func row(seq int, r model.Reservation, t model.Traveler) []string {
	surname, given := splitName(t.Surname, t.GivenName)
	phone := t.Phone
	if phone == "" {
		phone = r.ContactPhone
	}
	return []string{
		strconv.Itoa(seq),
		r.Code,
		r.Cabin,
		r.Category,
		surname,
		given,
		t.LocalName,
		t.NationalID,
		t.Sex,
		date(t.BirthDate),
		t.PassportNo,
		date(t.PassportIssued),
		date(t.PassportExpires),
		phone,
		r.Flight,
		date(r.PaymentDate),
		r.PaymentMethod,
		amount(r.PaymentAmount),
		r.Agent,
		r.Remark1,
		r.Remark2,
		link(t.PassportImage, r.ContractFile),
	}
}

// splitName handles legacy records that store "SURNAME/GIVEN" in the surname field.
func splitName(surname, given string) (string, string) {
	surname = strings.TrimSpace(surname)
	given = strings.TrimSpace(given)
	if given != "" {
		return surname, given
	}
	if s, g, ok := strings.Cut(surname, "/"); ok {
		return strings.TrimSpace(s), strings.TrimSpace(g)
	}
	return surname, ""
}

func date(t *time.Time) string {
	if t == nil || t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}

func amount(v int64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatInt(v, 10)
}

// link returns the first value that is already a remote URL.
func link(candidates ...string) string {
	for _, c := range candidates {
		if strings.HasPrefix(c, "http://") || strings.HasPrefix(c, "https://") {
			return c
		}
	}
	return ""
}

// Sheet builds the full grid written at A1: group label, start date, end date,
// a blank row, the header and then rows.
func Sheet(trip model.Trip, rows [][]string) [][]string {
	grid := make([][]string, 0, HeaderRowIndex+1+len(rows))
	grid = append(grid,
		[]string{trip.Name},
		[]string{"Start", date(&trip.DepartureDate)},
		[]string{"End", date(&trip.ReturnDate)},
		[]string{},
		append([]string(nil), Columns...),
	)
	return append(grid, rows...)
}

// Pad appends blank rows until grid has at least n rows, so a full rewrite
// clears rows left over from a longer previous write.
func Pad(grid [][]string, n int) [][]string {
	for len(grid) < n {
		grid = append(grid, make([]string, len(Columns)))
	}
	return grid
}
