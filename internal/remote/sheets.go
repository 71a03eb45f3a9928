package remote

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/api/sheets/v4"
)

// GoogleSheets implements Sheets over the Sheets v4 API.
type GoogleSheets struct {
	svc  *sheets.Service
	diag keyDiag
}

// NewGoogleSheets wraps an existing service.
func NewGoogleSheets(svc *sheets.Service) *GoogleSheets {
	return &GoogleSheets{svc: svc}
}

// Create makes a spreadsheet with a single sheet titled sheetTitle.
func (s *GoogleSheets) Create(ctx context.Context, title, sheetTitle string) (Spreadsheet, error) {
	req := &sheets.Spreadsheet{
		Properties: &sheets.SpreadsheetProperties{Title: title},
		Sheets: []*sheets.Sheet{
			{Properties: &sheets.SheetProperties{Title: sheetTitle}},
		},
	}
	res, err := s.svc.Spreadsheets.Create(req).Context(ctx).Do()
	if err != nil {
		return Spreadsheet{}, s.diag.classify("create spreadsheet", "spreadsheet", title, err)
	}
	return toSpreadsheet(res), nil
}

// Get reads spreadsheet metadata; it doubles as an existence check.
func (s *GoogleSheets) Get(ctx context.Context, id string) (Spreadsheet, error) {
	res, err := s.svc.Spreadsheets.Get(id).
		Fields("spreadsheetId,spreadsheetUrl,sheets.properties(sheetId,title)").
		Context(ctx).
		Do()
	if err != nil {
		return Spreadsheet{}, s.diag.classify("get spreadsheet", "spreadsheet", id, err)
	}
	return toSpreadsheet(res), nil
}

// UsedRows counts data rows in column A.
func (s *GoogleSheets) UsedRows(ctx context.Context, id, sheetTitle string) (int, error) {
	res, err := s.svc.Spreadsheets.Values.Get(id, A1(sheetTitle, "A:A")).Context(ctx).Do()
	if err != nil {
		return 0, s.diag.classify("read values", "spreadsheet", id, err)
	}
	return len(res.Values), nil
}

// WriteValues replaces values starting at rangeA1 in one values.update call.
func (s *GoogleSheets) WriteValues(ctx context.Context, id, rangeA1 string, rows [][]string) error {
	values := make([][]interface{}, len(rows))
	for i, r := range rows {
		row := make([]interface{}, len(r))
		for j, v := range r {
			row[j] = v
		}
		values[i] = row
	}
	vr := &sheets.ValueRange{Range: rangeA1, MajorDimension: "ROWS", Values: values}
	_, err := s.svc.Spreadsheets.Values.Update(id, rangeA1, vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return s.diag.classify("write values", "spreadsheet", id, err)
	}
	return nil
}

// FormatHeader applies bold text on a light grey background to one row.
func (s *GoogleSheets) FormatHeader(ctx context.Context, id string, sheetID int64, row, cols int) error {
	req := &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    int64(row),
					EndRowIndex:      int64(row + 1),
					StartColumnIndex: 0,
					EndColumnIndex:   int64(cols),
					// zero is a valid sheet id and row/column index
					ForceSendFields: []string{"SheetId", "StartRowIndex", "StartColumnIndex"},
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						BackgroundColor: &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9},
						TextFormat:      &sheets.TextFormat{Bold: true},
					},
				},
				Fields: "userEnteredFormat(backgroundColor,textFormat.bold)",
			},
		}},
	}
	if _, err := s.svc.Spreadsheets.BatchUpdate(id, req).Context(ctx).Do(); err != nil {
		return s.diag.classify("format header", "spreadsheet", id, err)
	}
	return nil
}

func toSpreadsheet(res *sheets.Spreadsheet) Spreadsheet {
	out := Spreadsheet{ID: res.SpreadsheetId, URL: res.SpreadsheetUrl}
	if len(res.Sheets) > 0 && res.Sheets[0].Properties != nil {
		out.SheetID = res.Sheets[0].Properties.SheetId
		out.SheetTitle = res.Sheets[0].Properties.Title
	}
	if out.URL == "" && out.ID != "" {
		out.URL = SpreadsheetURL(out.ID)
	}
	return out
}

// SpreadsheetURL is the canonical edit URL of a spreadsheet.
func SpreadsheetURL(id string) string {
	return fmt.Sprintf("https://docs.google.com/spreadsheets/d/%s/edit", id)
}

// A1 builds a quoted sheet range such as 'Travelers'!A1.
func A1(sheetTitle, cells string) string {
	return "'" + strings.ReplaceAll(sheetTitle, "'", "''") + "'!" + cells
}
