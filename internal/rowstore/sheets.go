package rowstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"google.golang.org/api/option"
	sheetsv4 "google.golang.org/api/sheets/v4"
)

var errSheetNotFound = errors.New("sheet not found")

// Sheets stores each table as a tab of one spreadsheet. Row 1 of every tab is the header.
type Sheets struct {
	srv           *sheetsv4.Service
	spreadsheetID string

	mu       sync.Mutex
	sheetIDs map[string]int64
}

// NewSheetsFromServiceAccount authenticates with a service-account JSON key file.
func NewSheetsFromServiceAccount(ctx context.Context, serviceAccountJSONPath, spreadsheetID string) (*Sheets, error) {
	if _, err := os.Stat(serviceAccountJSONPath); err != nil {
		return nil, fmt.Errorf("service account json: %w", err)
	}
	return NewSheets(ctx, spreadsheetID,
		option.WithCredentialsFile(serviceAccountJSONPath),
		option.WithScopes(sheetsv4.SpreadsheetsScope),
	)
}

func NewSheets(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*Sheets, error) {
	srv, err := sheetsv4.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &Sheets{srv: srv, spreadsheetID: spreadsheetID, sheetIDs: map[string]int64{}}, nil
}

func (s *Sheets) SpreadsheetID() string { return s.spreadsheetID }

func (s *Sheets) EnsureTable(ctx context.Context, table string, header []string) error {
	if _, err := s.sheetID(ctx, table); err != nil {
		if !errors.Is(err, errSheetNotFound) {
			return err
		}
		add := &sheetsv4.BatchUpdateSpreadsheetRequest{Requests: []*sheetsv4.Request{{
			AddSheet: &sheetsv4.AddSheetRequest{Properties: &sheetsv4.SheetProperties{Title: table}},
		}}}
		if _, err := s.srv.Spreadsheets.BatchUpdate(s.spreadsheetID, add).Context(ctx).Do(); err != nil {
			return fmt.Errorf("add sheet %s: %w", table, err)
		}
		s.forgetSheetIDs()
	}
	resp, err := s.srv.Spreadsheets.Values.Get(s.spreadsheetID, table+"!1:1").Context(ctx).Do()
	if err != nil {
		return err
	}
	if len(resp.Values) > 0 && len(resp.Values[0]) > 0 {
		return nil
	}
	vr := &sheetsv4.ValueRange{Values: [][]interface{}{toInterfaces(header)}}
	_, err = s.srv.Spreadsheets.Values.Update(s.spreadsheetID, table+"!A1", vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func (s *Sheets) ReadRange(ctx context.Context, table string) ([][]string, error) {
	resp, err := s.srv.Spreadsheets.Values.Get(s.spreadsheetID, table+"!A:Z").Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	out := [][]string{}
	// header row at index 0
	for i := 1; i < len(resp.Values); i++ {
		row := resp.Values[i]
		cells := make([]string, len(row))
		for j := range row {
			cells[j] = cell(row, j)
		}
		out = append(out, cells)
	}
	return out, nil
}

func (s *Sheets) AppendRow(ctx context.Context, table string, row []string) error {
	return s.AppendRows(ctx, table, [][]string{row})
}

func (s *Sheets) AppendRows(ctx context.Context, table string, rows [][]string) error {
	if len(rows) == 0 {
		return nil
	}
	values := make([][]interface{}, 0, len(rows))
	for _, r := range rows {
		values = append(values, toInterfaces(r))
	}
	vr := &sheetsv4.ValueRange{Values: values}
	_, err := s.srv.Spreadsheets.Values.Append(s.spreadsheetID, table+"!A:Z", vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	return err
}

func (s *Sheets) UpdateRange(ctx context.Context, table string, rowIndex int, values []string) error {
	if rowIndex < 0 {
		return outOfRange(table, rowIndex, 0)
	}
	vr := &sheetsv4.ValueRange{Values: [][]interface{}{toInterfaces(values)}}
	_, err := s.srv.Spreadsheets.Values.Update(s.spreadsheetID, a1Row(table, rowIndex), vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	return err
}

func (s *Sheets) DeleteRow(ctx context.Context, table string, rowIndex int) error {
	if rowIndex < 0 {
		return outOfRange(table, rowIndex, 0)
	}
	id, err := s.sheetID(ctx, table)
	if err != nil {
		return err
	}
	// +1 skips the header; the dimension range is 0-based and end-exclusive.
	req := &sheetsv4.BatchUpdateSpreadsheetRequest{Requests: []*sheetsv4.Request{{
		DeleteDimension: &sheetsv4.DeleteDimensionRequest{Range: &sheetsv4.DimensionRange{
			SheetId:    id,
			Dimension:  "ROWS",
			StartIndex: int64(rowIndex + 1),
			EndIndex:   int64(rowIndex + 2),
		}},
	}}}
	_, err = s.srv.Spreadsheets.BatchUpdate(s.spreadsheetID, req).Context(ctx).Do()
	return err
}

func (s *Sheets) sheetID(ctx context.Context, table string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.sheetIDs[table]; ok {
		return id, nil
	}
	ss, err := s.srv.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
	if err != nil {
		return 0, err
	}
	for _, sh := range ss.Sheets {
		if sh.Properties != nil {
			s.sheetIDs[sh.Properties.Title] = sh.Properties.SheetId
		}
	}
	id, ok := s.sheetIDs[table]
	if !ok {
		return 0, fmt.Errorf("%q: %w", table, errSheetNotFound)
	}
	return id, nil
}

func (s *Sheets) forgetSheetIDs() {
	s.mu.Lock()
	s.sheetIDs = map[string]int64{}
	s.mu.Unlock()
}

// a1Row addresses a whole data row; sheet rows are 1-indexed and row 1 is the header.
func a1Row(table string, rowIndex int) string {
	return fmt.Sprintf("%s!A%d", table, rowIndex+2)
}

func cell(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}
	return fmt.Sprint(row[idx])
}

func toInterfaces(row []string) []interface{} {
	out := make([]interface{}, len(row))
	for i, v := range row {
		out[i] = v
	}
	return out
}
