package export

import (
	"context"
	"fmt"

	"github.com/samber/lo"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	sheets "google.golang.org/api/sheets/v4"
)

// HistorySheet receives one appended row per export run.
const HistorySheet = "HISTORY"

// headerGreen is the header row background.
var headerGreen = &sheets.Color{Red: 0.851, Green: 0.918, Blue: 0.827}

// SheetsWriter implements SheetWriter and HistoryAppender using the Google Sheets API.
type SheetsWriter struct {
	spreadsheetID string
	svc           *sheets.Service
}

// NewSheetsWriter creates a SheetsWriter authenticated with a service account JSON.
func NewSheetsWriter(ctx context.Context, spreadsheetID, credentialsJSON string) (*SheetsWriter, error) {
	creds, err := google.CredentialsFromJSON(
		ctx,
		[]byte(credentialsJSON),
		sheets.SpreadsheetsScope,
	)
	if err != nil {
		return nil, fmt.Errorf("parsing google credentials: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("creating sheets service: %w", err)
	}

	return &SheetsWriter{spreadsheetID: spreadsheetID, svc: svc}, nil
}

// Write ensures the sheets exist, then clears and rewrites them.
func (w *SheetsWriter) Write(ctx context.Context, data []Sheet) error {
	names := lo.Map(data, func(s Sheet, _ int) string { return s.Name })
	meta, err := w.ensureSheets(ctx, names...)
	if err != nil {
		return err
	}

	_, err = w.svc.Spreadsheets.Values.BatchClear(
		w.spreadsheetID,
		&sheets.BatchClearValuesRequest{
			Ranges: lo.Map(names, func(n string, _ int) string { return n + "!A:Z" }),
		},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("clearing sheets: %w", err)
	}

	_, err = w.svc.Spreadsheets.Values.BatchUpdate(
		w.spreadsheetID,
		&sheets.BatchUpdateValuesRequest{
			ValueInputOption: "USER_ENTERED",
			Data: lo.Map(data, func(s Sheet, _ int) *sheets.ValueRange {
				return &sheets.ValueRange{Range: s.Name + "!A1", Values: s.Rows}
			}),
		},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("writing sheets: %w", err)
	}

	reqs := lo.FlatMap(names, func(n string, _ int) []*sheets.Request {
		return headerFormatReqs(meta[n])
	})
	return w.batchUpdate(ctx, reqs)
}

// AppendHistory ensures the HISTORY sheet exists, writes the header if the
// sheet is empty, then appends row.
func (w *SheetsWriter) AppendHistory(ctx context.Context, header, row []any) error {
	meta, err := w.ensureSheets(ctx, HistorySheet)
	if err != nil {
		return fmt.Errorf("ensuring %s sheet: %w", HistorySheet, err)
	}

	existing, err := w.svc.Spreadsheets.Values.Get(w.spreadsheetID, HistorySheet+"!A1:A1").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("reading %s header: %w", HistorySheet, err)
	}

	if len(existing.Values) == 0 {
		_, err = w.svc.Spreadsheets.Values.Update(
			w.spreadsheetID,
			HistorySheet+"!A1",
			&sheets.ValueRange{Values: [][]any{header}},
		).ValueInputOption("USER_ENTERED").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("writing %s header: %w", HistorySheet, err)
		}
		if err := w.batchUpdate(ctx, headerFormatReqs(meta[HistorySheet])); err != nil {
			return err
		}
	}

	_, err = w.svc.Spreadsheets.Values.Append(
		w.spreadsheetID,
		HistorySheet+"!A:Z",
		&sheets.ValueRange{Values: [][]any{row}},
	).ValueInputOption("USER_ENTERED").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("appending %s row: %w", HistorySheet, err)
	}

	return nil
}

// ensureSheets creates any of the named sheets that do not already exist and
// returns the sheet id of every named sheet.
func (w *SheetsWriter) ensureSheets(ctx context.Context, names ...string) (map[string]int64, error) {
	spreadsheet, err := w.svc.Spreadsheets.Get(w.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("getting spreadsheet metadata: %w", err)
	}

	ids := make(map[string]int64, len(spreadsheet.Sheets))
	for _, s := range spreadsheet.Sheets {
		ids[s.Properties.Title] = s.Properties.SheetId
	}

	var requests []*sheets.Request
	for _, name := range names {
		if _, ok := ids[name]; !ok {
			requests = append(requests, &sheets.Request{
				AddSheet: &sheets.AddSheetRequest{
					Properties: &sheets.SheetProperties{Title: name},
				},
			})
		}
	}

	if len(requests) == 0 {
		return ids, nil
	}

	resp, err := w.svc.Spreadsheets.BatchUpdate(
		w.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: requests},
	).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("creating sheets: %w", err)
	}

	for _, reply := range resp.Replies {
		if reply.AddSheet != nil && reply.AddSheet.Properties != nil {
			ids[reply.AddSheet.Properties.Title] = reply.AddSheet.Properties.SheetId
		}
	}
	return ids, nil
}

func (w *SheetsWriter) batchUpdate(ctx context.Context, reqs []*sheets.Request) error {
	if len(reqs) == 0 {
		return nil
	}
	_, err := w.svc.Spreadsheets.BatchUpdate(
		w.spreadsheetID,
		&sheets.BatchUpdateSpreadsheetRequest{Requests: reqs},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("formatting sheets: %w", err)
	}
	return nil
}

// headerFormatReqs bolds and colours the first row and freezes it.
func headerFormatReqs(sheetID int64) []*sheets.Request {
	return []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:       sheetID,
					StartRowIndex: 0,
					EndRowIndex:   1,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						BackgroundColor: headerGreen,
						TextFormat:      &sheets.TextFormat{Bold: true},
					},
				},
				Fields: "userEnteredFormat(backgroundColor,textFormat)",
			},
		},
		{
			UpdateSheetProperties: &sheets.UpdateSheetPropertiesRequest{
				Properties: &sheets.SheetProperties{
					SheetId:        sheetID,
					GridProperties: &sheets.GridProperties{FrozenRowCount: 1},
				},
				Fields: "gridProperties.frozenRowCount",
			},
		},
	}
}
