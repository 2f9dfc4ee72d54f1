package sheets

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// googleWorksheet is a Worksheet over one tab of one spreadsheet via the
// Sheets v4 API.
type googleWorksheet struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	tab           string
}

// Open connects to a spreadsheet tab using service-account credentials
// (the raw JSON key).
func Open(ctx context.Context, credentialsJSON []byte, spreadsheetID, tab string) (Worksheet, error) {
	svc, err := sheetsapi.NewService(ctx,
		option.WithCredentialsJSON(credentialsJSON),
		option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("sheets: connect: %w", err)
	}
	return &googleWorksheet{svc: svc, spreadsheetID: spreadsheetID, tab: tab}, nil
}

func (w *googleWorksheet) qualify(rangeA1 string) string {
	return fmt.Sprintf("'%s'!%s", w.tab, rangeA1)
}

func (w *googleWorksheet) Get(ctx context.Context, rangeA1 string) ([][]string, error) {
	resp, err := w.svc.Spreadsheets.Values.Get(w.spreadsheetID, w.qualify(rangeA1)).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("sheets: get %s: %w", rangeA1, err)
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			cells = append(cells, fmt.Sprint(cell))
		}
		rows = append(rows, cells)
	}
	return rows, nil
}

func (w *googleWorksheet) Update(ctx context.Context, rangeA1 string, values [][]string) error {
	body := &sheetsapi.ValueRange{Values: make([][]any, len(values))}
	for i, row := range values {
		cells := make([]any, len(row))
		for j, cell := range row {
			cells[j] = cell
		}
		body.Values[i] = cells
	}
	_, err := w.svc.Spreadsheets.Values.
		Update(w.spreadsheetID, w.qualify(rangeA1), body).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("sheets: update %s: %w", rangeA1, err)
	}
	return nil
}
