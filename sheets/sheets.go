// Package sheets writes batch results back to a Google Sheet. Updates go
// through a rollback-then-retry commit so a transient API failure never
// leaves a half-written block of rows.
package sheets

import (
	"context"
	"fmt"
	"log/slog"
)

// Worksheet is the slice of the Sheets API the batch needs: read a range,
// write a range. A1 notation, tab-relative.
type Worksheet interface {
	Get(ctx context.Context, rangeA1 string) ([][]string, error)
	Update(ctx context.Context, rangeA1 string, values [][]string) error
}

// RangeForRows returns the A1 range covering count rows of the header's
// width, starting at startRow (1-based).
func RangeForRows(startRow, count int, header []string) string {
	endRow := startRow
	if count > 1 {
		endRow = startRow + count - 1
	}
	return fmt.Sprintf("A%d:%s%d", startRow, columnLetters(len(header)), endRow)
}

// RangeFrom returns the open-ended A1 range from startRow down to the end
// of the sheet, as wide as the header.
func RangeFrom(startRow int, header []string) string {
	return fmt.Sprintf("A%d:%s", startRow, columnLetters(len(header)))
}

// columnLetters converts a 1-based column count to its A1 letters
// (1 → A, 26 → Z, 27 → AA).
func columnLetters(n int) string {
	if n < 1 {
		n = 1
	}
	var letters []byte
	for n > 0 {
		n--
		letters = append([]byte{byte('A' + n%26)}, letters...)
		n /= 26
	}
	return string(letters)
}

// EnsureColumns reads the header row, appends any missing output columns
// and writes the header back if it changed. It returns the final header.
func EnsureColumns(ctx context.Context, ws Worksheet, cols []string) ([]string, error) {
	rows, err := ws.Get(ctx, "1:1")
	if err != nil {
		return nil, fmt.Errorf("sheets: read header: %w", err)
	}
	var header []string
	if len(rows) > 0 {
		header = rows[0]
	}
	have := make(map[string]bool, len(header))
	for _, c := range header {
		have[c] = true
	}
	updated := false
	for _, c := range cols {
		if !have[c] {
			header = append(header, c)
			have[c] = true
			updated = true
		}
	}
	if updated {
		if err := ws.Update(ctx, "A1", [][]string{header}); err != nil {
			return nil, fmt.Errorf("sheets: write header: %w", err)
		}
	}
	return header, nil
}

// BatchUpdate writes rows starting at startRow, cells ordered by header.
// Cells absent from a row write as "".
func BatchUpdate(ctx context.Context, ws Worksheet, startRow int, rows []map[string]string, header []string) error {
	if len(rows) == 0 {
		return nil
	}
	values := make([][]string, 0, len(rows))
	for _, row := range rows {
		ordered := make([]string, len(header))
		for i, col := range header {
			ordered[i] = row[col]
		}
		values = append(values, ordered)
	}
	return ws.Update(ctx, RangeForRows(startRow, len(rows), header), values)
}

// RowUpdate pairs a sheet row's pre-update cells with its new cells, so a
// failed commit can restore what was there.
type RowUpdate struct {
	// Row is the 1-based sheet row.
	Row      int
	Original map[string]string
	Updated  map[string]string
}

// CommitBatch writes a contiguous block of row updates. On a failed write
// it restores the original values, then retries the new values exactly
// once; a second failure propagates. A snapshot of the remote range is
// read first for diagnostics.
func CommitBatch(ctx context.Context, ws Worksheet, updates []RowUpdate, header []string, logger *slog.Logger) error {
	if len(updates) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	startRow := updates[0].Row
	newRows := make([]map[string]string, len(updates))
	origRows := make([]map[string]string, len(updates))
	for i, u := range updates {
		if u.Row != startRow+i {
			return fmt.Errorf("sheets: commit block not contiguous at row %d", u.Row)
		}
		newRows[i] = u.Updated
		origRows[i] = u.Original
	}

	snapshot, err := ws.Get(ctx, RangeForRows(startRow, len(updates), header))
	if err != nil {
		return fmt.Errorf("sheets: snapshot before commit: %w", err)
	}

	firstErr := BatchUpdate(ctx, ws, startRow, newRows, header)
	if firstErr == nil {
		return nil
	}
	logger.Warn("batch update failed, rolling back", "start_row", startRow, "rows", len(updates), "snapshot_rows", len(snapshot), "error", firstErr)

	if err := BatchUpdate(ctx, ws, startRow, origRows, header); err != nil {
		logger.Error("rollback write failed", "start_row", startRow, "error", err)
	}

	if err := BatchUpdate(ctx, ws, startRow, newRows, header); err != nil {
		return fmt.Errorf("sheets: commit retry failed at row %d: %w", startRow, err)
	}
	return nil
}
