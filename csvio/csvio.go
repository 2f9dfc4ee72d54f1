// Package csvio reads and writes the batch CSV files. Writes go through a
// temp file and rename so an interrupted run never truncates the input.
package csvio

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Table is a CSV file held in memory: ordered columns plus one map per row.
// Cells absent from a row read as "".
type Table struct {
	Columns []string
	Rows    []map[string]string
}

// Read loads the CSV at path. The first line is the header.
func Read(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csvio: open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("csvio: read %s: %w", path, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("csvio: %s has no header row", path)
	}

	t := &Table{Columns: records[0]}
	for _, rec := range records[1:] {
		row := make(map[string]string, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// EnsureColumns appends any missing columns to the table, so every output
// field has a home before the batch starts filling them in.
func (t *Table) EnsureColumns(cols []string) {
	have := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		have[c] = true
	}
	for _, c := range cols {
		if !have[c] {
			t.Columns = append(t.Columns, c)
			have[c] = true
		}
	}
}

// Write saves the table to path atomically: write a sibling temp file, then
// rename over the destination.
func Write(path string, t *Table) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("csvio: create %s: %w", tmp, err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("csvio: write header: %w", err)
	}
	line := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, col := range t.Columns {
			line[i] = row[col]
		}
		if err := w.Write(line); err != nil {
			f.Close()
			os.Remove(tmp)
			return fmt.Errorf("csvio: write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("csvio: flush: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("csvio: close %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("csvio: rename %s: %w", tmp, err)
	}
	return nil
}

// Backup writes a timestamped copy of the table next to path
// (name_20060102_1504.csv) and returns the copy's path.
func Backup(path string, t *Table) (string, error) {
	ext := filepath.Ext(path)
	stem := strings.TrimSuffix(path, ext)
	backup := fmt.Sprintf("%s_%s%s", stem, time.Now().UTC().Format("20060102_1504"), ext)
	if err := Write(backup, t); err != nil {
		return "", err
	}
	return backup, nil
}

// ExportSnapshot writes the table to dir as enriched_<timestamp>.csv,
// creating dir if needed, and returns the file's path.
func ExportSnapshot(dir string, t *Table) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("csvio: mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("enriched_%s.csv", time.Now().UTC().Format("20060102_1504")))
	if err := Write(path, t); err != nil {
		return "", err
	}
	return path, nil
}
