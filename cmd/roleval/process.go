package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/MugiZer/roleval/csvio"
	"github.com/MugiZer/roleval/extract"
	"github.com/MugiZer/roleval/role"
	"github.com/MugiZer/roleval/sheets"
)

// processCSV enriches the input CSV row by row, saving incrementally every
// chunk so an interrupted run keeps its progress.
func processCSV(ctx context.Context, logger *slog.Logger, scraper *role.Scraper, cfg *Config, opts options) error {
	table, err := csvio.Read(opts.input)
	if err != nil {
		return err
	}
	if !opts.noBackup {
		backup, err := csvio.Backup(opts.input, table)
		if err != nil {
			return fmt.Errorf("backup input: %w", err)
		}
		logger.Info("input backed up", "path", backup)
	}
	table.EnsureColumns(extract.Columns)

	output := opts.output
	if output == "" {
		output = opts.input
	}

	processed := 0
	dirty := 0
	for i := opts.startRow; i < len(table.Rows); i++ {
		if err := ctx.Err(); err != nil {
			logger.Warn("interrupted, saving progress", "row", i)
			break
		}
		if opts.maxRows > 0 && processed >= opts.maxRows {
			break
		}
		row := table.Rows[i]
		if row["status"] == role.StatusOK {
			continue
		}
		q, ok := role.ParseInputRow(row)
		if !ok {
			logger.Warn("row has no usable address, skipping", "row", i)
			continue
		}

		rec, err := scraper.Fetch(ctx, q)
		if err != nil {
			logger.Warn("lookup aborted", "row", i, "address", q.RawAddress, "error", err)
			break
		}
		for _, col := range extract.Columns {
			row[col] = rec[col]
		}
		logger.Info("row processed", "row", i, "address", q.RawAddress, "status", rec["status"])

		processed++
		dirty++
		if dirty >= cfg.ChunkSize {
			if err := csvio.Write(output, table); err != nil {
				return err
			}
			logger.Debug("progress saved", "rows", processed)
			dirty = 0
		}
	}

	if err := csvio.Write(output, table); err != nil {
		return err
	}
	snapshot, err := csvio.ExportSnapshot(cfg.ExportsDir, table)
	if err != nil {
		logger.Warn("snapshot export failed", "error", err)
	} else {
		logger.Info("snapshot exported", "path", snapshot)
	}
	logger.Info("batch complete", "processed", processed, "output", output)
	return nil
}

// processSheet enriches a Google Sheet. Each successful lookup commits its
// row individually through the rollback-protected batch writer; failed
// lookups leave the sheet untouched.
func processSheet(ctx context.Context, logger *slog.Logger, scraper *role.Scraper, cfg *Config, opts options) error {
	creds, err := os.ReadFile(cfg.Sheets.CredentialsFile)
	if err != nil {
		return fmt.Errorf("read sheets credentials: %w", err)
	}
	ws, err := sheets.Open(ctx, creds, cfg.Sheets.Spreadsheet, cfg.Sheets.Tab)
	if err != nil {
		return err
	}

	header, err := sheets.EnsureColumns(ctx, ws, extract.Columns)
	if err != nil {
		return err
	}

	rows, err := ws.Get(ctx, sheets.RangeFrom(cfg.Sheets.FromRow, header))
	if err != nil {
		return fmt.Errorf("sheets: read rows: %w", err)
	}

	processed := 0
	for i, cells := range rows {
		if err := ctx.Err(); err != nil {
			logger.Warn("interrupted", "row", cfg.Sheets.FromRow+i)
			break
		}
		if opts.maxRows > 0 && processed >= opts.maxRows {
			break
		}
		sheetRow := cfg.Sheets.FromRow + i
		row := make(map[string]string, len(header))
		for j, col := range header {
			if j < len(cells) {
				row[col] = cells[j]
			}
		}
		if row["status"] == role.StatusOK {
			continue
		}
		q, ok := role.ParseInputRow(row)
		if !ok {
			logger.Warn("row has no usable address, skipping", "row", sheetRow)
			continue
		}

		rec, err := scraper.Fetch(ctx, q)
		if err != nil {
			logger.Warn("lookup aborted", "row", sheetRow, "address", q.RawAddress, "error", err)
			break
		}
		processed++
		logger.Info("row processed", "row", sheetRow, "address", q.RawAddress, "status", rec["status"])
		if rec["status"] != role.StatusOK {
			continue
		}

		updated := make(map[string]string, len(row))
		for k, v := range row {
			updated[k] = v
		}
		for _, col := range extract.Columns {
			updated[col] = rec[col]
		}
		update := sheets.RowUpdate{Row: sheetRow, Original: row, Updated: updated}
		if err := sheets.CommitBatch(ctx, ws, []sheets.RowUpdate{update}, header, logger); err != nil {
			return fmt.Errorf("commit row %d: %w", sheetRow, err)
		}
	}
	logger.Info("sheet batch complete", "processed", processed)
	return nil
}
