package csvio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReadParsesHeaderAndRows(t *testing.T) {
	path := writeFile(t, "in.csv", "address,NO_ARROND_ILE_CUM\n1463 Rue Bishop,Ville-Marie\n100 Rue X,\n")

	tbl, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(tbl.Columns) != 2 || tbl.Columns[0] != "address" {
		t.Errorf("Columns = %v", tbl.Columns)
	}
	if len(tbl.Rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(tbl.Rows))
	}
	if tbl.Rows[0]["address"] != "1463 Rue Bishop" || tbl.Rows[0]["NO_ARROND_ILE_CUM"] != "Ville-Marie" {
		t.Errorf("row 0 = %v", tbl.Rows[0])
	}
	if tbl.Rows[1]["NO_ARROND_ILE_CUM"] != "" {
		t.Errorf("empty cell = %q, want empty", tbl.Rows[1]["NO_ARROND_ILE_CUM"])
	}
}

func TestReadRaggedRows(t *testing.T) {
	// WHY: hand-edited sheets often drop trailing commas; short rows must
	// read as empty cells, not fail the batch.
	path := writeFile(t, "in.csv", "a,b,c\n1,2\n")

	tbl, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if tbl.Rows[0]["c"] != "" {
		t.Errorf("missing cell = %q, want empty", tbl.Rows[0]["c"])
	}
}

func TestEnsureColumns(t *testing.T) {
	tbl := &Table{Columns: []string{"address", "status"}}
	tbl.EnsureColumns([]string{"status", "owner_names", "matricule"})
	want := []string{"address", "status", "owner_names", "matricule"}
	if len(tbl.Columns) != len(want) {
		t.Fatalf("Columns = %v, want %v", tbl.Columns, want)
	}
	for i, c := range want {
		if tbl.Columns[i] != c {
			t.Errorf("Columns[%d] = %q, want %q", i, tbl.Columns[i], c)
		}
	}
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.csv")
	tbl := &Table{
		Columns: []string{"address", "status"},
		Rows: []map[string]string{
			{"address": "1463 Rue Bishop", "status": "ok"},
			{"address": "100 Rue X"},
		},
	}
	if err := Write(path, tbl); err != nil {
		t.Fatalf("Write: %v", err)
	}

	back, err := Read(path)
	if err != nil {
		t.Fatalf("Read back: %v", err)
	}
	if back.Rows[0]["status"] != "ok" || back.Rows[1]["status"] != "" {
		t.Errorf("rows = %v", back.Rows)
	}

	// No temp file left behind.
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temp file survived a successful Write")
	}
}

func TestBackupNamesFileWithTimestamp(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "input.csv")
	tbl := &Table{Columns: []string{"a"}, Rows: []map[string]string{{"a": "1"}}}

	backup, err := Backup(path, tbl)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	base := filepath.Base(backup)
	if !strings.HasPrefix(base, "input_") || !strings.HasSuffix(base, ".csv") {
		t.Errorf("backup name = %q", base)
	}
	if _, err := os.Stat(backup); err != nil {
		t.Errorf("backup file missing: %v", err)
	}
}

func TestExportSnapshot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	tbl := &Table{Columns: []string{"a"}}

	path, err := ExportSnapshot(dir, tbl)
	if err != nil {
		t.Fatalf("ExportSnapshot: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(path), "enriched_") {
		t.Errorf("snapshot name = %q", filepath.Base(path))
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("snapshot missing: %v", err)
	}
}
