package extract

import "strings"

// Columns is the fixed output schema, in the order consumed by the CSV and
// Sheets collaborators. Field names are part of the external contract.
var Columns = []string{
	"owner_names",
	"owner_type",
	"matricule",
	"tax_account_number",
	"municipality",
	"fiscal_years",
	"nb_logements",
	"assessed_terrain_current",
	"assessed_batiment_current",
	"assessed_total_current",
	"assessed_total_previous",
	"tax_distribution_json",
	"last_fetched_at",
	"source_url",
	"status",
}

// Record is the canonical extraction result. Every column is always present;
// unknown values are empty strings, never missing keys.
type Record map[string]string

// NewRecord returns a record with every column present and empty.
func NewRecord() Record {
	r := make(Record, len(Columns))
	for _, col := range Columns {
		r[col] = ""
	}
	return r
}

// DistributionRow is one line of the tax distribution table.
type DistributionRow struct {
	Subcategory string `json:"subcategory"`
	Percentage  string `json:"percentage"`
}

// ownerCorpKeywords flags an owner list as corporate when any keyword
// appears, case-insensitively, in the joined owner names.
var ownerCorpKeywords = []string{"inc", "ltée", "québec inc", "corp", "corporation"}

// classifyOwners returns "corporation", "person" or "unknown" for a joined
// owner-name string.
func classifyOwners(joined string) string {
	if joined == "" {
		return "unknown"
	}
	lowered := strings.ToLower(joined)
	for _, kw := range ownerCorpKeywords {
		if strings.Contains(lowered, kw) {
			return "corporation"
		}
	}
	return "person"
}

// distributionHeaders are first-cell values that mark a table header row.
var distributionHeaders = map[string]bool{
	"sous-catégorie": true,
	"sous-categorie": true,
	"catégorie":      true,
	"categorie":      true,
}

// meaningfulColumns is the fixed subset that decides whether a parse
// produced usable data. The JSON path falls back to embedded HTML only when
// none of these is populated.
var meaningfulColumns = []string{
	"owner_names",
	"matricule",
	"tax_account_number",
	"municipality",
	"assessed_total_current",
}

// HasMeaningfulData reports whether any of the meaningful columns is set.
func HasMeaningfulData(r Record) bool {
	for _, col := range meaningfulColumns {
		if r[col] != "" {
			return true
		}
	}
	return false
}
