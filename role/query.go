package role

import (
	"regexp"
	"strings"
)

// AddressQuery is one address to look up, parsed from a batch row.
type AddressQuery struct {
	CivicNumber string
	StreetName  string
	RawAddress  string
	// Borough disambiguates same-named streets across arrondissements.
	// Optional, taken from the NO_ARROND_ILE_CUM column when present.
	Borough string
}

// BoroughColumn is the batch-input column carrying the arrondissement.
const BoroughColumn = "NO_ARROND_ILE_CUM"

var (
	nonAlnum    = regexp.MustCompile(`[^a-z0-9]`)
	nonLetter   = regexp.MustCompile(`[^a-z]`)
	civicPrefix = regexp.MustCompile(`^(\d+[a-zA-Z]?)\s+(.*)$`)
	nonCivic    = regexp.MustCompile(`[^0-9a-zA-Z]`)
)

// Normalize lowercases and strips every non-alphanumeric rune, the
// comparison form used for address and street matching.
func Normalize(s string) string {
	return nonAlnum.ReplaceAllString(strings.ToLower(s), "")
}

// NormalizeBorough reduces an arrondissement name to bare letters, matching
// how the suggestion API renders borough names.
func NormalizeBorough(s string) string {
	return nonLetter.ReplaceAllString(strings.ToLower(s), "")
}

// CacheKey is the stable cache identity for the query: the trimmed,
// lowercased non-empty parts joined with "|". The borough participates so
// same-named streets in different arrondissements stay distinct.
func (q AddressQuery) CacheKey() string {
	street := q.StreetName
	if street == "" {
		street = q.RawAddress
	}
	var parts []string
	for _, p := range []string{q.CivicNumber, street, q.Borough} {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "|")
}

// normalizedAddress is the comparison form matched against result-list
// entries: civic number + street name when both are known, else the raw
// address.
func (q AddressQuery) normalizedAddress() string {
	if q.CivicNumber != "" && q.StreetName != "" {
		return Normalize(q.CivicNumber + " " + q.StreetName)
	}
	return Normalize(q.RawAddress)
}

// ParseInputRow builds an AddressQuery from a batch row. It accepts either
// explicit civicNumber/streetName columns or a combined address column with
// a leading civic number ("1463 Rue Bishop"). ok is false when neither
// yields a usable query.
func ParseInputRow(row map[string]string) (AddressQuery, bool) {
	civic := cleanCivic(firstNonEmpty(row["civicNumber"], row["civic_number"]))
	street := strings.TrimSpace(firstNonEmpty(row["streetName"], row["street_name"]))
	raw := strings.TrimSpace(firstNonEmpty(row["address"], row["Adresse"]))

	if civic == "" && raw != "" {
		if m := civicPrefix.FindStringSubmatch(raw); m != nil {
			civic = m[1]
			if street == "" {
				street = m[2]
			}
		}
	}
	street = strings.TrimSpace(street)
	if civic == "" || street == "" {
		return AddressQuery{}, false
	}
	if raw == "" {
		raw = civic + " " + street
	}
	return AddressQuery{
		CivicNumber: civic,
		StreetName:  street,
		RawAddress:  raw,
		Borough:     strings.TrimSpace(row[BoroughColumn]),
	}, true
}

func cleanCivic(s string) string {
	return nonCivic.ReplaceAllString(s, "")
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
