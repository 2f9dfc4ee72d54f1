package extract

import (
	"encoding/json"
	"errors"
	"testing"
)

func decode(t *testing.T, src string) any {
	t.Helper()
	var payload any
	if err := json.Unmarshal([]byte(src), &payload); err != nil {
		t.Fatalf("fixture: %v", err)
	}
	return payload
}

func TestParseResultJSON_DirectWalk(t *testing.T) {
	payload := decode(t, `{
		"props": {
			"pageProps": {
				"municipality": "Montréal",
				"matricule": "9445-12-3456-7-890-0001",
				"owners": ["John Doe", "Acme Inc"],
				"sections": [
					{"title": "Valeurs au rôle courant", "rows": [
						{"label": "Terrain", "value": "12 345 $"},
						{"label": "Bâtiment", "value": "23 456 $"},
						{"label": "Total", "value": "35 801 $"}
					]},
					{"title": "Valeurs au rôle antérieur", "rows": [
						{"label": "Total", "value": "30 000 $"}
					]}
				]
			}
		}
	}`)

	data, err := ParseResultJSON(payload)
	if err != nil {
		t.Fatalf("ParseResultJSON: %v", err)
	}
	if data["municipality"] != "Montréal" {
		t.Errorf("municipality = %q", data["municipality"])
	}
	if data["owner_names"] != "John Doe; Acme Inc" {
		t.Errorf("owner_names = %q", data["owner_names"])
	}
	if data["owner_type"] != "corporation" {
		t.Errorf("owner_type = %q", data["owner_type"])
	}
	if data["assessed_terrain_current"] != "12345" {
		t.Errorf("assessed_terrain_current = %q", data["assessed_terrain_current"])
	}
	if data["assessed_total_previous"] != "30000" {
		t.Errorf("assessed_total_previous = %q", data["assessed_total_previous"])
	}
}

func TestParseResultJSON_LabelValuePairs(t *testing.T) {
	payload := decode(t, `{
		"blocks": [
			{"label": "Numéro de matricule", "value": "1234-56-7890"},
			{"label": "Nombre de logements", "value": "2"}
		]
	}`)
	data, err := ParseResultJSON(payload)
	if err != nil {
		t.Fatalf("ParseResultJSON: %v", err)
	}
	if data["matricule"] != "1234-56-7890" {
		t.Errorf("matricule = %q", data["matricule"])
	}
	if data["nb_logements"] != "2" {
		t.Errorf("nb_logements = %q", data["nb_logements"])
	}
}

func TestParseResultJSON_ValuesListJoins(t *testing.T) {
	// Nodes carrying a "values" list instead of a scalar value: string
	// entries join with "; ", non-strings and blanks drop out.
	payload := decode(t, `{
		"blocks": [
			{"label": "Période du rôle", "values": ["2023", "", 42, "  2024 "]},
			{"title": "Valeurs au rôle courant", "rows": [
				{"label": "Total", "values": ["35 801 $"]}
			]}
		]
	}`)
	data, err := ParseResultJSON(payload)
	if err != nil {
		t.Fatalf("ParseResultJSON: %v", err)
	}
	if data["fiscal_years"] != "2023; 2024" {
		t.Errorf("fiscal_years = %q", data["fiscal_years"])
	}
	if data["assessed_total_current"] != "35801" {
		t.Errorf("assessed_total_current = %q", data["assessed_total_current"])
	}
}

func TestParseResultJSON_OwnerNumeroFilter(t *testing.T) {
	payload := decode(t, `{
		"matricule": "1111-22-3333",
		"owners": ["Numéro de compte: 42", "Jane Doe"]
	}`)
	data, err := ParseResultJSON(payload)
	if err != nil {
		t.Fatalf("ParseResultJSON: %v", err)
	}
	if data["owner_names"] != "Jane Doe" {
		t.Errorf("ID label leaked into owners: %q", data["owner_names"])
	}
}

func TestParseResultJSON_EmbeddedHTMLFallback(t *testing.T) {
	fragment := `<section><h2 id=\"proprietaires\">Propriétaires</h2><ul class=\"list\"><li class=\"list-item\"><div class=\"list-item-content\">Acme Inc</div></li></ul></section>`
	payload := decode(t, `{"page": {"rendered": "`+fragment+`"}}`)
	data, err := ParseResultJSON(payload)
	if err != nil {
		t.Fatalf("ParseResultJSON: %v", err)
	}
	if data["owner_names"] != "Acme Inc" {
		t.Errorf("owner_names = %q", data["owner_names"])
	}
	if data["owner_type"] != "corporation" {
		t.Errorf("owner_type = %q", data["owner_type"])
	}
}

func TestParseResultJSON_PrefersDirectWalk(t *testing.T) {
	// Both tiers could produce data; the direct walk must win.
	fragment := `<section><h2 id=\"proprietaires\">P</h2><ul class=\"list\"><li class=\"list-item\"><div class=\"list-item-content\">Html Owner</div></li></ul></section>`
	payload := decode(t, `{"municipality": "Westmount", "page": "`+fragment+`"}`)
	data, err := ParseResultJSON(payload)
	if err != nil {
		t.Fatalf("ParseResultJSON: %v", err)
	}
	if data["municipality"] != "Westmount" {
		t.Errorf("municipality = %q", data["municipality"])
	}
	if data["owner_names"] != "" {
		t.Errorf("fallback ran despite meaningful direct data: %q", data["owner_names"])
	}
}

func TestParseResultJSON_NothingUsable(t *testing.T) {
	payload := decode(t, `{"a": {"b": [1, 2, "plain text"]}}`)
	if _, err := ParseResultJSON(payload); !errors.Is(err, ErrNoUsableContent) {
		t.Fatalf("err = %v, want ErrNoUsableContent", err)
	}
}

func TestParseResultJSON_FallbackCandidateWithoutData(t *testing.T) {
	// An HTML-looking leaf that parses to nothing meaningful still fails.
	payload := decode(t, `{"page": "<div>rien ici</div>"}`)
	if _, err := ParseResultJSON(payload); !errors.Is(err, ErrNoUsableContent) {
		t.Fatalf("err = %v, want ErrNoUsableContent", err)
	}
}

func TestParseResultJSON_Distribution(t *testing.T) {
	payload := decode(t, `{
		"matricule": "1234",
		"sections": [{
			"title": "Répartition fiscale",
			"rows": [
				{"cells": ["Sous-catégorie", "%"]},
				{"cells": ["Résidentiel", "80 %"]},
				{"cells": ["Commercial", "20 %"]}
			]
		}]
	}`)
	data, err := ParseResultJSON(payload)
	if err != nil {
		t.Fatalf("ParseResultJSON: %v", err)
	}
	var rows []DistributionRow
	if err := json.Unmarshal([]byte(data["tax_distribution_json"]), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rows) != 2 || rows[0].Subcategory != "Résidentiel" || rows[1].Percentage != "20" {
		t.Fatalf("rows: %+v", rows)
	}
}
