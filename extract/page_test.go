package extract

import (
	"encoding/json"
	"testing"
)

const resultPage = `
<html><body>
<header class="page-header">
  <div class="content-header-extras">
    <div class="list-inline-item">
      <div>
        <div>Montréal</div>
        <div>2023-2024-2025</div>
      </div>
    </div>
  </div>
</header>
<section>
  <h2 id="proprietaires">Propriétaire(s)</h2>
  <ul class="list">
    <li class="list-item"><div class="list-item-content">John Doe</div></li>
    <li class="list-item"><div class="list-item-content">Acme Inc</div></li>
  </ul>
</section>
<section>
  <h2 id="identification">Identification</h2>
  <dl>
    <dt>Numéro de matricule</dt><dd>9445-12-3456-7-890-0001</dd>
    <dt>Numéro de compte foncier</dt><dd>123456789</dd>
  </dl>
</section>
<section>
  <h2 id="caracteristiques">Caractéristiques</h2>
  <div>
    <h3 class="h4">Caractéristiques du bâtiment principal</h3>
    <dl>
      <dt>Nombre de logements</dt><dd>3</dd>
    </dl>
  </div>
</section>
<section>
  <h2 id="valeur">Valeur</h2>
  <section>
    <h3>Valeurs au rôle courant</h3>
    <dl>
      <dt>Terrain</dt><dd>12 345 $</dd>
      <dt>Bâtiment</dt><dd>23 456 $</dd>
      <dt>Total</dt><dd>35 801 $</dd>
    </dl>
  </section>
  <section>
    <h3>Valeurs au rôle antérieur</h3>
    <dl>
      <dt>Total</dt><dd>30 000 $</dd>
    </dl>
  </section>
  <div>
    <table>
      <tr><th>Sous-catégorie</th><th>Pourcentage</th></tr>
      <tr><td>Résidentiel</td><td>80 %</td></tr>
      <tr><td>Commercial</td><td>20 %</td></tr>
    </table>
  </div>
</section>
</body></html>`

func TestParseResultPage_FullDocument(t *testing.T) {
	data := ParseResultPage(resultPage)

	want := map[string]string{
		"owner_names":               "John Doe; Acme Inc",
		"owner_type":                "corporation",
		"matricule":                 "9445-12-3456-7-890-0001",
		"tax_account_number":        "123456789",
		"municipality":              "Montréal",
		"fiscal_years":              "2023-2024-2025",
		"nb_logements":              "3",
		"assessed_terrain_current":  "12345",
		"assessed_batiment_current": "23456",
		"assessed_total_current":    "35801",
		"assessed_total_previous":   "30000",
	}
	for col, wantVal := range want {
		if data[col] != wantVal {
			t.Errorf("%s = %q, want %q", col, data[col], wantVal)
		}
	}

	var rows []DistributionRow
	if err := json.Unmarshal([]byte(data["tax_distribution_json"]), &rows); err != nil {
		t.Fatalf("tax_distribution_json: %v", err)
	}
	wantRows := []DistributionRow{
		{Subcategory: "Résidentiel", Percentage: "80"},
		{Subcategory: "Commercial", Percentage: "20"},
	}
	if len(rows) != len(wantRows) {
		t.Fatalf("distribution rows: got %d, want %d", len(rows), len(wantRows))
	}
	for i := range wantRows {
		if rows[i] != wantRows[i] {
			t.Errorf("row %d: got %+v, want %+v", i, rows[i], wantRows[i])
		}
	}
}

func TestParseResultPage_EmptyDocument(t *testing.T) {
	// Missing sections degrade to empty fields; every column stays present.
	data := ParseResultPage("<html><body><p>rien</p></body></html>")
	for _, col := range Columns {
		if _, ok := data[col]; !ok {
			t.Errorf("column %s missing", col)
		}
	}
	if data["owner_type"] != "unknown" {
		t.Errorf("owner_type = %q, want unknown", data["owner_type"])
	}
	if data["matricule"] != "" || data["assessed_total_current"] != "" {
		t.Error("absent sections should leave fields empty")
	}
}

func TestParseResultPage_PersonOwners(t *testing.T) {
	page := `<section><h2 id="proprietaires">Propriétaires</h2>
	<ul class="list"><li class="list-item"><div class="list-item-content">Jane Doe</div></li></ul></section>`
	data := ParseResultPage(page)
	if data["owner_names"] != "Jane Doe" {
		t.Errorf("owner_names = %q", data["owner_names"])
	}
	if data["owner_type"] != "person" {
		t.Errorf("owner_type = %q, want person", data["owner_type"])
	}
}

func TestParseResultPage_HeadingKeywordFallback(t *testing.T) {
	// When the id is gone, the accent-folded heading text still matches.
	page := `<section><h2>Propriétaires</h2>
	<ul class="list"><li class="list-item"><div class="list-item-content">Acme Corp</div></li></ul></section>`
	data := ParseResultPage(page)
	if data["owner_names"] != "Acme Corp" {
		t.Errorf("keyword fallback failed: owner_names = %q", data["owner_names"])
	}
}

func TestParseResultPage_SkipsDistributionHeaderVariants(t *testing.T) {
	page := `<section><h2 id="valeur">Valeur</h2><div><table>
	<tr><td>Catégorie</td><td>%</td></tr>
	<tr><td>Industriel</td><td>100 %</td></tr>
	</table></div></section>`
	data := ParseResultPage(page)
	var rows []DistributionRow
	if err := json.Unmarshal([]byte(data["tax_distribution_json"]), &rows); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(rows) != 1 || rows[0].Subcategory != "Industriel" || rows[0].Percentage != "100" {
		t.Fatalf("rows: %+v", rows)
	}
}
