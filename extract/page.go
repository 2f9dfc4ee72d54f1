package extract

import (
	"encoding/json"
	"strings"
)

// ParseResultPage extracts the canonical record from a rendered result page.
// It never fails: sections or labels missing from the markup leave their
// fields empty.
func ParseResultPage(src string) Record {
	doc := ParseHTML(src)
	data := NewRecord()
	data["owner_type"] = "unknown"

	if n := doc.CSSFirst("header.page-header .content-header-extras .list-inline-item div div:nth-child(1)"); n != nil {
		data["municipality"] = n.Text()
	}
	if n := doc.CSSFirst("header.page-header .content-header-extras .list-inline-item div div:nth-child(2)"); n != nil {
		data["fiscal_years"] = n.Text()
	}

	if owners := sectionByHeading(doc, "proprietaires"); owners != nil {
		var names []string
		for _, item := range owners.CSS("ul.list > li.list-item") {
			if v := item.CSSFirst(".list-item-content"); v != nil {
				if text := v.Text(); text != "" {
					names = append(names, text)
				}
			}
		}
		if len(names) > 0 {
			data["owner_names"] = strings.Join(names, "; ")
			data["owner_type"] = classifyOwners(data["owner_names"])
		}
	}

	if ident := sectionByHeading(doc, "identification"); ident != nil {
		mapping := parseDL(ident)
		if v, ok := mapping["Numéro de matricule"]; ok {
			data["matricule"] = v
		}
		if v, ok := mapping["Numéro de compte foncier"]; ok {
			data["tax_account_number"] = v
		}
	}

	if building := sectionByHeading(doc, "caracteristiques"); building != nil {
		for _, heading := range building.CSS("h3.h4") {
			if strings.Contains(heading.Text(), "Caractéristiques du bâtiment principal") {
				if v, ok := parseDL(building)["Nombre de logements"]; ok {
					data["nb_logements"] = v
				}
			}
		}
	}

	valeur := sectionByHeading(doc, "valeur")
	if valeur != nil {
		for k, v := range parseRollValues(valeur) {
			data[k] = v
		}
	}

	if rows := parseDistributionTable(findSectionWithTable(valeur)); len(rows) > 0 {
		if encoded, err := json.Marshal(rows); err == nil {
			data["tax_distribution_json"] = string(encoded)
		}
	}

	return data
}

// sectionByHeading finds the section owning an h2 with the given identifier.
// The id lookup comes first; when the markup drops ids, an accent-folded
// keyword scan over h2 text catches the renamed heading.
func sectionByHeading(doc *Doc, id string) *Node {
	if h := doc.CSSFirst("h2#" + id); h != nil {
		return h.Parent()
	}
	for _, h := range doc.CSS("h2") {
		if strings.Contains(foldHeading(h.Text()), id) {
			return h.Parent()
		}
	}
	return nil
}

var accentFolder = strings.NewReplacer(
	"à", "a", "â", "a", "ä", "a",
	"é", "e", "è", "e", "ê", "e", "ë", "e",
	"î", "i", "ï", "i",
	"ô", "o", "ö", "o",
	"ù", "u", "û", "u", "ü", "u",
	"ç", "c",
)

func foldHeading(s string) string {
	return accentFolder.Replace(strings.ToLower(s))
}

// parseDL maps dt label text to the text of the next dd sibling, over every
// definition list under the node.
func parseDL(section *Node) map[string]string {
	out := map[string]string{}
	for _, dt := range section.CSS("dt") {
		dd := dt.NextElementNamed("dd")
		if dd == nil {
			continue
		}
		if label := dt.Text(); label != "" {
			out[label] = dd.Text()
		}
	}
	return out
}

// parseRollValues pulls current/previous assessment values from sub-sections
// whose h3 heading names the roll period.
func parseRollValues(section *Node) map[string]string {
	data := map[string]string{}
	for _, sub := range section.CSS("section, div") {
		heading := sub.CSSFirst("h3")
		if heading == nil {
			continue
		}
		headingText := strings.ToLower(heading.Text())
		mapping := parseDL(sub)
		if strings.Contains(headingText, "rôle courant") {
			if v, ok := mapping["Terrain"]; ok {
				data["assessed_terrain_current"] = CleanMoney(v)
			}
			if v, ok := mapping["Bâtiment"]; ok {
				data["assessed_batiment_current"] = CleanMoney(v)
			}
			if v, ok := mapping["Total"]; ok {
				data["assessed_total_current"] = CleanMoney(v)
			}
		}
		if strings.Contains(headingText, "rôle antérieur") {
			if v, ok := mapping["Total"]; ok {
				data["assessed_total_previous"] = CleanMoney(v)
			}
		}
	}
	return data
}

// findSectionWithTable returns the first node within (or beneath) the
// section that contains a table.
func findSectionWithTable(section *Node) *Node {
	if section == nil {
		return nil
	}
	if section.CSSFirst("table") != nil {
		return section
	}
	for _, child := range section.CSS("section, div") {
		if child.CSSFirst("table") != nil {
			return child
		}
	}
	return nil
}

// parseDistributionTable turns the first table under the node into
// distribution rows, skipping the header row.
func parseDistributionTable(section *Node) []DistributionRow {
	if section == nil {
		return nil
	}
	table := section.CSSFirst("table")
	if table == nil {
		return nil
	}
	var rows []DistributionRow
	for _, tr := range table.CSS("tr") {
		var cells []string
		for _, cell := range tr.CSS("th, td") {
			cells = append(cells, cell.Text())
		}
		if len(cells) < 2 || distributionHeaders[strings.ToLower(cells[0])] {
			continue
		}
		rows = append(rows, DistributionRow{
			Subcategory: cells[0],
			Percentage:  CleanPercentage(cells[1]),
		})
	}
	return rows
}
