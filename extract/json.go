package extract

import (
	"encoding/json"
	"errors"
	"sort"
	"strings"
)

// ErrNoUsableContent is returned when a JSON payload contains neither
// recognizable fields nor an embedded HTML fragment that parses to data.
var ErrNoUsableContent = errors.New("extract: no usable content in JSON payload")

// ParseResultJSON extracts the canonical record from a decoded JSON payload.
// It first walks the tree heuristically (known key names, then labeled
// value pairs matching the French labels the HTML path keys on). When that
// walk populates none of the meaningful columns, it scans every string leaf
// for embedded HTML fragments and re-runs the HTML path on each candidate;
// the site sometimes serves a fully rendered fragment as a JSON string. If
// neither tier yields meaningful data, it fails.
func ParseResultJSON(payload any) (Record, error) {
	direct := walkPayload(payload)
	if HasMeaningfulData(direct) {
		return direct, nil
	}

	for _, candidate := range htmlCandidates(payload) {
		result := ParseResultPage(candidate)
		if HasMeaningfulData(result) {
			return result, nil
		}
	}
	return nil, ErrNoUsableContent
}

// ParseResultJSONBytes decodes raw JSON and extracts the record.
func ParseResultJSONBytes(data []byte) (Record, error) {
	var payload any
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, err
	}
	return ParseResultJSON(payload)
}

func walkPayload(payload any) Record {
	data := NewRecord()
	data["owner_type"] = "unknown"

	municipality := findStringByKeys(payload, "municipality", "municipalite", "boroughName")
	if municipality == "" {
		municipality = findValueByLabel(payload, "Municipalité", "Arrondissement")
	}
	data["municipality"] = municipality

	fiscalYears := findStringByKeys(payload, "fiscalYears", "fiscal_years", "fiscalPeriod", "periodeRole")
	if fiscalYears == "" {
		fiscalYears = findValueByLabel(payload, "Période du rôle", "Période du role", "Années financières")
	}
	data["fiscal_years"] = fiscalYears

	if owners := ownerNames(payload); len(owners) > 0 {
		data["owner_names"] = strings.Join(owners, "; ")
		data["owner_type"] = classifyOwners(data["owner_names"])
	}

	matricule := findStringByKeys(payload, "matricule", "matriculeNumber", "matriculeNumberFormatted")
	if matricule == "" {
		matricule = findValueByLabel(payload, "Numéro de matricule")
	}
	data["matricule"] = matricule

	taxAccount := findStringByKeys(payload, "taxAccountNumber", "numeroCompteFoncier", "taxAccount")
	if taxAccount == "" {
		taxAccount = findValueByLabel(payload, "Numéro de compte foncier")
	}
	data["tax_account_number"] = taxAccount

	nbLogements := findStringByKeys(payload, "nbLogements", "nombreLogements", "numberOfDwellings")
	if nbLogements == "" {
		nbLogements = findValueByLabel(payload, "Nombre de logements")
	}
	data["nb_logements"] = nbLogements

	if node := findNodeByTitle(payload, "rôle courant", "role courant"); node != nil {
		mapping := labeledValues(node)
		if v, ok := mapping["Terrain"]; ok {
			data["assessed_terrain_current"] = CleanMoney(v)
		}
		if v, ok := mapping["Bâtiment"]; ok {
			data["assessed_batiment_current"] = CleanMoney(v)
		} else if v, ok := mapping["Batiment"]; ok {
			data["assessed_batiment_current"] = CleanMoney(v)
		}
		if v, ok := mapping["Total"]; ok {
			data["assessed_total_current"] = CleanMoney(v)
		}
	}

	if node := findNodeByTitle(payload, "rôle antérieur", "role anterieur", "rôle anterieur", "role antérieur"); node != nil {
		if v, ok := labeledValues(node)["Total"]; ok {
			data["assessed_total_previous"] = CleanMoney(v)
		}
	}

	if node := findNodeByTitle(payload, "répartition", "repartition", "distribution"); node != nil {
		if rows := distributionRows(node); len(rows) > 0 {
			if encoded, err := json.Marshal(rows); err == nil {
				data["tax_distribution_json"] = string(encoded)
			}
		}
	}

	return data
}

// walkMaps visits every JSON object in the tree, parents before children.
// Map keys are visited in sorted order so results are deterministic; the
// walk stops early when visit returns false.
func walkMaps(node any, visit func(map[string]any) bool) bool {
	switch v := node.(type) {
	case map[string]any:
		if !visit(v) {
			return false
		}
		for _, key := range sortedKeys(v) {
			if !walkMaps(v[key], visit) {
				return false
			}
		}
	case []any:
		for _, item := range v {
			if !walkMaps(item, visit) {
				return false
			}
		}
	}
	return true
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func findStringByKeys(payload any, keys ...string) string {
	lowered := make([]string, len(keys))
	for i, k := range keys {
		lowered[i] = strings.ToLower(k)
	}
	found := ""
	walkMaps(payload, func(node map[string]any) bool {
		for _, key := range sortedKeys(node) {
			value, ok := node[key].(string)
			if !ok {
				continue
			}
			lk := strings.ToLower(key)
			for _, want := range lowered {
				if lk == want {
					if cleaned := CleanText(value); cleaned != "" {
						found = cleaned
						return false
					}
				}
			}
		}
		return true
	})
	return found
}

func findListByKeys(payload any, keys ...string) []any {
	lowered := make([]string, len(keys))
	for i, k := range keys {
		lowered[i] = strings.ToLower(k)
	}
	var found []any
	walkMaps(payload, func(node map[string]any) bool {
		for _, key := range sortedKeys(node) {
			list, ok := node[key].([]any)
			if !ok || len(list) == 0 {
				continue
			}
			lk := strings.ToLower(key)
			for _, want := range lowered {
				if lk == want {
					found = list
					return false
				}
			}
		}
		return true
	})
	return found
}

var labelKeys = []string{"label", "title", "name", "heading"}
var valueKeys = []string{"value", "text", "content", "valueText"}

// findValueByLabel locates an object whose label field contains one of the
// given French labels and returns its value field (or joined values list).
func findValueByLabel(payload any, labels ...string) string {
	lowered := make([]string, len(labels))
	for i, l := range labels {
		lowered[i] = strings.ToLower(l)
	}
	found := ""
	walkMaps(payload, func(node map[string]any) bool {
		matched := false
		for _, key := range labelKeys {
			value, ok := node[key].(string)
			if !ok {
				continue
			}
			lv := strings.ToLower(value)
			for _, want := range lowered {
				if strings.Contains(lv, want) {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			return true
		}
		for _, key := range valueKeys {
			if value, ok := node[key].(string); ok {
				if cleaned := CleanText(value); cleaned != "" {
					found = cleaned
					return false
				}
			}
		}
		if values, ok := node["values"].([]any); ok {
			if joined := joinStrings(values); joined != "" {
				found = joined
				return false
			}
		}
		return true
	})
	return found
}

var titleKeys = []string{"title", "label", "name", "heading", "id", "slug", "anchor"}

// findNodeByTitle locates the first object whose title-like field contains
// one of the keywords.
func findNodeByTitle(payload any, keywords ...string) map[string]any {
	lowered := make([]string, len(keywords))
	for i, k := range keywords {
		lowered[i] = strings.ToLower(k)
	}
	var found map[string]any
	walkMaps(payload, func(node map[string]any) bool {
		for _, key := range titleKeys {
			value, ok := node[key].(string)
			if !ok {
				continue
			}
			lv := strings.ToLower(value)
			for _, want := range lowered {
				if strings.Contains(lv, want) {
					found = node
					return false
				}
			}
		}
		return true
	})
	return found
}

// labeledValues maps label text to value text across every object under the
// node, mirroring what parseDL does for definition lists.
func labeledValues(node map[string]any) map[string]string {
	mapping := map[string]string{}
	walkMaps(node, func(sub map[string]any) bool {
		label := ""
		for _, key := range labelKeys {
			if v, ok := sub[key].(string); ok {
				if cleaned := CleanText(v); cleaned != "" {
					label = cleaned
					break
				}
			}
		}
		if label == "" {
			return true
		}
		for _, key := range valueKeys {
			if v, ok := sub[key].(string); ok {
				if cleaned := CleanText(v); cleaned != "" {
					mapping[label] = cleaned
					return true
				}
			}
		}
		if values, ok := sub["values"].([]any); ok {
			if joined := joinStrings(values); joined != "" {
				mapping[label] = joined
			}
		}
		return true
	})
	return mapping
}

func distributionRows(node map[string]any) []DistributionRow {
	var raw []any
	walkMaps(node, func(sub map[string]any) bool {
		for _, key := range []string{"rows", "items", "body"} {
			if list, ok := sub[key].([]any); ok && len(list) > 0 {
				raw = append(raw, list...)
			}
		}
		if table, ok := sub["table"].(map[string]any); ok {
			for _, key := range []string{"rows", "body", "data"} {
				if list, ok := table[key].([]any); ok && len(list) > 0 {
					raw = append(raw, list...)
				}
			}
		}
		return true
	})

	var rows []DistributionRow
	for _, row := range raw {
		values := rowValues(row)
		if len(values) < 2 || distributionHeaders[strings.ToLower(values[0])] {
			continue
		}
		rows = append(rows, DistributionRow{
			Subcategory: values[0],
			Percentage:  CleanPercentage(values[1]),
		})
	}
	return rows
}

// rowValues coerces one distribution row, whatever its shape, into a list
// of cell strings.
func rowValues(row any) []string {
	switch v := row.(type) {
	case map[string]any:
		if cells, ok := v["cells"].([]any); ok {
			return coerceAll(cells)
		}
		var values []string
		for _, key := range []string{"label", "name", "title"} {
			if s, ok := v[key].(string); ok {
				if label := CleanText(s); label != "" {
					values = append(values, label)
					break
				}
			}
		}
		for _, key := range valueKeys {
			if s, ok := v[key].(string); ok {
				if val := CleanText(s); val != "" {
					if len(values) > 0 {
						values = append(values, val)
					} else {
						values = []string{"", val}
					}
					break
				}
			}
		}
		if len(values) == 0 {
			if list, ok := v["values"].([]any); ok {
				values = coerceAll(list)
			}
		}
		return values
	case []any:
		return coerceAll(v)
	case string:
		var parts []string
		for _, part := range strings.Split(v, "|") {
			if cleaned := CleanText(part); cleaned != "" {
				parts = append(parts, cleaned)
			}
		}
		return parts
	}
	return nil
}

// joinStrings joins the string entries of a values list with "; ",
// dropping anything empty after cleaning.
func joinStrings(items []any) string {
	var parts []string
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		if cleaned := CleanText(s); cleaned != "" {
			parts = append(parts, cleaned)
		}
	}
	return strings.Join(parts, "; ")
}

func coerceAll(items []any) []string {
	var out []string
	for _, item := range items {
		if s := coerceString(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func coerceString(value any) string {
	switch v := value.(type) {
	case string:
		return CleanText(v)
	case map[string]any:
		for _, key := range []string{"value", "text", "content", "label", "name"} {
			if s, ok := v[key].(string); ok {
				if cleaned := CleanText(s); cleaned != "" {
					return cleaned
				}
			}
		}
	}
	return ""
}

// ownerNames collects owner-name candidates, first from owner list keys,
// then from an owners-titled object. Anything containing "numéro" is an ID
// label misread as a name and is dropped.
func ownerNames(payload any) []string {
	var owners []string
	if list := findListByKeys(payload, "owners", "proprietaires", "ownersList"); list != nil {
		for _, entry := range list {
			if candidate := coerceString(entry); candidate != "" && !strings.Contains(strings.ToLower(candidate), "numéro") {
				owners = append(owners, candidate)
			}
		}
	}
	if len(owners) > 0 {
		return owners
	}

	section := findNodeByTitle(payload, "propriétaire", "proprietaires", "owners")
	if section == nil {
		return nil
	}
	walkMaps(section, func(sub map[string]any) bool {
		for _, key := range []string{"value", "text", "content", "name"} {
			if s, ok := sub[key].(string); ok {
				if candidate := CleanText(s); candidate != "" && !strings.Contains(strings.ToLower(candidate), "numéro") {
					owners = append(owners, candidate)
				}
			}
		}
		return true
	})
	return owners
}

var htmlMarkers = []string{"<section", "<header", "<dl", "<div", "</"}

// htmlCandidates scans string leaves for embedded HTML fragments.
func htmlCandidates(payload any) []string {
	var out []string
	var walk func(any)
	walk = func(node any) {
		switch v := node.(type) {
		case string:
			snippet := strings.TrimSpace(v)
			if strings.Contains(snippet, "<") && strings.Contains(snippet, ">") {
				for _, marker := range htmlMarkers {
					if strings.Contains(snippet, marker) {
						out = append(out, snippet)
						return
					}
				}
			}
		case map[string]any:
			for _, key := range sortedKeys(v) {
				walk(v[key])
			}
		case []any:
			for _, item := range v {
				walk(item)
			}
		}
	}
	walk(payload)
	return out
}
