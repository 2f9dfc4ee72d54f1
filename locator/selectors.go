package locator

import "time"

// Group maps a logical field name to its ordered fallback selectors. The
// first selector is the preferred one; the rest absorb markup drift.
type Group map[string][]string

// Selectors is the full selector inventory for the assessment site, keyed
// by form group. Read-only during a run.
var Selectors = map[string]Group{
	"login": {
		"login_button": {
			"button#shell-login-button",
			"button[aria-label*='login' i]",
			"button[aria-label*='connexion' i]",
		},
		"email_input": {
			"input#signInName",
			"input[type='email']",
			"input[name*='email' i]",
			"input[name*='signIn' i]",
			"input[aria-label*='email' i]",
		},
		"password_input": {
			"input#password",
			"input[type='password']",
			"input[name='password']",
			"input[aria-label*='password' i]",
			"input[aria-label*='mot de passe' i]",
		},
		"submit_button": {
			"button#next",
			"button[type='submit']",
			"button[aria-label*='submit' i]",
			"button[aria-label*='soumettre' i]",
		},
	},
	"search_form": {
		"civic_number": {
			"input[data-test='input'][name='civicNumber']",
			"input[name='civicNumber']",
			"input[placeholder*='civic' i]",
			"input[placeholder*='numéro civique' i]",
			"input[aria-label*='civic' i]",
		},
		"street_name_combobox": {
			"div[data-test='combobox'] input[data-test='input'][name='streetNameCombobox']",
			"input[name='streetNameCombobox']",
			"input[placeholder*='street' i]",
			"input[placeholder*='rue' i]",
			"input[aria-label*='street' i]",
		},
		"submit_button": {
			"button[data-test='submit'][form]",
			"button[type='submit'][form]",
			"button[data-test='submit']",
			"button[type='submit']",
		},
		// Hidden fields populated from the chosen autocomplete suggestion.
		"street_generic":       {"input[name='streetGeneric']"},
		"street_name":          {"input[name='streetName']"},
		"no_city":              {"input[name='noCity']"},
		"borough_number":       {"input[name='boroughNumber']"},
		"street_name_official": {"input[name='streetNameOfficial']"},
	},
	"address_selection": {
		"list_container": {
			"ul[data-test='list-group']",
			"ul[role='list']",
			"ul.list-group",
		},
		"list_items": {
			"ul[data-test='list-group'] li[data-test='item']",
			"ul[role='list'] li[role='listitem']",
			"ul.list-group li.list-item",
		},
		"address_description": {
			"dl dd",
			"dd",
			".description",
		},
		"select_button": {
			"form button[data-test='button']",
			"button[type='submit']",
			"button[aria-label*='select' i]",
			"button[aria-label*='sélectionner' i]",
		},
	},
	"autocomplete": {
		"suggestions_list": {
			"div#react-autowhatever-1",
			"div[role='listbox']",
			"ul[role='listbox']",
			".suggestions-list",
		},
		"suggestion_items": {
			"div#react-autowhatever-1 ul li",
			"div[role='listbox'] [role='option']",
			"ul[role='listbox'] li",
			".suggestion-item",
		},
	},
}

// Field returns the fallback list for group.field, or nil if undeclared.
func Field(group, field string) []string {
	g, ok := Selectors[group]
	if !ok {
		return nil
	}
	return g[field]
}

// URL fragments that identify where the search flow currently is.
const (
	SearchPagePattern  = `/role-evaluation-fonciere/adresse/liste`
	ResultsPagePattern = `/role-evaluation-fonciere/adresse/liste/resultat`
)

// LoginURLMarkers flag an authentication wall when any appears in the URL.
var LoginURLMarkers = []string{"login", "compte", "signin", "connexion"}

// Timeouts for the site's mix of quick widgets and slow renders.
const (
	TimeoutDefault  = 10 * time.Second
	TimeoutMedium   = 15 * time.Second
	TimeoutLong     = 30 * time.Second
	TimeoutNetwork  = 60 * time.Second
	TimeoutVisible  = 10 * time.Second
	TimeoutAttached = 5 * time.Second
	TimeoutPageLoad = 30 * time.Second
)
