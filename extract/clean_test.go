package extract

import "testing"

func TestCleanMoney(t *testing.T) {
	cases := map[string]string{
		"23 456 $":       "23456",
		"12 345 $":  "12345",
		"1 234 567 $":    "1234567",
		"-8 000 $":       "-8000",
		"1234.56":        "1234.56",
		"":               "",
		"aucune valeur":  "",
	}
	for in, want := range cases {
		if got := CleanMoney(in); got != want {
			t.Errorf("CleanMoney(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanMoney_Idempotent(t *testing.T) {
	for _, in := range []string{"12 345 $", "35801", "-1.5"} {
		once := CleanMoney(in)
		if twice := CleanMoney(once); twice != once {
			t.Errorf("CleanMoney not idempotent on %q: %q vs %q", in, once, twice)
		}
	}
}

func TestCleanPercentage(t *testing.T) {
	cases := map[string]string{
		"80 %":   "80",
		"12,5 %": "12.5",
		"100":    "100",
		"":       "",
	}
	for in, want := range cases {
		if got := CleanPercentage(in); got != want {
			t.Errorf("CleanPercentage(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanText(t *testing.T) {
	if got := CleanText("  Rue  de   la\tMontagne \n"); got != "Rue de la Montagne" {
		t.Errorf("CleanText: got %q", got)
	}
	if got := CleanText(""); got != "" {
		t.Errorf("CleanText empty: got %q", got)
	}
}

func TestClassifyOwners(t *testing.T) {
	cases := map[string]string{
		"John Doe; Acme Inc":    "corporation",
		"GESTION LTÉE":          "corporation",
		"9999-1234 Québec inc":  "corporation",
		"Mega Corp":             "corporation",
		"John Doe; Jane Doe":    "person",
		"":                      "unknown",
	}
	for in, want := range cases {
		if got := classifyOwners(in); got != want {
			t.Errorf("classifyOwners(%q) = %q, want %q", in, got, want)
		}
	}
}
