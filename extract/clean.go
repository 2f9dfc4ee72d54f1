package extract

import (
	"regexp"
	"strings"
)

var (
	wsRun      = regexp.MustCompile(`[\s\x{00a0}]+`)
	nonMoney   = regexp.MustCompile(`[^0-9.\-]`)
	nonPercent = regexp.MustCompile(`[^0-9.,]`)
)

// CleanText collapses whitespace runs (including non-breaking spaces) to
// single spaces and trims.
func CleanText(s string) string {
	return strings.TrimSpace(wsRun.ReplaceAllString(s, " "))
}

// CleanMoney strips everything except digits, `.` and `-`. Currency symbols,
// thousands separators and non-breaking spaces all disappear:
// "23 456 $" → "23456".
func CleanMoney(s string) string {
	s = strings.ReplaceAll(s, " ", " ")
	return nonMoney.ReplaceAllString(s, "")
}

// CleanPercentage strips everything except digits, `.` and `,`, then maps
// the decimal comma to a dot: "12,5 %" → "12.5".
func CleanPercentage(s string) string {
	return strings.ReplaceAll(nonPercent.ReplaceAllString(s, ""), ",", ".")
}
