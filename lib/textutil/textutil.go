package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// CleanText trims a scraped text node down to something comparable:
// no leading/trailing space and inner runs of whitespace collapsed to a
// single space.
func CleanText(s string) string {
	s = strings.Trim(s, " \t\n")
	return whitespaceRegex.ReplaceAllString(s, " ")
}

var titleCaser = cases.Title(language.English)

// NormalizeTabName turns a tab label like "Cost of Living" into the
// canonical registry key "CostOfLiving".
func NormalizeTabName(label string) string {
	label = CleanText(label)
	label = titleCaser.String(label)
	return strings.ReplaceAll(label, " ", "")
}

// StripLeadingIcon removes the emoji/icon token nomadlist prefixes
// attribute keys with ("💵 Cost" -> "Cost"). The key proper starts at the
// first ascii letter or digit.
func StripLeadingIcon(key string) string {
	key = CleanText(key)
	for i, c := range key {
		if c <= unicode.MaxASCII && (unicode.IsLetter(c) || unicode.IsDigit(c)) {
			return strings.TrimSpace(key[i:])
		}
	}
	return key
}

// SplitDigitsText splits a climate-index cell like "77%bad" into its
// numeric prefix and textual remainder. The boundary is a character
// class, not a delimiter: digits, '.' and '%' belong to the value, the
// first letter starts the description.
func SplitDigitsText(cell string) (value string, text string) {
	cell = CleanText(cell)
	for i, c := range cell {
		if unicode.IsLetter(c) {
			return strings.TrimSpace(cell[:i]), strings.TrimSpace(cell[i:])
		}
	}
	return cell, ""
}
