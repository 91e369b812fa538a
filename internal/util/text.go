package util

import (
	"regexp"
	"strings"
)

var (
	reSpaces       = regexp.MustCompile(`\s+`)
	reSlugUnsafe   = regexp.MustCompile(`[^a-z0-9]+`)
	sheetForbidden = strings.NewReplacer(":", " ", "\\", " ", "/", " ", "?", " ", "*", " ", "[", " ", "]", " ")
)

const maxSheetNameLen = 31

func NormalizeSpaces(input string) string {
	return strings.TrimSpace(reSpaces.ReplaceAllString(strings.ReplaceAll(input, "\u00A0", " "), " "))
}

// Slug lowercases input and joins its alphanumeric runs with "_".
func Slug(input string) string {
	s := reSlugUnsafe.ReplaceAllString(strings.ToLower(input), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return "invoices"
	}
	return s
}

// SheetName makes input usable as an xlsx worksheet name.
func SheetName(input string) string {
	name := NormalizeSpaces(sheetForbidden.Replace(input))
	name = strings.Trim(name, "'")
	if name == "" {
		return "Invoices"
	}
	r := []rune(name)
	if len(r) > maxSheetNameLen {
		name = strings.TrimSpace(string(r[:maxSheetNameLen]))
	}
	return name
}

func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
