package formatter

import (
	"strings"
	"unicode"
)

// SanitizeIdentifier makes s usable as a diagram identifier. Every rune that is not a
// letter or digit becomes '_', and a leading digit gets a '_' prefix. Blank input
// yields "_".
func SanitizeIdentifier(s string) string {
	if strings.TrimSpace(s) == "" {
		return "_"
	}

	var b strings.Builder
	b.Grow(len(s) + 1)
	for i, r := range s {
		if i == 0 && unicode.IsDigit(r) {
			b.WriteByte('_')
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}

// EntityID returns the diagram identifier of a table. Tables in the default schema
// are identified by name alone, others by schema_name.
func EntityID(schemaName, table, defaultSchema string) string {
	if schemaName == defaultSchema {
		return SanitizeIdentifier(table)
	}
	return SanitizeIdentifier(schemaName + "_" + table)
}
