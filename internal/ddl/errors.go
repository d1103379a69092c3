package ddl

import (
	"fmt"
	"sort"
	"strings"
)

// Diagnostic is a single recognition failure.
type Diagnostic struct {
	Line    int
	Column  int
	Message string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("Line %d: %s", d.Line, d.Message)
}

// ParseError aggregates every diagnostic gathered while recognizing a script.
// No statements are returned alongside it.
type ParseError struct {
	Diagnostics []Diagnostic
}

func newParseError(diags []Diagnostic) *ParseError {
	sorted := make([]Diagnostic, len(diags))
	copy(sorted, diags)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Line != sorted[j].Line {
			return sorted[i].Line < sorted[j].Line
		}
		return sorted[i].Column < sorted[j].Column
	})
	return &ParseError{Diagnostics: sorted}
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("SQL parse errors:")
	for _, d := range e.Diagnostics {
		b.WriteString("\n")
		b.WriteString(d.String())
	}
	return b.String()
}
