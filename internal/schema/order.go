package schema

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// SortTables orders tables by schema, then name.
func SortTables(tables []Table) {
	sort.SliceStable(tables, func(i, j int) bool {
		return tableLess(tables[i], tables[j])
	})
}

// SortForeignKeys orders foreign keys by referenced table, then parent table, then name.
func SortForeignKeys(fks []ForeignKey) {
	sort.SliceStable(fks, func(i, j int) bool {
		return foreignKeyLess(fks[i], fks[j])
	})
}

func tableLess(a, b Table) bool {
	if a.Schema != b.Schema {
		return a.Schema < b.Schema
	}
	return a.Name < b.Name
}

func foreignKeyLess(a, b ForeignKey) bool {
	switch {
	case a.ReferencedSchema != b.ReferencedSchema:
		return a.ReferencedSchema < b.ReferencedSchema
	case a.ReferencedTable != b.ReferencedTable:
		return a.ReferencedTable < b.ReferencedTable
	case a.ParentSchema != b.ParentSchema:
		return a.ParentSchema < b.ParentSchema
	case a.ParentTable != b.ParentTable:
		return a.ParentTable < b.ParentTable
	default:
		return a.Name < b.Name
	}
}

// NormalizeType reduces a declared type to a single lowercase token without parameters:
// "NVARCHAR(50)" becomes "nvarchar" and "double precision" becomes "double".
func NormalizeType(raw string) string {
	t := strings.TrimSpace(raw)
	if i := strings.IndexFunc(t, func(r rune) bool {
		return r == '(' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	}); i >= 0 {
		t = t[:i]
	}
	t = strings.Trim(t, "[]\"`")
	if t == "" {
		return UnknownType
	}
	return strings.ToLower(t)
}

// Validate checks the ordering, uniqueness and primary key invariants of a database.
// Sources are expected to deliver a model that passes it.
func Validate(d *Database) error {
	var errs []error

	for i := range d.Tables {
		t := &d.Tables[i]
		if t.Name == "" {
			errs = append(errs, fmt.Errorf("table %d has no name", i))
		}
		if i > 0 && !tableLess(d.Tables[i-1], *t) {
			errs = append(errs, fmt.Errorf("table %s.%s is out of order", t.Schema, t.Name))
		}

		seen := make(map[string]bool, len(t.Columns))
		for _, col := range t.Columns {
			if seen[col.Name] {
				errs = append(errs, fmt.Errorf("table %s.%s: duplicate column %s", t.Schema, t.Name, col.Name))
			}
			seen[col.Name] = true
		}
		for _, pk := range t.PrimaryKey {
			if !seen[pk] {
				errs = append(errs, fmt.Errorf("table %s.%s: primary key column %s does not exist", t.Schema, t.Name, pk))
			}
		}
	}

	for i := 1; i < len(d.ForeignKeys); i++ {
		if foreignKeyLess(d.ForeignKeys[i], d.ForeignKeys[i-1]) {
			errs = append(errs, fmt.Errorf("foreign key %s is out of order", d.ForeignKeys[i].Name))
		}
	}

	return errors.Join(errs...)
}
