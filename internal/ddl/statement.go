package ddl

// Statement is one recognized DDL statement: *CreateTable, *AlterTableAdd or
// *ExtendedProperty.
type Statement interface {
	statementNode()
	Position() Position
}

// ObjectName is a possibly schema-qualified name. Schema is empty when unqualified.
type ObjectName struct {
	Schema string
	Name   string
}

func (n ObjectName) String() string {
	if n.Schema == "" {
		return n.Name
	}
	return n.Schema + "." + n.Name
}

// ConstraintKind identifies the constraints the builder cares about.
type ConstraintKind int

const (
	PrimaryKeyConstraint ConstraintKind = iota
	ForeignKeyConstraint
)

// Constraint is a primary key or foreign key declaration, either table level or
// attached to a column definition. For column-level constraints Columns holds the
// owning column.
type Constraint struct {
	Kind              ConstraintKind
	Name              string // empty when not named with CONSTRAINT
	Columns           []string
	References        ObjectName
	ReferencedColumns []string
}

// ColumnDef is a column definition inside CREATE TABLE or ALTER TABLE ... ADD.
type ColumnDef struct {
	Name string
	// Type is the raw type name without its parameter list; empty for computed
	// columns and columns declared without a type.
	Type string
	// Nullable is nil unless NULL or NOT NULL was written on the column.
	Nullable    *bool
	Computed    bool
	Constraints []Constraint
}

// CreateTable is CREATE TABLE name ( elements ).
type CreateTable struct {
	Table       ObjectName
	Columns     []ColumnDef
	Constraints []Constraint
	Pos         Position
}

// AlterTableAdd is ALTER TABLE name ADD elements.
type AlterTableAdd struct {
	Table       ObjectName
	Columns     []ColumnDef
	Constraints []Constraint
	Pos         Position
}

// ExtendedProperty is a comment annotation made with sp_addextendedproperty.
// It is only produced for the comment property with a table level-1 target.
type ExtendedProperty struct {
	Value      string
	Level1Name string
	Level2Type string
	Level2Name string
	Pos        Position
}

func (*CreateTable) statementNode()      {}
func (*AlterTableAdd) statementNode()    {}
func (*ExtendedProperty) statementNode() {}

func (s *CreateTable) Position() Position      { return s.Pos }
func (s *AlterTableAdd) Position() Position    { return s.Pos }
func (s *ExtendedProperty) Position() Position { return s.Pos }
