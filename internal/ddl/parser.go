// Package ddl recognizes the subset of SQL Server DDL that shapes a schema model.
//
// Only three statement shapes are decomposed:
//
//	CREATE TABLE name ( column_def | table_constraint, ... )
//	ALTER TABLE name [WITH CHECK | NOCHECK] ADD column_def | table_constraint, ...
//	EXEC sp_addextendedproperty @name = 'MS_Description', @level1type = 'TABLE', ...
//
// Every other statement the recognizer knows about (queries, other CREATE/ALTER
// objects, SET, USE, GO batch separators, ...) is skipped. Text that cannot be read as
// any known statement is a syntax error; errors are collected for the whole script and
// returned together.
package ddl

import (
	"fmt"
	"strings"

	"github.com/tordrt/erdschema/internal/schema"
)

// Parser is a recursive-descent recognizer over a pre-tokenized script.
type Parser struct {
	tokens      []Token
	pos         int
	diagnostics []Diagnostic
	statements  []Statement
}

// NewParser creates a parser for the given script.
func NewParser(script string) *Parser {
	tokens, diags := Tokenize(script)
	return &Parser{tokens: tokens, diagnostics: diags}
}

// Recognize parses script and returns its recognized statements in order.
// If any syntax error is found, it returns a *ParseError holding all of them and no
// statements.
func Recognize(script string) ([]Statement, error) {
	p := NewParser(script)
	return p.Parse()
}

// Parse runs the recognizer over the whole script.
func (p *Parser) Parse() ([]Statement, error) {
	for !p.check(EOF) {
		start := p.pos
		p.parseStatement()
		if p.pos == start {
			p.advance()
		}
	}
	if len(p.diagnostics) > 0 {
		return nil, newParseError(p.diagnostics)
	}
	return p.statements, nil
}

// ---------- Token Helpers ----------

func (p *Parser) cur() Token {
	return p.peekN(0)
}

func (p *Parser) peekN(n int) Token {
	i := p.pos + n
	if i >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[i]
}

func (p *Parser) prev() Token {
	if p.pos == 0 {
		return Token{}
	}
	return p.tokens[p.pos-1]
}

func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
}

func (p *Parser) check(k Kind) bool {
	return p.cur().Kind == k
}

func (p *Parser) match(k Kind) bool {
	if p.check(k) {
		p.advance()
		return true
	}
	return false
}

// expectKeyword consumes the keyword or records an error.
func (p *Parser) expectKeyword(kw string) bool {
	if p.cur().Is(kw) {
		p.advance()
		return true
	}
	p.errorf(p.cur(), "expected %s, found %s", kw, p.cur())
	return false
}

func (p *Parser) errorf(tok Token, format string, args ...any) {
	p.diagnostics = append(p.diagnostics, Diagnostic{
		Line:    tok.Pos.Line,
		Column:  tok.Pos.Column,
		Message: fmt.Sprintf(format, args...),
	})
}

// ---------- Boundaries and skipping ----------

// isBatchSeparator reports whether the token at offset n is GO alone on its line,
// optionally followed by a repeat count.
func (p *Parser) isBatchSeparator(n int) bool {
	tok := p.peekN(n)
	if !tok.Is("GO") || !tok.LineStart {
		return false
	}
	next := p.peekN(n + 1)
	if next.Kind == NUMBER && !next.LineStart {
		next = p.peekN(n + 2)
	}
	return next.Kind == EOF || next.LineStart
}

// atBoundary reports whether the current token ends the statement being read.
func (p *Parser) atBoundary() bool {
	tok := p.cur()
	switch {
	case tok.Kind == EOF, tok.Kind == SEMICOLON:
		return true
	case p.isBatchSeparator(0):
		return true
	case tok.IsAny("CREATE", "ALTER", "EXEC", "EXECUTE"):
		// GRANT CREATE TABLE, WITH EXECUTE AS, DENY ALTER, ...
		prev := p.prev()
		return !prev.IsAny("GRANT", "DENY", "REVOKE", "WITH") && prev.Kind != COMMA
	}
	return false
}

// skipStatement skips tokens up to the next statement boundary outside parentheses.
func (p *Parser) skipStatement() {
	depth := 0
	for !p.check(EOF) {
		if depth == 0 && p.atBoundary() {
			return
		}
		switch p.cur().Kind {
		case LPAREN:
			depth++
		case RPAREN:
			if depth > 0 {
				depth--
			}
		}
		p.advance()
	}
}

// skipElement skips the rest of a table element: up to a ',' or ')' outside
// parentheses, or a statement boundary.
func (p *Parser) skipElement() {
	depth := 0
	for !p.check(EOF) {
		if depth == 0 && (p.check(COMMA) || p.check(RPAREN) || p.atBoundary()) {
			return
		}
		switch p.cur().Kind {
		case LPAREN:
			depth++
		case RPAREN:
			depth--
		}
		p.advance()
	}
}

// skipGroup skips a parenthesized group, the current token being its '('.
func (p *Parser) skipGroup() {
	depth := 0
	for !p.check(EOF) {
		switch p.cur().Kind {
		case LPAREN:
			depth++
		case RPAREN:
			depth--
			if depth == 0 {
				p.advance()
				return
			}
		}
		p.advance()
	}
}

// ---------- Statements ----------

var ignoredStatements = map[string]bool{
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true, "MERGE": true,
	"DROP": true, "TRUNCATE": true, "USE": true, "SET": true, "DECLARE": true,
	"PRINT": true, "IF": true, "ELSE": true, "BEGIN": true, "END": true,
	"COMMIT": true, "ROLLBACK": true, "SAVE": true, "GRANT": true, "REVOKE": true,
	"DENY": true, "WITH": true, "RETURN": true, "WHILE": true, "BREAK": true,
	"CONTINUE": true, "RAISERROR": true, "THROW": true, "WAITFOR": true, "GOTO": true,
	"OPEN": true, "CLOSE": true, "FETCH": true, "DEALLOCATE": true, "BULK": true,
	"BACKUP": true, "RESTORE": true, "DBCC": true, "CHECKPOINT": true, "KILL": true,
	"RECONFIGURE": true, "SHUTDOWN": true, "DISABLE": true, "ENABLE": true,
	"REVERT": true, "SETUSER": true, "READTEXT": true, "WRITETEXT": true, "UPDATETEXT": true,
}

// Objects other than tables that CREATE or ALTER may name. Their definitions are skipped.
var otherObjects = map[string]bool{
	"INDEX": true, "UNIQUE": true, "CLUSTERED": true, "NONCLUSTERED": true,
	"COLUMNSTORE": true, "PRIMARY": true, "XML": true, "SPATIAL": true, "FULLTEXT": true,
	"VIEW": true, "PROCEDURE": true, "PROC": true, "FUNCTION": true, "TRIGGER": true,
	"SCHEMA": true, "TYPE": true, "SEQUENCE": true, "SYNONYM": true, "DATABASE": true,
	"LOGIN": true, "USER": true, "ROLE": true, "APPLICATION": true, "STATISTICS": true,
	"ASSEMBLY": true, "DEFAULT": true, "RULE": true, "PARTITION": true, "OR": true,
	"QUEUE": true, "SERVICE": true, "CONTRACT": true, "MESSAGE": true, "ROUTE": true,
	"ENDPOINT": true, "EVENT": true, "CERTIFICATE": true, "CREDENTIAL": true,
	"MASTER": true, "SYMMETRIC": true, "ASYMMETRIC": true, "AGGREGATE": true,
	"SERVER": true, "AVAILABILITY": true, "RESOURCE": true, "WORKLOAD": true,
	"SECURITY": true, "SEARCH": true, "EXTERNAL": true, "AUTHORIZATION": true,
	"COLUMN": true, "BROKER": true, "REMOTE": true,
}

func (p *Parser) parseStatement() {
	tok := p.cur()
	switch {
	case tok.Kind == SEMICOLON:
		p.advance()
	case p.isBatchSeparator(0):
		p.advance()
		if p.check(NUMBER) && !p.cur().LineStart {
			p.advance()
		}
	case tok.Is("CREATE"):
		p.parseCreate()
	case tok.Is("ALTER"):
		p.parseAlter()
	case tok.IsAny("EXEC", "EXECUTE"):
		p.advance()
		p.parseExec(tok)
	case tok.Kind == IDENT && !tok.Quoted && ignoredStatements[strings.ToUpper(tok.Literal)]:
		p.advance()
		p.skipStatement()
	case tok.Kind == IDENT && isSystemProcedure(tok.Literal):
		// A procedure call without EXEC, allowed as the first statement of a batch.
		p.parseExec(tok)
	default:
		p.errorf(tok, "unexpected %s at start of statement", tok)
		p.advance()
		p.skipStatement()
	}
}

func isSystemProcedure(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasPrefix(lower, "sp_") || strings.HasPrefix(lower, "sys") || strings.HasPrefix(lower, "xp_")
}

func (p *Parser) parseCreate() {
	start := p.cur()
	p.advance()

	tok := p.cur()
	switch {
	case tok.Is("TABLE"):
		p.advance()
		p.parseCreateTable(start)
	case tok.Kind == IDENT && !tok.Quoted && otherObjects[strings.ToUpper(tok.Literal)]:
		p.skipStatement()
	default:
		p.errorf(tok, "unknown object type %s after CREATE", tok)
		p.skipStatement()
	}
}

func (p *Parser) parseAlter() {
	start := p.cur()
	p.advance()

	tok := p.cur()
	switch {
	case tok.Is("TABLE"):
		p.advance()
		p.parseAlterTable(start)
	case tok.Kind == IDENT && !tok.Quoted && otherObjects[strings.ToUpper(tok.Literal)]:
		p.skipStatement()
	default:
		p.errorf(tok, "unknown object type %s after ALTER", tok)
		p.skipStatement()
	}
}

// parseObjectName reads a multi-part name and keeps its last two parts:
// [server.][database.][schema.]name. In db..name the schema is empty.
func (p *Parser) parseObjectName(what string) (ObjectName, bool) {
	if !p.check(IDENT) {
		p.errorf(p.cur(), "expected %s name, found %s", what, p.cur())
		return ObjectName{}, false
	}
	parts := []string{p.cur().Literal}
	p.advance()

	for p.check(DOT) {
		p.advance()
		switch {
		case p.check(IDENT):
			parts = append(parts, p.cur().Literal)
			p.advance()
		case p.check(DOT):
			parts = append(parts, "")
		default:
			p.errorf(p.cur(), "expected identifier after '.', found %s", p.cur())
			return ObjectName{}, false
		}
	}

	if len(parts) > 4 {
		p.errorf(p.cur(), "too many parts in %s name", what)
		return ObjectName{}, false
	}

	name := ObjectName{Name: parts[len(parts)-1]}
	if len(parts) > 1 {
		name.Schema = parts[len(parts)-2]
	}
	return name, true
}

func (p *Parser) parseCreateTable(start Token) {
	name, ok := p.parseObjectName("table")
	if !ok {
		p.skipStatement()
		return
	}

	// CREATE TABLE ... AS SELECT and AS FileTable carry no column list.
	if p.cur().Is("AS") {
		p.skipStatement()
		return
	}

	if !p.match(LPAREN) {
		p.errorf(p.cur(), "expected '(' after table name %s, found %s", name, p.cur())
		p.skipStatement()
		return
	}

	stmt := &CreateTable{Table: name, Pos: start.Pos}
	for !p.check(RPAREN) && !p.check(EOF) {
		p.parseElement(&stmt.Columns, &stmt.Constraints)
		if !p.match(COMMA) {
			break
		}
	}
	if !p.match(RPAREN) {
		p.errorf(p.cur(), "expected ',' or ')' in definition of table %s, found %s", name, p.cur())
		p.skipStatement()
		return
	}

	// Storage options: ON [PRIMARY], WITH (...), TEXTIMAGE_ON, ...
	p.skipStatement()
	p.statements = append(p.statements, stmt)
}

func (p *Parser) parseAlterTable(start Token) {
	name, ok := p.parseObjectName("table")
	if !ok {
		p.skipStatement()
		return
	}

	if p.cur().Is("WITH") && p.peekN(1).IsAny("CHECK", "NOCHECK") {
		p.advance()
		p.advance()
	}

	if !p.cur().Is("ADD") {
		// DROP, ALTER COLUMN, CHECK CONSTRAINT, SET (...), ...
		p.skipStatement()
		return
	}
	p.advance()

	stmt := &AlterTableAdd{Table: name, Pos: start.Pos}
	for {
		if p.cur().Is("COLUMN") && p.peekN(1).Kind == IDENT {
			p.advance()
		}
		p.parseElement(&stmt.Columns, &stmt.Constraints)
		if !p.match(COMMA) {
			break
		}
	}
	if !p.atBoundary() {
		p.errorf(p.cur(), "unexpected %s in ALTER TABLE %s ADD", p.cur(), name)
		p.skipStatement()
		return
	}

	p.statements = append(p.statements, stmt)
}

// ---------- Table elements ----------

func (p *Parser) parseElement(cols *[]ColumnDef, cons *[]Constraint) {
	tok := p.cur()
	switch {
	case p.atBoundary():
		p.errorf(tok, "unexpected %s in table definition", tok)
	case tok.IsAny("CONSTRAINT", "PRIMARY", "FOREIGN", "UNIQUE", "CHECK", "DEFAULT"):
		p.parseTableConstraint(cons)
	case tok.Is("PERIOD") && p.peekN(1).Is("FOR"):
		p.skipElement()
	case tok.Is("INDEX") && p.isInlineIndex():
		p.skipElement()
	case tok.Kind == IDENT:
		p.parseColumnDef(cols)
	default:
		p.errorf(tok, "expected column definition, found %s", tok)
		p.skipElement()
	}
}

// isInlineIndex tells INDEX name (...) apart from a column named index.
func (p *Parser) isInlineIndex() bool {
	if p.peekN(1).Kind != IDENT {
		return false
	}
	next := p.peekN(2)
	if next.IsAny("CLUSTERED", "NONCLUSTERED", "UNIQUE", "COLUMNSTORE") {
		return true
	}
	if next.Kind != LPAREN {
		return false
	}
	arg := p.peekN(3)
	return arg.Kind != NUMBER && !arg.Is("MAX")
}

func (p *Parser) parseTableConstraint(cons *[]Constraint) {
	var name string
	if p.cur().Is("CONSTRAINT") {
		p.advance()
		if !p.check(IDENT) {
			p.errorf(p.cur(), "expected constraint name, found %s", p.cur())
			p.skipElement()
			return
		}
		name = p.cur().Literal
		p.advance()
	}

	tok := p.cur()
	switch {
	case tok.Is("PRIMARY"):
		p.advance()
		if !p.expectKeyword("KEY") {
			p.skipElement()
			return
		}
		if p.cur().IsAny("CLUSTERED", "NONCLUSTERED") {
			p.advance()
		}
		columns, ok := p.parseColumnList()
		if !ok {
			p.skipElement()
			return
		}
		*cons = append(*cons, Constraint{Kind: PrimaryKeyConstraint, Name: name, Columns: columns})
		p.skipElement()

	case tok.Is("FOREIGN"):
		p.advance()
		if !p.expectKeyword("KEY") {
			p.skipElement()
			return
		}
		var columns []string
		if p.check(LPAREN) {
			var ok bool
			if columns, ok = p.parseColumnList(); !ok {
				p.skipElement()
				return
			}
		}
		fk, ok := p.parseReferences(name, columns)
		if !ok {
			p.skipElement()
			return
		}
		*cons = append(*cons, fk)
		// ON DELETE CASCADE, NOT FOR REPLICATION, ...
		p.skipElement()

	case tok.IsAny("UNIQUE", "CHECK", "DEFAULT", "INDEX", "CONNECTION"):
		p.skipElement()

	default:
		p.errorf(tok, "expected constraint type, found %s", tok)
		p.skipElement()
	}
}

// parseReferences reads REFERENCES table [(columns)].
func (p *Parser) parseReferences(name string, columns []string) (Constraint, bool) {
	if !p.expectKeyword("REFERENCES") {
		return Constraint{}, false
	}
	ref, ok := p.parseObjectName("referenced table")
	if !ok {
		return Constraint{}, false
	}
	fk := Constraint{Kind: ForeignKeyConstraint, Name: name, Columns: columns, References: ref}
	if p.check(LPAREN) {
		if fk.ReferencedColumns, ok = p.parseColumnList(); !ok {
			return Constraint{}, false
		}
	}
	return fk, true
}

// parseColumnList reads ( col [ASC|DESC], ... ).
func (p *Parser) parseColumnList() ([]string, bool) {
	if !p.match(LPAREN) {
		p.errorf(p.cur(), "expected '(' before column list, found %s", p.cur())
		return nil, false
	}

	var columns []string
	for {
		if !p.check(IDENT) {
			p.errorf(p.cur(), "expected column name, found %s", p.cur())
			p.skipToCloseParen()
			return nil, false
		}
		columns = append(columns, p.cur().Literal)
		p.advance()
		if p.cur().IsAny("ASC", "DESC") {
			p.advance()
		}
		if !p.match(COMMA) {
			break
		}
	}

	if !p.match(RPAREN) {
		p.errorf(p.cur(), "expected ',' or ')' in column list, found %s", p.cur())
		p.skipToCloseParen()
		return nil, false
	}
	return columns, true
}

// skipToCloseParen recovers inside a group whose '(' was already consumed.
func (p *Parser) skipToCloseParen() {
	depth := 1
	for !p.check(EOF) && !p.atBoundary() {
		switch p.cur().Kind {
		case LPAREN:
			depth++
		case RPAREN:
			depth--
			if depth == 0 {
				p.advance()
				return
			}
		}
		p.advance()
	}
}

// columnOptionStarts are words that may follow a column name when no type is written.
var columnOptionStarts = []string{
	"NOT", "NULL", "CONSTRAINT", "PRIMARY", "REFERENCES", "FOREIGN", "DEFAULT",
	"IDENTITY", "UNIQUE", "CHECK", "COLLATE", "ROWGUIDCOL", "SPARSE", "FILESTREAM",
	"MASKED", "ENCRYPTED", "GENERATED", "HIDDEN", "INDEX",
}

func (p *Parser) parseColumnDef(cols *[]ColumnDef) {
	col := ColumnDef{Name: p.cur().Literal}
	p.advance()

	switch {
	case p.cur().Is("AS"):
		// Computed column: the expression is skipped with the options below.
		col.Computed = true
		p.advance()
	case p.check(IDENT) && !p.cur().IsAny(columnOptionStarts...):
		col.Type = p.parseTypeName()
	}

	// Name given by a CONSTRAINT clause, applied to the next key constraint.
	var constraintName string

	for !p.check(COMMA) && !p.check(RPAREN) && !p.atBoundary() {
		tok := p.cur()
		switch {
		case tok.Is("NOT"):
			p.advance()
			if p.cur().Is("NULL") {
				notNull := false
				col.Nullable = &notNull
				p.advance()
			}
		case tok.Is("NULL"):
			null := true
			col.Nullable = &null
			p.advance()
		case tok.Is("CONSTRAINT"):
			p.advance()
			if !p.check(IDENT) {
				p.errorf(p.cur(), "expected constraint name, found %s", p.cur())
				p.skipElement()
				break
			}
			constraintName = p.cur().Literal
			p.advance()
		case tok.Is("PRIMARY"):
			p.advance()
			if !p.expectKeyword("KEY") {
				p.skipElement()
				break
			}
			col.Constraints = append(col.Constraints, Constraint{
				Kind:    PrimaryKeyConstraint,
				Name:    constraintName,
				Columns: []string{col.Name},
			})
			constraintName = ""
		case tok.Is("FOREIGN") && p.peekN(1).Is("KEY"):
			p.advance()
			p.advance()
			if !p.cur().Is("REFERENCES") {
				p.errorf(p.cur(), "expected REFERENCES, found %s", p.cur())
				p.skipElement()
			}
		case tok.Is("REFERENCES"):
			fk, ok := p.parseReferences(constraintName, []string{col.Name})
			if !ok {
				p.skipElement()
				break
			}
			col.Constraints = append(col.Constraints, fk)
			constraintName = ""
		case tok.Is("DEFAULT"):
			p.advance()
			p.skipTerm()
			constraintName = ""
		case tok.IsAny("UNIQUE", "CHECK"):
			p.advance()
			constraintName = ""
		case tok.Kind == LPAREN:
			p.skipGroup()
		default:
			p.advance()
		}
	}

	*cols = append(*cols, col)
}

// parseTypeName reads a possibly qualified type name and drops its parameter list.
func (p *Parser) parseTypeName() string {
	name := p.cur().Literal
	p.advance()
	for p.check(DOT) && p.peekN(1).Kind == IDENT {
		p.advance()
		name = p.cur().Literal
		p.advance()
	}
	if p.check(LPAREN) {
		p.skipGroup()
	}
	return name
}

// skipTerm skips a DEFAULT value: a literal, a name, a function call or a group.
func (p *Parser) skipTerm() {
	if p.check(SYMBOL) && (p.cur().Literal == "-" || p.cur().Literal == "+") {
		p.advance()
	}
	switch {
	case p.check(LPAREN):
		p.skipGroup()
		return
	case p.check(COMMA), p.check(RPAREN), p.atBoundary():
		return
	}

	p.advance()
	for p.check(DOT) && p.peekN(1).Kind == IDENT {
		p.advance()
		p.advance()
	}
	if p.check(LPAREN) {
		p.skipGroup()
	}
}

// ---------- EXEC ----------

// parseExec handles a procedure call. start is the EXEC keyword, or the procedure
// name when EXEC was omitted.
func (p *Parser) parseExec(start Token) {
	// EXEC @rc = proc ...
	if p.check(VARIABLE) && p.peekN(1).Kind == EQ {
		p.advance()
		p.advance()
	}

	// Dynamic SQL and procedure variables cannot be inspected.
	if p.check(LPAREN) || p.check(STRING) || p.check(VARIABLE) {
		p.skipStatement()
		return
	}

	proc, ok := p.parseObjectName("procedure")
	if !ok {
		p.skipStatement()
		return
	}
	if !strings.EqualFold(proc.Name, "sp_addextendedproperty") {
		p.skipStatement()
		return
	}

	p.parseExtendedProperty(start)
}

func (p *Parser) parseExtendedProperty(start Token) {
	args := make(map[string]*string)

	for !p.atBoundary() {
		var argName string
		if p.check(VARIABLE) && p.peekN(1).Kind == EQ {
			argName = strings.ToLower(p.cur().Literal)
			p.advance()
			p.advance()
		}

		value, ok := p.parseArgumentValue()
		if !ok {
			p.skipStatement()
			return
		}
		if p.cur().IsAny("OUTPUT", "OUT") {
			p.advance()
		}

		// Positional arguments are not interpreted.
		if argName != "" {
			args[argName] = value
		}

		if !p.match(COMMA) {
			break
		}
	}

	if !p.atBoundary() {
		p.errorf(p.cur(), "unexpected %s in procedure arguments", p.cur())
		p.skipStatement()
		return
	}

	name, value := args["@name"], args["@value"]
	level1Type, level1Name := args["@level1type"], args["@level1name"]
	if name == nil || !strings.EqualFold(*name, schema.CommentProperty) ||
		value == nil ||
		level1Type == nil || !strings.EqualFold(*level1Type, "TABLE") ||
		level1Name == nil {
		return
	}

	stmt := &ExtendedProperty{
		Value:      *value,
		Level1Name: *level1Name,
		Pos:        start.Pos,
	}
	if v := args["@level2type"]; v != nil {
		stmt.Level2Type = *v
	}
	if v := args["@level2name"]; v != nil {
		stmt.Level2Name = *v
	}
	p.statements = append(p.statements, stmt)
}

// parseArgumentValue reads a procedure argument. NULL, DEFAULT and variables have no
// known value and yield nil. Bare identifiers are taken as strings.
func (p *Parser) parseArgumentValue() (*string, bool) {
	tok := p.cur()
	switch tok.Kind {
	case STRING, NUMBER:
		p.advance()
		v := tok.Literal
		return &v, true
	case SYMBOL:
		if (tok.Literal == "-" || tok.Literal == "+") && p.peekN(1).Kind == NUMBER {
			p.advance()
			v := tok.Literal + p.cur().Literal
			p.advance()
			return &v, true
		}
	case VARIABLE:
		p.advance()
		return nil, true
	case IDENT:
		p.advance()
		if tok.IsAny("NULL", "DEFAULT") {
			return nil, true
		}
		v := tok.Literal
		return &v, true
	}

	p.errorf(tok, "expected argument value, found %s", tok)
	return nil, false
}
