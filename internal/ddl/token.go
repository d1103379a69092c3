package ddl

import (
	"fmt"
	"strings"
)

// Kind represents the type of a lexical token.
type Kind int

const (
	EOF Kind = iota

	IDENT    // Orders, [Order], "Order", `Order`, #temp
	VARIABLE // @name, @@ROWCOUNT
	STRING   // 'text', N'text'
	NUMBER   // 42, 18.2, 0x1F

	LPAREN    // (
	RPAREN    // )
	COMMA     // ,
	DOT       // .
	SEMICOLON // ;
	EQ        // =
	SYMBOL    // any other single character
)

var kindNames = map[Kind]string{
	EOF:       "end of input",
	IDENT:     "identifier",
	VARIABLE:  "variable",
	STRING:    "string",
	NUMBER:    "number",
	LPAREN:    "'('",
	RPAREN:    "')'",
	COMMA:     "','",
	DOT:       "'.'",
	SEMICOLON: "';'",
	EQ:        "'='",
	SYMBOL:    "symbol",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Position is a 1-based location in the script.
type Position struct {
	Line   int
	Column int
}

// Token is a lexical token.
type Token struct {
	Kind    Kind
	Literal string
	Pos     Position

	// Quoted is set for delimited identifiers, which are never keywords.
	Quoted bool

	// LineStart is set when the token is the first one on its line.
	LineStart bool
}

// Is reports whether the token is the given keyword, ignoring case.
func (t Token) Is(keyword string) bool {
	return t.Kind == IDENT && !t.Quoted && strings.EqualFold(t.Literal, keyword)
}

// IsAny reports whether the token is one of the given keywords.
func (t Token) IsAny(keywords ...string) bool {
	for _, kw := range keywords {
		if t.Is(kw) {
			return true
		}
	}
	return false
}

func (t Token) String() string {
	switch t.Kind {
	case EOF:
		return "end of input"
	case STRING:
		return fmt.Sprintf("'%s'", t.Literal)
	case IDENT, VARIABLE, NUMBER, SYMBOL:
		return fmt.Sprintf("%q", t.Literal)
	default:
		return t.Kind.String()
	}
}
