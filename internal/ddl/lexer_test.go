package ddl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLexer_DelimitedIdentifiers(t *testing.T) {
	tokens, diags := Tokenize("CREATE TABLE [dbo].[Order Items] (\"Id\" `int`)")
	require.Empty(t, diags)

	expected := []struct {
		kind   Kind
		lit    string
		quoted bool
	}{
		{IDENT, "CREATE", false},
		{IDENT, "TABLE", false},
		{IDENT, "dbo", true},
		{DOT, ".", false},
		{IDENT, "Order Items", true},
		{LPAREN, "(", false},
		{IDENT, "Id", true},
		{IDENT, "int", true},
		{RPAREN, ")", false},
		{EOF, "", false},
	}

	require.Len(t, tokens, len(expected), "wrong number of tokens")
	for i, exp := range expected {
		assert.Equal(t, exp.kind, tokens[i].Kind, "token[%d] kind", i)
		assert.Equal(t, exp.lit, tokens[i].Literal, "token[%d] literal", i)
		assert.Equal(t, exp.quoted, tokens[i].Quoted, "token[%d] quoted", i)
	}
}

func TestLexer_Escapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  Kind
		want  string
	}{
		{"doubled quote in string", "'it''s'", STRING, "it's"},
		{"unicode string prefix", "N'Kunde'", STRING, "Kunde"},
		{"doubled bracket", "[a]]b]", IDENT, "a]b"},
		{"doubled double quote", `"say ""hi"""`, IDENT, `say "hi"`},
		{"variable", "@level1name", VARIABLE, "@level1name"},
		{"global variable", "@@ROWCOUNT", VARIABLE, "@@ROWCOUNT"},
		{"temp table", "#staging", IDENT, "#staging"},
		{"decimal", "18.25", NUMBER, "18.25"},
		{"hex", "0x1F", NUMBER, "0x1F"},
		{"exponent", "1e-5", NUMBER, "1e-5"},
		{"non-ascii identifier", "Größe", IDENT, "Größe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, diags := Tokenize(tt.input)
			require.Empty(t, diags)
			require.Len(t, tokens, 2)
			assert.Equal(t, tt.kind, tokens[0].Kind)
			assert.Equal(t, tt.want, tokens[0].Literal)
		})
	}
}

func TestLexer_Comments(t *testing.T) {
	input := "-- header\n/* outer /* nested */ still comment */ x /* tail */"
	tokens, diags := Tokenize(input)
	require.Empty(t, diags)
	require.Len(t, tokens, 2)
	assert.Equal(t, "x", tokens[0].Literal)
	assert.Equal(t, 2, tokens[0].Pos.Line)
}

func TestLexer_Positions(t *testing.T) {
	tokens, diags := Tokenize("a b\n  c")
	require.Empty(t, diags)
	require.Len(t, tokens, 4)

	assert.Equal(t, Position{Line: 1, Column: 1}, tokens[0].Pos)
	assert.True(t, tokens[0].LineStart)
	assert.Equal(t, Position{Line: 1, Column: 3}, tokens[1].Pos)
	assert.False(t, tokens[1].LineStart)
	assert.Equal(t, Position{Line: 2, Column: 3}, tokens[2].Pos)
	assert.True(t, tokens[2].LineStart)
}

func TestLexer_Unterminated(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"string", "x\n'abc", "unterminated string literal"},
		{"bracket", "x\n[abc", "unterminated bracketed identifier"},
		{"block comment", "x\n/* abc", "unterminated block comment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diags := Tokenize(tt.input)
			require.Len(t, diags, 1)
			assert.Equal(t, 2, diags[0].Line)
			assert.Equal(t, tt.want, diags[0].Message)
		})
	}
}

func TestToken_IsIgnoresQuotedIdentifiers(t *testing.T) {
	tokens, _ := Tokenize("create [create]")
	assert.True(t, tokens[0].Is("CREATE"))
	assert.False(t, tokens[1].Is("CREATE"))
}
