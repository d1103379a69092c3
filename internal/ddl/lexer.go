package ddl

import (
	"strings"
)

// Lexer tokenizes DDL script text.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      byte // current char under examination
	line    int  // current line number (1-based)
	col     int  // current column number (1-based)

	lastLine    int // line of the previously returned token
	diagnostics []Diagnostic
}

// NewLexer creates a new Lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// Diagnostics returns the lexical errors collected so far.
func (l *Lexer) Diagnostics() []Diagnostic {
	return l.diagnostics
}

func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // ASCII NUL = EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++

	if l.ch == '\n' {
		l.line++
		l.col = 0
	} else {
		l.col++
	}
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

func (l *Lexer) currentPos() Position {
	return Position{Line: l.line, Column: l.col}
}

func (l *Lexer) errorf(pos Position, msg string) {
	l.diagnostics = append(l.diagnostics, Diagnostic{Line: pos.Line, Column: pos.Column, Message: msg})
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.currentPos()
	tok := l.scan(pos)
	tok.Pos = pos
	tok.LineStart = l.lastLine != pos.Line
	l.lastLine = pos.Line
	return tok
}

func (l *Lexer) scan(pos Position) Token {
	if l.atEOF() {
		return Token{Kind: EOF}
	}

	switch l.ch {
	case '(':
		return l.single(LPAREN)
	case ')':
		return l.single(RPAREN)
	case ',':
		return l.single(COMMA)
	case '.':
		return l.single(DOT)
	case ';':
		return l.single(SEMICOLON)
	case '=':
		return l.single(EQ)
	case '\'':
		return Token{Kind: STRING, Literal: l.readDelimited('\'', pos, "unterminated string literal")}
	case '[':
		return Token{Kind: IDENT, Literal: l.readDelimited(']', pos, "unterminated bracketed identifier"), Quoted: true}
	case '"':
		return Token{Kind: IDENT, Literal: l.readDelimited('"', pos, "unterminated quoted identifier"), Quoted: true}
	case '`':
		return Token{Kind: IDENT, Literal: l.readDelimited('`', pos, "unterminated quoted identifier"), Quoted: true}
	case '@':
		return Token{Kind: VARIABLE, Literal: l.readVariable()}
	}

	switch {
	case (l.ch == 'N' || l.ch == 'n') && l.peekChar() == '\'':
		l.readChar() // skip N prefix of a unicode string
		return Token{Kind: STRING, Literal: l.readDelimited('\'', pos, "unterminated string literal")}
	case isIdentStart(l.ch):
		return Token{Kind: IDENT, Literal: l.readIdentifier()}
	case isDigit(l.ch):
		return Token{Kind: NUMBER, Literal: l.readNumber()}
	default:
		return l.single(SYMBOL)
	}
}

func (l *Lexer) single(kind Kind) Token {
	tok := Token{Kind: kind, Literal: string(l.ch)}
	l.readChar()
	return tok
}

// skipWhitespaceAndComments skips whitespace, line comments and (nested) block comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for {
		for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' || l.ch == '\f' || l.ch == '\v' {
			l.readChar()
		}

		switch {
		case l.ch == '-' && l.peekChar() == '-':
			for l.ch != '\n' && !l.atEOF() {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			l.skipBlockComment()
		default:
			return
		}
	}
}

func (l *Lexer) skipBlockComment() {
	start := l.currentPos()
	l.readChar() // skip '/'
	l.readChar() // skip '*'

	depth := 1
	for !l.atEOF() {
		switch {
		case l.ch == '/' && l.peekChar() == '*':
			depth++
			l.readChar()
		case l.ch == '*' && l.peekChar() == '/':
			depth--
			l.readChar()
			if depth == 0 {
				l.readChar()
				return
			}
		}
		l.readChar()
	}
	l.errorf(start, "unterminated block comment")
}

// readDelimited reads text up to the closing delimiter. A doubled closing
// delimiter is an escaped literal character: 'it''s' -> it's, [a]]b] -> a]b.
func (l *Lexer) readDelimited(closing byte, start Position, unterminated string) string {
	l.readChar() // skip opening delimiter

	var result strings.Builder
	for !l.atEOF() {
		if l.ch == closing {
			if l.peekChar() == closing {
				result.WriteByte(closing)
				l.readChar()
				l.readChar()
				continue
			}
			l.readChar() // skip closing delimiter
			return result.String()
		}
		result.WriteByte(l.ch)
		l.readChar()
	}

	l.errorf(start, unterminated)
	return result.String()
}

func (l *Lexer) readVariable() string {
	start := l.pos
	for l.ch == '@' {
		l.readChar()
	}
	for isIdentPart(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readIdentifier() string {
	start := l.pos
	for isIdentPart(l.ch) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

// readNumber reads integer, decimal, scientific and hexadecimal literals.
func (l *Lexer) readNumber() string {
	start := l.pos

	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()
		for isHexDigit(l.ch) {
			l.readChar()
		}
		return l.input[start:l.pos]
	}

	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if (l.ch == 'e' || l.ch == 'E') && (isDigit(l.peekChar()) || l.peekChar() == '+' || l.peekChar() == '-') {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	return l.input[start:l.pos]
}

// isIdentStart treats any non-ASCII byte as a letter so UTF-8 names stay intact.
func isIdentStart(ch byte) bool {
	return ch >= 'a' && ch <= 'z' || ch >= 'A' && ch <= 'Z' || ch == '_' || ch == '#' || ch >= 0x80
}

func isIdentPart(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '$'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || ch >= 'a' && ch <= 'f' || ch >= 'A' && ch <= 'F'
}

// Tokenize returns all tokens from the input, ending with EOF, plus any lexical errors.
func Tokenize(input string) ([]Token, []Diagnostic) {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Kind == EOF {
			break
		}
	}
	return tokens, l.Diagnostics()
}
