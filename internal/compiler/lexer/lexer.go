// Package lexer provides lexical analysis for fieldmeta source code.
// It tokenizes .fmd files into a stream of tokens for the parser.
package lexer

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Lexer tokenizes fieldmeta source code.
//
// Lexer instances are not safe for concurrent use; create one per source via New().
type Lexer struct {
	source  string     // Source code to tokenize
	start   int        // Start position of current token
	current int        // Current position in source
	line    int        // Current line number (1-indexed)
	column  int        // Current column number (1-indexed)
	tokens  []Token    // Collected tokens
	errors  []LexError // Collected errors
}

// New creates a new Lexer for the given source code
func New(source string) *Lexer {
	return &Lexer{
		source:  source,
		start:   0,
		current: 0,
		line:    1,
		column:  1,
		tokens:  make([]Token, 0),
		errors:  make([]LexError, 0),
	}
}

// ScanTokens tokenizes the entire source and returns tokens and errors
func (l *Lexer) ScanTokens() ([]Token, []LexError) {
	for !l.isAtEnd() {
		l.start = l.current
		l.scanToken()
	}

	l.tokens = append(l.tokens, Token{
		Type:   TOKEN_EOF,
		Lexeme: "",
		Line:   l.line,
		Column: l.column,
	})

	return l.tokens, l.errors
}

// scanToken processes the next token
func (l *Lexer) scanToken() {
	c := l.advance()

	switch {
	case c == '(' || c == ')' || c == '{' || c == '}' || c == '[' || c == ']':
		l.scanDelimiter(c)
	case c == ',' || c == ';' || c == ':' || c == '=' || c == '|' || c == '-':
		l.scanSimpleOperator(c)
	case c == '<':
		l.scanSubtypeToken()
	case c == '#':
		l.comment()
	case c == '@':
		l.addToken(TOKEN_AT)
	case c == '"':
		l.string()
	case c == ' ' || c == '\r' || c == '\t':
		// Ignore whitespace
	case c == '\n':
		l.line++
		l.column = 1
	default:
		l.scanDefault(c)
	}
}

// scanDelimiter handles delimiter tokens: ( ) { } [ ]
func (l *Lexer) scanDelimiter(c byte) {
	switch c {
	case '(':
		l.addToken(TOKEN_LPAREN)
	case ')':
		l.addToken(TOKEN_RPAREN)
	case '{':
		l.addToken(TOKEN_LBRACE)
	case '}':
		l.addToken(TOKEN_RBRACE)
	case '[':
		l.addToken(TOKEN_LBRACKET)
	case ']':
		l.addToken(TOKEN_RBRACKET)
	}
}

// scanSimpleOperator handles single-character operators: , ; : = | -
func (l *Lexer) scanSimpleOperator(c byte) {
	switch c {
	case ',':
		l.addToken(TOKEN_COMMA)
	case ';':
		l.addToken(TOKEN_SEMICOLON)
	case ':':
		l.addToken(TOKEN_COLON)
	case '=':
		l.addToken(TOKEN_EQUALS)
	case '|':
		l.addToken(TOKEN_PIPE)
	case '-':
		l.addToken(TOKEN_MINUS)
	}
}

// scanSubtypeToken handles <:
func (l *Lexer) scanSubtypeToken() {
	if l.match(':') {
		l.addToken(TOKEN_SUBTYPE)
		return
	}
	l.addError("Unexpected character: '<' (did you mean '<:'?)")
}

// scanDefault handles the default case: numbers, identifiers, or errors
func (l *Lexer) scanDefault(c byte) {
	if l.isDigit(c) {
		l.number()
	} else if l.isAlpha(c) {
		l.identifier()
	} else {
		l.addError(fmt.Sprintf("Unexpected character: '%c'", c))
	}
}

// comment handles single-line comments starting with #
func (l *Lexer) comment() {
	for l.peek() != '\n' && !l.isAtEnd() {
		l.advance()
	}
}

// string handles string literals with escapes
func (l *Lexer) string() {
	startLine := l.line
	startColumn := l.column - 1
	value := strings.Builder{}

	for !l.isAtEnd() && l.peek() != '"' {
		if l.peek() == '\\' {
			l.advance() // consume backslash
			if l.isAtEnd() {
				break
			}

			escaped := l.advance()
			switch escaped {
			case 'n':
				value.WriteByte('\n')
			case 't':
				value.WriteByte('\t')
			case 'r':
				value.WriteByte('\r')
			case '\\':
				value.WriteByte('\\')
			case '"':
				value.WriteByte('"')
			default:
				// Unknown escape sequence - keep as-is
				value.WriteByte('\\')
				value.WriteByte(escaped)
			}
		} else if l.peek() == '\n' {
			value.WriteByte('\n')
			l.advance()
			l.line++
			l.column = 1
		} else {
			value.WriteByte(l.advance())
		}
	}

	if l.isAtEnd() {
		l.errors = append(l.errors, LexError{
			Message: fmt.Sprintf("Unterminated string starting at %d:%d", startLine, startColumn),
			Line:    startLine,
			Column:  startColumn,
			Lexeme:  "\"",
		})
		return
	}

	// Consume closing "
	l.advance()

	l.tokens = append(l.tokens, Token{
		Type:    TOKEN_STRING_LITERAL,
		Lexeme:  l.source[l.start:l.current],
		Literal: value.String(),
		Line:    startLine,
		Column:  startColumn,
	})
}

// number handles integer and float literals
func (l *Lexer) number() {
	for l.isDigit(l.peek()) || l.peek() == '_' {
		l.advance()
	}

	isFloat := false
	if l.peek() == '.' && l.isDigit(l.peekNext()) {
		isFloat = true
		l.advance() // consume .

		for l.isDigit(l.peek()) || l.peek() == '_' {
			l.advance()
		}
	}

	if l.peek() == 'e' || l.peek() == 'E' {
		isFloat = true
		l.advance() // consume e/E

		if l.peek() == '+' || l.peek() == '-' {
			l.advance()
		}

		if !l.isDigit(l.peek()) {
			l.addError("Invalid number: expected digits after exponent")
			return
		}

		for l.isDigit(l.peek()) {
			l.advance()
		}
	}

	lexeme := l.source[l.start:l.current]
	cleanLexeme := strings.ReplaceAll(lexeme, "_", "")

	if isFloat {
		value, err := strconv.ParseFloat(cleanLexeme, 64)
		if err != nil {
			l.addError(fmt.Sprintf("Invalid float literal: %s", lexeme))
			return
		}
		l.addTokenWithLiteral(TOKEN_FLOAT_LITERAL, value)
	} else {
		value, err := strconv.ParseInt(cleanLexeme, 10, 64)
		if err != nil {
			l.addError(fmt.Sprintf("Invalid integer literal: %s", lexeme))
			return
		}
		l.addTokenWithLiteral(TOKEN_INT_LITERAL, value)
	}
}

// identifier handles identifiers and keywords
func (l *Lexer) identifier() {
	for l.isAlphaNumeric(l.peek()) {
		l.advance()
	}

	text := l.source[l.start:l.current]

	tokenType, isKeyword := Keywords[text]
	if !isKeyword {
		tokenType = TOKEN_IDENTIFIER
	}

	switch tokenType {
	case TOKEN_TRUE:
		l.addTokenWithLiteral(tokenType, true)
	case TOKEN_FALSE:
		l.addTokenWithLiteral(tokenType, false)
	default:
		l.addToken(tokenType)
	}
}

// Helper methods

// isAtEnd checks if we've reached the end of the source
func (l *Lexer) isAtEnd() bool {
	return l.current >= len(l.source)
}

// advance consumes and returns the current character
func (l *Lexer) advance() byte {
	if l.isAtEnd() {
		return 0
	}
	c := l.source[l.current]
	l.current++
	l.column++
	return c
}

// match checks if the current character matches expected and consumes it
func (l *Lexer) match(expected byte) bool {
	if l.isAtEnd() || l.source[l.current] != expected {
		return false
	}
	l.current++
	l.column++
	return true
}

// peek returns the current character without consuming it
func (l *Lexer) peek() byte {
	if l.isAtEnd() {
		return 0
	}
	return l.source[l.current]
}

// peekNext returns the next character without consuming
func (l *Lexer) peekNext() byte {
	if l.current+1 >= len(l.source) {
		return 0
	}
	return l.source[l.current+1]
}

func (l *Lexer) isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func (l *Lexer) isAlpha(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		c == '_'
}

func (l *Lexer) isAlphaNumeric(c byte) bool {
	return l.isAlpha(c) || l.isDigit(c)
}

// addToken adds a token with the current lexeme
func (l *Lexer) addToken(tokenType TokenType) {
	l.addTokenWithLiteral(tokenType, nil)
}

// addTokenWithLiteral adds a token with a literal value
func (l *Lexer) addTokenWithLiteral(tokenType TokenType, literal interface{}) {
	l.tokens = append(l.tokens, Token{
		Type:    tokenType,
		Lexeme:  l.source[l.start:l.current],
		Literal: literal,
		Line:    l.line,
		Column:  l.column - (l.current - l.start),
	})
}

// addError records a lexical error
func (l *Lexer) addError(message string) {
	lexeme := ""
	if l.start < len(l.source) {
		end := l.current
		if end > l.start+20 {
			end = l.start + 20
		}
		lexeme = l.source[l.start:end]
	}

	l.errors = append(l.errors, LexError{
		Message: message,
		Line:    l.line,
		Column:  l.column - (l.current - l.start),
		Lexeme:  lexeme,
	})
}

// IsKeyword checks if a string is a reserved word
func IsKeyword(s string) bool {
	_, ok := Keywords[s]
	return ok
}

// IsValidIdentifier checks if a string can name a kind, record or field
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}

	first := rune(s[0])
	if !unicode.IsLetter(first) && first != '_' {
		return false
	}

	for _, r := range s[1:] {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return false
		}
	}

	return !IsKeyword(s)
}
