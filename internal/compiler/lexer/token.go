package lexer

import "fmt"

// TokenType represents the type of a token in fieldmeta source
type TokenType int

const (
	// TOKEN_EOF marks the end of the token stream.
	TOKEN_EOF TokenType = iota
	// TOKEN_ERROR represents a lexical error encountered during scanning.
	TOKEN_ERROR

	// Keywords
	TOKEN_RECORD   // record
	TOKEN_METADATA // metadata
	TOKEN_CHAIN    // chain
	TOKEN_NOTHING  // nothing

	// Literals
	TOKEN_IDENTIFIER     // Model, label, _
	TOKEN_INT_LITERAL    // 42, 1_000
	TOKEN_FLOAT_LITERAL  // 3.14, 2.5e10
	TOKEN_STRING_LITERAL // "hello"
	TOKEN_TRUE           // true
	TOKEN_FALSE          // false

	// Operators
	TOKEN_AT        // @
	TOKEN_PIPE      // |
	TOKEN_COLON     // :
	TOKEN_SEMICOLON // ;
	TOKEN_COMMA     // ,
	TOKEN_EQUALS    // =
	TOKEN_MINUS     // -
	TOKEN_SUBTYPE   // <:

	// Delimiters
	TOKEN_LBRACE   // {
	TOKEN_RBRACE   // }
	TOKEN_LPAREN   // (
	TOKEN_RPAREN   // )
	TOKEN_LBRACKET // [
	TOKEN_RBRACKET // ]
)

// TokenTypeNames maps token types to their string representations
var TokenTypeNames = map[TokenType]string{
	TOKEN_EOF:            "EOF",
	TOKEN_ERROR:          "ERROR",
	TOKEN_RECORD:         "RECORD",
	TOKEN_METADATA:       "METADATA",
	TOKEN_CHAIN:          "CHAIN",
	TOKEN_NOTHING:        "NOTHING",
	TOKEN_IDENTIFIER:     "IDENTIFIER",
	TOKEN_INT_LITERAL:    "INT_LITERAL",
	TOKEN_FLOAT_LITERAL:  "FLOAT_LITERAL",
	TOKEN_STRING_LITERAL: "STRING_LITERAL",
	TOKEN_TRUE:           "TRUE",
	TOKEN_FALSE:          "FALSE",
	TOKEN_AT:             "AT",
	TOKEN_PIPE:           "PIPE",
	TOKEN_COLON:          "COLON",
	TOKEN_SEMICOLON:      "SEMICOLON",
	TOKEN_COMMA:          "COMMA",
	TOKEN_EQUALS:         "EQUALS",
	TOKEN_MINUS:          "MINUS",
	TOKEN_SUBTYPE:        "SUBTYPE",
	TOKEN_LBRACE:         "LBRACE",
	TOKEN_RBRACE:         "RBRACE",
	TOKEN_LPAREN:         "LPAREN",
	TOKEN_RPAREN:         "RPAREN",
	TOKEN_LBRACKET:       "LBRACKET",
	TOKEN_RBRACKET:       "RBRACKET",
}

// String returns the string representation of a TokenType
func (t TokenType) String() string {
	if name, ok := TokenTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", t)
}

// Token represents a single lexical token
type Token struct {
	Type    TokenType   // The type of the token
	Lexeme  string      // The raw text of the token
	Literal interface{} // The parsed value (for literals)
	Line    int         // Line number (1-indexed)
	Column  int         // Column number (1-indexed)
}

// String returns a string representation of the token
func (t Token) String() string {
	if t.Literal != nil {
		return fmt.Sprintf("%s '%s' (%v) at %d:%d",
			t.Type.String(), t.Lexeme, t.Literal, t.Line, t.Column)
	}
	return fmt.Sprintf("%s '%s' at %d:%d",
		t.Type.String(), t.Lexeme, t.Line, t.Column)
}

// Keywords maps reserved words to their token types
var Keywords = map[string]TokenType{
	"record":   TOKEN_RECORD,
	"metadata": TOKEN_METADATA,
	"chain":    TOKEN_CHAIN,
	"nothing":  TOKEN_NOTHING,
	"true":     TOKEN_TRUE,
	"false":    TOKEN_FALSE,
}

// LexError represents an error encountered during lexical analysis
type LexError struct {
	Message string // Error message
	Line    int    // Line number where error occurred
	Column  int    // Column number where error occurred
	Lexeme  string // The problematic text
}

// Error implements the error interface
func (e LexError) Error() string {
	return fmt.Sprintf("Lexical error at %d:%d: %s (near '%s')",
		e.Line, e.Column, e.Message, e.Lexeme)
}
