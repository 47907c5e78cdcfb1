// Package parser implements the fieldmeta parser, transforming token streams into syntax trees.
// It uses recursive descent parsing with panic mode error recovery to report as many
// syntax errors as possible in one pass.
package parser

import (
	"fmt"
	"strings"

	"github.com/conduit-lang/fieldmeta/internal/compiler/ast"
	cerrors "github.com/conduit-lang/fieldmeta/internal/compiler/errors"
	"github.com/conduit-lang/fieldmeta/internal/compiler/lexer"
)

// ParseError represents an error encountered during parsing
type ParseError struct {
	Message  string
	Expected string // What the parser was looking for, if a specific token
	Location ast.SourceLocation
	Token    lexer.Token
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("Parse error at %d:%d: %s (near '%s')",
		e.Location.Line, e.Location.Column, e.Message, e.Token.Lexeme)
}

// NewParseError creates a new parse error
func NewParseError(message string, token lexer.Token) ParseError {
	return ParseError{
		Message:  message,
		Location: ast.TokenLocation(token),
		Token:    token,
	}
}

// CompilerError converts the parse error into a structured compiler error
func (e ParseError) CompilerError() *cerrors.CompilerError {
	switch {
	case e.Token.Type == lexer.TOKEN_EOF:
		return cerrors.NewUnexpectedEOF(e.Location, e.Message)
	case e.Expected != "":
		return cerrors.NewExpectedToken(e.Location, e.Expected, e.Token.Lexeme)
	default:
		return cerrors.NewUnexpectedToken(e.Location, e.Token.Lexeme, e.Message)
	}
}

// lexErrorToCompilerError converts a lexical error into a structured compiler error
func lexErrorToCompilerError(e lexer.LexError) *cerrors.CompilerError {
	loc := ast.SourceLocation{Line: e.Line, Column: e.Column}
	switch {
	case strings.HasPrefix(e.Message, "Unterminated string"):
		return cerrors.NewUnterminatedString(loc)
	case strings.HasPrefix(e.Message, "Invalid"):
		return cerrors.NewInvalidNumber(loc, e.Message)
	default:
		return cerrors.NewInvalidCharacter(loc, e.Message)
	}
}
