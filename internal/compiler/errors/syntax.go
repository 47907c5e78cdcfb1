package errors

import (
	"fmt"

	"github.com/conduit-lang/fieldmeta/internal/compiler/ast"
)

// Syntax error codes (SYN001-099)
const (
	// ErrUnexpectedToken indicates an unexpected token was encountered
	ErrUnexpectedToken ErrorCode = "SYN001"
	// ErrExpectedToken indicates a specific token was expected but not found
	ErrExpectedToken ErrorCode = "SYN002"
	// ErrUnterminatedString indicates a string literal was not terminated
	ErrUnterminatedString ErrorCode = "SYN003"
	// ErrInvalidNumber indicates an invalid number literal
	ErrInvalidNumber ErrorCode = "SYN004"
	// ErrUnexpectedEOF indicates unexpected end of file
	ErrUnexpectedEOF ErrorCode = "SYN005"
	// ErrInvalidCharacter indicates a character outside the language
	ErrInvalidCharacter ErrorCode = "SYN006"
)

// NewUnexpectedToken creates a SYN001 error
func NewUnexpectedToken(loc ast.SourceLocation, found, context string) *CompilerError {
	message := fmt.Sprintf("Unexpected token '%s'", found)
	if context != "" {
		message = fmt.Sprintf("Unexpected token '%s' in %s", found, context)
	}
	return newError(ErrUnexpectedToken, "unexpected_token", CategorySyntax, message, loc)
}

// NewExpectedToken creates a SYN002 error
func NewExpectedToken(loc ast.SourceLocation, expected, found string) *CompilerError {
	return newError(
		ErrExpectedToken,
		"expected_token",
		CategorySyntax,
		fmt.Sprintf("Expected %s but found '%s'", expected, found),
		loc,
	)
}

// NewUnterminatedString creates a SYN003 error
func NewUnterminatedString(loc ast.SourceLocation) *CompilerError {
	return newError(
		ErrUnterminatedString,
		"unterminated_string",
		CategorySyntax,
		"Unterminated string literal",
		loc,
	).WithSuggestion("Add a closing '\"' to the string")
}

// NewInvalidNumber creates a SYN004 error
func NewInvalidNumber(loc ast.SourceLocation, message string) *CompilerError {
	return newError(ErrInvalidNumber, "invalid_number", CategorySyntax, message, loc)
}

// NewUnexpectedEOF creates a SYN005 error
func NewUnexpectedEOF(loc ast.SourceLocation, context string) *CompilerError {
	return newError(
		ErrUnexpectedEOF,
		"unexpected_eof",
		CategorySyntax,
		fmt.Sprintf("Unexpected end of file in %s", context),
		loc,
	)
}

// NewInvalidCharacter creates a SYN006 error
func NewInvalidCharacter(loc ast.SourceLocation, message string) *CompilerError {
	return newError(ErrInvalidCharacter, "invalid_character", CategorySyntax, message, loc)
}
