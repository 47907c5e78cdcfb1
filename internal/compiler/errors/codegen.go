package errors

import (
	"fmt"

	"github.com/conduit-lang/fieldmeta/internal/compiler/ast"
)

// Code generation error codes (GEN001-099)
const (
	// ErrInvalidIdentifier indicates a name that cannot become a Go identifier
	ErrInvalidIdentifier ErrorCode = "GEN001"
	// ErrFormatFailed indicates generated source that gofmt rejects
	ErrFormatFailed ErrorCode = "GEN002"
)

// NewInvalidIdentifier creates a GEN001 error
func NewInvalidIdentifier(name, context string) *CompilerError {
	return newError(
		ErrInvalidIdentifier,
		"invalid_identifier",
		CategoryCodeGen,
		fmt.Sprintf("'%s' cannot be used as a Go identifier for %s", name, context),
		ast.SourceLocation{},
	).WithSubject(name)
}

// NewFormatFailed creates a GEN002 error
func NewFormatFailed(cause error) *CompilerError {
	return newError(
		ErrFormatFailed,
		"format_failed",
		CategoryCodeGen,
		fmt.Sprintf("Generated source is not valid Go: %v", cause),
		ast.SourceLocation{},
	)
}
