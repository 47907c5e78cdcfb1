// Package errors provides structured error handling for the fieldmeta compiler.
// It defines error codes, categories, and formatting for both human-readable
// terminal output and machine-parseable JSON.
package errors

import (
	"encoding/json"
	stderrors "errors"

	"github.com/conduit-lang/fieldmeta/internal/compiler/ast"
)

// ErrorCode represents a unique error code in the fieldmeta compiler
type ErrorCode string

// ErrorCategory represents the category of compiler error
type ErrorCategory string

const (
	// CategorySyntax represents lexing and parsing errors (SYN001-099)
	CategorySyntax ErrorCategory = "syntax"
	// CategoryAnnotation represents annotation extraction and composition errors (ANN001-099)
	CategoryAnnotation ErrorCategory = "annotation"
	// CategoryCodeGen represents code generation errors (GEN001-099)
	CategoryCodeGen ErrorCategory = "codegen"
)

// ErrorSeverity indicates the severity level of an error
type ErrorSeverity string

const (
	// SeverityError indicates an error that prevents compilation
	SeverityError ErrorSeverity = "error"
	// SeverityWarning indicates a warning that suggests potential issues
	SeverityWarning ErrorSeverity = "warning"
)

// CompilerError represents a structured compiler error
type CompilerError struct {
	// Code is the unique error code (e.g., "ANN004", "SYN001")
	Code ErrorCode `json:"code"`
	// Type is a machine-readable error type identifier
	Type string `json:"type"`
	// Category is the error category
	Category ErrorCategory `json:"category"`
	// Severity is the error severity level
	Severity ErrorSeverity `json:"severity"`
	// Message is the primary error message
	Message string `json:"message"`
	// Location is the source location of the error
	Location ast.SourceLocation `json:"location"`
	// File is the source file name (optional)
	File string `json:"file,omitempty"`
	// Subject names the offending field, record or entry point (optional)
	Subject string `json:"subject,omitempty"`
	// Suggestion provides a hint for fixing the error (optional)
	Suggestion string `json:"suggestion,omitempty"`
}

// Error implements the error interface
func (e *CompilerError) Error() string {
	return FormatCompact(e)
}

// Format returns a human-readable error message for terminal output
func (e *CompilerError) Format() string {
	return FormatError(e)
}

// ToJSON returns the error as a JSON string
func (e *CompilerError) ToJSON() (string, error) {
	bytes, err := json.MarshalIndent(e, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// WithFile sets the source file name for the error
func (e *CompilerError) WithFile(file string) *CompilerError {
	e.File = file
	return e
}

// WithSubject sets the name of the offending entity
func (e *CompilerError) WithSubject(subject string) *CompilerError {
	e.Subject = subject
	return e
}

// WithSuggestion sets a suggestion for fixing the error
func (e *CompilerError) WithSuggestion(suggestion string) *CompilerError {
	e.Suggestion = suggestion
	return e
}

// ErrorList is a collection of compiler errors
type ErrorList []*CompilerError

// Error implements the error interface
func (el ErrorList) Error() string {
	if len(el) == 0 {
		return "no errors"
	}
	return FormatErrorList(el)
}

// HasErrors returns true if the list contains any errors (excludes warnings)
func (el ErrorList) HasErrors() bool {
	for _, err := range el {
		if err.Severity == SeverityError {
			return true
		}
	}
	return false
}

// WithFile sets the file on every error in the list
func (el ErrorList) WithFile(file string) ErrorList {
	for _, err := range el {
		err.WithFile(file)
	}
	return el
}

// ToJSON returns all errors as a JSON array
func (el ErrorList) ToJSON() (string, error) {
	bytes, err := json.MarshalIndent(el, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// ErrorCount returns the number of errors by severity
func (el ErrorList) ErrorCount() (errors, warnings int) {
	for _, err := range el {
		switch err.Severity {
		case SeverityError:
			errors++
		case SeverityWarning:
			warnings++
		}
	}
	return
}

// AsList flattens err into an ErrorList. Errors that are not compiler errors are
// reported as nil.
func AsList(err error) ErrorList {
	var list ErrorList
	if stderrors.As(err, &list) {
		return list
	}
	var ce *CompilerError
	if stderrors.As(err, &ce) {
		return ErrorList{ce}
	}
	return nil
}

// HasCode reports whether err is, wraps, or lists a compiler error with the given code
func HasCode(err error, code ErrorCode) bool {
	for _, ce := range AsList(err) {
		if ce.Code == code {
			return true
		}
	}
	return false
}

// newError creates a new CompilerError with the given parameters
func newError(
	code ErrorCode,
	typ string,
	category ErrorCategory,
	message string,
	loc ast.SourceLocation,
) *CompilerError {
	return &CompilerError{
		Code:     code,
		Type:     typ,
		Category: category,
		Severity: SeverityError,
		Message:  message,
		Location: loc,
	}
}
