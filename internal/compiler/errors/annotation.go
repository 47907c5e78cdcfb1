package errors

import (
	"fmt"

	"github.com/conduit-lang/fieldmeta/internal/compiler/ast"
)

// Annotation error codes (ANN001-099)
const (
	// ErrMalformedAnnotation indicates an annotated field of unrecognized shape
	ErrMalformedAnnotation ErrorCode = "ANN001"
	// ErrMissingRecordDef indicates a declaration without a record definition
	ErrMissingRecordDef ErrorCode = "ANN002"
	// ErrMissingFieldBlock indicates a record definition without a field block
	ErrMissingFieldBlock ErrorCode = "ANN003"
	// ErrDuplicateField indicates two fields of one record share a key
	ErrDuplicateField ErrorCode = "ANN004"
	// ErrUnknownEntryPoint indicates a reference to an entry point never declared
	ErrUnknownEntryPoint ErrorCode = "ANN005"
	// ErrInvalidRecordName indicates a record name that does not resolve to an identifier
	ErrInvalidRecordName ErrorCode = "ANN006"
	// ErrDuplicateEntryPoint indicates an entry point name declared twice
	ErrDuplicateEntryPoint ErrorCode = "ANN007"
	// ErrChainOrdering indicates a chain whose inner members re-declare the record
	ErrChainOrdering ErrorCode = "ANN008"
	// ErrEmptyChain indicates a chain without members
	ErrEmptyChain ErrorCode = "ANN009"
	// ErrUnknownKind indicates a reference to an annotation kind never declared
	ErrUnknownKind ErrorCode = "ANN010"
	// ErrDuplicateRecord indicates a record type declared twice in one program
	ErrDuplicateRecord ErrorCode = "ANN011"
	// ErrInvalidValue indicates a metadata value that is not a constant expression
	ErrInvalidValue ErrorCode = "ANN012"
)

// NewMalformedAnnotation creates an ANN001 error
func NewMalformedAnnotation(loc ast.SourceLocation, field, reason string) *CompilerError {
	subject := field
	if subject == "" {
		subject = "<unnamed>"
	}
	return newError(
		ErrMalformedAnnotation,
		"malformed_annotation",
		CategoryAnnotation,
		fmt.Sprintf("Malformed annotation on field '%s': %s", subject, reason),
		loc,
	).WithSubject(field).
		WithSuggestion("Annotate a field as 'name: Type | value' or 'name: Type = default | value'")
}

// NewMissingRecordDef creates an ANN002 error
func NewMissingRecordDef(loc ast.SourceLocation, entryPoint string) *CompilerError {
	return newError(
		ErrMissingRecordDef,
		"missing_record_def",
		CategoryAnnotation,
		fmt.Sprintf("@%s must be applied to a record definition", entryPoint),
		loc,
	).WithSubject(entryPoint)
}

// NewMissingFieldBlock creates an ANN003 error
func NewMissingFieldBlock(loc ast.SourceLocation, record string) *CompilerError {
	return newError(
		ErrMissingFieldBlock,
		"missing_field_block",
		CategoryAnnotation,
		fmt.Sprintf("Record '%s' has no field block", record),
		loc,
	).WithSubject(record)
}

// NewDuplicateField creates an ANN004 error
func NewDuplicateField(loc ast.SourceLocation, record, field string, first ast.SourceLocation) *CompilerError {
	return newError(
		ErrDuplicateField,
		"duplicate_field",
		CategoryAnnotation,
		fmt.Sprintf("Field '%s' is declared twice in record '%s' (first declared at %s)", field, record, first),
		loc,
	).WithSubject(field)
}

// NewUnknownEntryPoint creates an ANN005 error
func NewUnknownEntryPoint(loc ast.SourceLocation, name string) *CompilerError {
	return newError(
		ErrUnknownEntryPoint,
		"unknown_entry_point",
		CategoryAnnotation,
		fmt.Sprintf("Unknown entry point '@%s'", name),
		loc,
	).WithSubject(name).
		WithSuggestion("Declare the kind with 'metadata <name> = <default>' or the chain with 'chain <name> = @...' before using it")
}

// NewInvalidRecordName creates an ANN006 error
func NewInvalidRecordName(loc ast.SourceLocation, found string) *CompilerError {
	return newError(
		ErrInvalidRecordName,
		"invalid_record_name",
		CategoryAnnotation,
		fmt.Sprintf("Record name does not resolve to an identifier (found %s)", found),
		loc,
	)
}

// NewDuplicateEntryPoint creates an ANN007 error
func NewDuplicateEntryPoint(loc ast.SourceLocation, name string) *CompilerError {
	return newError(
		ErrDuplicateEntryPoint,
		"duplicate_entry_point",
		CategoryAnnotation,
		fmt.Sprintf("Entry point '@%s' is already declared", name),
		loc,
	).WithSubject(name)
}

// NewChainOrdering creates an ANN008 error
func NewChainOrdering(loc ast.SourceLocation, chain, member string) *CompilerError {
	return newError(
		ErrChainOrdering,
		"chain_ordering",
		CategoryAnnotation,
		fmt.Sprintf("Chain '%s': member '@%s' re-declares the record but is not the outermost member", chain, member),
		loc,
	).WithSubject(member).
		WithSuggestion(fmt.Sprintf("Use the update form '@re%s' or move '@%s' to the front of the chain", member, member))
}

// NewEmptyChain creates an ANN009 error
func NewEmptyChain(loc ast.SourceLocation, chain string) *CompilerError {
	return newError(
		ErrEmptyChain,
		"empty_chain",
		CategoryAnnotation,
		fmt.Sprintf("Chain '%s' has no members", chain),
		loc,
	).WithSubject(chain)
}

// NewUnknownKind creates an ANN010 error
func NewUnknownKind(loc ast.SourceLocation, kind string) *CompilerError {
	return newError(
		ErrUnknownKind,
		"unknown_kind",
		CategoryAnnotation,
		fmt.Sprintf("Unknown metadata kind '%s'", kind),
		loc,
	).WithSubject(kind).
		WithSuggestion(fmt.Sprintf("Declare it first with 'metadata %s = <default>'", kind))
}

// NewDuplicateRecord creates an ANN011 error
func NewDuplicateRecord(loc ast.SourceLocation, record string) *CompilerError {
	return newError(
		ErrDuplicateRecord,
		"duplicate_record",
		CategoryAnnotation,
		fmt.Sprintf("Record '%s' is already declared", record),
		loc,
	).WithSubject(record).
		WithSuggestion("Layer more metadata on an existing record with an update entry point ('@re<kind>')")
}

// NewInvalidValue creates an ANN012 error
func NewInvalidValue(loc ast.SourceLocation, found string) *CompilerError {
	return newError(
		ErrInvalidValue,
		"invalid_value",
		CategoryAnnotation,
		fmt.Sprintf("Metadata value must be a constant expression (found %s)", found),
		loc,
	)
}
