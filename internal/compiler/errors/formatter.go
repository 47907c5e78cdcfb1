package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// FormatError returns a human-readable error message for terminal output
func FormatError(e *CompilerError) string {
	var b strings.Builder

	headerColor := color.New(color.FgRed, color.Bold)
	if e.Severity == SeverityWarning {
		headerColor = color.New(color.FgYellow, color.Bold)
	}
	hintColor := color.New(color.FgCyan)

	file := e.File
	if file == "" {
		file = "<source>"
	}

	headerColor.Fprintf(&b, "%s %s in %s [%s]\n", severityIcon(e.Severity), categoryDisplayName(e.Category), file, e.Code)
	fmt.Fprintf(&b, "Line %d, Column %d:\n", e.Location.Line, e.Location.Column)
	fmt.Fprintf(&b, "  %s\n", e.Message)

	if e.Suggestion != "" {
		hintColor.Fprintf(&b, "\n💡 %s\n", e.Suggestion)
	}

	return b.String()
}

// FormatErrorList returns a formatted string of all errors
func FormatErrorList(errors ErrorList) string {
	if len(errors) == 0 {
		return "no errors"
	}

	var b strings.Builder

	errCount, warnCount := errors.ErrorCount()
	fmt.Fprintf(&b, "Compilation failed with %d error(s), %d warning(s)\n\n", errCount, warnCount)

	for i, err := range errors {
		if i > 0 {
			b.WriteString("\n" + strings.Repeat("-", 80) + "\n\n")
		}
		b.WriteString(err.Format())
	}

	return b.String()
}

// FormatCompact returns a compact one-line error format
func FormatCompact(e *CompilerError) string {
	file := e.File
	if file == "" {
		file = "<source>"
	}
	return fmt.Sprintf("%s:%d:%d: %s: %s [%s]",
		file, e.Location.Line, e.Location.Column,
		e.Severity, e.Message, e.Code)
}

// severityIcon returns the icon for a severity level
func severityIcon(severity ErrorSeverity) string {
	switch severity {
	case SeverityError:
		return "❌"
	case SeverityWarning:
		return "⚠️ "
	default:
		return "❓"
	}
}

// categoryDisplayName returns a human-readable category name
func categoryDisplayName(category ErrorCategory) string {
	switch category {
	case CategorySyntax:
		return "Syntax Error"
	case CategoryAnnotation:
		return "Annotation Error"
	case CategoryCodeGen:
		return "Code Generation Error"
	default:
		return "Compiler Error"
	}
}
