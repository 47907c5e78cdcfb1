// Package ui renders terminal output for the fieldmeta commands.
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Level is the severity of a message
type Level int

const (
	LevelError Level = iota
	LevelWarning
	LevelInfo
)

// Message is a titled notice with optional suggestions and follow-up hints
//
//	✗ UNKNOWN KIND: rnage
//	   No metadata kind named 'rnage' is declared.
//
//	   Did you mean: range?
//
//	   → List kinds: fieldmeta query --kinds
type Message struct {
	Level       Level
	Title       string
	Detail      string
	Suggestions []string
	Hints       []string
	NoColor     bool
}

func (m Message) colors() (*color.Color, *color.Color, string) {
	var header, body *color.Color
	var symbol string
	switch m.Level {
	case LevelWarning:
		header, body, symbol = color.New(color.FgYellow, color.Bold), color.New(color.FgYellow), "!"
	case LevelInfo:
		header, body, symbol = color.New(color.FgCyan, color.Bold), color.New(color.FgCyan), "i"
	default:
		header, body, symbol = color.New(color.FgRed, color.Bold), color.New(color.FgRed), "✗"
	}
	if m.NoColor {
		header.DisableColor()
		body.DisableColor()
	}
	return header, body, symbol
}

// String renders the message
func (m Message) String() string {
	var b strings.Builder
	header, body, symbol := m.colors()

	header.Fprintf(&b, "%s %s\n", symbol, m.Title)
	if m.Detail != "" {
		body.Fprintf(&b, "   %s\n", m.Detail)
	}

	if len(m.Suggestions) > 0 {
		yellow := color.New(color.FgYellow)
		if m.NoColor {
			yellow.DisableColor()
		}
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(m.Suggestions, ", "))
	}

	if len(m.Hints) > 0 {
		cyan := color.New(color.FgCyan)
		if m.NoColor {
			cyan.DisableColor()
		}
		b.WriteString("\n")
		for _, hint := range m.Hints {
			cyan.Fprintf(&b, "   → %s\n", hint)
		}
	}
	return b.String()
}

// Write renders the message to w
func (m Message) Write(w io.Writer) {
	fmt.Fprint(w, m.String())
}

// UnknownKind reports a kind name that no declaration introduced
func UnknownKind(name string, declared []string, noColor bool) Message {
	return Message{
		Title:       "UNKNOWN KIND: " + name,
		Detail:      fmt.Sprintf("No metadata kind named '%s' is declared.", name),
		Suggestions: Suggest(name, declared),
		Hints:       []string{"List kinds: fieldmeta query --kinds"},
		NoColor:     noColor,
	}
}

// UnknownRecord reports a record type with no known field order
func UnknownRecord(name string, declared []string, noColor bool) Message {
	return Message{
		Title:       "UNKNOWN RECORD: " + name,
		Detail:      fmt.Sprintf("No record named '%s' was compiled.", name),
		Suggestions: Suggest(name, declared),
		Hints:       []string{"Query a single field instead: fieldmeta query <kind> <Type> <field>"},
		NoColor:     noColor,
	}
}

// Success renders a one-line success notice
func Success(w io.Writer, message string, noColor bool) {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	green.Fprintf(w, "✓ %s\n", message)
}
