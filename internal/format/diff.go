package format

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/fatih/color"
	diffpatch "github.com/sergi/go-diff/diffmatchpatch"
)

// LineOp is the kind of change a diff line represents
type LineOp int

const (
	LineEqual LineOp = iota
	LineDelete
	LineInsert
)

// DiffLine is one line of a line-level diff
type DiffLine struct {
	Op   LineOp
	Text string
	// Old and New are 1-indexed line numbers on each side; 0 when absent
	Old int
	New int
}

// DiffResult represents the difference between a source and its compiled form
type DiffResult struct {
	Original  string
	Formatted string
	Changed   bool
	Lines     []DiffLine
}

// Diff compares two texts line by line
func Diff(original, formatted string) *DiffResult {
	result := &DiffResult{
		Original:  original,
		Formatted: formatted,
		Changed:   original != formatted,
	}
	if !result.Changed {
		return result
	}

	dmp := diffpatch.New()
	a, b, lines := dmp.DiffLinesToChars(original, formatted)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	oldLine, newLine := 1, 1
	for _, d := range diffs {
		for _, text := range splitLines(d.Text) {
			switch d.Type {
			case diffpatch.DiffEqual:
				result.Lines = append(result.Lines, DiffLine{Op: LineEqual, Text: text, Old: oldLine, New: newLine})
				oldLine++
				newLine++
			case diffpatch.DiffDelete:
				result.Lines = append(result.Lines, DiffLine{Op: LineDelete, Text: text, Old: oldLine})
				oldLine++
			case diffpatch.DiffInsert:
				result.Lines = append(result.Lines, DiffLine{Op: LineInsert, Text: text, New: newLine})
				newLine++
			}
		}
	}

	return result
}

// splitLines splits a diff chunk into lines without the trailing empty one
func splitLines(text string) []string {
	lines := strings.Split(text, "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// String returns a human-readable diff with color highlighting
func (d *DiffResult) String() string {
	if !d.Changed {
		return color.GreenString("No changes")
	}

	var buf bytes.Buffer

	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)

	for _, line := range d.Lines {
		switch line.Op {
		case LineEqual:
			fmt.Fprintf(&buf, "  %s\n", line.Text)
		case LineDelete:
			red.Fprintf(&buf, "- %s\n", line.Text)
		case LineInsert:
			green.Fprintf(&buf, "+ %s\n", line.Text)
		}
	}

	return buf.String()
}

// UnifiedDiff returns a unified diff format string, one hunk per run of changes
func (d *DiffResult) UnifiedDiff(filename string) string {
	if !d.Changed {
		return ""
	}

	var buf bytes.Buffer

	fmt.Fprintf(&buf, "--- a/%s\n", filename)
	fmt.Fprintf(&buf, "+++ b/%s\n", filename)

	for i := 0; i < len(d.Lines); {
		if d.Lines[i].Op == LineEqual {
			i++
			continue
		}

		j := i
		for j < len(d.Lines) && d.Lines[j].Op != LineEqual {
			j++
		}

		oldStart, newStart := hunkStart(d.Lines, i)
		removed, added := 0, 0
		for _, line := range d.Lines[i:j] {
			if line.Op == LineDelete {
				removed++
			} else {
				added++
			}
		}

		fmt.Fprintf(&buf, "@@ -%d,%d +%d,%d @@\n", oldStart, removed, newStart, added)
		for _, line := range d.Lines[i:j] {
			if line.Op == LineDelete {
				fmt.Fprintf(&buf, "-%s\n", line.Text)
			} else {
				fmt.Fprintf(&buf, "+%s\n", line.Text)
			}
		}
		i = j
	}

	return buf.String()
}

// hunkStart finds the old and new line numbers where a run of changes begins
func hunkStart(lines []DiffLine, i int) (int, int) {
	oldStart, newStart := 1, 1
	for _, line := range lines[:i] {
		if line.Op != LineInsert {
			oldStart = line.Old + 1
		}
		if line.Op != LineDelete {
			newStart = line.New + 1
		}
	}
	return oldStart, newStart
}

// Stats returns statistics about the changes
func (d *DiffResult) Stats() string {
	if !d.Changed {
		return "No changes"
	}

	added, removed := 0, 0
	for _, line := range d.Lines {
		switch line.Op {
		case LineInsert:
			added++
		case LineDelete:
			removed++
		}
	}

	return fmt.Sprintf("%d lines added, %d removed", added, removed)
}
