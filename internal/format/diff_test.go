package format

import (
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestDiffUnchanged(t *testing.T) {
	d := Diff("a\nb\n", "a\nb\n")
	if d.Changed {
		t.Fatal("Expected no change")
	}
	if d.UnifiedDiff("x.fmd") != "" {
		t.Error("Expected empty unified diff")
	}
	if d.Stats() != "No changes" {
		t.Errorf("Stats() = %q", d.Stats())
	}
}

func TestDiffLines(t *testing.T) {
	original := "record M {\n    a: Int | 1\n    b: Int\n}\n"
	compiled := "record M {\n    a: Int\n    b: Int\n}\n"

	d := Diff(original, compiled)
	if !d.Changed {
		t.Fatal("Expected a change")
	}

	var deleted, inserted []string
	for _, line := range d.Lines {
		switch line.Op {
		case LineDelete:
			deleted = append(deleted, line.Text)
		case LineInsert:
			inserted = append(inserted, line.Text)
		}
	}
	if len(deleted) != 1 || deleted[0] != "    a: Int | 1" {
		t.Errorf("deleted = %q", deleted)
	}
	if len(inserted) != 1 || inserted[0] != "    a: Int" {
		t.Errorf("inserted = %q", inserted)
	}

	if got := d.Stats(); got != "1 lines added, 1 removed" {
		t.Errorf("Stats() = %q", got)
	}
}

func TestUnifiedDiff(t *testing.T) {
	d := Diff("a\nb\nc\n", "a\nB\nc\nd\n")

	expected := `--- a/x.fmd
+++ b/x.fmd
@@ -2,1 +2,1 @@
-b
+B
@@ -4,0 +4,1 @@
+d
`
	if got := d.UnifiedDiff("x.fmd"); got != expected {
		t.Errorf("Expected:\n%s\nGot:\n%s", expected, got)
	}
}

func TestDiffStringMarksLines(t *testing.T) {
	color.NoColor = true
	defer func() { color.NoColor = false }()

	out := Diff("x\n", "y\n").String()
	if !strings.Contains(out, "- x") || !strings.Contains(out, "+ y") {
		t.Errorf("unexpected diff output:\n%s", out)
	}
}
