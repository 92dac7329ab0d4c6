package ui

import (
	"strings"
	"testing"
)

func TestTruncateTableCellCountsRunes(t *testing.T) {
	value := strings.Repeat("a", tableCellMaxWidth-1) + "é"

	got := TruncateTableCell(value)

	if got != value {
		t.Fatalf("expected value to remain untruncated, got %q", got)
	}
}

func TestTruncateTableCellAddsEllipsis(t *testing.T) {
	value := strings.Repeat("a", tableCellMaxWidth+10)

	got := TruncateTableCell(value)

	if displayWidth(got) != tableCellMaxWidth {
		t.Fatalf("expected width %d, got %d (%q)", tableCellMaxWidth, displayWidth(got), got)
	}
	if !strings.HasSuffix(got, tableCellEllipsis) {
		t.Fatalf("expected ellipsis, got %q", got)
	}
}

func TestTruncateTableCellNormalizesLineBreaks(t *testing.T) {
	value := "Hello\nWorld\r\nAgain\tTab"

	got := TruncateTableCell(value)

	if got != "Hello World Again Tab" {
		t.Fatalf("expected line breaks to normalize, got %q", got)
	}
}

func TestTruncateTableCellIgnoresANSICodes(t *testing.T) {
	value := "\x1b[1m\x1b[36m" + strings.Repeat("a", tableCellMaxWidth) + "\x1b[0m"

	got := TruncateTableCell(value)

	if got != value {
		t.Fatalf("expected value to remain untruncated, got %q", got)
	}
}

func TestFormatTableAlignsColumns(t *testing.T) {
	builder := NewTableBuilder([]string{"ID", "TITLE", "STATUS"}, 2)
	builder.AddRow("a1", "Buy milk", "pending")
	builder.AddRow("b22", "Call\nmom", "completed")

	got := builder.String()

	expected := "" +
		"ID   TITLE     STATUS\n" +
		"a1   Buy milk  pending\n" +
		"b22  Call mom  completed\n"
	if got != expected {
		t.Fatalf("unexpected table:\n%s\nwant:\n%s", got, expected)
	}
	if builder.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", builder.Len())
	}
}

func TestFormatTableMeasuresStyledCells(t *testing.T) {
	styled := "\x1b[1m" + "ab" + "\x1b[0m"
	got := FormatTable([]string{"A", "B"}, [][]string{{styled, "x"}})

	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")
	if displayWidth(lines[1]) != displayWidth("ab  x") {
		t.Fatalf("expected styled cell padded by printable width, got %q", lines[1])
	}
}
