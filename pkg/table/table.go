// Package table pulls a pipe-delimited table out of free-form model output.
//
// Extraction is re-run from scratch on the whole text after every delta, so
// partially streamed rows simply appear once their closing pipe arrives.
package table

import (
	"regexp"
	"strconv"
	"strings"
)

// rowPattern matches from the first to the last pipe of a single line.
var rowPattern = regexp.MustCompile(`\|(.+)\|`)

// Table is the extracted grid.
type Table struct {
	// Header holds the cells of the first matched line. That line is never
	// part of Rows, whether or not it looks like a header.
	Header []string

	// Columns is the cell count of the first data row. Later rows are not
	// reconciled against it.
	Columns int

	Rows [][]string
}

// Extract returns the table found in text.
func Extract(text string) Table {
	matches := rowPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return Table{}
	}

	t := Table{Header: splitCells(matches[0][1])}
	for _, m := range matches[1:] {
		t.Rows = append(t.Rows, splitCells(m[1]))
	}
	if len(t.Rows) > 0 {
		t.Columns = len(t.Rows[0])
	}
	return t
}

func splitCells(inner string) []string {
	cells := strings.Split(inner, "|")
	for i, c := range cells {
		cells[i] = strings.TrimSpace(c)
	}
	return cells
}

// Empty reports whether the table has no data rows.
func (t Table) Empty() bool {
	return len(t.Rows) == 0
}

// Cell returns the cell at row r, column c, or "" when the row is shorter
// or the position is out of range.
func (t Table) Cell(r, c int) string {
	if r < 0 || r >= len(t.Rows) || c < 0 || c >= len(t.Rows[r]) {
		return ""
	}
	return t.Rows[r][c]
}

// Rectangular returns a copy of Rows where every row has exactly Columns
// cells: short rows are padded with "" and long rows are truncated.
func (t Table) Rectangular() [][]string {
	out := make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		fixed := make([]string, t.Columns)
		copy(fixed, row)
		out[i] = fixed
	}
	return out
}

// Titles returns Columns labels for a fixed-column renderer, taken from the
// header where it has them and numbered otherwise.
func (t Table) Titles() []string {
	titles := make([]string, t.Columns)
	for i := range titles {
		if i < len(t.Header) && t.Header[i] != "" {
			titles[i] = t.Header[i]
			continue
		}
		titles[i] = "col " + strconv.Itoa(i+1)
	}
	return titles
}

// Clone returns a deep copy, safe to hand to another goroutine.
func (t Table) Clone() Table {
	c := Table{Columns: t.Columns}
	if t.Header != nil {
		c.Header = append([]string(nil), t.Header...)
	}
	if t.Rows != nil {
		c.Rows = make([][]string, len(t.Rows))
		for i, row := range t.Rows {
			c.Rows[i] = append([]string(nil), row...)
		}
	}
	return c
}
