// Package instructions loads the system instruction text sent with every
// analysis request.
package instructions

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

// missingCell is rendered for cells a short spreadsheet row does not have.
const missingCell = "NaN"

// Load returns the instruction text stored at path. Spreadsheets (.xlsx,
// .xlsm) have their first sheet rendered as a text grid; any other file is
// read verbatim. An empty path yields empty instructions.
func Load(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return loadSpreadsheet(path)
	default:
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading instructions: %w", err)
		}
		return string(data), nil
	}
}

func loadSpreadsheet(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("opening instructions spreadsheet: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", errors.New("instructions spreadsheet has no sheets")
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return "", fmt.Errorf("reading sheet %q: %w", sheets[0], err)
	}

	return RenderGrid(rows), nil
}

// RenderGrid renders rows as a fixed-width grid. The first row is the header
// and every following row is prefixed with its zero-based index. Columns are
// right-aligned and separated by two spaces.
func RenderGrid(rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	header := rows[0]
	data := rows[1:]

	cols := len(header)
	for _, row := range data {
		cols = max(cols, len(row))
	}
	if cols == 0 {
		return ""
	}

	// Column 0 is the index column.
	grid := make([][]string, 0, len(rows))
	headerLine := make([]string, cols+1)
	for c := range cols {
		headerLine[c+1] = cellAt(header, c, "Unnamed: "+strconv.Itoa(c))
	}
	grid = append(grid, headerLine)
	for i, row := range data {
		line := make([]string, cols+1)
		line[0] = strconv.Itoa(i)
		for c := range cols {
			line[c+1] = cellAt(row, c, missingCell)
		}
		grid = append(grid, line)
	}

	widths := make([]int, cols+1)
	for _, line := range grid {
		for c, cell := range line {
			widths[c] = max(widths[c], len([]rune(cell)))
		}
	}

	var sb strings.Builder
	for i, line := range grid {
		if i > 0 {
			sb.WriteByte('\n')
		}
		for c, cell := range line {
			if c > 0 {
				sb.WriteString("  ")
			}
			pad := widths[c] - len([]rune(cell))
			if c == 0 {
				sb.WriteString(cell)
				sb.WriteString(strings.Repeat(" ", pad))
				continue
			}
			sb.WriteString(strings.Repeat(" ", pad))
			sb.WriteString(cell)
		}
	}

	return sb.String()
}

func cellAt(row []string, c int, fallback string) string {
	if c >= len(row) {
		return fallback
	}
	if row[c] == "" {
		return fallback
	}
	return row[c]
}
