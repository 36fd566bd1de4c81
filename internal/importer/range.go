package importer

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrInvalidRange = errors.New("invalid A1 range")

// Range is a parsed A1-notation range. Zero bounds are open: a zero
// EndRow runs to the last row, a zero EndCol to the last column.
type Range struct {
	Sheet    string
	StartCol int
	StartRow int
	EndCol   int
	EndRow   int
}

var cellRefPattern = regexp.MustCompile(`^([A-Za-z]*)([0-9]*)$`)

// ParseRange parses ranges such as "Telescope queues!A3:D",
// "'Building queues'!A2:K", "A1:B10" or a bare sheet name.
func ParseRange(a1 string) (Range, error) {
	a1 = strings.TrimSpace(a1)
	if a1 == "" {
		return Range{}, fmt.Errorf("%w: empty range", ErrInvalidRange)
	}

	r := Range{StartCol: 1, StartRow: 1}

	cells := a1
	if i := strings.LastIndex(a1, "!"); i >= 0 {
		r.Sheet = unquoteSheet(a1[:i])
		cells = a1[i+1:]
	} else if !looksLikeCells(a1) {
		r.Sheet = unquoteSheet(a1)
		return r, nil
	}

	start, end, hasEnd := strings.Cut(cells, ":")
	col, row, err := parseCellRef(start)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q: %v", ErrInvalidRange, a1, err)
	}
	if col > 0 {
		r.StartCol = col
	}
	if row > 0 {
		r.StartRow = row
	}

	if !hasEnd {
		// A single cell, or a single column or row when one part is missing
		r.EndCol, r.EndRow = col, row
		return r, nil
	}

	r.EndCol, r.EndRow, err = parseCellRef(end)
	if err != nil {
		return Range{}, fmt.Errorf("%w: %q: %v", ErrInvalidRange, a1, err)
	}
	if (r.EndCol > 0 && r.EndCol < r.StartCol) || (r.EndRow > 0 && r.EndRow < r.StartRow) {
		return Range{}, fmt.Errorf("%w: %q ends before it starts", ErrInvalidRange, a1)
	}
	return r, nil
}

func unquoteSheet(name string) string {
	if len(name) >= 2 && strings.HasPrefix(name, "'") && strings.HasSuffix(name, "'") {
		return strings.ReplaceAll(name[1:len(name)-1], "''", "'")
	}
	return name
}

func looksLikeCells(s string) bool {
	start, end, hasEnd := strings.Cut(s, ":")
	if _, _, err := parseCellRef(start); err != nil {
		return false
	}
	if hasEnd {
		if _, _, err := parseCellRef(end); err != nil {
			return false
		}
	}
	return strings.ContainsAny(s, "0123456789:")
}

// parseCellRef parses "D", "3" or "D3"; missing parts are returned as zero.
func parseCellRef(ref string) (col, row int, err error) {
	m := cellRefPattern.FindStringSubmatch(ref)
	if m == nil || ref == "" {
		return 0, 0, fmt.Errorf("bad cell reference %q", ref)
	}
	if m[1] != "" {
		col, err = excelize.ColumnNameToNumber(m[1])
		if err != nil {
			return 0, 0, err
		}
	}
	if m[2] != "" {
		row, err = strconv.Atoi(m[2])
		if err != nil || row < 1 {
			return 0, 0, fmt.Errorf("bad row in %q", ref)
		}
	}
	return col, row, nil
}

// Clip extracts the range from a full sheet matrix. Rows keep the shape the
// Sheets API returns: trailing empty cells and trailing empty rows are
// dropped.
func (r Range) Clip(rows [][]string) [][]string {
	var out [][]string
	for i := r.StartRow - 1; i < len(rows); i++ {
		if r.EndRow > 0 && i >= r.EndRow {
			break
		}
		row := rows[i]
		var cells []string
		if r.StartCol-1 < len(row) {
			end := len(row)
			if r.EndCol > 0 && r.EndCol < end {
				end = r.EndCol
			}
			cells = append([]string(nil), row[r.StartCol-1:end]...)
		}
		out = append(out, trimTrailingEmpty(cells))
	}

	for len(out) > 0 && len(out[len(out)-1]) == 0 {
		out = out[:len(out)-1]
	}
	return out
}

func trimTrailingEmpty(cells []string) []string {
	for len(cells) > 0 && cells[len(cells)-1] == "" {
		cells = cells[:len(cells)-1]
	}
	return cells
}
