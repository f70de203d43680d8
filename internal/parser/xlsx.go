package parser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// parseXLSX renders each sheet as tab-separated rows. Sheets map to
// pages in workbook order; empty sheets are dropped and the remaining
// ones renumbered.
func parseXLSX(filename string, data []byte) ([]Page, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ParseError{Filename: filename, Format: "xlsx", Err: err}
	}
	defer f.Close()

	var sheets []string
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, &ParseError{Filename: filename, Format: "xlsx",
				Err: fmt.Errorf("sheet '%s': %w", sheet, err)}
		}
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("# %s\n", sheet))
		for _, row := range rows {
			if len(row) == 0 {
				continue
			}
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteString("\n")
		}
		if len(rows) == 0 {
			sheets = append(sheets, "")
			continue
		}
		sheets = append(sheets, sb.String())
	}

	return renumber(sheets), nil
}
