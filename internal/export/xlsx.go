// Package export renders analysis results as spreadsheet workbooks.
package export

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	sheetName  = "Analysis Results"
	disclaimer = "AI-generated content: verify all extracted values against the source publications before use."
)

// Column widths tuned for the typical content of each field. Anything
// not listed gets defaultColWidth.
var colWidths = map[string]float64{
	"Title":                   50,
	"Full Text Link":          35,
	"Study Design":            30,
	"Intervention":            25,
	"Primary Endpoint":        30,
	"Primary Endpoint Result": 30,
	"Secondary Endpoints":     35,
	"Safety Endpoints":        35,
	"Conclusion":              50,
	"Other Authors":           35,
	"Error":                   40,
	"Raw Response":            50,
}

const defaultColWidth = 18

// WriteXLSX writes a styled workbook with one row per record. Column
// order follows columns; each row map is read by column name, so missing
// keys render as empty cells.
func WriteXLSX(w io.Writer, columns []string, rows []map[string]any) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"4472C4"}},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
			WrapText:   true,
		},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	for i, name := range columns {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("column name: %w", err)
		}
		width := colWidths[name]
		if width == 0 {
			width = defaultColWidth
		}
		if err := f.SetColWidth(sheetName, col, col, width); err != nil {
			return fmt.Errorf("column width: %w", err)
		}
		cell := fmt.Sprintf("%s1", col)
		if err := f.SetCellValue(sheetName, cell, name); err != nil {
			return fmt.Errorf("header cell: %w", err)
		}
	}
	lastCol, err := excelize.ColumnNumberToName(len(columns))
	if err != nil {
		return fmt.Errorf("column name: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("header row style: %w", err)
	}

	for rowIdx, values := range rows {
		row := rowIdx + 2
		for colIdx, name := range columns {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, row)
			if err != nil {
				return fmt.Errorf("cell name: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, values[name]); err != nil {
				return fmt.Errorf("cell value: %w", err)
			}
		}
	}

	noteStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Italic: true, Color: "808080"},
	})
	if err != nil {
		return fmt.Errorf("note style: %w", err)
	}
	noteRow := len(rows) + 3
	noteCell := fmt.Sprintf("A%d", noteRow)
	if err := f.SetCellValue(sheetName, noteCell, disclaimer); err != nil {
		return fmt.Errorf("disclaimer: %w", err)
	}
	stampCell := fmt.Sprintf("A%d", noteRow+1)
	stamp := "Generated on " + time.Now().UTC().Format("2006-01-02 15:04 MST")
	if err := f.SetCellValue(sheetName, stampCell, stamp); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if err := f.SetCellStyle(sheetName, noteCell, stampCell, noteStyle); err != nil {
		return fmt.Errorf("note row style: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}
