package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Excel caps sheet names at 31 characters.
const maxSheetName = 31

// ExcelWorkbook renders report sheets with excelize. The header row is
// bold and frozen so long booking lists stay readable when scrolled.
type ExcelWorkbook struct {
	file       *excelize.File
	sheetCount int
}

// NewExcelWorkbook creates an empty workbook.
func NewExcelWorkbook() ReportWriter {
	return &ExcelWorkbook{file: excelize.NewFile()}
}

// WriteSheet writes a complete sheet: the header row, then the data rows
// beneath it. The first sheet takes over the workbook's default one.
func (w *ExcelWorkbook) WriteSheet(name string, columns []string, rows [][]any) error {
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	if w.sheetCount == 0 {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("name sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	w.sheetCount++

	header := make([]any, len(columns))
	for i, c := range columns {
		header[i] = c
	}
	if err := w.file.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if bold, err := w.file.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(columns), 1)
		_ = w.file.SetCellStyle(name, "A1", last, bold)
	}
	_ = w.file.SetPanes(name, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	})

	for i := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := w.file.SetSheetRow(name, cell, &rows[i]); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if len(columns) > 0 {
		if lastCol, err := excelize.ColumnNumberToName(len(columns)); err == nil {
			_ = w.file.SetColWidth(name, "A", lastCol, 16)
		}
	}
	return nil
}

// Save writes the workbook to out.
func (w *ExcelWorkbook) Save(out io.Writer) error {
	return w.file.Write(out)
}

// Close releases the workbook's resources.
func (w *ExcelWorkbook) Close() error {
	return w.file.Close()
}
