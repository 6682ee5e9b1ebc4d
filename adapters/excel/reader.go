package excel

import (
	"os"

	"github.com/xuri/excelize/v2"

	"summcorr/domain/run"
	"summcorr/internal/errors"
)

// WorkbookReader reads exported report workbooks back into tables
type WorkbookReader struct {
	filePath string
}

// NewWorkbookReader creates a reader for filePath
func NewWorkbookReader(filePath string) *WorkbookReader {
	return &WorkbookReader{filePath: filePath}
}

// Read returns every sheet in workbook order. The first row of a sheet is its
// header; cells come back as their displayed strings.
func (r *WorkbookReader) Read() ([]run.Table, error) {
	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, errors.Newf(errors.CodeInvalidInput, "workbook not found: %s", r.filePath)
	}

	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open workbook")
	}
	defer f.Close()

	var tables []run.Table
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read sheet %s", sheet)
		}
		t := run.Table{Name: sheet}
		if len(rows) > 0 {
			t.Header = rows[0]
		}
		for _, row := range rows[min(1, len(rows)):] {
			cells := make([]interface{}, len(row))
			for i, v := range row {
				cells[i] = v
			}
			t.Rows = append(t.Rows, cells)
		}
		tables = append(tables, t)
	}
	return tables, nil
}
