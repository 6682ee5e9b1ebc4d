package excel

import (
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"

	"summcorr/domain/run"
	"summcorr/internal/errors"
	"summcorr/ports"
)

const maxSheetName = 31

// Exporter writes report tables to an xlsx workbook, one sheet per table
type Exporter struct {
	filePath string
	logger   zerolog.Logger
}

var _ ports.ReportExporter = (*Exporter)(nil)

// NewExporter creates an exporter writing to filePath
func NewExporter(filePath string, logger *zerolog.Logger) *Exporter {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &Exporter{filePath: filePath, logger: l}
}

// Export writes tables and saves the workbook, replacing any existing file
func (e *Exporter) Export(tables []run.Table) error {
	if len(tables) == 0 {
		return errors.InvalidInput("no tables to export")
	}

	f := excelize.NewFile()
	defer f.Close()

	used := make(map[string]bool, len(tables))
	for i, t := range tables {
		sheet := uniqueSheetName(sheetName(t.Name), used)
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet); err != nil {
				return errors.Wrap(err, "failed to name first sheet")
			}
		} else if _, err := f.NewSheet(sheet); err != nil {
			return errors.Wrapf(err, "failed to create sheet %s", sheet)
		}
		if err := writeTable(f, sheet, t); err != nil {
			return errors.Wrapf(err, "failed to write sheet %s", sheet)
		}
	}
	f.SetActiveSheet(0)

	if err := f.SaveAs(e.filePath); err != nil {
		return errors.Wrap(err, "failed to save workbook")
	}
	e.logger.Info().Str("file", e.filePath).Int("sheets", len(tables)).Msg("report exported")
	return nil
}

func writeTable(f *excelize.File, sheet string, t run.Table) error {
	for i, h := range t.Header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheet, cell, h); err != nil {
			return err
		}
	}
	for r, row := range t.Rows {
		for c, v := range row {
			cell, _ := excelize.CoordinatesToCellName(c+1, r+2)
			if err := f.SetCellValue(sheet, cell, cellValue(v)); err != nil {
				return err
			}
		}
	}
	return nil
}

// cellValue keeps non-finite floats readable; xlsx has no NaN or Inf number
func cellValue(v interface{}) interface{} {
	if x, ok := v.(float64); ok && (math.IsNaN(x) || math.IsInf(x, 0)) {
		return formatNonFinite(x)
	}
	return v
}

func formatNonFinite(x float64) string {
	switch {
	case math.IsNaN(x):
		return "NaN"
	case x > 0:
		return "Inf"
	default:
		return "-Inf"
	}
}

func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case ':', '\\', '/', '?', '*', '[', ']':
			return '_'
		}
		return r
	}, strings.TrimSpace(name))
	if name == "" {
		name = "report"
	}
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	return name
}

func uniqueSheetName(name string, used map[string]bool) string {
	candidate := name
	for i := 2; used[strings.ToLower(candidate)]; i++ {
		suffix := "_" + strconv.Itoa(i)
		base := name
		if len(base)+len(suffix) > maxSheetName {
			base = base[:maxSheetName-len(suffix)]
		}
		candidate = base + suffix
	}
	used[strings.ToLower(candidate)] = true
	return candidate
}
