package excel

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"summcorr/domain/run"
)

func TestExporter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")

	ranges := run.Table{Name: "score ranges", Header: []string{"metric", "min", "max"}}
	ranges.AddRow("rouge_1_recall", 0.1, 0.9)
	ranges.AddRow("js-2", 0.25, 0.5)

	pairwise := run.Table{Name: "pairwise", Header: []string{"a", "b", "mean", "ignored"}}
	pairwise.AddRow("rouge_1_recall", "js-2", math.NaN(), 12)

	require.NoError(t, NewExporter(path, nil).Export([]run.Table{ranges, pairwise}))

	tables, err := NewWorkbookReader(path).Read()
	require.NoError(t, err)
	require.Len(t, tables, 2)

	assert.Equal(t, "score ranges", tables[0].Name)
	assert.Equal(t, []string{"metric", "min", "max"}, tables[0].Header)
	require.Len(t, tables[0].Rows, 2)
	assert.Equal(t, []interface{}{"js-2", "0.25", "0.5"}, tables[0].Rows[1])

	assert.Equal(t, "pairwise", tables[1].Name)
	assert.Equal(t, []interface{}{"rouge_1_recall", "js-2", "NaN", "12"}, tables[1].Rows[0])
}

func TestExporter_SheetNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.xlsx")
	long := "kendall matrix for litepyramid_recall at 0-100"

	err := NewExporter(path, nil).Export([]run.Table{
		{Name: long, Header: []string{"x"}},
		{Name: long, Header: []string{"x"}},
		{Name: "a/b:c", Header: []string{"x"}},
		{Name: "", Header: []string{"x"}},
	})
	require.NoError(t, err)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	sheets := f.GetSheetList()
	require.Len(t, sheets, 4)
	assert.Equal(t, long[:maxSheetName], sheets[0])
	assert.Len(t, sheets[1], maxSheetName)
	assert.NotEqual(t, sheets[0], sheets[1])
	assert.Equal(t, "a_b_c", sheets[2])
	assert.Equal(t, "report", sheets[3])
}

func TestExporter_NoTables(t *testing.T) {
	err := NewExporter(filepath.Join(t.TempDir(), "empty.xlsx"), nil).Export(nil)
	assert.Error(t, err)
}

func TestWorkbookReader_MissingFile(t *testing.T) {
	_, err := NewWorkbookReader(filepath.Join(t.TempDir(), "missing.xlsx")).Read()
	assert.Error(t, err)
}
