package format_test

import (
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"summcorr/domain/run"
	"summcorr/internal/format"
)

func TestASCII_BasicTable(t *testing.T) {
	tb := format.NewTable(format.ASCII)
	tb.Header("Metric", "Min", "Max")
	tb.Row("rouge_1_recall", 0.1, 0.95)
	tb.Row("js-2", 0.25, math.NaN())
	out := tb.String()

	assert.Contains(t, out, "Metric")
	assert.NotContains(t, out, "METRIC", "headers keep their case")
	assert.Contains(t, out, "rouge_1_recall")
	assert.Contains(t, out, "0.9500")
	assert.Contains(t, out, "nan")
	assert.Contains(t, out, "───", "ASCII mode draws box characters")
}

func TestMarkdown_WithFooter(t *testing.T) {
	tb := format.NewTable(format.Markdown)
	tb.Header("Pair", "Ignored")
	tb.Row("a/b", 3)
	tb.Row("a/c", 5)
	tb.Footer("TOTAL", 8)
	out := tb.String()

	assert.Contains(t, out, "| Pair")
	assert.Contains(t, out, "---")
	assert.Contains(t, out, "TOTAL")
	assert.Contains(t, out, "8")
}

func TestRender_ReportTable(t *testing.T) {
	tbl := run.Table{Name: "top-k", Header: []string{"system", "nas"}}
	tbl.AddRow("sys_01", 0.75)
	tbl.AddRow("sys_04", 0.5)

	out := format.Render(tbl, format.ASCII)
	assert.Contains(t, out, "top-k")
	assert.Contains(t, out, "nas")
	assert.NotContains(t, out, "NAS")
	assert.Less(t, strings.Index(out, "sys_01"), strings.Index(out, "sys_04"), "row order is kept")
	assert.Contains(t, out, "0.7500")
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, format.Markdown, format.ParseMode("Markdown"))
	assert.Equal(t, format.Markdown, format.ParseMode("md"))
	assert.Equal(t, format.ASCII, format.ParseMode(""))
	assert.Equal(t, format.ASCII, format.ParseMode("ascii"))
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "0.3333", format.FmtFloat(1.0/3.0))
	assert.Equal(t, "-inf", format.FmtFloat(math.Inf(-1)))
	assert.Equal(t, "12.5%", format.FmtPercent(0.125))
	assert.Equal(t, "nan", format.FmtPercent(math.NaN()))
	assert.Equal(t, "250ms", format.FmtDuration(250*time.Millisecond))
	assert.Equal(t, "42s", format.FmtDuration(42*time.Second))
	assert.Equal(t, "2m 5s", format.FmtDuration(125*time.Second))
}
