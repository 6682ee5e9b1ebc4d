package run

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summcorr/domain/core"
)

func TestFingerprint_Deterministic(t *testing.T) {
	params := map[string]string{"method": "ktau", "alpha": "0.05", "bands": "0-100"}

	fp1 := Fingerprint(core.RunMatrix, "scores.json", params)
	fp2 := Fingerprint(core.RunMatrix, "scores.json", map[string]string{"bands": "0-100", "alpha": "0.05", "method": "ktau"})
	assert.Equal(t, fp1, fp2, "parameter order must not matter")
	assert.Len(t, fp1, 64)

	assert.NotEqual(t, fp1, Fingerprint(core.RunPairwise, "scores.json", params))
	assert.NotEqual(t, fp1, Fingerprint(core.RunMatrix, "other.json", params))
	params["alpha"] = "0.01"
	assert.NotEqual(t, fp1, Fingerprint(core.RunMatrix, "scores.json", params))
}

func TestNewRun(t *testing.T) {
	params := map[string]string{"k": "5"}
	r := NewRun(core.RunSystemTopK, "scores.json", params)
	params["k"] = "6"

	require.False(t, core.ID(r.ID).IsEmpty())
	assert.Equal(t, "5", r.Parameters["k"], "run keeps its own copy of the parameters")
	assert.Equal(t, Fingerprint(core.RunSystemTopK, "scores.json", map[string]string{"k": "5"}), r.Fingerprint)
	assert.Zero(t, r.Duration())

	r.Complete()
	assert.False(t, r.CompletedAt.Before(r.StartedAt))
}

func TestTable_AddRow(t *testing.T) {
	tbl := Table{Name: "ranges", Header: []string{"metric", "min"}}
	tbl.AddRow("rouge_1_recall", 0.1)
	tbl.AddRow("js-2", 0.2)
	assert.Equal(t, [][]interface{}{{"rouge_1_recall", 0.1}, {"js-2", 0.2}}, tbl.Rows)
}
