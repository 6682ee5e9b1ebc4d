package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summcorr/domain/scores"
	apperrors "summcorr/internal/errors"
	"summcorr/internal/testkit"
)

func TestDocumentCorrelation_PerfectDisagreement(t *testing.T) {
	doc := testkit.Column(map[string][]float64{
		"a": {1, 2, 3, 4, 5},
		"b": {5, 4, 3, 2, 1},
	})

	res, err := DocumentCorrelation(doc, "a", "b", scores.Kendall, nil)
	require.NoError(t, err)
	assert.Equal(t, -1.0, res.Value)
	assert.InDelta(t, 2.0/120.0, res.PValue, 1e-12)
}

func TestDocumentCorrelation_DegenerateKendallIsIgnorable(t *testing.T) {
	doc := testkit.Column(map[string][]float64{
		"a": {0.3, 0.3, 0.3, 0.3, 0.3},
		"b": {1, 2, 3, 4, 5},
	})

	res, err := DocumentCorrelation(doc, "a", "b", scores.Kendall, nil)
	require.NoError(t, err)
	assert.Equal(t, scores.CorrelationResult{Value: 0, PValue: 1}, res)
}

func TestDocumentCorrelation_PearsonAndSpearman(t *testing.T) {
	doc := testkit.Column(map[string][]float64{
		"a": {1, 2, 3},
		"b": {1, 3, 2},
	})

	res, err := DocumentCorrelation(doc, "a", "b", scores.Pearson, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.Value, 1e-12)

	res, err = DocumentCorrelation(doc, "a", "b", scores.Spearman, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, res.Value, 1e-12)
}

func TestDocumentCorrelation_RawMean(t *testing.T) {
	doc := testkit.Column(map[string][]float64{"a": {1, 2}, "b": {3, 4}})
	doc.MeanScores = scores.Scores{"a": 1.5, "b": 3.5}

	res, err := DocumentCorrelation(doc, "a", "b", scores.RawMean, nil)
	require.NoError(t, err)
	assert.Equal(t, scores.CorrelationResult{Value: 1.5, PValue: 0}, res)

	_, err = DocumentCorrelation(doc, "c", "b", scores.RawMean, nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDocumentCorrelation_WithCutoff(t *testing.T) {
	doc := testkit.Column(map[string][]float64{
		"a":   {1, 2, 3, 4, 5, 6},
		"b":   {1, 2, 3, 4, 6, 5},
		"cut": {10, 20, 30, 40, 50, 60},
	})

	full, err := DocumentCorrelation(doc, "a", "b", scores.Kendall, &Cutoff{Metric: "cut", Band: scores.FullBand})
	require.NoError(t, err)
	unfiltered, err := DocumentCorrelation(doc, "a", "b", scores.Kendall, nil)
	require.NoError(t, err)
	assert.Equal(t, unfiltered, full)

	// Upper half keeps the last three systems (cut >= 35), whose a and b disagree once.
	top, err := DocumentCorrelation(doc, "a", "b", scores.Kendall, &Cutoff{Metric: "cut", Band: scores.Band{Low: 50, High: 100}})
	require.NoError(t, err)
	assert.InDelta(t, 1.0/3.0, top.Value, 1e-12)
}

func TestDocumentCorrelation_NonFiniteIsFatal(t *testing.T) {
	doc := testkit.Column(map[string][]float64{
		"a": {1, 2, math.Inf(-1), 4},
		"b": {1, 2, 3, 4},
	})

	_, err := DocumentCorrelation(doc, "a", "b", scores.Kendall, nil)
	assert.ErrorIs(t, err, apperrors.ErrNonFinite)
}

func TestDocumentCorrelation_UnsupportedMethod(t *testing.T) {
	doc := testkit.Column(map[string][]float64{"a": {1, 2}, "b": {1, 2}})
	_, err := DocumentCorrelation(doc, "a", "b", scores.Method(42), nil)
	assert.ErrorIs(t, err, apperrors.ErrUnsupportedMethod)
}

func TestFilterByPercentile_FullBandKeepsAll(t *testing.T) {
	doc := testkit.Column(map[string][]float64{"cut": {0.4, 0.1, 0.9, 0.1, 0.5}})

	kept, err := FilterByPercentile(doc, "cut", scores.FullBand)
	require.NoError(t, err)
	assert.Equal(t, doc.Systems(), kept)
}

func TestFilterByPercentile_InclusiveBounds(t *testing.T) {
	doc := testkit.Column(map[string][]float64{"cut": {1, 2, 3, 4, 5}})

	kept, err := FilterByPercentile(doc, "cut", scores.Band{Low: 25, High: 75})
	require.NoError(t, err)
	assert.Equal(t, []string{testkit.SystemName(1), testkit.SystemName(2), testkit.SystemName(3)}, kept)

	_, err = FilterByPercentile(doc, "cut", scores.Band{Low: 80, High: 20})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestFilterByPercentile_NormalizedAggregateNeedsPrecompute(t *testing.T) {
	doc := testkit.Column(map[string][]float64{"cut": {1, 2, 3}})
	_, err := FilterByPercentile(doc, scores.NormalizedAggregate, scores.FullBand)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "WithNormalizedAggregate")
}

func TestWithNormalizedAggregate(t *testing.T) {
	store := testkit.NewStoreBuilder().
		Doc("1").
		SystemWithNormed("A",
			scores.Scores{"rouge_1_recall": 0.4, "litepyramid_recall": 0.3, "mover_score": 0.2, "bert_f_score": 0.9},
			scores.Scores{"rouge_1_recall": 1.0, "litepyramid_recall": 0.5, "mover_score": 0.0, "bert_f_score": 0.7}).
		SystemWithNormed("B",
			scores.Scores{"rouge_1_recall": 0.1, "litepyramid_recall": 0.1, "mover_score": 0.1, "bert_f_score": 0.1},
			scores.Scores{"rouge_1_recall": 0.0, "litepyramid_recall": 0.0, "mover_score": 0.6, "bert_f_score": 0.0}).
		Build()

	augmented, err := WithNormalizedAggregate(store)
	require.NoError(t, err)

	doc, _ := augmented.Document("1")
	a, _ := doc.Summary("A")
	b, _ := doc.Summary("B")
	assert.InDelta(t, 0.5, a.Scores[scores.NormalizedAggregate], 1e-12)
	assert.InDelta(t, 0.2, b.Scores[scores.NormalizedAggregate], 1e-12)

	orig, _ := store.Document("1")
	origA, _ := orig.Summary("A")
	_, present := origA.Scores[scores.NormalizedAggregate]
	assert.False(t, present, "input store must not gain the derived metric")

	kept, err := FilterByPercentile(doc, scores.NormalizedAggregate, scores.Band{Low: 50, High: 100})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, kept)
}

func TestWithNormalizedAggregate_MissingNormedScore(t *testing.T) {
	store := testkit.NewStoreBuilder().
		Doc("1").
		SystemWithNormed("A", scores.Scores{"rouge_1_recall": 0.4}, scores.Scores{"rouge_1_recall": 1.0}).
		Build()

	_, err := WithNormalizedAggregate(store)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}
