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

func TestMetricsList_Consistent(t *testing.T) {
	store := testkit.NewStoreBuilder().
		Doc("1").
		System("A", scores.Scores{"rouge": 1, "bert": 2}).
		System("B", scores.Scores{"bert": 3, "rouge": 4}).
		Doc("2").
		System("A", scores.Scores{"rouge": 5, "bert": 6}).
		Build()

	metrics, err := MetricsList(store)
	require.NoError(t, err)
	assert.Equal(t, []string{"bert", "rouge"}, metrics)
}

func TestMetricsList_InconsistentIsValidationError(t *testing.T) {
	store := testkit.NewStoreBuilder().
		Doc("1").
		System("A", scores.Scores{"rouge": 1, "bert": 2}).
		Doc("2").
		System("A", scores.Scores{"rouge": 5}).
		Build()

	_, err := MetricsList(store)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, apperrors.CodeValidationError, apperrors.GetCode(err))
}

func TestMetricsList_EmptyStore(t *testing.T) {
	_, err := MetricsList(scores.NewScoreStore())
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestMetricsList_GeneratedCorpus(t *testing.T) {
	config := testkit.DefaultScoreConfig()
	store := testkit.NewScoreGenerator(config).Generate()

	metrics, err := MetricsList(store)
	require.NoError(t, err)
	assert.ElementsMatch(t, config.Metrics, metrics)
}

func TestScoreRanges(t *testing.T) {
	store := testkit.NewStoreBuilder().
		Doc("1").
		System("A", scores.Scores{"x": 1}).
		System("B", scores.Scores{"x": 4}).
		Doc("2").
		System("A", scores.Scores{"x": 3}).
		System("C", scores.Scores{"x": 2}).
		Build()

	ranges, err := ScoreRanges(store)
	require.NoError(t, err)
	require.Len(t, ranges, 1)

	r := ranges[0]
	assert.Equal(t, "x", r.Metric)
	assert.Equal(t, 1.0, r.Min)
	assert.InDelta(t, 1.75, r.P25, 1e-12)
	assert.InDelta(t, 2.5, r.Median, 1e-12)
	assert.InDelta(t, 3.25, r.P75, 1e-12)
	assert.Equal(t, 4.0, r.Max)
	assert.InDelta(t, 2.5, r.Mean, 1e-12)
	assert.Equal(t, 4, r.Count)
}

func TestScoreRanges_NonFinite(t *testing.T) {
	store := testkit.NewStoreBuilder().
		Doc("1").
		System("A", scores.Scores{"x": math.NaN()}).
		Build()

	_, err := ScoreRanges(store)
	assert.ErrorIs(t, err, apperrors.ErrNonFinite)
}
