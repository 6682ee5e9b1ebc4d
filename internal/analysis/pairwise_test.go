package analysis

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summcorr/domain/scores"
	"summcorr/internal/testkit"
)

func TestPairwiseCorrelation_IgnoresSmallAndInsignificantDocuments(t *testing.T) {
	store := testkit.NewStoreBuilder().
		// 5 systems, perfect agreement: tau 1, p = 2/120
		Doc("agree").
		System("A", scores.Scores{"a": 1, "b": 1}).
		System("B", scores.Scores{"a": 2, "b": 2}).
		System("C", scores.Scores{"a": 3, "b": 3}).
		System("D", scores.Scores{"a": 4, "b": 4}).
		System("E", scores.Scores{"a": 5, "b": 5}).
		// only 3 systems
		Doc("small").
		System("A", scores.Scores{"a": 1, "b": 1}).
		System("B", scores.Scores{"a": 2, "b": 2}).
		System("C", scores.Scores{"a": 3, "b": 3}).
		// constant metric: undefined tau
		Doc("constant").
		System("A", scores.Scores{"a": 1, "b": 1}).
		System("B", scores.Scores{"a": 1, "b": 2}).
		System("C", scores.Scores{"a": 1, "b": 3}).
		System("D", scores.Scores{"a": 1, "b": 4}).
		// one swap among 4: p = 2/6 > 0.05
		Doc("weak").
		System("A", scores.Scores{"a": 1, "b": 2}).
		System("B", scores.Scores{"a": 2, "b": 1}).
		System("C", scores.Scores{"a": 3, "b": 3}).
		System("D", scores.Scores{"a": 4, "b": 4}).
		Build()

	res, err := PairwiseCorrelation(store, "a", "b", PairwiseOptions{PValueThreshold: 0.05, KeepPerDocument: true})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.Mean)
	assert.Equal(t, 3, res.Ignored)
	assert.Equal(t, 1, res.Retained)
	assert.Equal(t, map[string]float64{"agree": 1}, res.PerDocument)
}

func TestPairwiseCorrelation_NothingRetainedIsNaN(t *testing.T) {
	store := testkit.NewStoreBuilder().
		Doc("1").
		System("A", scores.Scores{"a": 1, "b": 1}).
		Build()

	res, err := PairwiseCorrelation(store, "a", "b", PairwiseOptions{PValueThreshold: 1})
	require.NoError(t, err)
	assert.True(t, math.IsNaN(res.Mean))
	assert.Equal(t, 1, res.Ignored)
	assert.Nil(t, res.PerDocument)
}

func TestPairwiseCorrelation_FilterIsStrict(t *testing.T) {
	doc := testkit.Column(map[string][]float64{
		"a": {1, 2, 3, 4, 5},
		"b": {1, 2, 3, 4, 5},
		"f": {0.5, 0.6, 0.7, 0.8, 0.9},
	})
	store := scores.NewScoreStore()
	store.Add("1", doc)

	// f > 0.5 leaves four systems
	res, err := PairwiseCorrelation(store, "a", "b", PairwiseOptions{PValueThreshold: 1, FilterMetric: "f", FilterScore: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Ignored)

	// f > 0.6 leaves three
	res, err = PairwiseCorrelation(store, "a", "b", PairwiseOptions{PValueThreshold: 1, FilterMetric: "f", FilterScore: 0.6})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Ignored)
}

func TestPairwiseCorrelation_TopConcatenatesBothRankings(t *testing.T) {
	store := testkit.NewStoreBuilder().
		Doc("1").
		System("A", scores.Scores{"a": 5, "b": 1}).
		System("B", scores.Scores{"a": 4, "b": 2}).
		System("C", scores.Scores{"a": 3, "b": 3}).
		System("D", scores.Scores{"a": 2, "b": 4}).
		System("E", scores.Scores{"a": 1, "b": 5}).
		Build()

	// top-2 by a is [A B], by b is [E D]; no system is in both, yet the
	// combined list of four still yields a correlation.
	res, err := PairwiseCorrelation(store, "a", "b", PairwiseOptions{PValueThreshold: 0.1, Top: 2})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Ignored)
	assert.Equal(t, -1.0, res.Mean)
}

func TestPairwiseSystems_DuplicatesSharedTopSystems(t *testing.T) {
	doc := scores.NewDocumentRecord()
	doc.Add("A", &scores.SummaryRecord{Scores: scores.Scores{"a": 5, "b": 5}})
	doc.Add("B", &scores.SummaryRecord{Scores: scores.Scores{"a": 4, "b": 4}})
	doc.Add("C", &scores.SummaryRecord{Scores: scores.Scores{"a": 3, "b": 3}})

	systems, err := pairwiseSystems(doc, "a", "b", PairwiseOptions{Top: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "A", "B"}, systems)
}

func TestTopSystems_StableTies(t *testing.T) {
	doc := testkit.Column(map[string][]float64{"a": {1, 3, 3, 2, 3}})
	top, err := topSystems(doc, doc.Systems(), "a", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{testkit.SystemName(1), testkit.SystemName(2), testkit.SystemName(4)}, top)

	all, err := topSystems(doc, doc.Systems(), "a", 10)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}
