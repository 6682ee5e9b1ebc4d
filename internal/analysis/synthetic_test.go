package analysis

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"summcorr/domain/scores"
	apperrors "summcorr/internal/errors"
)

// indexedStore gives every summary a "source" score equal to its system index
// so sampled records can be traced back.
func indexedStore(docs, systems int) *scores.ScoreStore {
	store := scores.NewScoreStore()
	for d := 0; d < docs; d++ {
		doc := scores.NewDocumentRecord()
		for s := 0; s < systems; s++ {
			doc.Add(fmt.Sprintf("sys_%d", s), &scores.SummaryRecord{Scores: scores.Scores{
				"source":                        float64(s),
				DefaultSyntheticReferenceMetric: float64(s),
			}})
		}
		store.Add(fmt.Sprintf("%d", d), doc)
	}
	return store
}

func encode(t *testing.T, store *scores.ScoreStore) string {
	t.Helper()
	b, err := json.Marshal(store)
	require.NoError(t, err)
	return string(b)
}

func TestAugment_ZeroReturnsEqualCopy(t *testing.T) {
	store := indexedStore(3, 4)
	out, err := NewSyntheticAugmenterWithSeed(1, SyntheticOptions{}).Augment(store, 0)
	require.NoError(t, err)

	if diff := cmp.Diff(encode(t, store), encode(t, out)); diff != "" {
		t.Errorf("zero augmentation changed content (-want +got):\n%s", diff)
	}

	doc, _ := out.Document("0")
	rec, _ := doc.Summary("sys_0")
	rec.Scores["source"] = 99
	orig, _ := store.Document("0")
	origRec, _ := orig.Summary("sys_0")
	assert.Equal(t, 0.0, origRec.Scores["source"])
}

func TestAugment_LeavesInputUntouched(t *testing.T) {
	store := indexedStore(10, 6)
	before := encode(t, store)

	out, err := NewSyntheticAugmenterWithSeed(7, SyntheticOptions{}).Augment(store, 3)
	require.NoError(t, err)
	assert.Equal(t, before, encode(t, store))

	for _, id := range out.DocumentIDs() {
		doc, _ := out.Document(id)
		require.Equal(t, 9, doc.Len())
		systems := doc.Systems()
		assert.Equal(t, []string{"synth_0", "synth_1", "synth_2"}, systems[6:])

		rec, _ := doc.Summary("synth_0")
		rec.Scores["source"] = -1
	}
	assert.Equal(t, before, encode(t, store), "synthetic records must not alias the input")
}

func TestAugment_SamplesIndependentlyPerDocument(t *testing.T) {
	store := indexedStore(60, 10)
	out, err := NewSyntheticAugmenterWithSeed(3, SyntheticOptions{}).Augment(store, 1)
	require.NoError(t, err)

	sources := make(map[float64]bool)
	for _, id := range out.DocumentIDs() {
		doc, _ := out.Document(id)
		rec, ok := doc.Summary("synth_0")
		require.True(t, ok)
		sources[rec.Scores["source"]] = true
	}
	assert.Greater(t, len(sources), 1, "a synthetic system must mix summaries from different systems")
}

func TestAugment_TopOnlyDrawsFromTopPool(t *testing.T) {
	store := indexedStore(40, 12)
	out, err := NewSyntheticAugmenterWithSeed(11, SyntheticOptions{TopOnly: true}).Augment(store, 4)
	require.NoError(t, err)

	for _, id := range out.DocumentIDs() {
		doc, _ := out.Document(id)
		for i := 0; i < 4; i++ {
			rec, _ := doc.Summary(SyntheticName(i))
			assert.GreaterOrEqual(t, rec.Scores["source"], 7.0, "top 5 of 12 systems have source >= 7")
		}
	}
}

func TestAugment_Deterministic(t *testing.T) {
	store := indexedStore(15, 8)
	a, err := NewSyntheticAugmenterWithSeed(5, SyntheticOptions{}).Augment(store, 2)
	require.NoError(t, err)
	b, err := NewSyntheticAugmenterWithSeed(5, SyntheticOptions{}).Augment(store, 2)
	require.NoError(t, err)
	assert.Equal(t, encode(t, a), encode(t, b))
}

func TestAugment_Errors(t *testing.T) {
	store := indexedStore(2, 2)
	_, err := NewSyntheticAugmenterWithSeed(1, SyntheticOptions{}).Augment(store, -1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = NewSyntheticAugmenterWithSeed(1, SyntheticOptions{TopOnly: true, ReferenceMetric: "missing"}).Augment(store, 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	empty := scores.NewScoreStore()
	empty.Add("1", scores.NewDocumentRecord())
	_, err = NewSyntheticAugmenterWithSeed(1, SyntheticOptions{}).Augment(empty, 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestAddSyntheticSystems_InjectedRand(t *testing.T) {
	store := indexedStore(20, 6)
	a, err := AddSyntheticSystems(store, 2, SyntheticOptions{Rand: rand.New(rand.NewSource(9))})
	require.NoError(t, err)
	b, err := NewSyntheticAugmenterWithSeed(9, SyntheticOptions{}).Augment(store, 2)
	require.NoError(t, err)
	assert.Equal(t, encode(t, b), encode(t, a))
}
