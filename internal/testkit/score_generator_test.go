package testkit

import (
	"testing"
)

func TestScoreGenerator_Shape(t *testing.T) {
	config := DefaultScoreConfig()
	config.DocumentCount = 5
	config.SystemCount = 6

	store := NewScoreGenerator(config).Generate()
	if store.Len() != 5 {
		t.Fatalf("Expected 5 documents, got %d", store.Len())
	}

	for _, id := range store.DocumentIDs() {
		doc, _ := store.Document(id)
		if doc.Len() != 6 {
			t.Errorf("Document %s: expected 6 systems, got %d", id, doc.Len())
		}
		for _, rec := range doc.Summaries() {
			if len(rec.Scores) != len(config.Metrics) {
				t.Errorf("Document %s: expected %d metrics, got %d", id, len(config.Metrics), len(rec.Scores))
			}
			for m, v := range rec.NormedScores {
				if v < 0 || v > 1 {
					t.Errorf("Normed score %s=%f outside [0,1]", m, v)
				}
			}
		}
		if len(doc.MeanScores) != len(config.Metrics) {
			t.Errorf("Document %s: expected mean scores for every metric", id)
		}
	}
}

func TestScoreGenerator_Deterministic(t *testing.T) {
	config := DefaultScoreConfig()
	a := NewScoreGenerator(config).Generate()
	b := NewScoreGenerator(config).Generate()

	docA, _ := a.Document("3")
	docB, _ := b.Document("3")
	recA, _ := docA.Summary(SystemName(2))
	recB, _ := docB.Summary(SystemName(2))
	for m, v := range recA.Scores {
		if recB.Scores[m] != v {
			t.Errorf("Metric %s differs between runs with the same seed: %f vs %f", m, v, recB.Scores[m])
		}
	}
}

func TestStoreBuilder(t *testing.T) {
	store := NewStoreBuilder().
		Doc("d1").
		System("A", map[string]float64{"x": 1}).
		System("B", map[string]float64{"x": 2}).
		Mean(map[string]float64{"x": 1.5}).
		Doc("d2").
		System("A", map[string]float64{"x": 3}).
		Build()

	if got := store.DocumentIDs(); len(got) != 2 || got[0] != "d1" || got[1] != "d2" {
		t.Fatalf("Unexpected document order %v", got)
	}
	d1, _ := store.Document("d1")
	if d1.Len() != 2 || d1.MeanScores["x"] != 1.5 {
		t.Errorf("Unexpected first document: %d systems, mean %v", d1.Len(), d1.MeanScores)
	}
}
