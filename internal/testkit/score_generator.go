package testkit

import (
	"fmt"
	"math/rand"

	"summcorr/domain/scores"
)

// ScoreGeneratorConfig configures the synthetic corpus generator
type ScoreGeneratorConfig struct {
	DocumentCount int      `json:"document_count"`
	SystemCount   int      `json:"system_count"`
	Metrics       []string `json:"metrics"`
	// Noise is the standard deviation of per-metric noise around each
	// system's latent quality.
	Noise float64 `json:"noise"`
	Seed  int64   `json:"seed"`
}

// DefaultScoreConfig returns a small corpus with recall, precision and mover metrics
func DefaultScoreConfig() ScoreGeneratorConfig {
	return ScoreGeneratorConfig{
		DocumentCount: 20,
		SystemCount:   8,
		Metrics: []string{
			"bert_f_score",
			"js-2",
			"litepyramid_recall",
			"mover_score",
			"rouge_1_recall",
			"rouge_2_f_score",
			"rouge_2_recall",
		},
		Noise: 0.05,
		Seed:  42,
	}
}

// ScoreGenerator builds ScoreStores in which every metric tracks a latent
// per-system quality plus gaussian noise
type ScoreGenerator struct {
	config ScoreGeneratorConfig
	rng    *rand.Rand
}

// NewScoreGenerator creates a generator seeded from config.Seed
func NewScoreGenerator(config ScoreGeneratorConfig) *ScoreGenerator {
	return &ScoreGenerator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}
}

// SystemName is the name of the i-th generated system
func SystemName(i int) string {
	return fmt.Sprintf("sys_%02d", i)
}

// Generate builds a store with normed scores and per-document mean scores
func (g *ScoreGenerator) Generate() *scores.ScoreStore {
	quality := make([]float64, g.config.SystemCount)
	for i := range quality {
		quality[i] = 0.2 + 0.6*g.rng.Float64()
	}

	store := scores.NewScoreStore()
	for d := 0; d < g.config.DocumentCount; d++ {
		doc := scores.NewDocumentRecord()
		difficulty := g.rng.NormFloat64() * 0.05

		raw := make([]scores.Scores, g.config.SystemCount)
		for s := 0; s < g.config.SystemCount; s++ {
			row := make(scores.Scores, len(g.config.Metrics))
			for _, m := range g.config.Metrics {
				row[m] = quality[s] + difficulty + g.rng.NormFloat64()*g.config.Noise
			}
			raw[s] = row
		}

		normed := normalizeWithinDocument(raw, g.config.Metrics)
		mean := make(scores.Scores, len(g.config.Metrics))
		for s := 0; s < g.config.SystemCount; s++ {
			doc.Add(SystemName(s), &scores.SummaryRecord{Scores: raw[s], NormedScores: normed[s]})
			for _, m := range g.config.Metrics {
				mean[m] += raw[s][m] / float64(g.config.SystemCount)
			}
		}
		doc.MeanScores = mean
		store.Add(fmt.Sprintf("%d", d), doc)
	}
	return store
}

func normalizeWithinDocument(raw []scores.Scores, metrics []string) []scores.Scores {
	out := make([]scores.Scores, len(raw))
	for i := range out {
		out[i] = make(scores.Scores, len(metrics))
	}
	for _, m := range metrics {
		lo, hi := raw[0][m], raw[0][m]
		for _, row := range raw[1:] {
			if row[m] < lo {
				lo = row[m]
			}
			if row[m] > hi {
				hi = row[m]
			}
		}
		for i, row := range raw {
			if hi == lo {
				out[i][m] = 0
				continue
			}
			out[i][m] = (row[m] - lo) / (hi - lo)
		}
	}
	return out
}

// StoreBuilder assembles small hand-written stores for tests
type StoreBuilder struct {
	store   *scores.ScoreStore
	current *scores.DocumentRecord
}

// NewStoreBuilder starts an empty store
func NewStoreBuilder() *StoreBuilder {
	return &StoreBuilder{store: scores.NewScoreStore()}
}

// Doc starts a new document; following System calls add to it
func (b *StoreBuilder) Doc(id string) *StoreBuilder {
	b.current = scores.NewDocumentRecord()
	b.store.Add(id, b.current)
	return b
}

// System adds a system summary to the current document
func (b *StoreBuilder) System(name string, s scores.Scores) *StoreBuilder {
	b.current.Add(name, &scores.SummaryRecord{Scores: s})
	return b
}

// SystemWithNormed adds a system summary carrying normalized scores
func (b *StoreBuilder) SystemWithNormed(name string, s, normed scores.Scores) *StoreBuilder {
	b.current.Add(name, &scores.SummaryRecord{Scores: s, NormedScores: normed})
	return b
}

// Mean sets the current document's mean scores
func (b *StoreBuilder) Mean(s scores.Scores) *StoreBuilder {
	b.current.MeanScores = s
	return b
}

// Build returns the assembled store
func (b *StoreBuilder) Build() *scores.ScoreStore {
	return b.store
}

// Column builds a document from per-metric value columns, one system per row;
// systems are named sys_00, sys_01, ...
func Column(columns map[string][]float64) *scores.DocumentRecord {
	doc := scores.NewDocumentRecord()
	n := -1
	for _, values := range columns {
		if n < 0 || len(values) < n {
			n = len(values)
		}
	}
	for i := 0; i < n; i++ {
		row := make(scores.Scores, len(columns))
		for m, values := range columns {
			row[m] = values[i]
		}
		doc.Add(SystemName(i), &scores.SummaryRecord{Scores: row})
	}
	return doc
}
