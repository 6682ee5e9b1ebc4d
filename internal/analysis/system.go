package analysis

import (
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"summcorr/adapters/stats/correlation"
	"summcorr/domain/scores"
	"summcorr/internal/errors"
)

// SystemLevelScores averages each system's per-document scores for every
// metric over the documents in which the system appears. Systems are ordered
// by first appearance.
//
// withNAS adds the normalized aggregate: each metric's per-system means are
// min-max scaled to [0, 1] across systems and averaged over the metric list.
func SystemLevelScores(store *scores.ScoreStore, metrics []string, withNAS bool) (*scores.SystemTable, error) {
	if withNAS && len(metrics) == 0 {
		return nil, errors.InvalidInput("normalized aggregate needs at least one metric")
	}

	var order []string
	samples := make(map[string]map[string][]float64)
	for _, id := range store.DocumentIDs() {
		doc, _ := store.Document(id)
		for _, system := range doc.Systems() {
			rec, _ := doc.Summary(system)
			bySystem, ok := samples[system]
			if !ok {
				bySystem = make(map[string][]float64, len(metrics))
				samples[system] = bySystem
				order = append(order, system)
			}
			for _, m := range metrics {
				v, err := rec.Score(m)
				if err != nil {
					return nil, errors.Wrapf(err, "document %s system %s", id, system)
				}
				bySystem[m] = append(bySystem[m], v)
			}
		}
	}

	table := scores.NewSystemTable()
	for _, system := range order {
		row := make(scores.Scores, len(metrics)+1)
		for _, m := range metrics {
			row[m] = stat.Mean(samples[system][m], nil)
		}
		table.Set(system, row)
	}

	if withNAS && table.Len() > 0 {
		if err := addSystemNAS(table, metrics); err != nil {
			return nil, err
		}
	}
	return table, nil
}

func addSystemNAS(table *scores.SystemTable, metrics []string) error {
	systems := table.Systems()
	lo := make(map[string]float64, len(metrics))
	span := make(map[string]float64, len(metrics))
	for _, m := range metrics {
		column := make([]float64, len(systems))
		for i, s := range systems {
			row, _ := table.Row(s)
			column[i] = row[m]
		}
		colMin, colMax := floats.Min(column), floats.Max(column)
		if colMax == colMin || math.IsNaN(colMax-colMin) {
			return errors.NonFinite("metric " + m + " has no spread across systems; cannot normalize")
		}
		lo[m] = colMin
		span[m] = colMax - colMin
	}

	for _, s := range systems {
		row, _ := table.Row(s)
		normed := make([]float64, len(metrics))
		for i, m := range metrics {
			normed[i] = (row[m] - lo[m]) / span[m]
		}
		row[scores.NormalizedAggregate] = stat.Mean(normed, nil)
	}
	return nil
}

// TopK returns the k systems with the highest value of metric, in descending
// order. Ties keep the table's order. Fewer than k systems yields all of them.
func TopK(table *scores.SystemTable, k int, metric string) (*scores.SystemTable, error) {
	if k < 0 {
		return nil, errors.Newf(errors.CodeInvalidInput, "k must be non-negative, got %d", k)
	}

	systems := table.Systems()
	values := make(map[string]float64, len(systems))
	for _, s := range systems {
		v, err := table.Value(s, metric)
		if err != nil {
			return nil, err
		}
		values[s] = v
	}
	sort.SliceStable(systems, func(i, j int) bool {
		return values[systems[i]] > values[systems[j]]
	})
	if k < len(systems) {
		systems = systems[:k]
	}

	top := scores.NewSystemTable()
	for _, s := range systems {
		row, _ := table.Row(s)
		top.Set(s, row.Clone())
	}
	return top, nil
}

// MetricPair names two metrics to correlate
type MetricPair struct {
	A string `json:"a" yaml:"a"`
	B string `json:"b" yaml:"b"`
}

// Key joins the pair as "a_b"
func (p MetricPair) Key() string {
	return strings.Join([]string{p.A, p.B}, "_")
}

// PairCorrelations correlates each metric pair across the systems of the
// table. Only Pearson and Kendall are supported.
func PairCorrelations(table *scores.SystemTable, pairs []MetricPair, method scores.Method) (map[string]scores.CorrelationResult, error) {
	var compute func(x, y []float64) (float64, float64, error)
	switch method {
	case scores.Pearson:
		compute = correlation.Pearson
	case scores.Kendall:
		compute = correlation.Kendall
	default:
		return nil, errors.UnsupportedMethod(method.String())
	}

	systems := table.Systems()
	out := make(map[string]scores.CorrelationResult, len(pairs))
	for _, pair := range pairs {
		x := make([]float64, len(systems))
		y := make([]float64, len(systems))
		for i, s := range systems {
			var err error
			if x[i], err = table.Value(s, pair.A); err != nil {
				return nil, err
			}
			if y[i], err = table.Value(s, pair.B); err != nil {
				return nil, err
			}
		}
		value, p, err := compute(x, y)
		if err != nil {
			return nil, errors.Wrapf(err, "pair %s", pair.Key())
		}
		out[pair.Key()] = scores.CorrelationResult{Value: value, PValue: p}
	}
	return out, nil
}
