package analysis

import (
	"strings"

	"gonum.org/v1/gonum/stat"

	"summcorr/adapters/stats/correlation"
	"summcorr/domain/scores"
	"summcorr/internal/errors"
)

// moverScore is always part of the normalized aggregate alongside the recall metrics
const moverScore = "mover_score"

// FilterByPercentile returns, in system order, the systems whose cutoff
// metric lies within the document's [low, high] percentile band (inclusive).
func FilterByPercentile(doc *scores.DocumentRecord, cutoffMetric string, band scores.Band) ([]string, error) {
	if err := band.Validate(); err != nil {
		return nil, err
	}

	systems := doc.Systems()
	values, err := metricValues(doc, systems, cutoffMetric)
	if err != nil {
		if cutoffMetric == scores.NormalizedAggregate {
			return nil, errors.Wrap(err, "normalized aggregate not precomputed; run WithNormalizedAggregate first")
		}
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}

	lo, err := correlation.Percentile(values, band.Low)
	if err != nil {
		return nil, err
	}
	hi, err := correlation.Percentile(values, band.High)
	if err != nil {
		return nil, err
	}

	kept := make([]string, 0, len(systems))
	for i, name := range systems {
		if values[i] >= lo && values[i] <= hi {
			kept = append(kept, name)
		}
	}
	return kept, nil
}

// WithNormalizedAggregate returns a copy of the store in which every summary
// carries the normalized aggregate score: the mean of its normalized scores
// over every recall-type metric plus mover_score. Summaries that already
// carry the score keep it. The input store is not modified.
func WithNormalizedAggregate(store *scores.ScoreStore) (*scores.ScoreStore, error) {
	out := store.Clone()
	for _, id := range out.DocumentIDs() {
		doc, _ := out.Document(id)
		for _, system := range doc.Systems() {
			rec, _ := doc.Summary(system)
			if _, ok := rec.Scores[scores.NormalizedAggregate]; ok {
				continue
			}
			value, err := normalizedAggregate(rec)
			if err != nil {
				return nil, errors.Wrapf(err, "document %s system %s", id, system)
			}
			rec.Scores[scores.NormalizedAggregate] = value
		}
	}
	return out, nil
}

func normalizedAggregate(rec *scores.SummaryRecord) (float64, error) {
	keys := make([]string, 0, len(rec.Scores)+1)
	for _, name := range rec.Scores.Names() {
		if strings.Contains(name, "recall") {
			keys = append(keys, name)
		}
	}
	keys = append(keys, moverScore)

	values := make([]float64, len(keys))
	for i, k := range keys {
		v, ok := rec.NormedScores[k]
		if !ok {
			return 0, errors.Newf(errors.CodeInvalidInput, "normed score %q missing", k)
		}
		values[i] = v
	}
	return stat.Mean(values, nil), nil
}

// metricValues extracts one metric for the given systems, in order
func metricValues(doc *scores.DocumentRecord, systems []string, metric string) ([]float64, error) {
	values := make([]float64, len(systems))
	for i, name := range systems {
		rec, ok := doc.Summary(name)
		if !ok {
			return nil, errors.Newf(errors.CodeInvalidInput, "system %q not in document", name)
		}
		v, err := rec.Score(metric)
		if err != nil {
			return nil, errors.Wrapf(err, "system %s", name)
		}
		values[i] = v
	}
	return values, nil
}
