package analysis

import (
	"fmt"
	"strings"

	"github.com/montanaflynn/stats"

	"summcorr/adapters/stats/correlation"
	"summcorr/domain/scores"
	"summcorr/internal/errors"
)

// MetricsList confirms that every summary in the store exposes the same set
// of metric names and returns that set sorted.
func MetricsList(store *scores.ScoreStore) ([]string, error) {
	var shared []string
	seen := make(map[string]struct{})

	for _, id := range store.DocumentIDs() {
		doc, _ := store.Document(id)
		for _, rec := range doc.Summaries() {
			names := rec.Scores.Names()
			key := strings.Join(names, "\x00")
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			if len(seen) > 1 {
				return nil, errors.ValidationError(fmt.Sprintf(
					"all system summary score dicts should have the same set of metrics: document %s has %v, expected %v",
					id, names, shared))
			}
			shared = names
		}
	}

	if len(seen) == 0 {
		return nil, errors.InvalidInput("score store has no system summaries")
	}
	return shared, nil
}

// ScoreRange summarizes one metric's distribution over every summary in the corpus
type ScoreRange struct {
	Metric string  `json:"metric"`
	Min    float64 `json:"min"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	Count  int     `json:"count"`
}

// ScoreRanges computes min, quartiles, max and mean for each metric
func ScoreRanges(store *scores.ScoreStore) ([]ScoreRange, error) {
	metrics, err := MetricsList(store)
	if err != nil {
		return nil, err
	}

	ranges := make([]ScoreRange, 0, len(metrics))
	for _, m := range metrics {
		values := make([]float64, 0, store.Len())
		for _, id := range store.DocumentIDs() {
			doc, _ := store.Document(id)
			for _, rec := range doc.Summaries() {
				values = append(values, rec.Scores[m])
			}
		}

		p25, err := correlation.Percentile(values, 25)
		if err != nil {
			return nil, errors.Wrapf(err, "metric %s", m)
		}
		p75, err := correlation.Percentile(values, 75)
		if err != nil {
			return nil, errors.Wrapf(err, "metric %s", m)
		}
		lo, _ := stats.Min(values)
		hi, _ := stats.Max(values)
		median, _ := stats.Median(values)
		mean, _ := stats.Mean(values)

		ranges = append(ranges, ScoreRange{
			Metric: m,
			Min:    lo,
			P25:    p25,
			Median: median,
			P75:    p75,
			Max:    hi,
			Mean:   mean,
			Count:  len(values),
		})
	}
	return ranges, nil
}
