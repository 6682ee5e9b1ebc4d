package analysis

import (
	"math"
	"sort"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"summcorr/adapters/stats/correlation"
	"summcorr/domain/scores"
	"summcorr/internal/errors"
)

// MinRankedSystems is the smallest number of systems a document needs before
// its Kendall tau is used.
const MinRankedSystems = 4

// PairwiseOptions controls the corpus-level Kendall aggregation
type PairwiseOptions struct {
	// PValueThreshold discards documents whose p-value exceeds it.
	PValueThreshold float64
	// FilterMetric, when set, keeps only systems scoring strictly above FilterScore.
	FilterMetric string
	FilterScore  float64
	// Top, when positive, keeps the top-N systems by each metric of the pair
	// and concatenates the two lists. A system ranked highly by both metrics
	// appears twice.
	Top             int
	KeepPerDocument bool
	Logger          *zerolog.Logger
}

// PairwiseResult is the corpus-level aggregate for one metric pair
type PairwiseResult struct {
	MetricA     string             `json:"metric_a"`
	MetricB     string             `json:"metric_b"`
	Mean        float64            `json:"mean"`
	Retained    int                `json:"retained"`
	Ignored     int                `json:"ignored"`
	PerDocument map[string]float64 `json:"per_document,omitempty"`
}

// PairwiseCorrelation averages per-document Kendall's tau between metrics a
// and b. Documents with fewer than MinRankedSystems systems after filtering,
// an undefined statistic or a p-value above the threshold are counted as
// ignored. Mean is NaN when no document is retained.
func PairwiseCorrelation(store *scores.ScoreStore, a, b string, opts PairwiseOptions) (*PairwiseResult, error) {
	logger := loggerOrNop(opts.Logger)
	result := &PairwiseResult{MetricA: a, MetricB: b}
	if opts.KeepPerDocument {
		result.PerDocument = make(map[string]float64)
	}

	taus := make([]float64, 0, store.Len())
	ids := store.DocumentIDs()
	for i, id := range ids {
		if i%100 == 0 {
			logger.Debug().Int("done", i).Int("total", len(ids)).Str("metric_a", a).Str("metric_b", b).Msg("pairwise progress")
		}
		doc, _ := store.Document(id)

		systems, err := pairwiseSystems(doc, a, b, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "document %s", id)
		}
		x, err := metricValues(doc, systems, a)
		if err != nil {
			return nil, errors.Wrapf(err, "document %s", id)
		}
		y, err := metricValues(doc, systems, b)
		if err != nil {
			return nil, errors.Wrapf(err, "document %s", id)
		}

		if len(x) < MinRankedSystems || len(y) < MinRankedSystems {
			result.Ignored++
			continue
		}

		tau, p, err := correlation.Kendall(x, y)
		if err != nil {
			return nil, errors.Wrapf(err, "document %s", id)
		}
		if p > opts.PValueThreshold || math.IsNaN(tau) {
			result.Ignored++
			continue
		}

		taus = append(taus, tau)
		if opts.KeepPerDocument {
			result.PerDocument[id] = tau
		}
	}

	result.Retained = len(taus)
	result.Mean = meanOrNaN(taus)
	return result, nil
}

// pairwiseSystems applies the score filter and the top-N selection
func pairwiseSystems(doc *scores.DocumentRecord, a, b string, opts PairwiseOptions) ([]string, error) {
	systems := doc.Systems()

	if opts.FilterMetric != "" {
		values, err := metricValues(doc, systems, opts.FilterMetric)
		if err != nil {
			return nil, err
		}
		kept := systems[:0]
		for i, name := range systems {
			if values[i] > opts.FilterScore {
				kept = append(kept, name)
			}
		}
		systems = kept
	}

	if opts.Top > 0 {
		topA, err := topSystems(doc, systems, a, opts.Top)
		if err != nil {
			return nil, err
		}
		topB, err := topSystems(doc, systems, b, opts.Top)
		if err != nil {
			return nil, err
		}
		systems = append(topA, topB...)
	}
	return systems, nil
}

// topSystems returns up to n systems ordered by descending metric value;
// ties keep their original order.
func topSystems(doc *scores.DocumentRecord, systems []string, metric string, n int) ([]string, error) {
	values, err := metricValues(doc, systems, metric)
	if err != nil {
		return nil, err
	}
	idx := make([]int, len(systems))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return values[idx[i]] > values[idx[j]]
	})
	if n > len(idx) {
		n = len(idx)
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = systems[idx[i]]
	}
	return out, nil
}

func meanOrNaN(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	return stat.Mean(values, nil)
}

func loggerOrNop(l *zerolog.Logger) zerolog.Logger {
	if l == nil {
		return zerolog.Nop()
	}
	return *l
}
