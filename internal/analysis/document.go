package analysis

import (
	"math"

	"summcorr/adapters/stats/correlation"
	"summcorr/domain/scores"
	"summcorr/internal/errors"
)

// Cutoff restricts a document's systems to a percentile band of one metric
type Cutoff struct {
	Metric string
	Band   scores.Band
}

// DocumentCorrelation computes the requested statistic for metrics m1 and m2
// across the systems of a single document.
//
// RawMean returns the document's precomputed mean of m1 with p-value 0.
// An undefined Kendall statistic is reported as (0, 1) so callers treat it
// as non-significant.
func DocumentCorrelation(doc *scores.DocumentRecord, m1, m2 string, method scores.Method, cutoff *Cutoff) (scores.CorrelationResult, error) {
	if method == scores.RawMean {
		mean, err := doc.MeanScore(m1)
		if err != nil {
			return scores.CorrelationResult{}, err
		}
		return scores.CorrelationResult{Value: mean, PValue: 0}, nil
	}

	systems := doc.Systems()
	if cutoff != nil && cutoff.Metric != "" {
		filtered, err := FilterByPercentile(doc, cutoff.Metric, cutoff.Band)
		if err != nil {
			return scores.CorrelationResult{}, err
		}
		systems = filtered
	}

	x, err := metricValues(doc, systems, m1)
	if err != nil {
		return scores.CorrelationResult{}, err
	}
	y, err := metricValues(doc, systems, m2)
	if err != nil {
		return scores.CorrelationResult{}, err
	}

	var value, p float64
	switch method {
	case scores.Kendall:
		value, p, err = correlation.Kendall(x, y)
		if err == nil && math.IsNaN(value) {
			return scores.CorrelationResult{Value: 0, PValue: 1}, nil
		}
	case scores.Pearson:
		value, p, err = correlation.Pearson(x, y)
	case scores.Spearman:
		value, p, err = correlation.Spearman(x, y)
	default:
		return scores.CorrelationResult{}, errors.UnsupportedMethod(method.String())
	}
	if err != nil {
		return scores.CorrelationResult{}, err
	}
	return scores.CorrelationResult{Value: value, PValue: p}, nil
}
