package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"summcorr/domain/core"
	"summcorr/domain/run"
	"summcorr/domain/scores"
	"summcorr/internal/analysis"
	"summcorr/internal/errors"
	"summcorr/ports"
)

// Source is a loaded score corpus and the name it was loaded from
type Source struct {
	Name  string
	Store *scores.ScoreStore
}

// AnalysisService runs analyses over a score corpus, then exports and
// persists the resulting reports when the corresponding ports are set
type AnalysisService struct {
	repo     ports.ReportRepository
	exporter ports.ReportExporter
	logger   zerolog.Logger
}

// NewAnalysisService creates the service; repo and exporter may be nil
func NewAnalysisService(repo ports.ReportRepository, exporter ports.ReportExporter, logger *zerolog.Logger) *AnalysisService {
	l := zerolog.Nop()
	if logger != nil {
		l = *logger
	}
	return &AnalysisService{repo: repo, exporter: exporter, logger: l}
}

// RangesReport lists the score range of every metric
type RangesReport struct {
	Run    *run.Run
	Ranges []analysis.ScoreRange
}

// Ranges validates the metric set and reports per-metric score ranges
func (s *AnalysisService) Ranges(ctx context.Context, src Source) (*RangesReport, error) {
	r := run.NewRun(core.RunScoreRanges, src.Name, nil)
	ranges, err := analysis.ScoreRanges(src.Store)
	if err != nil {
		return nil, errors.Wrap(err, "score ranges failed")
	}
	report := &RangesReport{Run: r, Ranges: ranges}
	r.Documents = src.Store.Len()
	return report, s.finish(ctx, r, report.Tables())
}

// Tables renders the report
func (r *RangesReport) Tables() []run.Table {
	t := run.Table{
		Name:   "score ranges",
		Header: []string{"metric", "min", "25-perc", "median", "75-perc", "max", "mean"},
	}
	for _, sr := range r.Ranges {
		t.AddRow(sr.Metric, sr.Min, sr.P25, sr.Median, sr.P75, sr.Max, sr.Mean)
	}
	return []run.Table{t}
}

// MatrixReport is a cross-metric matrix with its ignored diagnostics
type MatrixReport struct {
	Run    *run.Run
	Matrix *analysis.CorrelationMatrix
}

// Matrix builds the correlation matrix. Empty opts.Metrics means every
// metric of the corpus. A nas cutoff triggers the normalized aggregate pass.
func (s *AnalysisService) Matrix(ctx context.Context, src Source, opts analysis.MatrixOptions) (*MatrixReport, error) {
	store, metrics, err := s.prepare(src.Store, opts.Metrics, opts.CutoffMetric)
	if err != nil {
		return nil, err
	}
	opts.Metrics = metrics
	if opts.Logger == nil {
		opts.Logger = &s.logger
	}

	r := run.NewRun(core.RunMatrix, src.Name, map[string]string{
		"metrics": strings.Join(metrics, ","),
		"bands":   joinBands(opts.Bands),
		"cutoff":  opts.CutoffMetric,
		"method":  opts.Method.String(),
		"alpha":   formatFloat(opts.Alpha),
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matrix, err := analysis.BuildCorrelationMatrix(store, opts)
	if err != nil {
		return nil, errors.Wrap(err, "correlation matrix failed")
	}
	r.Documents = store.Len()
	r.Ignored = matrix.Ignored
	r.Total = int(matrix.Total)

	s.logger.Info().
		Str("run_id", r.ID.String()).
		Int("ignored", matrix.Ignored).
		Float64("total", matrix.Total).
		Float64("ignored_fraction", matrix.IgnoredFraction()).
		Msg("correlation matrix built")

	report := &MatrixReport{Run: r, Matrix: matrix}
	return report, s.finish(ctx, r, report.Tables())
}

// Tables renders one band x metric grid per row metric plus a diagnostics table
func (r *MatrixReport) Tables() []run.Table {
	m := r.Matrix
	var tables []run.Table
	for _, x := range m.Metrics {
		t := run.Table{
			Name:   fmt.Sprintf("%s %s", m.Method, x),
			Header: append([]string{"band"}, m.Metrics...),
		}
		for i, row := range m.Table(x) {
			cells := make([]interface{}, 0, len(row)+1)
			cells = append(cells, m.Bands[i].String())
			for _, v := range row {
				cells = append(cells, v)
			}
			t.AddRow(cells...)
		}
		tables = append(tables, t)
	}

	diag := run.Table{Name: "ignored", Header: []string{"ignored", "total", "fraction"}}
	diag.AddRow(m.Ignored, m.Total, m.IgnoredFraction())
	return append(tables, diag)
}

// PairwiseReport holds the corpus-level aggregate of every requested pair
type PairwiseReport struct {
	Run     *run.Run
	Results []*analysis.PairwiseResult
}

// Pairwise aggregates document-level Kendall's tau for each pair. No pairs
// means every unordered pair of metrics in the corpus.
func (s *AnalysisService) Pairwise(ctx context.Context, src Source, pairs []analysis.MetricPair, opts analysis.PairwiseOptions) (*PairwiseReport, error) {
	store, metrics, err := s.prepare(src.Store, nil, opts.FilterMetric)
	if err != nil {
		return nil, err
	}
	if len(pairs) == 0 {
		pairs = AllPairs(metrics)
	}
	if opts.Logger == nil {
		opts.Logger = &s.logger
	}

	r := run.NewRun(core.RunPairwise, src.Name, map[string]string{
		"pairs":         joinPairs(pairs),
		"pvalue":        formatFloat(opts.PValueThreshold),
		"filter_metric": opts.FilterMetric,
		"filter_score":  formatFloat(opts.FilterScore),
		"top":           strconv.Itoa(opts.Top),
	})

	report := &PairwiseReport{Run: r}
	for _, pair := range pairs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := analysis.PairwiseCorrelation(store, pair.A, pair.B, opts)
		if err != nil {
			return nil, errors.Wrapf(err, "pair %s", pair.Key())
		}
		s.logger.Debug().
			Str("pair", pair.Key()).
			Float64("mean", res.Mean).
			Int("ignored", res.Ignored).
			Msg("pair aggregated")
		report.Results = append(report.Results, res)
		r.Ignored += res.Ignored
	}
	r.Documents = store.Len()
	r.Total = store.Len() * len(pairs)
	return report, s.finish(ctx, r, report.Tables())
}

// Tables renders the report
func (r *PairwiseReport) Tables() []run.Table {
	t := run.Table{Name: "pairwise", Header: []string{"metric a", "metric b", "mean tau", "retained", "ignored"}}
	for _, res := range r.Results {
		t.AddRow(res.MetricA, res.MetricB, res.Mean, res.Retained, res.Ignored)
	}
	return []run.Table{t}
}

// TopKRequest selects the system-level metrics, the ranking and the pairs to correlate
type TopKRequest struct {
	// Metrics to aggregate; empty means every metric in the corpus.
	Metrics    []string
	WithNAS    bool
	K          int
	RankMetric string
	// Pairs to correlate over the top-k; empty means every unordered pair of Metrics.
	Pairs  []analysis.MetricPair
	Method scores.Method
}

func (req TopKRequest) params() map[string]string {
	return map[string]string{
		"metrics":     strings.Join(req.Metrics, ","),
		"with_nas":    strconv.FormatBool(req.WithNAS),
		"k":           strconv.Itoa(req.K),
		"rank_metric": req.RankMetric,
		"pairs":       joinPairs(req.Pairs),
		"method":      req.Method.String(),
	}
}

// TopKReport is the top-k system table and the metric correlations over it
type TopKReport struct {
	Run          *run.Run
	Metrics      []string
	Systems      *scores.SystemTable
	Top          *scores.SystemTable
	Pairs        []analysis.MetricPair
	Correlations map[string]scores.CorrelationResult
	// SyntheticInTop counts synthetic systems that made the top-k.
	SyntheticInTop int
}

// SystemTopK aggregates system-level scores, selects the top k by the rank
// metric and correlates metric pairs over those systems
func (s *AnalysisService) SystemTopK(ctx context.Context, src Source, req TopKRequest) (*TopKReport, error) {
	r := run.NewRun(core.RunSystemTopK, src.Name, req.params())
	report, err := s.systemTopK(ctx, src.Store, req)
	if err != nil {
		return nil, err
	}
	report.Run = r
	r.Documents = src.Store.Len()
	return report, s.finish(ctx, r, report.Tables())
}

// SyntheticRequest adds synthetic systems before the top-k analysis
type SyntheticRequest struct {
	TopKRequest
	Count   int
	Options analysis.SyntheticOptions
	Seed    int64
}

// SyntheticRobustness augments the corpus with Count synthetic systems and
// reruns the top-k analysis on the result. The loaded corpus is left unchanged.
func (s *AnalysisService) SyntheticRobustness(ctx context.Context, src Source, req SyntheticRequest) (*TopKReport, error) {
	params := req.params()
	params["synthetic_count"] = strconv.Itoa(req.Count)
	params["top_only"] = strconv.FormatBool(req.Options.TopOnly)
	params["seed"] = strconv.FormatInt(req.Seed, 10)
	r := run.NewRun(core.RunSynthetic, src.Name, params)

	augmented, err := analysis.NewSyntheticAugmenterWithSeed(req.Seed, req.Options).Augment(src.Store, req.Count)
	if err != nil {
		return nil, errors.Wrap(err, "synthetic augmentation failed")
	}
	s.logger.Info().
		Str("run_id", r.ID.String()).
		Int("synthetic", req.Count).
		Bool("top_only", req.Options.TopOnly).
		Msg("synthetic systems added")

	report, err := s.systemTopK(ctx, augmented, req.TopKRequest)
	if err != nil {
		return nil, err
	}
	report.Run = r
	for _, system := range report.Top.Systems() {
		if strings.HasPrefix(system, "synth_") {
			report.SyntheticInTop++
		}
	}
	r.Documents = augmented.Len()
	return report, s.finish(ctx, r, report.Tables())
}

func (s *AnalysisService) systemTopK(ctx context.Context, store *scores.ScoreStore, req TopKRequest) (*TopKReport, error) {
	metrics := req.Metrics
	if len(metrics) == 0 {
		all, err := analysis.MetricsList(store)
		if err != nil {
			return nil, err
		}
		metrics = all
	}
	pairs := req.Pairs
	if len(pairs) == 0 {
		pairs = AllPairs(metrics)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	table, err := analysis.SystemLevelScores(store, metrics, req.WithNAS)
	if err != nil {
		return nil, errors.Wrap(err, "system-level aggregation failed")
	}
	top, err := analysis.TopK(table, req.K, req.RankMetric)
	if err != nil {
		return nil, errors.Wrapf(err, "top-%d by %s", req.K, req.RankMetric)
	}
	corr, err := analysis.PairCorrelations(top, pairs, req.Method)
	if err != nil {
		return nil, errors.Wrap(err, "pair correlations failed")
	}

	s.logger.Info().
		Int("systems", table.Len()).
		Int("k", req.K).
		Str("rank_metric", req.RankMetric).
		Int("pairs", len(pairs)).
		Msg("top-k correlations computed")

	return &TopKReport{
		Metrics:      metrics,
		Systems:      table,
		Top:          top,
		Pairs:        pairs,
		Correlations: corr,
	}, nil
}

// Tables renders the top-k systems and the pair correlations
func (r *TopKReport) Tables() []run.Table {
	columns := append([]string(nil), r.Metrics...)
	if len(r.Top.Systems()) > 0 {
		if row, _ := r.Top.Row(r.Top.Systems()[0]); row != nil {
			if _, ok := row[scores.NormalizedAggregate]; ok {
				columns = append(columns, scores.NormalizedAggregate)
			}
		}
	}

	top := run.Table{Name: "top-k systems", Header: append([]string{"system"}, columns...)}
	for _, system := range r.Top.Systems() {
		row, _ := r.Top.Row(system)
		cells := []interface{}{system}
		for _, c := range columns {
			cells = append(cells, row[c])
		}
		top.AddRow(cells...)
	}

	corr := run.Table{Name: "pair correlations", Header: []string{"pair", "value", "p-value"}}
	for _, pair := range r.Pairs {
		c := r.Correlations[pair.Key()]
		corr.AddRow(pair.Key(), c.Value, c.PValue)
	}
	return []run.Table{top, corr}
}

// prepare validates the metric set, defaults metrics to the full list and
// precomputes the normalized aggregate when a filter asks for it
func (s *AnalysisService) prepare(store *scores.ScoreStore, metrics []string, filterMetric string) (*scores.ScoreStore, []string, error) {
	all, err := analysis.MetricsList(store)
	if err != nil {
		return nil, nil, err
	}
	if len(metrics) == 0 {
		metrics = all
	}
	if filterMetric != scores.NormalizedAggregate {
		return store, metrics, nil
	}
	withNAS, err := analysis.WithNormalizedAggregate(store)
	if err != nil {
		return nil, nil, errors.Wrap(err, "normalized aggregate failed")
	}
	return withNAS, metrics, nil
}

// finish completes the run, exports its tables and persists it
func (s *AnalysisService) finish(ctx context.Context, r *run.Run, tables []run.Table) error {
	r.Complete()
	if s.exporter != nil {
		if err := s.exporter.Export(tables); err != nil {
			return errors.Wrapf(err, "export of run %s failed", r.ID)
		}
	}
	if s.repo != nil {
		if err := s.repo.SaveRun(ctx, r); err != nil {
			return errors.Wrapf(err, "persisting run %s failed", r.ID)
		}
	}
	s.logger.Info().
		Str("run_id", r.ID.String()).
		Str("kind", string(r.Kind)).
		Str("fingerprint", r.Fingerprint[:12]).
		Dur("elapsed", r.Duration()).
		Msg("run finished")
	return nil
}

// AllPairs lists every unordered pair of metrics in order
func AllPairs(metrics []string) []analysis.MetricPair {
	var pairs []analysis.MetricPair
	for i := range metrics {
		for j := i + 1; j < len(metrics); j++ {
			pairs = append(pairs, analysis.MetricPair{A: metrics[i], B: metrics[j]})
		}
	}
	return pairs
}

func joinBands(bands []scores.Band) string {
	parts := make([]string, len(bands))
	for i, b := range bands {
		parts[i] = b.String()
	}
	return strings.Join(parts, ",")
}

func joinPairs(pairs []analysis.MetricPair) string {
	parts := make([]string, len(pairs))
	for i, p := range pairs {
		parts[i] = p.Key()
	}
	return strings.Join(parts, ",")
}

func formatFloat(x float64) string {
	return strconv.FormatFloat(x, 'g', -1, 64)
}
