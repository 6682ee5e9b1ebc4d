package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"summcorr/adapters/excel"
	"summcorr/adapters/loader"
	"summcorr/adapters/postgres"
	"summcorr/app"
	"summcorr/domain/core"
	"summcorr/domain/run"
	"summcorr/domain/scores"
	"summcorr/internal/analysis"
	"summcorr/internal/config"
	"summcorr/internal/errors"
	"summcorr/internal/format"
	"summcorr/internal/logging"
	"summcorr/internal/testkit"
	"summcorr/ports"
)

// globalFlags override the environment configuration
type globalFlags struct {
	scoresFile string
	profile    string
	xlsx       string
	format     string
	logLevel   string
	persist    bool
}

// env is what every command needs once configuration is resolved
type env struct {
	cfg     *config.Config
	profile *config.Profile
	logger  zerolog.Logger
	db      *sqlx.DB
	repo    ports.ReportRepository
	out     io.Writer
	mode    format.Mode
}

func main() {
	// a missing .env is fine; the environment may already be set
	_ = godotenv.Load()

	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error [%s]: %v\n", errors.GetCode(err), err)
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	flags := &globalFlags{}
	e := &env{out: out}

	rootCmd := &cobra.Command{
		Use:           "summcorr",
		Short:         "Correlation analysis between summarization evaluation metrics",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.setup(cmd.Context(), flags)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if e.db != nil {
				return e.db.Close()
			}
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.scoresFile, "scores", "", "Score file (.json or .json.gz); overrides SCORES_FILE")
	pf.StringVar(&flags.profile, "profile", "", "YAML analysis profile; overrides ANALYSIS_PROFILE")
	pf.StringVar(&flags.xlsx, "xlsx", "", "Also export the report to this workbook; overrides REPORT_XLSX")
	pf.StringVar(&flags.format, "format", "", "Table format: ascii|markdown; overrides REPORT_FORMAT")
	pf.StringVar(&flags.logLevel, "log-level", "", "Log level; overrides LOG_LEVEL")
	pf.BoolVar(&flags.persist, "persist", true, "Persist runs when DATABASE_URL is set")

	rootCmd.AddCommand(
		newRangesCmd(e),
		newMatrixCmd(e),
		newPairwiseCmd(e),
		newTopKCmd(e),
		newSynthCmd(e),
		newRunsCmd(e),
		newReportCmd(e),
		newGenerateCmd(e),
	)
	return rootCmd
}

func (e *env) setup(ctx context.Context, flags *globalFlags) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if flags.scoresFile != "" {
		cfg.Scores.File = flags.scoresFile
	}
	if flags.profile != "" {
		cfg.ProfilePath = flags.profile
	}
	if flags.xlsx != "" {
		cfg.Report.XLSX = flags.xlsx
	}
	if flags.format != "" {
		cfg.Report.Format = flags.format
	}
	if flags.logLevel != "" {
		cfg.Logging.Level = flags.logLevel
	}
	if !flags.persist {
		cfg.Database.URL = ""
	}
	e.cfg = cfg
	e.mode = format.ParseMode(cfg.Report.Format)
	e.logger = logging.New(cfg.Logging.Level, os.Stderr)

	if e.profile, err = cfg.Profile(); err != nil {
		return err
	}

	if cfg.PersistenceEnabled() {
		db, err := postgres.Open(ctx, cfg.Database.Driver, cfg.Database.URL)
		if err != nil {
			return err
		}
		e.db = db
		e.repo = postgres.NewReportRepository(db)
		e.logger.Debug().Str("driver", cfg.Database.Driver).Msg("run persistence enabled")
	}
	return nil
}

func (e *env) service() *app.AnalysisService {
	var exporter ports.ReportExporter
	if e.cfg.Report.XLSX != "" {
		exporter = excel.NewExporter(e.cfg.Report.XLSX, &e.logger)
	}
	l := logging.Component(e.logger, "analysis")
	return app.NewAnalysisService(e.repo, exporter, &l)
}

func (e *env) source() (app.Source, error) {
	if e.cfg.Scores.File == "" {
		return app.Source{}, errors.ConfigInvalid("no score file: pass --scores or set SCORES_FILE")
	}
	store, err := loader.NewScoreReader(e.cfg.Scores.File, &e.logger).Read()
	if err != nil {
		return app.Source{}, err
	}
	return app.Source{Name: e.cfg.Scores.File, Store: store}, nil
}

func (e *env) print(r *run.Run, tables []run.Table) {
	for _, t := range tables {
		fmt.Fprintln(e.out, format.Render(t, e.mode))
		fmt.Fprintln(e.out)
	}
	if r != nil {
		fmt.Fprintf(e.out, "run %s (%s) in %s\n", r.ID, r.Kind, format.FmtDuration(r.Duration()))
	}
}

func newRangesCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "ranges",
		Short: "Validate the metric set and print score ranges per metric",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := e.source()
			if err != nil {
				return err
			}
			report, err := e.service().Ranges(cmd.Context(), src)
			if err != nil {
				return err
			}
			e.print(report.Run, report.Tables())
			return nil
		},
	}
}

func newMatrixCmd(e *env) *cobra.Command {
	var method, cutoff string
	var bands []string

	cmd := &cobra.Command{
		Use:   "matrix [metrics...]",
		Short: "Average document-level correlation between every metric pair, per percentile band",
		Long: `Compute the cross-metric correlation matrix. Systems are filtered per
document to the percentile band of the cutoff metric before correlating.
Values with p above the profile alpha are ignored.

Example: summcorr matrix --scores scores.json --method ktau --cutoff nas --band 0-100 --band 50-100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := e.profile
			if method != "" {
				p.Method = method
			}
			if cutoff != "" {
				p.CutoffMetric = cutoff
			}
			if len(bands) > 0 {
				parsed, err := parseBands(bands)
				if err != nil {
					return err
				}
				p.Bands = parsed
			}
			if err := p.Validate(); err != nil {
				return err
			}
			opts, err := p.MatrixOptions(args)
			if err != nil {
				return err
			}

			src, err := e.source()
			if err != nil {
				return err
			}
			report, err := e.service().Matrix(cmd.Context(), src, opts)
			if err != nil {
				return err
			}
			e.print(report.Run, report.Tables())
			return nil
		},
	}

	cmd.Flags().StringVar(&method, "method", "", "Document-level method: ktau|pearson|spearman|m")
	cmd.Flags().StringVar(&cutoff, "cutoff", "", "Cutoff metric for percentile filtering (nas for the normalized aggregate)")
	cmd.Flags().StringSliceVar(&bands, "band", nil, "Percentile band low-high, repeatable")
	return cmd
}

func newPairwiseCmd(e *env) *cobra.Command {
	var pvalue, filterScore float64
	var filterMetric string
	var top int
	var pairs []string

	cmd := &cobra.Command{
		Use:   "pairwise",
		Short: "Corpus-level mean Kendall's tau for metric pairs",
		Long: `Average per-document Kendall's tau for each metric pair, ignoring documents
with fewer than 4 systems or a p-value above the threshold.

Example: summcorr pairwise --pair rouge_1_recall:js-2 --pvalue 0.05 --top 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := e.profile.PairwiseOptions()
			if cmd.Flags().Changed("pvalue") {
				opts.PValueThreshold = pvalue
			}
			if cmd.Flags().Changed("top") {
				opts.Top = top
			}
			if filterMetric != "" {
				opts.FilterMetric = filterMetric
				opts.FilterScore = filterScore
			}
			metricPairs, err := parsePairs(pairs)
			if err != nil {
				return err
			}

			src, err := e.source()
			if err != nil {
				return err
			}
			report, err := e.service().Pairwise(cmd.Context(), src, metricPairs, opts)
			if err != nil {
				return err
			}
			e.print(report.Run, report.Tables())
			return nil
		},
	}

	cmd.Flags().Float64Var(&pvalue, "pvalue", 0.05, "Ignore documents whose p-value exceeds this")
	cmd.Flags().StringVar(&filterMetric, "filter-metric", "", "Keep only systems scoring above --filter-score on this metric")
	cmd.Flags().Float64Var(&filterScore, "filter-score", 0, "Threshold for --filter-metric (strict)")
	cmd.Flags().IntVar(&top, "top", 0, "Concatenate the top-N systems by each metric of the pair (0 = all systems)")
	cmd.Flags().StringSliceVar(&pairs, "pair", nil, "Metric pair a:b, repeatable (default: every pair)")
	return cmd
}

type topKFlags struct {
	k          int
	rankMetric string
	method     string
	pairs      []string
	metrics    []string
	noNAS      bool
}

func (f *topKFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.k, "k", 0, "Number of top systems (default from profile)")
	cmd.Flags().StringVar(&f.rankMetric, "rank-metric", "", "Metric to rank systems by (default from profile)")
	cmd.Flags().StringVar(&f.method, "method", "", "Correlation over the top-k: pearson|kendalltau")
	cmd.Flags().StringSliceVar(&f.pairs, "pair", nil, "Metric pair a:b, repeatable (default: every pair)")
	cmd.Flags().StringSliceVar(&f.metrics, "metric", nil, "Metric to aggregate, repeatable (default: profile or every metric)")
	cmd.Flags().BoolVar(&f.noNAS, "no-nas", false, "Skip the system-level normalized aggregate")
}

func (f *topKFlags) request(p *config.Profile) (app.TopKRequest, error) {
	if f.k > 0 {
		p.K = f.k
	}
	if f.rankMetric != "" {
		p.RankMetric = f.rankMetric
	}
	if f.method != "" {
		p.SystemMethod = f.method
	}
	if f.noNAS {
		p.WithNAS = false
	}
	if len(f.metrics) > 0 {
		p.Metrics = f.metrics
	}
	if len(f.pairs) > 0 {
		parsed, err := parsePairs(f.pairs)
		if err != nil {
			return app.TopKRequest{}, err
		}
		p.Pairs = parsed
	}
	if err := p.Validate(); err != nil {
		return app.TopKRequest{}, err
	}
	method, err := p.PairMethod()
	if err != nil {
		return app.TopKRequest{}, err
	}
	return app.TopKRequest{
		Metrics:    p.Metrics,
		WithNAS:    p.WithNAS,
		K:          p.K,
		RankMetric: p.RankMetric,
		Pairs:      p.Pairs,
		Method:     method,
	}, nil
}

func newTopKCmd(e *env) *cobra.Command {
	f := &topKFlags{}
	cmd := &cobra.Command{
		Use:   "topk",
		Short: "Correlate metrics over the top-k systems at system level",
		Long: `Aggregate scores per system, pick the k best by the rank metric and
correlate metric pairs across those systems.

Example: summcorr topk --k 5 --rank-metric nas --method pearson --pair rouge_2_f_score:bert_f_score`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := f.request(e.profile)
			if err != nil {
				return err
			}
			src, err := e.source()
			if err != nil {
				return err
			}
			report, err := e.service().SystemTopK(cmd.Context(), src, req)
			if err != nil {
				return err
			}
			e.print(report.Run, report.Tables())
			return nil
		},
	}
	f.register(cmd)
	return cmd
}

func newSynthCmd(e *env) *cobra.Command {
	f := &topKFlags{}
	var count int
	var topOnly bool
	var seed int64

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Add synthetic systems, then rerun the top-k analysis",
		Long: `Each synthetic system's summary for a document is drawn at random from the
document's real summaries (or its 5 best by litepyramid_recall with --top-only).

Example: summcorr synth --count 10 --top-only --seed 42 --k 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p := e.profile
			if cmd.Flags().Changed("count") {
				p.SyntheticCount = count
			}
			if cmd.Flags().Changed("top-only") {
				p.TopOnly = topOnly
			}
			if cmd.Flags().Changed("seed") {
				p.Seed = seed
			}
			req, err := f.request(p)
			if err != nil {
				return err
			}

			src, err := e.source()
			if err != nil {
				return err
			}
			report, err := e.service().SyntheticRobustness(cmd.Context(), src, app.SyntheticRequest{
				TopKRequest: req,
				Count:       p.SyntheticCount,
				Options:     p.SyntheticOptions(),
				Seed:        p.Seed,
			})
			if err != nil {
				return err
			}
			e.print(report.Run, report.Tables())
			fmt.Fprintf(e.out, "synthetic systems in top-%d: %d\n", req.K, report.SyntheticInTop)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().IntVar(&count, "count", 0, "Number of synthetic systems")
	cmd.Flags().BoolVar(&topOnly, "top-only", false, "Sample only from each document's top systems")
	cmd.Flags().Int64Var(&seed, "seed", 42, "Random seed for deterministic sampling")
	return cmd
}

func newRunsCmd(e *env) *cobra.Command {
	var kind string
	var limit int

	cmd := &cobra.Command{
		Use:   "runs [run-id]",
		Short: "List persisted runs, or show one run's parameters (requires DATABASE_URL)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if e.repo == nil {
				return errors.ConfigInvalid("run persistence is disabled; set DATABASE_URL")
			}
			if len(args) == 1 {
				return e.showRun(cmd.Context(), args[0])
			}
			runs, err := e.repo.ListRuns(cmd.Context(), core.RunKind(kind), limit)
			if err != nil {
				return err
			}
			t := run.Table{Name: "runs", Header: []string{"id", "kind", "source", "documents", "ignored", "total", "started", "took"}}
			for _, r := range runs {
				t.AddRow(r.ID.String(), string(r.Kind), r.Source, r.Documents, r.Ignored, r.Total,
					r.StartedAt.Format("2006-01-02 15:04:05"), format.FmtDuration(r.Duration()))
			}
			e.print(nil, []run.Table{t})
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Only runs of this kind")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum runs to list (0 = all)")
	return cmd
}

func (e *env) showRun(ctx context.Context, raw string) error {
	id, err := core.ParseRunID(raw)
	if err != nil {
		return errors.InvalidInput(err.Error())
	}
	r, err := e.repo.GetRun(ctx, id)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(r.Parameters))
	for k := range r.Parameters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := run.Table{Name: fmt.Sprintf("run %s (%s)", r.ID, r.Kind), Header: []string{"parameter", "value"}}
	for _, k := range keys {
		t.AddRow(k, r.Parameters[k])
	}
	t.AddRow("fingerprint", r.Fingerprint)
	t.AddRow("documents", r.Documents)
	t.AddRow("ignored", r.Ignored)
	t.AddRow("total", r.Total)
	e.print(nil, []run.Table{t})
	return nil
}

func newReportCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "report [workbook.xlsx]",
		Short: "Print every sheet of an exported report workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tables, err := excel.NewWorkbookReader(args[0]).Read()
			if err != nil {
				return err
			}
			e.print(nil, tables)
			return nil
		},
	}
}

func newGenerateCmd(e *env) *cobra.Command {
	cfg := testkit.DefaultScoreConfig()
	var output string

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a seeded synthetic score corpus for trying the other commands",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if output == "" {
				return errors.InvalidInput("--output is required")
			}
			store := testkit.NewScoreGenerator(cfg).Generate()
			f, err := os.Create(output)
			if err != nil {
				return errors.Wrap(err, "failed to create output")
			}
			defer f.Close()
			if err := loader.Encode(f, store); err != nil {
				return err
			}
			e.logger.Info().Str("file", output).Int("documents", store.Len()).Msg("corpus generated")
			return nil
		},
	}
	cmd.Flags().StringVar(&output, "output", "", "Destination JSON file")
	cmd.Flags().IntVar(&cfg.DocumentCount, "documents", cfg.DocumentCount, "Number of documents")
	cmd.Flags().IntVar(&cfg.SystemCount, "systems", cfg.SystemCount, "Systems per document")
	cmd.Flags().Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	return cmd
}

func parseBands(values []string) ([]scores.Band, error) {
	bands := make([]scores.Band, 0, len(values))
	for _, v := range values {
		lo, hi, ok := strings.Cut(strings.TrimSpace(v), "-")
		low, errLo := strconv.ParseFloat(lo, 64)
		high, errHi := strconv.ParseFloat(hi, 64)
		if !ok || errLo != nil || errHi != nil {
			return nil, errors.Newf(errors.CodeInvalidInput, "band %q must look like low-high", v)
		}
		b := scores.Band{Low: low, High: high}
		if err := b.Validate(); err != nil {
			return nil, err
		}
		bands = append(bands, b)
	}
	return bands, nil
}

func parsePairs(values []string) ([]analysis.MetricPair, error) {
	var pairs []analysis.MetricPair
	for _, v := range values {
		a, b, ok := strings.Cut(v, ":")
		if !ok || a == "" || b == "" {
			return nil, errors.Newf(errors.CodeInvalidInput, "pair %q must look like a:b", v)
		}
		pairs = append(pairs, analysis.MetricPair{A: a, B: b})
	}
	return pairs, nil
}
