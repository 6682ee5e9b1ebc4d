package analysis

import (
	"github.com/rs/zerolog"

	"summcorr/domain/scores"
	"summcorr/internal/errors"
)

// DefaultAlpha is the significance level used when MatrixOptions.Alpha is zero
const DefaultAlpha = 0.05

// MatrixOptions configures a cross-metric correlation matrix
type MatrixOptions struct {
	Metrics []string
	Bands   []scores.Band
	// CutoffMetric selects the metric whose per-document percentile band
	// filters systems. Empty disables filtering.
	CutoffMetric string
	Method       scores.Method
	Alpha        float64
	Logger       *zerolog.Logger
}

// MatrixCell is the mean document-level statistic for one metric pair and band
type MatrixCell struct {
	MetricX  string      `json:"metric_x"`
	MetricY  string      `json:"metric_y"`
	Band     scores.Band `json:"band"`
	Mean     float64     `json:"mean"`
	Retained int         `json:"retained"`
	Ignored  int         `json:"ignored"`
}

// CorrelationMatrix holds every computed cell plus the significance diagnostics
type CorrelationMatrix struct {
	Metrics []string      `json:"metrics"`
	Bands   []scores.Band `json:"bands"`
	Method  scores.Method `json:"method"`
	Cells   []MatrixCell  `json:"cells"`
	// Ignored counts document-level values above the significance level.
	Ignored int `json:"ignored"`
	// Total is the theoretical number of document-level values,
	// (n/2)(n-1) * bands * documents.
	Total float64 `json:"total"`
}

// IgnoredFraction is Ignored / Total, or 0 for an empty matrix
func (m *CorrelationMatrix) IgnoredFraction() float64 {
	if m.Total == 0 {
		return 0
	}
	return float64(m.Ignored) / m.Total
}

// Cell looks up the cell for an unordered metric pair at a band
func (m *CorrelationMatrix) Cell(x, y string, band scores.Band) (MatrixCell, bool) {
	for _, c := range m.Cells {
		if c.Band != band {
			continue
		}
		if (c.MetricX == x && c.MetricY == y) || (c.MetricX == y && c.MetricY == x) {
			return c, true
		}
	}
	return MatrixCell{}, false
}

// Table returns the band x metric grid for row metric x. Entries for metrics
// at or before x in the metric order are zero.
func (m *CorrelationMatrix) Table(x string) [][]float64 {
	col := make(map[string]int, len(m.Metrics))
	for j, name := range m.Metrics {
		col[name] = j
	}
	row := make(map[scores.Band]int, len(m.Bands))
	for i, b := range m.Bands {
		row[b] = i
	}

	grid := make([][]float64, len(m.Bands))
	for i := range grid {
		grid[i] = make([]float64, len(m.Metrics))
	}
	for _, c := range m.Cells {
		if c.MetricX != x {
			continue
		}
		grid[row[c.Band]][col[c.MetricY]] = c.Mean
	}
	return grid
}

// BuildCorrelationMatrix computes the mean document-level statistic for every
// unordered pair of distinct metrics at every band. Document values with a
// p-value above Alpha are excluded from the mean and counted as ignored.
func BuildCorrelationMatrix(store *scores.ScoreStore, opts MatrixOptions) (*CorrelationMatrix, error) {
	logger := loggerOrNop(opts.Logger)
	alpha := opts.Alpha
	if alpha == 0 {
		alpha = DefaultAlpha
	}
	for _, b := range opts.Bands {
		if err := b.Validate(); err != nil {
			return nil, err
		}
	}

	n := float64(len(opts.Metrics))
	matrix := &CorrelationMatrix{
		Metrics: append([]string(nil), opts.Metrics...),
		Bands:   append([]scores.Band(nil), opts.Bands...),
		Method:  opts.Method,
		Total:   (n / 2) * (n - 1) * float64(len(opts.Bands)) * float64(store.Len()),
	}

	ids := store.DocumentIDs()
	for i, mx := range opts.Metrics {
		for _, band := range opts.Bands {
			var cutoff *Cutoff
			if opts.CutoffMetric != "" {
				cutoff = &Cutoff{Metric: opts.CutoffMetric, Band: band}
			}
			for j, my := range opts.Metrics {
				if j <= i || mx == my {
					continue
				}

				cell := MatrixCell{MetricX: mx, MetricY: my, Band: band}
				values := make([]float64, 0, len(ids))
				for _, id := range ids {
					doc, _ := store.Document(id)
					res, err := DocumentCorrelation(doc, mx, my, opts.Method, cutoff)
					if err != nil {
						return nil, errors.Wrapf(err, "document %s, metrics %s/%s, band %s", id, mx, my, band)
					}
					if res.PValue <= alpha {
						values = append(values, res.Value)
					} else {
						cell.Ignored++
					}
				}
				cell.Retained = len(values)
				cell.Mean = meanOrNaN(values)
				matrix.Ignored += cell.Ignored
				matrix.Cells = append(matrix.Cells, cell)
			}
		}
		logger.Debug().Str("metric", mx).Int("cells", len(matrix.Cells)).Msg("matrix row complete")
	}
	return matrix, nil
}
