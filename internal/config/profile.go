package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"summcorr/domain/scores"
	"summcorr/internal/analysis"
	"summcorr/internal/errors"
)

// Profile is a YAML analysis profile. Zero-valued fields keep the defaults.
type Profile struct {
	Metrics      []string      `yaml:"metrics"`
	Bands        []scores.Band `yaml:"bands"`
	CutoffMetric string        `yaml:"cutoff_metric"`
	Method       string        `yaml:"method"`
	Alpha        float64       `yaml:"alpha"`

	PValueThreshold float64 `yaml:"pvalue_threshold"`
	Top             int     `yaml:"top"`
	FilterMetric    string  `yaml:"filter_metric"`
	FilterScore     float64 `yaml:"filter_score"`

	K            int                   `yaml:"k"`
	RankMetric   string                `yaml:"rank_metric"`
	WithNAS      bool                  `yaml:"with_nas"`
	SystemMethod string                `yaml:"system_method"`
	Pairs        []analysis.MetricPair `yaml:"pairs"`

	SyntheticCount  int    `yaml:"synthetic_count"`
	TopOnly         bool   `yaml:"top_only"`
	TopPool         int    `yaml:"top_pool"`
	ReferenceMetric string `yaml:"reference_metric"`
	Seed            int64  `yaml:"seed"`
}

// DefaultProfile returns the settings used when no profile file is given
func DefaultProfile() *Profile {
	return &Profile{
		Bands:           []scores.Band{scores.FullBand},
		Method:          "ktau",
		Alpha:           analysis.DefaultAlpha,
		PValueThreshold: 0.05,
		K:               5,
		RankMetric:      scores.NormalizedAggregate,
		WithNAS:         true,
		SystemMethod:    "pearson",
		TopPool:         analysis.DefaultSyntheticTopPool,
		ReferenceMetric: analysis.DefaultSyntheticReferenceMetric,
		Seed:            42,
	}
}

// LoadProfile reads path over the defaults and validates the result
func LoadProfile(path string) (*Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "failed to read analysis profile")
	}
	return ParseProfile(data)
}

// ParseProfile decodes YAML over the defaults and validates the result
func ParseProfile(data []byte) (*Profile, error) {
	p := DefaultProfile()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, errors.Wrap(errors.ConfigInvalid(err.Error()), "malformed analysis profile")
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks every field; each failure is a CONFIG_INVALID error
func (p *Profile) Validate() error {
	if len(p.Bands) == 0 {
		return errors.ConfigInvalid("profile needs at least one band")
	}
	for _, b := range p.Bands {
		if err := b.Validate(); err != nil {
			return errors.ConfigInvalid(fmt.Sprintf("band %s: %v", b, err))
		}
	}
	if _, err := p.MatrixMethod(); err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	m, err := p.PairMethod()
	if err != nil {
		return errors.ConfigInvalid(err.Error())
	}
	if m != scores.Pearson && m != scores.Kendall {
		return errors.ConfigInvalid("system_method must be pearson or kendalltau")
	}
	if p.Alpha <= 0 || p.Alpha > 1 {
		return errors.ConfigInvalid(fmt.Sprintf("alpha must be in (0, 1], got %g", p.Alpha))
	}
	if p.PValueThreshold < 0 || p.PValueThreshold > 1 {
		return errors.ConfigInvalid(fmt.Sprintf("pvalue_threshold must be in [0, 1], got %g", p.PValueThreshold))
	}
	for name, v := range map[string]int{"top": p.Top, "k": p.K, "synthetic_count": p.SyntheticCount, "top_pool": p.TopPool} {
		if v < 0 {
			return errors.ConfigInvalid(fmt.Sprintf("%s must be non-negative, got %d", name, v))
		}
	}
	for _, pair := range p.Pairs {
		if pair.A == "" || pair.B == "" {
			return errors.ConfigInvalid("metric pairs need both a and b")
		}
	}
	return nil
}

// MatrixMethod is the document-level method for matrices
func (p *Profile) MatrixMethod() (scores.Method, error) {
	return scores.ParseMethod(p.Method)
}

// PairMethod is the method used over system-level tables
func (p *Profile) PairMethod() (scores.Method, error) {
	return scores.ParseMethod(p.SystemMethod)
}

// MatrixOptions builds matrix options for metrics; an empty list falls back to the profile's own
func (p *Profile) MatrixOptions(metrics []string) (analysis.MatrixOptions, error) {
	method, err := p.MatrixMethod()
	if err != nil {
		return analysis.MatrixOptions{}, err
	}
	if len(metrics) == 0 {
		metrics = p.Metrics
	}
	return analysis.MatrixOptions{
		Metrics:      metrics,
		Bands:        p.Bands,
		CutoffMetric: p.CutoffMetric,
		Method:       method,
		Alpha:        p.Alpha,
	}, nil
}

// PairwiseOptions builds corpus aggregation options
func (p *Profile) PairwiseOptions() analysis.PairwiseOptions {
	return analysis.PairwiseOptions{
		PValueThreshold: p.PValueThreshold,
		FilterMetric:    p.FilterMetric,
		FilterScore:     p.FilterScore,
		Top:             p.Top,
	}
}

// SyntheticOptions builds augmenter options
func (p *Profile) SyntheticOptions() analysis.SyntheticOptions {
	return analysis.SyntheticOptions{
		TopOnly:         p.TopOnly,
		ReferenceMetric: p.ReferenceMetric,
		TopPool:         p.TopPool,
	}
}
