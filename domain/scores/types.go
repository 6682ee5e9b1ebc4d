package scores

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"summcorr/internal/errors"
)

// NormalizedAggregate is the derived metric formed by averaging normalized
// recall-type metrics (per document) or normalized system means (per system).
const NormalizedAggregate = "nas"

// Scores maps metric name to value
type Scores map[string]float64

// Clone returns an independent copy
func (s Scores) Clone() Scores {
	if s == nil {
		return nil
	}
	out := make(Scores, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// Names returns the metric names in sorted order
func (s Scores) Names() []string {
	names := make([]string, 0, len(s))
	for k := range s {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SummaryRecord holds one system's scores for one document
type SummaryRecord struct {
	Scores       Scores `json:"scores"`
	NormedScores Scores `json:"normed_scores,omitempty"`
}

// Clone returns a deep copy of the record
func (r *SummaryRecord) Clone() *SummaryRecord {
	if r == nil {
		return nil
	}
	return &SummaryRecord{
		Scores:       r.Scores.Clone(),
		NormedScores: r.NormedScores.Clone(),
	}
}

// Score returns the value of a metric or an INVALID_INPUT error when it is absent
func (r *SummaryRecord) Score(metric string) (float64, error) {
	v, ok := r.Scores[metric]
	if !ok {
		return 0, errors.Newf(errors.CodeInvalidInput, "metric %q missing from summary scores", metric)
	}
	return v, nil
}

// DocumentRecord holds every system summary for a single document. Systems
// iterate in insertion order.
type DocumentRecord struct {
	systems    []string
	summaries  map[string]*SummaryRecord
	MeanScores Scores
}

// NewDocumentRecord creates an empty document record
func NewDocumentRecord() *DocumentRecord {
	return &DocumentRecord{summaries: make(map[string]*SummaryRecord)}
}

// Add inserts a system summary. Replacing an existing system keeps its position.
func (d *DocumentRecord) Add(system string, rec *SummaryRecord) {
	if d.summaries == nil {
		d.summaries = make(map[string]*SummaryRecord)
	}
	if _, exists := d.summaries[system]; !exists {
		d.systems = append(d.systems, system)
	}
	d.summaries[system] = rec
}

// Systems returns the system names in iteration order
func (d *DocumentRecord) Systems() []string {
	out := make([]string, len(d.systems))
	copy(out, d.systems)
	return out
}

// Summary looks up a system's record
func (d *DocumentRecord) Summary(system string) (*SummaryRecord, bool) {
	rec, ok := d.summaries[system]
	return rec, ok
}

// Summaries returns the records in system iteration order
func (d *DocumentRecord) Summaries() []*SummaryRecord {
	out := make([]*SummaryRecord, len(d.systems))
	for i, name := range d.systems {
		out[i] = d.summaries[name]
	}
	return out
}

// Len is the number of systems in the document
func (d *DocumentRecord) Len() int {
	return len(d.systems)
}

// MeanScore returns the precomputed mean for a metric
func (d *DocumentRecord) MeanScore(metric string) (float64, error) {
	v, ok := d.MeanScores[metric]
	if !ok {
		return 0, errors.Newf(errors.CodeInvalidInput, "metric %q missing from document mean scores", metric)
	}
	return v, nil
}

// Clone returns a deep copy of the document
func (d *DocumentRecord) Clone() *DocumentRecord {
	out := &DocumentRecord{
		systems:    make([]string, len(d.systems)),
		summaries:  make(map[string]*SummaryRecord, len(d.summaries)),
		MeanScores: d.MeanScores.Clone(),
	}
	copy(out.systems, d.systems)
	for name, rec := range d.summaries {
		out.summaries[name] = rec.Clone()
	}
	return out
}

// ScoreStore maps document id to its record. Documents iterate in insertion order.
type ScoreStore struct {
	ids  []string
	docs map[string]*DocumentRecord
}

// NewScoreStore creates an empty store
func NewScoreStore() *ScoreStore {
	return &ScoreStore{docs: make(map[string]*DocumentRecord)}
}

// Add inserts a document. Replacing an existing id keeps its position.
func (s *ScoreStore) Add(id string, doc *DocumentRecord) {
	if s.docs == nil {
		s.docs = make(map[string]*DocumentRecord)
	}
	if _, exists := s.docs[id]; !exists {
		s.ids = append(s.ids, id)
	}
	s.docs[id] = doc
}

// DocumentIDs returns the document ids in iteration order
func (s *ScoreStore) DocumentIDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Document looks up a document by id
func (s *ScoreStore) Document(id string) (*DocumentRecord, bool) {
	doc, ok := s.docs[id]
	return doc, ok
}

// Len is the number of documents
func (s *ScoreStore) Len() int {
	return len(s.ids)
}

// Clone returns a deep copy sharing no maps with the receiver
func (s *ScoreStore) Clone() *ScoreStore {
	out := &ScoreStore{
		ids:  make([]string, len(s.ids)),
		docs: make(map[string]*DocumentRecord, len(s.docs)),
	}
	copy(out.ids, s.ids)
	for id, doc := range s.docs {
		out.docs[id] = doc.Clone()
	}
	return out
}

// CorrelationResult is a correlation statistic paired with its p-value
type CorrelationResult struct {
	Value  float64 `json:"value"`
	PValue float64 `json:"p_value"`
}

// Method selects the statistic computed for a metric pair
type Method int

const (
	Kendall Method = iota
	Pearson
	Spearman
	RawMean
)

// ParseMethod maps a method name to its Method
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "ktau", "kendall", "kendalltau":
		return Kendall, nil
	case "pearson":
		return Pearson, nil
	case "spearman":
		return Spearman, nil
	case "m", "mean":
		return RawMean, nil
	default:
		return 0, errors.UnsupportedMethod(name)
	}
}

func (m Method) String() string {
	switch m {
	case Kendall:
		return "ktau"
	case Pearson:
		return "pearson"
	case Spearman:
		return "spearman"
	case RawMean:
		return "m"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

// MarshalText encodes the method by name
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a method name
func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Band is an inclusive percentile range
type Band struct {
	Low  float64 `json:"low" yaml:"low"`
	High float64 `json:"high" yaml:"high"`
}

// FullBand keeps every system
var FullBand = Band{Low: 0, High: 100}

// Validate checks 0 <= Low <= High <= 100
func (b Band) Validate() error {
	if math.IsNaN(b.Low) || math.IsNaN(b.High) || b.Low < 0 || b.High > 100 || b.Low > b.High {
		return errors.Newf(errors.CodeInvalidInput, "invalid percentile band %v", b)
	}
	return nil
}

func (b Band) String() string {
	return fmt.Sprintf("%g-%g", b.Low, b.High)
}
