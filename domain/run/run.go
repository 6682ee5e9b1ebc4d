package run

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"

	"summcorr/domain/core"
)

// Run records one execution of an analysis over a score source
type Run struct {
	ID          core.RunID        `json:"run_id"`
	Kind        core.RunKind      `json:"kind"`
	Source      string            `json:"source"`
	Parameters  map[string]string `json:"parameters"`
	Fingerprint string            `json:"fingerprint"`
	Documents   int               `json:"documents"`
	Ignored     int               `json:"ignored"`
	Total       int               `json:"total"`
	StartedAt   time.Time         `json:"started_at"`
	CompletedAt time.Time         `json:"completed_at"`
}

// NewRun starts a run of kind over source with the given parameters
func NewRun(kind core.RunKind, source string, params map[string]string) *Run {
	p := make(map[string]string, len(params))
	for k, v := range params {
		p[k] = v
	}
	return &Run{
		ID:          core.NewRunID(),
		Kind:        kind,
		Source:      source,
		Parameters:  p,
		Fingerprint: Fingerprint(kind, source, p),
		StartedAt:   time.Now().UTC(),
	}
}

// Complete stamps the completion time
func (r *Run) Complete() {
	r.CompletedAt = time.Now().UTC()
}

// Duration is zero until the run completes
func (r *Run) Duration() time.Duration {
	if r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Fingerprint hashes everything that determines a run's output, so two runs
// with equal fingerprints over the same data produce the same report.
func Fingerprint(kind core.RunKind, source string, params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "kind:%s|source:%s", kind, source)
	for _, k := range keys {
		fmt.Fprintf(&b, "|%s:%s", k, params[k])
	}
	hash := sha256.Sum256([]byte(b.String()))
	return fmt.Sprintf("%x", hash)
}

// Table is a rendered report: a titled header and rows of cell values
type Table struct {
	Name   string
	Header []string
	Rows   [][]interface{}
}

// AddRow appends one row of cells
func (t *Table) AddRow(cells ...interface{}) {
	t.Rows = append(t.Rows, cells)
}
