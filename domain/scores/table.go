package scores

import "summcorr/internal/errors"

// SystemTable maps system name to aggregated metric values. Systems iterate
// in insertion order.
type SystemTable struct {
	systems []string
	rows    map[string]Scores
}

// NewSystemTable creates an empty table
func NewSystemTable() *SystemTable {
	return &SystemTable{rows: make(map[string]Scores)}
}

// Set stores a system's row. Replacing an existing system keeps its position.
func (t *SystemTable) Set(system string, row Scores) {
	if t.rows == nil {
		t.rows = make(map[string]Scores)
	}
	if _, exists := t.rows[system]; !exists {
		t.systems = append(t.systems, system)
	}
	t.rows[system] = row
}

// Systems returns system names in iteration order
func (t *SystemTable) Systems() []string {
	out := make([]string, len(t.systems))
	copy(out, t.systems)
	return out
}

// Row returns a system's metric values
func (t *SystemTable) Row(system string) (Scores, bool) {
	row, ok := t.rows[system]
	return row, ok
}

// Value returns one cell or an INVALID_INPUT error
func (t *SystemTable) Value(system, metric string) (float64, error) {
	row, ok := t.rows[system]
	if !ok {
		return 0, errors.Newf(errors.CodeInvalidInput, "system %q not in table", system)
	}
	v, ok := row[metric]
	if !ok {
		return 0, errors.Newf(errors.CodeInvalidInput, "metric %q missing for system %q", metric, system)
	}
	return v, nil
}

// Len is the number of systems
func (t *SystemTable) Len() int {
	return len(t.systems)
}
