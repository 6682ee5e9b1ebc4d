package analysis

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"summcorr/domain/scores"
	"summcorr/internal/errors"
)

// Defaults for synthetic system sampling
const (
	DefaultSyntheticReferenceMetric = "litepyramid_recall"
	DefaultSyntheticTopPool         = 5
)

// SyntheticOptions controls which real summaries a synthetic system samples from
type SyntheticOptions struct {
	// TopOnly samples from the TopPool best systems of each document by
	// ReferenceMetric instead of from every system.
	TopOnly         bool
	ReferenceMetric string
	TopPool         int
	// Rand is the sampling source for AddSyntheticSystems; nil seeds from the clock.
	Rand *rand.Rand
}

// SyntheticAugmenter injects synthetic systems whose per-document summary is
// drawn independently at random from the document's real summaries
type SyntheticAugmenter struct {
	rng  *rand.Rand
	opts SyntheticOptions
}

// NewSyntheticAugmenter creates an augmenter seeded from the clock
func NewSyntheticAugmenter(opts SyntheticOptions) *SyntheticAugmenter {
	return NewSyntheticAugmenterWithSeed(time.Now().UnixNano(), opts)
}

// NewSyntheticAugmenterWithSeed creates an augmenter with a fixed seed for reproducibility
func NewSyntheticAugmenterWithSeed(seed int64, opts SyntheticOptions) *SyntheticAugmenter {
	if opts.ReferenceMetric == "" {
		opts.ReferenceMetric = DefaultSyntheticReferenceMetric
	}
	if opts.TopPool <= 0 {
		opts.TopPool = DefaultSyntheticTopPool
	}
	return &SyntheticAugmenter{
		rng:  rand.New(rand.NewSource(seed)),
		opts: opts,
	}
}

// AddSyntheticSystems adds n synthetic systems to a copy of store, sampling
// with opts.Rand
func AddSyntheticSystems(store *scores.ScoreStore, n int, opts SyntheticOptions) (*scores.ScoreStore, error) {
	a := NewSyntheticAugmenter(opts)
	if opts.Rand != nil {
		a.rng = opts.Rand
	}
	return a.Augment(store, n)
}

// SyntheticName is the system name of the i-th synthetic system
func SyntheticName(i int) string {
	return fmt.Sprintf("synth_%d", i)
}

// Augment returns a deep copy of store with n synthetic systems added to every
// document. Candidates always come from the input store, so synthetic systems
// never sample each other. The input store is left untouched.
func (a *SyntheticAugmenter) Augment(store *scores.ScoreStore, n int) (*scores.ScoreStore, error) {
	if n < 0 {
		return nil, errors.Newf(errors.CodeInvalidInput, "synthetic system count must be non-negative, got %d", n)
	}

	out := store.Clone()
	if n == 0 {
		return out, nil
	}
	pools := make(map[string][]*scores.SummaryRecord, store.Len())
	for _, id := range store.DocumentIDs() {
		doc, _ := store.Document(id)
		pool, err := a.candidates(doc)
		if err != nil {
			return nil, errors.Wrapf(err, "document %s", id)
		}
		pools[id] = pool
	}

	for i := 0; i < n; i++ {
		name := SyntheticName(i)
		for _, id := range out.DocumentIDs() {
			pool := pools[id]
			if len(pool) == 0 {
				return nil, errors.Newf(errors.CodeInvalidInput, "document %s has no systems to sample from", id)
			}
			doc, _ := out.Document(id)
			doc.Add(name, pool[a.rng.Intn(len(pool))].Clone())
		}
	}
	return out, nil
}

func (a *SyntheticAugmenter) candidates(doc *scores.DocumentRecord) ([]*scores.SummaryRecord, error) {
	all := doc.Summaries()
	if !a.opts.TopOnly {
		return all, nil
	}

	values := make([]float64, len(all))
	for i, rec := range all {
		v, err := rec.Score(a.opts.ReferenceMetric)
		if err != nil {
			return nil, err
		}
		values[i] = v
	}
	idx := make([]int, len(all))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool {
		return values[idx[i]] > values[idx[j]]
	})

	size := a.opts.TopPool
	if size > len(idx) {
		size = len(idx)
	}
	pool := make([]*scores.SummaryRecord, size)
	for i := 0; i < size; i++ {
		pool[i] = all[idx[i]]
	}
	return pool, nil
}
