// Package report turns inference results into explainable, storable reports.
package report

import (
	"crypto/rand"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/cognicore/velim/pkg/velim/inference"
	"github.com/cognicore/velim/pkg/velim/store"
)

// Builder constructs reports with monotonically increasing ULID ids.
type Builder struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// New creates a new report builder
func New() *Builder {
	return &Builder{
		entropy: ulid.Monotonic(rand.Reader, 0),
		now:     time.Now,
	}
}

// Report is the explainable answer to one query.
type Report struct {
	ID        string
	Network   string
	Engine    string
	Query     []string
	Evidence  map[string]string
	Strategy  string
	Barren    []string
	Order     []string
	Outcomes  []inference.Outcome
	Steps     []inference.Step
	Explain   []string // one line per elimination step
	PeakCells int
	CreatedAt time.Time
}

// Build creates a report for res, the answer to req on the named network.
func (b *Builder) Build(network string, req inference.Request, res *inference.Result) Report {
	b.mu.Lock()
	now := b.now()
	id := ulid.MustNew(ulid.Timestamp(now), b.entropy).String()
	b.mu.Unlock()

	strategy := inference.OrderSpec(inference.Auto{})
	if req.Order != nil {
		strategy = req.Order
	}
	name := strategy.String()
	if _, ok := strategy.(inference.Explicit); ok {
		name = "explicit"
	}

	r := Report{
		ID:        id,
		Network:   network,
		Engine:    res.Engine,
		Query:     res.Posterior.Names(),
		Evidence:  make(map[string]string, len(req.Evidence)),
		Strategy:  name,
		Barren:    append([]string{}, res.Barren...),
		Order:     append([]string{}, res.Order...),
		Outcomes:  res.Outcomes(),
		Steps:     append([]inference.Step{}, res.Steps...),
		Explain:   make([]string, 0, len(res.Steps)),
		PeakCells: res.PeakCells,
		CreatedAt: now,
	}
	for k, v := range req.Evidence {
		r.Evidence[k] = v
	}
	for _, s := range res.Steps {
		r.Explain = append(r.Explain, fmt.Sprintf("sum out %s from %s = %s (%d cells)",
			s.Variable, strings.Join(s.Inputs, " * "), s.Output, s.Cells))
	}
	return r
}

// Record converts the report to its stored form. Steps and Explain are not
// persisted.
func (r Report) Record() store.QueryRecord {
	outcomes := make([]store.Outcome, len(r.Outcomes))
	for i, o := range r.Outcomes {
		outcomes[i] = store.Outcome{Assignment: o.Assignment, Probability: o.Probability}
	}
	return store.QueryRecord{
		ID:        r.ID,
		Network:   r.Network,
		Engine:    r.Engine,
		Query:     r.Query,
		Evidence:  r.Evidence,
		Strategy:  r.Strategy,
		Order:     r.Order,
		Barren:    r.Barren,
		Outcomes:  outcomes,
		PeakCells: r.PeakCells,
		CreatedAt: r.CreatedAt,
	}
}

// FromRecord rebuilds a report from history.
func FromRecord(q store.QueryRecord) Report {
	outcomes := make([]inference.Outcome, len(q.Outcomes))
	for i, o := range q.Outcomes {
		outcomes[i] = inference.Outcome{Assignment: o.Assignment, Probability: o.Probability}
	}
	return Report{
		ID:        q.ID,
		Network:   q.Network,
		Engine:    q.Engine,
		Query:     q.Query,
		Evidence:  q.Evidence,
		Strategy:  q.Strategy,
		Barren:    q.Barren,
		Order:     q.Order,
		Outcomes:  outcomes,
		PeakCells: q.PeakCells,
		CreatedAt: q.CreatedAt,
	}
}

// Probability returns the posterior probability of an assignment of every
// query variable, and false when no outcome matches.
func (r Report) Probability(assignment map[string]string) (float64, bool) {
	for _, o := range r.Outcomes {
		if len(o.Assignment) != len(assignment) {
			continue
		}
		match := true
		for k, v := range assignment {
			if o.Assignment[k] != v {
				match = false
				break
			}
		}
		if match {
			return o.Probability, true
		}
	}
	return 0, false
}
