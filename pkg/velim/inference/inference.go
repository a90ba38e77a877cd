package inference

import (
	"context"
	"fmt"
	"sort"

	"github.com/cognicore/velim/pkg/velim/factor"
	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/network"
	"github.com/cognicore/velim/pkg/velim/order"
)

// Engine computes posterior distributions over a network.
// This interface allows swapping implementations (variable elimination,
// brute-force enumeration, ...).
type Engine interface {
	// Name identifies the engine in logs and reports
	Name() string

	// Query returns P(query | evidence). Implementations validate the whole
	// request before computing anything.
	Query(ctx context.Context, net *network.Network, req Request) (*Result, error)
}

// Request is one inference question.
type Request struct {
	Query    []string          // variables whose joint posterior is wanted
	Evidence map[string]string // observed variable -> value
	Order    OrderSpec         // nil means Auto{Heuristic: order.Lexicographic}
}

// OrderSpec says how the elimination order is chosen: Explicit or Auto.
type OrderSpec interface {
	isOrderSpec()
	String() string
}

// Explicit is a caller-supplied elimination order. It must be exactly the
// variables that are neither barren, observed nor queried.
type Explicit struct {
	Names []string
}

// Auto lets a heuristic choose the order.
type Auto struct {
	Heuristic order.Kind
}

func (Explicit) isOrderSpec() {}
func (Auto) isOrderSpec()     {}

func (e Explicit) String() string { return fmt.Sprintf("explicit%v", e.Names) }
func (a Auto) String() string {
	if a.Heuristic == "" {
		return "auto:" + string(order.Lexicographic)
	}
	return "auto:" + string(a.Heuristic)
}

// ExplicitOrder is shorthand for Explicit{Names: names}.
func ExplicitOrder(names ...string) Explicit { return Explicit{Names: names} }

// AutoOrder is shorthand for Auto{Heuristic: kind}.
func AutoOrder(kind order.Kind) Auto { return Auto{Heuristic: kind} }

// Step records one elimination.
type Step struct {
	Variable string   // variable summed out
	Inputs   []string // briefs of the multiplied factors
	Output   string   // brief of the resulting factor
	Arity    int      // variables in the product before summing out
	Cells    int      // cells in the product before summing out
}

// Result is the answer to a Request.
type Result struct {
	Engine    string
	Posterior *factor.Factor // normalized, over the query variables
	Barren    []string
	Order     []string // elimination order actually used
	Steps     []Step
	PeakCells int // largest intermediate table
}

// Distribution returns value -> probability for a single-variable query.
func (r *Result) Distribution() (map[string]float64, error) {
	if r.Posterior.Arity() != 1 {
		return nil, fmt.Errorf("distribution of %s: want one variable: %w", r.Posterior.Brief(), internalerr.ErrInvalidInput)
	}
	dist := make(map[string]float64, r.Posterior.Len())
	for _, row := range r.Posterior.Rows() {
		dist[row.Assignment[0]] = row.Value
	}
	return dist, nil
}

// Outcome is one row of a posterior.
type Outcome struct {
	Assignment  map[string]string
	Probability float64
}

// Outcomes lists the posterior rows in canonical order.
func (r *Result) Outcomes() []Outcome {
	names := r.Posterior.Names()
	rows := r.Posterior.Rows()
	out := make([]Outcome, len(rows))
	for i, row := range rows {
		assign := make(map[string]string, len(names))
		for k, n := range names {
			assign[n] = row.Assignment[k]
		}
		out[i] = Outcome{Assignment: assign, Probability: row.Value}
	}
	return out
}

// EvidenceNames returns the observed variable names, sorted.
func (r Request) EvidenceNames() []string {
	names := make([]string, 0, len(r.Evidence))
	for n := range r.Evidence {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
