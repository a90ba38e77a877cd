// Package analytics estimates the cost of an elimination order without
// touching any probability: it replays elimination over variable sets only.
package analytics

import (
	"fmt"
	"sort"

	"github.com/cognicore/velim/pkg/velim/barren"
	"github.com/cognicore/velim/pkg/velim/inference"
	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/network"
	"github.com/cognicore/velim/pkg/velim/order"
	"github.com/cognicore/velim/pkg/velim/variable"
)

// Options mirrors the engine settings that change the factor set.
type Options struct {
	DisableBarrenPruning bool
}

// Step is one simulated elimination.
type Step struct {
	Variable string
	Clique   []string // variables of the product formed before summing out
	Cells    int      // size of that product
}

// Plan is the cost profile of one elimination order.
type Plan struct {
	Strategy     string // heuristic name or "explicit"
	Barren       []string
	Order        []string
	Steps        []Step
	InducedWidth int // largest clique minus one
	PeakCells    int
	TotalCells   int // sum of all product sizes, including the final one
}

// Analyze simulates answering req on net.
func Analyze(net *network.Network, req inference.Request, opts Options) (*Plan, error) {
	resolved, err := inference.Resolve(net, req)
	if err != nil {
		return nil, err
	}

	plan := &Plan{Barren: []string{}, Order: []string{}}
	isBarren := make(map[network.ID]bool)
	if !opts.DisableBarrenPruning {
		ids, err := barren.Find(net, resolved.QueryNames(), req.EvidenceNames())
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			isBarren[id] = true
		}
		plan.Barren = barren.Names(net, ids)
	}
	if err := resolved.CheckExplicit(net, req.Order, isBarren); err != nil {
		return nil, err
	}

	if obs := resolved.Observed; obs != nil {
		plan.Strategy = "observed"
		plan.Barren = []string{}
		plan.PeakCells = obs.Variable.Size()
		return plan, nil
	}

	scopes := initialScopes(net, resolved, isBarren)
	for _, s := range scopes {
		plan.observe(s)
	}
	eliminable := resolved.Eliminable(net, isBarren)

	switch s := req.Order.(type) {
	case nil:
		plan.Strategy = string(order.Lexicographic)
		plan.Order, err = heuristicOrder(order.Lexicographic, scopes, eliminable)
	case inference.Auto:
		plan.Strategy = s.String()
		plan.Order, err = heuristicOrder(s.Heuristic, scopes, eliminable)
	case inference.Explicit:
		plan.Strategy = "explicit"
		plan.Order = append([]string{}, s.Names...)
	default:
		err = fmt.Errorf("analytics: unsupported order %T: %w", req.Order, internalerr.ErrInvalidInput)
	}
	if err != nil {
		return nil, err
	}

	for _, name := range plan.Order {
		var clique []*variable.Variable
		var rest [][]*variable.Variable
		for _, s := range scopes {
			if variable.IndexIn(s, variableOf(net, name)) >= 0 {
				clique = variable.Union(clique, s)
			} else {
				rest = append(rest, s)
			}
		}
		if clique == nil {
			continue
		}
		cells := variable.CellCount(clique)
		plan.Steps = append(plan.Steps, Step{Variable: name, Clique: variable.Names(clique), Cells: cells})
		plan.observe(clique)
		plan.TotalCells += cells
		if w := len(clique) - 1; w > plan.InducedWidth {
			plan.InducedWidth = w
		}
		scopes = append(rest, variable.Without(clique, variableOf(net, name)))
	}

	var final []*variable.Variable
	for _, s := range scopes {
		final = variable.Union(final, s)
	}
	plan.observe(final)
	plan.TotalCells += variable.CellCount(final)
	return plan, nil
}

// Ranking pairs a heuristic with its plan.
type Ranking struct {
	Heuristic order.Kind
	Plan      *Plan
}

// Compare analyzes req under every built-in heuristic and ranks them by peak
// table size, then total work, then name. Any order in req is ignored.
func Compare(net *network.Network, req inference.Request, opts Options) ([]Ranking, error) {
	out := make([]Ranking, 0, len(order.Kinds()))
	for _, kind := range order.Kinds() {
		r := req
		r.Order = inference.AutoOrder(kind)
		plan, err := Analyze(net, r, opts)
		if err != nil {
			return nil, err
		}
		out = append(out, Ranking{Heuristic: kind, Plan: plan})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Plan, out[j].Plan
		if a.PeakCells != b.PeakCells {
			return a.PeakCells < b.PeakCells
		}
		if a.TotalCells != b.TotalCells {
			return a.TotalCells < b.TotalCells
		}
		return out[i].Heuristic < out[j].Heuristic
	})
	return out, nil
}

func (p *Plan) observe(vars []*variable.Variable) {
	if c := variable.CellCount(vars); c > p.PeakCells {
		p.PeakCells = c
	}
}

// initialScopes are the CPT variable sets after evidence reduction.
func initialScopes(net *network.Network, resolved *inference.Resolved, isBarren map[network.ID]bool) [][]*variable.Variable {
	var scopes [][]*variable.Variable
	for i := 0; i < net.Len(); i++ {
		id := network.ID(i)
		if isBarren[id] {
			continue
		}
		scope := net.Factor(id).Variables()
		for _, obs := range resolved.Evidence {
			scope = variable.Without(scope, obs.Variable)
		}
		scopes = append(scopes, scope)
	}
	return scopes
}

func heuristicOrder(kind order.Kind, scopes [][]*variable.Variable, eliminable []string) ([]string, error) {
	h, err := order.New(kind)
	if err != nil {
		return nil, err
	}
	return append([]string{}, h.Order(order.NewGraphFromScopes(scopes), eliminable)...), nil
}

func variableOf(net *network.Network, name string) *variable.Variable {
	id, _ := net.Lookup(name)
	return net.Variable(id)
}
