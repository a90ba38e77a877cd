// Package enumerate answers queries by summing the full joint distribution
// over every assignment consistent with the evidence. It is exponential in
// the number of unobserved variables and exists as a reference for the
// variable elimination engine.
package enumerate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cognicore/velim/internal/logging"
	"github.com/cognicore/velim/pkg/velim/barren"
	"github.com/cognicore/velim/pkg/velim/factor"
	"github.com/cognicore/velim/pkg/velim/inference"
	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/network"
	"github.com/cognicore/velim/pkg/velim/variable"
)

// Name identifies this engine.
const Name = "enumerate"

// DefaultMaxAssignments bounds the joint size when Config leaves it unset.
const DefaultMaxAssignments = 1 << 22

type Config struct {
	Logger         *slog.Logger
	MaxAssignments int
}

// Engine enumerates the joint distribution.
type Engine struct {
	log   *slog.Logger
	limit int
}

func New(cfg Config) *Engine {
	limit := cfg.MaxAssignments
	if limit <= 0 {
		limit = DefaultMaxAssignments
	}
	return &Engine{
		log:   logging.OrDiscard(cfg.Logger).With("engine", Name),
		limit: limit,
	}
}

func (e *Engine) Name() string { return Name }

// Query implements inference.Engine. An explicit order is checked the way
// variable elimination with barren pruning checks it, then ignored.
func (e *Engine) Query(ctx context.Context, net *network.Network, req inference.Request) (*inference.Result, error) {
	resolved, err := inference.Resolve(net, req)
	if err != nil {
		return nil, err
	}
	if _, explicit := req.Order.(inference.Explicit); explicit {
		ids, err := barren.Find(net, resolved.QueryNames(), req.EvidenceNames())
		if err != nil {
			return nil, err
		}
		isBarren := make(map[network.ID]bool, len(ids))
		for _, id := range ids {
			isBarren[id] = true
		}
		if err := resolved.CheckExplicit(net, req.Order, isBarren); err != nil {
			return nil, err
		}
	}
	if obs := resolved.Observed; obs != nil {
		return &inference.Result{
			Engine:    Name,
			Posterior: inference.PointMass(obs.Variable, obs.Value),
			Barren:    []string{},
			Order:     []string{},
			PeakCells: obs.Variable.Size(),
		}, nil
	}

	assign := make(map[string]string, net.Len())
	for _, obs := range resolved.Evidence {
		assign[obs.Variable.Name()] = obs.Value
	}
	var free []*variable.Variable
	for _, v := range net.Variables() {
		if _, fixed := assign[v.Name()]; !fixed {
			free = append(free, v)
		}
	}
	total := variable.CellCount(free)
	if total > e.limit {
		return nil, fmt.Errorf("enumerate: %d assignments exceed limit %d: %w", total, e.limit, internalerr.ErrInvalidInput)
	}

	query := resolved.Query
	stride := make([]int, len(query))
	step := 1
	for k := len(query) - 1; k >= 0; k-- {
		stride[k] = step
		step *= query[k].Size()
	}
	table := make([]float64, variable.CellCount(query))
	cpts := net.Factors()

	digits := make([]int, len(free))
	for n := 0; n < total; n++ {
		if n%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, fmt.Errorf("enumerate: %w", err)
			}
		}
		for k, v := range free {
			assign[v.Name()] = v.Value(digits[k])
		}

		p := 1.0
		for _, f := range cpts {
			x, err := f.ValueAt(assign)
			if err != nil {
				return nil, fmt.Errorf("enumerate: %s: %w", f.Brief(), err)
			}
			p *= x
			if p == 0 {
				break
			}
		}

		cell := 0
		for k, v := range query {
			pos, _ := v.IndexOf(assign[v.Name()])
			cell += pos * stride[k]
		}
		table[cell] += p

		for k := len(digits) - 1; k >= 0; k-- {
			digits[k]++
			if digits[k] < free[k].Size() {
				break
			}
			digits[k] = 0
		}
	}

	joint, err := factor.New(query, table)
	if err != nil {
		return nil, err
	}
	posterior, err := joint.Normalize()
	if err != nil {
		return nil, fmt.Errorf("enumerate: posterior of %v given %v: %w", req.Query, req.Evidence, err)
	}
	e.log.DebugContext(ctx, "query done", "query", req.Query, "assignments", total)

	return &inference.Result{
		Engine:    Name,
		Posterior: posterior,
		Barren:    []string{},
		Order:     []string{},
		PeakCells: total,
	}, nil
}
