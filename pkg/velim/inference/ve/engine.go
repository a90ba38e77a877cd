// Package ve answers queries by variable elimination: barren variables are
// dropped, evidence is reduced into the conditional tables, then every other
// non-query variable is multiplied together and summed out in turn.
package ve

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cognicore/velim/internal/logging"
	"github.com/cognicore/velim/pkg/velim/barren"
	"github.com/cognicore/velim/pkg/velim/factor"
	"github.com/cognicore/velim/pkg/velim/inference"
	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/network"
	"github.com/cognicore/velim/pkg/velim/order"
)

// Name identifies this engine.
const Name = "ve"

// Config tunes the engine. The zero value is usable.
type Config struct {
	Logger               *slog.Logger  // nil discards
	Pairing              order.Pairing // nil means order.SmallestArity
	DisableBarrenPruning bool
}

// Engine is a variable elimination engine. It holds no per-query state and is
// safe for concurrent use.
type Engine struct {
	log         *slog.Logger
	pairing     order.Pairing
	pruneBarren bool
}

// New creates an engine.
func New(cfg Config) *Engine {
	pairing := cfg.Pairing
	if pairing == nil {
		pairing = order.SmallestArity{}
	}
	return &Engine{
		log:         logging.OrDiscard(cfg.Logger).With("engine", Name),
		pairing:     pairing,
		pruneBarren: !cfg.DisableBarrenPruning,
	}
}

// Name implements inference.Engine.
func (e *Engine) Name() string { return Name }

// Query implements inference.Engine.
func (e *Engine) Query(ctx context.Context, net *network.Network, req inference.Request) (*inference.Result, error) {
	start := time.Now()
	ctx, span := startQuerySpan(ctx, net.Name(), req)
	defer span.End()

	res, err := e.query(ctx, net, req)
	recordQuery(span, res, err, time.Since(start))
	if err != nil {
		e.log.DebugContext(ctx, "query failed", "query", req.Query, "error", err)
		return nil, err
	}
	e.log.DebugContext(ctx, "query done",
		"query", req.Query,
		"evidence", req.Evidence,
		"order", res.Order,
		"peak_cells", res.PeakCells,
		"elapsed", time.Since(start),
	)
	return res, nil
}

// run carries the working state of one query.
type run struct {
	e       *Engine
	net     *network.Network
	factors []*factor.Factor
	steps   []inference.Step
	peak    int
}

func (e *Engine) query(ctx context.Context, net *network.Network, req inference.Request) (*inference.Result, error) {
	resolved, err := inference.Resolve(net, req)
	if err != nil {
		return nil, err
	}
	isBarren := make(map[network.ID]bool)
	barrenNames := []string{}
	if e.pruneBarren {
		ids, err := barren.Find(net, resolved.QueryNames(), req.EvidenceNames())
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			isBarren[id] = true
		}
		barrenNames = barren.Names(net, ids)
	}
	if err := resolved.CheckExplicit(net, req.Order, isBarren); err != nil {
		return nil, err
	}

	if resolved.Observed != nil {
		obs := resolved.Observed
		return &inference.Result{
			Engine:    Name,
			Posterior: inference.PointMass(obs.Variable, obs.Value),
			Barren:    []string{},
			Order:     []string{},
			PeakCells: obs.Variable.Size(),
		}, nil
	}

	eliminate := resolved.Eliminable(net, isBarren)

	r := &run{e: e, net: net}
	if err := r.load(resolved, isBarren); err != nil {
		return nil, err
	}

	elimOrder, err := resolveOrder(req.Order, r.factors, eliminate)
	if err != nil {
		return nil, err
	}
	e.log.DebugContext(ctx, "eliminating",
		"barren", barrenNames,
		"order", elimOrder,
		"factors", len(r.factors),
	)

	for _, name := range elimOrder {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ve: eliminating %s: %w", name, err)
		}
		if err := r.eliminate(ctx, name); err != nil {
			return nil, err
		}
	}

	joint, err := r.combine(r.factors, true)
	if err != nil {
		return nil, err
	}
	posterior, err := joint.Normalize()
	if err != nil {
		return nil, fmt.Errorf("ve: posterior of %v given %v: %w", req.Query, req.Evidence, err)
	}
	if got, want := posterior.Names(), resolved.QueryNames(); !equalNames(got, want) {
		return nil, fmt.Errorf("ve: posterior over %v, want %v: %w", got, want, internalerr.ErrStructural)
	}
	logging.Trace(ctx, e.log, "posterior", "table", posterior.String())

	return &inference.Result{
		Engine:    Name,
		Posterior: posterior,
		Barren:    barrenNames,
		Order:     elimOrder,
		Steps:     r.steps,
		PeakCells: r.peak,
	}, nil
}

// load collects the conditional tables of non-barren variables, each reduced
// by every observed variable it mentions.
func (r *run) load(resolved *inference.Resolved, isBarren map[network.ID]bool) error {
	for i := 0; i < r.net.Len(); i++ {
		id := network.ID(i)
		if isBarren[id] {
			continue
		}
		f := r.net.Factor(id)
		for _, obs := range resolved.Evidence {
			if !f.Contains(obs.Variable) {
				continue
			}
			reduced, err := f.Reduce(obs.Variable, obs.Value)
			if err != nil {
				return fmt.Errorf("ve: reduce %s by %s=%s: %w", f.Brief(), obs.Variable.Name(), obs.Value, err)
			}
			f = reduced
		}
		r.factors = append(r.factors, f)
		r.observe(f)
	}
	return nil
}

// eliminate multiplies every factor mentioning name and sums name out.
func (r *run) eliminate(ctx context.Context, name string) error {
	var mentioning, rest []*factor.Factor
	for _, f := range r.factors {
		if f.ContainsName(name) {
			mentioning = append(mentioning, f)
		} else {
			rest = append(rest, f)
		}
	}
	if len(mentioning) == 0 {
		r.e.log.DebugContext(ctx, "no factor mentions variable", "variable", name)
		return nil
	}

	ctx, span := startEliminateSpan(ctx, name, len(mentioning))
	defer span.End()

	product, err := r.combine(mentioning, false)
	if err != nil {
		return fmt.Errorf("ve: eliminating %s: %w", name, err)
	}
	v, err := r.net.VariableByName(name)
	if err != nil {
		return err
	}
	summed, err := product.Marginalize(v)
	if err != nil {
		return fmt.Errorf("ve: eliminating %s: %w", name, err)
	}

	step := inference.Step{
		Variable: name,
		Inputs:   briefs(mentioning),
		Output:   summed.Brief(),
		Arity:    product.Arity(),
		Cells:    product.Len(),
	}
	r.steps = append(r.steps, step)
	r.factors = append(rest, summed)

	r.e.log.DebugContext(ctx, "eliminated",
		"variable", name,
		"inputs", step.Inputs,
		"output", step.Output,
		"cells", step.Cells,
	)
	logging.Trace(ctx, r.e.log, "eliminated table", "variable", name, "table", summed.String())
	return nil
}

// combine multiplies factors together, pair by pair, as the pairing strategy
// chooses. With outer set, pairs sharing no variable are joined by Outer.
func (r *run) combine(factors []*factor.Factor, outer bool) (*factor.Factor, error) {
	if len(factors) == 0 {
		return nil, fmt.Errorf("ve: nothing to multiply: %w", internalerr.ErrStructural)
	}
	work := append([]*factor.Factor(nil), factors...)
	for len(work) > 1 {
		i, j := r.e.pairing.ChoosePair(work)
		a, b := work[i], work[j]

		var p *factor.Factor
		if outer && !a.IsScalar() && !b.IsScalar() && !a.SharesVariable(b) {
			p = a.Outer(b)
		} else {
			var err error
			if p, err = a.Product(b); err != nil {
				return nil, err
			}
		}
		r.observe(p)

		work[i] = p
		work = append(work[:j], work[j+1:]...)
	}
	return work[0], nil
}

func (r *run) observe(f *factor.Factor) {
	if f.Len() > r.peak {
		r.peak = f.Len()
	}
}

// resolveOrder picks the elimination order. Explicit orders are already
// checked and may name barren variables, which no factor mentions.
func resolveOrder(spec inference.OrderSpec, factors []*factor.Factor, eliminate []string) ([]string, error) {
	switch s := spec.(type) {
	case nil:
		return orderBy(order.Lexicographic, factors, eliminate)
	case inference.Auto:
		return orderBy(s.Heuristic, factors, eliminate)
	case inference.Explicit:
		return append([]string{}, s.Names...), nil
	default:
		return nil, fmt.Errorf("ve: unsupported order %T: %w", spec, internalerr.ErrInvalidInput)
	}
}

func orderBy(kind order.Kind, factors []*factor.Factor, eliminate []string) ([]string, error) {
	h, err := order.New(kind)
	if err != nil {
		return nil, err
	}
	return append([]string{}, h.Order(order.NewGraph(factors), eliminate)...), nil
}

func briefs(fs []*factor.Factor) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.Brief()
	}
	return out
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
