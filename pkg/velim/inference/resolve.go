package inference

import (
	"fmt"

	"github.com/cognicore/velim/pkg/velim/factor"
	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/network"
	"github.com/cognicore/velim/pkg/velim/variable"
)

// Observation is one resolved piece of evidence.
type Observation struct {
	ID       network.ID
	Variable *variable.Variable
	Value    string
}

// Resolved is a Request checked against a network.
type Resolved struct {
	Query    []*variable.Variable // canonical order
	QueryIDs []network.ID
	Evidence []Observation // canonical order

	// Observed is set when the single query variable is itself evidence; the
	// posterior is then the point mass on the observed value.
	Observed *Observation
}

// Resolve validates req against net: the query is non-empty without repeats,
// every name is a network variable and every observed value is in its domain.
func Resolve(net *network.Network, req Request) (*Resolved, error) {
	if len(req.Query) == 0 {
		return nil, fmt.Errorf("query: no query variables: %w", internalerr.ErrInvalidInput)
	}

	r := &Resolved{}
	seen := make(map[network.ID]bool, len(req.Query))
	for _, name := range req.Query {
		id, ok := net.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("query: variable %q: %w", name, internalerr.ErrInvalidReference)
		}
		if seen[id] {
			return nil, fmt.Errorf("query: variable %q repeated: %w", name, internalerr.ErrInvalidInput)
		}
		seen[id] = true
	}
	for id := 0; id < net.Len(); id++ {
		if seen[network.ID(id)] {
			r.QueryIDs = append(r.QueryIDs, network.ID(id))
			r.Query = append(r.Query, net.Variable(network.ID(id)))
		}
	}

	for _, name := range req.EvidenceNames() {
		value := req.Evidence[name]
		id, ok := net.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("evidence: variable %q: %w", name, internalerr.ErrInvalidReference)
		}
		v := net.Variable(id)
		if _, ok := v.IndexOf(value); !ok {
			return nil, fmt.Errorf("evidence: %s=%s outside domain %v: %w", name, value, v.Domain(), internalerr.ErrInvalidReference)
		}
		obs := Observation{ID: id, Variable: v, Value: value}
		if seen[id] {
			if len(req.Query) > 1 {
				return nil, fmt.Errorf("query: %s is both queried and observed: %w", name, internalerr.ErrInvalidInput)
			}
			o := obs
			r.Observed = &o
		}
		r.Evidence = append(r.Evidence, obs)
	}

	return r, nil
}

// PointMass returns the distribution putting all mass on v=value.
func PointMass(v *variable.Variable, value string) *factor.Factor {
	values := make([]float64, v.Size())
	pos, _ := v.IndexOf(value)
	values[pos] = 1
	return factor.MustNew([]*variable.Variable{v}, values)
}

// IsEvidence reports whether id is observed.
func (r *Resolved) IsEvidence(id network.ID) bool {
	for _, o := range r.Evidence {
		if o.ID == id {
			return true
		}
	}
	return false
}

// IsQuery reports whether id is queried.
func (r *Resolved) IsQuery(id network.ID) bool {
	for _, q := range r.QueryIDs {
		if q == id {
			return true
		}
	}
	return false
}

// QueryNames returns the query variable names in canonical order.
func (r *Resolved) QueryNames() []string { return variable.Names(r.Query) }

// Eliminable lists, in canonical order, the variables that are neither
// barren, observed nor queried: exactly those an elimination order must cover.
func (r *Resolved) Eliminable(net *network.Network, barren map[network.ID]bool) []string {
	var out []string
	for i := 0; i < net.Len(); i++ {
		id := network.ID(i)
		if barren[id] || r.IsEvidence(id) || r.IsQuery(id) {
			continue
		}
		out = append(out, net.Variable(id).Name())
	}
	return out
}

// CheckOrder requires names to list every eliminable variable exactly once.
// Names in skip may also appear; eliminating them is a no-op. Unknown names
// are ErrInvalidReference; missing, extra or repeated ones ErrOrderMismatch.
func CheckOrder(net *network.Network, names, eliminable, skip []string) error {
	want := make(map[string]bool, len(eliminable))
	for _, n := range eliminable {
		want[n] = true
	}
	allowed := make(map[string]bool, len(skip))
	for _, n := range skip {
		allowed[n] = true
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := net.Lookup(n); !ok {
			return fmt.Errorf("order: variable %q: %w", n, internalerr.ErrInvalidReference)
		}
		if seen[n] {
			return fmt.Errorf("order: %s listed twice: %w", n, internalerr.ErrOrderMismatch)
		}
		if !want[n] && !allowed[n] {
			return fmt.Errorf("order: %s is observed or queried: %w", n, internalerr.ErrOrderMismatch)
		}
		seen[n] = true
	}
	var missing []string
	for _, n := range eliminable {
		if !seen[n] {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("order: missing %v: %w", missing, internalerr.ErrOrderMismatch)
	}
	return nil
}

// CheckExplicit validates an explicit order against the variables left once
// barren ones are dropped. Barren variables may be listed too. Heuristic and
// nil orders always pass.
func (r *Resolved) CheckExplicit(net *network.Network, spec OrderSpec, barren map[network.ID]bool) error {
	explicit, ok := spec.(Explicit)
	if !ok {
		return nil
	}
	var skip []string
	for i := 0; i < net.Len(); i++ {
		if barren[network.ID(i)] {
			skip = append(skip, net.Variable(network.ID(i)).Name())
		}
	}
	return CheckOrder(net, explicit.Names, r.Eliminable(net, barren), skip)
}
