// Package network holds a discrete Bayesian network: its variables, the
// parent/child structure and one conditional probability table per variable.
//
// Variables live in an arena sorted by name; an ID is an index into it, and the
// graph is stored as ID lists rather than references between variables.
package network

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cognicore/velim/pkg/velim/factor"
	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/variable"
)

// ID identifies a variable within one network. IDs follow the canonical
// variable order, so sorting IDs sorts by name.
type ID int

// Definition describes one variable as produced by a network parser.
type Definition struct {
	Name    string
	Domain  []string // value labels in declaration order
	Parents []string
	Rows    []Row
}

// Row gives the distribution of a variable for one assignment of its parents.
type Row struct {
	Given []string  // parent values, in Definition.Parents order; empty for roots
	Probs []float64 // one probability per value, in Definition.Domain order
}

// Network is an immutable Bayesian network.
type Network struct {
	name     string
	vars     []*variable.Variable
	byName   map[string]ID
	parents  [][]ID
	children [][]ID
	cpts     []*factor.Factor
}

// New builds a network from variable definitions. It checks that names are
// unique, parents exist, the graph is acyclic and every table covers each
// parent assignment exactly once.
func New(name string, defs []Definition) (*Network, error) {
	if len(defs) == 0 {
		return nil, fmt.Errorf("network %s: no variables: %w", name, internalerr.ErrInvalidInput)
	}

	sorted := make([]Definition, len(defs))
	copy(sorted, defs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	n := &Network{
		name:     name,
		vars:     make([]*variable.Variable, len(sorted)),
		byName:   make(map[string]ID, len(sorted)),
		parents:  make([][]ID, len(sorted)),
		children: make([][]ID, len(sorted)),
		cpts:     make([]*factor.Factor, len(sorted)),
	}

	for i, def := range sorted {
		if _, dup := n.byName[def.Name]; dup {
			return nil, fmt.Errorf("network %s: variable %s: %w", name, def.Name, internalerr.ErrDuplicate)
		}
		if len(uniq(def.Domain)) != len(def.Domain) {
			return nil, fmt.Errorf("network %s: variable %s: repeated domain value: %w", name, def.Name, internalerr.ErrDuplicate)
		}
		v, err := variable.New(def.Name, def.Domain)
		if err != nil {
			return nil, fmt.Errorf("network %s: %w", name, err)
		}
		n.vars[i] = v
		n.byName[v.Name()] = ID(i)
	}

	for i, def := range sorted {
		seen := make(map[ID]bool, len(def.Parents))
		for _, p := range def.Parents {
			pid, ok := n.byName[p]
			if !ok {
				return nil, fmt.Errorf("network %s: parent %s of %s: %w", name, p, def.Name, internalerr.ErrInvalidReference)
			}
			if pid == ID(i) || seen[pid] {
				return nil, fmt.Errorf("network %s: parent %s of %s: %w", name, p, def.Name, internalerr.ErrStructural)
			}
			seen[pid] = true
			n.parents[i] = append(n.parents[i], pid)
			n.children[pid] = append(n.children[pid], ID(i))
		}
	}
	for i := range n.vars {
		sortIDs(n.parents[i])
		sortIDs(n.children[i])
	}

	if err := n.checkAcyclic(); err != nil {
		return nil, err
	}

	for i, def := range sorted {
		cpt, err := n.buildCPT(ID(i), def)
		if err != nil {
			return nil, fmt.Errorf("network %s: %w", name, err)
		}
		n.cpts[i] = cpt
	}

	return n, nil
}

// buildCPT lays the rows of def out as a factor over the variable and its
// parents in canonical order.
func (n *Network) buildCPT(id ID, def Definition) (*factor.Factor, error) {
	self := n.vars[id]
	parents := make([]*variable.Variable, len(def.Parents))
	for k, p := range def.Parents {
		parents[k] = n.vars[n.byName[p]]
	}

	table := make(map[string][]float64, len(def.Rows))
	for _, row := range def.Rows {
		if len(row.Given) != len(parents) {
			return nil, fmt.Errorf("table of %s: row %v names %d parent values, want %d: %w",
				def.Name, row.Given, len(row.Given), len(parents), internalerr.ErrStructural)
		}
		for k, val := range row.Given {
			if _, ok := parents[k].IndexOf(val); !ok {
				return nil, fmt.Errorf("table of %s: %s=%s outside domain: %w",
					def.Name, parents[k].Name(), val, internalerr.ErrInvalidReference)
			}
		}
		if len(row.Probs) != len(def.Domain) {
			return nil, fmt.Errorf("table of %s: row %v has %d probabilities, want %d: %w",
				def.Name, row.Given, len(row.Probs), len(def.Domain), internalerr.ErrStructural)
		}
		key := rowKey(row.Given)
		if _, dup := table[key]; dup {
			return nil, fmt.Errorf("table of %s: row %v: %w", def.Name, row.Given, internalerr.ErrDuplicate)
		}
		// Reorder probabilities from declaration order to domain order.
		probs := make([]float64, self.Size())
		for k, label := range def.Domain {
			pos, _ := self.IndexOf(label)
			probs[pos] = row.Probs[k]
		}
		table[key] = probs
	}
	if want := variable.CellCount(parents); len(table) != want {
		return nil, fmt.Errorf("table of %s: %d rows, want %d: %w", def.Name, len(table), want, internalerr.ErrStructural)
	}

	vars := append([]*variable.Variable{self}, parents...)
	variable.Sort(vars)

	values := make([]float64, variable.CellCount(vars))
	digits := make([]int, len(vars))
	given := make([]string, len(parents))
	for idx := range values {
		var own int
		for k, v := range vars {
			if v.Equal(self) {
				own = digits[k]
				continue
			}
			given[variable.IndexIn(parents, v)] = v.Value(digits[k])
		}
		values[idx] = table[rowKey(given)][own]

		for k := len(digits) - 1; k >= 0; k-- {
			digits[k]++
			if digits[k] < vars[k].Size() {
				break
			}
			digits[k] = 0
		}
	}

	f, err := factor.New(vars, values)
	if err != nil {
		return nil, fmt.Errorf("table of %s: %w", def.Name, err)
	}
	return f, nil
}

// checkAcyclic runs Kahn's algorithm over the parent lists.
func (n *Network) checkAcyclic() error {
	indeg := make([]int, len(n.vars))
	for i := range n.vars {
		indeg[i] = len(n.parents[i])
	}
	queue := make([]ID, 0, len(n.vars))
	for i, d := range indeg {
		if d == 0 {
			queue = append(queue, ID(i))
		}
	}
	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++
		for _, c := range n.children[id] {
			indeg[c]--
			if indeg[c] == 0 {
				queue = append(queue, c)
			}
		}
	}
	if visited != len(n.vars) {
		var cyclic []string
		for i, d := range indeg {
			if d > 0 {
				cyclic = append(cyclic, n.vars[i].Name())
			}
		}
		return fmt.Errorf("network %s: cycle through %v: %w", n.name, cyclic, internalerr.ErrStructural)
	}
	return nil
}

// Name returns the network name.
func (n *Network) Name() string { return n.name }

// Len returns the number of variables.
func (n *Network) Len() int { return len(n.vars) }

// Variables returns all variables in canonical order.
func (n *Network) Variables() []*variable.Variable {
	out := make([]*variable.Variable, len(n.vars))
	copy(out, n.vars)
	return out
}

// Names returns all variable names in canonical order.
func (n *Network) Names() []string { return variable.Names(n.vars) }

// Variable returns the variable with the given ID.
func (n *Network) Variable(id ID) *variable.Variable { return n.vars[id] }

// Lookup returns the ID of a variable by name.
func (n *Network) Lookup(name string) (ID, bool) {
	id, ok := n.byName[name]
	return id, ok
}

// VariableByName returns the named variable or ErrInvalidReference.
func (n *Network) VariableByName(name string) (*variable.Variable, error) {
	id, ok := n.byName[name]
	if !ok {
		return nil, fmt.Errorf("network %s: variable %q: %w", n.name, name, internalerr.ErrInvalidReference)
	}
	return n.vars[id], nil
}

// Parents returns the parent IDs of id in canonical order.
func (n *Network) Parents(id ID) []ID { return append([]ID(nil), n.parents[id]...) }

// Children returns the child IDs of id in canonical order.
func (n *Network) Children(id ID) []ID { return append([]ID(nil), n.children[id]...) }

// Roots returns the variables without parents.
func (n *Network) Roots() []ID {
	var roots []ID
	for i := range n.vars {
		if len(n.parents[i]) == 0 {
			roots = append(roots, ID(i))
		}
	}
	return roots
}

// Factor returns the conditional probability table of id.
func (n *Network) Factor(id ID) *factor.Factor { return n.cpts[id] }

// Factors returns every table, indexed by ID.
func (n *Network) Factors() []*factor.Factor {
	out := make([]*factor.Factor, len(n.cpts))
	copy(out, n.cpts)
	return out
}

// FactorByName returns the table of the named variable.
func (n *Network) FactorByName(name string) (*factor.Factor, error) {
	id, ok := n.byName[name]
	if !ok {
		return nil, fmt.Errorf("network %s: variable %q: %w", n.name, name, internalerr.ErrInvalidReference)
	}
	return n.cpts[id], nil
}

// Definitions reconstructs parser-level definitions, with domains in canonical
// order. Useful for exporting a network.
func (n *Network) Definitions() []Definition {
	defs := make([]Definition, len(n.vars))
	for i, v := range n.vars {
		parents := make([]*variable.Variable, len(n.parents[i]))
		for k, p := range n.parents[i] {
			parents[k] = n.vars[p]
		}

		def := Definition{
			Name:    v.Name(),
			Domain:  v.Domain(),
			Parents: variable.Names(parents),
		}

		cpt := n.cpts[i]
		digits := make([]int, len(parents))
		for r := 0; r < variable.CellCount(parents); r++ {
			assign := make(map[string]string, len(parents)+1)
			given := make([]string, len(parents))
			for k, p := range parents {
				given[k] = p.Value(digits[k])
				assign[p.Name()] = given[k]
			}
			probs := make([]float64, v.Size())
			for d := 0; d < v.Size(); d++ {
				assign[v.Name()] = v.Value(d)
				probs[d], _ = cpt.ValueAt(assign)
			}
			def.Rows = append(def.Rows, Row{Given: given, Probs: probs})

			for k := len(digits) - 1; k >= 0; k-- {
				digits[k]++
				if digits[k] < parents[k].Size() {
					break
				}
				digits[k] = 0
			}
		}
		defs[i] = def
	}
	return defs
}

func rowKey(values []string) string { return strings.Join(values, "\x00") }

func uniq(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

func sortIDs(ids []ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}
