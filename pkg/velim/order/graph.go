package order

import (
	"sort"

	"github.com/cognicore/velim/pkg/velim/factor"
	"github.com/cognicore/velim/pkg/velim/variable"
)

// Graph is the interaction graph of a factor set: variables are adjacent when
// they appear together in some factor.
type Graph struct {
	vars map[string]*variable.Variable
	adj  map[string]map[string]struct{}
}

// NewGraph builds the interaction graph of factors.
func NewGraph(factors []*factor.Factor) *Graph {
	scopes := make([][]*variable.Variable, len(factors))
	for i, f := range factors {
		scopes[i] = f.Variables()
	}
	return NewGraphFromScopes(scopes)
}

// NewGraphFromScopes builds the interaction graph of tables known only by
// their variable sets.
func NewGraphFromScopes(scopes [][]*variable.Variable) *Graph {
	g := &Graph{
		vars: make(map[string]*variable.Variable),
		adj:  make(map[string]map[string]struct{}),
	}
	for _, vars := range scopes {
		for _, v := range vars {
			g.add(v)
		}
		for i := range vars {
			for j := i + 1; j < len(vars); j++ {
				g.connect(vars[i].Name(), vars[j].Name())
			}
		}
	}
	return g
}

func (g *Graph) add(v *variable.Variable) {
	if _, ok := g.vars[v.Name()]; ok {
		return
	}
	g.vars[v.Name()] = v
	g.adj[v.Name()] = make(map[string]struct{})
}

func (g *Graph) connect(a, b string) {
	if a == b {
		return
	}
	g.adj[a][b] = struct{}{}
	g.adj[b][a] = struct{}{}
}

// Has reports whether name is a vertex.
func (g *Graph) Has(name string) bool {
	_, ok := g.vars[name]
	return ok
}

// Neighbors returns the sorted neighbors of name.
func (g *Graph) Neighbors(name string) []string {
	out := make([]string, 0, len(g.adj[name]))
	for n := range g.adj[name] {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Degree returns the number of neighbors of name.
func (g *Graph) Degree(name string) int { return len(g.adj[name]) }

// Fill returns the number of edges that eliminating name would add.
func (g *Graph) Fill(name string) int {
	nbrs := g.Neighbors(name)
	missing := 0
	for i := range nbrs {
		for j := i + 1; j < len(nbrs); j++ {
			if _, ok := g.adj[nbrs[i]][nbrs[j]]; !ok {
				missing++
			}
		}
	}
	return missing
}

// Weight returns the number of cells of the factor produced by eliminating
// name: the product of the domain sizes of name and its neighbors.
func (g *Graph) Weight(name string) int {
	w := g.vars[name].Size()
	for n := range g.adj[name] {
		w *= g.vars[n].Size()
	}
	return w
}

// Eliminate removes name and connects its neighbors pairwise.
func (g *Graph) Eliminate(name string) {
	nbrs := g.Neighbors(name)
	for i := range nbrs {
		for j := i + 1; j < len(nbrs); j++ {
			g.connect(nbrs[i], nbrs[j])
		}
	}
	for _, n := range nbrs {
		delete(g.adj[n], name)
	}
	delete(g.adj, name)
	delete(g.vars, name)
}

// Clone returns an independent copy.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		vars: make(map[string]*variable.Variable, len(g.vars)),
		adj:  make(map[string]map[string]struct{}, len(g.adj)),
	}
	for name, v := range g.vars {
		c.vars[name] = v
		nbrs := make(map[string]struct{}, len(g.adj[name]))
		for n := range g.adj[name] {
			nbrs[n] = struct{}{}
		}
		c.adj[name] = nbrs
	}
	return c
}
