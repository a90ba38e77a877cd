// Package barren finds variables that can be dropped before inference because
// they influence neither the query nor the evidence.
package barren

import (
	"fmt"
	"sort"

	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/network"
)

// Graph is the part of a network the analysis needs.
type Graph interface {
	Len() int
	Roots() []network.ID
	Children(id network.ID) []network.ID
	Lookup(name string) (network.ID, bool)
}

// Find returns the barren variables for a query, sorted. A variable is barren
// when it is neither queried nor observed and all of its children (if any) are
// barren.
func Find(g Graph, query, evidence []string) ([]network.ID, error) {
	keep := make(map[network.ID]bool, len(query)+len(evidence))
	for _, name := range append(append([]string(nil), query...), evidence...) {
		id, ok := g.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("barren: variable %q: %w", name, internalerr.ErrInvalidReference)
		}
		keep[id] = true
	}

	w := walker{
		g:      g,
		keep:   keep,
		status: make(map[network.ID]bool, g.Len()),
	}
	for _, root := range g.Roots() {
		w.visit(root)
	}

	out := make([]network.ID, 0, len(w.barren))
	for id := range w.barren {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

type walker struct {
	g      Graph
	keep   map[network.ID]bool
	status map[network.ID]bool // memoized barren-ness of visited nodes
	barren map[network.ID]struct{}
}

// visit returns whether id is barren. Every child is visited even when an
// earlier child already decided the answer, so barren nodes below a non-barren
// one are still recorded.
func (w *walker) visit(id network.ID) bool {
	if b, ok := w.status[id]; ok {
		return b
	}

	allBarren := true
	for _, c := range w.g.Children(id) {
		if !w.visit(c) {
			allBarren = false
		}
	}

	b := !w.keep[id] && allBarren
	w.status[id] = b
	if b {
		if w.barren == nil {
			w.barren = make(map[network.ID]struct{})
		}
		w.barren[id] = struct{}{}
	}
	return b
}

// Names returns the names of the variables with the given ids, in order.
func Names(n *network.Network, ids []network.ID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = n.Variable(id).Name()
	}
	return out
}
