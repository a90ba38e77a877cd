// Package order chooses elimination orders and the order in which factors are
// multiplied together. Both are strategies behind small interfaces so the
// elimination driver does not depend on a particular heuristic.
package order

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cognicore/velim/pkg/velim/internalerr"
)

// Kind names a built-in elimination heuristic.
type Kind string

const (
	Lexicographic Kind = "lexicographic"
	MinDegree     Kind = "min-degree"
	MinFill       Kind = "min-fill"
	MinWeight     Kind = "min-weight"
)

// Kinds lists the built-in heuristics.
func Kinds() []Kind {
	return []Kind{Lexicographic, MinDegree, MinFill, MinWeight}
}

// Heuristic produces an elimination order for a set of variables.
type Heuristic interface {
	Name() string
	// Order returns a permutation of eliminate. g is not modified.
	Order(g *Graph, eliminate []string) []string
}

// New returns the heuristic of the given kind.
func New(kind Kind) (Heuristic, error) {
	switch kind {
	case Lexicographic, "":
		return lexicographic{}, nil
	case MinDegree:
		return greedy{kind: MinDegree, score: func(g *Graph, v string) int { return g.Degree(v) }}, nil
	case MinFill:
		return greedy{kind: MinFill, score: func(g *Graph, v string) int { return g.Fill(v) }}, nil
	case MinWeight:
		return greedy{kind: MinWeight, score: func(g *Graph, v string) int { return g.Weight(v) }}, nil
	default:
		return nil, fmt.Errorf("order: unknown heuristic %q: %w", kind, internalerr.ErrInvalidInput)
	}
}

// ParseKind parses a heuristic name, accepting underscores for dashes.
func ParseKind(name string) (Kind, error) {
	k := Kind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-"))
	if k == "" {
		return Lexicographic, nil
	}
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("order: unknown heuristic %q: %w", name, internalerr.ErrInvalidInput)
}

type lexicographic struct{}

func (lexicographic) Name() string { return string(Lexicographic) }

func (lexicographic) Order(_ *Graph, eliminate []string) []string {
	out := append([]string(nil), eliminate...)
	sort.Strings(out)
	return out
}

// greedy repeatedly eliminates the remaining variable with the lowest score,
// breaking ties by name.
type greedy struct {
	kind  Kind
	score func(g *Graph, v string) int
}

func (h greedy) Name() string { return string(h.kind) }

func (h greedy) Order(g *Graph, eliminate []string) []string {
	work := g.Clone()
	remaining := append([]string(nil), eliminate...)
	sort.Strings(remaining)

	out := make([]string, 0, len(remaining))
	for len(remaining) > 0 {
		best := 0
		bestScore := h.scoreOf(work, remaining[0])
		for i := 1; i < len(remaining); i++ {
			if s := h.scoreOf(work, remaining[i]); s < bestScore {
				best, bestScore = i, s
			}
		}
		v := remaining[best]
		out = append(out, v)
		if work.Has(v) {
			work.Eliminate(v)
		}
		remaining = append(remaining[:best], remaining[best+1:]...)
	}
	return out
}

// scoreOf treats variables absent from the graph (mentioned by no factor) as free.
func (h greedy) scoreOf(g *Graph, v string) int {
	if !g.Has(v) {
		return 0
	}
	return h.score(g, v)
}
