package order

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cognicore/velim/pkg/velim/factor"
	"github.com/cognicore/velim/pkg/velim/internalerr"
)

// Pairing picks the next two factors to multiply out of a working list.
// Implementations must return distinct indices; callers pass at least two factors.
type Pairing interface {
	Name() string
	ChoosePair(factors []*factor.Factor) (i, j int)
}

// SmallestArity multiplies the two factors with the fewest variables first,
// then the fewest cells, then the earliest position.
type SmallestArity struct{}

func (SmallestArity) Name() string { return "smallest-arity" }

func (SmallestArity) ChoosePair(factors []*factor.Factor) (int, int) {
	return firstTwo(factors, func(a, b *factor.Factor) bool {
		if a.Arity() != b.Arity() {
			return a.Arity() < b.Arity()
		}
		return a.Len() < b.Len()
	})
}

// SmallestTable multiplies the two factors with the fewest cells first.
type SmallestTable struct{}

func (SmallestTable) Name() string { return "smallest-table" }

func (SmallestTable) ChoosePair(factors []*factor.Factor) (int, int) {
	return firstTwo(factors, func(a, b *factor.Factor) bool {
		if a.Len() != b.Len() {
			return a.Len() < b.Len()
		}
		return a.Arity() < b.Arity()
	})
}

// firstTwo returns the indices of the two smallest factors under less, in
// ascending index order. Ties keep list order.
func firstTwo(factors []*factor.Factor, less func(a, b *factor.Factor) bool) (int, int) {
	idx := make([]int, len(factors))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(x, y int) bool { return less(factors[idx[x]], factors[idx[y]]) })
	i, j := idx[0], idx[1]
	if i > j {
		i, j = j, i
	}
	return i, j
}

// ParsePairing returns the pairing strategy with the given name; empty means
// SmallestArity.
func ParsePairing(name string) (Pairing, error) {
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "_", "-") {
	case "", "smallest-arity":
		return SmallestArity{}, nil
	case "smallest-table":
		return SmallestTable{}, nil
	default:
		return nil, fmt.Errorf("order: unknown pairing %q: %w", name, internalerr.ErrInvalidInput)
	}
}
