// Package variable defines the named discrete random variables factors and
// networks are built from.
package variable

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/cognicore/velim/pkg/velim/internalerr"
)

// Variable is a named discrete random variable.
// The domain is sorted and deduplicated on construction and never changes.
type Variable struct {
	name   string
	domain []string
	index  map[string]int
}

// New creates a variable. Domain labels are sorted lexicographically and
// duplicates are dropped.
func New(name string, domain []string) (*Variable, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("variable: empty name: %w", internalerr.ErrInvalidInput)
	}

	seen := make(map[string]struct{}, len(domain))
	values := make([]string, 0, len(domain))
	for _, d := range domain {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		values = append(values, d)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("variable %s: empty domain: %w", name, internalerr.ErrInvalidInput)
	}
	sort.Strings(values)

	index := make(map[string]int, len(values))
	for i, v := range values {
		index[v] = i
	}

	return &Variable{name: name, domain: values, index: index}, nil
}

// MustNew is New for fixtures and tests; it panics on error.
func MustNew(name string, domain ...string) *Variable {
	v, err := New(name, domain)
	if err != nil {
		panic(err)
	}
	return v
}

// Name returns the variable name.
func (v *Variable) Name() string { return v.name }

// Domain returns a copy of the sorted domain.
func (v *Variable) Domain() []string {
	out := make([]string, len(v.domain))
	copy(out, v.domain)
	return out
}

// Size returns the number of domain values.
func (v *Variable) Size() int { return len(v.domain) }

// Value returns the domain label at position i.
func (v *Variable) Value(i int) string { return v.domain[i] }

// IndexOf returns the position of value in the domain.
func (v *Variable) IndexOf(value string) (int, bool) {
	i, ok := v.index[value]
	return i, ok
}

// Equal compares variables by name.
func (v *Variable) Equal(other *Variable) bool {
	return other != nil && v.name == other.name
}

// Less reports whether v sorts before other in the canonical order.
func (v *Variable) Less(other *Variable) bool {
	return v.name < other.name
}

func (v *Variable) String() string { return v.name }

// Compare orders two variables by name, returning -1, 0 or 1.
func Compare(a, b *Variable) int {
	return strings.Compare(a.name, b.name)
}

// Sort sorts variables in place into canonical order.
func Sort(vars []*Variable) {
	sort.Slice(vars, func(i, j int) bool { return vars[i].name < vars[j].name })
}

// IsSorted reports whether vars is strictly increasing in canonical order,
// which also rules out duplicates.
func IsSorted(vars []*Variable) bool {
	for i := 1; i < len(vars); i++ {
		if vars[i-1].name >= vars[i].name {
			return false
		}
	}
	return true
}

// Names returns the names of vars in order.
func Names(vars []*Variable) []string {
	names := make([]string, len(vars))
	for i, v := range vars {
		names[i] = v.name
	}
	return names
}

// Union merges two sorted variable lists into one sorted list without duplicates.
func Union(a, b []*Variable) []*Variable {
	out := make([]*Variable, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch Compare(a[i], b[j]) {
		case -1:
			out = append(out, a[i])
			i++
		case 1:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i])
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

// Without returns a copy of vars with target removed.
func Without(vars []*Variable, target *Variable) []*Variable {
	out := make([]*Variable, 0, len(vars))
	for _, v := range vars {
		if !v.Equal(target) {
			out = append(out, v)
		}
	}
	return out
}

// IndexIn returns the position of target in vars, or -1.
func IndexIn(vars []*Variable, target *Variable) int {
	for i, v := range vars {
		if v.Equal(target) {
			return i
		}
	}
	return -1
}

// CellCount is the number of assignments of vars, saturating at math.MaxInt.
func CellCount(vars []*Variable) int {
	n := 1
	for _, v := range vars {
		size := len(v.domain)
		if size > 0 && n > math.MaxInt/size {
			return math.MaxInt
		}
		n *= size
	}
	return n
}
