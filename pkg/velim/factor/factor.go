// Package factor implements discrete probability tables and the algebra used by
// variable elimination.
//
// A Factor stores one non-negative value per joint assignment of its variables in
// a flat slice. Variables are kept in canonical (name) order and the last variable
// varies fastest, so the flat index of (v1=a1, ..., vn=an) is
//
//	sum_i index(ai) * prod_{j>i} |domain(vj)|
//
// Every operation returns a new Factor; a Factor is never modified after
// construction and is safe to share between goroutines.
package factor

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/variable"
)

// Factor is an immutable table over an ordered set of variables.
type Factor struct {
	id      uint64
	vars    []*variable.Variable
	values  []float64
	reduced []*variable.Variable
}

// allocator hands out factor ids. Ids label factors in traces only.
type allocator struct {
	next atomic.Uint64
}

func (a *allocator) allocate() uint64 {
	return a.next.Add(1)
}

var ids allocator

// New creates a factor after checking the layout invariants: variables strictly
// sorted by name, one value per joint assignment, every value finite and
// non-negative. The slices are copied.
func New(vars []*variable.Variable, values []float64) (*Factor, error) {
	if !variable.IsSorted(vars) {
		return nil, fmt.Errorf("factor over %v: variables not in canonical order: %w",
			variable.Names(vars), internalerr.ErrStructural)
	}
	if want := variable.CellCount(vars); len(values) != want {
		return nil, fmt.Errorf("factor over %v: %d values, want %d: %w",
			variable.Names(vars), len(values), want, internalerr.ErrStructural)
	}
	for i, v := range values {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("factor over %v: value %d is %v: %w",
				variable.Names(vars), i, v, internalerr.ErrStructural)
		}
	}

	vs := make([]*variable.Variable, len(vars))
	copy(vs, vars)
	vals := make([]float64, len(values))
	copy(vals, values)
	return build(vs, vals, nil), nil
}

// MustNew is New for fixtures and tests; it panics on error.
func MustNew(vars []*variable.Variable, values []float64) *Factor {
	f, err := New(vars, values)
	if err != nil {
		panic(err)
	}
	return f
}

// build takes ownership of its arguments without validation.
func build(vars []*variable.Variable, values []float64, reduced []*variable.Variable) *Factor {
	return &Factor{
		id:      ids.allocate(),
		vars:    vars,
		values:  values,
		reduced: reduced,
	}
}

// ID returns the diagnostic id of the factor.
func (f *Factor) ID() uint64 { return f.id }

// Variables returns a copy of the factor's variables in canonical order.
func (f *Factor) Variables() []*variable.Variable {
	out := make([]*variable.Variable, len(f.vars))
	copy(out, f.vars)
	return out
}

// Names returns the names of the factor's variables in canonical order.
func (f *Factor) Names() []string { return variable.Names(f.vars) }

// Values returns a copy of the flat value table.
func (f *Factor) Values() []float64 {
	out := make([]float64, len(f.values))
	copy(out, f.values)
	return out
}

// Reduced returns the variables fixed by Reduce somewhere in this factor's history.
func (f *Factor) Reduced() []*variable.Variable {
	out := make([]*variable.Variable, len(f.reduced))
	copy(out, f.reduced)
	return out
}

// Arity is the number of variables.
func (f *Factor) Arity() int { return len(f.vars) }

// Len is the number of cells.
func (f *Factor) Len() int { return len(f.values) }

// IsScalar reports whether the factor has a single cell: either no variables
// left (fully reduced or summed out) or only single-valued variables.
func (f *Factor) IsScalar() bool { return len(f.values) == 1 }

// Contains reports whether v is one of the factor's variables.
func (f *Factor) Contains(v *variable.Variable) bool {
	return variable.IndexIn(f.vars, v) >= 0
}

// ContainsName reports whether a variable with this name is in the factor.
func (f *Factor) ContainsName(name string) bool {
	for _, v := range f.vars {
		if v.Name() == name {
			return true
		}
	}
	return false
}

// SharesVariable reports whether f and other have a variable in common.
func (f *Factor) SharesVariable(other *Factor) bool {
	i, j := 0, 0
	for i < len(f.vars) && j < len(other.vars) {
		switch variable.Compare(f.vars[i], other.vars[j]) {
		case -1:
			i++
		case 1:
			j++
		default:
			return true
		}
	}
	return false
}

// Sum returns the sum of all values.
func (f *Factor) Sum() float64 {
	var s float64
	for _, v := range f.values {
		s += v
	}
	return s
}

// ValueAt returns the value for a full assignment of the factor's variables.
func (f *Factor) ValueAt(assignment map[string]string) (float64, error) {
	idx := 0
	for _, v := range f.vars {
		label, ok := assignment[v.Name()]
		if !ok {
			return 0, fmt.Errorf("factor %s: no value for %s: %w", f.Brief(), v.Name(), internalerr.ErrInvalidReference)
		}
		pos, ok := v.IndexOf(label)
		if !ok {
			return 0, fmt.Errorf("factor %s: %s=%s outside domain: %w", f.Brief(), v.Name(), label, internalerr.ErrInvalidReference)
		}
		idx = idx*v.Size() + pos
	}
	return f.values[idx], nil
}

// Row is one joint assignment of a factor with its value.
type Row struct {
	Assignment []string // labels in the factor's variable order
	Value      float64
}

// Rows enumerates every cell in flat-array order.
func (f *Factor) Rows() []Row {
	rows := make([]Row, len(f.values))
	digits := make([]int, len(f.vars))
	for i, val := range f.values {
		labels := make([]string, len(f.vars))
		for k, v := range f.vars {
			labels[k] = v.Value(digits[k])
		}
		rows[i] = Row{Assignment: labels, Value: val}
		increment(digits, f.vars)
	}
	return rows
}

// increment advances a mixed-radix counter whose last digit varies fastest.
func increment(digits []int, vars []*variable.Variable) {
	for k := len(digits) - 1; k >= 0; k-- {
		digits[k]++
		if digits[k] < vars[k].Size() {
			return
		}
		digits[k] = 0
	}
}

// strides returns, for each variable, the distance in the flat array between
// consecutive values of that variable.
func strides(vars []*variable.Variable) []int {
	out := make([]int, len(vars))
	s := 1
	for i := len(vars) - 1; i >= 0; i-- {
		out[i] = s
		s *= vars[i].Size()
	}
	return out
}
