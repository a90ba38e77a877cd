package factor

import (
	"fmt"
	"math"

	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/variable"
)

// chunkInfo describes how the values of v are laid out: chunk is the number of
// contiguous cells that share one value of v, and span is chunk*|v|, the size of
// one full cycle through v's domain.
func (f *Factor) chunkInfo(v *variable.Variable) (chunk, span int, ok bool) {
	pos := variable.IndexIn(f.vars, v)
	if pos < 0 {
		return 0, 0, false
	}
	chunk = variable.CellCount(f.vars[pos+1:])
	return chunk, chunk * f.vars[pos].Size(), true
}

// Reduce fixes v to value and drops v from the factor.
func (f *Factor) Reduce(v *variable.Variable, value string) (*Factor, error) {
	chunk, span, ok := f.chunkInfo(v)
	if !ok {
		return nil, fmt.Errorf("reduce %s: %s not in factor: %w", f.Brief(), v.Name(), internalerr.ErrStructural)
	}
	pos, ok := v.IndexOf(value)
	if !ok {
		return nil, fmt.Errorf("reduce %s: %s=%s outside domain %v: %w",
			f.Brief(), v.Name(), value, v.Domain(), internalerr.ErrInvalidReference)
	}

	values := make([]float64, 0, len(f.values)/v.Size())
	for base := chunk * pos; base < len(f.values); base += span {
		values = append(values, f.values[base:base+chunk]...)
	}

	reduced := variable.Union(f.reduced, []*variable.Variable{v})
	return build(variable.Without(f.vars, v), values, reduced), nil
}

// Marginalize sums v out of the factor. Summing out the last variable leaves a
// zero-variable factor holding the total.
func (f *Factor) Marginalize(v *variable.Variable) (*Factor, error) {
	chunk, span, ok := f.chunkInfo(v)
	if !ok {
		return nil, fmt.Errorf("marginalize %s: %s not in factor: %w", f.Brief(), v.Name(), internalerr.ErrStructural)
	}

	size := v.Size()
	values := make([]float64, 0, len(f.values)/size)
	for base := 0; base < len(f.values); base += span {
		for i := 0; i < chunk; i++ {
			var s float64
			for d := 0; d < size; d++ {
				s += f.values[base+d*chunk+i]
			}
			values = append(values, s)
		}
	}

	return build(variable.Without(f.vars, v), values, f.Reduced()), nil
}

// Product multiplies two factors pointwise, aligned on their shared variables.
// The factors must share a variable unless one of them is scalar, in which case
// its single value scales every cell of the other.
func (f *Factor) Product(other *Factor) (*Factor, error) {
	if f.IsScalar() || other.IsScalar() {
		return f.broadcast(other), nil
	}
	if !f.SharesVariable(other) {
		return nil, fmt.Errorf("product %s x %s: no shared variable: %w",
			f.Brief(), other.Brief(), internalerr.ErrStructural)
	}
	return f.multiply(other), nil
}

// Outer multiplies two factors without requiring a shared variable. It is the
// cartesian product when the variable sets are disjoint and is used only to
// join independent query marginals.
func (f *Factor) Outer(other *Factor) *Factor {
	if f.IsScalar() || other.IsScalar() {
		return f.broadcast(other)
	}
	return f.multiply(other)
}

func (f *Factor) broadcast(other *Factor) *Factor {
	scalar, table := f, other
	if !f.IsScalar() {
		scalar, table = other, f
	}
	c := scalar.values[0]
	values := make([]float64, len(table.values))
	for i, v := range table.values {
		values[i] = v * c
	}
	// Single-valued variables do not change the layout of the other table.
	return build(
		variable.Union(f.vars, other.vars),
		values,
		variable.Union(f.reduced, other.reduced),
	)
}

// multiply enumerates every assignment of the union in canonical order and
// looks up each input through its own strides.
func (f *Factor) multiply(other *Factor) *Factor {
	union := variable.Union(f.vars, other.vars)
	fStride := projectStrides(union, f.vars)
	oStride := projectStrides(union, other.vars)

	n := variable.CellCount(union)
	values := make([]float64, n)
	digits := make([]int, len(union))
	fi, oi := 0, 0
	for idx := 0; idx < n; idx++ {
		values[idx] = f.values[fi] * other.values[oi]

		for k := len(union) - 1; k >= 0; k-- {
			digits[k]++
			fi += fStride[k]
			oi += oStride[k]
			if digits[k] < union[k].Size() {
				break
			}
			fi -= fStride[k] * digits[k]
			oi -= oStride[k] * digits[k]
			digits[k] = 0
		}
	}

	return build(union, values, variable.Union(f.reduced, other.reduced))
}

// projectStrides maps each union variable to its stride in sub, or 0 when the
// variable is absent from sub.
func projectStrides(union, sub []*variable.Variable) []int {
	subStrides := strides(sub)
	out := make([]int, len(union))
	j := 0
	for i, v := range union {
		if j < len(sub) && sub[j].Equal(v) {
			out[i] = subStrides[j]
			j++
		}
	}
	return out
}

// Normalize scales the values to sum to one.
func (f *Factor) Normalize() (*Factor, error) {
	sum := f.Sum()
	if !(sum > 0) || math.IsInf(sum, 0) {
		return nil, fmt.Errorf("normalize %s: sum is %v: %w", f.Brief(), sum, internalerr.ErrDegenerateNormalization)
	}
	values := make([]float64, len(f.values))
	for i, v := range f.values {
		values[i] = v / sum
	}
	return build(f.Variables(), values, f.Reduced()), nil
}
