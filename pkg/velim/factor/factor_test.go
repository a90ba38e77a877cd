package factor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/variable"
)

// tabulate builds a factor by evaluating fn on every assignment in canonical order.
func tabulate(t *testing.T, vars []*variable.Variable, fn func(map[string]string) float64) *Factor {
	t.Helper()
	variable.Sort(vars)
	values := make([]float64, variable.CellCount(vars))
	digits := make([]int, len(vars))
	for i := range values {
		assign := make(map[string]string, len(vars))
		for k, v := range vars {
			assign[v.Name()] = v.Value(digits[k])
		}
		values[i] = fn(assign)
		increment(digits, vars)
	}
	f, err := New(vars, values)
	require.NoError(t, err)
	return f
}

// surveyE is P(E | A, S) from the survey network.
func surveyE(t *testing.T) (*Factor, *variable.Variable, *variable.Variable, *variable.Variable) {
	a := variable.MustNew("A", "young", "adult", "old")
	s := variable.MustNew("S", "M", "F")
	e := variable.MustNew("E", "high", "uni")
	high := map[string]float64{
		"young/M": 0.75, "adult/M": 0.72, "old/M": 0.88,
		"young/F": 0.64, "adult/F": 0.70, "old/F": 0.90,
	}
	f := tabulate(t, []*variable.Variable{a, s, e}, func(m map[string]string) float64 {
		p := high[m["A"]+"/"+m["S"]]
		if m["E"] == "uni" {
			return 1 - p
		}
		return p
	})
	return f, a, e, s
}

func TestNewValidatesLayout(t *testing.T) {
	a := variable.MustNew("A", "x", "y")
	b := variable.MustNew("B", "x", "y", "z")

	_, err := New([]*variable.Variable{b, a}, make([]float64, 6))
	assert.ErrorIs(t, err, internalerr.ErrStructural)

	_, err = New([]*variable.Variable{a, a}, make([]float64, 4))
	assert.ErrorIs(t, err, internalerr.ErrStructural)

	_, err = New([]*variable.Variable{a, b}, make([]float64, 5))
	assert.ErrorIs(t, err, internalerr.ErrStructural)

	_, err = New([]*variable.Variable{a}, []float64{0.5, -0.1})
	assert.ErrorIs(t, err, internalerr.ErrStructural)

	f, err := New([]*variable.Variable{a, b}, make([]float64, 6))
	require.NoError(t, err)
	assert.Equal(t, 2, f.Arity())
	assert.Equal(t, 6, f.Len())
}

func TestFactorIDsIncrease(t *testing.T) {
	a := variable.MustNew("A", "x")
	f1 := MustNew([]*variable.Variable{a}, []float64{1})
	f2 := MustNew([]*variable.Variable{a}, []float64{1})
	assert.Greater(t, f2.ID(), f1.ID())
}

func TestReduce(t *testing.T) {
	f, a, e, s := surveyE(t)

	r, err := f.Reduce(a, "adult")
	require.NoError(t, err)
	assert.Equal(t, []string{"E", "S"}, r.Names())
	// E=high,S=F ; E=high,S=M ; E=uni,S=F ; E=uni,S=M
	assert.InDeltaSlice(t, []float64{0.70, 0.72, 0.30, 0.28}, r.Values(), 1e-12)
	assert.Equal(t, []string{"A"}, variable.Names(r.Reduced()))

	r2, err := r.Reduce(s, "M")
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.72, 0.28}, r2.Values(), 1e-12)
	assert.Equal(t, []string{"A", "S"}, variable.Names(r2.Reduced()))

	r3, err := r2.Reduce(e, "uni")
	require.NoError(t, err)
	assert.Equal(t, 0, r3.Arity())
	assert.True(t, r3.IsScalar())
	assert.InDelta(t, 0.28, r3.Values()[0], 1e-12)
}

func TestReduceRejectsBadInput(t *testing.T) {
	f, a, _, _ := surveyE(t)
	other := variable.MustNew("Z", "x")

	_, err := f.Reduce(other, "x")
	assert.ErrorIs(t, err, internalerr.ErrStructural)

	_, err = f.Reduce(a, "ancient")
	assert.ErrorIs(t, err, internalerr.ErrInvalidReference)
}

func TestMarginalizeOwnAxisIsAllOnes(t *testing.T) {
	f, _, e, _ := surveyE(t)

	m, err := f.Marginalize(e)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "S"}, m.Names())
	require.Len(t, m.Values(), 6)
	for _, v := range m.Values() {
		assert.InDelta(t, 1.0, v, 1e-12)
	}
}

func TestReduceMarginalizeRoundTrip(t *testing.T) {
	f, a, e, s := surveyE(t)

	for _, v := range []*variable.Variable{a, e, s} {
		m, err := f.Marginalize(v)
		require.NoError(t, err)

		sum := make([]float64, m.Len())
		for _, val := range v.Domain() {
			r, err := f.Reduce(v, val)
			require.NoError(t, err)
			for i, x := range r.Values() {
				sum[i] += x
			}
		}
		assert.Equal(t, m.Values(), sum, "variable %s", v.Name())
	}
}

func TestMarginalizeLastVariable(t *testing.T) {
	a := variable.MustNew("A", "x", "y", "z")
	f := MustNew([]*variable.Variable{a}, []float64{0.2, 0.3, 0.1})

	m, err := f.Marginalize(a)
	require.NoError(t, err)
	assert.Equal(t, 0, m.Arity())
	assert.InDelta(t, 0.6, m.Values()[0], 1e-12)

	_, err = m.Marginalize(a)
	assert.ErrorIs(t, err, internalerr.ErrStructural)
}

func TestProductMatchesPointwiseDefinition(t *testing.T) {
	a := variable.MustNew("A", "a0", "a1")
	b := variable.MustNew("B", "b0", "b1", "b2")
	c := variable.MustNew("C", "c0", "c1")
	d := variable.MustNew("D", "d0", "d1")

	fa := tabulate(t, []*variable.Variable{a, c, d}, func(m map[string]string) float64 {
		return float64(len(m["A"]+m["C"]+m["D"])) + float64(m["A"][1]-'0')*3 + float64(m["D"][1]-'0')
	})
	fb := tabulate(t, []*variable.Variable{b, c}, func(m map[string]string) float64 {
		return float64(m["B"][1]-'0') + 10*float64(m["C"][1]-'0') + 1
	})

	p, err := fa.Product(fb)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "D"}, p.Names())
	require.Equal(t, 24, p.Len())

	for _, row := range p.Rows() {
		assign := map[string]string{"A": row.Assignment[0], "B": row.Assignment[1], "C": row.Assignment[2], "D": row.Assignment[3]}
		va, err := fa.ValueAt(assign)
		require.NoError(t, err)
		vb, err := fb.ValueAt(assign)
		require.NoError(t, err)
		assert.InDelta(t, va*vb, row.Value, 1e-12)
	}
}

func TestProductCommutes(t *testing.T) {
	f, a, _, _ := surveyE(t)
	prior := MustNew([]*variable.Variable{a}, []float64{0.5, 0.2, 0.3})

	ab, err := f.Product(prior)
	require.NoError(t, err)
	ba, err := prior.Product(f)
	require.NoError(t, err)

	assert.Equal(t, ab.Names(), ba.Names())
	assert.Equal(t, ab.Values(), ba.Values())
}

func TestProductRejectsDisjointTables(t *testing.T) {
	a := variable.MustNew("A", "x", "y")
	b := variable.MustNew("B", "x", "y")
	fa := MustNew([]*variable.Variable{a}, []float64{0.4, 0.6})
	fb := MustNew([]*variable.Variable{b}, []float64{0.1, 0.9})

	_, err := fa.Product(fb)
	assert.ErrorIs(t, err, internalerr.ErrStructural)

	outer := fa.Outer(fb)
	assert.Equal(t, []string{"A", "B"}, outer.Names())
	assert.InDeltaSlice(t, []float64{0.04, 0.36, 0.06, 0.54}, outer.Values(), 1e-12)
}

func TestProductWithFullyReducedFactor(t *testing.T) {
	f, a, e, s := surveyE(t)
	scalar, err := f.Reduce(a, "old")
	require.NoError(t, err)
	scalar, err = scalar.Reduce(e, "high")
	require.NoError(t, err)
	scalar, err = scalar.Reduce(s, "F")
	require.NoError(t, err)
	require.True(t, scalar.IsScalar())

	b := variable.MustNew("B", "x", "y")
	fb := MustNew([]*variable.Variable{b}, []float64{0.25, 0.75})

	p, err := fb.Product(scalar)
	require.NoError(t, err)
	assert.Equal(t, []string{"B"}, p.Names())
	assert.InDeltaSlice(t, []float64{0.225, 0.675}, p.Values(), 1e-12)
	assert.Equal(t, []string{"A", "E", "S"}, variable.Names(p.Reduced()))
}

func TestProductWithSingleValuedVariable(t *testing.T) {
	one := variable.MustNew("K", "only")
	fk := MustNew([]*variable.Variable{one}, []float64{0.5})
	f, _, _, _ := surveyE(t)

	p, err := f.Product(fk)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "E", "K", "S"}, p.Names())
	want := f.Values()
	for i := range want {
		want[i] *= 0.5
	}
	assert.InDeltaSlice(t, want, p.Values(), 1e-12)

	unit := MustNew([]*variable.Variable{one}, []float64{1})
	q, err := unit.Product(f)
	require.NoError(t, err)
	assert.Equal(t, f.Values(), q.Values())
}

func TestNormalize(t *testing.T) {
	a := variable.MustNew("A", "x", "y", "z")
	f := MustNew([]*variable.Variable{a}, []float64{2, 3, 5})

	n, err := f.Normalize()
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.2, 0.3, 0.5}, n.Values(), 1e-12)
	assert.InDelta(t, 1.0, n.Sum(), 1e-12)

	nn, err := n.Normalize()
	require.NoError(t, err)
	assert.InDeltaSlice(t, n.Values(), nn.Values(), 1e-12)

	zero := MustNew([]*variable.Variable{a}, []float64{0, 0, 0})
	_, err = zero.Normalize()
	assert.ErrorIs(t, err, internalerr.ErrDegenerateNormalization)
}

func TestAccessorsReturnCopies(t *testing.T) {
	a := variable.MustNew("A", "x", "y")
	f := MustNew([]*variable.Variable{a}, []float64{0.4, 0.6})

	vals := f.Values()
	vals[0] = 99
	assert.InDelta(t, 0.4, f.Values()[0], 0)

	vars := f.Variables()
	vars[0] = nil
	assert.Equal(t, []string{"A"}, f.Names())
}

func TestStringAndBrief(t *testing.T) {
	f, _, _, _ := surveyE(t)
	assert.Contains(t, f.Brief(), "(A, E, S)")
	out := f.String()
	assert.Contains(t, out, "prob")
	assert.Contains(t, out, "adult")
}
