package inference_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/velim/pkg/velim/inference"
	"github.com/cognicore/velim/pkg/velim/inference/ve"
	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/network"
	"github.com/cognicore/velim/pkg/velim/network/networktest"
	"github.com/cognicore/velim/pkg/velim/order"
)

func TestResolve(t *testing.T) {
	net := networktest.Alarm()

	r, err := inference.Resolve(net, inference.Request{
		Query:    []string{"Tampering", "Alarm"},
		Evidence: map[string]string{"Smoke": "True", "Report": "False"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Alarm", "Tampering"}, r.QueryNames())
	require.Len(t, r.Evidence, 2)
	assert.Equal(t, "Report", r.Evidence[0].Variable.Name())
	assert.Equal(t, "Smoke", r.Evidence[1].Variable.Name())
	assert.Nil(t, r.Observed)

	smoke, _ := net.Lookup("Smoke")
	alarm, _ := net.Lookup("Alarm")
	assert.True(t, r.IsEvidence(smoke))
	assert.False(t, r.IsEvidence(alarm))
	assert.True(t, r.IsQuery(alarm))
}

func TestResolveObservedQuery(t *testing.T) {
	r, err := inference.Resolve(networktest.Alarm(), inference.Request{
		Query:    []string{"Smoke"},
		Evidence: map[string]string{"Smoke": "True"},
	})
	require.NoError(t, err)
	require.NotNil(t, r.Observed)
	assert.Equal(t, "True", r.Observed.Value)

	pm := inference.PointMass(r.Observed.Variable, r.Observed.Value)
	assert.Equal(t, []float64{0, 1}, pm.Values())
}

func TestResultAccessors(t *testing.T) {
	res, err := ve.New(ve.Config{}).Query(context.Background(), networktest.Alarm(), inference.Request{
		Query:    []string{"Tampering", "Fire"},
		Evidence: map[string]string{"Report": "True"},
	})
	require.NoError(t, err)

	_, err = res.Distribution()
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)

	var total float64
	for _, o := range res.Outcomes() {
		assert.Len(t, o.Assignment, 2)
		total += o.Probability
	}
	assert.InDelta(t, 1.0, total, 1e-12)
}

func TestOrderSpecString(t *testing.T) {
	assert.Equal(t, "auto:min-fill", inference.AutoOrder(order.MinFill).String())
	assert.Equal(t, "auto:lexicographic", inference.Auto{}.String())
	assert.Equal(t, "explicit[A B]", inference.ExplicitOrder("A", "B").String())
}

func TestQueryAllKeepsRequestOrder(t *testing.T) {
	net := networktest.Alarm()
	reqs := []inference.Request{
		{Query: []string{"Leaving"}},
		{Query: []string{"Fire"}, Evidence: map[string]string{"Report": "True"}},
		{Query: []string{"Alarm"}, Evidence: map[string]string{"Tampering": "True"}},
	}

	results, err := inference.QueryAll(context.Background(), ve.New(ve.Config{}), net, reqs, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	want := []float64{0.02449480858, 0.23050460143, 0.8465}
	for i, res := range results {
		dist, err := res.Distribution()
		require.NoError(t, err)
		assert.InDelta(t, want[i], dist["True"], 1e-5)
	}
}

func TestQueryAllStopsOnError(t *testing.T) {
	reqs := []inference.Request{
		{Query: []string{"Leaving"}},
		{Query: []string{"Ghost"}},
	}
	_, err := inference.QueryAll(context.Background(), ve.New(ve.Config{}), networktest.Alarm(), reqs, 0)
	assert.ErrorIs(t, err, internalerr.ErrInvalidReference)
}

// countingEngine records how many queries ran concurrently.
type countingEngine struct {
	active, peak atomic.Int32
}

func (c *countingEngine) Name() string { return "counting" }

func (c *countingEngine) Query(context.Context, *network.Network, inference.Request) (*inference.Result, error) {
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		p := c.peak.Load()
		if n <= p || c.peak.CompareAndSwap(p, n) {
			break
		}
	}
	return &inference.Result{Engine: c.Name()}, nil
}

func TestQueryAllRespectsParallelism(t *testing.T) {
	eng := &countingEngine{}
	reqs := make([]inference.Request, 20)
	for i := range reqs {
		reqs[i] = inference.Request{Query: []string{"x"}}
	}
	results, err := inference.QueryAll(context.Background(), eng, networktest.Alarm(), reqs, 1)
	require.NoError(t, err)
	assert.Len(t, results, 20)
	assert.Equal(t, int32(1), eng.peak.Load())
}
