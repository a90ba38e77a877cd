package ve_test

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/velim/internal/logging"
	"github.com/cognicore/velim/pkg/velim/inference"
	"github.com/cognicore/velim/pkg/velim/inference/enumerate"
	"github.com/cognicore/velim/pkg/velim/inference/ve"
	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/network"
	"github.com/cognicore/velim/pkg/velim/network/networktest"
	"github.com/cognicore/velim/pkg/velim/order"
)

const tolerance = 1e-5

func distribution(t *testing.T, res *inference.Result) map[string]float64 {
	t.Helper()
	dist, err := res.Distribution()
	require.NoError(t, err)
	return dist
}

func TestFireAlarmScenarios(t *testing.T) {
	net := networktest.Alarm()
	eng := ve.New(ve.Config{})

	tests := []struct {
		name     string
		query    string
		evidence map[string]string
		want     float64 // P(query=True | evidence)
	}{
		{"leaving prior", "Leaving", nil, 0.02449480858},
		{"tampering given smoke and no leaving", "Tampering", map[string]string{"Smoke": "True", "Leaving": "False"}, 0.01371625027},
		{"fire given report", "Fire", map[string]string{"Report": "True"}, 0.23050460143},
		{"alarm given tampering", "Alarm", map[string]string{"Tampering": "True"}, 0.8465},
		{"fire given report and no smoke", "Fire", map[string]string{"Report": "True", "Smoke": "False"}, 0.02936922160},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := eng.Query(context.Background(), net, inference.Request{
				Query:    []string{tt.query},
				Evidence: tt.evidence,
			})
			require.NoError(t, err)

			dist := distribution(t, res)
			assert.InDelta(t, tt.want, dist["True"], tolerance)
			assert.InDelta(t, 1-tt.want, dist["False"], tolerance)
		})
	}
}

func TestSurveyScenarios(t *testing.T) {
	net := networktest.Survey()
	eng := ve.New(ve.Config{})
	ctx := context.Background()

	res, err := eng.Query(ctx, net, inference.Request{Query: []string{"T"}})
	require.NoError(t, err)
	dist := distribution(t, res)
	assert.InDelta(t, 0.561834, dist["car"], tolerance)
	assert.InDelta(t, 0.280857, dist["train"], tolerance)
	assert.InDelta(t, 0.157309, dist["other"], tolerance)

	res, err = eng.Query(ctx, net, inference.Request{Query: []string{"E"}, Evidence: map[string]string{"T": "train"}})
	require.NoError(t, err)
	dist = distribution(t, res)
	assert.InDelta(t, 0.752414, dist["high"], tolerance)
	assert.InDelta(t, 0.247586, dist["uni"], tolerance)

	res, err = eng.Query(ctx, net, inference.Request{
		Query:    []string{"A"},
		Evidence: map[string]string{"T": "car", "S": "F"},
		Order:    inference.AutoOrder(order.MinFill),
	})
	require.NoError(t, err)
	dist = distribution(t, res)
	assert.InDelta(t, 0.300418, dist["young"], tolerance)
	assert.InDelta(t, 0.500187, dist["adult"], tolerance)
	assert.InDelta(t, 0.199394, dist["old"], tolerance)
}

func TestExplicitOrderIsRecorded(t *testing.T) {
	net := networktest.Alarm()
	res, err := ve.New(ve.Config{}).Query(context.Background(), net, inference.Request{
		Query: []string{"Leaving"},
		Order: inference.ExplicitOrder("Tampering", "Fire", "Alarm"),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Tampering", "Fire", "Alarm"}, res.Order)
	assert.Equal(t, []string{"Report", "Smoke"}, res.Barren)
	require.Len(t, res.Steps, 3)
	assert.Equal(t, "Tampering", res.Steps[0].Variable)
	assert.Equal(t, 3, res.Steps[0].Arity)
	assert.Equal(t, 8, res.Steps[0].Cells)
	assert.Len(t, res.Steps[0].Inputs, 2)
	assert.Equal(t, 8, res.PeakCells)
	assert.InDelta(t, 0.02449480858, distribution(t, res)["True"], tolerance)
}

func TestExplicitOrderMismatch(t *testing.T) {
	net := networktest.Alarm()
	eng := ve.New(ve.Config{})

	tests := []struct {
		name  string
		order []string
		want  error
	}{
		{"missing", []string{"Alarm", "Fire"}, internalerr.ErrOrderMismatch},
		{"query extra", []string{"Alarm", "Fire", "Tampering", "Leaving"}, internalerr.ErrOrderMismatch},
		{"duplicate", []string{"Alarm", "Fire", "Fire", "Tampering"}, internalerr.ErrOrderMismatch},
		{"unknown", []string{"Alarm", "Fire", "Tampering", "Ghost"}, internalerr.ErrInvalidReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.Query(context.Background(), net, inference.Request{
				Query: []string{"Leaving"},
				Order: inference.ExplicitOrder(tt.order...),
			})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestExplicitOrderMayNameBarrenVariables(t *testing.T) {
	net := networktest.Alarm()
	eng := ve.New(ve.Config{})

	res, err := eng.Query(context.Background(), net, inference.Request{
		Query: []string{"Leaving"},
		Order: inference.ExplicitOrder("Report", "Smoke", "Alarm", "Fire", "Tampering"),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Report", "Smoke"}, res.Barren)
	assert.Equal(t, []string{"Report", "Smoke", "Alarm", "Fire", "Tampering"}, res.Order)
	require.Len(t, res.Steps, 3)
	assert.Equal(t, "Alarm", res.Steps[0].Variable)
	assert.InDelta(t, 0.02449480858, distribution(t, res)["True"], tolerance)

	_, err = eng.Query(context.Background(), net, inference.Request{
		Query:    []string{"Tampering"},
		Evidence: map[string]string{"Smoke": "True", "Leaving": "False"},
		Order:    inference.ExplicitOrder("Report", "Alarm", "Fire", "Smoke"),
	})
	assert.ErrorIs(t, err, internalerr.ErrOrderMismatch)

	res, err = eng.Query(context.Background(), net, inference.Request{
		Query:    []string{"Tampering"},
		Evidence: map[string]string{"Smoke": "True", "Leaving": "False"},
		Order:    inference.ExplicitOrder("Report", "Alarm", "Fire"),
	})
	require.NoError(t, err)
	assert.InDelta(t, 0.01371625027, distribution(t, res)["True"], tolerance)
}

func TestExplicitOrderWithoutPruningNeedsBarrenVariables(t *testing.T) {
	net := networktest.Alarm()
	eng := ve.New(ve.Config{DisableBarrenPruning: true})

	_, err := eng.Query(context.Background(), net, inference.Request{
		Query: []string{"Leaving"},
		Order: inference.ExplicitOrder("Tampering", "Fire", "Alarm"),
	})
	assert.ErrorIs(t, err, internalerr.ErrOrderMismatch)

	res, err := eng.Query(context.Background(), net, inference.Request{
		Query: []string{"Leaving"},
		Order: inference.ExplicitOrder("Report", "Smoke", "Tampering", "Fire", "Alarm"),
	})
	require.NoError(t, err)
	assert.Empty(t, res.Barren)
	assert.InDelta(t, 0.02449480858, distribution(t, res)["True"], tolerance)
}

func TestInvalidRequests(t *testing.T) {
	net := networktest.Alarm()
	eng := ve.New(ve.Config{})

	tests := []struct {
		name string
		req  inference.Request
		want error
	}{
		{"empty query", inference.Request{}, internalerr.ErrInvalidInput},
		{"unknown query", inference.Request{Query: []string{"Ghost"}}, internalerr.ErrInvalidReference},
		{"repeated query", inference.Request{Query: []string{"Fire", "Fire"}}, internalerr.ErrInvalidInput},
		{"unknown evidence", inference.Request{Query: []string{"Fire"}, Evidence: map[string]string{"Ghost": "True"}}, internalerr.ErrInvalidReference},
		{"evidence outside domain", inference.Request{Query: []string{"Fire"}, Evidence: map[string]string{"Smoke": "Maybe"}}, internalerr.ErrInvalidReference},
		{"observed variable in joint query", inference.Request{Query: []string{"Fire", "Smoke"}, Evidence: map[string]string{"Smoke": "True"}}, internalerr.ErrInvalidInput},
		{"unknown heuristic", inference.Request{Query: []string{"Fire"}, Order: inference.AutoOrder("fastest")}, internalerr.ErrInvalidInput},
		{"unknown order name on observed query", inference.Request{
			Query:    []string{"Smoke"},
			Evidence: map[string]string{"Smoke": "True"},
			Order:    inference.ExplicitOrder("Ghost", "Ghost", "Smoke"),
		}, internalerr.ErrInvalidReference},
		{"order naming the observed query", inference.Request{
			Query:    []string{"Smoke"},
			Evidence: map[string]string{"Smoke": "True"},
			Order:    inference.ExplicitOrder("Fire", "Smoke"),
		}, internalerr.ErrOrderMismatch},
		{"order missing a variable on observed query", inference.Request{
			Query:    []string{"Smoke"},
			Evidence: map[string]string{"Smoke": "True"},
			Order:    inference.ExplicitOrder("Alarm"),
		}, internalerr.ErrOrderMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := eng.Query(context.Background(), net, tt.req)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestObservedQueryIsPointMass(t *testing.T) {
	res, err := ve.New(ve.Config{}).Query(context.Background(), networktest.Alarm(), inference.Request{
		Query:    []string{"Smoke"},
		Evidence: map[string]string{"Smoke": "True", "Fire": "False"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"True": 1, "False": 0}, distribution(t, res))
	assert.Empty(t, res.Steps)

	res, err = ve.New(ve.Config{}).Query(context.Background(), networktest.Alarm(), inference.Request{
		Query:    []string{"Smoke"},
		Evidence: map[string]string{"Smoke": "True"},
		Order:    inference.ExplicitOrder("Fire", "Alarm"),
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"True": 1, "False": 0}, distribution(t, res))
}

func TestDegenerateEvidence(t *testing.T) {
	net, err := network.New("switch", []network.Definition{
		{Name: "A", Domain: []string{"off", "on"}, Rows: []network.Row{{Probs: []float64{1, 0}}}},
		{Name: "B", Domain: []string{"off", "on"}, Parents: []string{"A"}, Rows: []network.Row{
			{Given: []string{"off"}, Probs: []float64{0.5, 0.5}},
			{Given: []string{"on"}, Probs: []float64{0.1, 0.9}},
		}},
	})
	require.NoError(t, err)

	_, err = ve.New(ve.Config{}).Query(context.Background(), net, inference.Request{
		Query:    []string{"B"},
		Evidence: map[string]string{"A": "on"},
	})
	assert.ErrorIs(t, err, internalerr.ErrDegenerateNormalization)

	// an observed query is answered without elimination, whatever the rest of the evidence
	res, err := ve.New(ve.Config{}).Query(context.Background(), net, inference.Request{
		Query:    []string{"A"},
		Evidence: map[string]string{"A": "on", "B": "on"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"off": 0, "on": 1}, distribution(t, res))
}

func TestJointQueryOfIndependentVariables(t *testing.T) {
	res, err := ve.New(ve.Config{}).Query(context.Background(), networktest.Alarm(), inference.Request{
		Query: []string{"Tampering", "Fire"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Fire", "Tampering"}, res.Posterior.Names())
	want := []float64{0.9702, 0.0198, 0.0098, 0.0002}
	got := res.Posterior.Values()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-12)
	}

	outcomes := res.Outcomes()
	require.Len(t, outcomes, 4)
	assert.Equal(t, map[string]string{"Fire": "False", "Tampering": "False"}, outcomes[0].Assignment)
}

func TestBarrenPruningDoesNotChangeAnswers(t *testing.T) {
	net := networktest.Alarm()
	pruned := ve.New(ve.Config{})
	full := ve.New(ve.Config{DisableBarrenPruning: true})
	ctx := context.Background()

	for _, name := range net.Names() {
		for _, evidence := range []map[string]string{nil, {"Report": "True"}, {"Smoke": "False", "Tampering": "True"}} {
			if _, observed := evidence[name]; observed {
				continue
			}
			req := inference.Request{Query: []string{name}, Evidence: evidence}
			a, err := pruned.Query(ctx, net, req)
			require.NoError(t, err)
			b, err := full.Query(ctx, net, req)
			require.NoError(t, err)

			av, bv := a.Posterior.Values(), b.Posterior.Values()
			for i := range av {
				assert.InDelta(t, av[i], bv[i], 1e-12, "%s given %v", name, evidence)
			}
			assert.LessOrEqual(t, len(a.Steps), len(b.Steps))
		}
	}
}

func TestAgreesWithEnumeration(t *testing.T) {
	oracle := enumerate.New(enumerate.Config{})
	ctx := context.Background()

	networks := map[string]struct {
		net      *network.Network
		evidence []map[string]string
	}{
		"alarm":      {networktest.Alarm(), []map[string]string{nil, {"Report": "True"}, {"Leaving": "False", "Smoke": "True"}}},
		"survey":     {networktest.Survey(), []map[string]string{nil, {"T": "train"}, {"S": "F", "T": "car"}}},
		"earthquake": {networktest.Earthquake(), []map[string]string{nil, {"JohnCalls": "True", "MaryCalls": "True"}}},
	}

	for netName, tc := range networks {
		for _, kind := range order.Kinds() {
			for _, pairing := range []order.Pairing{order.SmallestArity{}, order.SmallestTable{}} {
				eng := ve.New(ve.Config{Pairing: pairing})
				for _, evidence := range tc.evidence {
					for _, name := range tc.net.Names() {
						req := inference.Request{Query: []string{name}, Evidence: evidence, Order: inference.AutoOrder(kind)}
						got, err := eng.Query(ctx, tc.net, req)
						require.NoError(t, err, "%s: %s given %v", netName, name, evidence)
						want, err := oracle.Query(ctx, tc.net, req)
						require.NoError(t, err)

						gv, wv := got.Posterior.Values(), want.Posterior.Values()
						require.Len(t, gv, len(wv))
						for i := range wv {
							assert.InDelta(t, wv[i], gv[i], 1e-9, "%s/%s/%s: %s given %v", netName, kind, pairing.Name(), name, evidence)
						}
					}
				}
			}
		}
	}
}

func TestJointQueryAgreesWithEnumeration(t *testing.T) {
	net := networktest.Alarm()
	req := inference.Request{
		Query:    []string{"Fire", "Tampering"},
		Evidence: map[string]string{"Report": "True"},
		Order:    inference.AutoOrder(order.MinWeight),
	}
	got, err := ve.New(ve.Config{}).Query(context.Background(), net, req)
	require.NoError(t, err)
	want, err := enumerate.New(enumerate.Config{}).Query(context.Background(), net, req)
	require.NoError(t, err)

	assert.Equal(t, want.Posterior.Names(), got.Posterior.Names())
	wv, gv := want.Posterior.Values(), got.Posterior.Values()
	for i := range wv {
		assert.InDelta(t, wv[i], gv[i], 1e-9)
	}
}

func TestCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ve.New(ve.Config{}).Query(ctx, networktest.Alarm(), inference.Request{Query: []string{"Leaving"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStepsAreLogged(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.New(logging.Config{Level: logging.LevelTrace, Output: &buf})

	_, err := ve.New(ve.Config{Logger: logger}).Query(context.Background(), networktest.Alarm(), inference.Request{
		Query: []string{"Leaving"},
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "msg=eliminated")
	assert.Contains(t, out, "variable=Alarm")
	assert.Contains(t, out, "level=TRACE")
	assert.Contains(t, out, "engine=ve")
}
