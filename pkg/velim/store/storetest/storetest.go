// Package storetest holds the behaviour every store.Store implementation
// must share. Backends call Run from their own tests.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/store"
)

// Run exercises a fresh store returned by open.
func Run(t *testing.T, open func(t *testing.T) store.Store) {
	t.Run("networks", func(t *testing.T) { testNetworks(t, open(t)) })
	t.Run("queries", func(t *testing.T) { testQueries(t, open(t)) })
	t.Run("history order", func(t *testing.T) { testHistoryOrder(t, open(t)) })
}

func testNetworks(t *testing.T, st store.Store) {
	ctx := context.Background()

	_, err := st.GetNetwork(ctx, "alarm")
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
	assert.ErrorIs(t, st.UpsertNetwork(ctx, store.NetworkMeta{Name: " "}), internalerr.ErrInvalidInput)

	require.NoError(t, st.UpsertNetwork(ctx, store.NetworkMeta{Name: "survey", Format: "bif", Source: "network survey {}", Variables: 6}))
	require.NoError(t, st.UpsertNetwork(ctx, store.NetworkMeta{Name: "alarm", Format: "bif", Source: "v1", Variables: 6}))
	require.NoError(t, st.UpsertNetwork(ctx, store.NetworkMeta{Name: "alarm", Format: "yaml", Source: "v2", Variables: 6}))

	got, err := st.GetNetwork(ctx, "alarm")
	require.NoError(t, err)
	assert.Equal(t, "yaml", got.Format)
	assert.Equal(t, "v2", got.Source)
	assert.False(t, got.UpdatedAt.IsZero())

	all, err := st.ListNetworks(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "alarm", all[0].Name)
	assert.Equal(t, "survey", all[1].Name)
}

func record(id string, at time.Time) store.QueryRecord {
	return store.QueryRecord{
		ID:       id,
		Network:  "alarm",
		Engine:   "ve",
		Query:    []string{"Fire"},
		Evidence: map[string]string{"Report": "True"},
		Strategy: "auto:min-fill",
		Order:    []string{"Alarm", "Leaving", "Tampering"},
		Barren:   []string{"Smoke"},
		Outcomes: []store.Outcome{
			{Assignment: map[string]string{"Fire": "False"}, Probability: 0.7695},
			{Assignment: map[string]string{"Fire": "True"}, Probability: 0.2305},
		},
		PeakCells: 8,
		CreatedAt: at,
	}
}

func testQueries(t *testing.T, st store.Store) {
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	assert.ErrorIs(t, st.SaveQuery(ctx, record("q1", at)), internalerr.ErrNotFound, "network not registered")
	require.NoError(t, st.UpsertNetwork(ctx, store.NetworkMeta{Name: "alarm", Format: "bif", Source: "x"}))

	assert.ErrorIs(t, st.SaveQuery(ctx, record("", at)), internalerr.ErrInvalidInput)
	require.NoError(t, st.SaveQuery(ctx, record("q1", at)))
	assert.ErrorIs(t, st.SaveQuery(ctx, record("q1", at)), internalerr.ErrDuplicate)

	got, err := st.GetQuery(ctx, "q1")
	require.NoError(t, err)
	want := record("q1", at)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))
	got.CreatedAt = want.CreatedAt
	assert.Equal(t, want, got)

	_, err = st.GetQuery(ctx, "missing")
	assert.ErrorIs(t, err, internalerr.ErrNotFound)
}

func testHistoryOrder(t *testing.T, st store.Store) {
	ctx := context.Background()
	require.NoError(t, st.UpsertNetwork(ctx, store.NetworkMeta{Name: "alarm", Format: "bif", Source: "x"}))
	require.NoError(t, st.UpsertNetwork(ctx, store.NetworkMeta{Name: "survey", Format: "bif", Source: "y"}))

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, st.SaveQuery(ctx, record(id, base.Add(time.Duration(i)*time.Second))))
	}
	other := record("z", base.Add(time.Hour))
	other.Network = "survey"
	require.NoError(t, st.SaveQuery(ctx, other))

	recent, err := st.ListQueries(ctx, "alarm", 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "d", recent[0].ID)
	assert.Equal(t, "c", recent[1].ID)
	assert.Equal(t, "b", recent[2].ID)

	all, err := st.ListQueries(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "z", all[0].ID)
}
