package config

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/velim/pkg/velim/inference"
	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/order"
)

func TestLoaderBundledRun(t *testing.T) {
	loader := Loader{Path: filepath.Join("..", "..", "..", "testdata", "run.yaml"), LogOutput: io.Discard}
	comp, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, "alarm", comp.Network.Name())
	assert.Equal(t, "bif", comp.Source.Format)
	assert.Equal(t, "ve", comp.Engine.Name())
	assert.Equal(t, 2, comp.Parallelism)
	assert.Empty(t, comp.DBPath)
	assert.Equal(t, []string{"leaving", "tampering-given-smoke", "fire-given-report"}, comp.Names)
	require.Len(t, comp.Requests, 3)
	assert.Equal(t, inference.ExplicitOrder("Report", "Smoke", "Alarm", "Fire", "Tampering"), comp.Requests[0].Order)
	assert.Equal(t, inference.AutoOrder(order.MinFill), comp.Requests[1].Order)
	assert.Nil(t, comp.Requests[2].Order)

	results, err := inference.QueryAll(context.Background(), comp.Engine, comp.Network, comp.Requests, comp.Parallelism)
	require.NoError(t, err)
	dist, err := results[1].Distribution()
	require.NoError(t, err)
	assert.InDelta(t, 0.01371625027, dist["True"], 1e-5)
}

func TestLoaderResolvesPathsAgainstRunFile(t *testing.T) {
	dir := t.TempDir()
	net := "variables:\n  - {name: Coin, domain: [heads, tails], probs: [0.5, 0.5]}\n"
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nets"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nets", "coin.yaml"), []byte(net), 0o644))
	run := "network: nets/coin.yaml\nengine: enumerate\ndb: history.db\nqueries: [{name: flip, query: [Coin]}]\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.yaml"), []byte(run), 0o644))

	comp, err := (&Loader{Path: filepath.Join(dir, "run.yaml"), LogOutput: io.Discard}).Load()
	require.NoError(t, err)
	assert.Equal(t, "coin", comp.Network.Name())
	assert.Equal(t, "enumerate", comp.Engine.Name())
	assert.Equal(t, filepath.Join(dir, "history.db"), comp.DBPath)
}

func TestLoaderMissingFiles(t *testing.T) {
	_, err := (&Loader{Path: filepath.Join(t.TempDir(), "absent.yaml")}).Load()
	assert.True(t, errors.Is(err, os.ErrNotExist), "got %v", err)

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run.yaml"), []byte("network: gone.bif\nqueries: [{name: q, query: [A]}]\n"), 0o644))
	_, err = (&Loader{Path: filepath.Join(dir, "run.yaml"), LogOutput: io.Discard}).Load()
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestNewEngine(t *testing.T) {
	eng, err := NewEngine(EngineOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ve", eng.Name())

	_, err = NewEngine(EngineOptions{Name: "gibbs"})
	assert.ErrorIs(t, err, internalerr.ErrInvalidConfig)

	_, err = NewEngine(EngineOptions{Pairing: "biggest"})
	assert.ErrorIs(t, err, internalerr.ErrInvalidInput)
}
