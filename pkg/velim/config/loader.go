package config

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/cognicore/velim/internal/logging"
	"github.com/cognicore/velim/pkg/velim/codec"
	"github.com/cognicore/velim/pkg/velim/inference"
	"github.com/cognicore/velim/pkg/velim/inference/enumerate"
	"github.com/cognicore/velim/pkg/velim/inference/ve"
	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/network"
	"github.com/cognicore/velim/pkg/velim/order"
)

// Loader loads a run file and constructs the components it describes
type Loader struct {
	Path      string
	LogOutput io.Writer // defaults to stderr
}

// Components holds everything needed to execute a run
type Components struct {
	Run         *Run
	Network     *network.Network
	Source      codec.Source
	Engine      inference.Engine
	Requests    []inference.Request
	Names       []string // query names, parallel to Requests
	Logger      *slog.Logger
	Parallelism int
	DBPath      string // empty for an in-memory store
}

// Load reads the run file, its network and returns initialized components.
// Relative paths inside the file resolve against the file's directory.
func (l *Loader) Load() (*Components, error) {
	run, err := LoadRun(l.Path)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", l.Path, err)
	}
	comp := &Components{Run: run, Parallelism: run.Parallelism}

	level, err := logging.ParseLevel(run.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", l.Path, err)
	}
	comp.Logger = logging.New(logging.Config{Level: level, JSON: run.Log.JSON, Output: l.LogOutput, Service: "velim"})

	netPath := l.resolve(run.Network)
	comp.Network, comp.Source, err = codec.LoadFile(netPath)
	if err != nil {
		return nil, fmt.Errorf("load network: %w", err)
	}

	comp.Engine, err = NewEngine(EngineOptions{
		Name:                 run.Engine,
		Pairing:              run.Pairing,
		DisableBarrenPruning: run.DisableBarrenPruning,
		Logger:               comp.Logger,
	})
	if err != nil {
		return nil, err
	}

	for _, q := range run.Queries {
		req := inference.Request{Query: q.Query, Evidence: q.Evidence}
		switch {
		case len(q.Order) > 0:
			req.Order = inference.ExplicitOrder(q.Order...)
		case q.Heuristic != "":
			kind, err := order.ParseKind(q.Heuristic)
			if err != nil {
				return nil, fmt.Errorf("query %s: %w", q.Name, err)
			}
			req.Order = inference.AutoOrder(kind)
		}
		comp.Requests = append(comp.Requests, req)
		comp.Names = append(comp.Names, q.Name)
	}

	if run.DB != "" {
		comp.DBPath = l.resolve(run.DB)
	}
	return comp, nil
}

func (l *Loader) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(filepath.Dir(l.Path), path)
}

// EngineOptions selects and tunes an inference engine.
type EngineOptions struct {
	Name                 string // "ve" (default) or "enumerate"
	Pairing              string
	DisableBarrenPruning bool
	Logger               *slog.Logger
}

// NewEngine builds the engine named in opts.
func NewEngine(opts EngineOptions) (inference.Engine, error) {
	switch opts.Name {
	case "", ve.Name:
		pairing, err := order.ParsePairing(opts.Pairing)
		if err != nil {
			return nil, err
		}
		return ve.New(ve.Config{
			Logger:               opts.Logger,
			Pairing:              pairing,
			DisableBarrenPruning: opts.DisableBarrenPruning,
		}), nil
	case enumerate.Name:
		return enumerate.New(enumerate.Config{Logger: opts.Logger}), nil
	default:
		return nil, fmt.Errorf("config: unknown engine %q: %w", opts.Name, internalerr.ErrInvalidConfig)
	}
}
