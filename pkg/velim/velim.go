package velim

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/cognicore/velim/internal/logging"
	"github.com/cognicore/velim/pkg/velim/codec"
	"github.com/cognicore/velim/pkg/velim/inference"
	"github.com/cognicore/velim/pkg/velim/inference/ve"
	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/network"
	"github.com/cognicore/velim/pkg/velim/report"
	"github.com/cognicore/velim/pkg/velim/store"
	"github.com/cognicore/velim/pkg/velim/store/memstore"
)

// Velim is the main inference facade: it keeps registered networks, answers
// queries with an engine and records every answer in the store.
type Velim struct {
	store   store.Store
	inf     inference.Engine
	reports *report.Builder
	log     *slog.Logger

	mu   sync.RWMutex
	nets map[string]*network.Network
}

// Options configures a Velim instance
type Options struct {
	Store     store.Store      // defaults to an in-memory store
	Inference inference.Engine // defaults to variable elimination
	Logger    *slog.Logger
}

// New creates a Velim instance with the given dependencies
func New(opts Options) *Velim {
	log := logging.OrDiscard(opts.Logger)
	st := opts.Store
	if st == nil {
		st = memstore.New()
	}
	inf := opts.Inference
	if inf == nil {
		inf = ve.New(ve.Config{Logger: log})
	}
	return &Velim{
		store:   st,
		inf:     inf,
		reports: report.New(),
		log:     log,
		nets:    make(map[string]*network.Network),
	}
}

// Close cleanly shuts down the Velim instance
func (v *Velim) Close() error {
	return v.store.Close()
}

// Engine returns the engine answering queries.
func (v *Velim) Engine() inference.Engine { return v.inf }

// Register stores net under name, replacing any network of that name. src is
// kept so the network can be rebuilt from the store later.
func (v *Velim) Register(ctx context.Context, name string, net *network.Network, src codec.Source) error {
	if name == "" {
		name = net.Name()
	}
	if name == "" {
		return fmt.Errorf("register: network without name: %w", internalerr.ErrInvalidInput)
	}
	err := v.store.UpsertNetwork(ctx, store.NetworkMeta{
		Name:      name,
		Format:    src.Format,
		Source:    src.Text,
		Variables: net.Len(),
	})
	if err != nil {
		return fmt.Errorf("register %s: %w", name, err)
	}

	v.mu.Lock()
	v.nets[name] = net
	v.mu.Unlock()

	v.log.Info("network registered", "network", name, "variables", net.Len(), "format", src.Format)
	return nil
}

// Network returns a registered network, rebuilding it from its stored source
// when it is not cached.
func (v *Velim) Network(ctx context.Context, name string) (*network.Network, error) {
	v.mu.RLock()
	net, ok := v.nets[name]
	v.mu.RUnlock()
	if ok {
		return net, nil
	}

	meta, err := v.store.GetNetwork(ctx, name)
	if err != nil {
		return nil, err
	}
	net, err = codec.Source{Format: meta.Format, Text: meta.Source}.Parse()
	if err != nil {
		return nil, fmt.Errorf("network %s: stored source: %w", name, err)
	}

	v.mu.Lock()
	v.nets[name] = net
	v.mu.Unlock()
	return net, nil
}

// Networks lists the registered networks.
func (v *Velim) Networks(ctx context.Context) ([]store.NetworkMeta, error) {
	return v.store.ListNetworks(ctx)
}

// Query answers req on the named network and records the report.
func (v *Velim) Query(ctx context.Context, name string, req inference.Request) (report.Report, error) {
	net, err := v.Network(ctx, name)
	if err != nil {
		return report.Report{}, err
	}
	res, err := v.inf.Query(ctx, net, req)
	if err != nil {
		return report.Report{}, fmt.Errorf("query %s: %w", name, err)
	}
	return v.record(ctx, name, req, res)
}

// QueryBatch answers reqs concurrently and records the reports in request
// order. Nothing is recorded if any query fails.
func (v *Velim) QueryBatch(ctx context.Context, name string, reqs []inference.Request, parallelism int) ([]report.Report, error) {
	net, err := v.Network(ctx, name)
	if err != nil {
		return nil, err
	}
	results, err := inference.QueryAll(ctx, v.inf, net, reqs, parallelism)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}

	out := make([]report.Report, len(results))
	for i, res := range results {
		if out[i], err = v.record(ctx, name, reqs[i], res); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// History returns up to limit recorded reports for a network, newest first.
// An empty name covers every network.
func (v *Velim) History(ctx context.Context, name string, limit int) ([]report.Report, error) {
	records, err := v.store.ListQueries(ctx, name, limit)
	if err != nil {
		return nil, err
	}
	out := make([]report.Report, len(records))
	for i, q := range records {
		out[i] = report.FromRecord(q)
	}
	return out, nil
}

// Report returns one recorded report by id.
func (v *Velim) Report(ctx context.Context, id string) (report.Report, error) {
	q, err := v.store.GetQuery(ctx, id)
	if err != nil {
		return report.Report{}, err
	}
	return report.FromRecord(q), nil
}

func (v *Velim) record(ctx context.Context, name string, req inference.Request, res *inference.Result) (report.Report, error) {
	r := v.reports.Build(name, req, res)
	if err := v.store.SaveQuery(ctx, r.Record()); err != nil {
		return report.Report{}, fmt.Errorf("record query on %s: %w", name, err)
	}
	v.log.Info("query answered",
		"network", name,
		"id", r.ID,
		"query", r.Query,
		"evidence", r.Evidence,
		"engine", r.Engine,
		"peak_cells", r.PeakCells,
	)
	return r, nil
}
