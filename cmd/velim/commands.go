package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/cognicore/velim/internal/logging"
	"github.com/cognicore/velim/pkg/velim"
	"github.com/cognicore/velim/pkg/velim/analytics"
	"github.com/cognicore/velim/pkg/velim/barren"
	"github.com/cognicore/velim/pkg/velim/codec"
	"github.com/cognicore/velim/pkg/velim/config"
	"github.com/cognicore/velim/pkg/velim/inference"
	"github.com/cognicore/velim/pkg/velim/internalerr"
	"github.com/cognicore/velim/pkg/velim/network"
	"github.com/cognicore/velim/pkg/velim/query"
	"github.com/cognicore/velim/pkg/velim/store"
	"github.com/cognicore/velim/pkg/velim/store/memstore"
	"github.com/cognicore/velim/pkg/velim/store/sqlite"
)

// app holds the persistent flags shared by every command.
type app struct {
	logLevel   string
	logJSON    bool
	dbPath     string
	metricsOut string

	logger *slog.Logger
}

// requestFlags are the flags describing one query.
type requestFlags struct {
	net      string
	query    string
	evidence string
	order    string
	noPrune  bool
}

// register adds the flags of cmd. withElimination adds --order and
// --no-prune, which only matter to commands that eliminate.
func (f *requestFlags) register(cmd *cobra.Command, withElimination bool) {
	cmd.Flags().StringVarP(&f.net, "net", "n", "", "network file (.bif, .yaml)")
	cmd.Flags().StringVarP(&f.query, "query", "q", "", "comma separated query variables")
	cmd.Flags().StringVarP(&f.evidence, "evidence", "e", "", "evidence as Var=value pairs")
	if withElimination {
		cmd.Flags().StringVarP(&f.order, "order", "o", "", "elimination order: A,B,C or auto[:heuristic]")
		cmd.Flags().BoolVar(&f.noPrune, "no-prune", false, "keep barren variables")
	}
	_ = cmd.MarkFlagRequired("net")
	_ = cmd.MarkFlagRequired("query")
}

func (f *requestFlags) load() (*network.Network, codec.Source, inference.Request, error) {
	net, src, err := codec.LoadFile(f.net)
	if err != nil {
		return nil, codec.Source{}, inference.Request{}, err
	}
	req, err := query.Parse(f.query, f.evidence, f.order)
	if err != nil {
		return nil, codec.Source{}, inference.Request{}, err
	}
	return net, src, req, nil
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "velim",
		Short:         "Exact inference on discrete Bayesian networks by variable elimination",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			level, err := logging.ParseLevel(a.logLevel)
			if err != nil {
				return err
			}
			a.logger = logging.New(logging.Config{
				Level:   level,
				JSON:    a.logJSON,
				Output:  cmd.ErrOrStderr(),
				Service: "velim",
			})
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if a.metricsOut == "" {
				return nil
			}
			if err := prometheus.WriteToTextfile(a.metricsOut, prometheus.DefaultGatherer); err != nil {
				return fmt.Errorf("write metrics: %w", err)
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level: trace, debug, info, warn, error")
	root.PersistentFlags().BoolVar(&a.logJSON, "log-json", false, "log as JSON")
	root.PersistentFlags().StringVar(&a.dbPath, "db", "", "SQLite database recording query history")
	root.PersistentFlags().StringVar(&a.metricsOut, "metrics-out", "", "write Prometheus metrics to this textfile on exit")

	root.AddCommand(
		a.queryCmd(),
		a.barrenCmd(),
		a.analyzeCmd(),
		a.showCmd(),
		a.runCmd(),
		a.historyCmd(),
	)
	return root
}

// open builds the facade over the configured store.
func (a *app) open(ctx context.Context, dbPath string, eng inference.Engine) (*velim.Velim, error) {
	var st store.Store = memstore.New()
	if dbPath != "" {
		var err error
		if st, err = sqlite.OpenSQLite(ctx, dbPath); err != nil {
			return nil, err
		}
	}
	return velim.New(velim.Options{Store: st, Inference: eng, Logger: a.logger}), nil
}

func (a *app) queryCmd() *cobra.Command {
	var (
		rf      requestFlags
		engine  string
		pairing string
		explain bool
	)
	cmd := &cobra.Command{
		Use:   "query",
		Short: "Compute a posterior distribution",
		Example: `  velim query -n alarm.bif -q Fire -e Report=True
  velim query -n alarm.bif -q Tampering -e Smoke=True,Leaving=False -o auto:min-fill --explain`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			net, src, req, err := rf.load()
			if err != nil {
				return err
			}
			eng, err := config.NewEngine(config.EngineOptions{
				Name:                 engine,
				Pairing:              pairing,
				DisableBarrenPruning: rf.noPrune,
				Logger:               a.logger,
			})
			if err != nil {
				return err
			}
			v, err := a.open(ctx, a.dbPath, eng)
			if err != nil {
				return err
			}
			defer v.Close()

			if err := v.Register(ctx, "", net, src); err != nil {
				return err
			}
			r, err := v.Query(ctx, net.Name(), req)
			if err != nil {
				return err
			}
			newPrinter(cmd.OutOrStdout()).report(r, explain)
			return nil
		},
	}
	rf.register(cmd, true)
	cmd.Flags().StringVar(&engine, "engine", "ve", "inference engine: ve or enumerate")
	cmd.Flags().StringVar(&pairing, "pairing", "", "factor pairing: smallest-arity or smallest-table")
	cmd.Flags().BoolVar(&explain, "explain", false, "print every elimination step")
	return cmd
}

func (a *app) barrenCmd() *cobra.Command {
	var rf requestFlags
	cmd := &cobra.Command{
		Use:   "barren",
		Short: "List the variables pruned before elimination",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			net, _, req, err := rf.load()
			if err != nil {
				return err
			}
			ids, err := barren.Find(net, req.Query, req.EvidenceNames())
			if err != nil {
				return err
			}
			p := newPrinter(cmd.OutOrStdout())
			p.field("barren", list(barren.Names(net, ids)))
			return nil
		},
	}
	rf.register(cmd, false)
	return cmd
}

func (a *app) analyzeCmd() *cobra.Command {
	var rf requestFlags
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Estimate elimination cost; ranks every heuristic unless --order is given",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			net, _, req, err := rf.load()
			if err != nil {
				return err
			}
			opts := analytics.Options{DisableBarrenPruning: rf.noPrune}
			p := newPrinter(cmd.OutOrStdout())
			if rf.order == "" {
				rankings, err := analytics.Compare(net, req, opts)
				if err != nil {
					return err
				}
				p.rankings(rankings)
				return nil
			}
			plan, err := analytics.Analyze(net, req, opts)
			if err != nil {
				return err
			}
			p.plan(plan)
			return nil
		},
	}
	rf.register(cmd, true)
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	var (
		netPath string
		export  string
	)
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Describe a network or convert it to another format",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			net, _, err := codec.LoadFile(netPath)
			if err != nil {
				return err
			}
			switch export {
			case "":
				newPrinter(cmd.OutOrStdout()).network(net)
				return nil
			case "yaml":
				return codec.NewYAMLCodec().Export(net, cmd.OutOrStdout())
			default:
				return fmt.Errorf("show: export format %q: %w", export, internalerr.ErrInvalidInput)
			}
		},
	}
	cmd.Flags().StringVarP(&netPath, "net", "n", "", "network file (.bif, .yaml)")
	cmd.Flags().StringVar(&export, "export", "", "write the network in this format instead (yaml)")
	_ = cmd.MarkFlagRequired("net")
	return cmd
}

func (a *app) runCmd() *cobra.Command {
	var explain bool
	cmd := &cobra.Command{
		Use:   "run <run.yaml>",
		Short: "Answer every query of a run file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			loader := config.Loader{Path: args[0], LogOutput: cmd.ErrOrStderr()}
			comp, err := loader.Load()
			if err != nil {
				return err
			}
			// the run file's log settings win over the flags
			a.logger = comp.Logger

			dbPath := comp.DBPath
			if a.dbPath != "" {
				dbPath = a.dbPath
			}
			v, err := a.open(ctx, dbPath, comp.Engine)
			if err != nil {
				return err
			}
			defer v.Close()

			name := comp.Network.Name()
			if err := v.Register(ctx, name, comp.Network, comp.Source); err != nil {
				return err
			}
			reports, err := v.QueryBatch(ctx, name, comp.Requests, comp.Parallelism)
			if err != nil {
				return err
			}

			p := newPrinter(cmd.OutOrStdout())
			for i, r := range reports {
				if i > 0 {
					fmt.Fprintln(p.w)
				}
				p.title("[%s]", comp.Names[i])
				p.report(r, explain)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&explain, "explain", false, "print every elimination step")
	return cmd
}

func (a *app) historyCmd() *cobra.Command {
	var (
		netName string
		limit   int
		id      string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded queries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.dbPath == "" {
				return fmt.Errorf("history: --db is required: %w", internalerr.ErrInvalidInput)
			}
			ctx := cmd.Context()
			v, err := a.open(ctx, a.dbPath, nil)
			if err != nil {
				return err
			}
			defer v.Close()

			p := newPrinter(cmd.OutOrStdout())
			if id != "" {
				r, err := v.Report(ctx, id)
				if err != nil {
					return err
				}
				p.report(r, false)
				return nil
			}
			reports, err := v.History(ctx, netName, limit)
			if err != nil {
				return err
			}
			p.history(reports)
			return nil
		},
	}
	cmd.Flags().StringVarP(&netName, "net", "n", "", "only queries on this network name")
	cmd.Flags().IntVar(&limit, "limit", store.DefaultListLimit, "maximum number of queries")
	cmd.Flags().StringVar(&id, "id", "", "show one recorded query")
	return cmd
}
