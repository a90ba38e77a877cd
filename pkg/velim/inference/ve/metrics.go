package ve

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/cognicore/velim/pkg/velim/inference"
)

var tracer = otel.Tracer("velim.ve")

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "velim_ve_queries_total",
		Help: "Variable elimination queries by outcome",
	}, []string{"outcome"})

	queryDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "velim_ve_query_duration_seconds",
		Help:    "Duration of variable elimination queries",
		Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1, 10},
	})

	eliminationSteps = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "velim_ve_elimination_steps",
		Help:    "Variables eliminated per query",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100},
	})

	peakCells = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "velim_ve_peak_cells",
		Help:    "Largest intermediate table per query, in cells",
		Buckets: prometheus.ExponentialBuckets(1, 4, 12),
	})
)

func startQuerySpan(ctx context.Context, net string, req inference.Request) (context.Context, trace.Span) {
	return tracer.Start(ctx, "ve.Query",
		trace.WithAttributes(
			attribute.String("velim.network", net),
			attribute.StringSlice("velim.query", req.Query),
			attribute.StringSlice("velim.evidence", req.EvidenceNames()),
		),
	)
}

func startEliminateSpan(ctx context.Context, variable string, inputs int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "ve.Eliminate",
		trace.WithAttributes(
			attribute.String("velim.variable", variable),
			attribute.Int("velim.inputs", inputs),
		),
	)
}

// recordQuery finishes the query span and updates the counters.
func recordQuery(span trace.Span, res *inference.Result, err error, elapsed time.Duration) {
	queryDuration.Observe(elapsed.Seconds())
	if err != nil {
		queriesTotal.WithLabelValues("error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return
	}
	queriesTotal.WithLabelValues("ok").Inc()
	eliminationSteps.Observe(float64(len(res.Steps)))
	peakCells.Observe(float64(res.PeakCells))
	span.SetAttributes(
		attribute.Int("velim.steps", len(res.Steps)),
		attribute.Int("velim.peak_cells", res.PeakCells),
	)
}
