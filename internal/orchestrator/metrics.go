package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	tracer = otel.Tracer("birdeels.orchestrator")
	meter  = otel.Meter("birdeels.orchestrator")
)

var (
	compileLatency metric.Float64Histogram
	compileTotal   metric.Int64Counter
	memoHits       metric.Int64Counter
	dependencyRuns metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the instruments. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		compileLatency, err = meter.Float64Histogram(
			"birdee_compile_duration_seconds",
			metric.WithDescription("Duration of top-level compiles including dependencies"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		compileTotal, err = meter.Int64Counter(
			"birdee_compile_total",
			metric.WithDescription("Total number of top-level compiles"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		memoHits, err = meter.Int64Counter(
			"birdee_compile_memo_hits_total",
			metric.WithDescription("Compiles answered from the previous attempt"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		dependencyRuns, err = meter.Int64Counter(
			"birdee_dependency_compile_total",
			metric.WithDescription("Dependency modules compiled from source"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func startCompileSpan(ctx context.Context, kind, path string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "Orchestrator."+kind,
		trace.WithAttributes(
			attribute.String("birdee.compile_kind", kind),
			attribute.String("birdee.path", path),
		),
	)
}

func recordCompile(ctx context.Context, kind string, duration time.Duration, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("success", success),
	)
	compileLatency.Record(ctx, duration.Seconds(), attrs)
	compileTotal.Add(ctx, 1, attrs)
}

func recordMemoHit(ctx context.Context) {
	if err := initMetrics(); err != nil {
		return
	}
	memoHits.Add(ctx, 1)
}

func recordDependency(ctx context.Context, success bool) {
	if err := initMetrics(); err != nil {
		return
	}
	dependencyRuns.Add(ctx, 1, metric.WithAttributes(attribute.Bool("success", success)))
}
