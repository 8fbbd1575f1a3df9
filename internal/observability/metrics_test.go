package observability

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsBatchCounters(t *testing.T) {
	t.Parallel()

	m := NewMetrics()

	m.IncBatchStarted()
	m.IncBatchStarted()
	m.IncBatchFinished("COMPLETED")
	m.IncBatchFinished("NOT_COMPLETED")
	m.IncBatchFinished("NOT_COMPLETED")

	if got := testutil.ToFloat64(m.batchesStartedTotal); got != 2 {
		t.Fatalf("batches started %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.batchesFinished.WithLabelValues("completed")); got != 1 {
		t.Fatalf("completed %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.batchesFinished.WithLabelValues("not_completed")); got != 2 {
		t.Fatalf("not_completed %v, want 2", got)
	}
}

func TestMetricsUploadCounters(t *testing.T) {
	t.Parallel()

	m := NewMetrics()

	m.IncFileUploaded(1024)
	m.IncFileUploaded(0)

	if got := testutil.ToFloat64(m.filesUploadedTotal); got != 2 {
		t.Fatalf("files uploaded %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.uploadBytesTotal); got != 1024 {
		t.Fatalf("upload bytes %v, want 1024", got)
	}
}

func TestMetricsErrorCounter(t *testing.T) {
	t.Parallel()

	m := NewMetrics()

	m.IncErrorLogged("CRAWL")
	m.IncErrorLogged("")

	if got := testutil.ToFloat64(m.errorsLoggedTotal.WithLabelValues("crawl")); got != 1 {
		t.Fatalf("crawl errors %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.errorsLoggedTotal.WithLabelValues("unknown")); got != 1 {
		t.Fatalf("unknown errors %v, want 1", got)
	}
}

func TestMetricsSweepObservation(t *testing.T) {
	t.Parallel()

	m := NewMetrics()

	m.ObserveSweepDuration(50*time.Millisecond, 3)
	m.ObserveSweepDuration(10*time.Millisecond, 0)

	if got := testutil.ToFloat64(m.sweptBatchesTotal); got != 3 {
		t.Fatalf("swept batches %v, want 3", got)
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	m.IncBatchStarted()
	m.IncBatchFinished("COMPLETED")
	m.IncFileUploaded(10)
	m.IncErrorLogged("CRAWL")
	m.ObserveSweepDuration(time.Millisecond, 1)
}

func TestMetricsExposition(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.IncBatchStarted()

	expected := strings.NewReader(`
# HELP ingest_engine_batches_started_total Total number of batches started.
# TYPE ingest_engine_batches_started_total counter
ingest_engine_batches_started_total 1
`)
	if err := testutil.GatherAndCompare(m.registry, expected, "ingest_engine_batches_started_total"); err != nil {
		t.Fatalf("unexpected exposition: %v", err)
	}
}
