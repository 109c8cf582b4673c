package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	runsStartedTotal   atomic.Uint64
	runsCompletedTotal atomic.Uint64
	runsFailedTotal    atomic.Uint64
	sinkFailedTotal    atomic.Uint64
	httpPanicsTotal    atomic.Uint64

	runJobsReceivedTotal             atomic.Uint64
	runJobsCompletedTotal            atomic.Uint64
	runJobsFailedTotal               atomic.Uint64
	runJobsDeletedUnrecoverableTotal atomic.Uint64

	stageFailures  = newLabeledCounter()
	lookupFailures = newLabeledCounter()

	runDuration   = newHistogram([]float64{1000, 5000, 15000, 30000, 60000, 120000, 300000, 600000})
	stageDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncRunsStarted increments the started counter.
func IncRunsStarted() { runsStartedTotal.Add(1) }

// IncRunsCompleted increments the completed counter.
func IncRunsCompleted() { runsCompletedTotal.Add(1) }

// IncRunsFailed increments the failed counter and the per-stage failure counter.
func IncRunsFailed(stage string) {
	runsFailedTotal.Add(1)
	stageFailures.Inc(stage)
}

// IncSinkFailed counts analytical sink emissions that failed.
func IncSinkFailed() { sinkFailedTotal.Add(1) }

// IncLookupFailed counts enrichment lookups that fell back to their default.
func IncLookupFailed(kind string) { lookupFailures.Inc(kind) }

// IncHTTPPanics counts handler panics turned into 500 responses.
func IncHTTPPanics() { httpPanicsTotal.Add(1) }

// IncRunJobsReceived counts queue messages picked up by the worker.
func IncRunJobsReceived() { runJobsReceivedTotal.Add(1) }

// IncRunJobsCompleted counts queue messages processed and deleted.
func IncRunJobsCompleted() { runJobsCompletedTotal.Add(1) }

// IncRunJobsFailed counts queue messages whose run failed.
func IncRunJobsFailed() { runJobsFailedTotal.Add(1) }

// IncRunJobsDeletedUnrecoverable counts malformed messages dropped from the queue.
func IncRunJobsDeletedUnrecoverable() { runJobsDeletedUnrecoverableTotal.Add(1) }

// ObserveRunDurationMs records a full run duration in milliseconds.
func ObserveRunDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	runDuration.Observe(value)
}

// ObserveStageDurationMs records a single stage duration in milliseconds.
func ObserveStageDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	stageDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "runs_started_total", "Total pipeline runs started", runsStartedTotal.Load())
	writeCounter(&buf, "runs_completed_total", "Total pipeline runs completed", runsCompletedTotal.Load())
	writeCounter(&buf, "runs_failed_total", "Total pipeline runs failed", runsFailedTotal.Load())
	writeCounter(&buf, "sink_failed_total", "Total analytical sink emissions that failed", sinkFailedTotal.Load())
	writeCounter(&buf, "http_panics_total", "Total HTTP handler panics recovered", httpPanicsTotal.Load())
	writeCounter(&buf, "run_jobs_received_total", "Total run jobs received from the queue", runJobsReceivedTotal.Load())
	writeCounter(&buf, "run_jobs_completed_total", "Total run jobs completed", runJobsCompletedTotal.Load())
	writeCounter(&buf, "run_jobs_failed_total", "Total run jobs failed", runJobsFailedTotal.Load())
	writeCounter(&buf, "run_jobs_deleted_unrecoverable_total", "Total malformed run jobs dropped", runJobsDeletedUnrecoverableTotal.Load())
	writeLabeledCounter(&buf, "stage_failed_total", "Pipeline failures by stage", "stage", stageFailures.Snapshot())
	writeLabeledCounter(&buf, "enrichment_lookup_failed_total", "Enrichment lookups that defaulted, by kind", "kind", lookupFailures.Snapshot())
	writeHistogram(&buf, "run_duration_ms", "Pipeline run duration in milliseconds", runDuration.Snapshot())
	writeHistogram(&buf, "stage_duration_ms", "Pipeline stage duration in milliseconds", stageDuration.Snapshot())
	return buf.String()
}

type labeledCounter struct {
	mu     sync.Mutex
	counts map[string]uint64
}

func newLabeledCounter() *labeledCounter {
	return &labeledCounter{counts: make(map[string]uint64)}
}

func (l *labeledCounter) Inc(label string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.counts[label]++
}

func (l *labeledCounter) Snapshot() map[string]uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]uint64, len(l.counts))
	for k, v := range l.counts {
		out[k] = v
	}
	return out
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

// Observe records value in the first bucket whose bound it fits under.
func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeLabeledCounter(buf *bytes.Buffer, name, help, label string, values map[string]uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(buf, "%s{%s=%q} %d\n", name, label, k, values[k])
	}
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
