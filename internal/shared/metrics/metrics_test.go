package metrics

import (
	"bytes"
	"strings"
	"testing"
)

func TestHistogramBucketsAreCumulative(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)

	snap := h.Snapshot()
	if snap.count != 3 {
		t.Fatalf("expected count 3, got %d", snap.count)
	}
	if snap.counts[0] != 1 || snap.counts[1] != 1 {
		t.Fatalf("unexpected bucket counts: %v", snap.counts)
	}

	var buf bytes.Buffer
	writeHistogram(&buf, "x_ms", "test", snap)
	out := buf.String()
	if !strings.Contains(out, `x_ms_bucket{le="100"} 2`) {
		t.Fatalf("expected cumulative bucket, got:\n%s", out)
	}
	if !strings.Contains(out, `x_ms_bucket{le="+Inf"} 3`) {
		t.Fatalf("expected +Inf bucket, got:\n%s", out)
	}
}

func TestRenderIncludesLabeledCounters(t *testing.T) {
	IncLookupFailed("news_sentiment")
	IncRunsFailed("enrichment")

	out := Render()
	if !strings.Contains(out, `enrichment_lookup_failed_total{kind="news_sentiment"}`) {
		t.Fatalf("missing lookup failure counter:\n%s", out)
	}
	if !strings.Contains(out, `stage_failed_total{stage="enrichment"}`) {
		t.Fatalf("missing stage failure counter:\n%s", out)
	}
}
