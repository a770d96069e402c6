package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestPublisherMetricsCountsByEventType(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPublisherMetrics(reg)
	m.ObserveBatch(3)
	m.IncPublished("product_created")
	m.IncPublished("product_created")
	m.IncFailed("product_updated")
	m.IncDeadLettered("master_deleted", "max_attempts")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "catalog_outbox_published_total", "event_type", "product_created"); err != nil || got != 2 {
		t.Fatalf("published: got %f err %v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "catalog_outbox_publish_failures_total", "event_type", "product_updated"); err != nil || got != 1 {
		t.Fatalf("failures: got %f err %v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "catalog_outbox_dead_lettered_total", "reason", "max_attempts"); err != nil || got != 1 {
		t.Fatalf("dead lettered: got %f err %v", got, err)
	}
	if mf := findMetricFamily(mfs, "catalog_outbox_batch_size"); mf == nil {
		t.Fatalf("batch size histogram not exported")
	} else if sum := mf.GetMetric()[0].GetHistogram().GetSampleSum(); sum != 3 {
		t.Fatalf("expected batch sum 3, got %f", sum)
	}
}
