package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestWebhookMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewWebhookMetrics(reg)
	eventType := "checkout.session.completed"
	metrics.ObserveDuration(eventType, 120*time.Millisecond)
	metrics.IncResult(eventType, "handled")
	metrics.IncResult(eventType, "duplicate")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "webhook_events_total", "result", "handled"); err != nil {
		t.Fatalf("fetch handled: %v", err)
	} else if got != 1 {
		t.Fatalf("expected handled=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "webhook_events_total", "result", "duplicate"); err != nil {
		t.Fatalf("fetch duplicate: %v", err)
	} else if got != 1 {
		t.Fatalf("expected duplicate=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "webhook_event_duration_seconds", "event_type", eventType); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestSettlementMetricsCountsTransfersByStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewSettlementMetrics(reg)
	metrics.ObserveRun("webhook", 80*time.Millisecond)
	metrics.IncTransfer("succeeded")
	metrics.IncTransfer("succeeded")
	metrics.IncTransfer("failed")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "settlement_transfers_total", "status", "succeeded"); err != nil {
		t.Fatalf("fetch succeeded: %v", err)
	} else if got != 2 {
		t.Fatalf("expected succeeded=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "settlement_transfers_total", "status", "failed"); err != nil {
		t.Fatalf("fetch failed: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failed=1, got %f", got)
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var webhook *WebhookMetrics
	var settlement *SettlementMetrics
	webhook.ObserveDuration("x", time.Second)
	webhook.IncResult("x", "handled")
	settlement.ObserveRun("manual", time.Second)
	settlement.IncTransfer("failed")
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
