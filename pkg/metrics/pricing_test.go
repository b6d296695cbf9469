package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPricingMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewPricingMetrics(reg)

	start := time.Now().Add(-250 * time.Millisecond)
	metrics.Track(OpComputeTotals, start, nil)
	metrics.Track(OpComputeTotals, start, errors.New("tax engine down"))
	metrics.IncEvent(EventShippingUnmatched)
	metrics.IncEvent(EventShippingUnmatched)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "orderdesk_pricing_success_total", "operation", OpComputeTotals); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "orderdesk_pricing_failure_total", "operation", OpComputeTotals); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "orderdesk_pricing_events_total", "event", EventShippingUnmatched); err != nil {
		t.Fatalf("fetch events: %v", err)
	} else if got != 2 {
		t.Fatalf("expected events=2, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "orderdesk_pricing_duration_seconds", "operation", OpComputeTotals); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got < 0.5 {
		t.Fatalf("expected duration sum >= 0.5, got %f", got)
	}
}

func TestNilRegistererIsNoop(t *testing.T) {
	metrics := NewPricingMetrics(nil)
	metrics.Track(OpManualDiscount, time.Now(), nil)
	metrics.IncEvent(EventOrderPersisted)

	var unset *PricingMetrics
	unset.Track(OpManualDiscount, time.Now(), nil)
	unset.IncEvent(EventOrderPersisted)
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
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
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
