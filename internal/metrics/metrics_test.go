package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordRequest_IncrementsCounter は操作別・結果別カウンタが増加することを検証する。
func TestRecordRequest_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequest("like_post", "ok")
	c.RecordRequest("like_post", "ok")
	c.RecordRequest("list_posts", "SERVER_ERROR")

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() != "picfeed_request_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, l := range m.GetLabel() {
				labels[l.GetName()] = l.GetValue()
			}
			if labels["operation"] == "like_post" && labels["result"] == "ok" {
				found = true
				if val := m.GetCounter().GetValue(); val != 2 {
					t.Errorf("request_total{like_post,ok} = %v, want 2", val)
				}
			}
		}
	}
	if !found {
		t.Error("picfeed_request_total{like_post,ok} metric not found")
	}
}

// TestRecordReload_CountsByResult は再読み込み結果が成功・失敗別に記録されることを検証する。
func TestRecordReload_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordReload(true)
	c.RecordReload(true)
	c.RecordReload(false)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	counts := map[string]float64{}
	for _, mf := range metrics {
		if mf.GetName() != "picfeed_reload_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "result" {
					counts[l.GetValue()] = m.GetCounter().GetValue()
				}
			}
		}
	}
	if counts["success"] != 2 {
		t.Errorf("reload_total{success} = %v, want 2", counts["success"])
	}
	if counts["failure"] != 1 {
		t.Errorf("reload_total{failure} = %v, want 1", counts["failure"])
	}
}

// TestRecordStaleDiscard_IncrementsCounter は破棄カウンタが増加することを検証する。
func TestRecordStaleDiscard_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordStaleDiscard()
	c.RecordStaleDiscard()
	c.RecordStaleDiscard()

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "picfeed_stale_discard_total" {
			found = true
			if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 3 {
				t.Errorf("stale_discard_total = %v, want 3", val)
			}
		}
	}
	if !found {
		t.Error("picfeed_stale_discard_total metric not found")
	}
}

// TestSetFeedSize_OverwritesGauge はゲージが最新値で上書きされることを検証する。
func TestSetFeedSize_OverwritesGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SetFeedSize(25)
	c.SetFeedSize(10)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "picfeed_feed_size" {
			found = true
			if val := mf.GetMetric()[0].GetGauge().GetValue(); val != 10 {
				t.Errorf("feed_size = %v, want 10", val)
			}
		}
	}
	if !found {
		t.Error("picfeed_feed_size metric not found")
	}
}

// TestRecordRequestLatency_ObservesHistogram はレイテンシがヒストグラムに記録されることを検証する。
func TestRecordRequestLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordRequestLatency(150 * time.Millisecond)

	metrics, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metrics {
		if mf.GetName() == "picfeed_request_latency_seconds" {
			found = true
			if count := mf.GetMetric()[0].GetHistogram().GetSampleCount(); count != 1 {
				t.Errorf("sample count = %v, want 1", count)
			}
		}
	}
	if !found {
		t.Error("picfeed_request_latency_seconds metric not found")
	}
}

// TestSetupMetricsRoute_ServesMetrics は/metricsエンドポイントが登録済みメトリクスを返すことを検証する。
func TestSetupMetricsRoute_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordRequest("list_posts", "ok")

	server := httptest.NewServer(SetupMetricsRoute(reg))
	defer server.Close()

	resp, err := http.Get(server.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	if !strings.Contains(string(body), "picfeed_request_total") {
		t.Error("response does not contain picfeed_request_total")
	}
}

// TestNopCollector_DoesNotPanic はNopCollectorの全メソッドが安全に呼べることを検証する。
func TestNopCollector_DoesNotPanic(t *testing.T) {
	var c NopCollector

	c.RecordRequest("list_posts", "ok")
	c.RecordRequestLatency(time.Millisecond)
	c.RecordReload(true)
	c.RecordStaleDiscard()
	c.SetFeedSize(5)
}
