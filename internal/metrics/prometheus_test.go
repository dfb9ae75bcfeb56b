package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounters(t *testing.T) {
	r := New()
	r.RecordScan(3)
	r.RecordScan(0)
	r.RecordTrade("stock", "buy")
	r.RecordTrade("stock", "buy")
	r.RecordTrade("option", "buy")
	r.RecordRejection("position_limit")
	r.RecordCircuitBreaker(true, 1200)

	if v := testutil.ToFloat64(r.scans); v != 2 {
		t.Errorf("Expected 2 scans, got %.0f", v)
	}
	if v := testutil.ToFloat64(r.trades.WithLabelValues("stock", "buy")); v != 2 {
		t.Errorf("Expected 2 stock buys, got %.0f", v)
	}
	if v := testutil.ToFloat64(r.breakerOpen); v != 1 {
		t.Errorf("Expected breaker gauge 1, got %.0f", v)
	}
	if v := testutil.ToFloat64(r.dailyLoss); v != 1200 {
		t.Errorf("Expected daily loss 1200, got %.0f", v)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.RecordWorkflow("scan_and_trade", "success", 250*time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `equities_bot_workflow_results_total{status="success",workflow="scan_and_trade"} 1`) {
		t.Errorf("Expected workflow result in output, got:\n%s", body)
	}
}

func TestIndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.RecordAlert("STOP_LOSS")
	if v := testutil.ToFloat64(b.alerts.WithLabelValues("STOP_LOSS")); v != 0 {
		t.Errorf("Expected separate registries, got %.0f", v)
	}
}
