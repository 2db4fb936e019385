package observability

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/rhuss/mcpchat/pkg/config"
	"github.com/rhuss/mcpchat/pkg/provider"
)

// TestMetricsRegistered verifies that all metrics are registered in the
// default registry without panicking.
func TestMetricsRegistered(t *testing.T) {
	// Counters and histograms only appear after first observation.
	ModelRequestsTotal.WithLabelValues("test", "m", "ok").Add(0)
	ModelLatency.WithLabelValues("test", "m").Observe(0.1)
	ModelTokensTotal.WithLabelValues("test", "m", "input").Add(0)
	ToolExecutionsTotal.WithLabelValues("test_tool", "success").Add(0)
	ToolDuration.WithLabelValues("test_tool").Observe(0.01)
	PermissionDecisionsTotal.WithLabelValues("allow", "prompt").Add(0)
	CompactionsTotal.WithLabelValues("ok").Add(0)

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("unexpected gather error: %v", err)
	}

	expected := map[string]bool{
		"mcpchat_model_requests_total":       false,
		"mcpchat_model_latency_seconds":      false,
		"mcpchat_model_tokens_total":         false,
		"mcpchat_tool_executions_total":      false,
		"mcpchat_tool_duration_seconds":      false,
		"mcpchat_permission_decisions_total": false,
		"mcpchat_compactions_total":          false,
		"mcpchat_history_messages":           false,
	}
	for _, mf := range families {
		if _, ok := expected[mf.GetName()]; ok {
			expected[mf.GetName()] = true
		}
	}

	for name, found := range expected {
		if !found {
			t.Errorf("metric %q not found in default registry", name)
		}
	}
}

type stubProvider struct {
	resp *provider.ProviderResponse
	err  error
}

func (s *stubProvider) Name() string { return "stub" }
func (s *stubProvider) Complete(context.Context, *provider.ProviderRequest) (*provider.ProviderResponse, error) {
	return s.resp, s.err
}
func (s *stubProvider) ListModels(context.Context) ([]provider.ModelInfo, error) { return nil, nil }
func (s *stubProvider) Close() error                                              { return nil }

func TestInstrumentProvider_Success(t *testing.T) {
	beforeOK := counterValue(t, ModelRequestsTotal, "stub", "instr-ok", "ok")
	beforeIn := counterValue(t, ModelTokensTotal, "stub", "instr-ok", "input")
	beforeOut := counterValue(t, ModelTokensTotal, "stub", "instr-ok", "output")
	beforeLat := histogramCount(t, ModelLatency, "stub", "instr-ok")

	p := InstrumentProvider(&stubProvider{resp: &provider.ProviderResponse{
		Content: "hi",
		Usage:   provider.Usage{InputTokens: 12, OutputTokens: 3},
	}})
	if p.Name() != "stub" {
		t.Errorf("Name() = %q", p.Name())
	}

	resp, err := p.Complete(context.Background(), &provider.ProviderRequest{Model: "instr-ok"})
	if err != nil || resp.Content != "hi" {
		t.Fatalf("Complete = %v, %v", resp, err)
	}

	if d := counterValue(t, ModelRequestsTotal, "stub", "instr-ok", "ok") - beforeOK; d != 1 {
		t.Errorf("expected ok count +1, got %f", d)
	}
	if d := counterValue(t, ModelTokensTotal, "stub", "instr-ok", "input") - beforeIn; d != 12 {
		t.Errorf("expected input tokens +12, got %f", d)
	}
	if d := counterValue(t, ModelTokensTotal, "stub", "instr-ok", "output") - beforeOut; d != 3 {
		t.Errorf("expected output tokens +3, got %f", d)
	}
	if d := histogramCount(t, ModelLatency, "stub", "instr-ok") - beforeLat; d != 1 {
		t.Errorf("expected one latency sample, got %d", d)
	}
}

func TestInstrumentProvider_Error(t *testing.T) {
	before := counterValue(t, ModelRequestsTotal, "stub", "instr-err", "error")

	boom := errors.New("boom")
	p := InstrumentProvider(&stubProvider{err: boom})
	_, err := p.Complete(context.Background(), &provider.ProviderRequest{Model: "instr-err"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped provider error, got %v", err)
	}

	if d := counterValue(t, ModelRequestsTotal, "stub", "instr-err", "error") - before; d != 1 {
		t.Errorf("expected error count +1, got %f", d)
	}
}

func TestServer_ServesMetrics(t *testing.T) {
	CompactionsTotal.WithLabelValues("ok").Add(0)

	srv, err := Start(config.MetricsConfig{Enabled: true, Addr: "127.0.0.1:0", Path: "/metrics"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer srv.Shutdown(context.Background())

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "mcpchat_compactions_total") {
		t.Error("expected mcpchat metrics in scrape output")
	}
}

func TestServer_AddressInUse(t *testing.T) {
	first, err := Start(config.MetricsConfig{Addr: "127.0.0.1:0"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer first.Shutdown(context.Background())

	if _, err := Start(config.MetricsConfig{Addr: first.Addr()}); err == nil {
		t.Fatal("expected error binding an address already in use")
	}
}

// counterValue reads the current value of a CounterVec for the given labels.
func counterValue(t *testing.T, cv *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	m := &dto.Metric{}
	c, err := cv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting counter metric: %v", err)
	}
	if err := c.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing counter metric: %v", err)
	}
	return m.GetCounter().GetValue()
}

// histogramCount reads the observation count from a HistogramVec.
func histogramCount(t *testing.T, hv *prometheus.HistogramVec, labels ...string) uint64 {
	t.Helper()
	m := &dto.Metric{}
	obs, err := hv.GetMetricWithLabelValues(labels...)
	if err != nil {
		t.Fatalf("getting histogram metric: %v", err)
	}
	if err := obs.(prometheus.Metric).Write(m); err != nil {
		t.Fatalf("writing histogram metric: %v", err)
	}
	return m.GetHistogram().GetSampleCount()
}
