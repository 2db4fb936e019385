package observability

import (
	"context"
	"time"

	"github.com/rhuss/mcpchat/pkg/provider"
)

// InstrumentedProvider wraps a provider.Provider to record model metrics.
//
// It captures:
//   - mcpchat_model_requests_total (counter): one per Complete call with status "ok" or "error"
//   - mcpchat_model_latency_seconds (histogram): Complete latency
//   - mcpchat_model_tokens_total (counter): input and output tokens reported by the backend
type InstrumentedProvider struct {
	next provider.Provider
}

var _ provider.Provider = (*InstrumentedProvider)(nil)

// InstrumentProvider returns p wrapped with metrics recording.
func InstrumentProvider(p provider.Provider) *InstrumentedProvider {
	return &InstrumentedProvider{next: p}
}

// Name returns the wrapped provider's name.
func (p *InstrumentedProvider) Name() string {
	return p.next.Name()
}

// Complete delegates to the wrapped provider and records the outcome.
func (p *InstrumentedProvider) Complete(ctx context.Context, req *provider.ProviderRequest) (*provider.ProviderResponse, error) {
	start := time.Now()
	resp, err := p.next.Complete(ctx, req)

	name := p.next.Name()
	ModelLatency.WithLabelValues(name, req.Model).Observe(time.Since(start).Seconds())

	if err != nil {
		ModelRequestsTotal.WithLabelValues(name, req.Model, "error").Inc()
		return nil, err
	}

	ModelRequestsTotal.WithLabelValues(name, req.Model, "ok").Inc()
	if resp.Usage.InputTokens > 0 {
		ModelTokensTotal.WithLabelValues(name, req.Model, "input").Add(float64(resp.Usage.InputTokens))
	}
	if resp.Usage.OutputTokens > 0 {
		ModelTokensTotal.WithLabelValues(name, req.Model, "output").Add(float64(resp.Usage.OutputTokens))
	}
	return resp, nil
}

// ListModels delegates to the wrapped provider.
func (p *InstrumentedProvider) ListModels(ctx context.Context) ([]provider.ModelInfo, error) {
	return p.next.ListModels(ctx)
}

// Close delegates to the wrapped provider.
func (p *InstrumentedProvider) Close() error {
	return p.next.Close()
}
