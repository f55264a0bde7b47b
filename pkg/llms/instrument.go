package llms

import (
	"context"

	"github.com/convene-dev/convene/pkg/observability"
)

// instrumentedProvider records request/token/error counters around Generate.
type instrumentedProvider struct {
	Provider
	metrics *observability.Metrics
}

// Instrument wraps a provider so every Generate call is recorded. A nil
// metrics handle returns the provider unwrapped.
func Instrument(p Provider, m *observability.Metrics) Provider {
	if m == nil {
		return p
	}
	return &instrumentedProvider{Provider: p, metrics: m}
}

func (p *instrumentedProvider) Generate(ctx context.Context, req *Request) (*Response, error) {
	resp, err := p.Provider.Generate(ctx, req)
	tokens := 0
	if resp != nil {
		tokens = resp.TokensUsed
	}
	p.metrics.RecordLLM(ctx, p.ModelName(), tokens, err)
	return resp, err
}
