package tools

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/convene-dev/convene/pkg/calendar"
	"github.com/convene-dev/convene/pkg/llms"
	"github.com/convene-dev/convene/pkg/preferences"
)

// scriptedProvider returns canned responses in order.
type scriptedProvider struct {
	responses []*llms.Response
	err       error
	delay     time.Duration
	requests  []*llms.Request
}

func (p *scriptedProvider) Generate(ctx context.Context, req *llms.Request) (*llms.Response, error) {
	p.requests = append(p.requests, req)
	if p.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(p.delay):
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	if len(p.responses) == 0 {
		return &llms.Response{}, nil
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

func (p *scriptedProvider) ModelName() string { return "scripted" }
func (p *scriptedProvider) Close() error      { return nil }

func TestDispatchNaturalLanguageBooking(t *testing.T) {
	engine, reg := newToolset(t, preferences.Default())

	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")
	emission := fmt.Sprintf("```json\n"+
		`{"tool": "requestBooking", "arguments": {"start_time": "%sT14:00:00", "duration": "30m", "partner_agent_id": "partner-Z"}}`+
		"\n```", tomorrow)
	provider := &scriptedProvider{responses: []*llms.Response{{Text: emission}}}

	dispatcher := NewDispatcher(provider, reg, nil)
	reply := dispatcher.Dispatch(context.Background(),
		"book a 30 minute meeting with partner-Z tomorrow at 2pm")

	events := engine.ByStatus(calendar.StatusProposed)
	require.Len(t, events, 1)
	assert.Equal(t, "partner-Z", events[0].PartnerAgent)
	assert.Contains(t, reply, events[0].ID)

	require.Len(t, provider.requests, 1)
	assert.Contains(t, provider.requests[0].System, "requestBooking")
}

func TestDispatchNativeToolCall(t *testing.T) {
	engine, reg := newToolset(t, preferences.Default())

	provider := &scriptedProvider{responses: []*llms.Response{{
		ToolCalls: []llms.ToolCall{{
			Name: "requestBooking",
			Arguments: map[string]interface{}{
				"start_time":       "2026-09-03T10:00:00Z",
				"duration":         "30m",
				"partner_agent_id": "agent-beta",
			},
		}},
	}}}

	dispatcher := NewDispatcher(provider, reg, nil)
	reply := dispatcher.Dispatch(context.Background(), "set something up with beta")

	require.Len(t, engine.All(), 1)
	assert.Contains(t, reply, "event_id")
}

func TestDispatchUnparseableEmission(t *testing.T) {
	_, reg := newToolset(t, preferences.Default())
	provider := &scriptedProvider{responses: []*llms.Response{{Text: "I think you should rest instead."}}}

	dispatcher := NewDispatcher(provider, reg, nil)
	reply := dispatcher.Dispatch(context.Background(), "book something")
	assert.Contains(t, reply, "could not understand")
}

func TestDispatchUnknownTool(t *testing.T) {
	_, reg := newToolset(t, preferences.Default())
	provider := &scriptedProvider{responses: []*llms.Response{{Text: `{"tool": "launchRocket", "arguments": {}}`}}}

	dispatcher := NewDispatcher(provider, reg, nil)
	reply := dispatcher.Dispatch(context.Background(), "launch the rocket")
	assert.Contains(t, reply, "launchRocket")
}

func TestDispatchLLMTimeout(t *testing.T) {
	_, reg := newToolset(t, preferences.Default())
	provider := &scriptedProvider{delay: time.Second}

	dispatcher := NewDispatcher(provider, reg, nil)
	dispatcher.llmDeadline = 20 * time.Millisecond

	reply := dispatcher.Dispatch(context.Background(), "book something")
	assert.Contains(t, reply, "timed out")
}

func TestDispatchProviderError(t *testing.T) {
	_, reg := newToolset(t, preferences.Default())
	provider := &scriptedProvider{err: fmt.Errorf("upstream down")}

	dispatcher := NewDispatcher(provider, reg, nil)
	reply := dispatcher.Dispatch(context.Background(), "book something")
	assert.Contains(t, reply, "could not interpret")
}

func TestStripCodeFences(t *testing.T) {
	cases := map[string]string{
		"plain":                                      "plain",
		"```json\n{\"a\":1}\n```":                    `{"a":1}`,
		"```\n{\"a\":1}\n```":                        `{"a":1}`,
		"```{\"a\":1}```":                            `{"a":1}`,
		"  \n```json\n{\"a\":1}\n```  ":              `{"a":1}`,
		"{\"tool\": \"x\"}":                          `{"tool": "x"}`,
	}
	for input, want := range cases {
		assert.Equal(t, want, StripCodeFences(input), "input: %q", input)
	}
}
