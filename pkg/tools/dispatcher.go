package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/convene-dev/convene/pkg/llms"
)

const (
	dispatchLLMDeadline  = 30 * time.Second
	dispatchToolDeadline = 30 * time.Second
)

// Dispatcher routes free-form text onto the tool catalog through a language
// model. Failures come back as plain-language strings, never as panics or
// raised errors; the caller forwards the text to the remote peer as-is.
type Dispatcher struct {
	provider llms.Provider
	registry *Registry
	logger   *slog.Logger

	// overridable in tests
	llmDeadline  time.Duration
	toolDeadline time.Duration
}

// decision is what the model is asked to emit.
type decision struct {
	Tool      string                 `json:"tool" mapstructure:"tool"`
	Arguments map[string]interface{} `json:"arguments" mapstructure:"arguments"`
}

func NewDispatcher(provider llms.Provider, registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		provider:     provider,
		registry:     registry,
		logger:       logger,
		llmDeadline:  dispatchLLMDeadline,
		toolDeadline: dispatchToolDeadline,
	}
}

// Dispatch interprets the text, runs the chosen tool, and returns its
// response text.
func (d *Dispatcher) Dispatch(ctx context.Context, text string) string {
	llmCtx, cancel := context.WithTimeout(ctx, d.llmDeadline)
	defer cancel()

	resp, err := d.provider.Generate(llmCtx, &llms.Request{
		System:   d.systemPrompt(),
		Messages: []llms.Message{{Role: llms.RoleUser, Content: text}},
	})
	if err != nil {
		if llmCtx.Err() == context.DeadlineExceeded {
			return fmt.Sprintf("Sorry, interpreting your request timed out after %s.", d.llmDeadline)
		}
		d.logger.Warn("tool dispatch LLM call failed", "error", err)
		return "Sorry, I could not interpret that request right now."
	}

	// Providers that support native tool calling hand us the decision
	// directly; otherwise parse it out of the text emission.
	var dec decision
	if len(resp.ToolCalls) > 0 {
		dec = decision{Tool: resp.ToolCalls[0].Name, Arguments: resp.ToolCalls[0].Arguments}
	} else {
		parsed, err := parseDecision(resp.Text)
		if err != nil {
			d.logger.Debug("unparseable tool decision", "error", err, "emission", resp.Text)
			return fmt.Sprintf("Sorry, I could not understand that request: %v", err)
		}
		dec = parsed
	}

	tool, ok := d.registry.Get(dec.Tool)
	if !ok {
		return fmt.Sprintf("Sorry, %q is not an operation I support.", dec.Tool)
	}

	toolCtx, cancelTool := context.WithTimeout(ctx, d.toolDeadline)
	defer cancelTool()

	result, err := tool.Execute(toolCtx, dec.Arguments)
	if err != nil {
		d.logger.Warn("tool execution failed", "tool", dec.Tool, "error", err)
		return fmt.Sprintf("Sorry, the %s operation failed: %v", dec.Tool, err)
	}
	if !result.Success {
		return result.Error
	}
	return result.Content
}

func (d *Dispatcher) systemPrompt() string {
	catalog, _ := json.Marshal(d.registry.Catalog())
	var b strings.Builder
	b.WriteString("You manage a calendar on behalf of a user. ")
	b.WriteString("Choose exactly one tool for the incoming request and respond with a single JSON object ")
	b.WriteString(`of the form {"tool": "<name>", "arguments": {...}} and nothing else.`)
	b.WriteString("\n\nAvailable tools:\n")
	b.Write(catalog)
	return b.String()
}

// parseDecision strips code fences and decodes the {tool, arguments} object.
func parseDecision(emission string) (decision, error) {
	cleaned := StripCodeFences(emission)
	if cleaned == "" {
		return decision{}, fmt.Errorf("the model produced no decision")
	}

	raw := map[string]interface{}{}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return decision{}, fmt.Errorf("the decision was not valid JSON")
	}

	var dec decision
	if err := mapstructure.Decode(raw, &dec); err != nil || dec.Tool == "" {
		return decision{}, fmt.Errorf("the decision named no tool")
	}
	if dec.Arguments == nil {
		dec.Arguments = map[string]interface{}{}
	}
	return dec, nil
}

// StripCodeFences removes a surrounding markdown code fence, with or without
// a language tag, and trims whitespace.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		firstLine := strings.TrimSpace(s[:idx])
		// Language tags contain no JSON punctuation.
		if !strings.ContainsAny(firstLine, "{}[]") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
