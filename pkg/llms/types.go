// Package llms provides the language model abstraction used by the booking
// agent and the inbound tool dispatcher, with providers for the Anthropic
// and OpenAI APIs.
package llms

import "context"

// Role constants for conversation messages.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single turn of model input.
type Message struct {
	Role       string
	Content    string
	ToolCallID string
	ToolCalls  []ToolCall
}

// ToolDefinition describes a callable tool in vendor-neutral form.
// Parameters is a JSON Schema object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
}

// Request carries one generation request.
type Request struct {
	System      string
	Messages    []Message
	Tools       []ToolDefinition
	MaxTokens   int
	Temperature float64
}

// Response is the model's reply.
type Response struct {
	Text       string
	ToolCalls  []ToolCall
	TokensUsed int
	StopReason string
}

// Provider generates model responses. Implementations must honor ctx
// cancellation.
type Provider interface {
	Generate(ctx context.Context, req *Request) (*Response, error)
	ModelName() string
	Close() error
}

// Config configures a provider instance.
type Config struct {
	Type        string  `json:"type" yaml:"type" koanf:"type"`
	Model       string  `json:"model" yaml:"model" koanf:"model"`
	APIKey      string  `json:"api_key" yaml:"api_key" koanf:"api_key"`
	Host        string  `json:"host" yaml:"host" koanf:"host"`
	MaxTokens   int     `json:"max_tokens" yaml:"max_tokens" koanf:"max_tokens"`
	Temperature float64 `json:"temperature" yaml:"temperature" koanf:"temperature"`
	TimeoutSecs int     `json:"timeout" yaml:"timeout" koanf:"timeout"`
}

func (c *Config) applyDefaults() {
	if c.MaxTokens == 0 {
		c.MaxTokens = 4096
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = 120
	}
}
