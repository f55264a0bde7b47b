package llms

import "fmt"

// NewProvider builds a provider from config. Type selects the vendor.
func NewProvider(cfg Config) (Provider, error) {
	switch cfg.Type {
	case "anthropic":
		return NewAnthropicProvider(cfg)
	case "openai":
		return NewOpenAIProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown llm provider type: %q", cfg.Type)
	}
}
