// Package config loads and validates the process configuration from YAML,
// with environment variable expansion and live reload on file change.
package config

import (
	"fmt"

	"github.com/convene-dev/convene/pkg/llms"
	"github.com/convene-dev/convene/pkg/observability"
	"github.com/convene-dev/convene/pkg/preferences"
)

type Config struct {
	Agent         AgentConfig             `json:"agent" yaml:"agent" koanf:"agent"`
	Server        ServerConfig            `json:"server" yaml:"server" koanf:"server"`
	LLM           llms.Config             `json:"llm" yaml:"llm" koanf:"llm"`
	Store         StoreConfig             `json:"store" yaml:"store" koanf:"store"`
	Preferences   preferences.Preferences `json:"preferences" yaml:"preferences" koanf:"preferences"`
	Negotiation   NegotiationConfig       `json:"negotiation" yaml:"negotiation" koanf:"negotiation"`
	Logging       LoggingConfig           `json:"logging" yaml:"logging" koanf:"logging"`
	Observability observability.Config    `json:"observability" yaml:"observability" koanf:"observability"`
}

// AgentConfig is the local agent's public identity, served on its agent card.
type AgentConfig struct {
	Name        string `json:"name" yaml:"name" koanf:"name"`
	Description string `json:"description" yaml:"description" koanf:"description"`
	Version     string `json:"version" yaml:"version" koanf:"version"`
	URL         string `json:"url" yaml:"url" koanf:"url"`
}

type ServerConfig struct {
	Host string `json:"host" yaml:"host" koanf:"host"`
	Port int    `json:"port" yaml:"port" koanf:"port"`
}

func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type StoreConfig struct {
	// Driver is sqlite, postgres, mysql, or memory.
	Driver string `json:"driver" yaml:"driver" koanf:"driver"`
	DSN    string `json:"dsn" yaml:"dsn" koanf:"dsn"`
}

type NegotiationConfig struct {
	MaxTurns               int  `json:"max_turns" yaml:"max_turns" koanf:"max_turns"`
	OverallDeadlineSeconds int  `json:"overall_deadline_seconds" yaml:"overall_deadline_seconds" koanf:"overall_deadline_seconds"`
	DisableStreaming       bool `json:"disable_streaming" yaml:"disable_streaming" koanf:"disable_streaming"`
}

type LoggingConfig struct {
	Level  string `json:"level" yaml:"level" koanf:"level"`
	Format string `json:"format" yaml:"format" koanf:"format"`
}

// Defaults returns the configuration used when no file is supplied.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"agent.name":        "convene",
		"agent.description": "Calendar negotiation agent",
		"agent.version":     "0.1.0",
		"server.host":       "0.0.0.0",
		"server.port":       8080,
		"llm.type":          "anthropic",
		"llm.model":         "claude-sonnet-4-20250514",
		"llm.api_key":       "${ANTHROPIC_API_KEY}",
		"store.driver":      "sqlite",
		"store.dsn":         "convene.db",
		"negotiation.max_turns":                5,
		"negotiation.overall_deadline_seconds": 120,
		"logging.level":         "info",
		"logging.format":        "simple",
		"observability.enabled": false,
	}
}

func (c *Config) Validate() error {
	if c.Agent.Name == "" {
		return fmt.Errorf("agent.name is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	switch c.Store.Driver {
	case "sqlite", "postgres", "mysql", "memory":
	default:
		return fmt.Errorf("store.driver must be sqlite, postgres, mysql, or memory; got %q", c.Store.Driver)
	}
	if c.Negotiation.MaxTurns < 0 {
		return fmt.Errorf("negotiation.max_turns cannot be negative")
	}
	if err := c.Preferences.Validate(); err != nil {
		return fmt.Errorf("preferences: %w", err)
	}
	return nil
}
