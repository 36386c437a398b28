// Package config provides the runtime's declarative configuration: LLM
// connection, store backend selection, guideline thresholds, tool
// services, and observability. It's config-first in the teacher's style
// (config.Config as the single entry point, SetDefaults/Validate on every
// nested struct) but scoped to this runtime's own collaborators rather
// than the teacher's broader agent/workflow/document-store surface.
package config

import (
	"fmt"

	"github.com/kadirpekel/conversa/guideline"
)

// Config is the root configuration structure.
type Config struct {
	Name string `yaml:"name,omitempty"`

	LLM           LLMConfig           `yaml:"llm,omitempty"`
	Store         StoreConfig         `yaml:"store,omitempty"`
	Guideline     GuidelineConfig     `yaml:"guideline,omitempty"`
	Tools         ToolsConfig         `yaml:"tools,omitempty"`
	Observability ObservabilityConfig `yaml:"observability,omitempty"`
	Server        ServerConfig        `yaml:"server,omitempty"`
	Logging       LoggingConfig       `yaml:"logging,omitempty"`
}

// LLMConfig configures the genai-backed completion and embedding clients.
type LLMConfig struct {
	Model       string  `yaml:"model,omitempty"`
	APIKey      string  `yaml:"api_key,omitempty"`
	EmbedModel  string  `yaml:"embed_model,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty"`
}

func (c *LLMConfig) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("llm.api_key is required")
	}
	return nil
}

func (c *LLMConfig) SetDefaults() {
	if c.Model == "" {
		c.Model = "gemini-2.0-flash"
	}
	if c.EmbedModel == "" {
		c.EmbedModel = "text-embedding-004"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.5
	}
}

// StoreConfig selects and configures the persistence backend.
type StoreConfig struct {
	// Backend is "memory", "sqlite", "postgres", or "mysql".
	Backend string `yaml:"backend,omitempty"`
	DSN     string `yaml:"dsn,omitempty"`

	// GlossaryPersistPath enables on-disk chromem-go persistence for the
	// glossary vector store; empty keeps it in-memory only.
	GlossaryPersistPath string `yaml:"glossary_persist_path,omitempty"`
}

func (c *StoreConfig) Validate() error {
	switch c.Backend {
	case "", "memory":
	case "sqlite", "postgres", "mysql":
		if c.DSN == "" {
			return fmt.Errorf("store.dsn is required for backend %q", c.Backend)
		}
	default:
		return fmt.Errorf("unsupported store.backend %q", c.Backend)
	}
	return nil
}

func (c *StoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
}

// GuidelineConfig tunes the proposition/expansion phases.
type GuidelineConfig struct {
	// Threshold is the minimum relevance score, 1-10, for a proposition to
	// be accepted (spec.md §4.D). Zero takes guideline.DefaultThreshold.
	Threshold int `yaml:"threshold,omitempty"`
}

func (c *GuidelineConfig) Validate() error {
	if c.Threshold < 0 || c.Threshold > 10 {
		return fmt.Errorf("guideline.threshold must be between 0 and 10, got %d", c.Threshold)
	}
	return nil
}

func (c *GuidelineConfig) SetDefaults() {
	if c.Threshold == 0 {
		c.Threshold = guideline.DefaultThreshold
	}
}

// ToolsConfig lists the tool services to wire at startup, by transport.
type ToolsConfig struct {
	OpenAPI []OpenAPIToolConfig `yaml:"openapi,omitempty"`
	Plugin  []PluginToolConfig  `yaml:"plugin,omitempty"`
}

func (c *ToolsConfig) Validate() error {
	for i, t := range c.OpenAPI {
		if t.ServiceName == "" || t.BaseURL == "" {
			return fmt.Errorf("tools.openapi[%d]: service_name and base_url are required", i)
		}
	}
	for i, t := range c.Plugin {
		if t.ServiceName == "" || t.Command == "" {
			return fmt.Errorf("tools.plugin[%d]: service_name and command are required", i)
		}
	}
	return nil
}

func (c *ToolsConfig) SetDefaults() {}

// OpenAPIToolConfig names one remote OpenAPI-described tool service
// (spec.md §4.C's HTTP transport). Parsing an OpenAPI document is an
// authoring-time concern outside the core (spec.md §1); Operations holds
// the already-resolved operations the authoring flow produced.
type OpenAPIToolConfig struct {
	ServiceName string                `yaml:"service_name"`
	BaseURL     string                `yaml:"base_url"`
	Operations  []OpenAPIOperationConfig `yaml:"operations,omitempty"`
}

// OpenAPIOperationConfig is one already-resolved OpenAPI operation.
type OpenAPIOperationConfig struct {
	ToolName         string         `yaml:"tool_name"`
	Description      string         `yaml:"description,omitempty"`
	Method           string         `yaml:"method"`
	PathTemplate     string         `yaml:"path_template"`
	ParametersSchema map[string]any `yaml:"parameters_schema,omitempty"`
	RequiredParams   []string       `yaml:"required_params,omitempty"`
	Consequential    bool           `yaml:"consequential,omitempty"`
}

// PluginToolConfig names one long-lived go-plugin tool service (spec.md
// §4.C's plugin transport). Command is the path to the plugin binary that
// tool/pluginrpc.Dial launches and handshakes with.
type PluginToolConfig struct {
	ServiceName string `yaml:"service_name"`
	Command     string `yaml:"command"`
}

// ObservabilityConfig configures tracing and metrics.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

func (c *ObservabilityConfig) Validate() error { return nil }

func (c *ObservabilityConfig) SetDefaults() {
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "conversa"
	}
	if c.Tracing.Exporter == "" {
		c.Tracing.Exporter = "stdout"
	}
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1.0
	}
	if c.Metrics.Namespace == "" {
		c.Metrics.Namespace = "conversa"
	}
}

// TracingConfig mirrors observability.TracingConfig for YAML decoding.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled,omitempty"`
	ServiceName  string  `yaml:"service_name,omitempty"`
	Exporter     string  `yaml:"exporter,omitempty"`
	SamplingRate float64 `yaml:"sampling_rate,omitempty"`
}

// MetricsConfig enables the Prometheus registry and namespace.
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled,omitempty"`
	Namespace string `yaml:"namespace,omitempty"`
}

// ServerConfig configures the REST listener.
type ServerConfig struct {
	Port int `yaml:"port,omitempty"`
}

func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Port)
	}
	return nil
}

func (c *ServerConfig) SetDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
}

// LoggingConfig configures log/slog's handler.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`  // debug, info, warn, error
	Format string `yaml:"format,omitempty"` // text or json
}

func (c *LoggingConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported logging.level %q", c.Level)
	}
	switch c.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("unsupported logging.format %q", c.Format)
	}
	return nil
}

func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "text"
	}
}

// SetDefaults fills in zero-valued fields across the whole tree. Fields
// explicitly set by the YAML file or an environment override are left
// untouched.
func (c *Config) SetDefaults() {
	c.LLM.SetDefaults()
	c.Store.SetDefaults()
	c.Guideline.SetDefaults()
	c.Tools.SetDefaults()
	c.Observability.SetDefaults()
	c.Server.SetDefaults()
	c.Logging.SetDefaults()
}

// Validate checks the whole tree, after SetDefaults has been applied.
func (c *Config) Validate() error {
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Store.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Guideline.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Tools.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}
