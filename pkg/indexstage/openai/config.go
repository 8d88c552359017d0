package openai

import (
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// Config configures the OpenAI-backed vector-service adapter.
type Config struct {
	// APIKey authenticates against the vector service.
	APIKey string `mapstructure:"api_key" validate:"required"`

	// BaseURL overrides the default OpenAI API endpoint, for
	// OpenAI-compatible vector services.
	BaseURL string `mapstructure:"base_url"`
}

// Validate reports configuration errors beyond what struct tags catch.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("indexstage/openai: api_key is required")
	}
	return nil
}

// NewFromConfig builds a Service from cfg, applying BaseURL if set.
func NewFromConfig(cfg Config) *Service {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Service{client: openai.NewClientWithConfig(clientCfg)}
}
