// internal/capabilities/genai/config.go
package genai

import (
	"time"

	"audit-orchestrator/internal/common/config"
)

type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

func NewConfig(appConfig *config.Config) *Config {
	g := appConfig.APIs.GenAI
	return &Config{
		BaseURL:    g.BaseURL,
		APIKey:     g.APIKey,
		Model:      g.Model,
		Timeout:    config.GetDuration(g.Timeout),
		MaxRetries: g.MaxRetries,
	}
}
