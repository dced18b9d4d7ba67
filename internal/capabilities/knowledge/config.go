// internal/capabilities/knowledge/config.go
package knowledge

import (
	"time"

	"audit-orchestrator/internal/common/config"
)

type Config struct {
	IndexPrefix   string
	CacheEnabled  bool
	CacheTTL      time.Duration
	SearchTimeout time.Duration
}

func NewConfig(appConfig *config.Config) *Config {
	k := appConfig.Knowledge
	return &Config{
		IndexPrefix:   k.IndexPrefix,
		CacheEnabled:  k.CacheEnabled,
		CacheTTL:      config.GetDuration(k.CacheTTL),
		SearchTimeout: config.GetDuration(k.SearchTimeout),
	}
}
