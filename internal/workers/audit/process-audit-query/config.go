// internal/workers/audit/process-audit-query/config.go
package processauditquery

import (
	"time"

	"audit-orchestrator/internal/common/config"
)

type Config struct {
	Timeout time.Duration
	Persist bool
}

func NewConfig(appConfig *config.Config) *Config {
	timeout := config.GetDuration(appConfig.Workers[TaskType].Timeout)
	if timeout <= 0 {
		timeout = 3 * time.Minute
	}
	return &Config{
		Timeout: timeout,
		Persist: appConfig.Results.Persist,
	}
}
