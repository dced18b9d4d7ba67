// internal/workers/audit/log-audit-observation/config.go
package logauditobservation

import (
	"time"

	"audit-orchestrator/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func NewConfig(appConfig *config.Config) *Config {
	timeout := config.GetDuration(appConfig.Workers[TaskType].Timeout)
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Config{Timeout: timeout}
}
