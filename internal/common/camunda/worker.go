// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"audit-orchestrator/internal/common/config"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

// JobHandler completes or fails the job itself.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

type Logger interface {
	Info(msg string, fields map[string]interface{})
}

// Pool owns the job workers opened against one Zeebe client.
type Pool struct {
	client  zbc.Client
	logger  Logger
	workers map[string]worker.JobWorker
}

func NewPool(client zbc.Client, log Logger) *Pool {
	return &Pool{client: client, logger: log, workers: make(map[string]worker.JobWorker)}
}

// Start opens a worker for taskType unless it is disabled in wcfg.
func (p *Pool) Start(taskType string, wcfg config.WorkerConfig, handler JobHandler) bool {
	if !wcfg.Enabled {
		p.logger.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return false
	}

	builder := p.client.NewJobWorker().
		JobType(taskType).
		Handler(handler.Handle).
		MaxJobsActive(wcfg.MaxJobsActive)
	if wcfg.Timeout > 0 {
		builder = builder.Timeout(time.Duration(wcfg.Timeout) * time.Millisecond)
	}
	p.workers[taskType] = builder.Open()

	p.logger.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return true
}

func (p *Pool) Running() []string {
	types := make([]string, 0, len(p.workers))
	for t := range p.workers {
		types = append(types, t)
	}
	return types
}

// Stop closes every worker. The client is left open for the caller to close.
func (p *Pool) Stop() {
	for taskType, w := range p.workers {
		p.logger.Info("stopping worker", map[string]interface{}{"taskType": taskType})
		w.Close()
		w.AwaitClose()
	}
	p.workers = make(map[string]worker.JobWorker)
}
