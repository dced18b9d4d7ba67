// internal/workers/audit/process-audit-query/handler.go
package processauditquery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "audit-orchestrator/internal/common/errors"
	"audit-orchestrator/internal/common/metrics"
	"audit-orchestrator/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "process-audit-query"
)

var (
	ErrInvalidInput = errors.New("INVALID_INPUT")
)

type Logger interface {
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	With(fields map[string]interface{}) Logger
}

// Processor is satisfied by the orchestrator.
type Processor interface {
	Process(ctx context.Context, query string, in *models.Intent) (*models.OrchestrationResult, error)
}

type ResultSaver interface {
	Save(ctx context.Context, result *models.OrchestrationResult) error
}

type Handler struct {
	config    *Config
	processor Processor
	results   ResultSaver
	errors    *apperrors.ErrorHandler
	logger    Logger
}

// NewHandler accepts a nil results saver when persistence is off.
func NewHandler(config *Config, processor Processor, results ResultSaver, log Logger) *Handler {
	l := log.With(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:    config,
		processor: processor,
		results:   results,
		errors:    apperrors.NewErrorHandler(l),
		logger:    l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(TaskType).Inc()
	defer func() {
		metrics.WorkerJobsActive.WithLabelValues(TaskType).Dec()
		metrics.WorkerJobDuration.WithLabelValues(TaskType).Observe(time.Since(start).Seconds())
	}()

	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, apperrors.NewInvalidQueryError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

// Execute runs one query through the orchestrator and optionally stores the result.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if strings.TrimSpace(input.Query) == "" {
		return nil, apperrors.NewInvalidQueryError(fmt.Sprintf("%v: query is required", ErrInvalidInput))
	}

	var in *models.Intent
	if input.Intent != "" {
		parsed, ok := models.ParseIntent(input.Intent)
		if !ok {
			return nil, apperrors.NewInvalidIntentError(input.Intent)
		}
		in = &parsed
	}

	result, err := h.processor.Process(ctx, input.Query, in)
	if err != nil {
		return nil, err
	}

	output := &Output{
		RequestID:        result.RequestID,
		Intent:           result.Intent,
		Response:         result.Response,
		InvolvedHandlers: result.InvolvedHandlers,
		FailedHandlers:   result.FailedHandlers,
		Degraded:         result.Degraded,
		CitationCount:    len(result.Citations),
		DocumentSummary:  result.DocumentSummary,
	}

	if h.config.Persist && h.results != nil {
		if err := h.results.Save(ctx, result); err != nil {
			// the answer is still usable without the stored copy
			h.logger.Warn("result not persisted", map[string]interface{}{
				"requestId": result.RequestID,
				"error":     apperrors.Describe(err),
			})
		} else {
			output.Persisted = true
		}
	}

	h.logger.Info("audit query processed", map[string]interface{}{
		"requestId": result.RequestID,
		"intent":    result.Intent,
		"handlers":  len(result.InvolvedHandlers),
		"degraded":  result.Degraded,
	})
	return output, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		h.fail(ctx, client, job, err)
		return
	}

	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"jobKey": job.Key,
			"error":  err.Error(),
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(apperrors.Normalize(err).Code)).Inc()
	h.errors.HandleJobError(ctx, client, job, err)
}
